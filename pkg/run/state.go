// Package run drives one budget-bounded orchestration from objective to
// final report through a fixed sequence of phases.
package run

import (
	"time"

	"github.com/google/uuid"

	"github.com/stewardrun/steward/pkg/ledger"
	"github.com/stewardrun/steward/pkg/reason"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StepStatus is the lifecycle state of one step. Terminal steps are never
// mutated afterwards.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepKind names the phase that produced a step.
type StepKind string

const (
	KindDiscover  StepKind = "discover"
	KindPlan      StepKind = "plan"
	KindAuthorize StepKind = "authorize"
	KindExecute   StepKind = "execute"
	KindDecide    StepKind = "decide"
	KindAct       StepKind = "act"
	KindReport    StepKind = "report"
)

// Step is one unit of orchestrated work, appended to the run in issuance
// order.
type Step struct {
	ID        string        `json:"id"`
	Kind      StepKind      `json:"kind"`
	ActionID  string        `json:"action_id,omitempty"`
	CostUSD   float64       `json:"cost_usd,omitempty"`
	Status    StepStatus    `json:"status"`
	Reasoning string        `json:"reasoning,omitempty"`
	Err       string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Result is the terminal payload of a completed run.
type Result struct {
	Summary  string          `json:"summary"`
	Decision reason.Decision `json:"decision"`
	Ledger   *ledger.Report  `json:"ledger"`
}

// RunState is the full record of one orchestration. It is owned by the
// Orchestrator while Status is running and read-only afterwards.
type RunState struct {
	ID        string    `json:"id"`
	Objective string    `json:"objective"`
	BudgetUSD float64   `json:"budget_usd"`
	SpentUSD  float64   `json:"spent_usd"`
	Status    Status    `json:"status"`
	Steps     []Step    `json:"steps"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Err       string    `json:"error,omitempty"`
}

// BudgetRemaining is the run ceiling minus settled spend.
func (s *RunState) BudgetRemaining() float64 {
	return s.BudgetUSD - s.SpentUSD
}

func newRunState(objective string, budgetUSD float64, now time.Time) *RunState {
	return &RunState{
		ID:        uuid.NewString(),
		Objective: objective,
		BudgetUSD: budgetUSD,
		Status:    StatusRunning,
		StartedAt: now,
	}
}

// beginStep appends a running step and returns its index. The step is
// finalized exactly once via finishStep.
func (s *RunState) beginStep(kind StepKind, now time.Time) int {
	s.Steps = append(s.Steps, Step{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StepRunning,
		StartedAt: now,
	})
	return len(s.Steps) - 1
}

func (s *RunState) finishStep(i int, status StepStatus, now time.Time) *Step {
	step := &s.Steps[i]
	step.Status = status
	step.Duration = now.Sub(step.StartedAt)
	return step
}
