package run

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/stewardrun/steward/pkg/catalog"
	"github.com/stewardrun/steward/pkg/events"
	"github.com/stewardrun/steward/pkg/gateway"
	"github.com/stewardrun/steward/pkg/heuristics"
	"github.com/stewardrun/steward/pkg/ledger"
	"github.com/stewardrun/steward/pkg/mandate"
	"github.com/stewardrun/steward/pkg/reason"
	"github.com/stewardrun/steward/pkg/risk"
	"github.com/stewardrun/steward/pkg/signal"
)

const (
	// envelopeMultiplier pads the authorized amount above the plan estimate
	// so minor price drift does not void the envelope.
	envelopeMultiplier = 1.5

	envelopeTTL        = time.Hour
	defaultCallTimeout = 30 * time.Second
	defaultStepDelay   = time.Second
)

// Orchestrator drives Discover, Plan, Authorize, Execute, Decide, Act, and
// Report for a single run. It is not safe for concurrent use; construct one
// per run or serialize callers.
type Orchestrator struct {
	catalog  catalog.Provider
	gateway  gateway.PaymentGateway
	engine   *risk.Engine
	ledger   *ledger.Ledger
	fallback *heuristics.Engine

	reasoner reason.Client // nil: deterministic fallback only
	mandates mandate.Client
	signals  *signal.Collector

	sink        events.Sink
	log         zerolog.Logger
	tracer      trace.Tracer
	limiter     *rate.Limiter
	callTimeout time.Duration
	clock       func() time.Time
}

// New wires an orchestrator with its required collaborators. Optional
// collaborators attach through the With methods.
func New(provider catalog.Provider, gw gateway.PaymentGateway, engine *risk.Engine, led *ledger.Ledger) *Orchestrator {
	return &Orchestrator{
		catalog:     provider,
		gateway:     gw,
		engine:      engine,
		ledger:      led,
		fallback:    heuristics.New(),
		sink:        events.Nop{},
		log:         zerolog.Nop(),
		tracer:      otel.Tracer("github.com/stewardrun/steward/pkg/run"),
		limiter:     rate.NewLimiter(rate.Every(defaultStepDelay), 1),
		callTimeout: defaultCallTimeout,
		clock:       time.Now,
	}
}

// WithReasoner attaches an external reasoning capability. Without one, the
// deterministic fallback plans and decides.
func (o *Orchestrator) WithReasoner(c reason.Client) *Orchestrator {
	o.reasoner = c
	return o
}

// WithMandates attaches the optional spending-envelope endpoint.
func (o *Orchestrator) WithMandates(c mandate.Client) *Orchestrator {
	o.mandates = c
	return o
}

// WithSignals attaches a market-signal collector whose fused composite is
// fed to the Decide phase alongside the execution results.
func (o *Orchestrator) WithSignals(c *signal.Collector) *Orchestrator {
	o.signals = c
	return o
}

// WithSink attaches an observer for phase and step events.
func (o *Orchestrator) WithSink(s events.Sink) *Orchestrator {
	o.sink = s
	return o
}

// WithLogger attaches a structured logger.
func (o *Orchestrator) WithLogger(log zerolog.Logger) *Orchestrator {
	o.log = log
	return o
}

// WithStepDelay sets the courtesy delay between priced executions. Tests
// shorten it; it is not a correctness requirement.
func (o *Orchestrator) WithStepDelay(d time.Duration) *Orchestrator {
	o.limiter = rate.NewLimiter(rate.Every(d), 1)
	return o
}

// WithCallTimeout bounds every external network call.
func (o *Orchestrator) WithCallTimeout(d time.Duration) *Orchestrator {
	o.callTimeout = d
	return o
}

// WithClock overrides time for tests.
func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

// Run executes the full phase sequence for one objective and returns the
// terminal RunState. Partial results are preserved on failure: the returned
// state always carries every step recorded before the error.
func (o *Orchestrator) Run(ctx context.Context, objective string, budgetUSD float64) (*RunState, error) {
	state := newRunState(objective, budgetUSD, o.clock())
	o.log.Info().Str("run_id", state.ID).Str("objective", objective).
		Float64("budget_usd", budgetUSD).Msg("run started")
	o.emit(events.TypeRunStarted, state.ID, map[string]any{"objective": objective})
	o.ledger.Record("run_started", map[string]any{"run_id": state.ID, "objective": objective})

	ctx, span := o.tracer.Start(ctx, "run")
	defer span.End()

	// Discover
	actions, err := o.discover(ctx, state)
	if err != nil {
		return o.fail(state, fmt.Errorf("discover: %w", err))
	}
	index := make(map[string]catalog.Action, len(actions))
	for _, a := range actions {
		index[a.ID] = a
	}

	// Plan
	plan := o.plan(ctx, state, actions)

	// Authorize
	envelopeID := o.authorize(ctx, state, plan)

	// Execute
	outcomes := make([]reason.StepOutcome, 0, len(plan.Steps))
	for i, planned := range plan.Steps {
		if i > 0 {
			if err := o.limiter.Wait(ctx); err != nil {
				return o.fail(state, fmt.Errorf("execute: %w", err))
			}
		}
		outcomes = append(outcomes, o.executeStep(ctx, state, KindExecute, planned, index))
	}

	// Decide
	decision := o.decide(ctx, state, outcomes)

	// Act
	if decision.FollowUp != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return o.fail(state, fmt.Errorf("act: %w", err))
		}
		outcome := o.executeStep(ctx, state, KindAct, *decision.FollowUp, index)
		outcomes = append(outcomes, outcome)
	} else {
		now := o.clock()
		i := state.beginStep(KindAct, now)
		step := state.finishStep(i, StepSkipped, o.clock())
		step.Reasoning = "no follow-up action recommended"
		o.stepDone(state, step)
	}

	// Report
	o.report(ctx, state, decision, outcomes)
	if envelopeID != "" {
		o.fulfill(ctx, state, envelopeID)
	}

	state.Status = StatusCompleted
	state.EndedAt = o.clock()
	o.emit(events.TypeRunCompleted, state.ID, map[string]any{
		"steps":     len(state.Steps),
		"spent_usd": state.SpentUSD,
	})
	o.log.Info().Str("run_id", state.ID).Int("steps", len(state.Steps)).
		Float64("spent_usd", state.SpentUSD).Msg("run completed")
	return state, nil
}

func (o *Orchestrator) discover(ctx context.Context, state *RunState) ([]catalog.Action, error) {
	ctx, span := o.tracer.Start(ctx, "phase.discover")
	defer span.End()
	o.emit(events.TypePhaseStarted, state.ID, map[string]any{"phase": string(KindDiscover)})

	i := state.beginStep(KindDiscover, o.clock())

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	actions, err := o.catalog.ListActions(callCtx)
	if err != nil {
		step := state.finishStep(i, StepFailed, o.clock())
		step.Err = err.Error()
		o.stepDone(state, step)
		return nil, err
	}

	step := state.finishStep(i, StepSuccess, o.clock())
	step.Reasoning = fmt.Sprintf("catalog lists %d priced actions", len(actions))
	o.stepDone(state, step)
	return actions, nil
}

// plan produces the spending plan. A reasoner response that fails to parse
// degrades to an empty plan carrying the raw text; only the complete absence
// of any plan path is fatal.
func (o *Orchestrator) plan(ctx context.Context, state *RunState, actions []catalog.Action) reason.Plan {
	ctx, span := o.tracer.Start(ctx, "phase.plan")
	defer span.End()
	o.emit(events.TypePhaseStarted, state.ID, map[string]any{"phase": string(KindPlan)})

	i := state.beginStep(KindPlan, o.clock())

	var plan reason.Plan
	if o.reasoner != nil {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		text, err := o.reasoner.Complete(callCtx, reason.PlanPrompt(state.Objective, actions, state.BudgetRemaining()))
		cancel()
		if err != nil {
			o.log.Warn().Err(err).Msg("reasoner unavailable for planning, using fallback")
			plan = o.fallback.Plan(state.Objective, actions, state.BudgetRemaining())
		} else {
			plan = reason.ParsePlan(text)
		}
	} else {
		plan = o.fallback.Plan(state.Objective, actions, state.BudgetRemaining())
	}

	step := state.finishStep(i, StepSuccess, o.clock())
	step.CostUSD = plan.EstimatedCostUSD
	step.Reasoning = plan.Rationale
	if plan.Degraded {
		// The raw reasoner text is the only record of what was asked for;
		// it must survive into the run state.
		step.Reasoning = "plan response unparseable, proceeding with empty plan; raw: " + plan.Rationale
	}
	o.stepDone(state, step)
	return plan
}

// authorize registers a best-effort spending envelope. Failure marks the
// step failed and execution continues on per-call risk gating alone.
func (o *Orchestrator) authorize(ctx context.Context, state *RunState, plan reason.Plan) string {
	ctx, span := o.tracer.Start(ctx, "phase.authorize")
	defer span.End()
	o.emit(events.TypePhaseStarted, state.ID, map[string]any{"phase": string(KindAuthorize)})

	i := state.beginStep(KindAuthorize, o.clock())

	if o.mandates == nil {
		step := state.finishStep(i, StepSkipped, o.clock())
		step.Reasoning = "no authorization endpoint configured"
		o.stepDone(state, step)
		return ""
	}

	amount := plan.EstimatedCostUSD * envelopeMultiplier
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	env, err := o.mandates.CreateEnvelope(callCtx, mandate.EnvelopeSpec{
		AmountUSD:  amount,
		Categories: o.engine.Policy().AllowedCategories,
		ExpiresAt:  o.clock().Add(envelopeTTL),
		Reference:  state.ID,
	})
	if err != nil {
		step := state.finishStep(i, StepFailed, o.clock())
		step.Err = err.Error()
		step.Reasoning = "envelope registration failed, continuing with per-call risk gating"
		o.stepDone(state, step)
		return ""
	}

	step := state.finishStep(i, StepSuccess, o.clock())
	step.CostUSD = amount
	step.Reasoning = fmt.Sprintf("envelope %s authorized for %.2f USD", env.ID, env.AmountUSD)
	o.stepDone(state, step)
	return env.ID
}

// executeStep routes one planned action through the risk gate and, if
// approved, the payment gateway. Every failure mode is contained in the
// returned outcome; the run always continues.
func (o *Orchestrator) executeStep(ctx context.Context, state *RunState, kind StepKind, planned reason.PlanStep, index map[string]catalog.Action) reason.StepOutcome {
	ctx, span := o.tracer.Start(ctx, "phase."+string(kind))
	defer span.End()
	o.emit(events.TypePhaseStarted, state.ID, map[string]any{
		"phase":  string(kind),
		"action": planned.ActionID,
	})

	i := state.beginStep(kind, o.clock())
	state.Steps[i].ActionID = planned.ActionID
	outcome := reason.StepOutcome{ActionID: planned.ActionID}

	action, ok := index[planned.ActionID]
	if !ok {
		step := state.finishStep(i, StepFailed, o.clock())
		step.Err = fmt.Sprintf("action %q not in catalog", planned.ActionID)
		outcome.Err = step.Err
		o.stepDone(state, step)
		return outcome
	}
	outcome.CostUSD = action.CostUSD

	assessment := o.engine.Assess(action.ID, action.CostUSD, metadataFor(action, planned.Parameters))
	if err := o.ledger.RecordAssessment(assessment); err != nil {
		o.log.Warn().Err(err).Msg("assessment not recorded")
	}
	if !assessment.Approved {
		step := state.finishStep(i, StepFailed, o.clock())
		step.Err = assessment.Reason
		step.Reasoning = planned.Rationale
		outcome.Err = assessment.Reason
		o.stepDone(state, step)
		return outcome
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	result, err := o.gateway.Execute(callCtx, action.ID, planned.Parameters)
	cancel()
	if err != nil || !result.Success {
		if err == nil {
			err = fmt.Errorf("gateway reported failure for %s", action.ID)
		}
		step := state.finishStep(i, StepFailed, o.clock())
		step.Err = err.Error()
		step.Reasoning = planned.Rationale
		outcome.Err = err.Error()
		o.log.Warn().Str("action", action.ID).Err(err).Msg("step execution failed")
		o.stepDone(state, step)
		return outcome
	}

	o.engine.RecordAction(action.ID, action.CostUSD, true)
	receipt := receiptFor(action, result, o.clock())
	if err := o.ledger.RecordSpend(receipt); err != nil {
		o.log.Warn().Err(err).Msg("spend not recorded")
	}
	state.SpentUSD += receipt.Amount

	step := state.finishStep(i, StepSuccess, o.clock())
	step.CostUSD = receipt.Amount
	step.Reasoning = planned.Rationale
	outcome.Success = true
	outcome.CostUSD = receipt.Amount
	outcome.Data = result.Data
	o.stepDone(state, step)
	return outcome
}

func (o *Orchestrator) decide(ctx context.Context, state *RunState, outcomes []reason.StepOutcome) reason.Decision {
	ctx, span := o.tracer.Start(ctx, "phase.decide")
	defer span.End()
	o.emit(events.TypePhaseStarted, state.ID, map[string]any{"phase": string(KindDecide)})

	i := state.beginStep(KindDecide, o.clock())

	// Signal reads are free, side-effect-free, and fetched concurrently;
	// the fused composite joins the decision inputs but is never counted as
	// an executed step, so the caller's outcome list stays untouched.
	inputs := make([]reason.StepOutcome, len(outcomes), len(outcomes)+1)
	copy(inputs, outcomes)
	if o.signals != nil {
		composite := signal.Aggregate(o.signals.Collect(ctx, state.Objective))
		if composite.Sources > 0 {
			inputs = append(inputs, reason.StepOutcome{
				ActionID: "signal.composite",
				Success:  true,
				Data: map[string]any{
					"composite_score":   composite.Score,
					"signal_label":      string(composite.Label),
					"signal_confidence": composite.Confidence,
				},
			})
		}
	}

	var decision reason.Decision
	if o.reasoner != nil {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		text, err := o.reasoner.Complete(callCtx, reason.DecidePrompt(state.Objective, inputs))
		cancel()
		if err != nil {
			o.log.Warn().Err(err).Msg("reasoner unavailable for decision, using fallback")
			decision = o.fallback.Decide(inputs)
		} else {
			decision = reason.ParseDecision(text)
		}
	} else {
		decision = o.fallback.Decide(inputs)
	}

	step := state.finishStep(i, StepSuccess, o.clock())
	step.Reasoning = fmt.Sprintf("%s (confidence %.2f): %s", decision.Verdict, decision.Confidence, decision.Rationale)
	o.stepDone(state, step)
	return decision
}

func (o *Orchestrator) report(ctx context.Context, state *RunState, decision reason.Decision, outcomes []reason.StepOutcome) {
	ctx, span := o.tracer.Start(ctx, "phase.report")
	defer span.End()
	o.emit(events.TypePhaseStarted, state.ID, map[string]any{"phase": string(KindReport)})

	i := state.beginStep(KindReport, o.clock())

	stats := reason.RunStats{
		Objective:     state.Objective,
		Steps:         len(outcomes),
		TotalSpendUSD: state.SpentUSD,
		BudgetUSD:     state.BudgetUSD,
		Verdict:       decision.Verdict,
		Acted:         decision.FollowUp != nil,
	}
	for _, out := range outcomes {
		if out.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}

	summary := o.fallback.Summarize(stats)
	if o.reasoner != nil {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		text, err := o.reasoner.Complete(callCtx, reason.SummarizePrompt(stats))
		cancel()
		if err != nil {
			o.log.Warn().Err(err).Msg("reasoner unavailable for summary, using fallback")
		} else {
			summary = text
		}
	}

	report, err := o.ledger.Report()
	if err != nil {
		o.log.Warn().Err(err).Msg("ledger report incomplete")
	}
	state.Result = &Result{Summary: summary, Decision: decision, Ledger: report}
	o.ledger.Record("run_report", stats)

	step := state.finishStep(i, StepSuccess, o.clock())
	step.Reasoning = summary
	o.stepDone(state, step)
}

func (o *Orchestrator) fulfill(ctx context.Context, state *RunState, envelopeID string) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	summary := fmt.Sprintf("run %s spent %.2f USD across %d steps", state.ID, state.SpentUSD, len(state.Steps))
	if err := o.mandates.Fulfill(callCtx, envelopeID, summary); err != nil {
		o.log.Warn().Err(err).Str("envelope", envelopeID).Msg("envelope fulfillment failed")
	}
}

// fail finalizes the run with whatever steps were recorded. Partial results
// are never discarded.
func (o *Orchestrator) fail(state *RunState, err error) (*RunState, error) {
	state.Status = StatusFailed
	state.Err = err.Error()
	state.EndedAt = o.clock()
	o.ledger.Record("run_failed", map[string]any{"run_id": state.ID, "error": err.Error()})
	o.emit(events.TypeRunFailed, state.ID, map[string]any{"error": err.Error()})
	o.log.Error().Str("run_id", state.ID).Err(err).Msg("run failed")
	return state, err
}

func (o *Orchestrator) stepDone(state *RunState, step *Step) {
	o.emit(events.TypeStepCompleted, state.ID, map[string]any{
		"step_id": step.ID,
		"kind":    string(step.Kind),
		"status":  string(step.Status),
	})
}

func (o *Orchestrator) emit(t events.Type, runID string, data map[string]any) {
	o.sink.OnEvent(events.Event{
		Type:      t,
		RunID:     runID,
		Timestamp: o.clock(),
		Data:      data,
	})
}

// metadataFor maps catalog and parameter attributes onto the policy checks.
func metadataFor(action catalog.Action, params map[string]any) risk.Metadata {
	meta := risk.Metadata{Category: action.Category}
	if v, ok := params["token"].(string); ok {
		meta.Token = v
	}
	if v, ok := params["chain"].(string); ok {
		meta.Chain = v
	}
	if v, ok := params["slippage_bps"].(float64); ok {
		meta.SlippageBps = v
	}
	return meta
}

func receiptFor(action catalog.Action, result *gateway.Result, now time.Time) ledger.SpendReceipt {
	receipt := ledger.SpendReceipt{
		ID:        uuid.NewString(),
		Timestamp: now,
		ActionID:  action.ID,
		Category:  action.Category,
		Amount:    action.CostUSD,
		Currency:  "USD",
		Status:    ledger.SettlementSettled,
	}
	if result.Settlement != nil {
		receipt.Amount = result.Settlement.Amount
		if result.Settlement.Currency != "" {
			receipt.Currency = result.Settlement.Currency
		}
		receipt.TxRef = result.Settlement.TxRef
	}
	return receipt
}
