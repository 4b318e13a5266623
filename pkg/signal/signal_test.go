package signal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardrun/steward/pkg/signal"
)

func TestAggregateEmptyInput(t *testing.T) {
	c := signal.Aggregate(nil)
	assert.Equal(t, 0.0, c.Score)
	assert.Equal(t, 0.0, c.Confidence)
	assert.Equal(t, signal.LabelNeutral, c.Label)
	assert.Equal(t, 0, c.Sources)
}

func TestAggregateAllZeroConfidence(t *testing.T) {
	c := signal.Aggregate([]signal.Signal{
		{Source: "news", Score: 0.9, Confidence: 0},
		{Source: "index", Score: -0.9, Confidence: 0},
	})
	assert.Equal(t, 0.0, c.Score)
	assert.Equal(t, 0.0, c.Confidence)
	assert.Equal(t, signal.LabelNeutral, c.Label)
}

func TestAggregateWeightedMix(t *testing.T) {
	// Scenario: strong positive news, weak negative on-chain read.
	signals := []signal.Signal{
		{Source: "news", Score: 0.5, Confidence: 0.9},
		{Source: "on-chain", Score: -0.1, Confidence: 0.2},
	}
	c := signal.Aggregate(signals)

	assert.Greater(t, c.Score, -0.1)
	assert.Less(t, c.Score, 0.5)
	assert.Greater(t, c.Confidence, 0.0)
	assert.Less(t, c.Confidence, 1.0)

	if c.Score > 0.25 {
		assert.Equal(t, signal.LabelPositive, c.Label)
	}
}

func TestAggregateOrderInvariant(t *testing.T) {
	a := []signal.Signal{
		{Source: "news", Score: 0.4, Confidence: 0.8},
		{Source: "index", Score: -0.2, Confidence: 0.5},
		{Source: "on-chain", Score: 0.7, Confidence: 0.6},
	}
	b := []signal.Signal{a[2], a[0], a[1]}

	ca := signal.Aggregate(a)
	cb := signal.Aggregate(b)
	assert.InDelta(t, ca.Score, cb.Score, 1e-12)
	assert.InDelta(t, ca.Confidence, cb.Confidence, 1e-12)
	assert.Equal(t, ca.Label, cb.Label)
}

func TestAggregateLabelThresholds(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  signal.Label
	}{
		{"strongly positive", 0.9, signal.LabelPositive},
		{"just above threshold", 0.26, signal.LabelPositive},
		{"neutral high", 0.25, signal.LabelNeutral},
		{"neutral low", -0.25, signal.LabelNeutral},
		{"just below threshold", -0.26, signal.LabelNegative},
		{"strongly negative", -0.9, signal.LabelNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := signal.Aggregate([]signal.Signal{{Source: "news", Score: tt.score, Confidence: 1}})
			assert.Equal(t, tt.want, c.Label)
		})
	}
}

func TestWeightFallbackForUnknownSource(t *testing.T) {
	assert.Equal(t, 0.35, signal.Weight("news"))
	assert.Equal(t, 0.33, signal.Weight("astrology"))
}

type stubProvider struct {
	name  string
	sig   signal.Signal
	err   error
	delay time.Duration
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(ctx context.Context, _ string) (signal.Signal, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return signal.Signal{}, ctx.Err()
		}
	}
	return s.sig, s.err
}

func TestCollectorOmitsFailedProviders(t *testing.T) {
	providers := []signal.Provider{
		&stubProvider{name: "news", sig: signal.Signal{Source: "news", Score: 0.5, Confidence: 0.9}},
		&stubProvider{name: "index", err: errors.New("upstream 503")},
		&stubProvider{name: "on-chain", sig: signal.Signal{Source: "on-chain", Score: -0.1, Confidence: 0.2}},
	}
	c := signal.NewCollector(providers, zerolog.Nop())

	signals := c.Collect(context.Background(), "SOL")
	require.Len(t, signals, 2)

	sources := map[string]bool{}
	for _, s := range signals {
		sources[s.Source] = true
	}
	assert.True(t, sources["news"])
	assert.True(t, sources["on-chain"])
	assert.False(t, sources["index"])
}

func TestCollectorTimeoutDropsSlowProvider(t *testing.T) {
	providers := []signal.Provider{
		&stubProvider{name: "news", sig: signal.Signal{Source: "news", Score: 0.3, Confidence: 0.5}},
		&stubProvider{name: "on-chain", delay: 200 * time.Millisecond, sig: signal.Signal{Source: "on-chain", Score: 1, Confidence: 1}},
	}
	c := signal.NewCollector(providers, zerolog.Nop()).WithTimeout(20 * time.Millisecond)

	signals := c.Collect(context.Background(), "SOL")
	require.Len(t, signals, 1)
	assert.Equal(t, "news", signals[0].Source)
}
