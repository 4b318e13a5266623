package signal

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Provider produces one Signal for a subject (token symbol, market, topic).
// Implementations must be side-effect-free and safe for concurrent use.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, subject string) (Signal, error)
}

// defaultFetchTimeout bounds each provider call inside Collect.
const defaultFetchTimeout = 10 * time.Second

// Collector fans provider fetches out concurrently and joins before
// aggregation. Failed providers are dropped from the result, never
// zero-filled.
type Collector struct {
	providers []Provider
	timeout   time.Duration
	log       zerolog.Logger
}

// NewCollector builds a Collector over the given providers.
func NewCollector(providers []Provider, log zerolog.Logger) *Collector {
	return &Collector{providers: providers, timeout: defaultFetchTimeout, log: log}
}

// WithTimeout overrides the per-provider fetch timeout.
func (c *Collector) WithTimeout(d time.Duration) *Collector {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// Collect fetches from every provider concurrently and returns the signals
// that succeeded, in no particular order. Provider errors are logged and
// swallowed; the caller sees a shorter slice.
func (c *Collector) Collect(ctx context.Context, subject string) []Signal {
	type fetched struct {
		sig Signal
		err error
	}

	results := make([]fetched, len(c.providers))
	var wg sync.WaitGroup
	for i, p := range c.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			sig, err := p.Fetch(fetchCtx, subject)
			results[i] = fetched{sig: sig, err: err}
		}(i, p)
	}
	wg.Wait()

	signals := make([]Signal, 0, len(c.providers))
	for i, r := range results {
		if r.err != nil {
			c.log.Warn().Err(r.err).Str("provider", c.providers[i].Name()).
				Msg("signal provider failed, omitting from aggregate")
			continue
		}
		signals = append(signals, r.sig)
	}
	return signals
}
