package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stewardrun/steward/pkg/catalog"
	"github.com/stewardrun/steward/pkg/config"
	"github.com/stewardrun/steward/pkg/events"
	"github.com/stewardrun/steward/pkg/gateway"
	"github.com/stewardrun/steward/pkg/ledger"
	"github.com/stewardrun/steward/pkg/mandate"
	"github.com/stewardrun/steward/pkg/reason"
	"github.com/stewardrun/steward/pkg/risk"
	"github.com/stewardrun/steward/pkg/run"
	"github.com/stewardrun/steward/pkg/signal"
)

// runCmd implements `steward run`.
//
// Exit codes:
//
//	0 = run completed
//	1 = run failed (partial state printed)
//	2 = configuration or setup error
func runCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		objective  string
		budget     float64
	)
	cmd.StringVar(&configPath, "config", "", "Path to YAML profile")
	cmd.StringVar(&objective, "objective", "", "Objective text (REQUIRED)")
	cmd.Float64Var(&budget, "budget", 5, "Run budget ceiling in USD")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if objective == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --objective is required")
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	if cfg.Catalog.BaseURL == "" || cfg.Gateway.BaseURL == "" {
		_, _ = fmt.Fprintln(stderr, "Error: catalog.base_url and gateway.base_url must be configured")
		return 2
	}

	log := newLogger(cfg.LogLevel)

	if cfg.Tracing.OTLPEndpoint != "" {
		shutdown, err := initTracing(context.Background(), cfg.Tracing.OTLPEndpoint)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			return 2
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdown(flushCtx); err != nil {
				log.Warn().Err(err).Msg("trace flush failed")
			}
		}()
	}

	store, err := openStore(cfg)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	defer store.Close()

	led, err := ledger.Load(store)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	engine, err := risk.NewEngine(cfg.Policy.ToPolicy())
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	var provider catalog.Provider = catalog.NewHTTPProvider(cfg.Catalog.BaseURL)
	var cache catalog.Cache = catalog.NewMemoryCache(cfg.Catalog.CacheTTL())
	if cfg.Catalog.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Catalog.RedisAddr})
		cache = catalog.NewRedisCache(client, "steward:catalog", cfg.Catalog.CacheTTL())
	}
	provider = &catalog.CachedProvider{Provider: provider, Cache: cache}

	gw := gateway.NewHTTPGateway(cfg.Gateway.BaseURL, cfg.Gateway.APIKey)

	orch := run.New(provider, gw, engine, led).
		WithLogger(log).
		WithSink(events.LogSink{Log: log})
	if cfg.Reasoner.Model != "" {
		orch = orch.WithReasoner(reason.NewOpenAIClient(cfg.Reasoner.BaseURL, cfg.Reasoner.APIKey, cfg.Reasoner.Model))
	}
	if cfg.Mandate.BaseURL != "" {
		orch = orch.WithMandates(mandate.NewHTTPClient(cfg.Mandate.BaseURL, cfg.Mandate.Issuer, []byte(cfg.Mandate.Secret)))
	}

	var providers []signal.Provider
	if cfg.Signals.NewsURL != "" {
		providers = append(providers, &signal.NewsProvider{BaseURL: cfg.Signals.NewsURL})
	}
	if cfg.Signals.IndexURL != "" {
		providers = append(providers, &signal.IndexProvider{BaseURL: cfg.Signals.IndexURL})
	}
	if cfg.Signals.ChainURL != "" {
		providers = append(providers, &signal.ChainProvider{BaseURL: cfg.Signals.ChainURL})
	}
	if len(providers) > 0 {
		orch = orch.WithSignals(signal.NewCollector(providers, log))
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	state, runErr := orch.Run(ctx, objective, budget)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	if runErr != nil {
		return 1
	}
	return 0
}
