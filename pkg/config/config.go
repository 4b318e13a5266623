// Package config loads steward configuration from a YAML profile with
// environment overrides for secrets and endpoints.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/stewardrun/steward/pkg/risk"
)

// supportedVersions gates which config schema versions this binary accepts.
const supportedVersions = ">= 1.0.0, < 2.0.0"

// PolicyConfig is the YAML shape of the risk policy. Intervals are plain
// seconds so profiles stay portable.
type PolicyConfig struct {
	DailyLimitUSD         float64  `yaml:"daily_limit_usd"`
	PerActionLimitUSD     float64  `yaml:"per_action_limit_usd"`
	AutoApproveCeilingUSD float64  `yaml:"auto_approve_ceiling_usd"`
	ApprovalThresholdUSD  float64  `yaml:"approval_threshold_usd"`
	AllowedCategories     []string `yaml:"allowed_categories"`
	AllowedTokens         []string `yaml:"allowed_tokens"`
	AllowedChains         []string `yaml:"allowed_chains"`
	MaxSlippageBps        float64  `yaml:"max_slippage_bps"`
	CooldownSeconds       float64  `yaml:"cooldown_seconds"`
	GuardExpr             string   `yaml:"guard_expr"`
}

// ToPolicy converts the YAML shape into the engine's policy.
func (p PolicyConfig) ToPolicy() risk.Policy {
	return risk.Policy{
		DailyLimitUSD:         p.DailyLimitUSD,
		PerActionLimitUSD:     p.PerActionLimitUSD,
		AutoApproveCeilingUSD: p.AutoApproveCeilingUSD,
		ApprovalThresholdUSD:  p.ApprovalThresholdUSD,
		AllowedCategories:     p.AllowedCategories,
		AllowedTokens:         p.AllowedTokens,
		AllowedChains:         p.AllowedChains,
		MaxSlippageBps:        p.MaxSlippageBps,
		Cooldown:              time.Duration(p.CooldownSeconds * float64(time.Second)),
		GuardExpr:             p.GuardExpr,
	}
}

func fromPolicy(p risk.Policy) PolicyConfig {
	return PolicyConfig{
		DailyLimitUSD:         p.DailyLimitUSD,
		PerActionLimitUSD:     p.PerActionLimitUSD,
		AutoApproveCeilingUSD: p.AutoApproveCeilingUSD,
		ApprovalThresholdUSD:  p.ApprovalThresholdUSD,
		AllowedCategories:     p.AllowedCategories,
		AllowedTokens:         p.AllowedTokens,
		AllowedChains:         p.AllowedChains,
		MaxSlippageBps:        p.MaxSlippageBps,
		CooldownSeconds:       p.Cooldown.Seconds(),
		GuardExpr:             p.GuardExpr,
	}
}

// GatewayConfig points at the payment-enabled action endpoint.
type GatewayConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// ReasonerConfig points at an OpenAI-compatible completion endpoint.
// An empty BaseURL and Model means "no external reasoner": the
// deterministic fallback drives planning and decisions.
type ReasonerConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// MandateConfig points at the optional envelope authorization endpoint.
type MandateConfig struct {
	BaseURL string `yaml:"base_url"`
	Issuer  string `yaml:"issuer"`
	Secret  string `yaml:"secret"`
}

// LedgerConfig selects how the audit trail is persisted.
type LedgerConfig struct {
	// Backend is "memory", "sqlite", or "postgres".
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ExportConfig configures evidence pack uploads.
type ExportConfig struct {
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Prefix   string `yaml:"s3_prefix"`
	S3Endpoint string `yaml:"s3_endpoint"` // optional, for MinIO/LocalStack
}

// TracingConfig configures the optional OTLP trace exporter. An empty
// endpoint leaves phase spans unexported.
type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"` // host:port of an OTLP gRPC collector
}

// SignalConfig points at optional market-signal sources. Empty URLs
// disable their provider.
type SignalConfig struct {
	NewsURL  string `yaml:"news_url"`
	IndexURL string `yaml:"index_url"`
	ChainURL string `yaml:"chain_url"`
}

// CatalogConfig configures discovery and its cache.
type CatalogConfig struct {
	BaseURL         string `yaml:"base_url"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	RedisAddr       string `yaml:"redis_addr"` // empty: in-memory cache
}

// CacheTTL returns the catalog cache TTL.
func (c CatalogConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Config is the full steward profile.
type Config struct {
	Version  string         `yaml:"version"`
	LogLevel string         `yaml:"log_level"`
	Policy   PolicyConfig   `yaml:"policy"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Signals  SignalConfig   `yaml:"signals"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Reasoner ReasonerConfig `yaml:"reasoner"`
	Mandate  MandateConfig  `yaml:"mandate"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Export   ExportConfig   `yaml:"export"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// Default returns a runnable offline configuration.
func Default() *Config {
	cfg := &Config{
		Version:  "1.0.0",
		LogLevel: "info",
		Policy:   fromPolicy(risk.DefaultPolicy()),
	}
	cfg.Catalog.CacheTTLSeconds = 300
	cfg.Ledger.Backend = "memory"
	return cfg
}

// Load reads a YAML profile, applies environment overrides, and validates
// the schema version.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := checkVersion(cfg.Version); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets deployment secrets override the profile.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STEWARD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STEWARD_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("STEWARD_REASONER_API_KEY"); v != "" {
		cfg.Reasoner.APIKey = v
	}
	if v := os.Getenv("STEWARD_MANDATE_SECRET"); v != "" {
		cfg.Mandate.Secret = v
	}
	if v := os.Getenv("STEWARD_REDIS_ADDR"); v != "" {
		cfg.Catalog.RedisAddr = v
	}
	if v := os.Getenv("STEWARD_POSTGRES_DSN"); v != "" {
		cfg.Ledger.PostgresDSN = v
		cfg.Ledger.Backend = "postgres"
	}
	if v := os.Getenv("STEWARD_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.OTLPEndpoint = v
	}
}

func checkVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("config: invalid version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(supportedVersions)
	if err != nil {
		return fmt.Errorf("config: bad version constraint: %w", err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("config: version %s outside supported range %s", version, supportedVersions)
	}
	return nil
}
