// Package config defines all configuration for the arbitrage engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via ARB_* environment variables. Per-venue
// API credentials live in a separate file, loaded with plain encoding/json
// rather than viper, since they are never templated or merged with
// environment defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun          bool         `mapstructure:"dry_run"`
	CredentialsFile string       `mapstructure:"credentials_file"`
	Engine          EngineConfig `mapstructure:"engine"`
	Venues          []VenueConfig `mapstructure:"venues"`
	Risk            RiskConfig   `mapstructure:"risk"`
	Store           StoreConfig  `mapstructure:"store"`
	Logging         LoggingConfig `mapstructure:"logging"`
}

// EngineConfig names the single pair this engine arbitrages across its
// venue roster, plus the timing parameters of its evaluation loop.
type EngineConfig struct {
	Base            string        `mapstructure:"base"`
	Quote           string        `mapstructure:"quote"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	StallTimeout    time.Duration `mapstructure:"stall_timeout"`
	MaxQuantity     string        `mapstructure:"max_quantity"`
}

// Pair returns the configured trading pair.
func (e EngineConfig) Pair() types.Pair {
	return types.Pair{Base: e.Base, Quote: e.Quote}
}

// VenueKind selects which adapter implementation a venue entry wires up to.
type VenueKind string

const (
	KindRestex  VenueKind = "restex"
	KindChainex VenueKind = "chainex"
)

// VenueConfig describes one venue's connection, product, and fee details.
// Credentials are not here: they live in the separate credentials file
// named by Config.CredentialsFile, keyed by VenueConfig.ID.
type VenueConfig struct {
	ID          string    `mapstructure:"id"`
	Kind        VenueKind `mapstructure:"kind"`
	RESTBaseURL string    `mapstructure:"rest_base_url"`
	WSURL       string    `mapstructure:"ws_url"`
	ChainID     int64     `mapstructure:"chain_id"`
	PriceScale  int32     `mapstructure:"price_scale"`
	QtyScale    int32     `mapstructure:"qty_scale"`
	MinNotional string    `mapstructure:"min_notional"`
	MakerFee    string    `mapstructure:"maker_fee"`
	TakerFee    string    `mapstructure:"taker_fee"`
	RateLimits  RateLimitConfig `mapstructure:"rate_limits"`
}

// RateLimitConfig is the per-category (burst, sustained) limits the venue
// publishes for its REST surface.
type RateLimitConfig struct {
	OrderBurst  float64 `mapstructure:"order_burst"`
	OrderRate   float64 `mapstructure:"order_rate"`
	CancelBurst float64 `mapstructure:"cancel_burst"`
	CancelRate  float64 `mapstructure:"cancel_rate"`
	BookBurst   float64 `mapstructure:"book_burst"`
	BookRate    float64 `mapstructure:"book_rate"`
}

// RiskConfig bounds the unhedged residue the engine will carry per venue
// before disabling new maker quotes there. See internal/risk.
type RiskConfig struct {
	MaxUnhedgedResidue string `mapstructure:"max_unhedged_residue"`
}

// StoreConfig sets where completed trade cycles are appended.
type StoreConfig struct {
	TradeLogPath string `mapstructure:"trade_log_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if path := os.Getenv("ARB_CREDENTIALS_FILE"); path != "" {
		cfg.CredentialsFile = path
	}
	if os.Getenv("ARB_DRY_RUN") == "true" || os.Getenv("ARB_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges, failing fast
// before any venue connection is attempted.
func (c *Config) Validate() error {
	if c.Engine.Base == "" || c.Engine.Quote == "" {
		return fmt.Errorf("engine.base and engine.quote are required")
	}
	if c.Engine.RefreshInterval <= 0 {
		return fmt.Errorf("engine.refresh_interval must be > 0")
	}
	if _, err := decimal.Parse(c.Engine.MaxQuantity); err != nil {
		return fmt.Errorf("engine.max_quantity: %w", err)
	}
	if len(c.Venues) < 2 {
		return fmt.Errorf("at least two venues are required to arbitrage")
	}
	seen := make(map[string]bool, len(c.Venues))
	for _, venueCfg := range c.Venues {
		if err := venueCfg.validate(); err != nil {
			return fmt.Errorf("venue %q: %w", venueCfg.ID, err)
		}
		if seen[venueCfg.ID] {
			return fmt.Errorf("duplicate venue id %q", venueCfg.ID)
		}
		seen[venueCfg.ID] = true
	}
	if _, err := decimal.Parse(c.Risk.MaxUnhedgedResidue); err != nil {
		return fmt.Errorf("risk.max_unhedged_residue: %w", err)
	}
	if c.Store.TradeLogPath == "" {
		return fmt.Errorf("store.trade_log_path is required")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("credentials_file is required")
	}
	return nil
}

func (v VenueConfig) validate() error {
	if v.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch v.Kind {
	case KindRestex, KindChainex:
	default:
		return fmt.Errorf("kind must be %q or %q", KindRestex, KindChainex)
	}
	if v.RESTBaseURL == "" || v.WSURL == "" {
		return fmt.Errorf("rest_base_url and ws_url are required")
	}
	if v.Kind == KindChainex && v.ChainID == 0 {
		return fmt.Errorf("chain_id is required for chainex venues")
	}
	if v.PriceScale < 0 || v.QtyScale < 0 {
		return fmt.Errorf("price_scale and qty_scale must be >= 0")
	}
	if _, err := decimal.Parse(v.MinNotional); err != nil {
		return fmt.Errorf("min_notional: %w", err)
	}
	if _, err := decimal.Parse(v.MakerFee); err != nil {
		return fmt.Errorf("maker_fee: %w", err)
	}
	if _, err := decimal.Parse(v.TakerFee); err != nil {
		return fmt.Errorf("taker_fee: %w", err)
	}
	return nil
}
