// Command arbengine runs the cross-venue maker/taker arbitrage engine.
//
// Architecture:
//
//	main.go                 — entry point: loads config, wires venue adapters, starts the engine
//	internal/config         — viper-based YAML config + JSON credentials file
//	internal/venue/restex   — HMAC-signed centralized-exchange adapter (generic)
//	internal/venue/chainex  — EIP-712-signed on-chain CLOB adapter (generic)
//	internal/book           — per-venue lazy-heap order book
//	internal/multiplex      — bounded fan-in merge of every adapter's event stream
//	internal/strategy       — six-shape maker/taker evaluator + selection
//	internal/engine         — WAIT_FOR_ARB/WAIT_FOR_MATCH/CANCEL_MAKE state machine
//	internal/balance        — per-venue per-asset wallet ledger
//	internal/risk           — venue health + unhedged-residue budget
//	internal/tradelog       — append-only completed-cycle log
//
// How it makes money:
//
//	The engine watches the consolidated book across every configured venue
//	pair, scores the six strategy shapes of spec.md §4.4 on each update, and
//	posts a post-only maker order on whichever venue/side shows a positive
//	fee-adjusted spread against a second venue. Fills are covered
//	aggressively on the taker venue; the realized spread is the profit.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"arbengine/internal/config"
	"arbengine/internal/engine"
	"arbengine/internal/venue"
	"arbengine/internal/venue/chainex"
	"arbengine/internal/venue/restex"
	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ARB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	creds, err := config.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	adapters, err := buildAdapters(cfg, creds, logger)
	if err != nil {
		logger.Error("failed to build venue adapters", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.New(ctx, cfg, adapters, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("arbengine started",
		"pair", cfg.Engine.Pair().String(),
		"venues", venueIDs(adapters),
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

// buildAdapters constructs one venue.Adapter per configured venue, keyed by
// venue id. The Kind field selects restex (HMAC-signed REST/WS venues) or
// chainex (EIP-712-signed on-chain venues); credentials are looked up by id
// from the separately loaded credentials file.
func buildAdapters(cfg *config.Config, creds map[types.VenueID]config.Credentials, logger *slog.Logger) (map[types.VenueID]venue.Adapter, error) {
	adapters := make(map[types.VenueID]venue.Adapter, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		id := types.VenueID(vc.ID)
		cred, ok := creds[id]
		if !ok {
			return nil, fmt.Errorf("no credentials entry for venue %q", vc.ID)
		}

		minNotional, err := decimal.Parse(vc.MinNotional)
		if err != nil {
			return nil, fmt.Errorf("venue %q: min_notional: %w", vc.ID, err)
		}
		makerFee, err := decimal.Parse(vc.MakerFee)
		if err != nil {
			return nil, fmt.Errorf("venue %q: maker_fee: %w", vc.ID, err)
		}
		takerFee, err := decimal.Parse(vc.TakerFee)
		if err != nil {
			return nil, fmt.Errorf("venue %q: taker_fee: %w", vc.ID, err)
		}

		switch vc.Kind {
		case config.KindRestex:
			a := restex.New(restex.Config{
				VenueID:     id,
				RESTBaseURL: vc.RESTBaseURL,
				WSURL:       vc.WSURL,
				Creds: restex.Credentials{
					APIKey:     cred.APIKey,
					Secret:     cred.APISecret,
					Passphrase: cred.Passphrase,
				},
				PriceScale:  vc.PriceScale,
				QtyScale:    vc.QtyScale,
				MinNotional: minNotional,
				MakerFee:    makerFee,
				TakerFee:    takerFee,
				RateLimits: restex.RateLimitConfig{
					OrderBurst:  vc.RateLimits.OrderBurst,
					OrderRate:   vc.RateLimits.OrderRate,
					CancelBurst: vc.RateLimits.CancelBurst,
					CancelRate:  vc.RateLimits.CancelRate,
					BookBurst:   vc.RateLimits.BookBurst,
					BookRate:    vc.RateLimits.BookRate,
				},
			}, logger)
			adapters[id] = a

		case config.KindChainex:
			a, err := chainex.New(chainex.Config{
				VenueID:     id,
				RESTBaseURL: vc.RESTBaseURL,
				WSURL:       vc.WSURL,
				PrivateKey:  cred.PrivateKey,
				ChainID:     vc.ChainID,
				PriceScale:  vc.PriceScale,
				QtyScale:    vc.QtyScale,
				MinNotional: minNotional,
				MakerFee:    makerFee,
				TakerFee:    takerFee,
				RateLimits: chainex.RateLimitConfig{
					OrderBurst:  vc.RateLimits.OrderBurst,
					OrderRate:   vc.RateLimits.OrderRate,
					CancelBurst: vc.RateLimits.CancelBurst,
					CancelRate:  vc.RateLimits.CancelRate,
					BookBurst:   vc.RateLimits.BookBurst,
					BookRate:    vc.RateLimits.BookRate,
				},
			}, logger)
			if err != nil {
				return nil, fmt.Errorf("venue %q: %w", vc.ID, err)
			}
			adapters[id] = a

		default:
			return nil, fmt.Errorf("venue %q: unknown kind %q", vc.ID, vc.Kind)
		}
	}
	return adapters, nil
}

func venueIDs(adapters map[types.VenueID]venue.Adapter) []string {
	ids := make([]string, 0, len(adapters))
	for id := range adapters {
		ids = append(ids, string(id))
	}
	return ids
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
