package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/antwort-dev/auskunft/pkg/auth"
	"github.com/antwort-dev/auskunft/pkg/auth/apikey"
	"github.com/antwort-dev/auskunft/pkg/auth/jwt"
	"github.com/antwort-dev/auskunft/pkg/auth/noop"
	"github.com/antwort-dev/auskunft/pkg/config"
	"github.com/antwort-dev/auskunft/pkg/observability"
	"github.com/antwort-dev/auskunft/pkg/storage/retention"
	transporthttp "github.com/antwort-dev/auskunft/pkg/transport/http"
)

var apiFlags struct {
	port     int
	logLevel string
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the Auskunft HTTP API",
	Long: `Start the HTTP API server.

The server exposes answers, documents, search, and models endpoints,
plus /healthz, /readyz, and (when enabled) /metrics. It shuts down
gracefully on SIGINT or SIGTERM, waiting for in-flight answers.

Examples:
  # Start with config discovery
  auskunft api

  # Start with an explicit config file
  auskunft api --config /etc/auskunft/config.yaml

  # Override the listen port
  auskunft api --port 9090`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().IntVarP(&apiFlags.port, "port", "p", 0, "override listen port")
	apiCmd.Flags().StringVar(&apiFlags.logLevel, "log-level", "", "override log level (DEBUG, INFO, WARN, ERROR)")
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if apiFlags.port != 0 {
		cfg.Server.Port = apiFlags.port
	}
	if apiFlags.logLevel != "" {
		cfg.Observability.Logging.Level = apiFlags.logLevel
	}
	initLogging(cfg)

	ctx := context.Background()

	prov, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	eng, err := buildEngine(cfg, prov, store)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	var sweeper *retention.Sweeper
	if cfg.Storage.Retention.Enabled {
		sweeper, err = retention.New(store, cfg.Storage.Retention.Schedule, cfg.Storage.Retention.MaxAge)
		if err != nil {
			return fmt.Errorf("creating retention sweeper: %w", err)
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	chain, limiter, err := buildAuth(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithLogger(slog.Default()),
		transporthttp.WithReadinessChecks(
			transporthttp.ReadinessCheck{
				Name: "store",
				Check: func(ctx context.Context) error {
					return store.HealthCheck(ctx)
				},
			},
			transporthttp.ReadinessCheck{
				Name: "provider",
				Check: func(ctx context.Context) error {
					_, err := prov.ListModels(ctx)
					return err
				},
			},
		),
		transporthttp.WithHTTPMiddleware(
			observability.MetricsMiddleware,
			auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints),
		),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithHandler("GET "+cfg.Observability.Metrics.Path, promhttp.Handler()))
	}

	srv := transporthttp.NewServer(eng, store, opts...)

	slog.Info("auskunft starting",
		"version", Version,
		"backend", cfg.LLM.SelectedBackend(),
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"port", cfg.Server.Port)

	return srv.ListenAndServe()
}

// buildAuth assembles the authenticator chain and rate limiter from
// configuration. Type "none" yields an always-allow chain and no limiter.
func buildAuth(cfg config.AuthConfig) (*auth.AuthChain, auth.RateLimiter, error) {
	var chain *auth.AuthChain

	switch cfg.Type {
	case "", "none":
		chain = &auth.AuthChain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}

	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entry := apikey.RawKeyEntry{
				Key: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					ServiceTier: k.ServiceTier,
				},
			}
			if k.TenantID != "" {
				entry.Identity.Metadata = map[string]string{"tenant_id": k.TenantID}
			}
			entries = append(entries, entry)
		}
		chain = &auth.AuthChain{
			Authenticators:  []auth.Authenticator{apikey.New(entries)},
			DefaultDecision: auth.No,
		}

	case "jwt":
		chain = &auth.AuthChain{
			Authenticators: []auth.Authenticator{jwt.New(jwt.Config{
				Issuer:   cfg.JWT.Issuer,
				Audience: cfg.JWT.Audience,
				JWKSURL:  cfg.JWT.JWKSURL,
				CacheTTL: cfg.JWT.CacheTTL,
			})},
			DefaultDecision: auth.No,
		}

	default:
		return nil, nil, fmt.Errorf("unsupported auth type %q (supported: none, apikey, jwt)", cfg.Type)
	}

	var limiter auth.RateLimiter
	if cfg.RateLimit.Enabled {
		tiers := make(map[string]auth.TierConfig, len(cfg.RateLimit.Tiers))
		for name, rpm := range cfg.RateLimit.Tiers {
			tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
		}
		limiter = auth.NewInProcessLimiter(tiers, cfg.RateLimit.DefaultRPM)
	}

	return chain, limiter, nil
}
