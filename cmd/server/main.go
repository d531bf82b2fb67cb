package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	billingmod "github.com/aulcerts/entitlement/modules/billing"
	"github.com/aulcerts/entitlement/pkg/billing"
	"github.com/aulcerts/entitlement/pkg/config"
	"github.com/aulcerts/entitlement/pkg/entitlement"
	"github.com/aulcerts/entitlement/pkg/httpserver"
	"github.com/aulcerts/entitlement/pkg/identity"
	"github.com/aulcerts/entitlement/pkg/logger"
	"github.com/aulcerts/entitlement/pkg/pg"
	"github.com/aulcerts/entitlement/pkg/redis"
	"github.com/aulcerts/entitlement/pkg/requestid"
)

type appConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	// Provider selects the active payment provider adapter.
	Provider    string `env:"BILLING_PROVIDER" envDefault:"stripe"`
	CatalogPath string `env:"BILLING_CATALOG_PATH" envDefault:"config/plans.yaml"`
	// DedupTTL bounds how long processed webhook event ids are remembered.
	DedupTTL time.Duration `env:"BILLING_WEBHOOK_DEDUP_TTL" envDefault:"24h"`
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Environment, "entitlement"))
	logger.SetAsDefault(log)

	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	var redisCfg redis.Config
	config.MustLoad(&redisCfg)
	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	provider, sigHeader, err := buildProvider(appCfg.Provider)
	if err != nil {
		return err
	}
	log.Info("billing provider configured", slog.String("provider", appCfg.Provider))

	catalog, err := billing.LoadCatalog(appCfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("plan catalog: %w", err)
	}

	var svcCfg entitlement.Config
	config.MustLoad(&svcCfg)
	svc := entitlement.NewService(
		svcCfg,
		provider,
		catalog,
		entitlement.NewPGStore(pool),
		entitlement.NewRedisDeduper(redisClient, appCfg.DedupTTL),
		log,
	)

	var idCfg identity.Config
	config.MustLoad(&idCfg)
	verifier, err := identity.NewVerifier(idCfg)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	var modCfg billingmod.Config
	config.MustLoad(&modCfg)
	if modCfg.SignatureHeader == "" {
		modCfg.SignatureHeader = sigHeader
	}
	module := billingmod.NewModule(modCfg, svc, log)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(chimw.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(log))
	r.Get("/readyz", httpserver.HealthCheckHandler(log,
		pg.Healthcheck(pool),
		redis.Healthcheck(redisClient),
	))
	r.Mount("/", module.Router(identity.Middleware(verifier)))

	var srvCfg httpserver.Config
	config.MustLoad(&srvCfg)
	return httpserver.New(srvCfg, log).Run(ctx, r)
}

func buildProvider(name string) (billing.Provider, string, error) {
	switch name {
	case "stripe":
		var cfg billing.StripeConfig
		config.MustLoad(&cfg)
		p, err := billing.NewStripeProvider(cfg)
		if err != nil {
			return nil, "", fmt.Errorf("stripe provider: %w", err)
		}
		return p, "Stripe-Signature", nil
	case "paddle":
		var cfg billing.PaddleConfig
		config.MustLoad(&cfg)
		p, err := billing.NewPaddleProvider(cfg)
		if err != nil {
			return nil, "", fmt.Errorf("paddle provider: %w", err)
		}
		return p, "Paddle-Signature", nil
	default:
		return nil, "", fmt.Errorf("unknown billing provider: %s", name)
	}
}
