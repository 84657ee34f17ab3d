// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"career-advisor-platform/internal/config"
	"career-advisor-platform/internal/domain/catalog"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/adapter"
	"career-advisor-platform/internal/domain/ports/repository"
	aiAdapters "career-advisor-platform/internal/infra/adapters/ai"
	payAdapters "career-advisor-platform/internal/infra/adapters/payment"
	"career-advisor-platform/internal/infra/db/migrations"
	pg "career-advisor-platform/internal/infra/db/postgres"
	"career-advisor-platform/internal/infra/logging"
	"career-advisor-platform/internal/infra/metrics"
	red "career-advisor-platform/internal/infra/redis"
	"career-advisor-platform/internal/infra/sched"
	"career-advisor-platform/internal/infra/web"
	"career-advisor-platform/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, stub providers)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("application stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting")

	// ---- Postgres ----
	if cfg.Database.Migrate {
		if err := migrations.Up(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Repositories ----
	subRepo := pg.NewSubscriptionRepo(pool)
	eventRepo := pg.NewPaymentEventRepo(pool)
	checkoutRepo := pg.NewCheckoutRepo(pool)
	txManager := pg.NewTxManager(pool)

	var usageRepo repository.UsageRepository = pg.NewUsageRepo(pool)
	if cfg.Usage.Backend == "redis" {
		usageRepo = red.NewUsageStore(redisClient)
	}
	logger.Info().Str("backend", cfg.Usage.Backend).Msg("usage store selected")

	// ---- Catalog and prices ----
	cat := catalog.Default()
	prices, err := buildPriceTable(cfg.Payment)
	if err != nil {
		return err
	}

	// ---- Payment gateways ----
	gateways, err := buildGateways(cfg, logger)
	if err != nil {
		return err
	}

	// ---- AI adapter ----
	ai, err := buildAI(ctx, cfg.AI, logger)
	if err != nil {
		return err
	}

	warn := logging.NewRateLimited(logger, cfg.Log.Cooldown, nil)

	// ---- Use cases ----
	usageUC := usecase.NewUsageUseCase(cat, subRepo, usageRepo, nil, logger)
	gateUC := usecase.NewFeatureGateUseCase(cat, subRepo, usageUC, nil, logger)
	checkoutUC := usecase.NewCheckoutUseCase(prices, gateways, checkoutRepo, red.NewRateLimiter(redisClient), usecase.CheckoutOptions{
		Timeout:    cfg.Payment.Timeout,
		SuccessURL: cfg.Payment.SuccessURL,
		CancelURL:  cfg.Payment.CancelURL,
		RateLimit:  cfg.Payment.CheckoutRateLimit,
	}, logger)
	webhookUC := usecase.NewWebhookUseCase(cat, prices, gateways, subRepo, eventRepo, checkoutRepo, txManager, warn, nil, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, checkoutRepo, eventRepo, txManager, usecase.RoleAuthorizer{AdminRole: cfg.Auth.AdminRole}, logger)
	advisorUC := usecase.NewAdvisorUseCase(ai, cfg.AI.DefaultModel, cfg.AI.MaxPromptTokens, warn, logger)

	// ---- HTTP ----
	srv := web.NewServer(web.Deps{
		Catalog:      cat,
		Gate:         gateUC,
		Usage:        usageUC,
		Checkout:     checkoutUC,
		Webhooks:     webhookUC,
		Subscription: subUC,
		Advisor:      advisorUC,
		Auth:         web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Health: map[string]web.Pinger{
			"postgres": pool,
			"redis":    redisClient,
		},
	}, cfg.HTTP.UpgradeURL, cfg.HTTP.RequestTimeout, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	worker := sched.NewStatsWorker(time.Minute, subRepo, func() (int32, int32, int32) {
		s := pool.Stat()
		return s.TotalConns(), s.IdleConns(), s.AcquiredConns()
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("stopped")
	return nil
}

// buildPriceTable flattens the per-provider price maps from config.
func buildPriceTable(cfg config.PaymentConfig) (*catalog.PriceTable, error) {
	var entries []catalog.PriceEntry
	add := func(provider model.PaymentProvider, pc config.PriceConfig) error {
		for tierName, cycles := range pc {
			tier, err := model.ParseTierID(tierName)
			if err != nil {
				return fmt.Errorf("%s prices: %w", provider, err)
			}
			for cycleName, id := range cycles {
				cycle, err := model.ParseBillingCycle(cycleName)
				if err != nil {
					return fmt.Errorf("%s prices: %w", provider, err)
				}
				entries = append(entries, catalog.PriceEntry{Provider: provider, Tier: tier, Cycle: cycle, PriceID: id})
			}
		}
		return nil
	}
	if err := add(model.ProviderStripe, cfg.Stripe.Prices); err != nil {
		return nil, err
	}
	if err := add(model.ProviderRazorpay, cfg.Razorpay.Plans); err != nil {
		return nil, err
	}
	return catalog.NewPriceTable(entries)
}

// buildGateways returns a gateway per configured provider. In dev mode an
// unconfigured provider is served by a local stub.
func buildGateways(cfg *config.Config, logger *zerolog.Logger) ([]adapter.PaymentGateway, error) {
	var out []adapter.PaymentGateway

	switch {
	case cfg.Payment.Stripe.Enabled():
		g, err := payAdapters.NewStripeGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("stripe gateway: %w", err)
		}
		out = append(out, g)
		logger.Info().Msg("payment provider enabled: stripe")
	case cfg.Runtime.Dev:
		out = append(out, payAdapters.NewNoopPaymentGateway(model.ProviderStripe, "dev-webhook-secret"))
		logger.Warn().Msg("stripe not configured; using stub gateway")
	}

	switch {
	case cfg.Payment.Razorpay.Enabled():
		rc := cfg.Payment.Razorpay
		g, err := payAdapters.NewRazorpayGateway(rc.KeyID, rc.KeySecret, rc.WebhookSecret, rc.TotalCount)
		if err != nil {
			return nil, fmt.Errorf("razorpay gateway: %w", err)
		}
		out = append(out, g)
		logger.Info().Msg("payment provider enabled: razorpay")
	case cfg.Runtime.Dev:
		out = append(out, payAdapters.NewNoopPaymentGateway(model.ProviderRazorpay, "dev-webhook-secret"))
		logger.Warn().Msg("razorpay not configured; using stub gateway")
	}

	if len(out) == 0 {
		logger.Warn().Msg("no payment provider configured; checkout will answer 503")
	}
	return out, nil
}

// buildAI chains the configured LLM providers (OpenAI, then Gemini) behind a
// concurrency cap. With no keys the advisor runs on the offline stub.
func buildAI(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	byProvider := map[string]adapter.AIServiceAdapter{}
	var order []string

	if cfg.OpenAIKey != "" {
		a, err := aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.DefaultModel, cfg.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		byProvider["openai"] = a
		order = append(order, "openai")
	}
	if cfg.GeminiKey != "" {
		a, err := aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.GeminiModel, cfg.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider["gemini"] = a
		order = append(order, "gemini")
	}

	if len(order) == 0 {
		logger.Warn().Msg("no AI provider configured; advisor uses the offline stub")
		return aiAdapters.NewNoopAIAdapter(), nil
	}
	logger.Info().Strs("providers", order).Str("model", cfg.DefaultModel).Msg("AI adapter ready")
	return aiAdapters.NewLimitedAI(aiAdapters.NewMultiAIAdapter(order[0], byProvider, order), cfg.ConcurrentLimit), nil
}
