package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-billing/internal/config"
	"course-billing/internal/infra/api"
	pg "course-billing/internal/infra/db/postgres"
	"course-billing/internal/infra/logging"
	"course-billing/internal/infra/metrics"
	pay "course-billing/internal/infra/payment"
	red "course-billing/internal/infra/redis"
	"course-billing/internal/infra/sched"
	"course-billing/internal/infra/web"
	"course-billing/internal/infra/worker"
	"course-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	codeRepo := pg.NewAccessCodeRepoCacheDecorator(pg.NewAccessCodeRepo(pool), redisClient)
	registrationRepo := pg.NewRegistrationRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Provider gateway ----
	gateway := pay.NewStripeCheckoutGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.BaseURL, nil)

	// ---- Use cases ----
	reconcileUC := usecase.NewReconcileUseCase(paymentRepo, codeRepo, registrationRepo, txManager, logger)
	checkoutUC := usecase.NewCheckoutUseCase(
		paymentRepo, codeRepo, gateway,
		cfg.Payment.Stripe.SuccessURL, cfg.Payment.Stripe.CancelURL,
		logger,
	)
	statusUC := usecase.NewStatusUseCase(paymentRepo, registrationRepo, gateway, logger)
	codeUC := usecase.NewCodeUseCase(codeRepo, paymentRepo, logger)

	// ---- Detached reconciliation workers ----
	pool2 := worker.NewPool(cfg.Reconciler.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()

	// ---- Stale payment sweeper ----
	reconciler := sched.NewPaymentReconciler(
		reconcileUC, paymentRepo, gateway,
		cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter,
		logger,
	)
	go reconciler.Start(ctx)

	// ---- Pool stats feed ----
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Public API ----
	apiSrv := api.NewServer(
		checkoutUC, statusUC, reconcileUC,
		pool2, rateLimiter,
		cfg.Payment.Stripe.WebhookSecret,
		cfg.RateLimit.StatusPerMinute,
		logger,
	)
	publicServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiSrv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("public api listening")
		if err := publicServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("public api server")
		}
	}()

	// ---- Admin API ----
	authManager := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	adminSrv := web.NewServer(codeUC, authManager, cfg.Admin.APIKey, logger)
	adminMux := http.NewServeMux()
	adminSrv.RegisterRoutes(adminMux)
	adminServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           adminMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Int("port", cfg.Admin.Port).Msg("admin api listening")
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin api server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = publicServer.Shutdown(shutdownCtx)
	_ = adminServer.Shutdown(shutdownCtx)
	cancel()
}
