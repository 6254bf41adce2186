package main

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"github.com/roadline/roadline/internal/app"
	"github.com/roadline/roadline/internal/billing"
	"github.com/roadline/roadline/internal/billing/mercadopago"
	"github.com/roadline/roadline/internal/estimates"
	"github.com/roadline/roadline/internal/insurance"
	"github.com/roadline/roadline/internal/observability"
	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/platform/cache"
	"github.com/roadline/roadline/internal/platform/db"
	"github.com/roadline/roadline/internal/realtime"
	"github.com/roadline/roadline/internal/shared"
	"github.com/roadline/roadline/internal/towing"
	"github.com/roadline/roadline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	broadcaster := realtime.NewBroadcaster(redisClient, logger)
	clock := shared.SystemClock{}

	enqueuer := jobs.NewEnqueuer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, logger)
	defer func() {
		if err := enqueuer.Close(); err != nil {
			logger.Warn("enqueuer close", slog.Any("error", err))
		}
	}()

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, broadcaster, logger)
	ordersService.SetNotifier(enqueuer)
	ordersHandler := orders.NewHandler(logger, ordersService)

	estimatesRepo := estimates.NewRepository(pool)
	estimatesService := estimates.NewService(estimatesRepo, ordersService, broadcaster, enqueuer, clock, cfg.Currency, logger)
	estimatesHandler := estimates.NewHandler(logger, estimatesService)

	towingRepo := towing.NewRepository(pool)
	towingService := towing.NewService(towingRepo, ordersService, broadcaster, clock, logger)
	towingHandler := towing.NewHandler(logger, towingService)

	insuranceRepo := insurance.NewRepository(pool)
	insuranceService := insurance.NewService(insuranceRepo, ordersService, broadcaster, clock, logger)
	insuranceHandler := insurance.NewHandler(logger, insuranceService)

	var gateway billing.Gateway
	if cfg.ProviderAccessToken != "" {
		mp, err := mercadopago.New(cfg.ProviderAccessToken, logger)
		if err != nil {
			logger.Error("init payment gateway", slog.Any("error", err))
			os.Exit(1)
		}
		gateway = mp
	} else {
		logger.Warn("payment provider token not set, invoice creation disabled")
	}

	var verifier billing.ChainVerifier
	if cfg.ChainEnabled() {
		rpcVerifier, err := billing.NewRPCVerifier(cfg.ChainRPCURL, cfg.ChainID, cfg.ChainTreasury, cfg.ChainMinConfirmations, http.DefaultClient)
		if err != nil {
			logger.Error("init chain verifier", slog.Any("error", err))
			os.Exit(1)
		}
		verifier = rpcVerifier
	}

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, ordersService, gateway, verifier, enqueuer,
		broadcaster, clock, cfg.ReplayWindow, big.NewInt(cfg.ChainWeiPerUnit), logger)
	billingHandler := billing.NewHandler(logger, billingService)

	metrics := observability.NewMetrics()
	billingService.SetMetrics(metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		OrdersHandler:    ordersHandler,
		EstimatesHandler: estimatesHandler,
		TowingHandler:    towingHandler,
		InsuranceHandler: insuranceHandler,
		BillingHandler:   billingHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
