package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"

	"github.com/prooftv/themightyverse-sub000/internal/app"
	"github.com/prooftv/themightyverse-sub000/internal/assets"
	"github.com/prooftv/themightyverse-sub000/internal/auth"
	"github.com/prooftv/themightyverse-sub000/internal/credits"
	"github.com/prooftv/themightyverse-sub000/internal/guard"
	"github.com/prooftv/themightyverse-sub000/internal/manifest"
	"github.com/prooftv/themightyverse-sub000/internal/observability"
	"github.com/prooftv/themightyverse-sub000/internal/pin"
	"github.com/prooftv/themightyverse-sub000/internal/platform/cache"
	"github.com/prooftv/themightyverse-sub000/internal/platform/db"
	"github.com/prooftv/themightyverse-sub000/internal/registry"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
	"github.com/prooftv/themightyverse-sub000/internal/signing"
	"github.com/prooftv/themightyverse-sub000/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	sessionManager := shared.NewSessionManager(redisClient, "verse_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	issuer := manifest.NewIssuer([]byte(cfg.ManifestSecret), "verse", cfg.ManifestTTL)

	registryRepo := registry.NewRepository(dbpool)
	registryService := registry.NewService(registryRepo, logger)
	if err := registryService.Bootstrap(ctx, cfg.SuperAdmin()); err != nil {
		logger.Error("bootstrap super admin", slog.Any("error", err))
		os.Exit(1)
	}
	registryHandler := registry.NewHandler(logger, registryService)

	creditDomain := signing.Domain{
		Name:              "MightyVerseCredits",
		Version:           "1",
		ChainID:           cfg.ChainID,
		VerifyingContract: common.HexToAddress(cfg.CreditContract),
	}
	creditsRepo := credits.NewRepository(dbpool)
	creditsService := credits.NewService(creditsRepo, registryService, credits.Config{
		Domain:   creditDomain,
		Operator: cfg.Operator(),
	}, logger)
	creditsHandler := credits.NewHandler(logger, creditsService, metrics)

	assetDomain := signing.Domain{
		Name:              "MightyVerseAssets",
		Version:           "1",
		ChainID:           cfg.ChainID,
		VerifyingContract: common.HexToAddress(cfg.AssetContract),
	}
	assetsRepo := assets.NewRepository(dbpool)
	assetsService := assets.NewService(assetsRepo, registryService, assetDomain, logger)
	assetsHandler := assets.NewHandler(logger, assetsService, metrics)

	var pinStore pin.Store = pin.NewMemoryStore()
	if cfg.PinAPIURL != "" {
		pinStore = pin.NewHTTPStore(cfg.PinAPIURL, cfg.PinAPIToken)
	}
	pinHandler := pin.NewHandler(logger, pinStore, creditsService)

	challengeStore := auth.NewChallengeStore(redisClient)
	loginRepo := auth.NewLoginRepository(dbpool)
	authService := auth.NewService(challengeStore, registryService, issuer, loginRepo, logger, cfg.AuthDevLogin)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	routeGuard := guard.New(issuer, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		Guard:           routeGuard,
		AuthHandler:     authHandler,
		RegistryHandler: registryHandler,
		CreditsHandler:  creditsHandler,
		AssetsHandler:   assetsHandler,
		PinHandler:      pinHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
