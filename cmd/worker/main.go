package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"

	"github.com/prooftv/themightyverse-sub000/internal/app"
	"github.com/prooftv/themightyverse-sub000/internal/assets"
	"github.com/prooftv/themightyverse-sub000/internal/credits"
	"github.com/prooftv/themightyverse-sub000/internal/platform/db"
	"github.com/prooftv/themightyverse-sub000/internal/registry"
	"github.com/prooftv/themightyverse-sub000/internal/signing"
	"github.com/prooftv/themightyverse-sub000/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	if cfg.WorkerSignerKey == "" {
		logger.Error("worker signer key must be provided")
		os.Exit(1)
	}
	signer, err := signing.NewSignerFromHex(cfg.WorkerSignerKey)
	if err != nil {
		logger.Error("parse worker signer key", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	registryService := registry.NewService(registry.NewRepository(pool), logger)

	creditsService := credits.NewService(credits.NewRepository(pool), registryService, credits.Config{
		Domain: signing.Domain{
			Name:              "MightyVerseCredits",
			Version:           "1",
			ChainID:           cfg.ChainID,
			VerifyingContract: common.HexToAddress(cfg.CreditContract),
		},
		Operator: signer.Address(),
	}, logger)

	assetsService := assets.NewService(assets.NewRepository(pool), registryService, signing.Domain{
		Name:              "MightyVerseAssets",
		Version:           "1",
		ChainID:           cfg.ChainID,
		VerifyingContract: common.HexToAddress(cfg.AssetContract),
	}, logger)

	mintQueue := jobs.NewMintQueue(creditsService, assetsService, signer, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		MintQueue: mintQueue,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("signer", signer.Address().Hex()))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
