package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/taxlakay/taxdrop/internal/config"
	"github.com/taxlakay/taxdrop/internal/csvlog"
	"github.com/taxlakay/taxdrop/internal/database"
	"github.com/taxlakay/taxdrop/internal/drive"
	"github.com/taxlakay/taxdrop/internal/mail"
	"github.com/taxlakay/taxdrop/internal/repository"
	"github.com/taxlakay/taxdrop/internal/sheets"
	"github.com/taxlakay/taxdrop/internal/signing"
	"github.com/taxlakay/taxdrop/internal/worker"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if !cfg.EmailConfigured() {
		log.Warn("EMAIL_USER/EMAIL_PASS/OWNER_EMAIL missing; email tasks will fail until configured")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.WithError(err).Fatal("ensure schema")
	}
	repo := repository.NewSubmissionRepository(pool)

	dr, err := drive.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("init drive storage")
	}
	if err := dr.EnsureBucket(ctx); err != nil {
		log.WithError(err).Fatal("ensure drive bucket")
	}

	processor := worker.NewProcessor(
		cfg,
		repo,
		dr,
		mail.New(cfg),
		csvlog.New(cfg.CSVLogPath),
		sheets.New(cfg.SheetWebhookURL),
		signing.NewSigner(cfg.SigningSecret),
		log,
	)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.WorkerCount,
	})

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(processor.Handler()); err != nil {
		log.WithError(err).Error("worker stopped")
		os.Exit(1)
	}
}
