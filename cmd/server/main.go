package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/taxlakay/taxdrop/internal/address"
	"github.com/taxlakay/taxdrop/internal/api"
	"github.com/taxlakay/taxdrop/internal/config"
	"github.com/taxlakay/taxdrop/internal/database"
	"github.com/taxlakay/taxdrop/internal/drive"
	"github.com/taxlakay/taxdrop/internal/ledger"
	"github.com/taxlakay/taxdrop/internal/repository"
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

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.WithError(err).Fatal("ensure schema")
	}

	repo := repository.NewSubmissionRepository(pool)
	led := ledger.New(ledger.NewPostgresStore(pool), cfg.AdminToken)
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_PROGRESS_TOKEN is not set; status writes are disabled")
	}

	dr, err := drive.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("init drive storage")
	}
	if err := dr.EnsureBucket(ctx); err != nil {
		log.WithError(err).Fatal("ensure drive bucket")
	}

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	reconciler := address.NewReconciler(providerFromConfig(cfg, log))

	srv := api.New(cfg, reconciler, led, repo, dr, queueClient, log)
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}

// providerFromConfig selects the verification adapter. Returning nil leaves
// the reconciler unconfigured, which degrades to always prompting.
func providerFromConfig(cfg *config.Config, log *logrus.Logger) address.Provider {
	switch {
	case cfg.AddressProvider == "usps" && cfg.USPSUserID != "":
		return address.NewUSPSProvider(cfg.USPSUserID)
	case cfg.AddressProvider == "smarty" && cfg.SmartyAuthID != "" && cfg.SmartyAuthToken != "":
		return address.NewSmartyProvider(cfg.SmartyAuthID, cfg.SmartyAuthToken)
	}
	log.WithField("provider", cfg.AddressProvider).Warn("address verification is not configured")
	return nil
}
