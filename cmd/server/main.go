package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/anchor"
	"github.com/donor-eligibility-engine/internal/api"
	"github.com/donor-eligibility-engine/internal/config"
	"github.com/donor-eligibility-engine/internal/criteria"
	"github.com/donor-eligibility-engine/internal/database"
	"github.com/donor-eligibility-engine/internal/domain"
	"github.com/donor-eligibility-engine/internal/extraction"
	"github.com/donor-eligibility-engine/internal/lock"
	"github.com/donor-eligibility-engine/internal/metrics"
	"github.com/donor-eligibility-engine/internal/queue"
	"github.com/donor-eligibility-engine/internal/repository"
	"github.com/donor-eligibility-engine/internal/rules"
	"github.com/donor-eligibility-engine/internal/service"
	"github.com/donor-eligibility-engine/internal/worker"
	"github.com/donor-eligibility-engine/pkg/embedding"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	log := newLogger(cfg.Logging)
	log.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting donor eligibility engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, cfg.Database, log)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrationRunner(database.URL(cfg.Database), cfg.Database.MigrationsPath, log)
	if err != nil {
		log.Fatalf("Migration setup failed: %v", err)
	}
	if err := migrator.Up(); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}
	if err := migrator.Close(); err != nil {
		log.WithError(err).Warn("Closing migration runner failed")
	}

	catalog, err := criteria.Load()
	if err != nil {
		log.Fatalf("Loading criterion catalog failed: %v", err)
	}
	registry := rules.NewRegistry(log)

	donorRepo := repository.NewDonorRepo(db.Pool, log)
	docRepo := repository.NewDocumentRepo(db.Pool, log)
	evalRepo := repository.NewEvaluationRepo(db.Pool, log)
	eligRepo := repository.NewEligibilityRepo(db.Pool, log)
	labRepo := repository.NewLabResultRepo(db.Pool, log)

	anchorStore, err := newAnchorStore(cfg, log)
	if err != nil {
		log.Fatalf("Anchor store setup failed: %v", err)
	}
	defer func() {
		if err := anchorStore.Close(); err != nil {
			log.WithError(err).Warn("Closing anchor store failed")
		}
	}()

	embedder, err := embedding.NewResilientEmbedder(
		embedding.NewClient(cfg.Embedding), cfg.Embedding, cfg.Cache, log)
	if err != nil {
		log.Fatalf("Embedding client setup failed: %v", err)
	}
	defer func() {
		if err := embedder.Close(); err != nil {
			log.WithError(err).Warn("Closing embedding client failed")
		}
	}()

	evaluator := service.NewEvaluator(donorRepo, evalRepo, labRepo, eligRepo, catalog, registry, log)
	trigger := service.NewTrigger(docRepo, evaluator,
		lock.NewPostgresManager(db.Pool, log), cfg.Trigger, log)
	snapshots := service.NewSnapshotBuilder(donorRepo, labRepo, eligRepo, log)
	predictor := service.NewPredictor(snapshots, anchorStore, embedder, cfg.Predictor, log)

	m := metrics.New()

	if cfg.Extraction.BaseURL != "" {
		processor := extraction.NewClient(cfg.Extraction, docRepo, evalRepo, labRepo, catalog, log)
		pool := worker.NewPool(queue.New(db.Pool, log), docRepo, processor, trigger, m, cfg.Worker, log)
		go func() {
			if err := pool.Run(ctx); err != nil {
				log.WithError(err).Error("Worker pool stopped with error")
				stop()
			}
		}()
	} else {
		log.Warn("No extraction service configured, document worker pool disabled")
	}

	go trigger.RunReconciliation(ctx, docRepo)

	server := api.NewServer(cfg.Server, cfg.Logging.Level, api.Deps{
		Donors:    donorRepo,
		Documents: docRepo,
		Evaluator: evaluator,
		Trigger:   trigger,
		Predictor: predictor,
		Metrics:   m,
		Log:       log,
	})
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	log.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.Output == "stderr" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(os.Stdout)
	}
	return log
}

func newAnchorStore(cfg *domain.Config, log *logrus.Logger) (anchor.Store, error) {
	if cfg.Anchor.Backend == "sqlite" {
		return anchor.NewEmbeddedStore(cfg.Anchor.SQLitePath, log)
	}
	return anchor.NewPostgresStore(database.URL(cfg.Database), log)
}
