package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aurahealth/aura/internal/config"
	"github.com/aurahealth/aura/internal/crypto"
	"github.com/aurahealth/aura/internal/frequency"
	v1 "github.com/aurahealth/aura/internal/handler/v1"
	"github.com/aurahealth/aura/internal/notify"
	"github.com/aurahealth/aura/internal/repository"
	"github.com/aurahealth/aura/internal/service"
	"github.com/aurahealth/aura/internal/sharding"
	"github.com/aurahealth/aura/pkg/auth"
	"github.com/aurahealth/aura/pkg/clock"
	"github.com/aurahealth/aura/pkg/database"
	"github.com/aurahealth/aura/pkg/logger"
	"github.com/aurahealth/aura/pkg/metrics"
	"github.com/aurahealth/aura/pkg/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.Int("shard_count", cfg.Sharding.Count),
	)

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	shards, err := database.Connect(cfg.Sharding)
	if err != nil {
		return fmt.Errorf("connecting shards: %w", err)
	}
	if err := shards.Migrate(log); err != nil {
		return fmt.Errorf("migrating shards: %w", err)
	}

	router, err := sharding.NewRouter(cfg.Sharding.Count)
	if err != nil {
		return err
	}

	provider, err := masterKeyProvider(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("resolving master key: %w", err)
	}
	engine, err := crypto.NewEngine(provider, cfg.Encryption.KDFIterations)
	if err != nil {
		return fmt.Errorf("building encryption engine: %w", err)
	}

	collector := metrics.NewCollector("aura", prometheus.DefaultRegisterer)

	patientRepo := repository.NewPatientRepository(shards, router)
	medicationRepo := repository.NewMedicationRepository(shards, router)
	auditRepo := repository.NewAuditRepository(shards)
	userRepo := repository.NewUserRepository(shards)

	auditSvc := service.NewAuditService(auditRepo, collector, log)
	defer auditSvc.Shutdown()

	sender, err := alertSender(cfg.Alerts, log)
	if err != nil {
		return fmt.Errorf("building alert sender: %w", err)
	}
	defer func() { _ = sender.Close() }()

	jwtManager := auth.NewJWTManager(cfg.JWT)
	parser := frequency.NewParser()

	authSvc := service.NewAuthService(userRepo, jwtManager, auditSvc, log)
	patientSvc := service.NewPatientService(patientRepo, engine, auditSvc, collector, log)
	medicationSvc := service.NewMedicationService(medicationRepo, patientRepo, parser, auditSvc, collector, log, cfg.Refill.DefaultThreshold)
	inventorySvc := service.NewInventoryService(medicationRepo, clock.New(), collector, log)
	refillSvc := service.NewRefillService(medicationRepo, sender, cfg.Refill, collector, log)

	handler := v1.NewRouter(v1.RouterDeps{
		AuthSvc:       authSvc,
		PatientSvc:    patientSvc,
		MedicationSvc: medicationSvc,
		InventorySvc:  inventorySvc,
		RefillSvc:     refillSvc,
		JWTManager:    jwtManager,
		Collector:     collector,
		Log:           log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("stopped")
	return nil
}

func masterKeyProvider(cfg config.EncryptionConfig) (crypto.MasterKeyProvider, error) {
	switch cfg.KeySource {
	case config.KeySourceSecretsManager:
		return crypto.NewSecretsManagerProvider(context.Background(), cfg.Region, cfg.SecretID)
	default:
		return crypto.NewStaticProvider(cfg.MasterKey)
	}
}

func alertSender(cfg config.AlertsConfig, log *zap.Logger) (notify.Sender, error) {
	if !cfg.Enabled {
		return notify.NoopSender{}, nil
	}
	return notify.NewKafkaSender(cfg.Brokers, cfg.Topic, log)
}
