package backup

import (
	"context"
	"fmt"
	"io"

	"transit-console/internal/backup/adapter/audit"
	"transit-console/internal/backup/adapter/blob"
	httpadapter "transit-console/internal/backup/adapter/http"
	redispersistence "transit-console/internal/backup/adapter/persistence"
	"transit-console/internal/backup/adapter/persistence/memory"
	mongodbpersistence "transit-console/internal/backup/adapter/persistence/mongodb"
	"transit-console/internal/backup/adapter/persistence/sqlite"
	"transit-console/internal/backup/adapter/security"
	"transit-console/internal/backup/config"
	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/backup/usecase"
	"transit-console/internal/shared/eventbus"
	"transit-console/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stores are the storage ports the module runs on.
type Stores struct {
	Documents repository.DocumentStore
	Blobs     repository.BlobStore
	Metadata  repository.MetadataRepository
	Progress  repository.ProgressPublisher
	// ActivityLog persists audit events; nil disables it.
	ActivityLog eventbus.Handler
}

// BackupModule wires the backup and restore engine.
type BackupModule struct {
	Config   *config.Config
	Registry *model.CollectionRegistry
	Stores   Stores
	EventBus *eventbus.EventBus
	Audit    repository.AuditSink

	Builder   *usecase.SnapshotBuilder
	Snapshots *usecase.SnapshotStore
	Service   *usecase.BackupService
	Sweeper   *usecase.RetentionSweeper
	Engine    *usecase.RestoreEngine
	Runner    *usecase.RestoreRunner

	Tokens  *security.JWTokenService
	Handler *httpadapter.BackupHandler
	Logger  logger.Logger

	closers []io.Closer
}

// NewBackupModule builds the module on MongoDB, the configured blob and
// metadata backends, and Redis when redisClient is non-nil.
func NewBackupModule(
	ctx context.Context,
	cfg *config.Config,
	db *mongo.Database,
	redisClient *redis.Client,
	log logger.Logger,
) (*BackupModule, error) {
	log.Info("Initializing Backup Module...")

	var closers []io.Closer
	fail := func(err error) (*BackupModule, error) {
		closeAll(closers, log)
		return nil, err
	}

	documents := mongodbpersistence.NewDocumentStore(db, log)
	if err := documents.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Warn("Failed to ensure document indexes")
	}

	blobs, closer, err := newBlobStore(ctx, &cfg.Blob, log)
	if err != nil {
		return fail(err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	log.Infof("Blob store initialized (%s)", cfg.Blob.Backend)

	metadata, closer, err := newMetadataRepository(ctx, &cfg.Metadata, db, log)
	if err != nil {
		return fail(err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	log.Infof("Metadata repository initialized (%s)", cfg.Metadata.Backend)

	var progress repository.ProgressPublisher
	if redisClient != nil {
		progress = redispersistence.NewRedisProgressStore(redisClient, cfg.Redis.StreamMaxLength, log)
		log.Info("RedisProgressStore initialized successfully.")
	} else {
		progress = memory.NewProgressStore()
		log.Info("Redis not configured, restore progress kept in memory.")
	}

	stores := Stores{
		Documents:   documents,
		Blobs:       blobs,
		Metadata:    metadata,
		Progress:    progress,
		ActivityLog: mongodbpersistence.NewActivityLogRepository(db, log).Handle,
	}

	module, err := NewBackupModuleWithStores(cfg, stores, log)
	if err != nil {
		return fail(err)
	}
	module.closers = append(closers, module.closers...)
	return module, nil
}

// NewBackupModuleWithStores wires the usecases over already built stores.
func NewBackupModuleWithStores(cfg *config.Config, stores Stores, log logger.Logger) (*BackupModule, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	registry := model.DefaultCollections()

	bus := eventbus.NewEventBus(log)
	var closers []io.Closer
	if stores.ActivityLog != nil {
		bus.Subscribe(eventbus.EventTypeAuditActivity, stores.ActivityLog)
	}
	if cfg.Audit.File != "" {
		fileSink := audit.NewFileAuditSink(audit.FileConfig{
			Path:       cfg.Audit.File,
			MaxSizeMB:  cfg.Audit.MaxSizeMB,
			MaxBackups: cfg.Audit.MaxBackups,
			MaxAgeDays: cfg.Audit.MaxAgeDays,
		})
		bus.Subscribe(eventbus.EventTypeAuditActivity, fileSink.Handle)
		closers = append(closers, fileSink)
		log.Infof("Audit file sink writing to %s", cfg.Audit.File)
	}
	auditSink := audit.NewBusAuditSink(bus)

	reads := usecase.NewLimitedStore(stores.Documents, cfg.ReadConcurrency)
	flat := usecase.NewTreeWalker(reads, log)
	conductors := usecase.NewConductorTreeWalker(reads, cfg.ConductorWorkers, log)
	builder := usecase.NewSnapshotBuilder(registry, flat, conductors, log)

	snapshots := usecase.NewSnapshotStore(stores.Blobs, stores.Metadata, auditSink, usecase.SnapshotStoreConfig{
		BackupFolder:     cfg.BackupFolder,
		UploadAttempts:   cfg.UploadAttempts,
		UploadRetryDelay: cfg.UploadRetryDelay,
	}, log)
	service := usecase.NewBackupService(registry, builder, snapshots, auditSink, log)
	sweeper := usecase.NewRetentionSweeper(service, cfg.RetentionSweepSchedule, log)

	engine := usecase.NewRestoreEngine(stores.Documents, registry, snapshots, builder, auditSink, usecase.RestoreEngineConfig{
		ConductorConcurrency: cfg.ConductorWorkers,
		RecollectFallback:    cfg.RestoreRecollectFallback,
	}, log)
	runner := usecase.NewRestoreRunner(engine, stores.Progress, log)

	var tokens *security.JWTokenService
	if cfg.Auth.JWTSecretKey != "" {
		svc, err := security.NewJWTokenService(security.TokenConfig{
			SecretKey: cfg.Auth.JWTSecretKey,
			Issuer:    cfg.Auth.JWTIssuer,
			TTL:       cfg.Auth.TokenTTL,
		})
		if err != nil {
			closeAll(closers, log)
			return nil, fmt.Errorf("failed to create token service: %w", err)
		}
		tokens = svc
	}

	log.Info("Backup Module initialized successfully.")
	return &BackupModule{
		Config:    cfg,
		Registry:  registry,
		Stores:    stores,
		EventBus:  bus,
		Audit:     auditSink,
		Builder:   builder,
		Snapshots: snapshots,
		Service:   service,
		Sweeper:   sweeper,
		Engine:    engine,
		Runner:    runner,
		Tokens:    tokens,
		Handler:   httpadapter.NewBackupHandler(service, runner, log),
		Logger:    log,
		closers:   closers,
	}, nil
}

// RegisterRoutes mounts the admin API. Every route requires a super
// operator token, so a module without JWT_SECRET_KEY refuses to serve.
func (m *BackupModule) RegisterRoutes(app *fiber.App) error {
	if m.Tokens == nil {
		return fmt.Errorf("JWT_SECRET_KEY must be set to serve the admin API")
	}
	m.Handler.RegisterRoutes(app, httpadapter.SuperOperatorMiddleware(m.Tokens, m.Config.Auth.SuperOperatorRole))
	m.Logger.Info("Backup admin routes registered under /api/v1/admin")
	return nil
}

// StartRetentionSweeper begins the scheduled retention sweep.
func (m *BackupModule) StartRetentionSweeper(ctx context.Context) error {
	return m.Sweeper.Start(ctx)
}

// Stop halts the sweeper, cancels running restores, flushes pending audit
// events and releases the stores.
func (m *BackupModule) Stop(ctx context.Context) error {
	m.Logger.Info("Stopping Backup Module...")
	m.Sweeper.Stop()
	err := m.Runner.Shutdown(ctx)
	if err != nil {
		m.Logger.WithError(err).Warn("Restore runs did not stop in time")
	}
	m.EventBus.Drain()
	closeAll(m.closers, m.Logger)
	m.closers = nil
	return err
}

func newBlobStore(ctx context.Context, cfg *config.BlobConfig, log logger.Logger) (repository.BlobStore, io.Closer, error) {
	switch cfg.Backend {
	case config.BlobBackendS3:
		store, err := blob.NewS3Store(blob.S3Config{
			Bucket:     cfg.S3Bucket,
			Region:     cfg.S3Region,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			PresignTTL: cfg.S3PresignTTL,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.BlobBackendGCS:
		store, err := blob.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile, log)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case config.BlobBackendMemory:
		return memory.NewBlobStore(), nil, nil
	default:
		store, err := blob.NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

func newMetadataRepository(ctx context.Context, cfg *config.MetadataConfig, db *mongo.Database, log logger.Logger) (repository.MetadataRepository, io.Closer, error) {
	switch cfg.Backend {
	case config.MetadataBackendSQLite:
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite metadata store: %w", err)
		}
		return repo, repo, nil
	case config.MetadataBackendMemory:
		return memory.NewMetadataRepository(), nil, nil
	default:
		repo := mongodbpersistence.NewMetadataRepository(db, log)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.WithError(err).Warn("Failed to ensure metadata indexes")
		}
		return repo, nil, nil
	}
}

func closeAll(closers []io.Closer, log logger.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.WithError(err).Warn("Failed to close backup resource")
		}
	}
}
