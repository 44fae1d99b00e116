package di

import (
	"context"
	"fmt"
	"sync"
	"time"

	"transit-console/internal/backup"
	"transit-console/internal/backup/config"
	"transit-console/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const shutdownTimeout = 30 * time.Second

// Container owns the process-wide connections and the backup module.
type Container struct {
	mu sync.RWMutex
	// Database connections
	MongoClient *mongo.Client
	MongoDB     *mongo.Database
	Redis       *redis.Client
	// Module instances
	BackupModule *backup.BackupModule
	// Configuration
	Config *config.Config
	// Logger
	Logger logger.Logger
}

// NewContainer creates an empty container.
func NewContainer(log logger.Logger) *Container {
	if log == nil {
		log = logger.NewLogger()
	}
	return &Container{Logger: log}
}

// Initialize connects to MongoDB and, when configured, Redis, then builds
// the backup module.
func (c *Container) Initialize(ctx context.Context, cfg *config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Config = cfg

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	c.MongoClient = mongoClient
	c.MongoDB = mongoClient.Database(cfg.MongoDBDatabase)
	c.Logger.Info("MongoDB connection established successfully")

	if cfg.Redis.Enabled() {
		client := config.NewRedisClient(&cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			c.Logger.WithError(err).Warnf("Redis at %s unreachable, restore progress kept in memory", cfg.Redis.GetAddr())
			_ = client.Close()
		} else {
			c.Redis = client
			c.Logger.Info("Redis connection established successfully")
		}
	}

	module, err := backup.NewBackupModule(ctx, cfg, c.MongoDB, c.Redis, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create backup module: %w", err)
	}
	c.BackupModule = module
	return nil
}

// GetBackupModule returns the backup module instance.
func (c *Container) GetBackupModule() *backup.BackupModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.BackupModule
}

// HealthCheck pings the backing services.
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.MongoClient != nil {
		if err := c.MongoClient.Ping(ctx, nil); err != nil {
			return fmt.Errorf("MongoDB health check failed: %w", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("Redis health check failed: %w", err)
		}
	}
	return nil
}

// Cleanup stops the module and then closes connections, in reverse order of
// initialization.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.BackupModule != nil {
		if err := c.BackupModule.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop backup module: %w", err))
		}
		c.BackupModule = nil
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
		c.Redis = nil
	}
	if c.MongoClient != nil {
		if err := c.MongoClient.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect MongoDB: %w", err))
		}
		c.MongoClient = nil
		c.MongoDB = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// Close shuts everything down with a timeout.
func (c *Container) Close() error {
	c.Logger.Info("Closing DI Container resources...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := c.Cleanup(ctx); err != nil {
		c.Logger.WithError(err).Warn("Cleanup errors occurred")
		return err
	}

	c.Logger.Info("DI Container resources closed.")
	return nil
}
