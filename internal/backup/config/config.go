package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Blob backends.
const (
	BlobBackendLocal  = "local"
	BlobBackendS3     = "s3"
	BlobBackendGCS    = "gcs"
	BlobBackendMemory = "memory"
)

// Metadata backends.
const (
	MetadataBackendMongo  = "mongo"
	MetadataBackendSQLite = "sqlite"
	MetadataBackendMemory = "memory"
)

const (
	minReadConcurrency = 1
	maxReadConcurrency = 64
)

// BlobConfig selects and configures the snapshot blob store.
type BlobConfig struct {
	Backend       string `env:"BLOB_BACKEND" envDefault:"local" json:"backend"`
	LocalDir      string `env:"BLOB_LOCAL_DIR" envDefault:"./data/blobs" json:"local_dir"`
	PublicBaseURL string `env:"BLOB_PUBLIC_BASE_URL" json:"public_base_url"`

	S3Bucket     string        `env:"S3_BUCKET" json:"s3_bucket"`
	S3Region     string        `env:"S3_REGION" envDefault:"us-east-1" json:"s3_region"`
	S3Endpoint   string        `env:"S3_ENDPOINT" json:"s3_endpoint"`
	S3AccessKey  string        `env:"S3_ACCESS_KEY" json:"-"`
	S3SecretKey  string        `env:"S3_SECRET_KEY" json:"-"`
	S3PresignTTL time.Duration `env:"S3_PRESIGN_TTL" envDefault:"168h" json:"s3_presign_ttl"`

	GCSBucket          string `env:"GCS_BUCKET" json:"gcs_bucket"`
	GCSCredentialsFile string `env:"GCS_CREDENTIALS_FILE" json:"-"`
}

// MetadataConfig selects where backup metadata records live.
type MetadataConfig struct {
	Backend    string `env:"METADATA_BACKEND" envDefault:"mongo" json:"backend"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/backups.db" json:"sqlite_path"`
}

// RedisConfig holds the connection used for restore progress streams.
// Progress stays in memory when Host is empty.
type RedisConfig struct {
	Host            string `env:"REDIS_HOST" json:"host"`
	Port            string `env:"REDIS_PORT" envDefault:"6379" json:"port"`
	Password        string `env:"REDIS_PASSWORD" json:"-"`
	Database        int    `env:"REDIS_DB" envDefault:"0" json:"database"`
	MaxRetries      int    `env:"REDIS_MAX_RETRIES" envDefault:"3" json:"max_retries"`
	PoolSize        int    `env:"REDIS_POOL_SIZE" envDefault:"10" json:"pool_size"`
	MinIdleConns    int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2" json:"min_idle_conns"`
	EnableTLS       bool   `env:"REDIS_ENABLE_TLS" envDefault:"false" json:"enable_tls"`
	ConnMaxIdleTime string `env:"REDIS_CONN_MAX_IDLE_TIME" envDefault:"30m" json:"conn_max_idle_time"`
	ConnMaxLifetime string `env:"REDIS_CONN_MAX_LIFETIME" envDefault:"1h" json:"conn_max_lifetime"`
	StreamMaxLength int64  `env:"PROGRESS_STREAM_MAX_LEN" envDefault:"1000" json:"stream_max_length"`
}

// Enabled reports whether a Redis host is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// GetAddr returns host:port.
func (c *RedisConfig) GetAddr() string {
	return c.Host + ":" + c.Port
}

// AuditConfig controls the rotating audit file. The file sink is off when
// File is empty.
type AuditConfig struct {
	File       string `env:"AUDIT_LOG_FILE" json:"file"`
	MaxSizeMB  int    `env:"AUDIT_LOG_MAX_SIZE_MB" envDefault:"50" json:"max_size_mb"`
	MaxBackups int    `env:"AUDIT_LOG_MAX_BACKUPS" envDefault:"10" json:"max_backups"`
	MaxAgeDays int    `env:"AUDIT_LOG_MAX_AGE_DAYS" envDefault:"90" json:"max_age_days"`
}

// AuthConfig configures operator tokens.
type AuthConfig struct {
	JWTSecretKey      string        `env:"JWT_SECRET_KEY" json:"-"`
	JWTIssuer         string        `env:"JWT_ISSUER" envDefault:"transit-console" json:"jwt_issuer"`
	TokenTTL          time.Duration `env:"JWT_TOKEN_TTL" envDefault:"12h" json:"token_ttl"`
	SuperOperatorRole string        `env:"SUPER_OPERATOR_ROLE" envDefault:"super_operator" json:"super_operator_role"`
}

// Config holds all configuration for the backup module.
type Config struct {
	MongoDBURI       string `env:"MONGODB_URI,required" json:"-"`
	MongoDBDatabase  string `env:"MONGODB_DATABASE" envDefault:"transit_console" json:"mongodb_database"`
	BackupFolder     string `env:"BACKUP_FOLDER" envDefault:"backups" json:"backup_folder"`
	ReadConcurrency  int    `env:"READ_CONCURRENCY" envDefault:"8" json:"read_concurrency"`
	ConductorWorkers int    `env:"CONDUCTOR_CONCURRENCY" envDefault:"4" json:"conductor_concurrency"`

	RetentionSweepSchedule   string        `env:"RETENTION_SWEEP_SCHEDULE" envDefault:"@every 24h" json:"retention_sweep_schedule"`
	UploadAttempts           uint          `env:"UPLOAD_ATTEMPTS" envDefault:"3" json:"upload_attempts"`
	UploadRetryDelay         time.Duration `env:"UPLOAD_RETRY_DELAY" envDefault:"2s" json:"upload_retry_delay"`
	RestoreRecollectFallback bool          `env:"RESTORE_RECOLLECT_FALLBACK" envDefault:"false" json:"restore_recollect_fallback"`

	Blob     BlobConfig     `json:"blob"`
	Metadata MetadataConfig `json:"metadata"`
	Redis    RedisConfig    `json:"redis"`
	Audit    AuditConfig    `json:"audit"`
	Auth     AuthConfig     `json:"auth"`
}

// LoadConfig loads configuration from environment variables and validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load backup configuration from environment: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and incomplete cloud settings, and
// clamps concurrency into its supported range.
func (c *Config) Validate() error {
	if c.MongoDBURI == "" {
		return errors.New("MONGODB_URI environment variable is not set")
	}

	switch c.Blob.Backend {
	case BlobBackendLocal:
		if c.Blob.LocalDir == "" {
			return errors.New("BLOB_LOCAL_DIR is required for the local blob backend")
		}
	case BlobBackendS3:
		if c.Blob.S3Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 blob backend")
		}
	case BlobBackendGCS:
		if c.Blob.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required for the gcs blob backend")
		}
	case BlobBackendMemory:
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend)
	}

	switch c.Metadata.Backend {
	case MetadataBackendMongo, MetadataBackendMemory:
	case MetadataBackendSQLite:
		if c.Metadata.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite metadata backend")
		}
	default:
		return fmt.Errorf("unknown METADATA_BACKEND %q", c.Metadata.Backend)
	}

	if c.ReadConcurrency < minReadConcurrency {
		c.ReadConcurrency = minReadConcurrency
	}
	if c.ReadConcurrency > maxReadConcurrency {
		c.ReadConcurrency = maxReadConcurrency
	}
	if c.ConductorWorkers <= 0 {
		c.ConductorWorkers = 4
	}
	if c.UploadAttempts == 0 {
		c.UploadAttempts = 1
	}
	if c.BackupFolder == "" {
		c.BackupFolder = "backups"
	}
	return nil
}

// DefaultConfig returns a Config for local development.
func DefaultConfig() *Config {
	return &Config{
		MongoDBURI:             "mongodb://localhost:27017",
		MongoDBDatabase:        "transit_console",
		BackupFolder:           "backups",
		ReadConcurrency:        8,
		ConductorWorkers:       4,
		RetentionSweepSchedule: "@every 24h",
		UploadAttempts:         3,
		UploadRetryDelay:       2 * time.Second,
		Blob: BlobConfig{
			Backend:      BlobBackendLocal,
			LocalDir:     "./data/blobs",
			S3Region:     "us-east-1",
			S3PresignTTL: 7 * 24 * time.Hour,
		},
		Metadata: MetadataConfig{
			Backend:    MetadataBackendMongo,
			SQLitePath: "./data/backups.db",
		},
		Redis: RedisConfig{
			Port:            "6379",
			MaxRetries:      3,
			PoolSize:        10,
			MinIdleConns:    2,
			ConnMaxIdleTime: "30m",
			ConnMaxLifetime: "1h",
			StreamMaxLength: 1000,
		},
		Audit: AuditConfig{
			MaxSizeMB:  50,
			MaxBackups: 10,
			MaxAgeDays: 90,
		},
		Auth: AuthConfig{
			JWTIssuer:         "transit-console",
			TokenTTL:          12 * time.Hour,
			SuperOperatorRole: "super_operator",
		},
	}
}
