package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
	"github.com/madeyra2980/backend-form/pkg/carcheck/classifier/hosted"
	"github.com/madeyra2980/backend-form/pkg/carcheck/classifier/local"
	"github.com/madeyra2980/backend-form/pkg/carcheck/objectkey"
	"github.com/madeyra2980/backend-form/pkg/carcheck/repo/cache"
	"github.com/madeyra2980/backend-form/pkg/carcheck/repo/memory"
	repomongo "github.com/madeyra2980/backend-form/pkg/carcheck/repo/mongo"
	repopg "github.com/madeyra2980/backend-form/pkg/carcheck/repo/postgres"
	fsstorage "github.com/madeyra2980/backend-form/pkg/carcheck/storage/fs"
	memorystorage "github.com/madeyra2980/backend-form/pkg/carcheck/storage/memory"
	s3storage "github.com/madeyra2980/backend-form/pkg/carcheck/storage/s3"
)

// Database and storage kinds derived from DATABASE_URL and STORAGE_URL.
const (
	DatabaseMemory   = "memory"
	DatabaseMongo    = "mongodb"
	DatabasePostgres = "postgres"

	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Stored-name strategies.
const (
	KeyGeneratorTimestamp = "timestamp"
	KeyGeneratorUUID      = "uuid"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "1015",
		Environment:  "development",
		LogLevel:     "info",
		CORSOrigin:   "*",
		MaxFileSize:  5 << 20,
		DatabaseURL:  DatabaseMemory,
		DatabaseType: DatabaseMemory,
		DatabaseName: "carchecker",
		AutoMigrate:  true,
		StorageURL:   "file://./uploads",
		StorageType:  StorageFS,
		StorageDir:   "./uploads",
		KeyGenerator: KeyGeneratorTimestamp,
		S3: S3Config{
			Region:          "us-east-1",
			PresignDuration: 3600,
		},
		Classifier: ClassifierConfig{
			HostedURL:       hosted.DefaultBaseURL,
			HostedProjectID: hosted.DefaultProjectID,
			HostedVersion:   hosted.DefaultVersion,
			LocalURL:        local.DefaultBaseURL,
			Timeout:         30 * time.Second,
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  5 * time.Minute,
		},
	}
}

// ServerConfig represents server configuration for the carcheck service.
// Fields with env tags are read by WithEnv; the *Type fields and the
// storage location are derived from the URLs.
type ServerConfig struct {
	Port          string `env:"PORT" env-default:"1015"`
	Environment   string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel      string `env:"LOG_LEVEL" env-default:"info"`
	CORSOrigin    string `env:"CORS_ORIGIN" env-default:"*"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	MaxFileSize   int64  `env:"MAX_FILE_SIZE" env-default:"5242880"`

	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL" env-default:"memory"`
	DatabaseName string `env:"DATABASE_NAME" env-default:"carchecker"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" env-default:"true"`
	DatabaseType string

	// Storage configuration
	StorageURL  string `env:"STORAGE_URL" env-default:"file://./uploads"`
	StorageType string
	StorageDir  string
	S3          S3Config

	// KeyGenerator names stored files: timestamp (file-<ms>-<rand><ext>) or uuid
	KeyGenerator string `env:"OBJECT_KEY_GENERATOR" env-default:"timestamp"`

	Classifier ClassifierConfig
	Cache      CacheConfig
}

// S3Config holds S3 credentials and options. Bucket comes from STORAGE_URL.
type S3Config struct {
	Bucket          string
	Region          string `env:"AWS_REGION" env-default:"us-east-1"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint        string `env:"S3_ENDPOINT"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE"`
	PresignDuration int    `env:"S3_PRESIGN_SECONDS" env-default:"3600"`
	CreateBucket    bool   `env:"S3_CREATE_BUCKET"`
}

// ClassifierConfig selects and configures the classification backend.
type ClassifierConfig struct {
	HostedAPIKey    string        `env:"ROBOFLOW_API_KEY"`
	HostedProjectID string        `env:"ROBOFLOW_PROJECT_ID" env-default:"rust-and-scrach-cbhdg"`
	HostedVersion   string        `env:"ROBOFLOW_VERSION" env-default:"1"`
	HostedURL       string        `env:"ROBOFLOW_URL" env-default:"https://detect.roboflow.com"`
	LocalURL        string        `env:"PYTHON_AI_URL" env-default:"http://localhost:8000"`
	UseLocal        bool          `env:"USE_PYTHON_AI"`
	Timeout         time.Duration `env:"CLASSIFIER_TIMEOUT" env-default:"30s"`
}

// CacheConfig sizes the read-through record cache. Size 0 disables it.
type CacheConfig struct {
	Size int           `env:"CACHE_SIZE" env-default:"256"`
	TTL  time.Duration `env:"CACHE_TTL" env-default:"5m"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabaseMongo, DatabasePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("database_type must be %q, %q or %q", DatabaseMemory, DatabaseMongo, DatabasePostgres)
	}
	if c.DatabaseType == DatabaseMongo && c.DatabaseName == "" {
		return errors.New("database_name is required when using mongodb")
	}

	switch c.StorageType {
	case StorageMemory:
	case StorageFS:
		if c.StorageDir == "" {
			return errors.New("storage directory is required for filesystem storage")
		}
	case StorageS3:
		if c.S3.Bucket == "" {
			return errors.New("S3 bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	if _, err := c.BuildKeyGenerator(); err != nil {
		return err
	}

	if c.MaxFileSize <= 0 {
		return errors.New("max_file_size must be positive")
	}
	if c.Classifier.Timeout <= 0 {
		return errors.New("classifier_timeout must be positive")
	}
	if c.Classifier.UseLocal && c.Classifier.LocalURL == "" {
		return errors.New("python_ai_url is required when USE_PYTHON_AI is set")
	}
	if c.Cache.Size < 0 {
		return errors.New("cache_size must not be negative")
	}
	if c.Cache.Size > 0 && c.Cache.TTL <= 0 {
		return errors.New("cache_ttl must be positive when the cache is enabled")
	}

	return nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// CloseFunc releases a connection opened by a Build function.
type CloseFunc func(ctx context.Context) error

func noopClose(context.Context) error { return nil }

// BuildService creates a Service instance from the server configuration.
// The returned CloseFunc releases database connections.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (carcheck.Service, CloseFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, closeRepo, err := c.BuildRepository(ctx, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.BuildBlobStore(ctx)
	if err != nil {
		_ = closeRepo(ctx)
		return nil, nil, fmt.Errorf("failed to build storage backend %s: %w", c.StorageType, err)
	}

	classifier, predictor := c.BuildClassifier(logger)

	keyGen, err := c.BuildKeyGenerator()
	if err != nil {
		_ = closeRepo(ctx)
		return nil, nil, err
	}

	options := []carcheck.Option{
		carcheck.WithRepository(repo),
		carcheck.WithBlobStore(c.StorageType, store),
		carcheck.WithKeyGenerator(keyGen),
		carcheck.WithClassifier(classifier),
		carcheck.WithPredictor(predictor),
		carcheck.WithLogger(logger),
	}
	if c.PublicBaseURL != "" {
		options = append(options, carcheck.WithPublicBaseURL(c.PublicBaseURL))
	}

	svc, err := carcheck.New(options...)
	if err != nil {
		_ = closeRepo(ctx)
		return nil, nil, err
	}
	return svc, closeRepo, nil
}

// BuildKeyGenerator returns the stored-name strategy named by KeyGenerator.
// An empty value selects the timestamp strategy.
func (c *ServerConfig) BuildKeyGenerator() (objectkey.Generator, error) {
	switch c.KeyGenerator {
	case "", KeyGeneratorTimestamp:
		return objectkey.NewTimestampGenerator(), nil
	case KeyGeneratorUUID:
		return objectkey.NewUUIDGenerator(), nil
	default:
		return nil, fmt.Errorf("invalid object key generator: %s (valid: %s, %s)", c.KeyGenerator, KeyGeneratorTimestamp, KeyGeneratorUUID)
	}
}

// BuildRepository creates a Repository based on the configuration. Database
// backed repositories are wrapped in the read-through cache when enabled.
func (c *ServerConfig) BuildRepository(ctx context.Context, logger *slog.Logger) (carcheck.Repository, CloseFunc, error) {
	var (
		repo    carcheck.Repository
		closeFn CloseFunc = noopClose
	)

	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(), noopClose, nil

	case DatabasePostgres:
		if c.AutoMigrate {
			if err := repopg.Migrate(c.DatabaseURL, logger); err != nil {
				return nil, nil, err
			}
		}
		pool, err := repopg.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo = repopg.NewWithPool(pool)
		closeFn = func(context.Context) error {
			pool.Close()
			return nil
		}

	case DatabaseMongo:
		client, err := repomongo.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		mrepo := repomongo.New(client.Database(c.DatabaseName))
		if err := mrepo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		repo = mrepo
		closeFn = client.Disconnect

	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	logger.Info("repository ready", "type", c.DatabaseType, "cache_size", c.Cache.Size)
	if c.Cache.Size > 0 {
		repo = cache.New(repo, c.Cache.Size, c.Cache.TTL)
	}
	return repo, closeFn, nil
}

// BuildBlobStore creates the BlobStore named by StorageType
func (c *ServerConfig) BuildBlobStore(ctx context.Context) (carcheck.BlobStore, error) {
	switch c.StorageType {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFS:
		return fsstorage.New(fsstorage.Config{BaseDir: c.StorageDir})

	case StorageS3:
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PresignDuration:        c.S3.PresignDuration,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageType)
	}
}

// BuildClassifier returns the upload classifier and the predictor used for
// the analysis endpoint. The hosted client always serves predictions; the
// local service replaces it for uploads when enabled.
func (c *ServerConfig) BuildClassifier(logger *slog.Logger) (carcheck.Classifier, carcheck.Predictor) {
	hostedClient := hosted.New(hosted.Config{
		BaseURL:   c.Classifier.HostedURL,
		APIKey:    c.Classifier.HostedAPIKey,
		ProjectID: c.Classifier.HostedProjectID,
		Version:   c.Classifier.HostedVersion,
		Timeout:   c.Classifier.Timeout,
	})

	if c.Classifier.UseLocal {
		return local.New(local.Config{
			BaseURL: c.Classifier.LocalURL,
			Timeout: c.Classifier.Timeout,
		}, local.WithLogger(logger)), hostedClient
	}

	if c.Classifier.HostedAPIKey == "" && logger != nil {
		logger.Warn("ROBOFLOW_API_KEY is not set, uploads will return the original image")
	}
	return hostedClient, hostedClient
}
