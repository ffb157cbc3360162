package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv reads the environment into the config with cleanenv and derives
// the database and storage backends from their URLs.
//
// Database:
//
//	DATABASE_URL - "memory" (default), "mongodb://..." or "postgres://..."
//	DATABASE_NAME - MongoDB database name (default: "carchecker")
//
// Storage:
//
//	STORAGE_URL - one of:
//	              - "memory://" - in-memory storage
//	              - "file://./uploads" - filesystem storage (default)
//	              - "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
//
// S3 credentials come from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and
// AWS_REGION; query parameters on STORAGE_URL override region and endpoint.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		if err := applyDatabaseURL(c); err != nil {
			return err
		}
		return applyStorageURL(c)
	}
}

// WithPort overrides the listen port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		c.Port = port
		return nil
	}
}

// WithDatabaseURL sets DATABASE_URL and derives the database type
func WithDatabaseURL(databaseURL string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseURL = databaseURL
		return applyDatabaseURL(c)
	}
}

// WithStorageURL sets STORAGE_URL and derives the storage backend
func WithStorageURL(storageURL string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = storageURL
		return applyStorageURL(c)
	}
}

// WithObjectKeyGenerator sets the stored-name strategy.
// Valid values: "timestamp", "uuid"
func WithObjectKeyGenerator(generator string) Option {
	return func(c *ServerConfig) error {
		switch generator {
		case KeyGeneratorTimestamp, KeyGeneratorUUID:
		default:
			return fmt.Errorf("invalid object key generator: %s (valid: %s, %s)", generator, KeyGeneratorTimestamp, KeyGeneratorUUID)
		}
		c.KeyGenerator = generator
		return nil
	}
}

// WithLocalClassifier switches uploads to the local AI service at baseURL
func WithLocalClassifier(baseURL string) Option {
	return func(c *ServerConfig) error {
		c.Classifier.UseLocal = true
		if baseURL != "" {
			c.Classifier.LocalURL = baseURL
		}
		return nil
	}
}

// applyDatabaseURL derives DatabaseType from DatabaseURL
func applyDatabaseURL(c *ServerConfig) error {
	dbURL := strings.TrimSpace(c.DatabaseURL)

	switch {
	case dbURL == "" || dbURL == "memory":
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = DatabaseMemory
	case strings.HasPrefix(dbURL, "mongodb://"), strings.HasPrefix(dbURL, "mongodb+srv://"):
		c.DatabaseType = DatabaseMongo
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'mongodb://...' or 'postgres://...')", redact(dbURL))
	}
	return nil
}

// applyStorageURL derives StorageType and its location from StorageURL
func applyStorageURL(c *ServerConfig) error {
	storageURL := strings.TrimSpace(c.StorageURL)

	switch {
	case storageURL == "" || storageURL == "memory" || storageURL == "memory://":
		c.StorageType = StorageMemory
		return nil
	case strings.HasPrefix(storageURL, "file://"):
		return applyFilesystemStorage(storageURL, c)
	case strings.HasPrefix(storageURL, "s3://"):
		return applyS3Storage(storageURL, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from URL
// Format: file:///abs/path or file://./relative/path
func applyFilesystemStorage(storageURL string, c *ServerConfig) error {
	path := strings.TrimPrefix(storageURL, "file://")
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}

	c.StorageType = StorageFS
	c.StorageDir = path
	return nil
}

// applyS3Storage configures S3 storage from URL
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true
func applyS3Storage(storageURL string, c *ServerConfig) error {
	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	c.StorageType = StorageS3
	c.S3.Bucket = u.Host

	q := u.Query()
	if v := q.Get("region"); v != "" {
		c.S3.Region = v
	}
	if v := q.Get("endpoint"); v != "" {
		c.S3.Endpoint = v
	}
	if v := q.Get("path_style"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
		}
		c.S3.UsePathStyle = b
	}
	return nil
}

// redact hides credentials embedded in a connection string.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
