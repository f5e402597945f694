package backend

import (
	"context"
	"fmt"

	"eventboard/internal/log"
	"eventboard/internal/storage"
	"eventboard/internal/storage/file"
	"eventboard/internal/storage/memory"
	"eventboard/internal/storage/postgres"
	"eventboard/internal/storage/s3"
	"eventboard/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		kv  storage.KV
		err error
	)
	switch config.Type {
	case storage.DriverMemory:
		kv = memory.New()
	case storage.DriverFile:
		kv, err = file.New(config.DataDirectory)
	case storage.DriverSQLite:
		kv, err = sqlite.New(config.SQLiteDBPath)
	case storage.DriverPostgres:
		kv, err = postgres.New(ctx, config.PostgresDSN)
	case storage.DriverS3:
		kv, err = s3.New(ctx, s3.Config{
			Bucket:          config.S3Bucket,
			Region:          config.S3Region,
			Endpoint:        config.S3Endpoint,
			Prefix:          config.S3Prefix,
			PathStyle:       config.S3PathStyle,
			AccessKeyID:     config.S3AccessKeyID,
			SecretAccessKey: config.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", config.Type, err)
	}

	f.logger.Info("Initialized storage backend",
		log.FieldBackend, config.Type.String(),
		"location", location(config))

	return &BackendResult{
		Storage: kv,
		Cleanup: kv.Close,
	}, nil
}

func location(c Config) string {
	switch c.Type {
	case storage.DriverFile:
		if c.DataDirectory == "" {
			return "./data"
		}
		return c.DataDirectory
	case storage.DriverSQLite:
		return c.SQLiteDBPath
	case storage.DriverS3:
		return c.S3Bucket + "/" + c.S3Prefix
	case storage.DriverPostgres:
		return "postgres"
	default:
		return "memory"
	}
}
