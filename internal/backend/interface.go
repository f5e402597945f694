package backend

import (
	"context"

	"eventboard/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened storage and its cleanup function
type BackendResult struct {
	Storage storage.KV
	Cleanup CleanupFunc
}

// Factory opens storage based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds what every driver may need
type Config struct {
	Type storage.Driver

	// file
	DataDirectory string

	// sqlite
	SQLiteDBPath string

	// postgres
	PostgresDSN string

	// s3
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3Prefix          string
	S3PathStyle       bool
	S3AccessKeyID     string
	S3SecretAccessKey string
}
