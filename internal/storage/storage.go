// Package storage defines the durable key/value port the persistent store
// writes through, plus helpers shared by its drivers.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Driver identifies a storage implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverFile     Driver = "file"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverS3       Driver = "s3"
)

func (d Driver) String() string { return string(d) }

// IsValid reports whether d names a known driver.
func (d Driver) IsValid() bool {
	switch d {
	case DriverMemory, DriverFile, DriverSQLite, DriverPostgres, DriverS3:
		return true
	default:
		return false
	}
}

// Drivers lists every known driver.
func Drivers() []Driver {
	return []Driver{DriverMemory, DriverFile, DriverSQLite, DriverPostgres, DriverS3}
}

var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key")
)

// KV stores opaque values under string keys. Put replaces any previous value.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Driver() Driver
	Close() error
}

// Pinger is implemented by drivers that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks kv when it supports it.
func Ping(ctx context.Context, kv KV) error {
	if p, ok := kv.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// SanitizeKey rejects keys that are empty, absolute or escape their root.
func SanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: contains '..'", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.HasPrefix(key, "\\") {
		return "", fmt.Errorf("%w: absolute", ErrInvalidKey)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}
