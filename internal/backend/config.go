package backend

import (
	"fmt"

	"eventboard/internal/config"
	"eventboard/internal/storage"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	driver := storage.Driver(appConfig.DataBackend)
	if !driver.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          driver,
		DataDirectory: appConfig.DataDir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		PostgresDSN:   appConfig.PostgresDSN,

		S3Bucket:          appConfig.S3.Bucket,
		S3Region:          appConfig.S3.Region,
		S3Endpoint:        appConfig.S3.Endpoint,
		S3Prefix:          appConfig.S3.Prefix,
		S3PathStyle:       appConfig.S3.PathStyle,
		S3AccessKeyID:     appConfig.S3.AccessKeyID,
		S3SecretAccessKey: appConfig.S3.SecretAccessKey,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case storage.DriverSQLite:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case storage.DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("Postgres DSN is required for postgres backend")
		}
	case storage.DriverS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 backend")
		}
	case storage.DriverFile, storage.DriverMemory:
		// file falls back to ./data when DataDirectory is empty
	}

	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	drivers := storage.Drivers()
	out := make([]string, len(drivers))
	for i, d := range drivers {
		out[i] = d.String()
	}
	return out
}
