package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP Server
	Port            string        `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimitRPM    int           `yaml:"rate_limit_rpm"`

	// Storage
	DataBackend  string `yaml:"data_backend"`
	DataDir      string `yaml:"data_dir"`
	SQLiteDBPath string `yaml:"sqlite_db_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
	S3           S3     `yaml:"s3"`

	// Initial list when storage holds nothing: empty, remote or file:<path>
	InitialSource string `yaml:"initial_source"`

	// Remote record fetch
	RemoteBaseURL   string        `yaml:"remote_base_url"`
	RemoteTimeout   time.Duration `yaml:"remote_timeout"`
	RemoteCacheTTL  time.Duration `yaml:"remote_cache_ttl"`
	RemoteCacheSize int           `yaml:"remote_cache_size"`

	// AMQP
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Mirror worker
	ExportTarget        string `yaml:"export_target"`
	MirrorCron          string `yaml:"mirror_cron"`
	GoogleSpreadsheetID string `yaml:"google_spreadsheet_id"`
	GoogleSheetName     string `yaml:"google_sheet_name"`
	// Worker /metrics listener; empty disables it
	WorkerMetricsPort string `yaml:"worker_metrics_port"`
}

type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

var (
	validBackends      = []string{"memory", "file", "sqlite", "postgres", "s3"}
	validExportTargets = []string{"sheets", "storage"}
	validLogLevels     = []string{"debug", "info", "warn", "error"}
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:            "8081",
		LogLevel:        "info",
		ShutdownTimeout: 30 * time.Second,
		RateLimitRPM:    60,

		DataBackend:  "file",
		DataDir:      "./data",
		SQLiteDBPath: "./data/eventboard.db",

		InitialSource: "empty",

		RemoteTimeout:   5 * time.Second,
		RemoteCacheTTL:  time.Minute,
		RemoteCacheSize: 256,

		AMQPExchange: "eventboard",
		AMQPQueue:    "posts_changed",

		ExportTarget:    "storage",
		MirrorCron:      "@every 5m",
		GoogleSheetName: "Events",
	}
}

// Load starts from Default, applies CONFIG_FILE when set, then environment
// variables. Environment always wins.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.RateLimitRPM = getEnvInt("RATE_LIMIT_RPM", cfg.RateLimitRPM)

	cfg.DataBackend = getEnv("DATA_BACKEND", cfg.DataBackend)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.PostgresDSN = getEnv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.S3.Bucket = getEnv("S3_BUCKET", cfg.S3.Bucket)
	cfg.S3.Region = getEnv("S3_REGION", cfg.S3.Region)
	cfg.S3.Endpoint = getEnv("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.Prefix = getEnv("S3_PREFIX", cfg.S3.Prefix)
	cfg.S3.PathStyle = getEnvBool("S3_PATH_STYLE", cfg.S3.PathStyle)
	cfg.S3.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", cfg.S3.AccessKeyID)
	cfg.S3.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", cfg.S3.SecretAccessKey)

	cfg.InitialSource = getEnv("INITIAL_SOURCE", cfg.InitialSource)

	cfg.RemoteBaseURL = getEnv("REMOTE_BASE_URL", cfg.RemoteBaseURL)
	cfg.RemoteTimeout = getEnvDuration("REMOTE_TIMEOUT", cfg.RemoteTimeout)
	cfg.RemoteCacheTTL = getEnvDuration("REMOTE_CACHE_TTL", cfg.RemoteCacheTTL)
	cfg.RemoteCacheSize = getEnvInt("REMOTE_CACHE_SIZE", cfg.RemoteCacheSize)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.ExportTarget = getEnv("EXPORT_TARGET", cfg.ExportTarget)
	cfg.MirrorCron = getEnv("MIRROR_CRON", cfg.MirrorCron)
	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", cfg.GoogleSheetName)
	cfg.WorkerMetricsPort = getEnv("WORKER_METRICS_PORT", cfg.WorkerMetricsPort)

	if cfg.RemoteBaseURL == "" {
		cfg.RemoteBaseURL = "http://localhost:" + cfg.Port
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// InitialSourceFile returns the seed path when InitialSource is file:<path>.
func (c *Config) InitialSourceFile() (string, bool) {
	path, ok := strings.CutPrefix(c.InitialSource, "file:")
	return path, ok && path != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if !contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "file":
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using file backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			errors = append(errors, "S3_BUCKET is required when using s3 backend")
		}
		if c.S3.Endpoint != "" {
			if _, err := url.ParseRequestURI(c.S3.Endpoint); err != nil {
				errors = append(errors, fmt.Sprintf("invalid S3 endpoint '%s': %v", c.S3.Endpoint, err))
			}
		}
	}

	switch {
	case c.InitialSource == "empty", c.InitialSource == "remote":
	case strings.HasPrefix(c.InitialSource, "file:"):
		if _, ok := c.InitialSourceFile(); !ok {
			errors = append(errors, "initial source 'file:' needs a path")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid initial source '%s': must be empty, remote or file:<path>", c.InitialSource))
	}

	if parsedURL, err := url.Parse(c.RemoteBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid remote base URL '%s': %v", c.RemoteBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid remote base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.RemoteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must be positive", c.RemoteTimeout))
	}
	if c.RemoteCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid remote cache size %d: must be at least 1", c.RemoteCacheSize))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings only the mirror worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	if !contains(validExportTargets, c.ExportTarget) {
		errors = append(errors, fmt.Sprintf("invalid export target '%s': must be one of %v", c.ExportTarget, validExportTargets))
	}
	if c.ExportTarget == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when exporting to sheets")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when exporting to sheets")
		}
	}
	if c.WorkerMetricsPort != "" {
		if port, err := strconv.Atoi(c.WorkerMetricsPort); err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid worker metrics port '%s'", c.WorkerMetricsPort))
		}
	}
	if _, err := cron.ParseStandard(c.MirrorCron); err != nil {
		errors = append(errors, fmt.Sprintf("invalid mirror schedule '%s': %v", c.MirrorCron, err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
