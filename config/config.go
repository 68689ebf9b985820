/*
Package config handles loading and validating application configuration
from environment variables. All values have sensible defaults so the
application can start with zero environment setup during local development.
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog" // slog = structured logging library
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/natefinch/lumberjack"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	StorageBackendFilesystem = "filesystem"
	StorageBackendS3         = "s3"
)

var gtmContainerIDPattern = regexp.MustCompile(`^GTM-[A-Z0-9]+$`)

// Config struct holds all configuration values for the application.
// values are read once at startup and passed through the app via dependency injection.
// no global config variable is used. callers receive a *Config explicitly,
// making dependencies visible and the code easier to test.
// every field is filled by env.Parse from the tag on it.
type Config struct {
	// Port is the TCP port the HTTP server listens on
	Port string `env:"PORT" envDefault:"8080"`

	// DBDriver picks the record store: "sqlite" (DBPath) or "postgres" (DatabaseURL)
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"./data/leadmagnets.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// StorageBackend picks the asset store: "filesystem" (AssetRoot) or "s3" (any S3 compatible
	// object storage, Cloudflare R2 included)
	StorageBackend    string `env:"STORAGE_BACKEND" envDefault:"filesystem"`
	AssetRoot         string `env:"ASSET_ROOT" envDefault:"./data/assets"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Region          string `env:"S3_REGION" envDefault:"auto"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`

	// LogRoot is where the per lead magnet publish logs are written, one file per slug.
	// empty disables them.
	LogRoot string `env:"LOG_ROOT" envDefault:"./data/logs"`

	// LogFormat controls the output format of slog (logging library)
	// accepted values: "json" (default) | "text"
	// set to "text" during local development for readable terminal output
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogFile additionally writes the application log to a size rotated file when set
	LogFile string `env:"LOG_FILE"`

	// AdminPassword protects the admin API. empty leaves the admin API open (local development only).
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// GTMContainerID is injected into every served root document. empty disables the tag manager.
	GTMContainerID string `env:"GTM_CONTAINER_ID"`

	// AllowedOrigin is the CORS origin for the public submission endpoint
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"*"`

	MaxUploadBytes       int64 `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`        // 50MB
	MaxDecompressedBytes int64 `env:"MAX_DECOMPRESSED_BYTES" envDefault:"104857600"` // 100MB
	SubmissionMaxBytes   int64 `env:"SUBMISSION_MAX_BYTES" envDefault:"65536"`       // 64KB

	UploadConcurrency    int  `env:"UPLOAD_CONCURRENCY" envDefault:"8"`
	StorageWriteAttempts uint `env:"STORAGE_WRITE_ATTEMPTS" envDefault:"3"`

	// OrphanSweepInterval is how often stored bundles without a record are looked for. 0 disables.
	OrphanSweepInterval time.Duration `env:"ORPHAN_SWEEP_INTERVAL" envDefault:"1h"`

	// ShutdownTimeout bounds how long in-flight requests get after SIGINT/SIGTERM
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadConfig reads configuration from the process environment and validates it.
func LoadConfig() (*Config, error) {
	return loadConfig(env.Options{})
}

// LoadConfigFromMap is LoadConfig over an explicit environment instead of the process one.
func LoadConfigFromMap(environment map[string]string) (*Config, error) {
	return loadConfig(env.Options{Environment: environment})
}

func loadConfig(options env.Options) (*Config, error) {
	config := &Config{}
	if err := env.ParseWithOptions(config, options); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the requirements that span several fields.
// all problems are reported at once so a broken deployment is fixed in one round.
func (config *Config) Validate() error {
	var problems []error

	switch config.DBDriver {
	case DBDriverSQLite:
		if config.DBPath == "" {
			problems = append(problems, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DBDriverPostgres:
		if config.DatabaseURL == "" {
			problems = append(problems, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		problems = append(problems, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DBDriverSQLite, DBDriverPostgres, config.DBDriver))
	}

	switch config.StorageBackend {
	case StorageBackendFilesystem:
		if config.AssetRoot == "" {
			problems = append(problems, errors.New("ASSET_ROOT is required for the filesystem backend"))
		}
	case StorageBackendS3:
		if config.S3Bucket == "" || config.S3Endpoint == "" {
			problems = append(problems, errors.New("S3_BUCKET and S3_ENDPOINT are required for the s3 backend"))
		}
		if config.S3AccessKeyID == "" || config.S3SecretAccessKey == "" {
			problems = append(problems, errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 backend"))
		}
	default:
		problems = append(problems, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageBackendFilesystem, StorageBackendS3, config.StorageBackend))
	}

	if config.GTMContainerID != "" && !gtmContainerIDPattern.MatchString(config.GTMContainerID) {
		problems = append(problems, fmt.Errorf("GTM_CONTAINER_ID %q does not look like GTM-XXXXXXX", config.GTMContainerID))
	}

	if _, ok := parseLogLevel(config.LogLevel); !ok {
		problems = append(problems, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", config.LogLevel))
	}

	if config.MaxUploadBytes <= 0 || config.MaxDecompressedBytes <= 0 || config.SubmissionMaxBytes <= 0 {
		problems = append(problems, errors.New("MAX_UPLOAD_BYTES, MAX_DECOMPRESSED_BYTES and SUBMISSION_MAX_BYTES must be positive"))
	}
	if config.UploadConcurrency <= 0 {
		problems = append(problems, errors.New("UPLOAD_CONCURRENCY must be positive"))
	}
	if config.StorageWriteAttempts == 0 {
		problems = append(problems, errors.New("STORAGE_WRITE_ATTEMPTS must be at least 1"))
	}
	if config.OrphanSweepInterval < 0 || config.ShutdownTimeout <= 0 {
		problems = append(problems, errors.New("ORPHAN_SWEEP_INTERVAL must not be negative and SHUTDOWN_TIMEOUT must be positive"))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return nil
}

// NewLogger constructs a *slog.Logger based on the LogFormat field of the config.
// "text" produces human-readable output for local development
// any other value (including "json") produces structured JSON output for production
// and Docker log shipping.
// when LogFile is set, every line also goes to that file, rotated by lumberjack.
func (config *Config) NewLogger() *slog.Logger {
	level, _ := parseLogLevel(config.LogLevel)

	opts := &slog.HandlerOptions{
		// AddSource adds the file name and line number to each log record.
		AddSource: true,
		Level:     level,
	}

	var output io.Writer = os.Stdout
	if config.LogFile != "" {
		output = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	var handler slog.Handler
	if config.LogFormat == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler)
}

// parseLogLevel maps the LOG_LEVEL names onto slog levels. empty means info.
func parseLogLevel(raw string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
