// Package config provides configuration management for Hearth.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MacJediWizard/hearth/internal/archive"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// Defaults applied when the corresponding variable is unset or invalid.
const (
	DefaultListenAddr        = ":8080"
	DefaultRateLimitRequests = 100
	DefaultRateLimitPeriod   = time.Minute
	DefaultMaxImportBytes    = 32 << 20
	DefaultShutdownTimeout   = 15 * time.Second
	DefaultRetentionDays     = 30
)

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment     Environment
	ListenAddr      string
	DatabaseURL     string
	CORSOrigins     []string
	ShutdownTimeout time.Duration

	RateLimitRequests int64
	RateLimitPeriod   time.Duration
	MaxImportBytes    int64 // request body limit for imports

	StrictReferences bool // reject unresolvable roomId/deviceId before importing

	BackupSchedule string // cron expression, empty disables scheduled backups
	ArchiveDir     string
	S3             archive.S3Config
	RetentionDays  int // 0 disables age-based pruning
	MaxArchives    int // 0 keeps every archive
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = DefaultListenAddr
	}

	rateLimitRequests := getEnvInt64("RATE_LIMIT_REQUESTS", DefaultRateLimitRequests)
	if rateLimitRequests <= 0 {
		rateLimitRequests = DefaultRateLimitRequests
	}

	rateLimitPeriod := getEnvDuration("RATE_LIMIT_PERIOD", DefaultRateLimitPeriod)
	if rateLimitPeriod <= 0 {
		rateLimitPeriod = DefaultRateLimitPeriod
	}

	maxImportBytes := getEnvInt64("MAX_IMPORT_BYTES", DefaultMaxImportBytes)
	if maxImportBytes <= 0 {
		maxImportBytes = DefaultMaxImportBytes
	}

	shutdownTimeout := getEnvDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout)
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	retentionDays := getEnvInt("BACKUP_RETENTION_DAYS", DefaultRetentionDays)
	if retentionDays < 0 {
		retentionDays = DefaultRetentionDays
	}

	maxArchives := getEnvInt("BACKUP_MAX_ARCHIVES", 0)
	if maxArchives < 0 {
		maxArchives = 0
	}

	return ServerConfig{
		Environment:       env,
		ListenAddr:        listenAddr,
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CORSOrigins:       getEnvList("CORS_ORIGINS"),
		ShutdownTimeout:   shutdownTimeout,
		RateLimitRequests: rateLimitRequests,
		RateLimitPeriod:   rateLimitPeriod,
		MaxImportBytes:    maxImportBytes,
		StrictReferences:  getEnvBool("BACKUP_STRICT_REFERENCES", false),
		BackupSchedule:    strings.TrimSpace(os.Getenv("BACKUP_SCHEDULE")),
		ArchiveDir:        strings.TrimSpace(os.Getenv("BACKUP_ARCHIVE_DIR")),
		S3: archive.S3Config{
			Bucket:          strings.TrimSpace(os.Getenv("BACKUP_S3_BUCKET")),
			Prefix:          strings.TrimSpace(os.Getenv("BACKUP_S3_PREFIX")),
			Region:          strings.TrimSpace(os.Getenv("BACKUP_S3_REGION")),
			Endpoint:        strings.TrimSpace(os.Getenv("BACKUP_S3_ENDPOINT")),
			AccessKeyID:     os.Getenv("BACKUP_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("BACKUP_S3_SECRET_ACCESS_KEY"),
		},
		RetentionDays: retentionDays,
		MaxArchives:   maxArchives,
	}
}

// Validate checks that the configuration is usable by the server.
func (c ServerConfig) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.ArchiveDir != "" && c.S3.Enabled() {
		return errors.New("BACKUP_ARCHIVE_DIR and BACKUP_S3_BUCKET are mutually exclusive")
	}
	if c.BackupSchedule != "" && !c.ArchiveEnabled() {
		return errors.New("BACKUP_SCHEDULE requires BACKUP_ARCHIVE_DIR or BACKUP_S3_BUCKET")
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// ArchiveEnabled reports whether an archive sink is configured.
func (c ServerConfig) ArchiveEnabled() bool {
	return c.ArchiveDir != "" || c.S3.Enabled()
}

// Retention returns the archive retention policy.
func (c ServerConfig) Retention() archive.RetentionPolicy {
	return archive.RetentionPolicy{
		MaxAge:   time.Duration(c.RetentionDays) * 24 * time.Hour,
		MaxCount: c.MaxArchives,
	}
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvInt64(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration accepts Go duration strings ("90s", "1m").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
