package config

import (
	"os"
	"testing"
	"time"

	"github.com/MacJediWizard/hearth/internal/archive"
)

func TestLoadServerConfig_DefaultEnvironment(t *testing.T) {
	os.Unsetenv("ENV")
	cfg := LoadServerConfig()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoadServerConfig_InvalidEnvironment(t *testing.T) {
	t.Setenv("ENV", "invalid")
	cfg := LoadServerConfig()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q for invalid ENV, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoadServerConfig_ValidEnvironments(t *testing.T) {
	tests := []struct {
		env  string
		want Environment
	}{
		{"development", EnvDevelopment},
		{"staging", EnvStaging},
		{"production", EnvProduction},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			cfg := LoadServerConfig()
			if cfg.Environment != tt.want {
				t.Errorf("expected %q, got %q", tt.want, cfg.Environment)
			}
		})
	}
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"LISTEN_ADDR", "DATABASE_URL", "CORS_ORIGINS", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_PERIOD",
		"MAX_IMPORT_BYTES", "SHUTDOWN_TIMEOUT", "BACKUP_STRICT_REFERENCES", "BACKUP_SCHEDULE",
		"BACKUP_ARCHIVE_DIR", "BACKUP_S3_BUCKET", "BACKUP_RETENTION_DAYS", "BACKUP_MAX_ARCHIVES",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadServerConfig()
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.RateLimitRequests != DefaultRateLimitRequests || cfg.RateLimitPeriod != time.Minute {
		t.Errorf("unexpected rate limit %d/%s", cfg.RateLimitRequests, cfg.RateLimitPeriod)
	}
	if cfg.MaxImportBytes != 32<<20 {
		t.Errorf("MaxImportBytes = %d", cfg.MaxImportBytes)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("ShutdownTimeout = %s", cfg.ShutdownTimeout)
	}
	if cfg.StrictReferences {
		t.Error("StrictReferences should default to false")
	}
	if cfg.RetentionDays != 30 || cfg.MaxArchives != 0 {
		t.Errorf("unexpected retention %d/%d", cfg.RetentionDays, cfg.MaxArchives)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Errorf("expected no CORS origins, got %v", cfg.CORSOrigins)
	}
	if cfg.ArchiveEnabled() {
		t.Error("archive should be disabled by default")
	}
}

func TestLoadServerConfig_FromEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9090")
	t.Setenv("DATABASE_URL", " postgres://localhost/hearth ")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("RATE_LIMIT_REQUESTS", "20")
	t.Setenv("RATE_LIMIT_PERIOD", "30s")
	t.Setenv("MAX_IMPORT_BYTES", "1024")
	t.Setenv("SHUTDOWN_TIMEOUT", "notaduration")
	t.Setenv("BACKUP_STRICT_REFERENCES", "yes")
	t.Setenv("BACKUP_SCHEDULE", "0 3 * * *")
	t.Setenv("BACKUP_S3_BUCKET", "hearth")
	t.Setenv("BACKUP_S3_ENDPOINT", "minio:9000")
	t.Setenv("BACKUP_RETENTION_DAYS", "-4")
	t.Setenv("BACKUP_MAX_ARCHIVES", "12")

	cfg := LoadServerConfig()
	if cfg.ListenAddr != "127.0.0.1:9090" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.DatabaseURL != "postgres://localhost/hearth" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.RateLimitRequests != 20 || cfg.RateLimitPeriod != 30*time.Second {
		t.Errorf("unexpected rate limit %d/%s", cfg.RateLimitRequests, cfg.RateLimitPeriod)
	}
	if cfg.MaxImportBytes != 1024 {
		t.Errorf("MaxImportBytes = %d", cfg.MaxImportBytes)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("invalid duration should fall back, got %s", cfg.ShutdownTimeout)
	}
	if !cfg.StrictReferences {
		t.Error("StrictReferences should be true")
	}
	if cfg.S3.Bucket != "hearth" || cfg.S3.Endpoint != "minio:9000" {
		t.Errorf("unexpected S3 config %+v", cfg.S3)
	}
	if cfg.RetentionDays != DefaultRetentionDays {
		t.Errorf("negative retention should fall back, got %d", cfg.RetentionDays)
	}

	policy := cfg.Retention()
	if policy.MaxAge != 30*24*time.Hour || policy.MaxCount != 12 {
		t.Errorf("unexpected policy %+v", policy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"missing database url", ServerConfig{}, true},
		{"database only", ServerConfig{DatabaseURL: "postgres://x"}, false},
		{"local archive", ServerConfig{DatabaseURL: "postgres://x", ArchiveDir: "/tmp/a", BackupSchedule: "@daily"}, false},
		{"schedule without sink", ServerConfig{DatabaseURL: "postgres://x", BackupSchedule: "@daily"}, true},
		{"both sinks", ServerConfig{DatabaseURL: "postgres://x", ArchiveDir: "/tmp/a", S3: archive.S3Config{Bucket: "b"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_IsProduction(t *testing.T) {
	if (ServerConfig{Environment: EnvStaging}).IsProduction() {
		t.Error("staging is not production")
	}
	if !(ServerConfig{Environment: EnvProduction}).IsProduction() {
		t.Error("expected production")
	}
}
