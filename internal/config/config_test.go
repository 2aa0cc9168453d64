package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var envKeys = []string{
	"SERVER_HOST", "SERVER_PORT", "SERVER_MODE", "SERVER_REQUEST_TIMEOUT", "CORS_ORIGINS",
	"DB_DRIVER", "DB_DSN", "JWT_SECRET", "STORAGE_DIR", "STORAGE_PUBLIC_URL",
	"SENDGRID_API_KEY", "MAIL_FROM", "PAYMENTS_WEBHOOK_SECRET", "LOG_LEVEL", "REDIS_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_FileKeepsUnsetDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: \"9000\"\n  cors_origins: [\"https://autohub.example\"]\ndatabase:\n  driver: postgres\n  dsn: host=db\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9000" || cfg.Database.Driver != "postgres" || cfg.Database.DSN != "host=db" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.RequestTimeout != 30 || cfg.Storage.MaxUploadSize != 50<<20 {
		t.Errorf("defaults lost: %+v", cfg.Server)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"https://autohub.example"}) {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestOverrideFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("SERVER_REQUEST_TIMEOUT", "12")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,,")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SENDGRID_API_KEY", "SG.key")
	t.Setenv("PAYMENTS_WEBHOOK_SECRET", "whsec")

	cfg := DefaultConfig()
	cfg.overrideFromEnv()

	if cfg.Server.Port != "7000" || cfg.Server.RequestTimeout != 12 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Database.Driver != "mysql" || cfg.JWT.Secret != "from-env" {
		t.Errorf("database/jwt = %+v %+v", cfg.Database, cfg.JWT)
	}
	if cfg.Mail.Provider != "sendgrid" || cfg.Mail.SendGridAPIKey != "SG.key" {
		t.Errorf("mail = %+v", cfg.Mail)
	}
	if cfg.Payments.WebhookSecret != "whsec" {
		t.Errorf("payments = %+v", cfg.Payments)
	}

	t.Setenv("SERVER_REQUEST_TIMEOUT", "soon")
	cfg = DefaultConfig()
	cfg.overrideFromEnv()
	if cfg.Server.RequestTimeout != 30 {
		t.Errorf("invalid timeout should keep default, got %d", cfg.Server.RequestTimeout)
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		db       int
	}{
		{"host only", "redis://cache:6379", "cache:6379", "", 0},
		{"password and db", "redis://:s3cret@cache:6380/2", "cache:6380", "s3cret", 2},
		{"user and password", "redis://app:pw@10.0.0.5:6379/1", "10.0.0.5:6379", "pw", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("REDIS_URL", tt.url)
			cfg := DefaultConfig()
			cfg.overrideFromEnv()
			if !cfg.Redis.Enabled {
				t.Error("REDIS_URL should enable redis")
			}
			if cfg.Redis.Addr != tt.addr || cfg.Redis.Password != tt.password || cfg.Redis.DB != tt.db {
				t.Errorf("redis = %+v", cfg.Redis)
			}
		})
	}
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Server.Port = "8181"
	cfg.Payments.Currency = "ILS"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Port != "8181" || loaded.Payments.Currency != "ILS" {
		t.Errorf("loaded = %+v", loaded)
	}
}
