package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DATABASE_URL", "postgres://localhost/rankguard")
	t.Setenv("AUDIT_WORKERS", "4")
	t.Setenv("SCHEDULE_INTERVAL", "6h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AuditWorkers != 4 {
		t.Errorf("AuditWorkers = %d, want 4", cfg.AuditWorkers)
	}
	if cfg.ScheduleInterval != 6*time.Hour {
		t.Errorf("ScheduleInterval = %v, want 6h", cfg.ScheduleInterval)
	}
	if cfg.ServerAddr != ":3000" || cfg.Environment != "local" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if !cfg.IsDev() {
		t.Error("IsDev() = false, want true for local")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DATABASE_URL=postgres://from-file/db\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseURL != "postgres://from-file/db" {
		t.Errorf("DatabaseURL = %q, want value from file", cfg.DatabaseURL)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want environment to win over file", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL:      "postgres://localhost/db",
			DBMaxConns:       8,
			AuditWorkers:     2,
			AuditQueueSize:   64,
			AuditTimeout:     time.Minute,
			ScheduleInterval: time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing database url", func(c *Config) { c.DatabaseURL = " " }, true},
		{"zero workers", func(c *Config) { c.AuditWorkers = 0 }, true},
		{"zero queue", func(c *Config) { c.AuditQueueSize = 0 }, true},
		{"zero max conns", func(c *Config) { c.DBMaxConns = 0 }, true},
		{"short schedule when enabled", func(c *Config) { c.ScheduleEnabled = true; c.ScheduleInterval = time.Second }, true},
		{"short schedule when disabled", func(c *Config) { c.ScheduleInterval = time.Second }, false},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCORSOriginsList(t *testing.T) {
	cfg := &Config{CORSOrigins: " https://a.example.com, ,https://b.example.com,https://a.example.com"}
	got := cfg.CORSOriginsList()
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Errorf("CORSOriginsList() = %v", got)
	}
}

func TestLoadTuning(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file uses defaults", func(t *testing.T) {
		got, err := LoadTuning(filepath.Join(dir, "none.yaml"))
		if err != nil {
			t.Fatalf("LoadTuning() error = %v", err)
		}
		if got.Cannibalization.OverlapThreshold != 20 || got.Windows.ScheduledDays != 14 {
			t.Errorf("LoadTuning() = %+v, want defaults", got)
		}
	})

	t.Run("partial file keeps other defaults", func(t *testing.T) {
		path := filepath.Join(dir, "partial.yaml")
		os.WriteFile(path, []byte("cannibalization:\n  overlap_threshold: 35\n"), 0o600)
		got, err := LoadTuning(path)
		if err != nil {
			t.Fatalf("LoadTuning() error = %v", err)
		}
		if got.Cannibalization.OverlapThreshold != 35 {
			t.Errorf("OverlapThreshold = %v, want 35", got.Cannibalization.OverlapThreshold)
		}
		if got.SearchConsole.RowLimit != 25000 {
			t.Errorf("RowLimit = %d, want default 25000", got.SearchConsole.RowLimit)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		os.WriteFile(path, []byte("search_console:\n  row_limit: 50000\n"), 0o600)
		if _, err := LoadTuning(path); err == nil {
			t.Error("LoadTuning() error = nil, want range error")
		}
	})
}
