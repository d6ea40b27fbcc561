package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	content := "log_level: debug\nsession_backend: redis\nnear_end: 8s\nredis_db: 2\n"
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DECIBEL_CONFIG_DIR", dir)
	t.Setenv("DECIBEL_CONFIG", yamlPath)
	t.Setenv("REDIS_DB", "5")
	t.Setenv("NEAR_END", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug from file", cfg.LogLevel)
	}
	if cfg.SessionBackend != SessionBackendRedis {
		t.Errorf("SessionBackend = %q", cfg.SessionBackend)
	}
	if cfg.RedisDB != 5 {
		t.Errorf("RedisDB = %d, want env override 5", cfg.RedisDB)
	}
	if cfg.NearEnd != 3*time.Second {
		t.Errorf("NearEnd = %s, want 3s", cfg.NearEnd)
	}
	if cfg.DBPath != filepath.Join(dir, "decibel.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DECIBEL_CONFIG_DIR", dir)
	t.Setenv("DECIBEL_CONFIG", filepath.Join(dir, "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.NearEnd != 5*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"mysql upper case", func(c *Config) { c.DBDriver = "MySQL" }, false},
		{"bad driver", func(c *Config) { c.DBDriver = "postgres" }, true},
		{"bad backend", func(c *Config) { c.SessionBackend = "s3" }, true},
		{"negative near end", func(c *Config) { c.NearEnd = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults(t.TempDir())
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DUR", "1500ms")
	if d := getEnvDuration("X_DUR", 0); d != 1500*time.Millisecond {
		t.Errorf("got %s", d)
	}
	t.Setenv("X_DUR", "bogus")
	if d := getEnvDuration("X_DUR", time.Minute); d != time.Minute {
		t.Errorf("bad value should keep fallback, got %s", d)
	}
}
