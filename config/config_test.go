package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  port: 8080
  timeout: 5s
models:
  dir: /var/lib/organicscan
log:
  level: debug
training:
  model_type: decision_tree
  samples_per_category: 50
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Http.Port != 8080 || cfg.Http.Timeout != 5*time.Second {
		t.Fatalf("http section not applied: %+v", cfg.Http)
	}
	if cfg.Models.Dir != "/var/lib/organicscan" {
		t.Fatalf("unexpected model dir %q", cfg.Models.Dir)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log section %+v", cfg.Log)
	}
	if cfg.Training.ModelType != "decision_tree" || cfg.Training.SamplesPerCategory != 50 {
		t.Fatalf("training section not applied: %+v", cfg.Training)
	}
	// Untouched keys keep their defaults.
	if cfg.Models.CacheSize != Default().Models.CacheSize {
		t.Fatalf("expected default cache size, got %d", cfg.Models.CacheSize)
	}
	if opts := cfg.Training.Options(); opts.Seed != cfg.Training.Seed {
		t.Fatalf("options seed %d differs from training seed %d", opts.Seed, cfg.Training.Seed)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Http.Port != Default().Http.Port {
		t.Fatalf("expected default port, got %d", cfg.Http.Port)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":       "9090",
		"MODEL_PATH": "/models",
		"DB_PATH":    "/tmp/scan.db",
		"LOG_LEVEL":  "WARN",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Http.Port != 9090 || cfg.Models.Dir != "/models" || cfg.Database.Path != "/tmp/scan.db" || cfg.Log.Level != "warn" {
		t.Fatalf("env not applied: port=%d dir=%s db=%s level=%s", cfg.Http.Port, cfg.Models.Dir, cfg.Database.Path, cfg.Log.Level)
	}

	env["PORT"] = "http"
	if err := Default().applyEnv(lookup); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestLoadUsesEnvironment(t *testing.T) {
	t.Setenv("PORT", "7070")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Http.Port != 7070 {
		t.Fatalf("expected port 7070, got %d", cfg.Http.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"port":       func(c *Config) { c.Http.Port = 70000 },
		"timeout":    func(c *Config) { c.Http.Timeout = 0 },
		"body":       func(c *Config) { c.Http.MaxBodyBytes = 0 },
		"model dir":  func(c *Config) { c.Models.Dir = "" },
		"log level":  func(c *Config) { c.Log.Level = "trace" },
		"log format": func(c *Config) { c.Log.Format = "xml" },
		"model type": func(c *Config) { c.Training.ModelType = "svm" },
		"test ratio": func(c *Config) { c.Training.TestRatio = 1 },
		"samples":    func(c *Config) { c.Training.SamplesPerCategory = 0 },
	}
	for name, mutate := range tests {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	cfg := Default()
	cfg.Http.Port = 0
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "http.port") || !strings.Contains(err.Error(), "log.level") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestFind(t *testing.T) {
	if got := Find("custom.yaml"); got != "custom.yaml" {
		t.Fatalf("explicit path ignored, got %q", got)
	}
}
