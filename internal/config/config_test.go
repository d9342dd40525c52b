package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsApplied(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Model.Name != "gemini-2.0-flash" {
		t.Errorf("default model = %s", cfg.Model.Name)
	}
	if cfg.Limits.MaxRequests != 20 || cfg.Limits.PeriodSeconds != 60 {
		t.Errorf("default limits = %+v", cfg.Limits)
	}
	if cfg.Limits.Period() != time.Minute {
		t.Errorf("Period() = %v", cfg.Limits.Period())
	}
	if cfg.Loop.MaxTurns != 20 || cfg.Loop.StuckWindow != 3 || cfg.Loop.SignatureLength != 50 {
		t.Errorf("default loop = %+v", cfg.Loop)
	}
	if len(cfg.Tools.Dangerous) != 4 {
		t.Errorf("default dangerous tools = %v", cfg.Tools.Dangerous)
	}
	if cfg.Paths.Sessions == "" || cfg.Paths.Workspace == "" {
		t.Errorf("default paths = %+v", cfg.Paths)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"model": {"name": "gemini-2.5-pro", "maxTokens": 8192},
		"limits": {"maxRequests": 5, "periodSeconds": 10},
		"loop": {"maxTurns": 7},
		"tools": {"dangerous": ["exec"]}
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Model.Name != "gemini-2.5-pro" || cfg.Model.MaxTokens != 8192 {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Limits.MaxRequests != 5 || cfg.Limits.Period() != 10*time.Second {
		t.Errorf("limits = %+v", cfg.Limits)
	}
	if cfg.Loop.MaxTurns != 7 {
		t.Errorf("maxTurns = %d", cfg.Loop.MaxTurns)
	}
	if len(cfg.Tools.Dangerous) != 1 || cfg.Tools.Dangerous[0] != "exec" {
		t.Errorf("dangerous = %v", cfg.Tools.Dangerous)
	}
	// Defaults still fill unset fields.
	if cfg.Loop.StuckWindow != 3 {
		t.Errorf("stuckWindow = %d", cfg.Loop.StuckWindow)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOOLLOOP_MODEL_NAME", "gemini-2.0-flash-lite")
	t.Setenv("TOOLLOOP_LIMITS_MAX_REQUESTS", "3")
	t.Setenv("TOOLLOOP_GEMINI_API_KEY", "env-key")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Model.Name != "gemini-2.0-flash-lite" {
		t.Errorf("model from env = %s", cfg.Model.Name)
	}
	if cfg.Limits.MaxRequests != 3 {
		t.Errorf("maxRequests from env = %d", cfg.Limits.MaxRequests)
	}
	if cfg.Providers.Gemini.APIKey != "env-key" {
		t.Errorf("api key from env = %s", cfg.Providers.Gemini.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"limits": {"maxRequests": -1}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil || !strings.Contains(err.Error(), "maxRequests") {
		t.Fatalf("expected maxRequests validation error, got %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"trace": {"enabled": true}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil || !strings.Contains(err.Error(), "trace.brokers") {
		t.Fatalf("expected trace.brokers validation error, got %v", err)
	}
}

func TestConfigPathOverride(t *testing.T) {
	t.Setenv("TOOLLOOP_CONFIG", "/tmp/custom.json")
	path, err := ConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/custom.json" {
		t.Errorf("ConfigPath = %s", path)
	}
}
