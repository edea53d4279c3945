package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
environment: test
data:
  prices_csv: data/prices.csv
model:
  segments: 2
  chains: 4
  seed: 42
`

func TestLoadValid(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "test" {
		t.Fatalf("unexpected environment %q", cfg.Environment)
	}
	if cfg.Model.Seed != 42 {
		t.Fatalf("unexpected seed %d", cfg.Model.Seed)
	}
}

func TestLoadMissingEnvironment(t *testing.T) {
	path := writeConfig(t, "data:\n  prices_csv: x.csv\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadNoPriceSource(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error without price source")
	}
}

func TestLoadBadSegments(t *testing.T) {
	path := writeConfig(t, validConfig+"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Model.Segments = 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for segments < 2")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, validConfig)
	t.Setenv("PRICES_CSV", "/tmp/override.csv")
	t.Setenv("MODEL_SEED", "7")

	cfg, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Data.PricesCSV != "/tmp/override.csv" {
		t.Fatalf("expected env override, got %q", cfg.Data.PricesCSV)
	}
	if cfg.Model.Seed != 7 {
		t.Fatalf("expected seed override, got %d", cfg.Model.Seed)
	}
}

func TestLoadWithEnvBadSeed(t *testing.T) {
	path := writeConfig(t, validConfig)
	t.Setenv("MODEL_SEED", "not-a-number")
	if _, err := LoadWithEnv(path); err == nil {
		t.Fatalf("expected error for invalid MODEL_SEED")
	}
}
