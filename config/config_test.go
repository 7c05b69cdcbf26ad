package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for
// LoadConfig and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const minimalConfig = `stockpulse:
  name: "TestApp"
  version: "1.0"
market:
  symbols: ["AAPL", "^GSPC"]
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SYMBOLS", "")

	path := writeTempConfig(t, minimalConfig)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Stockpulse.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Stockpulse.Name)
	}
	if len(cfg.Market.Symbols) != 2 || cfg.Market.Symbols[1] != "^GSPC" {
		t.Errorf("unexpected symbols: %v", cfg.Market.Symbols)
	}

	// Defaults applied for everything the file omits.
	if cfg.Server.Port != 8000 {
		t.Errorf("unexpected default port: %d", cfg.Server.Port)
	}
	if cfg.Server.BroadcastInterval != 5*time.Second {
		t.Errorf("unexpected default broadcast interval: %v", cfg.Server.BroadcastInterval)
	}
	if cfg.Source.Yahoo.HistoryDays != 365 {
		t.Errorf("unexpected default history window: %d", cfg.Source.Yahoo.HistoryDays)
	}
	if cfg.Source.Yahoo.UserAgent != DefaultUserAgent {
		t.Errorf("unexpected default user agent: %s", cfg.Source.Yahoo.UserAgent)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("SYMBOLS", "TSLA, NVDA")

	path := writeTempConfig(t, minimalConfig)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("PORT override not applied: %d", cfg.Server.Port)
	}
	if len(cfg.Market.Symbols) != 2 || cfg.Market.Symbols[0] != "TSLA" || cfg.Market.Symbols[1] != "NVDA" {
		t.Errorf("SYMBOLS override not applied: %v", cfg.Market.Symbols)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SYMBOLS", "")

	cases := []struct {
		name    string
		content string
	}{
		{"missing name", "stockpulse:\n  version: \"1.0\"\nmarket:\n  symbols: [\"AAPL\"]\n"},
		{"no symbols", "stockpulse:\n  name: \"x\"\n  version: \"1.0\"\nmarket:\n  symbols: []\n"},
		{"duplicate symbols", "stockpulse:\n  name: \"x\"\n  version: \"1.0\"\nmarket:\n  symbols: [\"AAPL\", \"AAPL\"]\n"},
		{"bad port", "stockpulse:\n  name: \"x\"\n  version: \"1.0\"\nserver:\n  port: -1\nmarket:\n  symbols: [\"AAPL\"]\n"},
	}
	for _, c := range cases {
		path := writeTempConfig(t, c.content)
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
		os.Remove(path)
	}
}

func TestAppEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	if env := AppEnvironment(); env != EnvironmentProduction {
		t.Errorf("alias not normalised: %s", env)
	}
	if !IsProductionLike(EnvironmentStaging) {
		t.Errorf("staging should be production-like")
	}
	if IsProductionLike(EnvironmentDevelopment) {
		t.Errorf("development should not be production-like")
	}
}
