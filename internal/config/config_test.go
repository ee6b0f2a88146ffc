package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8080"
db:
  dsn: "postgres://localhost/masterpay"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Escrow.FeePercent != "5" {
		t.Errorf("fee percent = %s, want default 5", cfg.Escrow.FeePercent)
	}
	if cfg.Escrow.ExpiryDays != 30 {
		t.Errorf("expiry days = %d, want default 30", cfg.Escrow.ExpiryDays)
	}
	if cfg.Scheduler.IntervalSeconds != 60 {
		t.Errorf("interval = %d, want default 60", cfg.Scheduler.IntervalSeconds)
	}
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
db:
  dsn: "postgres://db/escrow"
escrow:
  fee_percent: "7.5"
  expiry_days: 14
gateway:
  base_url: "https://gateway.example.com"
  crypto_xpub: "xpub-test"
  crypto_prefix: "bc"
scheduler:
  interval_seconds: 15
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Escrow.FeePercent != "7.5" || cfg.Escrow.ExpiryDays != 14 {
		t.Errorf("escrow = %+v", cfg.Escrow)
	}
	if cfg.Gateway.BaseURL != "https://gateway.example.com" || cfg.Gateway.CryptoPrefix != "bc" {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Scheduler.IntervalSeconds != 15 {
		t.Errorf("interval = %d", cfg.Scheduler.IntervalSeconds)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8080"
db:
  dsn: "postgres://localhost/masterpay"
escrow:
  fee_percent: "5"
`)
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("ESCROW_FEE_PERCENT", "10")
	t.Setenv("ESCROW_EXPIRY_DAYS", "7")
	t.Setenv("SCHEDULER_INTERVAL_SECONDS", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %s, want env override :7070", cfg.Server.Addr)
	}
	if cfg.Escrow.FeePercent != "10" {
		t.Errorf("fee percent = %s, want 10", cfg.Escrow.FeePercent)
	}
	if cfg.Escrow.ExpiryDays != 7 {
		t.Errorf("expiry days = %d, want 7", cfg.Escrow.ExpiryDays)
	}
	// Unparseable overrides keep the prior value, then fall to the default.
	if cfg.Scheduler.IntervalSeconds != 60 {
		t.Errorf("interval = %d, want 60", cfg.Scheduler.IntervalSeconds)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8080"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a config without db.dsn")
	}
}
