package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress == "" {
		t.Fatalf("default config missing RPC address")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = "127.0.0.1:8645"
MaxTotalDeposit = "0"
LegacyField = true
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown-key error")
	}
}

func TestParseMaxTotalDeposit(t *testing.T) {
	cfg := &Config{MaxTotalDeposit: "32000000000000000000000"}
	cap, err := cfg.ParseMaxTotalDeposit()
	if err != nil {
		t.Fatalf("parse cap: %v", err)
	}
	expected, _ := new(big.Int).SetString("32000000000000000000000", 10)
	if cap.Cmp(expected) != 0 {
		t.Fatalf("unexpected cap: %s", cap)
	}

	cfg.MaxTotalDeposit = "-1"
	if _, err := cfg.ParseMaxTotalDeposit(); err == nil {
		t.Fatalf("expected error for negative cap")
	}
	cfg.MaxTotalDeposit = "not-a-number"
	if _, err := cfg.ParseMaxTotalDeposit(); err == nil {
		t.Fatalf("expected error for invalid cap")
	}
}

func TestValidateAddress(t *testing.T) {
	cfg := &Config{
		RPCAddress:      "127.0.0.1:8645",
		MaxTotalDeposit: "0",
		PoolAddress:     "0x1234",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid address error")
	}
	cfg.PoolAddress = "0x00000000000000000000000000000000000000aa"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
