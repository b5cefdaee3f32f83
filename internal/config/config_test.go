package config

import (
	"os"
	"testing"
)

func TestParseReadsFlagsAndDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]string{"--exchange", "hyperliquid", "--api-key", "0xabc", "--api-secret", "shh", "--live-trade"})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Exchange != "hyperliquid" || cfg.APIKey != "0xabc" || cfg.APISecret != "shh" || !cfg.LiveTrade {
		t.Errorf("unexpected flag values: %+v", cfg)
	}
	if cfg.HTTPConnectTimeoutMs != defaultHTTPConnectTimeoutMs {
		t.Errorf("HTTPConnectTimeoutMs = %d, want default %d", cfg.HTTPConnectTimeoutMs, defaultHTTPConnectTimeoutMs)
	}
}

func TestParseAppliesEnvironmentOverride(t *testing.T) {
	os.Setenv("LATENTSPEED_HTTP_TIMEOUT_MS", "9000")
	defer os.Unsetenv("LATENTSPEED_HTTP_TIMEOUT_MS")

	cfg, err := Parse([]string{"--exchange", "hyperliquid", "--api-key", "k", "--api-secret", "s"})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.HTTPTimeoutMs != 9000 {
		t.Errorf("HTTPTimeoutMs = %d, want 9000 from env override", cfg.HTTPTimeoutMs)
	}
}

func TestValidateRejectsBelowLowerBounds(t *testing.T) {
	t.Parallel()

	cfg := &Config{Exchange: "hyperliquid", APIKey: "k", APISecret: "s", HTTPConnectTimeoutMs: 50, HTTPTimeoutMs: 1000, HLSignerPython: "python3", HLSignerScript: "signer.py"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to reject a connect timeout below the 100ms floor")
	}
}

func TestValidateRequiresSignerPathsForHyperliquid(t *testing.T) {
	t.Parallel()

	cfg := &Config{Exchange: "hyperliquid", APIKey: "k", APISecret: "s", HTTPConnectTimeoutMs: 2000, HTTPTimeoutMs: 5000}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to require the signer subprocess paths for hyperliquid")
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Exchange: "hyperliquid", APIKey: "k", APISecret: "s",
		HTTPConnectTimeoutMs: 2000, HTTPTimeoutMs: 5000,
		HLSignerPython: "python3", HLSignerScript: "signer.py",
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected Validate error: %v", err)
	}
}
