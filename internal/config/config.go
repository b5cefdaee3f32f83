// Package config implements the trading engine's configuration surface
// (C13): a small, fixed CLI flag set plus LATENTSPEED_* environment
// variables, bound and validated the same two-layer way the teacher's
// own config.Load binds POLY_* env vars over a viper instance.
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	minHTTPConnectTimeoutMs = 100
	minHTTPTimeoutMs        = 200

	defaultHTTPConnectTimeoutMs = 2000
	defaultHTTPTimeoutMs        = 5000
	defaultNATSURL              = "nats://127.0.0.1:4222"
	defaultStatsAddr            = ":9090"
	defaultStatsInterval        = "5s"
)

// Config is the process-wide configuration: CLI flags plus LATENTSPEED_*
// environment variables.
type Config struct {
	Exchange  string
	APIKey    string
	APISecret string
	LiveTrade bool

	HTTPConnectTimeoutMs int `mapstructure:"http_connect_timeout_ms"`
	HTTPTimeoutMs        int `mapstructure:"http_timeout_ms"`

	HLSignerPython string `mapstructure:"hl_signer_python"`
	HLSignerScript string `mapstructure:"hl_signer_script"`

	NATSURL       string `mapstructure:"nats_url"`
	StatsAddr     string `mapstructure:"stats_addr"`
	StatsInterval string `mapstructure:"stats_interval"`
}

// Parse reads CLI flags from args (typically os.Args[1:]) and layers
// LATENTSPEED_* environment variables on top via viper.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("tradingengine", flag.ContinueOnError)
	exchange := fs.String("exchange", "", "venue name to trade on (e.g. hyperliquid)")
	apiKey := fs.String("api-key", "", "venue account/API key")
	apiSecret := fs.String("api-secret", "", "venue API secret or signing key")
	liveTrade := fs.Bool("live-trade", false, "trade against mainnet (absent means testnet)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("LATENTSPEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_connect_timeout_ms", defaultHTTPConnectTimeoutMs)
	v.SetDefault("http_timeout_ms", defaultHTTPTimeoutMs)
	v.SetDefault("nats_url", defaultNATSURL)
	v.SetDefault("stats_addr", defaultStatsAddr)
	v.SetDefault("stats_interval", defaultStatsInterval)

	cfg := &Config{
		Exchange:             *exchange,
		APIKey:               *apiKey,
		APISecret:            *apiSecret,
		LiveTrade:            *liveTrade,
		HTTPConnectTimeoutMs: v.GetInt("http_connect_timeout_ms"),
		HTTPTimeoutMs:        v.GetInt("http_timeout_ms"),
		HLSignerPython:       v.GetString("hl_signer_python"),
		HLSignerScript:       v.GetString("hl_signer_script"),
		NATSURL:              v.GetString("nats_url"),
		StatsAddr:            v.GetString("stats_addr"),
		StatsInterval:        v.GetString("stats_interval"),
	}
	return cfg, nil
}

// Validate checks required fields and the documented lower bounds on the
// HTTP timeout env vars.
func (c *Config) Validate() error {
	if c.Exchange == "" {
		return fmt.Errorf("config: --exchange is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("config: --api-key is required")
	}
	if c.APISecret == "" {
		return fmt.Errorf("config: --api-secret is required")
	}
	if c.HTTPConnectTimeoutMs < minHTTPConnectTimeoutMs {
		return fmt.Errorf("config: LATENTSPEED_HTTP_CONNECT_TIMEOUT_MS must be >= %d, got %d", minHTTPConnectTimeoutMs, c.HTTPConnectTimeoutMs)
	}
	if c.HTTPTimeoutMs < minHTTPTimeoutMs {
		return fmt.Errorf("config: LATENTSPEED_HTTP_TIMEOUT_MS must be >= %d, got %d", minHTTPTimeoutMs, c.HTTPTimeoutMs)
	}
	if strings.EqualFold(c.Exchange, "hyperliquid") {
		if c.HLSignerPython == "" {
			return fmt.Errorf("config: LATENTSPEED_HL_SIGNER_PYTHON is required for the hyperliquid adapter")
		}
		if c.HLSignerScript == "" {
			return fmt.Errorf("config: LATENTSPEED_HL_SIGNER_SCRIPT is required for the hyperliquid adapter")
		}
	}
	return nil
}
