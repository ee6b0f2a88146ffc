package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Escrow struct {
		// FeePercent is kept as a string so the pricing policy survives the
		// YAML round trip without float drift.
		FeePercent string `yaml:"fee_percent"`
		ExpiryDays int    `yaml:"expiry_days"`
	} `yaml:"escrow"`
	Gateway struct {
		BaseURL      string `yaml:"base_url"`
		CryptoXPub   string `yaml:"crypto_xpub"`
		CryptoPrefix string `yaml:"crypto_prefix"`
	} `yaml:"gateway"`
	Scheduler struct {
		IntervalSeconds int64 `yaml:"interval_seconds"`
	} `yaml:"scheduler"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Escrow.FeePercent == "" {
		cfg.Escrow.FeePercent = "5"
	}
	if cfg.Escrow.ExpiryDays <= 0 {
		cfg.Escrow.ExpiryDays = 30
	}
	if cfg.Scheduler.IntervalSeconds <= 0 {
		cfg.Scheduler.IntervalSeconds = 60
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("ESCROW_FEE_PERCENT"); v != "" {
		cfg.Escrow.FeePercent = v
	}
	if v := os.Getenv("ESCROW_EXPIRY_DAYS"); v != "" {
		cfg.Escrow.ExpiryDays = atoiOr(cfg.Escrow.ExpiryDays, v)
	}
	if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("GATEWAY_CRYPTO_XPUB"); v != "" {
		cfg.Gateway.CryptoXPub = v
	}
	if v := os.Getenv("GATEWAY_CRYPTO_PREFIX"); v != "" {
		cfg.Gateway.CryptoPrefix = v
	}
	if v := os.Getenv("SCHEDULER_INTERVAL_SECONDS"); v != "" {
		cfg.Scheduler.IntervalSeconds = atoi64Or(cfg.Scheduler.IntervalSeconds, v)
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
