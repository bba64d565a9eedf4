package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
)

// Config captures the runtime settings for the lending service daemon.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	Environment   string          `yaml:"env"`
	Storage       StorageConfig   `yaml:"storage"`
	Log           LogConfig       `yaml:"log"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`

	// Owner is the protocol owner address; fee revenue accrues to it and
	// administrative calls must originate from it.
	Owner string `yaml:"owner"`
	// Pool is the lending pool module address holding reserve liquidity.
	Pool string `yaml:"pool"`
	// ReserveParams points at the TOML file listing the reserves to
	// register at startup.
	ReserveParams string `yaml:"reserve_params"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`
}

// LogConfig controls structured log output and rotation.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// RateLimitConfig throttles mutating API requests per client.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8545",
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8545"
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.Owner = strings.TrimSpace(cfg.Owner)
	cfg.Pool = strings.TrimSpace(cfg.Pool)
	cfg.ReserveParams = strings.TrimSpace(cfg.ReserveParams)
	cfg.Storage.normalize()
	cfg.Log.File = strings.TrimSpace(cfg.Log.File)
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.Owner == "" {
		return fmt.Errorf("owner address required")
	}
	if _, err := crypto.DecodeAddress(cfg.Owner); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	if cfg.Pool == "" {
		return fmt.Errorf("pool address required")
	}
	if _, err := crypto.DecodeAddress(cfg.Pool); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if cfg.ReserveParams == "" {
		return fmt.Errorf("reserve_params path required")
	}
	if err := cfg.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

func (cfg *StorageConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = "leveldb"
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
}

func (cfg StorageConfig) validate() error {
	switch cfg.Backend {
	case "leveldb":
		if cfg.DataDir == "" {
			return fmt.Errorf("data_dir required for the leveldb backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
	return nil
}

// OwnerAddress returns the decoded protocol owner address. Call after Load.
func (cfg Config) OwnerAddress() (crypto.Address, error) {
	return crypto.DecodeAddress(cfg.Owner)
}

// PoolAddress returns the decoded lending pool address. Call after Load.
func (cfg Config) PoolAddress() (crypto.Address, error) {
	return crypto.DecodeAddress(cfg.Pool)
}
