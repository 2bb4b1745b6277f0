package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type APICfg struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type RefreshCfg struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	MarginSeconds   int `mapstructure:"margin_seconds"`
}

type Config struct {
	Env      string     `mapstructure:"env"`
	StateDir string     `mapstructure:"state_dir"`
	API      APICfg     `mapstructure:"api"`
	Refresh  RefreshCfg `mapstructure:"refresh"`
	// Derived
	APITimeout      time.Duration
	RefreshInterval time.Duration
	RefreshMargin   time.Duration
}

// Load reads config.yaml (optional) and applies INSURANCE_* env
// overrides, e.g. INSURANCE_API_BASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("INSURANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")
	v.SetDefault("api.base_url", "http://localhost:3000")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("refresh.interval_seconds", 10)
	v.SetDefault("refresh.margin_seconds", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve state dir: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".im-client")
	}

	cfg.APITimeout = time.Duration(cfg.API.TimeoutSeconds) * time.Second
	cfg.RefreshInterval = time.Duration(cfg.Refresh.IntervalSeconds) * time.Second
	cfg.RefreshMargin = time.Duration(cfg.Refresh.MarginSeconds) * time.Second
	return &cfg, nil
}
