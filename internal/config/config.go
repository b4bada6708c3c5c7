package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/savings-ledger/internal/chain"
)

// EnvPrefix is prepended to every environment override, e.g. SAVINGS_RPC_URL
const EnvPrefix = "SAVINGS"

// envOnlyKeys have no default and may be absent from the file
var envOnlyKeys = []string{
	"rpc_url",
	"contracts.quicksave",
	"contracts.safelock",
	"contracts.circle_factory",
}

// Config represents the application configuration
type Config struct {
	RPCURL       string          `mapstructure:"rpc_url"`
	LogLevel     string          `mapstructure:"log_level"`
	LogPretty    bool            `mapstructure:"log_pretty"`
	PollInterval time.Duration   `mapstructure:"poll_interval"`
	Contracts    ContractsConfig `mapstructure:"contracts"`
	Timeouts     TimeoutsConfig  `mapstructure:"timeouts"`
	Server       ServerConfig    `mapstructure:"server"`
}

// ContractsConfig holds the deployed addresses of the savings contracts
type ContractsConfig struct {
	QuickSave     string `mapstructure:"quicksave"`
	SafeLock      string `mapstructure:"safelock"`
	CircleFactory string `mapstructure:"circle_factory"`
}

// TimeoutsConfig bounds individual contract reads
type TimeoutsConfig struct {
	Call time.Duration `mapstructure:"call"` // single reads
	Scan time.Duration `mapstructure:"scan"` // discovery reads over larger state
}

// ServerConfig defines the HTTP listener
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoadConfig loads configuration from file and environment variables.
// A .env file in the working directory is applied first when present.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Set defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("poll_interval", "30s")
	v.SetDefault("timeouts.call", "10s")
	v.SetDefault("timeouts.scan", "15s")
	v.SetDefault("server.addr", ":8080")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks addresses and durations
func (c *Config) Validate() error {
	var errs []error

	for name, addr := range map[string]string{
		"contracts.quicksave":      c.Contracts.QuickSave,
		"contracts.safelock":       c.Contracts.SafeLock,
		"contracts.circle_factory": c.Contracts.CircleFactory,
	} {
		if addr != "" && !chain.IsAddress(addr) {
			errs = append(errs, fmt.Errorf("%s: malformed address %q", name, addr))
		}
	}

	if c.Timeouts.Call <= 0 {
		errs = append(errs, errors.New("timeouts.call must be positive"))
	}
	if c.Timeouts.Scan <= 0 {
		errs = append(errs, errors.New("timeouts.scan must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}

	return errors.Join(errs...)
}
