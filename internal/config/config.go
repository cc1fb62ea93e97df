// Package config assembles runtime settings from four layers, each
// overriding the one before it: built-in defaults, an optional YAML file,
// environment variables (with .env support), and command-line flags.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type GlobalFlags struct {
	ConfigPath         string
	JSON               bool
	Plain              bool
	Listen             string
	DBPath             string
	RPCURL             string
	Env                string
	LogLevel           string
	MaxFeeGwei         string
	MaxPriorityFeeGwei string
	EnableIntents      string
}

// DenyEntry is an operator-supplied address ban loaded from the config file.
type DenyEntry struct {
	Address string `yaml:"address"`
	Reason  string `yaml:"reason"`
}

type Settings struct {
	Env        string `env:"WALLETD_ENV"`
	Listen     string `env:"WALLETD_LISTEN"`
	LogLevel   string `env:"WALLETD_LOG_LEVEL"`
	OutputMode string `env:"WALLETD_OUTPUT"`

	// DBPath selects the wallet store; empty keeps wallets in memory.
	DBPath string `env:"WALLETD_DB"`

	RPCURL        string `env:"BASE_RPC_URL"`
	AggregatorURL string `env:"AGGREGATOR_URL"`
	AggregatorKey string `env:"AGGREGATOR_API_KEY"`

	// EncryptionKeyHex is the 64-hex-character AES-256 key. Empty is only
	// acceptable in development, where a throwaway key is derived.
	EncryptionKeyHex string `env:"WALLET_ENCRYPTION_KEY"`

	HTTPTimeout time.Duration `env:"WALLETD_HTTP_TIMEOUT"`
	Retries     int           `env:"WALLETD_HTTP_RETRIES"`

	RatePerSecond float64 `env:"WALLETD_RATE_PER_SECOND"`
	RateBurst     int     `env:"WALLETD_RATE_BURST"`

	MaxFeeGwei         string `env:"WALLETD_MAX_FEE_GWEI"`
	MaxPriorityFeeGwei string `env:"WALLETD_MAX_PRIORITY_FEE_GWEI"`

	// EnableIntents restricts the router to the listed intents; empty
	// leaves everything enabled.
	EnableIntents []string `env:"WALLETD_ENABLE_INTENTS"`

	Denylist []DenyEntry `env:"-"`
}

type fileConfig struct {
	Env        string `yaml:"env"`
	Listen     string `yaml:"listen"`
	LogLevel   string `yaml:"log_level"`
	Output     string `yaml:"output"`
	DBPath     string `yaml:"db_path"`
	RPCURL     string `yaml:"rpc_url"`
	Aggregator struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key"`
	} `yaml:"aggregator"`
	HTTPTimeout string `yaml:"http_timeout"`
	Retries     *int   `yaml:"retries"`
	Rate        struct {
		PerSecond *float64 `yaml:"per_second"`
		Burst     *int     `yaml:"burst"`
	} `yaml:"rate"`
	Fees struct {
		MaxFeeGwei         string `yaml:"max_fee_gwei"`
		MaxPriorityFeeGwei string `yaml:"max_priority_fee_gwei"`
	} `yaml:"fees"`
	EnableIntents []string    `yaml:"enable_intents"`
	Denylist      []DenyEntry `yaml:"denylist"`
}

func Load(flags GlobalFlags) (Settings, error) {
	// A local .env feeds the environment layer; absence is fine.
	_ = godotenv.Load()

	settings := defaultSettings()

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	if err := env.Parse(&settings); err != nil {
		return Settings{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if err := validate(&settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func defaultSettings() Settings {
	return Settings{
		Env:           EnvDevelopment,
		Listen:        ":8787",
		LogLevel:      "info",
		OutputMode:    "json",
		RPCURL:        "", // registry default applied at wiring time
		HTTPTimeout:   10 * time.Second,
		Retries:       2,
		RatePerSecond: 5,
		RateBurst:     10,
	}
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "walletd", "config.yaml"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Env != "" {
		settings.Env = strings.ToLower(cfg.Env)
	}
	if cfg.Listen != "" {
		settings.Listen = cfg.Listen
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = strings.ToLower(cfg.LogLevel)
	}
	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.DBPath != "" {
		settings.DBPath = cfg.DBPath
	}
	if cfg.RPCURL != "" {
		settings.RPCURL = cfg.RPCURL
	}
	if cfg.Aggregator.URL != "" {
		settings.AggregatorURL = cfg.Aggregator.URL
	}
	if cfg.Aggregator.APIKey != "" {
		settings.AggregatorKey = cfg.Aggregator.APIKey
	}
	if cfg.HTTPTimeout != "" {
		d, err := time.ParseDuration(cfg.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("config http_timeout: %w", err)
		}
		settings.HTTPTimeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Rate.PerSecond != nil {
		settings.RatePerSecond = *cfg.Rate.PerSecond
	}
	if cfg.Rate.Burst != nil {
		settings.RateBurst = *cfg.Rate.Burst
	}
	if cfg.Fees.MaxFeeGwei != "" {
		settings.MaxFeeGwei = cfg.Fees.MaxFeeGwei
	}
	if cfg.Fees.MaxPriorityFeeGwei != "" {
		settings.MaxPriorityFeeGwei = cfg.Fees.MaxPriorityFeeGwei
	}
	if len(cfg.EnableIntents) > 0 {
		settings.EnableIntents = cfg.EnableIntents
	}
	if len(cfg.Denylist) > 0 {
		settings.Denylist = cfg.Denylist
	}

	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if flags.Listen != "" {
		settings.Listen = flags.Listen
	}
	if flags.DBPath != "" {
		settings.DBPath = flags.DBPath
	}
	if flags.RPCURL != "" {
		settings.RPCURL = flags.RPCURL
	}
	if flags.Env != "" {
		settings.Env = strings.ToLower(flags.Env)
	}
	if flags.LogLevel != "" {
		settings.LogLevel = strings.ToLower(flags.LogLevel)
	}
	if flags.MaxFeeGwei != "" {
		settings.MaxFeeGwei = flags.MaxFeeGwei
	}
	if flags.MaxPriorityFeeGwei != "" {
		settings.MaxPriorityFeeGwei = flags.MaxPriorityFeeGwei
	}
	if strings.TrimSpace(flags.EnableIntents) != "" {
		settings.EnableIntents = splitCSV(flags.EnableIntents)
	}
	return nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validate(settings *Settings) error {
	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	if settings.Env != EnvDevelopment && settings.Env != EnvProduction {
		return fmt.Errorf("environment must be %s or %s", EnvDevelopment, EnvProduction)
	}
	if settings.HTTPTimeout <= 0 {
		settings.HTTPTimeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}

	if _, err := settings.EncryptionKey(); err != nil {
		return err
	}
	if settings.Production() && strings.TrimSpace(settings.EncryptionKeyHex) == "" {
		return fmt.Errorf("WALLET_ENCRYPTION_KEY is required in production")
	}
	return nil
}

func (s Settings) Production() bool {
	return s.Env == EnvProduction
}

// EncryptionKey decodes the configured hex key. An empty setting returns
// nil, nil; callers decide whether a missing key is acceptable.
func (s Settings) EncryptionKey() ([]byte, error) {
	v := strings.TrimSpace(s.EncryptionKeyHex)
	if v == "" {
		return nil, nil
	}
	v = strings.TrimPrefix(v, "0x")
	key, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("WALLET_ENCRYPTION_KEY must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("WALLET_ENCRYPTION_KEY must be 32 bytes (64 hex characters), got %d bytes", len(key))
	}
	return key, nil
}
