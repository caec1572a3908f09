package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	Lighter     LighterConfig     `mapstructure:"lighter"`
	Hub         HubConfig         `mapstructure:"hub"`
	Hyperliquid HyperliquidConfig `mapstructure:"hyperliquid"`
	Orders      OrdersConfig      `mapstructure:"orders"`
	Confirm     ConfirmConfig     `mapstructure:"confirm"`
	Session     SessionConfig     `mapstructure:"session"`
	Deposit     DepositConfig     `mapstructure:"deposit"`
}

type AppConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type LighterConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
	// ChainID is the wallet chain the signing hub resolves Lighter accounts on.
	ChainID string `mapstructure:"chain_id"`
}

// HubConfig points at the wallet hub that custodies keys and signs.
type HubConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type HyperliquidConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type OrdersConfig struct {
	DefaultLeverage int     `mapstructure:"default_leverage"`
	MaxSlippage     float64 `mapstructure:"max_slippage"`
}

type ConfirmConfig struct {
	TimeoutMs  int `mapstructure:"timeout_ms"`
	IntervalMs int `mapstructure:"interval_ms"`
}

type SessionConfig struct {
	StorePath string `mapstructure:"store_path"`
}

type DepositConfig struct {
	RPCURL        string `mapstructure:"rpc_url"`
	ChainID       int64  `mapstructure:"chain_id"`
	WalletChainID string `mapstructure:"wallet_chain_id"`
	USDCAddress   string `mapstructure:"usdc_address"`
	BridgeAddress string `mapstructure:"bridge_address"`
	TimeoutMs     int    `mapstructure:"timeout_ms"`
}

func (c LighterConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }
func (c HubConfig) Timeout() time.Duration     { return time.Duration(c.TimeoutMs) * time.Millisecond }
func (c DepositConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }

func (c ConfirmConfig) Timeout() time.Duration  { return time.Duration(c.TimeoutMs) * time.Millisecond }
func (c ConfirmConfig) Interval() time.Duration { return time.Duration(c.IntervalMs) * time.Millisecond }

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 3000)
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("lighter.base_url", "https://mainnet.zklighter.elliot.ai")
	v.SetDefault("lighter.timeout_ms", 10000)
	v.SetDefault("lighter.chain_id", "evm:eip155:8453")

	v.SetDefault("hub.base_url", "")
	v.SetDefault("hub.timeout_ms", 30000)

	v.SetDefault("hyperliquid.base_url", "https://api.hyperliquid.xyz")

	v.SetDefault("orders.default_leverage", 10)
	v.SetDefault("orders.max_slippage", 0.05)

	v.SetDefault("confirm.timeout_ms", 60000)
	v.SetDefault("confirm.interval_ms", 2000)

	v.SetDefault("session.store_path", "")

	v.SetDefault("deposit.rpc_url", "https://arb1.arbitrum.io/rpc")
	v.SetDefault("deposit.chain_id", 42161)
	v.SetDefault("deposit.wallet_chain_id", "evm:eip155:42161")
	v.SetDefault("deposit.usdc_address", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	v.SetDefault("deposit.bridge_address", "")
	v.SetDefault("deposit.timeout_ms", 120000)
}

// LoadConfig reads config.yaml from path, then .env, then the environment.
// A missing config file is fine; every key has a default.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return errors.Errorf("app.port %d out of range", c.App.Port)
	}
	if c.Lighter.BaseURL == "" {
		return errors.New("lighter.base_url is required")
	}
	if c.Orders.DefaultLeverage < 1 || c.Orders.DefaultLeverage > 100 {
		return errors.Errorf("orders.default_leverage %d must be between 1 and 100", c.Orders.DefaultLeverage)
	}
	if c.Orders.MaxSlippage <= 0 || c.Orders.MaxSlippage >= 1 {
		return errors.Errorf("orders.max_slippage %v must be in (0, 1)", c.Orders.MaxSlippage)
	}
	if c.Confirm.IntervalMs <= 0 || c.Confirm.TimeoutMs < c.Confirm.IntervalMs {
		return errors.New("confirm: interval_ms must be positive and not exceed timeout_ms")
	}
	return nil
}
