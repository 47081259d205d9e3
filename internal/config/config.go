// Package config loads the YAML configuration shared by the openorders
// binaries, including the seed data of the in-memory ledger.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"openorders/internal/common"
	"openorders/internal/ledger"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

const envPrefix = "OPENORDERS"

type Config struct {
	LogLevel string          `mapstructure:"log_level"`
	Account  string          `mapstructure:"account"`
	Workers  int             `mapstructure:"workers"` // Background workers of the client event loop
	Node     NodeConfig      `mapstructure:"node"`
	Market   MarketConfig    `mapstructure:"market"`
	Wallet   WalletConfig    `mapstructure:"wallet"`
	Fees     FeeConfig       `mapstructure:"fees"`
	Assets   []AssetConfig   `mapstructure:"assets"`
	Accounts []AccountConfig `mapstructure:"accounts"`
	Orders   []OrderConfig   `mapstructure:"orders"`
}

type NodeConfig struct {
	Address string        `mapstructure:"address"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MarketConfig names the base and quote asset by id or symbol.
type MarketConfig struct {
	Base  string `mapstructure:"base"`
	Quote string `mapstructure:"quote"`
}

type WalletConfig struct {
	PasswordHash string `mapstructure:"password_hash"`
}

type FeeConfig struct {
	Asset            string        `mapstructure:"asset"`
	LimitOrderCancel int64         `mapstructure:"limit_order_cancel"`
	Expiration       time.Duration `mapstructure:"expiration"`
}

type AssetConfig struct {
	ID        string `mapstructure:"id"`
	Symbol    string `mapstructure:"symbol"`
	Precision int32  `mapstructure:"precision"`
}

type AccountConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type AmountConfig struct {
	Amount  int64  `mapstructure:"amount"`
	AssetID string `mapstructure:"asset_id"`
}

type PriceConfig struct {
	Base  AmountConfig `mapstructure:"base"`
	Quote AmountConfig `mapstructure:"quote"`
}

type OrderConfig struct {
	ID         string      `mapstructure:"id"`
	Seller     string      `mapstructure:"seller"`
	ForSale    int64       `mapstructure:"for_sale"`
	SellPrice  PriceConfig `mapstructure:"sell_price"`
	Expiration string      `mapstructure:"expiration"` // RFC 3339
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("account", "")
	v.SetDefault("workers", 4)
	v.SetDefault("node.address", "127.0.0.1")
	v.SetDefault("node.port", 9001)
	v.SetDefault("node.timeout", 5*time.Second)
	v.SetDefault("wallet.password_hash", "")
	v.SetDefault("fees.expiration", 15*time.Second)
}

// Load reads the configuration at path, or ./config.yaml when path is
// empty. OPENORDERS_* environment variables override file values, e.g.
// OPENORDERS_NODE_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Market.Base == "" || c.Market.Quote == "":
		return fmt.Errorf("%w: market.base and market.quote are required", ErrInvalidConfig)
	case c.Fees.Asset == "":
		return fmt.Errorf("%w: fees.asset is required", ErrInvalidConfig)
	case c.Node.Port < 0 || c.Node.Port > 65535:
		return fmt.Errorf("%w: node.port %d out of range", ErrInvalidConfig, c.Node.Port)
	case c.Account != "" && c.Wallet.PasswordHash == "":
		return fmt.Errorf("%w: wallet.password_hash is required with an account", ErrInvalidConfig)
	}
	if c.Wallet.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Wallet.PasswordHash)); err != nil {
			return fmt.Errorf("%w: wallet.password_hash: %v", ErrInvalidConfig, err)
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ---- Conversions ----

func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func (c *Config) NodeAddress() string {
	return fmt.Sprintf("%s:%d", c.Node.Address, c.Node.Port)
}

func (c *Config) FeeSchedule() ledger.FeeSchedule {
	return ledger.FeeSchedule{
		AssetID: c.Fees.Asset,
		Fees: map[ledger.OperationType]int64{
			ledger.LimitOrderCancel: c.Fees.LimitOrderCancel,
		},
	}
}

func (c *Config) SeedAssets() []common.Asset {
	assets := make([]common.Asset, 0, len(c.Assets))
	for _, a := range c.Assets {
		assets = append(assets, common.Asset{ID: a.ID, Symbol: a.Symbol, Precision: a.Precision})
	}
	return assets
}

func (c *Config) SeedAccounts() []common.Account {
	accounts := make([]common.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		accounts = append(accounts, common.Account{ID: a.ID, Name: a.Name})
	}
	return accounts
}

func (c *Config) SeedOrders() ([]common.Order, error) {
	orders := make([]common.Order, 0, len(c.Orders))
	for _, o := range c.Orders {
		expiration, err := time.Parse(time.RFC3339, o.Expiration)
		if err != nil {
			return nil, fmt.Errorf("%w: order %s expiration: %v", ErrInvalidConfig, o.ID, err)
		}
		orders = append(orders, common.Order{
			ID:      o.ID,
			Seller:  o.Seller,
			ForSale: o.ForSale,
			SellPrice: common.Price{
				Base:  common.AssetAmount{Amount: o.SellPrice.Base.Amount, AssetID: o.SellPrice.Base.AssetID},
				Quote: common.AssetAmount{Amount: o.SellPrice.Quote.Amount, AssetID: o.SellPrice.Quote.AssetID},
			},
			Expiration: expiration,
		})
	}
	return orders, nil
}
