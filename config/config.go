package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	APIBaseURL string
	GasAPIURL  string

	RPCURL         string
	ChainID        int64
	PrivateKey     string
	AccountAddress string
	NativeSymbol   string

	DefaultSlippage    float64
	FiatConversionRate decimal.Decimal
	QuotePollInterval  time.Duration
	RequestTimeout     time.Duration

	StoreBackend string
	StorePath    string

	OneClickJWTToken string
	OneClickBaseURL  string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".wallet-swap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("api_base_url", "https://api.metaswap.codefi.network")
	viper.SetDefault("gas_api_url", "https://api.metaswap.codefi.network/gasPrices")
	viper.SetDefault("chain_id", 1)
	viper.SetDefault("native_symbol", "ETH")
	viper.SetDefault("default_slippage", 2)
	viper.SetDefault("fiat_conversion_rate", "0")
	viper.SetDefault("quote_poll_interval", "60s")
	viper.SetDefault("request_timeout", "15s")
	viper.SetDefault("store_backend", "file")
	viper.SetDefault("oneclick_base_url", "https://1click.chaindefuser.com")

	// Read from environment variables
	viper.SetEnvPrefix("SWAPS")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	rate, err := decimal.NewFromString(viper.GetString("fiat_conversion_rate"))
	if err != nil {
		return nil, fmt.Errorf("invalid fiat_conversion_rate: %w", err)
	}

	cfg := &Config{
		APIBaseURL:         viper.GetString("api_base_url"),
		GasAPIURL:          viper.GetString("gas_api_url"),
		RPCURL:             viper.GetString("rpc_url"),
		ChainID:            viper.GetInt64("chain_id"),
		PrivateKey:         viper.GetString("private_key"),
		AccountAddress:     viper.GetString("account_address"),
		NativeSymbol:       viper.GetString("native_symbol"),
		DefaultSlippage:    viper.GetFloat64("default_slippage"),
		FiatConversionRate: rate,
		QuotePollInterval:  viper.GetDuration("quote_poll_interval"),
		RequestTimeout:     viper.GetDuration("request_timeout"),
		StoreBackend:       viper.GetString("store_backend"),
		StorePath:          viper.GetString("store_path"),
		OneClickJWTToken:   viper.GetString("oneclick_jwt_token"),
		OneClickBaseURL:    viper.GetString("oneclick_base_url"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("swaps API URL not found. Please set SWAPS_API_BASE_URL environment variable or api_base_url in .wallet-swap.yaml")
	}
	if c.DefaultSlippage <= 0 || c.DefaultSlippage > 100 {
		return fmt.Errorf("default_slippage must be between 0 and 100, got %v", c.DefaultSlippage)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}

// RequireChain checks the settings needed to read from and send to the chain
func (c *Config) RequireChain(signing bool) error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC URL not found. Please set SWAPS_RPC_URL environment variable or rpc_url in .wallet-swap.yaml")
	}
	if signing && c.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set SWAPS_PRIVATE_KEY environment variable")
	}
	if !signing && c.PrivateKey == "" && c.AccountAddress == "" {
		return fmt.Errorf("account not found. Please set SWAPS_ACCOUNT_ADDRESS or SWAPS_PRIVATE_KEY")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
