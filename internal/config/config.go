package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults for the Sepolia deployment.
const (
	DefaultSwapContract = "0xE03A1074c86CFeDd5C142C4F04F1a1536e203543"
	DefaultToken0       = "0x7b79995e5f793A07Bc00c21412e50Ecae098E7f9"
	DefaultToken1       = "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Addr string

	IndexerURL   string
	IndexerToken string
	OracleURL    string
	ExplorerURL  string
	ExplorerKey  string
	PgDSN        string

	SwapContracts []string
	DefaultToken0 string
	DefaultToken1 string

	PriceCacheTTL     time.Duration
	UpstreamTimeout   time.Duration
	EnrichConcurrency int

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("oracle-url", "https://hermes.pyth.network")
	v.SetDefault("explorer-url", "https://api-sepolia.etherscan.io")
	v.SetDefault("swap-contract", []string{DefaultSwapContract})
	v.SetDefault("default-token0", DefaultToken0)
	v.SetDefault("default-token1", DefaultToken1)
	v.SetDefault("price-cache-ttl", 30*time.Second)
	v.SetDefault("upstream-timeout", 30*time.Second)
	v.SetDefault("enrich-concurrency", 8)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Addr:              v.GetString("addr"),
		IndexerURL:        v.GetString("indexer-url"),
		IndexerToken:      v.GetString("indexer-token"),
		OracleURL:         v.GetString("oracle-url"),
		ExplorerURL:       v.GetString("explorer-url"),
		ExplorerKey:       v.GetString("explorer-key"),
		PgDSN:             v.GetString("pg-dsn"),
		SwapContracts:     getStringSlice(v, "swap-contract"),
		DefaultToken0:     v.GetString("default-token0"),
		DefaultToken1:     v.GetString("default-token1"),
		PriceCacheTTL:     v.GetDuration("price-cache-ttl"),
		UpstreamTimeout:   v.GetDuration("upstream-timeout"),
		EnrichConcurrency: v.GetInt("enrich-concurrency"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
