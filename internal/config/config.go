package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "SCANNER"

	DefaultRPC   = "https://api.mainnet-beta.solana.com"
	DefaultStart = "So11111111111111111111111111111111111111112=1000000000"
)

// PoolGroup lists the pools configured under one asset, per protocol.
type PoolGroup struct {
	Asset       string   `mapstructure:"asset"`
	Mint        string   `mapstructure:"mint"`
	RaydiumAMM  []string `mapstructure:"raydium_amm"`
	RaydiumCLMM []string `mapstructure:"raydium_clmm"`
	MeteoraDLMM []string `mapstructure:"meteora_dlmm"`
}

// AssetKey returns Asset, or Mint when Asset is empty.
func (g PoolGroup) AssetKey() string {
	if s := strings.TrimSpace(g.Asset); s != "" {
		return s
	}
	return strings.TrimSpace(g.Mint)
}

// Config holds configuration values for the scan command.
type Config struct {
	RPCURL       string
	Commitment   string
	RPCRPS       float64
	RPCBurst     int
	MaxRetries   int
	RetryBackoff time.Duration
	MaxHops      int
	Interval     time.Duration
	Out          string
	PGDSN        string
	MetricsAddr  string
	LogLevel     string
	Starts       []string
	Pools        []PoolGroup
}

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("rpc", DefaultRPC)
		v.SetDefault("commitment", "confirmed")
		v.SetDefault("rpc-rps", 10.0)
		v.SetDefault("rpc-burst", 5)
		v.SetDefault("max-retries", 3)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("max-hops", 4)
		v.SetDefault("interval", time.Duration(0))
		v.SetDefault("out", "")
		v.SetDefault("pg-dsn", "")
		v.SetDefault("metrics-addr", "")
		v.SetDefault("log-level", "info")
		v.SetDefault("start", []string{DefaultStart})
	})
	if err != nil {
		return Config{}, err
	}

	pools, err := loadPools(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:       v.GetString("rpc"),
		Commitment:   v.GetString("commitment"),
		RPCRPS:       v.GetFloat64("rpc-rps"),
		RPCBurst:     v.GetInt("rpc-burst"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		MaxHops:      v.GetInt("max-hops"),
		Interval:     v.GetDuration("interval"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		MetricsAddr:  v.GetString("metrics-addr"),
		LogLevel:     v.GetString("log-level"),
		Starts:       getStringSlice(v, "start"),
		Pools:        pools,
	}
	return cfg, nil
}

// InspectConfig holds configuration for the inspect command.
type InspectConfig struct {
	RPCURL     string
	Commitment string
	Out        string
	Errors     string
	BinArrays  bool
	PGDSN      string
	LogLevel   string
	Pools      []PoolGroup
}

// LoadInspect merges .env, config file, environment variables, and flags into InspectConfig.
func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("rpc", DefaultRPC)
		v.SetDefault("commitment", "confirmed")
		v.SetDefault("out", "./data/pools.jsonl")
		v.SetDefault("errors", "./data/pool_errors.jsonl")
		v.SetDefault("bin-arrays", false)
		v.SetDefault("pg-dsn", "")
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return InspectConfig{}, err
	}

	pools, err := loadPools(v)
	if err != nil {
		return InspectConfig{}, err
	}

	return InspectConfig{
		RPCURL:     v.GetString("rpc"),
		Commitment: v.GetString("commitment"),
		Out:        v.GetString("out"),
		Errors:     v.GetString("errors"),
		BinArrays:  v.GetBool("bin-arrays"),
		PGDSN:      v.GetString("pg-dsn"),
		LogLevel:   v.GetString("log-level"),
		Pools:      pools,
	}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	defaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadPools(v *viper.Viper) ([]PoolGroup, error) {
	if !v.IsSet("pools") {
		return nil, nil
	}
	var groups []PoolGroup
	if err := v.UnmarshalKey("pools", &groups); err != nil {
		return nil, fmt.Errorf("parse pools: %w", err)
	}
	for i := range groups {
		groups[i].RaydiumAMM = cleanStrings(groups[i].RaydiumAMM)
		groups[i].RaydiumCLMM = cleanStrings(groups[i].RaydiumCLMM)
		groups[i].MeteoraDLMM = cleanStrings(groups[i].MeteoraDLMM)
		if groups[i].AssetKey() == "" {
			return nil, fmt.Errorf("pools[%d]: asset is required", i)
		}
	}
	return groups, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

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
