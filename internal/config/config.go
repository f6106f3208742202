package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "POOLQUOTE"

// DefaultStateView is the Ethereum mainnet v4 StateView deployment.
const DefaultStateView = "0x7fFE42C4a5DEeA5b0feC41C94C136Cf115597227"

const (
	CacheMemory  = "memory"
	CacheRedis   = "redis"
	CacheLayered = "layered"
)

// EngineConfig holds the settings shared by every command that builds an engine.
type EngineConfig struct {
	RPCURL    string
	StateView string
	ChainID   uint64

	QuoteTTL     time.Duration
	PoolStateTTL time.Duration
	TokenMetaTTL time.Duration

	CacheBackend  string
	CacheSize     int
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Singleflight       bool
	StrictFeeTiers     bool
	AllowZeroLiquidity bool
	FeeTiers           map[uint32]int32

	RPCTimeout      time.Duration
	RPCMaxRetries   int
	RPCRetryBackoff time.Duration

	LogLevel string
}

// Load merges config file, environment variables, and flags into EngineConfig.
func Load(cfgFile string, flags *pflag.FlagSet) (EngineConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return EngineConfig{}, err
	}
	return engineConfig(v)
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("state-view", DefaultStateView)
	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("quote-ttl", 30*time.Second)
	v.SetDefault("pool-state-ttl", 60*time.Second)
	v.SetDefault("token-meta-ttl", time.Hour)
	v.SetDefault("cache-backend", CacheMemory)
	v.SetDefault("cache-size", 10000)
	v.SetDefault("redis-addr", "localhost:6379")
	v.SetDefault("redis-db", 0)
	v.SetDefault("singleflight", true)
	v.SetDefault("strict-fee-tiers", false)
	v.SetDefault("allow-zero-liquidity", false)
	v.SetDefault("rpc-timeout", 10*time.Second)
	v.SetDefault("rpc-max-retries", 2)
	v.SetDefault("rpc-retry-backoff", 200*time.Millisecond)
	v.SetDefault("log-level", "info")

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

func engineConfig(v *viper.Viper) (EngineConfig, error) {
	tiers, err := parseFeeTiers(getStringMap(v, "fee-tiers"))
	if err != nil {
		return EngineConfig{}, err
	}

	cfg := EngineConfig{
		RPCURL:             v.GetString("rpc"),
		StateView:          v.GetString("state-view"),
		ChainID:            v.GetUint64("chain-id"),
		QuoteTTL:           v.GetDuration("quote-ttl"),
		PoolStateTTL:       v.GetDuration("pool-state-ttl"),
		TokenMetaTTL:       v.GetDuration("token-meta-ttl"),
		CacheBackend:       strings.ToLower(v.GetString("cache-backend")),
		CacheSize:          v.GetInt("cache-size"),
		RedisAddr:          v.GetString("redis-addr"),
		RedisPassword:      v.GetString("redis-password"),
		RedisDB:            v.GetInt("redis-db"),
		Singleflight:       v.GetBool("singleflight"),
		StrictFeeTiers:     v.GetBool("strict-fee-tiers"),
		AllowZeroLiquidity: v.GetBool("allow-zero-liquidity"),
		FeeTiers:           tiers,
		RPCTimeout:         v.GetDuration("rpc-timeout"),
		RPCMaxRetries:      v.GetInt("rpc-max-retries"),
		RPCRetryBackoff:    v.GetDuration("rpc-retry-backoff"),
		LogLevel:           v.GetString("log-level"),
	}

	switch cfg.CacheBackend {
	case CacheMemory, CacheRedis, CacheLayered:
	default:
		return EngineConfig{}, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
	return cfg, nil
}

// parseFeeTiers converts fee=spacing pairs.
func parseFeeTiers(raw map[string]string) (map[uint32]int32, error) {
	out := make(map[uint32]int32, len(raw))
	for feeStr, spacingStr := range raw {
		fee, err := strconv.ParseUint(strings.TrimSpace(feeStr), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("fee tier %q: %w", feeStr, err)
		}
		spacing, err := strconv.ParseInt(strings.TrimSpace(spacingStr), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("tick spacing for fee %s: %w", feeStr, err)
		}
		out[uint32(fee)] = int32(spacing)
	}
	return out, nil
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

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	input = strings.Trim(strings.TrimSpace(input), "[]")
	if input == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
