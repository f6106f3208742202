package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// WatchConfig holds configuration for the watch command.
type WatchConfig struct {
	EngineConfig
	Quotes      []string
	Interval    time.Duration
	Iterations  int
	MetricsAddr string
	Out         string
	PGDSN       string
}

// LoadWatch merges config file, environment variables, and flags into WatchConfig.
// Each quote entry is tokenIn:tokenOut:amount:fee.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return WatchConfig{}, err
	}
	v.SetDefault("interval", 15*time.Second)
	v.SetDefault("iterations", 0)

	engine, err := engineConfig(v)
	if err != nil {
		return WatchConfig{}, err
	}
	cfg := WatchConfig{
		EngineConfig: engine,
		Quotes:       getStringSlice(v, "quote"),
		Interval:     v.GetDuration("interval"),
		Iterations:   v.GetInt("iterations"),
		MetricsAddr:  v.GetString("metrics-addr"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
	}
	if cfg.Interval <= 0 {
		return WatchConfig{}, fmt.Errorf("interval must be positive")
	}
	return cfg, nil
}
