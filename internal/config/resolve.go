package config

import (
	"github.com/spf13/pflag"
)

// ResolveConfig holds configuration for the resolve command.
type ResolveConfig struct {
	EngineConfig
	TokenA      string
	TokenB      string
	Fee         uint32
	TickSpacing int32
	Hooks       string
	Pairs       string
	Out         string
	PGDSN       string
}

// LoadResolve merges config file, environment variables, and flags into ResolveConfig.
func LoadResolve(cfgFile string, flags *pflag.FlagSet) (ResolveConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ResolveConfig{}, err
	}
	v.SetDefault("out", "-")

	engine, err := engineConfig(v)
	if err != nil {
		return ResolveConfig{}, err
	}
	return ResolveConfig{
		EngineConfig: engine,
		TokenA:       v.GetString("token-a"),
		TokenB:       v.GetString("token-b"),
		Fee:          v.GetUint32("fee"),
		TickSpacing:  v.GetInt32("tick-spacing"),
		Hooks:        v.GetString("hooks"),
		Pairs:        v.GetString("pairs"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
	}, nil
}
