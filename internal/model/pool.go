package model

// ResolvedPool is a canonical pool key with its id.
type ResolvedPool struct {
	PoolID       string `json:"pool_id"`
	Currency0    string `json:"currency0"`
	Currency1    string `json:"currency1"`
	Fee          uint32 `json:"fee"`
	TickSpacing  int32  `json:"tick_spacing"`
	Hooks        string `json:"hooks"`
	KnownFeeTier bool   `json:"known_fee_tier"`
}

// Pool is a resolved pool record for storage.
type Pool struct {
	ChainID uint64 `json:"chain_id"`
	ResolvedPool
}
