package model

// PoolState captures slot0 and liquidity for a resolved pool.
type PoolState struct {
	Pool      ResolvedPool `json:"pool"`
	Slot0     Slot0        `json:"slot0"`
	Liquidity string       `json:"liquidity"`
	Price     float64      `json:"price"`
	FetchedAt string       `json:"fetched_at"`
}
