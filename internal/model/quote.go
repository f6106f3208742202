package model

// Quote is an approximate swap quote. Big integers are decimal strings.
type Quote struct {
	TokenIn        string  `json:"token_in"`
	TokenOut       string  `json:"token_out"`
	AmountIn       string  `json:"amount_in"`
	AmountOut      string  `json:"amount_out"`
	Price          float64 `json:"price"`
	PriceImpactPct float64 `json:"price_impact_pct"`
	Fee            uint32  `json:"fee"`
	TickSpacing    int32   `json:"tick_spacing"`
	PoolID         string  `json:"pool_id"`
	ZeroForOne     bool    `json:"zero_for_one"`
	SqrtPriceX96   string  `json:"sqrt_price_x96"`
	Tick           int32   `json:"tick"`
	Liquidity      string  `json:"liquidity"`
	UnknownFeeTier bool    `json:"unknown_fee_tier,omitempty"`
}

// QuoteRecord is a quote journal row written by the watch loop.
type QuoteRecord struct {
	ChainID    uint64 `json:"chain_id"`
	ObservedAt string `json:"observed_at"`
	Cached     bool   `json:"cached"`
	Quote
}
