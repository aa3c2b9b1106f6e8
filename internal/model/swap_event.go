package model

// SwapEventData is the decoded swap event payload. A log that fails to
// decode yields the zero value rather than aborting the batch.
type SwapEventData struct {
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
	Fee          uint32 `json:"fee"`
	PoolID       string `json:"pool_id"`
}
