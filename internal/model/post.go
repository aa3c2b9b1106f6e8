package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Post is a persisted trade post. Price and P&L fields are computed on
// read and never stored.
type Post struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username"`
	WalletAddress  string    `json:"wallet_address"`
	TokenIn        string    `json:"token_in"`
	TokenOut       string    `json:"token_out"`
	AmountIn       string    `json:"amount_in"`
	AmountOut      string    `json:"amount_out"`
	TxHash         string    `json:"tx_hash"`
	TradeTimestamp int64     `json:"trade_timestamp"`
	Exited         bool      `json:"exited"`
	ExitTimestamp  *int64    `json:"exit_timestamp,omitempty"`
	TotalTips      string    `json:"total_tips"`
	TipCount       int       `json:"tip_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// EnrichedPost is a Post with read-time price context attached. Missing
// prices stay nil; re-deriving from the same inputs is deterministic
// except for CurrentPriceUSD, which is time-varying and cache-bounded.
type EnrichedPost struct {
	Post
	TokenOutSymbol  string           `json:"token_out_symbol"`
	EntryPriceUSD   *decimal.Decimal `json:"entry_price_usd,omitempty"`
	CurrentPriceUSD *decimal.Decimal `json:"current_price_usd,omitempty"`
	ExitPriceUSD    *decimal.Decimal `json:"exit_price_usd,omitempty"`
	PnlPercent      *decimal.Decimal `json:"pnl_percent,omitempty"`
	ViewerTipped    bool             `json:"viewer_tipped"`
}
