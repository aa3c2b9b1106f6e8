package model

import "time"

// Tip verification outcomes. Verification is best-effort: an unverifiable
// transfer downgrades to unverified, it is never rejected for that reason.
const (
	TipStatusVerified   = "verified"
	TipStatusUnverified = "unverified"
)

// Tip is a tipping record attached to a post.
type Tip struct {
	ID         int64     `json:"id"`
	PostID     int64     `json:"post_id"`
	FromWallet string    `json:"from_wallet"`
	Amount     string    `json:"amount"`
	TxHash     string    `json:"tx_hash"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
