package model

import "time"

// User is a provisioned feed identity keyed by wallet address.
type User struct {
	ID            int64     `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Username      string    `json:"username"`
	CreatedAt     time.Time `json:"created_at"`
}
