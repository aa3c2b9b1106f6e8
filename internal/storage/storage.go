// Package storage defines the feed/post store contract. The schema is
// externally owned; this layer only selects, inserts, and updates.
package storage

import (
	"context"
	"errors"

	"swapFeed/internal/model"
)

// Feed sort orders.
const (
	SortRecent = "recent"
	SortPnl    = "pnl"
	SortTipped = "tipped"
)

// Duplicate-key outcomes distinguished by callers: a taken username is
// retried, an existing wallet or post is a conflict.
var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateWallet   = errors.New("wallet already provisioned")
	ErrDuplicatePost     = errors.New("post already exists for transaction")
	ErrNotFound          = errors.New("not found")
)

// Store is the relational store surface used by the service layer.
type Store interface {
	CreateUser(ctx context.Context, walletAddress, username string) (model.User, error)
	UserByWallet(ctx context.Context, walletAddress string) (model.User, error)
	UserByUsername(ctx context.Context, username string) (model.User, error)

	CreatePost(ctx context.Context, post model.Post) (model.Post, error)
	PostByID(ctx context.Context, id int64) (model.Post, error)
	PostByTxHash(ctx context.Context, txHash string) (model.Post, error)
	Posts(ctx context.Context, sort string, limit, offset int) ([]model.Post, error)
	MarkExited(ctx context.Context, postID int64, exitTimestamp int64) error

	RecordTip(ctx context.Context, tip model.Tip) (model.Tip, error)
	TipsForPost(ctx context.Context, postID int64) ([]model.Tip, error)
	TipsForUser(ctx context.Context, username string) ([]model.Tip, error)
	HasTipped(ctx context.Context, postID int64, fromWallet string) (bool, error)
}
