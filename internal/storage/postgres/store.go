// Package postgres implements the feed store on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapFeed/internal/model"
	"swapFeed/internal/storage"
	"swapFeed/internal/validate"
)

// Store provides Postgres persistence for users, posts, and tips.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const uniqueViolation = "23505"

func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return storage.ErrDuplicateUsername
	case strings.Contains(pgErr.ConstraintName, "wallet"):
		return storage.ErrDuplicateWallet
	case strings.Contains(pgErr.ConstraintName, "tx_hash"):
		return storage.ErrDuplicatePost
	default:
		return storage.ErrDuplicatePost
	}
}

// CreateUser inserts a user; wallet addresses are stored lowercased.
func (s *Store) CreateUser(ctx context.Context, walletAddress, username string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (wallet_address, username, created_at)
		VALUES ($1, $2, now())
		RETURNING id, wallet_address, username, created_at
	`, validate.NormalizeAddress(walletAddress), username)

	if err := row.Scan(&user.ID, &user.WalletAddress, &user.Username, &user.CreatedAt); err != nil {
		if dup := duplicateError(err); dup != nil {
			return model.User{}, dup
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *Store) UserByWallet(ctx context.Context, walletAddress string) (model.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, wallet_address, username, created_at
		FROM users WHERE wallet_address = $1
	`, validate.NormalizeAddress(walletAddress)))
}

func (s *Store) UserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, wallet_address, username, created_at
		FROM users WHERE username = $1
	`, username))
}

func (s *Store) scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	if err := row.Scan(&user.ID, &user.WalletAddress, &user.Username, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, storage.ErrNotFound
		}
		return model.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

const postColumns = `
	p.id, p.user_id, u.username, u.wallet_address,
	p.token_in, p.token_out, p.amount_in, p.amount_out,
	p.tx_hash, p.trade_timestamp, p.exited, p.exit_timestamp,
	p.total_tips, p.tip_count, p.created_at
`

// CreatePost inserts a trade post; tx_hash is unique, duplicates conflict.
func (s *Store) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO posts (
			user_id, token_in, token_out, amount_in, amount_out,
			tx_hash, trade_timestamp, exited, exit_timestamp,
			total_tips, tip_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, now())
		RETURNING id, created_at
	`,
		post.UserID,
		validate.NormalizeAddress(post.TokenIn),
		validate.NormalizeAddress(post.TokenOut),
		post.AmountIn,
		post.AmountOut,
		strings.ToLower(post.TxHash),
		post.TradeTimestamp,
		post.Exited,
		post.ExitTimestamp,
	)

	if err := row.Scan(&post.ID, &post.CreatedAt); err != nil {
		if dup := duplicateError(err); dup != nil {
			return model.Post{}, dup
		}
		return model.Post{}, fmt.Errorf("insert post: %w", err)
	}
	post.TotalTips = "0"
	return post, nil
}

func (s *Store) PostByID(ctx context.Context, id int64) (model.Post, error) {
	return s.scanPost(s.pool.QueryRow(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`, id))
}

func (s *Store) PostByTxHash(ctx context.Context, txHash string) (model.Post, error) {
	return s.scanPost(s.pool.QueryRow(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.tx_hash = $1
	`, strings.ToLower(txHash)))
}

// Posts returns one feed page. The pnl sort cannot be expressed in SQL
// because P&L is computed on read; it pages by recency and the service
// re-orders the enriched page.
func (s *Store) Posts(ctx context.Context, sort string, limit, offset int) ([]model.Post, error) {
	order := "p.created_at DESC"
	if sort == storage.SortTipped {
		order = "p.total_tips DESC, p.created_at DESC"
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		ORDER BY `+order+`
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, limit)
	for rows.Next() {
		post, err := s.scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (s *Store) scanPost(row pgx.Row) (model.Post, error) {
	var post model.Post
	err := row.Scan(
		&post.ID, &post.UserID, &post.Username, &post.WalletAddress,
		&post.TokenIn, &post.TokenOut, &post.AmountIn, &post.AmountOut,
		&post.TxHash, &post.TradeTimestamp, &post.Exited, &post.ExitTimestamp,
		&post.TotalTips, &post.TipCount, &post.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Post{}, storage.ErrNotFound
		}
		return model.Post{}, fmt.Errorf("select post: %w", err)
	}
	return post, nil
}

func (s *Store) MarkExited(ctx context.Context, postID int64, exitTimestamp int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET exited = true, exit_timestamp = $2
		WHERE id = $1
	`, postID, exitTimestamp)
	if err != nil {
		return fmt.Errorf("mark exited: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RecordTip inserts the tip and folds it into the post's running totals in
// one transaction.
func (s *Store) RecordTip(ctx context.Context, tip model.Tip) (model.Tip, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Tip{}, fmt.Errorf("begin tip tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO tips (post_id, from_wallet, amount, tx_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, created_at
	`,
		tip.PostID,
		validate.NormalizeAddress(tip.FromWallet),
		tip.Amount,
		strings.ToLower(tip.TxHash),
		tip.Status,
	)
	if err := row.Scan(&tip.ID, &tip.CreatedAt); err != nil {
		return model.Tip{}, fmt.Errorf("insert tip: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE posts
		SET total_tips = total_tips + $2::numeric, tip_count = tip_count + 1
		WHERE id = $1
	`, tip.PostID, tip.Amount)
	if err != nil {
		return model.Tip{}, fmt.Errorf("update post totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Tip{}, storage.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Tip{}, fmt.Errorf("commit tip tx: %w", err)
	}
	return tip, nil
}

func (s *Store) TipsForPost(ctx context.Context, postID int64) ([]model.Tip, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, post_id, from_wallet, amount, tx_hash, status, created_at
		FROM tips WHERE post_id = $1
		ORDER BY created_at DESC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("select tips: %w", err)
	}
	defer rows.Close()
	return scanTips(rows)
}

// TipsForUser returns tips received across the user's posts.
func (s *Store) TipsForUser(ctx context.Context, username string) ([]model.Tip, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.post_id, t.from_wallet, t.amount, t.tx_hash, t.status, t.created_at
		FROM tips t
		JOIN posts p ON p.id = t.post_id
		JOIN users u ON u.id = p.user_id
		WHERE u.username = $1
		ORDER BY t.created_at DESC
	`, username)
	if err != nil {
		return nil, fmt.Errorf("select user tips: %w", err)
	}
	defer rows.Close()
	return scanTips(rows)
}

func scanTips(rows pgx.Rows) ([]model.Tip, error) {
	tips := make([]model.Tip, 0)
	for rows.Next() {
		var tip model.Tip
		if err := rows.Scan(&tip.ID, &tip.PostID, &tip.FromWallet, &tip.Amount, &tip.TxHash, &tip.Status, &tip.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tip: %w", err)
		}
		tips = append(tips, tip)
	}
	return tips, rows.Err()
}

func (s *Store) HasTipped(ctx context.Context, postID int64, fromWallet string) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tips WHERE post_id = $1 AND from_wallet = $2
		)
	`, postID, validate.NormalizeAddress(fromWallet))
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("select tipped: %w", err)
	}
	return exists, nil
}
