// Package feed implements the social layer: user provisioning, trade
// posts with on-chain verification, read-time P&L enrichment, and tips.
package feed

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapFeed/internal/apperr"
	"swapFeed/internal/explorer"
	"swapFeed/internal/model"
	"swapFeed/internal/pricefeed"
	"swapFeed/internal/storage"
	"swapFeed/internal/validate"
)

// TxVerifier looks up a transaction on a block explorer. A nil result
// with nil error means the hash is unknown.
type TxVerifier interface {
	TransactionByHash(ctx context.Context, hash string) (*explorer.Transaction, error)
}

// HistoryOracle serves prices at a past timestamp.
type HistoryOracle interface {
	PriceAtTimestamp(ctx context.Context, feedID string, unixSeconds int64) (*model.PriceQuote, error)
}

// CurrentPricer serves the freshest known price for a token.
type CurrentPricer interface {
	Current(ctx context.Context, tokenAddress string) *model.PriceQuote
}

const (
	defaultPageSize     = 20
	maxPageSize         = 100
	usernameRetries     = 5
	enrichmentParallels = 8
)

// Service ties the store, explorer, and oracle together behind the post
// and tip operations.
type Service struct {
	store    storage.Store
	verifier TxVerifier
	history  HistoryOracle
	current  CurrentPricer
	logger   *zap.Logger
}

func NewService(store storage.Store, verifier TxVerifier, history HistoryOracle, current CurrentPricer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		verifier: verifier,
		history:  history,
		current:  current,
		logger:   logger,
	}
}

// EnsureUser returns the user for a wallet, provisioning one with a
// generated username on first sight. Username collisions retry up to
// usernameRetries times; a concurrent provisioning of the same wallet
// resolves to the winner's row.
func (s *Service) EnsureUser(ctx context.Context, walletAddress string) (model.User, error) {
	if !validate.Address(walletAddress) {
		return model.User{}, apperr.Validation("invalid wallet address %q", walletAddress)
	}

	user, err := s.store.UserByWallet(ctx, walletAddress)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.User{}, apperr.Upstream("load user", err)
	}

	for attempt := 0; attempt < usernameRetries; attempt++ {
		user, err = s.store.CreateUser(ctx, walletAddress, randomUsername())
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, storage.ErrDuplicateUsername):
			continue
		case errors.Is(err, storage.ErrDuplicateWallet):
			return s.userByWalletStrict(ctx, walletAddress)
		default:
			return model.User{}, apperr.Upstream("create user", err)
		}
	}
	return model.User{}, apperr.Upstream("allocate username", storage.ErrDuplicateUsername)
}

func (s *Service) userByWalletStrict(ctx context.Context, walletAddress string) (model.User, error) {
	user, err := s.store.UserByWallet(ctx, walletAddress)
	if err != nil {
		return model.User{}, apperr.Upstream("load user", err)
	}
	return user, nil
}

// CreatePostInput is a candidate trade post.
type CreatePostInput struct {
	WalletAddress  string `json:"wallet_address"`
	TokenIn        string `json:"token_in"`
	TokenOut       string `json:"token_out"`
	AmountIn       string `json:"amount_in"`
	AmountOut      string `json:"amount_out"`
	TxHash         string `json:"tx_hash"`
	TradeTimestamp int64  `json:"trade_timestamp"`
}

func (in CreatePostInput) validate() error {
	switch {
	case !validate.Address(in.WalletAddress):
		return apperr.Validation("invalid wallet address %q", in.WalletAddress)
	case !validate.Address(in.TokenIn):
		return apperr.Validation("invalid token_in address %q", in.TokenIn)
	case !validate.Address(in.TokenOut):
		return apperr.Validation("invalid token_out address %q", in.TokenOut)
	case !validate.TxHash(in.TxHash):
		return apperr.Validation("invalid tx hash %q", in.TxHash)
	case in.TradeTimestamp <= 0:
		return apperr.Validation("trade_timestamp is required")
	}
	for _, amount := range []string{in.AmountIn, in.AmountOut} {
		if _, err := decimal.NewFromString(amount); err != nil {
			return apperr.Validation("invalid amount %q", amount)
		}
	}
	return nil
}

// CreatePost verifies the trade on chain before persisting it: the
// transaction must exist and its sender must match the posting wallet.
func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (model.Post, error) {
	if err := in.validate(); err != nil {
		return model.Post{}, err
	}

	user, err := s.store.UserByWallet(ctx, in.WalletAddress)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Post{}, apperr.NotFound("no user for wallet %s", in.WalletAddress)
		}
		return model.Post{}, apperr.Upstream("load user", err)
	}

	tx, err := s.verifier.TransactionByHash(ctx, in.TxHash)
	if err != nil {
		return model.Post{}, apperr.Upstream("verify trade", err)
	}
	if tx == nil {
		return model.Post{}, apperr.NotFound("transaction %s not found on chain", in.TxHash)
	}
	if validate.NormalizeAddress(tx.From) != validate.NormalizeAddress(in.WalletAddress) {
		return model.Post{}, apperr.Authorization("transaction sender does not match wallet")
	}

	post, err := s.store.CreatePost(ctx, model.Post{
		UserID:         user.ID,
		Username:       user.Username,
		WalletAddress:  user.WalletAddress,
		TokenIn:        in.TokenIn,
		TokenOut:       in.TokenOut,
		AmountIn:       in.AmountIn,
		AmountOut:      in.AmountOut,
		TxHash:         in.TxHash,
		TradeTimestamp: in.TradeTimestamp,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicatePost) {
			if existing, lookupErr := s.store.PostByTxHash(ctx, in.TxHash); lookupErr == nil {
				return model.Post{}, apperr.Conflict("post %d already exists for transaction %s", existing.ID, in.TxHash)
			}
			return model.Post{}, apperr.Conflict("post already exists for transaction %s", in.TxHash)
		}
		return model.Post{}, apperr.Upstream("create post", err)
	}
	post.Username = user.Username
	post.WalletAddress = user.WalletAddress
	return post, nil
}

// FeedQuery selects and shapes one feed page.
type FeedQuery struct {
	Sort         string
	Limit        int
	Offset       int
	ViewerWallet string
}

func (q *FeedQuery) normalize() error {
	switch q.Sort {
	case "":
		q.Sort = storage.SortRecent
	case storage.SortRecent, storage.SortPnl, storage.SortTipped:
	default:
		return apperr.Validation("unknown sort %q", q.Sort)
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.ViewerWallet != "" && !validate.Address(q.ViewerWallet) {
		return apperr.Validation("invalid viewer wallet %q", q.ViewerWallet)
	}
	return nil
}

// Feed returns one enriched page of posts. Enrichment failures isolate
// per post; the pnl sort re-orders the enriched page, with posts lacking
// a P&L ranked last.
func (s *Service) Feed(ctx context.Context, query FeedQuery) ([]model.EnrichedPost, error) {
	if err := query.normalize(); err != nil {
		return nil, err
	}

	posts, err := s.store.Posts(ctx, query.Sort, query.Limit, query.Offset)
	if err != nil {
		return nil, apperr.Upstream("load posts", err)
	}

	enriched := make([]model.EnrichedPost, len(posts))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(enrichmentParallels)
	for i := range posts {
		i := i
		group.Go(func() error {
			enriched[i] = s.enrichPost(groupCtx, posts[i], query.ViewerWallet)
			return nil
		})
	}
	// Workers never return errors; enrichment failures degrade per post.
	_ = group.Wait()

	if query.Sort == storage.SortPnl {
		sort.SliceStable(enriched, func(a, b int) bool {
			left, right := enriched[a].PnlPercent, enriched[b].PnlPercent
			if left == nil {
				return false
			}
			if right == nil {
				return true
			}
			return left.GreaterThan(*right)
		})
	}
	return enriched, nil
}

func (s *Service) enrichPost(ctx context.Context, post model.Post, viewerWallet string) model.EnrichedPost {
	out := model.EnrichedPost{
		Post:           post,
		TokenOutSymbol: pricefeed.Symbol(post.TokenOut),
	}

	if feedID, ok := pricefeed.ResolveFeed(post.TokenOut); ok {
		if quote, err := s.history.PriceAtTimestamp(ctx, feedID, post.TradeTimestamp); err == nil && quote != nil {
			price := quote.Price
			out.EntryPriceUSD = &price
		} else if err != nil {
			s.logger.Debug("entry price lookup failed", zap.Int64("post", post.ID), zap.Error(err))
		}
		if post.Exited && post.ExitTimestamp != nil {
			if quote, err := s.history.PriceAtTimestamp(ctx, feedID, *post.ExitTimestamp); err == nil && quote != nil {
				price := quote.Price
				out.ExitPriceUSD = &price
			}
		}
	}
	if quote := s.current.Current(ctx, post.TokenOut); quote != nil {
		price := quote.Price
		out.CurrentPriceUSD = &price
	}

	basis := out.CurrentPriceUSD
	if post.Exited {
		basis = out.ExitPriceUSD
	}
	out.PnlPercent = pnlPercent(out.EntryPriceUSD, basis)

	if viewerWallet != "" {
		tipped, err := s.store.HasTipped(ctx, post.ID, viewerWallet)
		if err != nil {
			s.logger.Debug("viewer tip lookup failed", zap.Int64("post", post.ID), zap.Error(err))
		}
		out.ViewerTipped = tipped
	}
	return out
}

// MarkExited closes a post's position. Only the author may exit.
func (s *Service) MarkExited(ctx context.Context, postID int64, walletAddress string, exitTimestamp int64) error {
	if !validate.Address(walletAddress) {
		return apperr.Validation("invalid wallet address %q", walletAddress)
	}
	if exitTimestamp <= 0 {
		return apperr.Validation("exit_timestamp is required")
	}

	post, err := s.store.PostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("post %d not found", postID)
		}
		return apperr.Upstream("load post", err)
	}
	if validate.NormalizeAddress(post.WalletAddress) != validate.NormalizeAddress(walletAddress) {
		return apperr.Authorization("only the author can exit a post")
	}
	if post.Exited {
		return apperr.Conflict("post %d already exited", postID)
	}

	if err := s.store.MarkExited(ctx, postID, exitTimestamp); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("post %d not found", postID)
		}
		return apperr.Upstream("mark exited", err)
	}
	return nil
}

// TipInput is a candidate tip on a post.
type TipInput struct {
	PostID     int64
	FromWallet string `json:"from_wallet"`
	Amount     string `json:"amount"`
	TxHash     string `json:"tx_hash"`
}

// Tip records a tip after validating the post exists. On-chain transfer
// verification is best-effort: when the explorer cannot confirm the
// transfer came from the tipper, the tip is stored as unverified rather
// than rejected.
func (s *Service) Tip(ctx context.Context, in TipInput) (model.Tip, error) {
	if in.PostID <= 0 {
		return model.Tip{}, apperr.Validation("invalid post id %d", in.PostID)
	}
	if !validate.Address(in.FromWallet) {
		return model.Tip{}, apperr.Validation("invalid wallet address %q", in.FromWallet)
	}
	if !validate.TxHash(in.TxHash) {
		return model.Tip{}, apperr.Validation("invalid tx hash %q", in.TxHash)
	}
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil || !amount.IsPositive() {
		return model.Tip{}, apperr.Validation("invalid tip amount %q", in.Amount)
	}

	if _, err := s.store.PostByID(ctx, in.PostID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Tip{}, apperr.NotFound("post %d not found", in.PostID)
		}
		return model.Tip{}, apperr.Upstream("load post", err)
	}

	tip, err := s.store.RecordTip(ctx, model.Tip{
		PostID:     in.PostID,
		FromWallet: in.FromWallet,
		Amount:     in.Amount,
		TxHash:     in.TxHash,
		Status:     s.tipStatus(ctx, in),
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Tip{}, apperr.NotFound("post %d not found", in.PostID)
		}
		return model.Tip{}, apperr.Upstream("record tip", err)
	}
	return tip, nil
}

func (s *Service) tipStatus(ctx context.Context, in TipInput) string {
	tx, err := s.verifier.TransactionByHash(ctx, in.TxHash)
	if err != nil {
		s.logger.Warn("tip verification unavailable", zap.String("tx", in.TxHash), zap.Error(err))
		return model.TipStatusUnverified
	}
	if tx == nil || validate.NormalizeAddress(tx.From) != validate.NormalizeAddress(in.FromWallet) {
		return model.TipStatusUnverified
	}
	return model.TipStatusVerified
}

// TipsForPost lists tips on a post, newest first.
func (s *Service) TipsForPost(ctx context.Context, postID int64) ([]model.Tip, error) {
	if postID <= 0 {
		return nil, apperr.Validation("invalid post id %d", postID)
	}
	if _, err := s.store.PostByID(ctx, postID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("post %d not found", postID)
		}
		return nil, apperr.Upstream("load post", err)
	}
	tips, err := s.store.TipsForPost(ctx, postID)
	if err != nil {
		return nil, apperr.Upstream("load tips", err)
	}
	return tips, nil
}

// TipsForUser lists tips received across a user's posts, newest first.
func (s *Service) TipsForUser(ctx context.Context, username string) ([]model.Tip, error) {
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	if _, err := s.store.UserByUsername(ctx, username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("user %q not found", username)
		}
		return nil, apperr.Upstream("load user", err)
	}
	tips, err := s.store.TipsForUser(ctx, username)
	if err != nil {
		return nil, apperr.Upstream("load tips", err)
	}
	return tips, nil
}
