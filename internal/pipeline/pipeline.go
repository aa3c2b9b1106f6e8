// Package pipeline reconciles indexer transactions and logs into enriched
// swap records for one sender. It is state-free: everything is rebuilt per
// request and discarded after serialization.
package pipeline

import (
	"context"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapFeed/internal/chain"
	"swapFeed/internal/dex"
	"swapFeed/internal/model"
	"swapFeed/internal/pricefeed"
	"swapFeed/internal/validate"
)

// Gateway is the slice of the chain client the pipeline needs.
type Gateway interface {
	QueryLogs(ctx context.Context, contractAddresses, topic0s []string, fromBlock uint64) (*chain.QueryResult, error)
	QueryTransactionsBySender(ctx context.Context, sender string, fromBlock uint64) (*chain.QueryResult, error)
}

// Oracle is the slice of the price client the pipeline needs.
type Oracle interface {
	PriceAtTimestamp(ctx context.Context, feedID string, unixSeconds int64) (*model.PriceQuote, error)
}

// Config holds the pipeline's static inputs.
type Config struct {
	// SwapContracts are the contracts whose logs are queried.
	SwapContracts []string

	// DefaultToken0/1 substitute for real pool token resolution, which is
	// not implemented: every unresolved pool reports this same pair.
	DefaultToken0 string
	DefaultToken1 string

	// EnrichConcurrency bounds the entry-price fan-out. Zero means 4.
	EnrichConcurrency int
}

// Pipeline joins sender transactions with swap logs and attaches price
// context.
type Pipeline struct {
	cfg     Config
	gateway Gateway
	oracle  Oracle
	decoder *dex.SwapDecoder
	logger  *zap.Logger
}

// New builds a Pipeline with its dependencies.
func New(cfg Config, gateway Gateway, oracle Oracle, decoder *dex.SwapDecoder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EnrichConcurrency <= 0 {
		cfg.EnrichConcurrency = 4
	}
	return &Pipeline{
		cfg:     cfg,
		gateway: gateway,
		oracle:  oracle,
		decoder: decoder,
		logger:  logger,
	}
}

// Metadata carries request-level counts and the upstream cursor fields.
type Metadata struct {
	TotalLogs         int    `json:"total_logs"`
	FilteredLogs      int    `json:"filtered_logs"`
	TotalTransactions int    `json:"total_transactions"`
	TotalBlocks       int    `json:"total_blocks"`
	FromBlock         uint64 `json:"from_block"`
	NextBlock         uint64 `json:"next_block"`
	ArchiveHeight     uint64 `json:"archive_height"`
}

// Result is the pipeline output for one request.
type Result struct {
	Swaps        []model.EnrichedSwap      `json:"swaps"`
	Blocks       []model.BlockRecord       `json:"blocks"`
	Transactions []model.TransactionRecord `json:"transactions"`
	Metadata     Metadata                  `json:"metadata"`
}

// Fetch runs the five pipeline stages for a sender address starting at
// fromBlock.
func (p *Pipeline) Fetch(ctx context.Context, address string, fromBlock uint64) (*Result, error) {
	// Stage 1: transactions sent by the target address. The log filter
	// cannot select by sender, so sender-matching is reconstructed from
	// this key-set in stage 3.
	txResult, err := p.gateway.QueryTransactionsBySender(ctx, address, fromBlock)
	if err != nil {
		return nil, err
	}

	senderTxs := make(map[model.TxKey]model.TransactionRecord, len(txResult.Transactions))
	for _, tx := range txResult.Transactions {
		key := tx.Key()
		if _, ok := senderTxs[key]; ok {
			// Ambiguous join key; first match wins.
			continue
		}
		senderTxs[key] = tx
	}

	// Stage 2: swap logs from the known contracts.
	logResult, err := p.gateway.QueryLogs(ctx, p.cfg.SwapContracts, p.decoder.Topic0s(), fromBlock)
	if err != nil {
		return nil, err
	}

	blockTimes := make(map[uint64]uint64, len(logResult.Blocks))
	for _, block := range logResult.Blocks {
		blockTimes[block.Number] = block.Timestamp
	}

	// Stage 3: join and filter. Logs without both key fields cannot be
	// matched and cannot be trusted.
	sender := validate.NormalizeAddress(address)
	swaps := make([]model.EnrichedSwap, 0, len(logResult.Logs))
	for _, log := range logResult.Logs {
		if !log.KeyPresent {
			continue
		}
		tx, ok := senderTxs[model.TxKey{BlockNumber: log.BlockNumber, TransactionIndex: log.TransactionIndex}]
		if !ok {
			continue
		}
		swaps = append(swaps, p.buildSwap(log, tx, sender, blockTimes[log.BlockNumber]))
	}

	// Stage 5: attach entry prices. Lookups are independent per record;
	// results land in pre-assigned slots so output order never changes.
	p.enrich(ctx, swaps)

	p.logger.Info("swap pipeline complete",
		zap.String("address", sender),
		zap.Uint64("from_block", fromBlock),
		zap.Int("total_logs", len(logResult.Logs)),
		zap.Int("matched", len(swaps)),
	)

	return &Result{
		Swaps:        swaps,
		Blocks:       logResult.Blocks,
		Transactions: txResult.Transactions,
		Metadata: Metadata{
			TotalLogs:         len(logResult.Logs),
			FilteredLogs:      len(swaps),
			TotalTransactions: len(txResult.Transactions),
			TotalBlocks:       len(logResult.Blocks),
			FromBlock:         fromBlock,
			NextBlock:         logResult.NextBlock,
			ArchiveHeight:     logResult.ArchiveHeight,
		},
	}, nil
}

// buildSwap is stage 4: decode the payload and lay out the token legs.
func (p *Pipeline) buildSwap(log model.SwapRecord, tx model.TransactionRecord, sender string, timestamp uint64) model.EnrichedSwap {
	event, err := p.decoder.Decode(log)
	if err != nil {
		p.logger.Warn("swap decode failed",
			zap.Uint64("block_number", log.BlockNumber),
			zap.Uint64("log_index", log.LogIndex),
			zap.Error(err),
		)
		event = dex.ZeroSwapEvent(p.decoder.PoolID(log))
	}

	// Pool ids do not encode token addresses; every swap falls back to the
	// default pair and says so.
	token0, token1 := p.cfg.DefaultToken0, p.cfg.DefaultToken1

	leg0 := model.TokenLeg{Address: token0, Symbol: pricefeed.Symbol(token0), Amount: event.Amount0}
	leg1 := model.TokenLeg{Address: token1, Symbol: pricefeed.Symbol(token1), Amount: event.Amount1}

	swap := model.EnrichedSwap{
		BlockNumber:      log.BlockNumber,
		TransactionIndex: log.TransactionIndex,
		LogIndex:         log.LogIndex,
		TxHash:           tx.Hash,
		Sender:           sender,
		Timestamp:        timestamp,
		Contract:         log.Address,
		Event:            event,
		TokenPairAssumed: true,
	}

	// A negative first amount marks side 0 as the outflow: the sender paid
	// token0 and received token1.
	if amountNegative(event.Amount0) {
		swap.TokenIn, swap.TokenOut = leg0, leg1
	} else {
		swap.TokenIn, swap.TokenOut = leg1, leg0
	}
	return swap
}

// enrich attaches entry prices per side. Failure for one swap, or one
// side, never blocks the others.
func (p *Pipeline) enrich(ctx context.Context, swaps []model.EnrichedSwap) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.EnrichConcurrency)

	for i := range swaps {
		if swaps[i].Timestamp == 0 {
			// No block timestamp, no historical price to ask for.
			continue
		}
		i := i
		group.Go(func() error {
			ts := int64(swaps[i].Timestamp)
			swaps[i].TokenIn.EntryPriceUSD = p.entryPrice(groupCtx, swaps[i].TokenIn.Address, ts)
			swaps[i].TokenOut.EntryPriceUSD = p.entryPrice(groupCtx, swaps[i].TokenOut.Address, ts)
			return nil
		})
	}
	// Workers never return errors; enrichment failures degrade per record.
	_ = group.Wait()
}

func (p *Pipeline) entryPrice(ctx context.Context, tokenAddress string, unixSeconds int64) *decimal.Decimal {
	feedID, ok := pricefeed.ResolveFeed(tokenAddress)
	if !ok {
		return nil
	}
	quote, err := p.oracle.PriceAtTimestamp(ctx, feedID, unixSeconds)
	if err != nil || quote == nil {
		return nil
	}
	price := quote.Price
	return &price
}

func amountNegative(amount string) bool {
	v, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	if !ok {
		return false
	}
	return v.Sign() < 0
}
