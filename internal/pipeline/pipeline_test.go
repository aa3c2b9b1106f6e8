package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapFeed/internal/chain"
	"swapFeed/internal/dex"
	"swapFeed/internal/model"
	"swapFeed/internal/pricefeed"
)

type fakeGateway struct {
	txResult  *chain.QueryResult
	logResult *chain.QueryResult
	txErr     error
	logErr    error
}

func (g *fakeGateway) QueryLogs(ctx context.Context, contracts, topic0s []string, fromBlock uint64) (*chain.QueryResult, error) {
	if g.logErr != nil {
		return nil, g.logErr
	}
	return g.logResult, nil
}

func (g *fakeGateway) QueryTransactionsBySender(ctx context.Context, sender string, fromBlock uint64) (*chain.QueryResult, error) {
	if g.txErr != nil {
		return nil, g.txErr
	}
	return g.txResult, nil
}

type fakeOracle struct {
	prices map[string]decimal.Decimal
	calls  int
}

func (o *fakeOracle) PriceAtTimestamp(ctx context.Context, feedID string, unixSeconds int64) (*model.PriceQuote, error) {
	o.calls++
	price, ok := o.prices[feedID]
	if !ok {
		return nil, fmt.Errorf("no feed %s", feedID)
	}
	return &model.PriceQuote{FeedID: feedID, Price: price, PublishTime: unixSeconds}, nil
}

const (
	ethFeed  = "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"
	usdcFeed = "0xeaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a"
)

func managerSwapData(t *testing.T, amount0, amount1 int64) string {
	t.Helper()
	managerABI, _, err := dex.SwapABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	data, err := managerABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(amount0),
		big.NewInt(amount1),
		big.NewInt(1),
		big.NewInt(2),
		big.NewInt(3),
		big.NewInt(500),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}
	return hexutil.Encode(data)
}

func swapLog(block, txIndex, logIndex uint64, data string) model.SwapRecord {
	return model.SwapRecord{
		BlockNumber:      block,
		TransactionIndex: txIndex,
		LogIndex:         logIndex,
		Address:          "0xE03A1074c86CFeDd5C142C4F04F1a1536e203543",
		Topics: []string{
			dex.TopicManagerSwap,
			"0x1100000000000000000000000000000000000000000000000000000000000000",
		},
		Data:       data,
		KeyPresent: true,
	}
}

func newTestPipeline(t *testing.T, gateway Gateway, oracle Oracle) *Pipeline {
	t.Helper()
	decoder, err := dex.NewSwapDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return New(Config{
		SwapContracts: []string{"0xE03A1074c86CFeDd5C142C4F04F1a1536e203543"},
		DefaultToken0: pricefeed.WETHSepolia,
		DefaultToken1: pricefeed.USDCSepolia,
	}, gateway, oracle, decoder, zap.NewNop())
}

func TestFetchJoinCorrectness(t *testing.T) {
	gateway := &fakeGateway{
		txResult: &chain.QueryResult{
			Transactions: []model.TransactionRecord{
				{BlockNumber: 100, TransactionIndex: 2, Hash: "0xtxA", From: "0xsender"},
			},
		},
		logResult: &chain.QueryResult{
			Blocks: []model.BlockRecord{{Number: 100, Timestamp: 1700000000, Hash: "0xb"}},
			Logs: []model.SwapRecord{
				swapLog(100, 2, 7, managerSwapData(t, -1000, 2000)), // logX: in key-set
				swapLog(100, 3, 8, managerSwapData(t, -1, 1)),      // logY: not in key-set
			},
			NextBlock:     101,
			ArchiveHeight: 5000,
		},
	}
	oracle := &fakeOracle{prices: map[string]decimal.Decimal{
		ethFeed:  decimal.NewFromInt(2500),
		usdcFeed: decimal.NewFromInt(1),
	}}

	p := newTestPipeline(t, gateway, oracle)
	result, err := p.Fetch(context.Background(), "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(result.Swaps) != 1 {
		t.Fatalf("expected exactly logX, got %d swaps", len(result.Swaps))
	}
	swap := result.Swaps[0]
	if swap.LogIndex != 7 || swap.TxHash != "0xtxA" {
		t.Fatalf("join picked wrong log: %+v", swap)
	}
	if swap.Timestamp != 1700000000 {
		t.Fatalf("block timestamp not resolved: %d", swap.Timestamp)
	}

	// amount0 < 0: side 0 (WETH) is the outflow.
	if swap.TokenIn.Address != pricefeed.WETHSepolia {
		t.Fatalf("direction mismatch: token_in %s", swap.TokenIn.Address)
	}
	if swap.TokenOut.Address != pricefeed.USDCSepolia {
		t.Fatalf("direction mismatch: token_out %s", swap.TokenOut.Address)
	}
	if !swap.TokenPairAssumed {
		t.Fatalf("default pair substitution must be flagged")
	}

	if swap.TokenIn.EntryPriceUSD == nil || !swap.TokenIn.EntryPriceUSD.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("entry price mismatch: %v", swap.TokenIn.EntryPriceUSD)
	}
	if swap.TokenOut.EntryPriceUSD == nil || !swap.TokenOut.EntryPriceUSD.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("entry price mismatch: %v", swap.TokenOut.EntryPriceUSD)
	}

	meta := result.Metadata
	if meta.TotalLogs != 2 || meta.FilteredLogs != 1 {
		t.Fatalf("metadata counts mismatch: %+v", meta)
	}
	if meta.NextBlock != 101 || meta.ArchiveHeight != 5000 {
		t.Fatalf("cursor not propagated: %+v", meta)
	}
}

func TestFetchDropsLogsWithoutJoinKey(t *testing.T) {
	keyless := swapLog(0, 0, 9, managerSwapData(t, -1, 1))
	keyless.KeyPresent = false

	gateway := &fakeGateway{
		txResult: &chain.QueryResult{
			Transactions: []model.TransactionRecord{
				{BlockNumber: 0, TransactionIndex: 0, Hash: "0xtx"},
			},
		},
		logResult: &chain.QueryResult{Logs: []model.SwapRecord{keyless}},
	}

	p := newTestPipeline(t, gateway, &fakeOracle{})
	result, err := p.Fetch(context.Background(), "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Swaps) != 0 {
		t.Fatalf("keyless log must be dropped, got %d", len(result.Swaps))
	}
}

func TestFetchAmbiguousKeyFirstWins(t *testing.T) {
	gateway := &fakeGateway{
		txResult: &chain.QueryResult{
			Transactions: []model.TransactionRecord{
				{BlockNumber: 100, TransactionIndex: 2, Hash: "0xfirst"},
				{BlockNumber: 100, TransactionIndex: 2, Hash: "0xsecond"},
			},
		},
		logResult: &chain.QueryResult{
			Logs: []model.SwapRecord{swapLog(100, 2, 1, managerSwapData(t, -1, 1))},
		},
	}

	p := newTestPipeline(t, gateway, &fakeOracle{})
	result, err := p.Fetch(context.Background(), "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Swaps) != 1 || result.Swaps[0].TxHash != "0xfirst" {
		t.Fatalf("first match must win: %+v", result.Swaps)
	}
}

func TestFetchMalformedLogDoesNotPoisonBatch(t *testing.T) {
	bad := swapLog(100, 2, 1, "0xdeadbeef")
	good := swapLog(100, 3, 2, managerSwapData(t, 500, -700))

	gateway := &fakeGateway{
		txResult: &chain.QueryResult{
			Transactions: []model.TransactionRecord{
				{BlockNumber: 100, TransactionIndex: 2, Hash: "0xbadtx"},
				{BlockNumber: 100, TransactionIndex: 3, Hash: "0xgoodtx"},
			},
		},
		logResult: &chain.QueryResult{
			Blocks: []model.BlockRecord{{Number: 100, Timestamp: 1700000000}},
			Logs:   []model.SwapRecord{bad, good},
		},
	}
	oracle := &fakeOracle{prices: map[string]decimal.Decimal{
		ethFeed:  decimal.NewFromInt(2500),
		usdcFeed: decimal.NewFromInt(1),
	}}

	p := newTestPipeline(t, gateway, oracle)
	result, err := p.Fetch(context.Background(), "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Swaps) != 2 {
		t.Fatalf("expected both records, got %d", len(result.Swaps))
	}

	var badSwap, goodSwap model.EnrichedSwap
	for _, s := range result.Swaps {
		if s.TxHash == "0xbadtx" {
			badSwap = s
		} else {
			goodSwap = s
		}
	}

	if badSwap.Event.Amount0 != "0" || badSwap.Event.Amount1 != "0" {
		t.Fatalf("malformed log must degrade to zero-filled record: %+v", badSwap.Event)
	}
	if goodSwap.Event.Amount0 != "500" || goodSwap.Event.Amount1 != "-700" {
		t.Fatalf("good log decode mismatch: %+v", goodSwap.Event)
	}
	// amount0 >= 0: side 1 is the outflow.
	if goodSwap.TokenIn.Address != pricefeed.USDCSepolia {
		t.Fatalf("direction mismatch: %s", goodSwap.TokenIn.Address)
	}
	if goodSwap.TokenOut.EntryPriceUSD == nil {
		t.Fatalf("good swap must still be enriched")
	}
}

func TestFetchOracleFailureLeavesPricesUnset(t *testing.T) {
	gateway := &fakeGateway{
		txResult: &chain.QueryResult{
			Transactions: []model.TransactionRecord{{BlockNumber: 100, TransactionIndex: 2, Hash: "0xtx"}},
		},
		logResult: &chain.QueryResult{
			Blocks: []model.BlockRecord{{Number: 100, Timestamp: 1700000000}},
			Logs:   []model.SwapRecord{swapLog(100, 2, 1, managerSwapData(t, -1, 1))},
		},
	}

	p := newTestPipeline(t, gateway, &fakeOracle{}) // oracle knows no feeds
	result, err := p.Fetch(context.Background(), "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Swaps) != 1 {
		t.Fatalf("expected one swap")
	}
	if result.Swaps[0].TokenIn.EntryPriceUSD != nil || result.Swaps[0].TokenOut.EntryPriceUSD != nil {
		t.Fatalf("failed lookups must leave prices unset")
	}
}

func TestFetchUpstreamErrorPropagates(t *testing.T) {
	gateway := &fakeGateway{txErr: fmt.Errorf("indexer down")}
	p := newTestPipeline(t, gateway, &fakeOracle{})
	if _, err := p.Fetch(context.Background(), "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 0); err == nil {
		t.Fatalf("expected upstream error")
	}
}
