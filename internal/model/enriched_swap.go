package model

import "github.com/shopspring/decimal"

// TokenLeg is one side of a swap with its display metadata and, when the
// oracle had a feed for it, the USD price at the trade's block time.
type TokenLeg struct {
	Address       string           `json:"address"`
	Symbol        string           `json:"symbol"`
	Amount        string           `json:"amount"`
	EntryPriceUSD *decimal.Decimal `json:"entry_price_usd,omitempty"`
}

// EnrichedSwap is a matched, decoded and price-enriched swap belonging to
// the queried sender.
type EnrichedSwap struct {
	BlockNumber      uint64        `json:"block_number"`
	TransactionIndex uint64        `json:"transaction_index"`
	LogIndex         uint64        `json:"log_index"`
	TxHash           string        `json:"tx_hash"`
	Sender           string        `json:"sender"`
	Timestamp        uint64        `json:"timestamp"`
	Contract         string        `json:"contract"`
	Event            SwapEventData `json:"event"`
	TokenIn          TokenLeg      `json:"token_in"`
	TokenOut         TokenLeg      `json:"token_out"`

	// TokenPairAssumed marks swaps reported against the default token pair
	// because the pool id could not be resolved to real token addresses.
	TokenPairAssumed bool `json:"token_pair_assumed"`
}
