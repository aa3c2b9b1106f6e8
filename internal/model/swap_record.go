package model

// SwapRecord is the raw swap log as returned by the indexer, rebuilt per
// request and discarded after serialization.
type SwapRecord struct {
	BlockNumber      uint64   `json:"block_number"`
	TransactionIndex uint64   `json:"transaction_index"`
	LogIndex         uint64   `json:"log_index"`
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`

	// KeyPresent is false when the indexer omitted the block number or the
	// transaction index; such a log cannot be joined to its transaction.
	KeyPresent bool `json:"-"`
}

// Topic0 returns the event signature topic, or "" when absent.
func (r SwapRecord) Topic0() string {
	if len(r.Topics) == 0 {
		return ""
	}
	return r.Topics[0]
}
