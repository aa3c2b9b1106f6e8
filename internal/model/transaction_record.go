package model

// TransactionRecord is a transaction row from the indexer, joined to swap
// logs by (block number, transaction index).
type TransactionRecord struct {
	BlockNumber      uint64 `json:"block_number"`
	TransactionIndex uint64 `json:"transaction_index"`
	Hash             string `json:"hash"`
	From             string `json:"from"`
	To               string `json:"to"`
	Value            string `json:"value"`
	Input            string `json:"input"`
}

// TxKey is the composite join key between logs and transactions.
type TxKey struct {
	BlockNumber      uint64
	TransactionIndex uint64
}

// Key returns the transaction's join key.
func (t TransactionRecord) Key() TxKey {
	return TxKey{BlockNumber: t.BlockNumber, TransactionIndex: t.TransactionIndex}
}
