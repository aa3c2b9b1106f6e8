package chain

import "swapFeed/internal/model"

// Query is the filter predicate sent to the indexer. Field names follow
// the indexer's wire contract.
type Query struct {
	FromBlock      uint64                 `json:"from_block"`
	Logs           []LogSelection         `json:"logs,omitempty"`
	Transactions   []TransactionSelection `json:"transactions,omitempty"`
	FieldSelection FieldSelection         `json:"field_selection"`
}

// LogSelection filters logs by emitting contract and topic alternatives.
type LogSelection struct {
	Address []string   `json:"address,omitempty"`
	Topics  [][]string `json:"topics,omitempty"`
}

// TransactionSelection filters transactions by sender. The indexer's log
// filter cannot filter by transaction sender; only this filter can, which
// is why sender-matching is reconstructed by key intersection downstream.
type TransactionSelection struct {
	From []string `json:"from,omitempty"`
}

// FieldSelection names the record fields the indexer should return.
type FieldSelection struct {
	Block       []string `json:"block,omitempty"`
	Transaction []string `json:"transaction,omitempty"`
	Log         []string `json:"log,omitempty"`
}

// defaultFields is the declared field list for every query this service
// issues; records are deserialized into explicit structs, never reflected.
func defaultFields() FieldSelection {
	return FieldSelection{
		Block:       []string{"number", "timestamp", "hash"},
		Transaction: []string{"block_number", "transaction_index", "hash", "from", "to", "value", "input"},
		Log:         []string{"block_number", "log_index", "transaction_index", "address", "data", "topic0", "topic1", "topic2", "topic3"},
	}
}

type wireBlock struct {
	Number    uint64 `json:"number"`
	Timestamp uint64 `json:"timestamp"`
	Hash      string `json:"hash"`
}

type wireTransaction struct {
	BlockNumber      uint64 `json:"block_number"`
	TransactionIndex uint64 `json:"transaction_index"`
	Hash             string `json:"hash"`
	From             string `json:"from"`
	To               string `json:"to"`
	Value            string `json:"value"`
	Input            string `json:"input"`
}

// Log join-key fields are pointers: the indexer may omit them, and a log
// without both cannot be matched to its transaction.
type wireLog struct {
	BlockNumber      *uint64 `json:"block_number"`
	TransactionIndex *uint64 `json:"transaction_index"`
	LogIndex         uint64  `json:"log_index"`
	Address          string  `json:"address"`
	Data             string  `json:"data"`
	Topic0           string  `json:"topic0"`
	Topic1           string  `json:"topic1"`
	Topic2           string  `json:"topic2"`
	Topic3           string  `json:"topic3"`
}

type wireBatch struct {
	Blocks       []wireBlock       `json:"blocks"`
	Transactions []wireTransaction `json:"transactions"`
	Logs         []wireLog         `json:"logs"`
}

type wireResponse struct {
	Data          []wireBatch `json:"data"`
	NextBlock     uint64      `json:"next_block"`
	ArchiveHeight uint64      `json:"archive_height"`
}

// QueryResult is the flattened indexer response. NextBlock and
// ArchiveHeight are the upstream pagination cursor and attestation height,
// propagated unchanged.
type QueryResult struct {
	Blocks        []model.BlockRecord
	Transactions  []model.TransactionRecord
	Logs          []model.SwapRecord
	NextBlock     uint64
	ArchiveHeight uint64
}

func (r *wireResponse) toResult() *QueryResult {
	out := &QueryResult{
		NextBlock:     r.NextBlock,
		ArchiveHeight: r.ArchiveHeight,
	}

	for _, batch := range r.Data {
		for _, b := range batch.Blocks {
			out.Blocks = append(out.Blocks, model.BlockRecord{
				Number:    b.Number,
				Timestamp: b.Timestamp,
				Hash:      b.Hash,
			})
		}
		for _, tx := range batch.Transactions {
			out.Transactions = append(out.Transactions, model.TransactionRecord{
				BlockNumber:      tx.BlockNumber,
				TransactionIndex: tx.TransactionIndex,
				Hash:             tx.Hash,
				From:             tx.From,
				To:               tx.To,
				Value:            tx.Value,
				Input:            tx.Input,
			})
		}
		for _, l := range batch.Logs {
			record := model.SwapRecord{
				LogIndex:   l.LogIndex,
				Address:    l.Address,
				Data:       l.Data,
				Topics:     collectTopics(l),
				KeyPresent: l.BlockNumber != nil && l.TransactionIndex != nil,
			}
			if l.BlockNumber != nil {
				record.BlockNumber = *l.BlockNumber
			}
			if l.TransactionIndex != nil {
				record.TransactionIndex = *l.TransactionIndex
			}
			out.Logs = append(out.Logs, record)
		}
	}
	return out
}

func collectTopics(l wireLog) []string {
	topics := make([]string, 0, 4)
	for _, topic := range []string{l.Topic0, l.Topic1, l.Topic2, l.Topic3} {
		if topic == "" {
			break
		}
		topics = append(topics, topic)
	}
	return topics
}
