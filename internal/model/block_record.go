package model

// BlockRecord resolves a block number to its wall-clock timestamp.
type BlockRecord struct {
	Number    uint64 `json:"number"`
	Timestamp uint64 `json:"timestamp"`
	Hash      string `json:"hash"`
}
