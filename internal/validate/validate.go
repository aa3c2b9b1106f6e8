// Package validate format-checks addresses and transaction hashes before
// they reach any downstream service.
package validate

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Address reports whether s is a well-formed Ethereum address.
func Address(s string) bool {
	return common.IsHexAddress(s)
}

// TxHash reports whether s is a well-formed 32-byte transaction hash.
func TxHash(s string) bool {
	if !strings.HasPrefix(s, "0x") {
		return false
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return false
	}
	return len(data) == 32
}

// NormalizeAddress lowercases an address for map keys and comparisons.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
