package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The two recognized swap event shapes. The pool-manager shape keys the
// pool by an indexed bytes32 id and carries a fee field; the classic pool
// shape is emitted by the pool contract itself.
const (
	// Swap(bytes32 id, address sender, int128 amount0, int128 amount1,
	// uint160 sqrtPriceX96, uint128 liquidity, int24 tick, uint24 fee)
	TopicManagerSwap = "0x40e9cecb9f5f1f1c5b9c97dec2917b7ee92e57ba5563708daca94dd84ad7112f"

	// Swap(address sender, address recipient, int256 amount0, int256
	// amount1, uint160 sqrtPriceX96, uint128 liquidity, int24 tick)
	TopicPoolSwap = "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67"
)

const managerABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "id", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": false, "internalType": "int128", "name": "amount0", "type": "int128"},
      {"indexed": false, "internalType": "int128", "name": "amount1", "type": "int128"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"},
      {"indexed": false, "internalType": "uint24", "name": "fee", "type": "uint24"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

const poolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "amount0", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "amount1", "type": "int256"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

var (
	swapABIs    struct{ manager, pool abi.ABI }
	swapABIOnce sync.Once
	swapABIErr  error
)

// SwapABIs returns the parsed ABIs for both swap shapes.
func SwapABIs() (manager abi.ABI, pool abi.ABI, err error) {
	swapABIOnce.Do(func() {
		swapABIs.manager, swapABIErr = abi.JSON(strings.NewReader(managerABIJSON))
		if swapABIErr != nil {
			return
		}
		swapABIs.pool, swapABIErr = abi.JSON(strings.NewReader(poolABIJSON))
	})
	return swapABIs.manager, swapABIs.pool, swapABIErr
}
