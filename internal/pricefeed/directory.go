// Package pricefeed maps token contract addresses to oracle price-feed ids
// and display symbols. Feed ids are network-agnostic, so mainnet and Sepolia
// deployments of the same asset share an id.
package pricefeed

import "strings"

// Feed ids for the supported assets.
const (
	feedETHUSD  = "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"
	feedUSDCUSD = "0xeaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a"
	feedUSDTUSD = "0x2b89b9dc8fdf9f34709a5b106b472f0f39bb6ca9ce04b0fd7f2e971688e2e53b"
	feedDAIUSD  = "0xb0948a5e5313200c632b51bb5ca32f6de0d36e9950a942d19751e833f70dabfd"
	feedWBTCUSD = "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43"
)

// Well-known token addresses, exported for the default-pair fallback.
const (
	WETHSepolia = "0x7b79995e5f793A07Bc00c21412e50Ecae098E7f9"
	USDCSepolia = "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"
)

type entry struct {
	feedID string
	symbol string
}

// Table keys are lowercased once here; lookups lowercase the probe side.
var directory = map[string]entry{
	// WETH mainnet / Sepolia
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": {feedETHUSD, "WETH"},
	"0x7b79995e5f793a07bc00c21412e50ecae098e7f9": {feedETHUSD, "WETH"},
	// USDC mainnet / Sepolia
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {feedUSDCUSD, "USDC"},
	"0x1c7d4b196cb0c7b01d743fbc6116a902379c7238": {feedUSDCUSD, "USDC"},
	// USDT mainnet / Sepolia
	"0xdac17f958d2ee523a2206206994597c13d831ec7": {feedUSDTUSD, "USDT"},
	"0xaa8e23fb1079ea71e0a56f48a2aa51851d8433d0": {feedUSDTUSD, "USDT"},
	// DAI mainnet / Sepolia
	"0x6b175474e89094c44da98b954eedeac495271d0f": {feedDAIUSD, "DAI"},
	"0xff34b3d4aee8ddcd6f9afffb6fe49bd371b8a357": {feedDAIUSD, "DAI"},
	// WBTC mainnet / Sepolia
	"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599": {feedWBTCUSD, "WBTC"},
	"0x29f2d40b0605204364af54ec677bd022da425d03": {feedWBTCUSD, "WBTC"},
}

func normalize(tokenAddress string) string {
	addr := strings.TrimSpace(tokenAddress)
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return strings.ToLower(addr)
}

// ResolveFeed returns the price-feed id for a token address, matched
// case-insensitively.
func ResolveFeed(tokenAddress string) (string, bool) {
	e, ok := directory[normalize(tokenAddress)]
	if !ok {
		return "", false
	}
	return e.feedID, true
}

// Symbol returns the display symbol for a token address, falling back to a
// truncated form of the address itself. Never fails.
func Symbol(tokenAddress string) string {
	addr := strings.TrimSpace(tokenAddress)
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	if e, ok := directory[strings.ToLower(addr)]; ok {
		return e.symbol
	}
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// Supported reports whether a price feed exists for the token.
func Supported(tokenAddress string) bool {
	_, ok := ResolveFeed(tokenAddress)
	return ok
}
