package feed

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// pnlPercent computes percentage gain from an entry price to a later
// price. Nil when either price is unknown or the entry is zero, so a
// missing oracle lookup never renders as a 0% trade.
func pnlPercent(entry, later *decimal.Decimal) *decimal.Decimal {
	if entry == nil || later == nil || entry.IsZero() {
		return nil
	}
	pnl := later.Sub(*entry).Div(*entry).Mul(hundred)
	return &pnl
}
