package model

import "github.com/shopspring/decimal"

// PriceQuote is a decoded oracle price. Price is already scaled by the
// feed's exponent; Conf bounds the oracle's quoted uncertainty and is
// carried through, never treated as zero error.
type PriceQuote struct {
	FeedID      string          `json:"feed_id"`
	Price       decimal.Decimal `json:"price"`
	Conf        string          `json:"conf"`
	PublishTime int64           `json:"publish_time"`
}
