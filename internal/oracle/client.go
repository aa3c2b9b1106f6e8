// Package oracle fetches historical and latest prices from a Hermes-style
// price service and caches current prices with a bounded TTL.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapFeed/internal/model"
)

// Client talks to the price service over HTTP. A failed or malformed
// response never propagates as a transport error to enrichment callers;
// they treat a missing quote as "omit this price field".
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds an oracle client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type wirePrice struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

type wireFeed struct {
	ID    string    `json:"id"`
	Price wirePrice `json:"price"`
}

type wireUpdate struct {
	Parsed []wireFeed `json:"parsed"`
}

// PriceAtTimestamp fetches the historical price for a feed at a unix
// timestamp. Returns an error when the quote is unavailable for any reason.
func (c *Client) PriceAtTimestamp(ctx context.Context, feedID string, unixSeconds int64) (*model.PriceQuote, error) {
	endpoint := fmt.Sprintf("%s/v2/updates/price/%d?ids[]=%s", c.baseURL, unixSeconds, url.QueryEscape(feedID))

	update, err := c.getUpdate(ctx, endpoint)
	if err != nil {
		c.logger.Warn("historical price fetch failed",
			zap.String("feed_id", feedID),
			zap.Int64("timestamp", unixSeconds),
			zap.Error(err),
		)
		return nil, err
	}
	if len(update.Parsed) == 0 {
		return nil, fmt.Errorf("no price for feed %s at %d", feedID, unixSeconds)
	}

	quote, err := decodeQuote(feedID, update.Parsed[0].Price)
	if err != nil {
		return nil, err
	}
	if quote.PublishTime == 0 {
		quote.PublishTime = unixSeconds
	}
	return quote, nil
}

// LatestPrices fetches the latest price for each feed id. Every requested
// id appears as a key in the result; failed or absent feeds map to nil, so
// callers can iterate without existence checks.
func (c *Client) LatestPrices(ctx context.Context, feedIDs []string) map[string]*model.PriceQuote {
	results := make(map[string]*model.PriceQuote, len(feedIDs))
	for _, id := range feedIDs {
		results[id] = nil
	}
	if len(feedIDs) == 0 {
		return results
	}

	params := make([]string, 0, len(feedIDs))
	for _, id := range feedIDs {
		params = append(params, "ids[]="+url.QueryEscape(id))
	}
	endpoint := c.baseURL + "/v2/updates/price/latest?" + strings.Join(params, "&")

	update, err := c.getUpdate(ctx, endpoint)
	if err != nil {
		c.logger.Warn("latest price fetch failed", zap.Int("feeds", len(feedIDs)), zap.Error(err))
		return results
	}

	// The service reports ids without the 0x prefix.
	byID := make(map[string]wireFeed, len(update.Parsed))
	for _, feed := range update.Parsed {
		byID[canonicalFeedID(feed.ID)] = feed
	}

	for _, id := range feedIDs {
		feed, ok := byID[canonicalFeedID(id)]
		if !ok {
			continue
		}
		quote, err := decodeQuote(id, feed.Price)
		if err != nil {
			c.logger.Warn("price decode failed", zap.String("feed_id", id), zap.Error(err))
			continue
		}
		results[id] = quote
	}
	return results
}

func (c *Client) getUpdate(ctx context.Context, endpoint string) (*wireUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read oracle response: %w", err)
	}

	var update wireUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("parse oracle response: %w", err)
	}
	return &update, nil
}

// decodeQuote converts the service's (mantissa, exponent) encoding into a
// decimal. The conversion is exact: mantissa x 10^expo with no float
// intermediary, so repeated P&L computations accumulate no drift.
func decodeQuote(feedID string, p wirePrice) (*model.PriceQuote, error) {
	mantissa, ok := new(big.Int).SetString(p.Price, 10)
	if !ok {
		return nil, fmt.Errorf("invalid price mantissa %q", p.Price)
	}

	price := decimal.NewFromBigInt(mantissa, p.Expo)
	if price.IsNegative() {
		return nil, fmt.Errorf("negative price for feed %s", feedID)
	}

	return &model.PriceQuote{
		FeedID:      feedID,
		Price:       price,
		Conf:        p.Conf,
		PublishTime: p.PublishTime,
	}, nil
}

func canonicalFeedID(id string) string {
	return strings.ToLower(strings.TrimPrefix(id, "0x"))
}
