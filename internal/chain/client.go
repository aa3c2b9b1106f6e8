// Package chain is the gateway to the external log indexer. It constructs
// filter predicates and passes results through; it is not a resilience
// layer, so any transport or service error surfaces as a single upstream
// error with no retries.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"swapFeed/internal/apperr"
	"swapFeed/internal/validate"
)

// Client issues filtered queries against the indexer's query endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds an indexer client. The bearer token may be empty.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// QueryLogs fetches logs emitted by the given contracts matching one of
// the topic0 alternatives, starting at fromBlock, along with the owning
// blocks and transactions.
func (c *Client) QueryLogs(ctx context.Context, contractAddresses, topic0s []string, fromBlock uint64) (*QueryResult, error) {
	addresses := make([]string, 0, len(contractAddresses))
	for _, addr := range contractAddresses {
		addresses = append(addresses, validate.NormalizeAddress(addr))
	}

	query := Query{
		FromBlock: fromBlock,
		Logs: []LogSelection{{
			Address: addresses,
			Topics:  [][]string{topic0s},
		}},
		FieldSelection: defaultFields(),
	}
	return c.run(ctx, query)
}

// QueryTransactionsBySender fetches transactions sent by the given address
// starting at fromBlock.
func (c *Client) QueryTransactionsBySender(ctx context.Context, sender string, fromBlock uint64) (*QueryResult, error) {
	query := Query{
		FromBlock: fromBlock,
		Transactions: []TransactionSelection{{
			From: []string{validate.NormalizeAddress(sender)},
		}},
		FieldSelection: defaultFields(),
	}
	return c.run(ctx, query)
}

func (c *Client) run(ctx context.Context, query Query) (*QueryResult, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, apperr.Upstream("indexer query encode", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Upstream("indexer request build", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream("indexer unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Upstream("indexer response read", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream("indexer unavailable",
			fmt.Errorf("status %s: %s", resp.Status, truncateBody(body)))
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, apperr.Upstream("indexer response parse", err)
	}

	result := wire.toResult()
	c.logger.Debug("indexer query complete",
		zap.Uint64("from_block", query.FromBlock),
		zap.Int("blocks", len(result.Blocks)),
		zap.Int("transactions", len(result.Transactions)),
		zap.Int("logs", len(result.Logs)),
		zap.Uint64("next_block", result.NextBlock),
	)
	return result, nil
}

func truncateBody(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
