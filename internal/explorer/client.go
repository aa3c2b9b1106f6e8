// Package explorer looks up transactions on a block-explorer proxy API.
// It backs best-effort transfer verification: callers decide whether a
// miss is fatal (post creation) or a soft downgrade (tips).
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Transaction is the subset of an explorer transaction this service reads.
type Transaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	BlockNumber string `json:"blockNumber"`
}

// Client queries the explorer's eth_getTransactionByHash proxy endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds an explorer client. The API key may be empty.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type proxyResponse struct {
	Result *Transaction `json:"result"`
}

// TransactionByHash returns the transaction, or (nil, nil) when the
// explorer does not know the hash. Only transport and parse failures
// return an error.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionByHash")
	params.Set("txhash", hash)
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	endpoint := c.baseURL + "/api?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build explorer request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read explorer response: %w", err)
	}

	var proxy proxyResponse
	if err := json.Unmarshal(body, &proxy); err != nil {
		return nil, fmt.Errorf("parse explorer response: %w", err)
	}
	if proxy.Result == nil || proxy.Result.Hash == "" {
		return nil, nil
	}
	return proxy.Result, nil
}
