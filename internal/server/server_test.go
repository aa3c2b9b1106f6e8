package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapFeed/internal/apperr"
	"swapFeed/internal/feed"
	"swapFeed/internal/model"
	"swapFeed/internal/pipeline"
)

const (
	testWallet = "0x1111111111111111111111111111111111111111"
	testWETH   = "0x7b79995e5f793A07Bc00c21412e50Ecae098E7f9"
	testHash   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

type fakeFetcher struct {
	result *pipeline.Result
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, address string, fromBlock uint64) (*pipeline.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakePricer struct {
	quote *model.PriceQuote
}

func (f *fakePricer) Current(ctx context.Context, tokenAddress string) *model.PriceQuote {
	return f.quote
}

type fakeFeed struct {
	user model.User
	post model.Post
	page []model.EnrichedPost
	tip  model.Tip
	tips []model.Tip
	err  error
}

func (f *fakeFeed) EnsureUser(ctx context.Context, walletAddress string) (model.User, error) {
	return f.user, f.err
}

func (f *fakeFeed) CreatePost(ctx context.Context, in feed.CreatePostInput) (model.Post, error) {
	return f.post, f.err
}

func (f *fakeFeed) Feed(ctx context.Context, query feed.FeedQuery) ([]model.EnrichedPost, error) {
	return f.page, f.err
}

func (f *fakeFeed) MarkExited(ctx context.Context, postID int64, walletAddress string, exitTimestamp int64) error {
	return f.err
}

func (f *fakeFeed) Tip(ctx context.Context, in feed.TipInput) (model.Tip, error) {
	return f.tip, f.err
}

func (f *fakeFeed) TipsForPost(ctx context.Context, postID int64) ([]model.Tip, error) {
	return f.tips, f.err
}

func (f *fakeFeed) TipsForUser(ctx context.Context, username string) ([]model.Tip, error) {
	return f.tips, f.err
}

func newTestServer(fetcher SwapFetcher, feedSvc FeedService, pricer Pricer) *Server {
	if fetcher == nil {
		fetcher = &fakeFetcher{result: &pipeline.Result{}}
	}
	if feedSvc == nil {
		feedSvc = &fakeFeed{}
	}
	if pricer == nil {
		pricer = &fakePricer{}
	}
	cfg := Config{Addr: ":0", Version: "test", IndexerURL: "http://indexer.local"}
	return New(cfg, fetcher, feedSvc, pricer, zap.NewNop())
}

func doRequest(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, req)

	parsed := map[string]json.RawMessage{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("parse response %q: %v", recorder.Body.String(), err)
	}
	return recorder, parsed
}

func TestHealth(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	recorder, body := doRequest(t, s, http.MethodGet, "/", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d", recorder.Code)
	}
	if string(body["status"]) != `"ok"` {
		t.Fatalf("unexpected health body: %s", recorder.Body.String())
	}
}

func TestSwapsRejectsBadAddress(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	recorder, body := doRequest(t, s, http.MethodGet, "/api/swaps?address=nope", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status %d", recorder.Code)
	}
	if string(body["success"]) != "false" {
		t.Fatalf("expected success=false: %s", recorder.Body.String())
	}
}

func TestSwapsReturnsPipelineResult(t *testing.T) {
	fetcher := &fakeFetcher{result: &pipeline.Result{
		Swaps: []model.EnrichedSwap{{BlockNumber: 100, TxHash: testHash}},
		Metadata: pipeline.Metadata{
			TotalLogs: 3, FilteredLogs: 1, NextBlock: 101, ArchiveHeight: 200,
		},
	}}
	s := newTestServer(fetcher, nil, nil)

	recorder, body := doRequest(t, s, http.MethodGet, "/api/swaps?address="+testWallet+"&fromBlock=50", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d: %s", recorder.Code, recorder.Body.String())
	}

	var meta pipeline.Metadata
	if err := json.Unmarshal(body["metadata"], &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.NextBlock != 101 || meta.ArchiveHeight != 200 {
		t.Fatalf("metadata mismatch: %+v", meta)
	}
}

func TestSwapsUpstreamFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: apperr.Upstream("indexer query", context.DeadlineExceeded)}
	s := newTestServer(fetcher, nil, nil)

	recorder, _ := doRequest(t, s, http.MethodGet, "/api/swaps?address="+testWallet, "")
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", recorder.Code)
	}
}

func TestCurrentPrices(t *testing.T) {
	price := decimal.RequireFromString("2543.21")
	pricer := &fakePricer{quote: &model.PriceQuote{Price: price, Conf: "150", PublishTime: 1700000000}}
	s := newTestServer(nil, nil, pricer)

	unknownToken := "0x9999999999999999999999999999999999999999"
	recorder, body := doRequest(t, s, http.MethodGet,
		"/api/prices/current?tokens="+testWETH+","+unknownToken, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d: %s", recorder.Code, recorder.Body.String())
	}

	var prices map[string]*struct {
		USDPrice  decimal.Decimal `json:"usd_price"`
		Symbol    string          `json:"symbol"`
		Timestamp int64           `json:"timestamp"`
	}
	if err := json.Unmarshal(body["prices"], &prices); err != nil {
		t.Fatalf("prices: %v", err)
	}

	weth := prices[strings.ToLower(testWETH)]
	if weth == nil || !weth.USDPrice.Equal(price) || weth.Symbol != "WETH" {
		t.Fatalf("weth entry: %+v", weth)
	}
	if entry, ok := prices[unknownToken]; !ok || entry != nil {
		t.Fatalf("unsupported token must map to null, got %v (present %v)", entry, ok)
	}
}

func TestCurrentPricesRequiresTokens(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	recorder, _ := doRequest(t, s, http.MethodGet, "/api/prices/current", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status %d", recorder.Code)
	}
}

func TestEnsureUser(t *testing.T) {
	feedSvc := &fakeFeed{user: model.User{ID: 7, WalletAddress: testWallet, Username: "bold_lynx_0042"}}
	s := newTestServer(nil, feedSvc, nil)

	recorder, body := doRequest(t, s, http.MethodPost, "/api/users/ensure",
		`{"wallet_address":"`+testWallet+`"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d: %s", recorder.Code, recorder.Body.String())
	}
	var user model.User
	if err := json.Unmarshal(body["user"], &user); err != nil {
		t.Fatalf("user: %v", err)
	}
	if user.ID != 7 || user.Username != "bold_lynx_0042" {
		t.Fatalf("user mismatch: %+v", user)
	}
}

func TestCreatePostStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"created", nil, http.StatusCreated},
		{"duplicate", apperr.Conflict("post already exists"), http.StatusConflict},
		{"wrong sender", apperr.Authorization("sender mismatch"), http.StatusForbidden},
		{"unknown tx", apperr.NotFound("transaction not found"), http.StatusNotFound},
		{"bad input", apperr.Validation("invalid tx hash"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(nil, &fakeFeed{post: model.Post{ID: 1}, err: tc.err}, nil)
			recorder, _ := doRequest(t, s, http.MethodPost, "/api/posts",
				`{"wallet_address":"`+testWallet+`","tx_hash":"`+testHash+`"}`)
			if recorder.Code != tc.want {
				t.Fatalf("status %d, want %d", recorder.Code, tc.want)
			}
		})
	}
}

func TestCreatePostRejectsMalformedBody(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	recorder, _ := doRequest(t, s, http.MethodPost, "/api/posts", `{"wallet_address":`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status %d", recorder.Code)
	}
}

func TestFeedPage(t *testing.T) {
	pnl := decimal.RequireFromString("12.5")
	feedSvc := &fakeFeed{page: []model.EnrichedPost{
		{Post: model.Post{ID: 1, TokenOut: testWETH}, TokenOutSymbol: "WETH", PnlPercent: &pnl},
	}}
	s := newTestServer(nil, feedSvc, nil)

	recorder, body := doRequest(t, s, http.MethodGet, "/api/posts?sort=pnl&limit=10", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d", recorder.Code)
	}
	var posts []model.EnrichedPost
	if err := json.Unmarshal(body["posts"], &posts); err != nil {
		t.Fatalf("posts: %v", err)
	}
	if len(posts) != 1 || posts[0].TokenOutSymbol != "WETH" || posts[0].PnlPercent == nil {
		t.Fatalf("posts mismatch: %+v", posts)
	}
}

func TestTipRoutes(t *testing.T) {
	feedSvc := &fakeFeed{
		tip:  model.Tip{ID: 9, PostID: 3, Status: model.TipStatusVerified},
		tips: []model.Tip{{ID: 9, PostID: 3}},
	}
	s := newTestServer(nil, feedSvc, nil)

	recorder, body := doRequest(t, s, http.MethodPost, "/api/posts/3/tips",
		`{"from_wallet":"`+testWallet+`","amount":"5","tx_hash":"`+testHash+`"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", recorder.Code, recorder.Body.String())
	}
	var tip model.Tip
	if err := json.Unmarshal(body["tip"], &tip); err != nil {
		t.Fatalf("tip: %v", err)
	}
	if tip.ID != 9 || tip.Status != model.TipStatusVerified {
		t.Fatalf("tip mismatch: %+v", tip)
	}

	recorder, _ = doRequest(t, s, http.MethodGet, "/api/posts/3/tips", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("list status %d", recorder.Code)
	}

	recorder, _ = doRequest(t, s, http.MethodGet, "/api/users/bold_lynx_0042/tips", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("user tips status %d", recorder.Code)
	}

	recorder, _ = doRequest(t, s, http.MethodPost, "/api/posts/nope/tips", `{}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("bad id status %d", recorder.Code)
	}
}

func TestExitRoute(t *testing.T) {
	s := newTestServer(nil, &fakeFeed{}, nil)
	recorder, _ := doRequest(t, s, http.MethodPost, "/api/posts/3/exit",
		`{"wallet_address":"`+testWallet+`","exit_timestamp":1700000000}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d", recorder.Code)
	}

	s = newTestServer(nil, &fakeFeed{err: apperr.Authorization("only the author can exit a post")}, nil)
	recorder, _ = doRequest(t, s, http.MethodPost, "/api/posts/3/exit",
		`{"wallet_address":"`+testWallet+`","exit_timestamp":1700000000}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status %d", recorder.Code)
	}
}
