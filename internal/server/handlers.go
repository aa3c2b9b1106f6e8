package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swapFeed/internal/apperr"
	"swapFeed/internal/feed"
	"swapFeed/internal/pricefeed"
	"swapFeed/internal/validate"
)

func (s *Server) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "swap-feed",
		"version":     s.cfg.Version,
		"indexer_url": s.cfg.IndexerURL,
	})
}

func (s *Server) handleSwaps(c *gin.Context) {
	address := c.Query("address")
	if !validate.Address(address) {
		s.respondError(c, apperr.Validation("invalid address %q", address))
		return
	}

	var fromBlock uint64
	if raw := c.Query("fromBlock"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.respondError(c, apperr.Validation("invalid fromBlock %q", raw))
			return
		}
		fromBlock = parsed
	}

	result, err := s.swaps.Fetch(c.Request.Context(), address, fromBlock)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"swaps":        result.Swaps,
		"blocks":       result.Blocks,
		"transactions": result.Transactions,
		"metadata":     result.Metadata,
	})
}

// handleCurrentPrices serves cached prices. Unsupported tokens and failed
// lookups map to null entries instead of failing the request.
func (s *Server) handleCurrentPrices(c *gin.Context) {
	raw := c.Query("tokens")
	if raw == "" {
		s.respondError(c, apperr.Validation("tokens query parameter is required"))
		return
	}

	prices := gin.H{}
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		key := validate.NormalizeAddress(token)
		if !validate.Address(token) || !pricefeed.Supported(token) {
			prices[key] = nil
			continue
		}
		quote := s.pricer.Current(c.Request.Context(), token)
		if quote == nil {
			prices[key] = nil
			continue
		}
		prices[key] = gin.H{
			"usd_price":  quote.Price,
			"timestamp":  quote.PublishTime,
			"symbol":     pricefeed.Symbol(token),
			"confidence": quote.Conf,
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prices": prices})
}

func (s *Server) handleEnsureUser(c *gin.Context) {
	var body struct {
		WalletAddress string `json:"wallet_address"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	user, err := s.feed.EnsureUser(c.Request.Context(), body.WalletAddress)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (s *Server) handleCreatePost(c *gin.Context) {
	var in feed.CreatePostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	post, err := s.feed.CreatePost(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": post})
}

func (s *Server) handleFeed(c *gin.Context) {
	query := feed.FeedQuery{
		Sort:         c.Query("sort"),
		ViewerWallet: c.Query("viewer_wallet"),
	}
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(c, apperr.Validation("invalid limit %q", raw))
			return
		}
		query.Limit = parsed
	}
	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(c, apperr.Validation("invalid offset %q", raw))
			return
		}
		query.Offset = parsed
	}

	posts, err := s.feed.Feed(c.Request.Context(), query)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": posts})
}

func (s *Server) postID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, apperr.Validation("invalid post id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func (s *Server) handleExit(c *gin.Context) {
	id, ok := s.postID(c)
	if !ok {
		return
	}
	var body struct {
		WalletAddress string `json:"wallet_address"`
		ExitTimestamp int64  `json:"exit_timestamp"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	if err := s.feed.MarkExited(c.Request.Context(), id, body.WalletAddress, body.ExitTimestamp); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleTip(c *gin.Context) {
	id, ok := s.postID(c)
	if !ok {
		return
	}
	var in feed.TipInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	in.PostID = id

	tip, err := s.feed.Tip(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "tip": tip})
}

func (s *Server) handlePostTips(c *gin.Context) {
	id, ok := s.postID(c)
	if !ok {
		return
	}
	tips, err := s.feed.TipsForPost(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tips": tips})
}

func (s *Server) handleUserTips(c *gin.Context) {
	tips, err := s.feed.TipsForUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tips": tips})
}
