// Package server exposes the HTTP API: swap lookups, current prices,
// and the posts/users/tips surface.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swapFeed/internal/feed"
	"swapFeed/internal/model"
	"swapFeed/internal/pipeline"
)

// SwapFetcher runs the swap matching pipeline for one address.
type SwapFetcher interface {
	Fetch(ctx context.Context, address string, fromBlock uint64) (*pipeline.Result, error)
}

// FeedService is the post/user/tip surface the handlers call.
type FeedService interface {
	EnsureUser(ctx context.Context, walletAddress string) (model.User, error)
	CreatePost(ctx context.Context, in feed.CreatePostInput) (model.Post, error)
	Feed(ctx context.Context, query feed.FeedQuery) ([]model.EnrichedPost, error)
	MarkExited(ctx context.Context, postID int64, walletAddress string, exitTimestamp int64) error
	Tip(ctx context.Context, in feed.TipInput) (model.Tip, error)
	TipsForPost(ctx context.Context, postID int64) ([]model.Tip, error)
	TipsForUser(ctx context.Context, username string) ([]model.Tip, error)
}

// Pricer serves the freshest known price for a token.
type Pricer interface {
	Current(ctx context.Context, tokenAddress string) *model.PriceQuote
}

// Config carries the server's own knobs plus what the health endpoint
// reports.
type Config struct {
	Addr       string
	Version    string
	IndexerURL string
}

// Server owns the gin engine and its handler dependencies.
type Server struct {
	cfg    Config
	engine *gin.Engine
	swaps  SwapFetcher
	feed   FeedService
	pricer Pricer
	logger *zap.Logger
}

func New(cfg Config, swaps SwapFetcher, feedSvc FeedService, pricer Pricer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		cfg:    cfg,
		engine: engine,
		swaps:  swaps,
		feed:   feedSvc,
		pricer: pricer,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/swaps", s.handleSwaps)
	api.GET("/prices/current", s.handleCurrentPrices)

	api.POST("/users/ensure", s.handleEnsureUser)
	api.GET("/users/:username/tips", s.handleUserTips)

	api.POST("/posts", s.handleCreatePost)
	api.GET("/posts", s.handleFeed)
	api.POST("/posts/:id/exit", s.handleExit)
	api.POST("/posts/:id/tips", s.handleTip)
	api.GET("/posts/:id/tips", s.handlePostTips)
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is canceled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
