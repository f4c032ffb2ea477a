// Package api exposes the dashboard HTTP surface over gin: the sentiment
// endpoint, the widget endpoints, health, metrics and the websocket
// upgrade.
package api

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartmoney-sentiment/internal/config"
	"smartmoney-sentiment/internal/domain"
	"smartmoney-sentiment/internal/observability"
	"smartmoney-sentiment/internal/widgets"
)

// SentimentSource serves the headline score and the markets widget.
// Satisfied by the aggregator.
type SentimentSource interface {
	Sentiment(ctx context.Context) *domain.Result
	Markets(ctx context.Context) ([]domain.AssetContext, error)
}

// WidgetSource serves the secondary dashboard panels.
type WidgetSource interface {
	TopTokens(ctx context.Context, limit int) ([]domain.TokenFlow, bool, error)
	TopTraders(ctx context.Context, limit int) ([]widgets.TraderSummary, bool, error)
	StableFlows(ctx context.Context) (*widgets.StableFlowSummary, bool, error)
	Feed(ctx context.Context, limit int) ([]domain.PositionalTrade, bool, error)
}

// SocketHandler upgrades websocket requests. Satisfied by the broadcast hub.
type SocketHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Server wires the HTTP routes to their backing services.
type Server struct {
	cfg       *config.Config
	sentiment SentimentSource
	widgets   WidgetSource
	socket    SocketHandler
	logger    *log.Logger
	startedAt time.Time
}

// Options configures a Server. Socket and Logger are optional.
type Options struct {
	Config    *config.Config
	Sentiment SentimentSource
	Widgets   WidgetSource
	Socket    SocketHandler
	Logger    *log.Logger
}

// NewServer creates the HTTP server wiring.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		cfg:       opts.Config,
		sentiment: opts.Sentiment,
		widgets:   opts.Widgets,
		socket:    opts.Socket,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	grp := r.Group("/api")
	grp.GET("/sentiment", s.handleSentiment)
	grp.GET("/tokens/top", s.handleTopTokens)
	grp.GET("/traders/top", s.handleTopTraders)
	grp.GET("/flows/stables", s.handleStableFlows)
	grp.GET("/feed", s.handleFeed)
	grp.GET("/markets", s.handleMarkets)
	grp.GET("/healthz", s.handleHealthz)

	r.GET("/metrics", gin.WrapH(observability.Handler()))

	if s.socket != nil {
		r.GET("/ws", func(c *gin.Context) {
			s.socket.ServeWS(c.Writer, c.Request)
		})
	}

	return r
}

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.logger.Printf("listening on %s", s.cfg.Server.ListenAddr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
