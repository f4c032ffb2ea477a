package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Default and maximum list sizes for the widget endpoints.
const (
	defaultTopLimit  = 10
	defaultFeedLimit = 50
	maxLimit         = 200
)

// widgetResponse is the common widget envelope: the payload plus a stale
// marker so the dashboard can grey out panels served from the fallback,
// and an unavailable marker for panels with no data at all.
type widgetResponse struct {
	Data        any  `json:"data"`
	Stale       bool `json:"stale"`
	Unavailable bool `json:"unavailable,omitempty"`
}

// handleSentiment serves the headline result. The aggregator's fallback
// ladder guarantees a result, so this endpoint never errors.
func (s *Server) handleSentiment(c *gin.Context) {
	c.JSON(http.StatusOK, s.sentiment.Sentiment(c.Request.Context()))
}

func (s *Server) handleTopTokens(c *gin.Context) {
	limit := limitParam(c, defaultTopLimit)
	tokens, stale, err := s.widgets.TopTokens(c.Request.Context(), limit)
	s.writeWidget(c, tokens, stale, err)
}

func (s *Server) handleTopTraders(c *gin.Context) {
	limit := limitParam(c, defaultTopLimit)
	traders, stale, err := s.widgets.TopTraders(c.Request.Context(), limit)
	s.writeWidget(c, traders, stale, err)
}

func (s *Server) handleStableFlows(c *gin.Context) {
	sum, stale, err := s.widgets.StableFlows(c.Request.Context())
	s.writeWidget(c, sum, stale, err)
}

func (s *Server) handleFeed(c *gin.Context) {
	limit := limitParam(c, defaultFeedLimit)
	feed, stale, err := s.widgets.Feed(c.Request.Context(), limit)
	s.writeWidget(c, feed, stale, err)
}

func (s *Server) handleMarkets(c *gin.Context) {
	ctxs, err := s.sentiment.Markets(c.Request.Context())
	s.writeWidget(c, ctxs, false, err)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptimeSeconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

// writeWidget applies the shared widget policy: upstream failure degrades
// the panel to an empty unavailable payload, never a 5xx, so the rest of
// the dashboard keeps rendering.
func (s *Server) writeWidget(c *gin.Context, data any, stale bool, err error) {
	if err != nil {
		s.logger.Printf("widget %s unavailable: %v", c.FullPath(), err)
		c.JSON(http.StatusOK, widgetResponse{Unavailable: true})
		return
	}
	c.JSON(http.StatusOK, widgetResponse{Data: data, Stale: stale})
}

func limitParam(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
