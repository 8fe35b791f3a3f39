// Package server implements the C8 Service Shell: gin routing for every
// endpoint in §6, bearer-token auth on /api/*, a per-request deadline, a
// global recovery trap, and the uniform response envelope. Grounded in the
// teacher's gin.New()+gin.Recovery()+StaticFS wiring style, generalized
// from a single-page comparison UI to a multi-provider JSON API.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/metabridge/scraper/internal/apierr"
	"github.com/metabridge/scraper/internal/orchestrator"
)

const (
	serviceVersion = "1.0.0"

	ginModeRelease = "release"

	defaultSearchMax = 12
	minSearchMax     = 1
	maxSearchMax     = 50
)

// RouterConfig configures the HTTP routing layer.
type RouterConfig struct {
	Orchestrator    *orchestrator.Orchestrator
	Logger          *zap.Logger
	AuthToken       string
	TokenHeaderName string
	RequestTimeout  time.Duration
}

// NewRouter constructs a gin engine wired to every §6 endpoint.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(ginModeRelease)
	engine := gin.New()
	engine.Use(recoveryMiddleware(logger), requestLogMiddleware(logger), deadlineMiddleware(cfg.RequestTimeout))

	handler := apiHandler{orch: cfg.Orchestrator, logger: logger}

	engine.GET("/", handler.serviceInfo(cfg.AuthToken))
	engine.GET("/health", handler.health)
	engine.GET("/cache/stats", handler.cacheStats)
	engine.DELETE("/cache/clear", handler.cacheClear)
	engine.DELETE("/cache/:provider/:id", handler.cacheRemove)
	engine.GET("/r/:provider/:id", handler.redirect)

	api := engine.Group("/api")
	api.Use(authMiddleware(cfg.TokenHeaderName, cfg.AuthToken))
	api.GET("/:provider/search", handler.search)
	api.GET("/:provider/:id", handler.detail)

	return engine
}

type apiHandler struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

func (h apiHandler) serviceInfo(authToken string) gin.HandlerFunc {
	authEnabled := strings.TrimSpace(authToken) != ""
	return func(c *gin.Context) {
		writeEnvelope(c, http.StatusOK, gin.H{"authEnabled": authEnabled, "version": serviceVersion}, "")
	}
}

func (h apiHandler) health(c *gin.Context) {
	writeEnvelope(c, http.StatusOK, gin.H{"status": "healthy"}, "")
}

func (h apiHandler) cacheStats(c *gin.Context) {
	writeEnvelope(c, http.StatusOK, h.orch.CacheStats(), "")
}

func (h apiHandler) cacheClear(c *gin.Context) {
	h.orch.CacheClear()
	writeEnvelope(c, http.StatusOK, gin.H{"cleared": true}, "")
}

func (h apiHandler) cacheRemove(c *gin.Context) {
	h.orch.CacheRemove(c.Param("provider"), c.Param("id"))
	writeEnvelope(c, http.StatusOK, gin.H{"removed": true}, "")
}

func (h apiHandler) redirect(c *gin.Context) {
	p, ok := h.orch.Lookup(c.Param("provider"))
	if !ok {
		writeEnvelope(c, http.StatusNotFound, nil, "unknown provider")
		return
	}
	id, ok := p.TryParseID(c.Param("id"))
	if !ok {
		writeEnvelope(c, http.StatusNotFound, nil, "invalid id")
		return
	}
	c.Redirect(http.StatusFound, p.BuildDetailURL(id))
}

func (h apiHandler) search(c *gin.Context) {
	providerName := c.Param("provider")
	title := strings.TrimSpace(c.Query("title"))

	maxResults := parseSearchMax(c.Query("max"))

	results, err := h.orch.Search(c.Request.Context(), providerName, title, maxResults)
	if err != nil {
		writeClassifiedError(c, h.logger, err)
		return
	}
	writeEnvelope(c, http.StatusOK, results, "")
}

func (h apiHandler) detail(c *gin.Context) {
	providerName := c.Param("provider")
	rawID := c.Param("id")

	metadata, err := h.orch.DetailByID(c.Request.Context(), providerName, rawID)
	if err != nil {
		writeClassifiedError(c, h.logger, err)
		return
	}
	if metadata == nil {
		writeEnvelope(c, http.StatusOK, nil, "not found")
		return
	}
	writeEnvelope(c, http.StatusOK, metadata, "")
}

func parseSearchMax(raw string) int {
	if raw == "" {
		return defaultSearchMax
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return defaultSearchMax
	}
	if parsed < minSearchMax {
		return minSearchMax
	}
	if parsed > maxSearchMax {
		return maxSearchMax
	}
	return parsed
}

// writeClassifiedError maps an orchestrator error to the §7 taxonomy's
// HTTP status and envelope per its apierr classification.
func writeClassifiedError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, apierr.ErrInvalidInput):
		writeEnvelope(c, http.StatusBadRequest, nil, "invalid input: "+err.Error())
	case errors.Is(err, apierr.ErrBusy):
		writeEnvelope(c, http.StatusTooManyRequests, nil, "service busy")
	case errors.Is(err, apierr.ErrCancelled):
		writeEnvelope(c, http.StatusRequestTimeout, nil, "request cancelled")
	case errors.Is(err, apierr.ErrUpstreamTransient):
		writeEnvelope(c, http.StatusBadGateway, nil, "upstream failure")
	default:
		logger.Error("unclassified orchestrator error", zap.Error(err))
		writeEnvelope(c, http.StatusInternalServerError, nil, "internal error")
	}
}

// envelope is the uniform response shape named in §6.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeEnvelope(c *gin.Context, status int, data any, errMessage string) {
	c.JSON(status, envelope{
		Success:   errMessage == "",
		Data:      data,
		Error:     errMessage,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
