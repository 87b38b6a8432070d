package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/search"
)

// Searcher runs recipe searches. *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, req *search.Request) (*search.Response, error)
	Config() config.SearchConfig
}

// SearchHandler serves the search RPC and its REST form.
type SearchHandler struct {
	searcher Searcher
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSearchHandler creates a handler. A positive timeout bounds every search.
func NewSearchHandler(searcher Searcher, timeout time.Duration) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
		timeout:  timeout,
		logger:   slog.Default(),
	}
}

// RegisterRoutes mounts the search endpoints on the /api/v1 group.
func (h *SearchHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/rpc/search_recipes", h.SearchRecipesRPC)
	router.GET("/recipes/search", h.SearchRecipes)
	router.GET("/search/config", h.GetConfig)
}

// SearchRecipesRPC takes the flat JSON parameter object and responds with
// the array of rows. Every row carries filtered_count and total_count.
func (h *SearchHandler) SearchRecipesRPC(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	req, err := search.ParseRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, ok := h.run(c, req)
	if !ok {
		return
	}
	// counts survive an empty page through the headers
	c.Header("X-Filtered-Count", strconv.Itoa(resp.FilteredCount))
	c.Header("X-Total-Count", strconv.Itoa(resp.TotalCount))
	c.JSON(http.StatusOK, resp.Rows)
}

// SearchRecipes takes the parameters as a query string and responds with
// the paging envelope.
func (h *SearchHandler) SearchRecipes(c *gin.Context) {
	req, err := search.ParseQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, ok := h.run(c, req)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetConfig returns the scoring weights and thresholds the engine uses.
func (h *SearchHandler) GetConfig(c *gin.Context) {
	cfg := h.searcher.Config()
	c.JSON(http.StatusOK, gin.H{
		"weights":    cfg.Weights,
		"thresholds": cfg.Thresholds,
		"pagination": cfg.Pagination,
		"constants":  cfg.Constants(),
	})
}

// run executes the search and writes the error response on failure.
func (h *SearchHandler) run(c *gin.Context, req *search.Request) (*search.Response, bool) {
	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.searcher.Search(ctx, req)
	if err == nil {
		return resp, true
	}

	switch {
	case errors.Is(err, search.ErrSearchUnavailable), errors.Is(err, context.DeadlineExceeded):
		h.logger.ErrorContext(ctx, "search failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search unavailable"})
	case errors.Is(err, context.Canceled):
		// client went away
		c.Status(499)
	default:
		h.logger.ErrorContext(ctx, "search failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
	return nil, false
}
