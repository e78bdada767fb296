package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lexfeed/lexfeed/app/aggregator"
	"github.com/lexfeed/lexfeed/app/database"
)

type Handler struct {
	aggregator *aggregator.Aggregator
	sourceRepo database.SourceRepository
	version    string
}

func NewHandler(agg *aggregator.Aggregator, sourceRepo database.SourceRepository, version string) *Handler {
	return &Handler{
		aggregator: agg,
		sourceRepo: sourceRepo,
		version:    version,
	}
}

type aggregateRequest struct {
	Categories []string `json:"categories"`
}

// PostAggregate triggers a synchronous aggregation run. Categories come from
// the JSON body or a comma-separated query parameter; empty means all.
// Cancelling the request abandons in-flight fetches; already persisted
// articles remain valid.
func (h *Handler) PostAggregate(c *gin.Context) {
	var req aggregateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	if len(req.Categories) == 0 {
		if q := c.Query("categories"); q != "" {
			req.Categories = strings.Split(q, ",")
		}
	}

	result, err := h.aggregator.Aggregate(c.Request.Context(), req.Categories)
	if err != nil {
		if errors.Is(err, aggregator.ErrNoSources) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		slog.Error("Aggregation run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregation failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetStats exposes the read-only aggregate over persisted articles.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.aggregator.GetStatistics()
	if err != nil {
		slog.Error("Failed to compute statistics", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if categories, err := h.sourceRepo.Categories(); err == nil {
		health["categories"] = len(categories)
	}

	c.JSON(http.StatusOK, health)
}
