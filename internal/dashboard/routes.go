package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/podlens/podlens/internal/aggregate"
	"github.com/podlens/podlens/internal/ingest"
	"github.com/podlens/podlens/internal/models"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth(opts))

	api := router.Group("/api")
	api.POST("/sync", handleSync(opts))
	api.GET("/sync/runs", handleSyncRuns(opts))

	metrics := api.Group("/metrics")
	metrics.GET("/trainers", cached(opts, func(c *gin.Context) (interface{}, error) {
		return opts.Service.TrainerSummary(c.Request.Context(), parseFilters(c))
	}))
	metrics.GET("/reviewers", cached(opts, func(c *gin.Context) (interface{}, error) {
		return opts.Service.ReviewerSummary(c.Request.Context(), parseFilters(c))
	}))
	metrics.GET("/podleads", cached(opts, func(c *gin.Context) (interface{}, error) {
		return opts.Service.PodLeadSummary(c.Request.Context(), parseFilters(c))
	}))
	metrics.GET("/projects", cached(opts, func(c *gin.Context) (interface{}, error) {
		return opts.Service.ProjectSummary(c.Request.Context(), parseFilters(c))
	}))
	metrics.GET("/trends", cached(opts, func(c *gin.Context) (interface{}, error) {
		g, err := aggregate.ParseGranularity(c.Query("granularity"))
		if err != nil {
			return nil, errBadRequest(err)
		}
		return opts.Service.Trend(c.Request.Context(), g, parseFilters(c))
	}))

	registerSettingRoutes(api, opts)
}

func handleHealth(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok", "syncing": opts.Engine.Running()}
		c.JSON(http.StatusOK, status)
	}
}

// syncRequest is the POST /api/sync body. Tables empty means all.
type syncRequest struct {
	Tables []string `json:"tables"`
}

// handleSync runs one manual pass synchronously and returns its per-table
// result. A pass already in flight is rejected with 409.
func handleSync(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syncRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		res, err := opts.Engine.Run(c.Request.Context(), req.Tables, ingest.TriggerManual)
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrSyncInFlight):
				c.JSON(http.StatusConflict, gin.H{"error": "sync already in flight"})
			case errors.Is(err, ingest.ErrUnknownTable):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleSyncRuns(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		var runs []models.SyncRun
		q := opts.DB.WithContext(c.Request.Context()).Order("started_at DESC").Limit(limit)
		if table := c.Query("table"); table != "" {
			q = q.Where("table_name = ?", table)
		}
		if err := q.Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, runs)
	}
}

// badRequestError marks a handler error as a client fault.
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }

func errBadRequest(err error) error { return badRequestError{err: err} }

// cached wraps a metric handler with the response cache, keyed on the full
// request URI. The cache is flushed by the sync completion hook.
func cached(opts StartOpts, load func(*gin.Context) (interface{}, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.URL.RequestURI()
		if v, ok := opts.Cache.Get(key); ok {
			c.JSON(http.StatusOK, v)
			return
		}
		v, err := load(c)
		if err != nil {
			var bad badRequestError
			if errors.As(err, &bad) {
				c.JSON(http.StatusBadRequest, gin.H{"error": bad.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		opts.Cache.Set(key, v)
		c.JSON(http.StatusOK, v)
	}
}

// parseFilters reads the shared metric query parameters.
func parseFilters(c *gin.Context) aggregate.Filters {
	var f aggregate.Filters
	if raw := c.Query("project_id"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 32); err == nil {
			f.ProjectID = uint(n)
		}
	}
	if raw := c.Query("entity_id"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 32); err == nil {
			f.EntityID = uint(n)
		}
	}
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			f.From = t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			f.To = t
		}
	}
	return f
}
