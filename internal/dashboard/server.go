// Package dashboard serves the reporting JSON API consumed by the UI.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/podlens/podlens/internal/aggregate"
	"github.com/podlens/podlens/internal/cache"
	"github.com/podlens/podlens/internal/ingest"
	"github.com/podlens/podlens/internal/settings"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB       *gorm.DB
	Engine   *ingest.Engine
	Service  *aggregate.Service
	Settings *settings.Store
	Cache    *cache.Cache
	Port     int
	Out      io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("dashboard: db is required")
	}
	if opts.Engine == nil {
		return fmt.Errorf("dashboard: sync engine is required")
	}
	if opts.Service == nil {
		return fmt.Errorf("dashboard: aggregation service is required")
	}
	if opts.Settings == nil {
		return fmt.Errorf("dashboard: settings store is required")
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(0)
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// NewRouter builds the gin router without binding a listener, used by tests.
func NewRouter(opts StartOpts) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if opts.Cache == nil {
		opts.Cache = cache.New(0)
	}
	registerRoutes(router, opts)
	return router
}
