// Package api exposes batch management over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rshade/batchengine/internal/engine"
	"github.com/rshade/batchengine/internal/logging"
)

// HeaderTraceID carries the request trace id in both directions.
const HeaderTraceID = "X-Trace-ID"

const shutdownTimeout = 10 * time.Second

// Options configures the router.
type Options struct {
	// AllowedOrigins lists CORS origins. Empty allows every origin.
	AllowedOrigins []string

	// Mode is the gin mode: release, debug or test.
	Mode string

	Logger zerolog.Logger
}

// NewRouter builds the management API router for e.
func NewRouter(e *engine.Engine, opts Options) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	log := logging.ComponentLogger(opts.Logger, "api")
	h := &handlers{engine: e}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", HeaderTraceID},
		ExposeHeaders: []string{HeaderTraceID},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/healthz", h.health)

	batches := router.Group("/batches")
	batches.GET("", h.listBatches)
	batches.POST("", h.createBatch)
	batches.GET("/count", h.countBatches)
	batches.GET("/:id", h.getBatch)
	batches.DELETE("/:id", h.deleteBatch)
	batches.GET("/:id/statistics", h.statistics)
	batches.GET("/:id/jobs", h.listJobs)
	batches.PUT("/:id/suspended", h.setSuspended)

	return router
}

// requestLogger attaches a trace id and a logger to the request context and
// logs each request once it completes.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := c.Request.Context()
		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = logging.GetOrGenerateTraceID(ctx)
		}
		ctx = logging.ContextWithTraceID(ctx, traceID)
		ctx = log.WithContext(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, traceID)

		c.Next()

		log.Info().
			Str(logging.FieldTraceID, traceID).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	}
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// the server down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
