package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Domenick1991/jcsyfill/api"
	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type Handlers struct {
	Lists   *api.ListHandler
	Lookup  *api.LookupHandler
	Metrics *metrics.Metrics
	// Ready is checked by /healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter mounts the API under /api/v1 next to /healthz and /metrics.
func NewRouter(h Handlers, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		if h.Ready != nil {
			if err := h.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	if h.Lists != nil {
		h.Lists.Register(v1.Group("/lists"))
	}
	if h.Lookup != nil {
		h.Lookup.Register(v1.Group("/lookup"))
	}
	return r
}

// Run serves handler and blocks until ctx is canceled or the server fails.
func Run(ctx context.Context, cfg config.HTTPConfig, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("address", cfg.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", cfg.Address, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
			logger.Error("http request with errors", fields...)
			return
		}
		if strings.HasPrefix(path, "/healthz") || path == "/metrics" {
			logger.Debug("http request", fields...)
			return
		}
		logger.Info("http request", fields...)
	}
}
