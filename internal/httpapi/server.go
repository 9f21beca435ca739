// Package httpapi exposes a small operations API: health, Prometheus metrics,
// the source catalog, the article history and a manual check trigger.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
	"fxwatch/internal/storage"
	"fxwatch/internal/watcher"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	shutdownTimeout     = 10 * time.Second
)

// SourceCatalog lists the registered sources.
type SourceCatalog interface {
	List() []domain.SourceInfo
}

// Checker runs one watcher cycle on demand.
type Checker interface {
	Check(ctx context.Context, force bool) (watcher.Report, error)
}

// Deps are the collaborators of the API. Checker may be nil, in which case
// POST /api/check answers 503.
type Deps struct {
	Sources SourceCatalog
	History storage.HistoryRepository
	States  storage.StateRepository
	Checker Checker
}

type Server struct {
	deps   Deps
	engine *gin.Engine
	log    logrus.FieldLogger
}

func NewServer(deps Deps, logger logrus.FieldLogger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		deps:   deps,
		engine: gin.New(),
		log:    logger.WithField("component", "http_api"),
	}
	s.engine.Use(gin.Recovery(), requestLogger(s.log), prometheusMiddleware())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "fxwatch"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	{
		api.GET("/sources", s.listSources)
		api.GET("/history", s.listHistory)
		api.GET("/state", s.listStates)
		api.POST("/check", s.triggerCheck)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("HTTP API stopped")
	return nil
}

func (s *Server) listSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.deps.Sources.List()})
}

func (s *Server) listHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var (
		entries []domain.HistoryEntry
		err     error
	)
	if q := c.Query("q"); q != "" {
		entries, err = s.deps.History.Search(c.Request.Context(), q)
		if len(entries) > limit {
			entries = entries[:limit]
		}
	} else {
		entries, err = s.deps.History.History(c.Request.Context(), limit)
	}
	if err != nil {
		s.log.WithError(err).Error("Failed to read history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

func (s *Server) listStates(c *gin.Context) {
	states, err := s.deps.States.States(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to read watcher state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read watcher state"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"states": states})
}

func (s *Server) triggerCheck(c *gin.Context) {
	if s.deps.Checker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watcher not running"})
		return
	}
	force := c.Query("force") == "true"
	report, err := s.deps.Checker.Check(c.Request.Context(), force)
	if err != nil {
		s.log.WithError(err).Error("Manual check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	failed := make(map[string]string, len(report.Failed))
	for id, err := range report.Failed {
		failed[id] = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"processed": report.Processed,
		"upToDate":  report.UpToDate,
		"failed":    failed,
	})
}
