/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: server.go
Description: HTTP API for the fuzzy engine. Serves model management, single and batch
evaluation, evaluation history and Prometheus metrics over gin, with a token bucket
rate limit in front of every route.
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kleascm/fuzzylogic/pkg/config"
	"github.com/kleascm/fuzzylogic/pkg/core"
	"github.com/kleascm/fuzzylogic/pkg/monitoring"
	"github.com/kleascm/fuzzylogic/pkg/recording"
	"github.com/kleascm/fuzzylogic/pkg/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ShutdownTimeout bounds a graceful shutdown
const ShutdownTimeout = 10 * time.Second

// History looks up recorded evaluations
type History interface {
	Query(ctx context.Context, model string, limit int) ([]recording.Entry, error)
}

// Options wires the optional parts of the server
type Options struct {
	Config  config.ServerConfig
	Store   *storage.Store
	History History
	Metrics *monitoring.Metrics
	Logger  *logrus.Logger
	Workers int // batch workers when a request does not ask; 0 means one per CPU
}

// Server is the HTTP API
type Server struct {
	engine  *core.Engine
	store   *storage.Store
	history History
	metrics *monitoring.Metrics
	logger  *logrus.Logger
	cfg     config.ServerConfig
	workers int

	router  *gin.Engine
	started time.Time
}

// New builds the router. The engine must already be initialized.
func New(engine *core.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetOutput(io.Discard)
	}
	s := &Server{
		engine:  engine,
		store:   opts.Store,
		history: opts.History,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		cfg:     opts.Config,
		workers: opts.Workers,
		started: time.Now(),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	if s.metrics != nil {
		router.Use(s.requestMetrics())
	}
	if s.cfg.RateLimit > 0 {
		burst := s.cfg.Burst
		if burst < 1 {
			burst = 1
		}
		router.Use(rateLimit(rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)))
	}
	s.registerRoutes(router)
	s.router = router
	return s
}

// registerRoutes mounts every endpoint:
//
//	GET    /health
//	GET    /metrics
//	GET    /api/v1/functions
//	GET    /api/v1/models
//	POST   /api/v1/models
//	GET    /api/v1/models/:name
//	DELETE /api/v1/models/:name
//	POST   /api/v1/models/:name/evaluate
//	POST   /api/v1/models/:name/batch
//	GET    /api/v1/models/:name/evaluations
func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	v1.GET("/functions", s.handleFunctions)
	v1.GET("/models", s.handleListModels)
	v1.POST("/models", s.handlePutModel)
	v1.GET("/models/:name", s.handleGetModel)
	v1.DELETE("/models/:name", s.handleDeleteModel)
	v1.POST("/models/:name/evaluate", s.handleEvaluate)
	v1.POST("/models/:name/batch", s.handleBatch)
	v1.GET("/models/:name/evaluations", s.handleHistory)
}

// Handler returns the router for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// LoadStored registers every model held in the store with the engine
func (s *Server) LoadStored(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	names, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, name := range names {
		m, err := s.store.Get(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("loading stored model %s: %w", name, err)
		}
		if _, err := s.engine.PutModel(m); err != nil {
			return 0, fmt.Errorf("registering stored model %s: %w", name, err)
		}
	}
	s.updateModelGauge()
	return len(names), nil
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.cfg.Addr).Info("HTTP API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	s.logger.Info("HTTP API shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) updateModelGauge() {
	if s.metrics != nil {
		s.metrics.SetModelsLoaded(s.engine.Models().Len())
	}
}
