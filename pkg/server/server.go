// Package server exposes the tool call codec over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/efortin/vllm-toolcall/pkg/metrics"
	"github.com/efortin/vllm-toolcall/pkg/tokens"
	"github.com/efortin/vllm-toolcall/pkg/toolcall"
)

const shutdownTimeout = 10 * time.Second

// Server serves the decode and encode API
type Server struct {
	config    *Config
	logger    *zap.Logger
	processor *toolcall.Processor
	counter   tokens.Counter
	router    *gin.Engine
}

// New creates a new Server. A nil counter falls back to token estimation.
func New(config *Config, logger *zap.Logger, counter tokens.Counter) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if counter == nil {
		counter = tokens.Estimator{}
	}

	recorder := metrics.NewRecorder()

	s := &Server{
		config: config,
		logger: logger,
		processor: toolcall.NewProcessor(
			toolcall.WithLogger(logger.Named("toolcall")),
			toolcall.WithRecorder(recorder),
		),
		counter: counter,
	}

	router := gin.New()
	router.Use(gin.Recovery(), recorder.GinMiddleware(), s.requestLogger())

	router.GET("/health", s.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1/tool_calls")
	v1.POST("/decode", s.DecodeHandler)
	v1.POST("/encode", s.EncodeHandler)

	s.router = router
	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("server started",
		zap.String("addr", srv.Addr),
		zap.String("default_dialect", s.config.DefaultDialect),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
