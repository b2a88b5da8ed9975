package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kitten-tts-server/internal/cache"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
)

// Server serves the TTS API. It owns nothing but the router; the model
// cache is created by the caller and outlives individual requests.
type Server struct {
	config  Config
	models  *cache.ModelCache
	router  *gin.Engine
	handler http.Handler
	logger  *log.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger replaces the default "http" logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New builds the router for models.
func New(config Config, models *cache.ModelCache, opts ...Option) (*Server, error) {
	if models == nil {
		return nil, errors.New("model cache is required")
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = DefaultConfig().CORSOrigins
	}

	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: config,
		models: models,
		logger: log.WithPrefix("http"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = gin.New()
	s.router.Use(recovery(s.logger), requestLogger(s.logger), corsMiddleware(config.CORSOrigins))
	s.router.GET("/models", s.listModels)
	s.router.GET("/voices", s.listVoices)
	s.router.GET("/tts", s.synthesize)

	s.handler = gzhttp.GzipHandler(s.router)
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", ln.Addr().String(), "origins", s.config.CORSOrigins)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shut down cleanly: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// SetLogLevel changes the level of the request logger.
func (s *Server) SetLogLevel(level log.Level) {
	s.logger.SetLevel(level)
}
