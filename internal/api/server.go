package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"spotCycleBot/internal/ports"
)

// StatusProvider exposes the orchestrator's read-only state. Implementations
// must never block on cycle execution.
type StatusProvider interface {
	IsRunning() bool
	HasPosition() bool
	LastCheck() time.Time
	Uptime() time.Duration
}

// Server is the read-only status surface. It only reads orchestrator state
// and never participates in cycle execution.
type Server struct {
	logger ports.Logger
	port   int

	mu       sync.RWMutex
	provider StatusProvider
}

// Config holds configuration for the status server.
type Config struct {
	Port   int
	Logger ports.Logger
}

// NewServer creates the status server. The provider may be attached later via
// SetProvider; until then the detail endpoint reports "not initialized".
func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for status server")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("port must be positive")
	}
	return &Server{logger: cfg.Logger, port: cfg.Port}, nil
}

// SetProvider attaches the orchestrator once it has been constructed.
func (s *Server) SetProvider(p StatusProvider) {
	s.mu.Lock()
	s.provider = p
	s.mu.Unlock()
}

func (s *Server) getProvider() StatusProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

// Handler builds the HTTP handler.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", s.handleHealth)
	router.GET("/status", s.handleStatus)
	return router
}

// handleHealth is the liveness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	provider := s.getProvider()
	active := provider != nil && provider.IsRunning()
	c.JSON(http.StatusOK, gin.H{
		"status":     "running",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"bot_active": active,
	})
}

// handleStatus is the detail endpoint.
func (s *Server) handleStatus(c *gin.Context) {
	provider := s.getProvider()
	if provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot not initialized"})
		return
	}

	var lastCheck interface{}
	if t := provider.LastCheck(); !t.IsZero() {
		lastCheck = t.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, gin.H{
		"is_running":     provider.IsRunning(),
		"has_position":   provider.HasPosition(),
		"last_check":     lastCheck,
		"uptime_seconds": provider.Uptime().Seconds(),
	})
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Status server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "Status server shutdown error", map[string]interface{}{"error": err.Error()})
		}
		return <-errCh
	}
}
