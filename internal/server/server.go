package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"diet-coach/internal/dietplan"
	"diet-coach/internal/extraction"
	"diet-coach/internal/metrics"
	"diet-coach/internal/shared"

	"go.uber.org/zap"
)

// Extractor runs the image-to-plan pipeline.
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (extraction.Result, error)
}

// PlanStore persists extracted plans.
type PlanStore interface {
	Save(ctx context.Context, clientID, createdBy string, plan *dietplan.WeeklyMealPlan) (*dietplan.StoredPlan, error)
	Get(ctx context.Context, id int64) (*dietplan.StoredPlan, error)
	ListByClient(ctx context.Context, clientID string) ([]dietplan.StoredPlan, error)
}

// UploadStore holds uploaded images until the extractor takes them over.
type UploadStore interface {
	Save(r io.Reader, mimeType string) (extraction.Image, error)
	Discard(images []extraction.Image) error
	Dir() string
}

// UsageStore records and reports model usage.
type UsageStore interface {
	RecordMeta(ctx context.Context, meta shared.CallMeta) error
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: all interfaces)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string

	Extractor Extractor
	Plans     PlanStore
	Uploads   UploadStore
	// Usage is optional; without it usage is neither recorded nor reported.
	Usage UsageStore
	Auth  *Authenticator

	// MaxUploadImages caps the files accepted by one upload (default: 10).
	MaxUploadImages int
	// MaxUploadBytes caps a single file (default: 32 MiB).
	MaxUploadBytes int64
	// ExtractTimeout bounds one extraction; zero leaves only the request context.
	ExtractTimeout time.Duration
	// DataDir is reported on by the health endpoint.
	DataDir string

	Logger *zap.Logger
}

// Server is the diet-coach HTTP API.
type Server struct {
	httpServer *http.Server
	cfg        Config
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Extractor == nil || cfg.Plans == nil || cfg.Uploads == nil {
		return nil, errors.New("server requires an extractor, a plan store and an upload store")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.MaxUploadImages <= 0 {
		cfg.MaxUploadImages = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.Auth == nil {
		cfg.Auth = NewAuthenticator("")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{cfg: cfg, logger: cfg.Logger}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves HTTP until ctx is cancelled or the listener fails, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
