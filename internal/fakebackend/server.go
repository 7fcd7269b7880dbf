// Package fakebackend is an in-memory implementation of the outfit backend
// HTTP API. It backs the integration tests and `outfitctl mock-server`.
//
// Wardrobe descriptions and outfit suggestions are canned and
// deterministic; no image analysis is performed.
package fakebackend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	// DefaultTokenTTL matches the backend's JWT lifetime.
	DefaultTokenTTL = 24 * time.Hour

	defaultSecret = "outfit-mock-secret"
)

// Server holds users and wardrobe items in memory.
type Server struct {
	secret   []byte
	tokenTTL time.Duration
	origins  []string
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	users      map[int64]*user
	byEmail    map[string]int64
	items      map[int64]*item
	nextUserID int64
	nextItemID int64
	generation int

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithSecret sets the HS256 signing secret.
func WithSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithLogger enables request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOrigins sets the CORS allowed origins.
func WithOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Server with an empty user table.
func New(opts ...Option) *Server {
	s := &Server{
		secret:     []byte(defaultSecret),
		tokenTTL:   DefaultTokenTTL,
		origins:    []string{"*"},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		users:      make(map[int64]*user),
		byEmail:    make(map[string]int64),
		items:      make(map[int64]*item),
		nextUserID: 1,
		nextItemID: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logging(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(s.origins))

	r.Get("/api/health", s.handleHealth)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/auth/profile", s.handleGetProfile)
		r.Put("/auth/profile", s.handleUpdateProfile)

		r.Route("/wardrobe", func(r chi.Router) {
			r.Get("/", s.handleListWardrobe)
			r.Post("/", s.handleUploadWardrobe)
			r.Get("/{id}", s.handleGetWardrobeItem)
			r.Delete("/{id}", s.handleDeleteWardrobeItem)
			r.Get("/{id}/file", s.handleWardrobeFile)
		})

		r.Post("/outfit", s.handleSuggest)
	})

	return r
}

// RevokeTokens invalidates every token issued so far. Requests carrying
// one get 401 from then on.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mock backend listening", slog.String("addr", addr))
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("mock backend stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   s.now().UTC().Format("2006-01-02T15:04:05.000000"),
	})
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
