package fakebackend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDKey contextKey = "user_id"

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// logging logs one line per request. The client's X-Request-ID is
// preferred over the one chi generates.
func logging(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			reqID := r.Header.Get(chimiddleware.RequestIDHeader)
			if reqID == "" {
				reqID = chimiddleware.GetReqID(r.Context())
			}

			next.ServeHTTP(wrapped, r)

			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", reqID),
				slog.String("user_agent", r.UserAgent()),
			)
		})
	}
}

func corsHandler(origins []string) func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
}

// claims is the token payload: {user_id, exp} plus the revocation
// generation it was issued under.
type claims struct {
	UserID     int64 `json:"user_id"`
	Generation int   `json:"gen"`
	jwt.RegisteredClaims
}

func (s *Server) issueToken(userID int64) (string, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	c := claims{
		UserID:     userID,
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// requireToken rejects requests without a valid bearer token with 401.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Token missing")
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Invalid token format")
			return
		}

		var c claims
		_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "Token expired")
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		s.mu.Lock()
		_, found := s.users[c.UserID]
		revoked := c.Generation != s.generation
		s.mu.Unlock()

		if revoked {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if !found {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, c.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUserID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}
