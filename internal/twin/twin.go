// Package twin is a local stand-in for the reqres.in demo API.
//
// It serves the same routes and payloads the default scenarios exercise,
// including the ?delay=N query parameter, so the API suite can run offline
// and in tests against an httptest server.
package twin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// APIKeyHeader is the header reqres.in reads its free-tier key from.
const APIKeyHeader = "X-Api-Key"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDelayUnit scales the ?delay=N parameter. Defaults to one second.
func WithDelayUnit(d time.Duration) Option {
	return func(s *Server) { s.delayUnit = d }
}

// WithAPIKey requires every /api request to carry key in X-Api-Key.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithSigningKey sets the HMAC key used for issued tokens.
func WithSigningKey(key []byte) Option {
	return func(s *Server) { s.tokens = newTokenIssuer(key) }
}

// WithClock sets the time source for createdAt and updatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is the reqres twin.
type Server struct {
	router    chi.Router
	store     *Store
	tokens    *tokenIssuer
	logger    *slog.Logger
	delayUnit time.Duration
	apiKey    string
	now       func() time.Time

	mu     sync.Mutex
	nextID int
}

// New builds a twin with the reqres seed data.
func New(opts ...Option) *Server {
	s := &Server{
		store:     NewStore(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		delayUnit: time.Second,
		now:       time.Now,
		nextID:    100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokens == nil {
		s.tokens = newTokenIssuer([]byte("conformer-twin"))
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLog)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(s.delay)
		s.routes(r)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler so the twin can back an httptest server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Store exposes the twin's data.
func (s *Server) Store() *Store {
	return s.store
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
// ready, if non-nil, receives the bound address once listening.
func (s *Server) Serve(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting twin", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down twin")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Debug("request",
			"id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get(APIKeyHeader) != s.apiKey {
			writeError(w, http.StatusUnauthorized, "Missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// delay holds the response for ?delay=N units. A client that gives up
// early releases the handler.
func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.URL.Query().Get("delay"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid delay")
				return
			}
			t := time.NewTimer(time.Duration(n) * s.delayUnit)
			defer t.Stop()
			select {
			case <-r.Context().Done():
				return
			case <-t.C:
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
