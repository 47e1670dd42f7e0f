// Package api exposes the Synermind HTTP surface: account signup and signin,
// the chat endpoint backed by the turn controller, mood logs, feedback, and
// per-user engagement metrics.
//
// Authentication is a bearer token issued at signin and held in an in-memory
// session registry; tokens do not survive a restart.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/synermind/synermind/internal/dispatch"
	"github.com/synermind/synermind/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// DefaultRequestTimeout bounds a single chat turn, including retries.
const DefaultRequestTimeout = 60 * time.Second

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr overrides the default listen address.
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the HTTP endpoints and owns the token registry.
type Server struct {
	addr       string
	st         store.Store
	dispatcher *dispatch.Dispatcher
	tokens     *tokenRegistry
	now        func() time.Time
}

// NewServer creates an API server around the store and turn controller.
func NewServer(st store.Store, dispatcher *dispatch.Dispatcher, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		if envAddr := os.Getenv("API_ADDR"); envAddr != "" {
			addr = envAddr
		} else {
			addr = DefaultAddr
		}
	}
	return &Server{
		addr:       addr,
		st:         st,
		dispatcher: dispatcher,
		tokens:     newTokenRegistry(),
		now:        time.Now,
	}
}

// Handler returns the routed handler, exposed separately so tests can drive
// it through httptest without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/signup", s.signupHandler)
	mux.HandleFunc("/signin", s.signinHandler)
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/moods", s.moodsHandler)
	mux.HandleFunc("/feedback", s.feedbackHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultRequestTimeout,
		WriteTimeout: DefaultRequestTimeout,
	}
	slog.Info("Server.Run: API listening", "addr", s.addr)
	return srv.ListenAndServe()
}
