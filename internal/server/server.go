package server

import (
	"context"
	"net"
	"net/http"
	"time"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config carries everything the HTTP server needs. The session store and
// evidence store are constructed inside New and owned by the server; no
// handler reaches for ambient globals.
type Config struct {
	Addr          string // e.g. ":8080"
	Build         BuildInfo
	Auth          AuthConfig
	UploadDir     string
	Archiver      *Archiver     // nil when archiving is not configured
	SweepInterval time.Duration // 0 disables the session janitor
}

type Server struct {
	httpServer *http.Server
	store      *SessionStore
	evidence   *EvidenceStore
	cancel     context.CancelFunc
}

// New wires routes, middleware, and the stores. The evidence root is not
// created here; the upload handler ensures it exists before accepting
// bytes, and the health check reports on it.
func New(cfg Config) (*Server, error) {
	store := NewSessionStore(cfg.Auth.ttl())

	evidence, err := NewEvidenceStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.SweepInterval > 0 {
		store.StartJanitor(ctx, cfg.SweepInterval)
	}

	loginLimit := newRateLimiter(10, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/home", http.StatusFound)
	})

	// Login, logout, and the session lifecycle
	mux.HandleFunc("GET /login", loginPageHandler)
	mux.Handle("POST /login", loginLimit.middleware(cfg.Auth.loginHandler(store)))
	mux.HandleFunc("GET /logout", cfg.Auth.logoutHandler(store))

	// Protected pages and the upload path
	mux.Handle("GET /home", cfg.Auth.requireAuth(store, http.HandlerFunc(homePageHandler)))
	mux.Handle("GET /evidencia", cfg.Auth.requireAuth(store, http.HandlerFunc(evidencePageHandler)))
	mux.Handle("POST /evidencia", cfg.Auth.requireAuth(store, cfg.uploadEvidenceHandler(evidence, cfg.Archiver)))

	// Operational endpoints
	mux.HandleFunc("GET /health", cfg.healthHandler(evidence, cfg.Archiver))
	mux.HandleFunc("GET /metrics", NewPrometheusExporter(cfg.Build.Version).Handler())

	// Wrap middleware: requestID -> logging -> security headers -> mux
	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		httpServer: s,
		store:      store,
		evidence:   evidence,
		cancel:     cancel,
	}, nil
}

// Handler exposes the fully wired handler chain for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Sessions exposes the session store for tests.
func (s *Server) Sessions() *SessionStore {
	return s.store
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.httpServer.Shutdown(ctx)
}
