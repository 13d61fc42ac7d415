// Package health serves the liveness endpoint the worker platform
// probes. The platform only checks GET / for a 200, but the payload
// carries enough state to eyeball the bot from a browser.
package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hasan199191/crobot/internal/logging"
)

// Status is the snapshot rendered at the endpoint. The provider is
// called per request so the numbers are always current.
type Status struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	LoggedIn      bool      `json:"logged_in"`
	PostsToday    int       `json:"posts_today"`
	CommentsToday int       `json:"comments_today"`
	LastPost      time.Time `json:"last_post,omitempty"`
	NextAction    time.Time `json:"next_action,omitempty"`
}

// StatusFunc supplies the current snapshot.
type StatusFunc func() Status

// Server is the health HTTP server.
type Server struct {
	addr   string
	status StatusFunc
	start  time.Time
	srv    *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, status StatusFunc) *Server {
	s := &Server{addr: addr, status: status, start: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleStatus)
	r.Get("/healthz", s.handleStatus)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := Status{Status: "ok"}
	if s.status != nil {
		st = s.status()
		if st.Status == "" {
			st.Status = "ok"
		}
	}
	st.Uptime = time.Since(s.start).Round(time.Second).String()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		logging.Health("encode status: %v", err)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	logging.Health("health endpoint listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
