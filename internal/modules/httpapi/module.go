// Package httpapi serves read-only player status and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

// DefaultListen is used when no listen address is configured.
const DefaultListen = "127.0.0.1:8780"

// Source exposes the player node's current view.
type Source interface {
	State() lu.PlayerState
	Playlists() lu.PlaylistListReply
	Playlist(name string) (lu.PlaylistReply, bool)
}

// Config configures the HTTP module.
type Config struct {
	Listen string
}

// Module runs the status HTTP server.
type Module struct {
	log    *zap.Logger
	source Source
	config Config
}

// NewModule creates the HTTP module.
func NewModule(log *zap.Logger, source Source, cfg Config) (*Module, error) {
	if source == nil {
		return nil, errors.New("http module requires a player")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = DefaultListen
	}
	return &Module{log: log, source: source, config: cfg}, nil
}

// Router builds the route table.
func (m *Module) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(m.logRequests)

	r.HandleFunc("/healthz", m.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/state", m.state).Methods(http.MethodGet)
	api.HandleFunc("/playlists", m.playlists).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{name}", m.playlist).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (m *Module) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.config.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	m.log.Info("http api listening", zap.String("listen", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (m *Module) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (m *Module) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.source.State())
}

func (m *Module) playlists(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.source.Playlists())
}

func (m *Module) playlist(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	pl, ok := m.source.Playlist(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, lu.ReplyError{Code: lu.CodeNotFound, Message: "playlist not found"})
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (m *Module) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		m.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
