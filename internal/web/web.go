package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"epdpage/internal/battery"
	"epdpage/internal/config"
	"epdpage/internal/epd"
	appLog "epdpage/internal/log"
	"epdpage/internal/pipeline"
)

// batteryCacheTTL bounds how often the gauge is read on behalf of HTTP
// clients.
const batteryCacheTTL = 30 * time.Second

// Runner is the part of the pipeline the API drives.
type Runner interface {
	Run(ctx context.Context) error
	Clear() error
	Status() pipeline.Status
	Geometry() pipeline.Geometry
}

// Previewer renders what the panel currently shows.
type Previewer interface {
	WritePNG(w io.Writer) error
	Refreshed() time.Time
}

// Server provides the HTTP API: health, status, manual refresh and the
// preview image.
type Server struct {
	cfg     *config.Config
	runner  Runner
	preview Previewer
	battery battery.Reader
	mux     *http.ServeMux

	// In-memory cache for battery status. This avoids hitting I2C on every
	// single HTTP call.
	batteryMu    sync.RWMutex
	batteryCache *batteryCache
}

// batteryCache holds the last known battery status and its timestamp.
type batteryCache struct {
	status    battery.Status
	updatedAt time.Time
}

// NewServer constructs a new Server. preview and br may be nil.
func NewServer(cfg *config.Config, runner Runner, preview Previewer, br battery.Reader) *Server {
	s := &Server{
		cfg:     cfg,
		runner:  runner,
		preview: preview,
		battery: br,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="epdpage", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/battery", s.handleBattery)
	s.mux.HandleFunc("GET /api/panels", s.handlePanels)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/clear", s.handleClear)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusResponse is the JSON response shape for /api/status.
type statusResponse struct {
	Geometry  pipeline.Geometry `json:"geometry"`
	Run       pipeline.Status   `json:"run"`
	Battery   *battery.Status   `json:"battery,omitempty"`
	Refreshed *time.Time        `json:"refreshed,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Geometry: s.runner.Geometry(),
		Run:      s.runner.Status(),
	}
	if st, err := s.readBattery(r.Context()); err == nil {
		resp.Battery = &st
	}
	if s.preview != nil {
		if t := s.preview.Refreshed(); !t.IsZero() {
			resp.Refreshed = &t
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh runs the pipeline synchronously and reports the result.
// A run already in progress answers 409.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.runner.Run(r.Context())
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeJSON(w, http.StatusBadGateway, s.runner.Status())
	default:
		writeJSON(w, http.StatusOK, s.runner.Status())
	}
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	err := s.runner.Clear()
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errors.ErrUnsupported):
		writeError(w, http.StatusNotImplemented, "controller cannot clear the screen")
	case err != nil:
		appLog.Error("clear failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleBattery exposes current battery status (percent, voltage).
func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	st, err := s.readBattery(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePanels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, epd.Names())
}

// handlePreview serves what the panel shows as a PNG. Only drivers that can
// read their frame back provide it.
func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	if s.preview == nil {
		writeError(w, http.StatusNotFound, "preview not available for this driver")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.preview.WritePNG(w); err != nil {
		appLog.Error("preview encode failed", err)
	}
}

var errNoBattery = errors.New("battery reader unavailable")

// readBattery returns a cached reading younger than batteryCacheTTL or
// reads the gauge.
func (s *Server) readBattery(ctx context.Context) (battery.Status, error) {
	if s.battery == nil {
		return battery.Status{}, errNoBattery
	}

	now := time.Now()
	s.batteryMu.RLock()
	bc := s.batteryCache
	s.batteryMu.RUnlock()
	if bc != nil && now.Sub(bc.updatedAt) < batteryCacheTTL {
		return bc.status, nil
	}

	st, err := s.battery.Read(ctx)
	if err != nil {
		appLog.Error("battery read failed", err)
		return battery.Status{}, err
	}

	s.batteryMu.Lock()
	s.batteryCache = &batteryCache{status: st, updatedAt: now}
	s.batteryMu.Unlock()
	return st, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
