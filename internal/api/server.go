package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/capture"
	"github.com/bryanchriswhite/AreaStream/internal/config"
	"github.com/bryanchriswhite/AreaStream/internal/logger"
	"github.com/bryanchriswhite/AreaStream/internal/scale"
	"github.com/bryanchriswhite/AreaStream/internal/session"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// Controller is the capture session driven by the API
type Controller interface {
	Targets() []session.TargetInfo
	RefreshTargetList() []string
	SetTargetByIndex(i int) error
	SetCustomArea(r image.Rectangle) error
	SetMethod(kind capture.Kind, m capture.Method) error
	SetFrameRate(fps int) error
	SetScaleMode(m scale.Mode)
	SetCaptureCursor(on bool)
	SetHideTaskbar(on bool)
	CapabilitySupported(c capture.Capability) bool
	Status() session.Status
	Subscribe() chan session.Event
	Unsubscribe(ch chan session.Event)
}

// Settings exposes the persisted configuration
type Settings interface {
	Get() *config.Config
}

// Server represents the HTTP control server
type Server struct {
	router   *mux.Router
	ctrl     Controller
	settings Settings
	upgrader websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(ctrl Controller, settings Settings) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		ctrl:     ctrl,
		settings: settings,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Local control only
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Target selection
	api.HandleFunc("/targets", s.handleGetTargets).Methods("GET")
	api.HandleFunc("/targets/refresh", s.handleRefreshTargets).Methods("POST")
	api.HandleFunc("/target", s.handleSetTarget).Methods("PUT")
	api.HandleFunc("/target/area", s.handleSetArea).Methods("PUT")

	// Capture settings
	api.HandleFunc("/method", s.handleSetMethod).Methods("PUT")
	api.HandleFunc("/framerate", s.handleSetFrameRate).Methods("PUT")
	api.HandleFunc("/scale", s.handleSetScale).Methods("PUT")
	api.HandleFunc("/options", s.handleSetOptions).Methods("PUT")
	api.HandleFunc("/capabilities", s.handleCapabilities).Methods("GET")

	// Session state
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/events", s.handleEvents)
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the root handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on port until ctx is done
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithComponent("api").Info().
			Str("addr", "http://localhost"+srv.Addr).
			Msg("Starting control server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown control server: %w", err)
		}
		return nil
	}
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, map[string]string{"status": "success"})
}

// writeError maps session and capture errors to status codes
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrIndexOutOfRange):
		code = http.StatusNotFound
	case errors.Is(err, capture.ErrFixedMethod):
		code = http.StatusConflict
	case errors.Is(err, capture.ErrNoDisplays):
		code = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), code)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// HTTP Handlers

func (s *Server) handleGetTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"selection": s.ctrl.Status().Selection,
		"targets":   s.ctrl.Targets(),
	})
}

func (s *Server) handleRefreshTargets(w http.ResponseWriter, r *http.Request) {
	s.ctrl.RefreshTargetList()
	s.handleGetTargets(w, r)
}

func (s *Server) handleSetTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Index == nil {
		http.Error(w, "index is required", http.StatusBadRequest)
		return
	}

	if err := s.ctrl.SetTargetByIndex(*req.Index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.ctrl.Status())
}

func (s *Server) handleSetArea(w http.ResponseWriter, r *http.Request) {
	var area config.Area
	if !decode(w, r, &area) {
		return
	}
	if area.Empty() {
		http.Error(w, "width and height must be positive", http.StatusBadRequest)
		return
	}

	rect := image.Rect(area.X, area.Y, area.X+area.Width, area.Y+area.Height)
	if err := s.ctrl.SetCustomArea(rect); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleSetMethod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind   string `json:"kind"`
		Method string `json:"method"`
	}
	if !decode(w, r, &req) {
		return
	}

	kind, err := capture.ParseKind(req.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	method, err := capture.ParseMethod(req.Method)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.ctrl.SetMethod(kind, method); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleSetFrameRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FPS int `json:"fps"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := s.ctrl.SetFrameRate(req.FPS); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleSetScale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decode(w, r, &req) {
		return
	}

	mode, err := scale.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.ctrl.SetScaleMode(mode)
	writeSuccess(w)
}

func (s *Server) handleSetOptions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CaptureCursor *bool `json:"capture_cursor"`
		HideTaskbar   *bool `json:"hide_taskbar"`
	}
	if !decode(w, r, &req) {
		return
	}

	if req.CaptureCursor != nil {
		s.ctrl.SetCaptureCursor(*req.CaptureCursor)
	}
	if req.HideTaskbar != nil {
		s.ctrl.SetHideTaskbar(*req.HideTaskbar)
	}
	s.handleCapabilities(w, r)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	caps := make(map[string]bool)
	for _, c := range []capture.Capability{capture.CapabilityCaptureCursor, capture.CapabilityHideTaskbar} {
		caps[c.String()] = s.ctrl.CapabilitySupported(c)
	}
	writeJSON(w, caps)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ctrl.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events := s.ctrl.Subscribe()
	defer s.ctrl.Unsubscribe(events)

	// Send the current selection first
	st := s.ctrl.Status()
	initial := session.Event{Type: session.EventSelected, Selection: st.Selection, Name: st.Name, At: time.Now()}
	if err := conn.WriteJSON(initial); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("WebSocket write failed")
		return
	}

	// Reading detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.WithComponent("api").Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.settings.Get())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>AreaStream</title>
    <style>
        body { font-family: sans-serif; max-width: 800px; margin: 50px auto; color: #333; }
        code { background: #f5f5f5; padding: 2px 6px; border-radius: 3px; }
    </style>
</head>
<body>
    <h1>AreaStream</h1>
    <p>Capture control server is running.</p>
    <ul>
        <li><a href="/api/health">/api/health</a> - Server health check</li>
        <li><a href="/api/targets">/api/targets</a> - Capture targets</li>
        <li><a href="/api/status">/api/status</a> - Capture status</li>
        <li><a href="/api/capabilities">/api/capabilities</a> - Capabilities of the current method</li>
    </ul>
    <p>Select a target with <code>curl -X PUT -d '{"index":0}' localhost:8080/api/target</code>.</p>
</body>
</html>`

	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
		return
	}
	http.NotFound(w, r)
}
