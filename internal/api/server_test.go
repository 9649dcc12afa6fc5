package api

import (
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/capture"
	"github.com/bryanchriswhite/AreaStream/internal/config"
	"github.com/bryanchriswhite/AreaStream/internal/scale"
	"github.com/bryanchriswhite/AreaStream/internal/session"
	"github.com/gorilla/websocket"
)

// fakeController records the calls the handlers make
type fakeController struct {
	mu        sync.Mutex
	targets   []session.TargetInfo
	selection int
	refreshes int
	area      image.Rectangle
	methods   map[capture.Kind]capture.Method
	fps       int
	mode      scale.Mode
	cursor    bool
	taskbar   bool
	events    chan session.Event
}

func newFakeController() *fakeController {
	return &fakeController{
		targets: []session.TargetInfo{
			{Index: 0, Name: "Primary screen (1920 x 1080)", Kind: "screen"},
			{Index: 1, Name: "Custom area", Kind: "custom-area"},
			{Index: 2, Name: "Game", Kind: "window", Key: "/usr/bin/game|Game"},
		},
		methods: make(map[capture.Kind]capture.Method),
		fps:     30,
		events:  make(chan session.Event, 10),
	}
}

func (c *fakeController) Targets() []session.TargetInfo { return c.targets }

func (c *fakeController) RefreshTargetList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes++
	return nil
}

func (c *fakeController) SetTargetByIndex(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.targets) {
		return fmt.Errorf("%w: %d", session.ErrIndexOutOfRange, i)
	}
	c.selection = i
	return nil
}

func (c *fakeController) SetCustomArea(r image.Rectangle) error {
	c.area = r
	return nil
}

func (c *fakeController) SetMethod(kind capture.Kind, m capture.Method) error {
	if kind == capture.KindCustomArea {
		return capture.ErrFixedMethod
	}
	c.methods[kind] = m
	return nil
}

func (c *fakeController) SetFrameRate(fps int) error {
	if fps < 1 || fps > 240 {
		return fmt.Errorf("frame rate %d out of range", fps)
	}
	c.fps = fps
	return nil
}

func (c *fakeController) SetScaleMode(m scale.Mode) { c.mode = m }
func (c *fakeController) SetCaptureCursor(on bool)  { c.cursor = on }
func (c *fakeController) SetHideTaskbar(on bool)    { c.taskbar = on }

func (c *fakeController) CapabilitySupported(want capture.Capability) bool {
	return want == capture.CapabilityCaptureCursor
}

func (c *fakeController) Status() session.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return session.Status{
		Selection: c.selection,
		Name:      c.targets[c.selection].Name,
		FrameRate: c.fps,
	}
}

func (c *fakeController) Subscribe() chan session.Event      { return c.events }
func (c *fakeController) Unsubscribe(ch chan session.Event) {}

type fakeSettings struct{}

func (fakeSettings) Get() *config.Config { return config.Defaults() }

func newTestServer() (*fakeController, http.Handler) {
	ctrl := newFakeController()
	return ctrl, NewServer(ctrl, fakeSettings{}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, h := newTestServer()
	rec := do(t, h, "GET", "/api/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" || body["version"] != Version {
		t.Errorf("unexpected body %v", body)
	}
}

func TestGetTargets(t *testing.T) {
	_, h := newTestServer()
	rec := do(t, h, "GET", "/api/targets", "")

	var body struct {
		Selection int                  `json:"selection"`
		Targets   []session.TargetInfo `json:"targets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Targets) != 3 || body.Targets[2].Key != "/usr/bin/game|Game" {
		t.Errorf("unexpected targets %+v", body.Targets)
	}
}

func TestRefreshTargets(t *testing.T) {
	ctrl, h := newTestServer()
	if rec := do(t, h, "POST", "/api/targets/refresh", ""); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ctrl.refreshes != 1 {
		t.Errorf("refreshes = %d", ctrl.refreshes)
	}
}

func TestSetTarget(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"valid", `{"index": 2}`, http.StatusOK},
		{"out of range", `{"index": 9}`, http.StatusNotFound},
		{"missing index", `{}`, http.StatusBadRequest},
		{"bad json", `{"index":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer()
			if rec := do(t, h, "PUT", "/api/target", tt.body); rec.Code != tt.code {
				t.Errorf("status %d, want %d: %s", rec.Code, tt.code, rec.Body)
			}
		})
	}
}

func TestSetArea(t *testing.T) {
	ctrl, h := newTestServer()

	rec := do(t, h, "PUT", "/api/target/area", `{"x": 10, "y": 20, "width": 300, "height": 200}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if ctrl.area != image.Rect(10, 20, 310, 220) {
		t.Errorf("area = %v", ctrl.area)
	}

	if rec := do(t, h, "PUT", "/api/target/area", `{"x": 10, "width": 0, "height": 200}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty area status %d", rec.Code)
	}
}

func TestSetMethod(t *testing.T) {
	ctrl, h := newTestServer()

	if rec := do(t, h, "PUT", "/api/method", `{"kind": "window", "method": "blit"}`); rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if ctrl.methods[capture.KindWindow] != capture.MethodBlit {
		t.Errorf("methods = %v", ctrl.methods)
	}

	tests := []struct {
		body string
		code int
	}{
		{`{"kind": "custom-area", "method": "blit"}`, http.StatusConflict},
		{`{"kind": "monitor", "method": "blit"}`, http.StatusBadRequest},
		{`{"kind": "screen", "method": "dxgi"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(t, h, "PUT", "/api/method", tt.body); rec.Code != tt.code {
			t.Errorf("%s: status %d, want %d", tt.body, rec.Code, tt.code)
		}
	}
}

func TestSetFrameRateAndScale(t *testing.T) {
	ctrl, h := newTestServer()

	if rec := do(t, h, "PUT", "/api/framerate", `{"fps": 60}`); rec.Code != http.StatusOK || ctrl.fps != 60 {
		t.Errorf("framerate: status %d fps %d", rec.Code, ctrl.fps)
	}
	if rec := do(t, h, "PUT", "/api/framerate", `{"fps": 0}`); rec.Code != http.StatusBadRequest {
		t.Errorf("zero framerate status %d", rec.Code)
	}
	if rec := do(t, h, "PUT", "/api/scale", `{"mode": "fit"}`); rec.Code != http.StatusOK || ctrl.mode != scale.ModeFit {
		t.Errorf("scale: status %d mode %v", rec.Code, ctrl.mode)
	}
	if rec := do(t, h, "PUT", "/api/scale", `{"mode": "75%"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad scale status %d", rec.Code)
	}
}

func TestSetOptionsReturnsCapabilities(t *testing.T) {
	ctrl, h := newTestServer()
	ctrl.cursor = true

	rec := do(t, h, "PUT", "/api/options", `{"hide_taskbar": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !ctrl.taskbar || !ctrl.cursor {
		t.Errorf("options not applied: taskbar %v cursor %v", ctrl.taskbar, ctrl.cursor)
	}

	var caps map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&caps); err != nil {
		t.Fatal(err)
	}
	if !caps["capture_cursor"] || caps["hide_taskbar"] {
		t.Errorf("capabilities = %v", caps)
	}
}

func TestIndexAndNotFound(t *testing.T) {
	_, h := newTestServer()
	if rec := do(t, h, "GET", "/", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "AreaStream") {
		t.Errorf("index status %d", rec.Code)
	}
	if rec := do(t, h, "GET", "/nothing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status %d", rec.Code)
	}
}

func TestEventsStream(t *testing.T) {
	ctrl, h := newTestServer()
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first session.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Type != session.EventSelected || first.Name != "Primary screen (1920 x 1080)" {
		t.Errorf("unexpected initial event %+v", first)
	}

	ctrl.events <- session.Event{Type: session.EventAborted, Selection: 0, Error: "target lost"}
	var next session.Event
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next.Type != session.EventAborted || next.Error != "target lost" {
		t.Errorf("unexpected event %+v", next)
	}
}
