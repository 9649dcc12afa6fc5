package session

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/capture"
	"github.com/bryanchriswhite/AreaStream/internal/config"
	"github.com/bryanchriswhite/AreaStream/internal/window"
)

type fakeDisplays struct {
	mu     sync.Mutex
	bounds []image.Rectangle
}

func (d *fakeDisplays) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bounds)
}

func (d *fakeDisplays) Bounds(i int) image.Rectangle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bounds[i]
}

func (d *fakeDisplays) set(bounds ...image.Rectangle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bounds = bounds
}

func twoDisplays() *fakeDisplays {
	return &fakeDisplays{bounds: []image.Rectangle{
		image.Rect(0, 0, 1920, 1080),
		image.Rect(1920, 0, 3200, 1024),
	}}
}

type fakeEnumerator struct {
	mu      sync.Mutex
	entries []window.Entry
	err     error
}

func (e *fakeEnumerator) Enumerate() ([]window.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]window.Entry(nil), e.entries...), e.err
}

func (e *fakeEnumerator) set(entries ...window.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = entries
	e.err = nil
}

// fail makes the next enumerations return entries together with err
func (e *fakeEnumerator) fail(err error, entries ...window.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = entries
	e.err = err
}

type memSettings struct {
	mu      sync.Mutex
	cfg     config.Config
	updates int
}

func newMemSettings() *memSettings {
	return &memSettings{cfg: *config.Defaults()}
}

func (s *memSettings) Get() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.cfg
	return &cp
}

func (s *memSettings) Update(fn func(cfg *config.Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
	s.updates++
	return nil
}

// fakeFactory builds backends that fail with ErrTargetLost once their
// window is marked gone
type fakeFactory struct {
	mu    sync.Mutex
	gone  map[window.Handle]bool
	built []capture.BackendConfig
}

func (f *fakeFactory) registry() *capture.Registry {
	r := capture.NewRegistry()
	for _, k := range []capture.Kind{capture.KindScreen, capture.KindAllScreens, capture.KindWindow, capture.KindCustomArea} {
		for _, m := range []capture.Method{capture.MethodComposite, capture.MethodBlit} {
			r.Register(capture.BackendKey{Kind: k, Method: m}, f.build)
		}
	}
	return r
}

func (f *fakeFactory) build(cfg capture.BackendConfig) (capture.Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, cfg)
	return &fakeBackend{factory: f, cfg: cfg}, nil
}

func (f *fakeFactory) close(h window.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone == nil {
		f.gone = make(map[window.Handle]bool)
	}
	f.gone[h] = true
}

func (f *fakeFactory) isGone(h window.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gone[h]
}

type fakeBackend struct {
	factory *fakeFactory
	cfg     capture.BackendConfig
}

func (b *fakeBackend) CaptureFrame() (*capture.Frame, error) {
	t := b.cfg.Target
	if t.Kind == capture.KindWindow && b.factory.isGone(t.Window.Handle) {
		return nil, fmt.Errorf("window %#x: %w", uint32(t.Window.Handle), capture.ErrTargetLost)
	}
	return &capture.Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4)), CapturedAt: time.Now()}, nil
}

func (b *fakeBackend) MinInterval() time.Duration { return 0 }
func (b *fakeBackend) Close() error               { return nil }

// recordingPicker returns area and reports every call
type recordingPicker struct {
	area  image.Rectangle
	calls chan image.Rectangle
}

func newRecordingPicker(area image.Rectangle) *recordingPicker {
	return &recordingPicker{area: area, calls: make(chan image.Rectangle, 10)}
}

func (p *recordingPicker) PickArea(_ context.Context, current image.Rectangle) (image.Rectangle, error) {
	p.calls <- current
	return p.area, nil
}

var (
	chat = window.Entry{Handle: 0x10, Title: "Chat", ExecutablePath: "/usr/bin/chat"}
	game = window.Entry{Handle: 0x20, Title: "Game", ExecutablePath: "/usr/bin/game"}
)

type env struct {
	c        *Controller
	displays *fakeDisplays
	windows  *fakeEnumerator
	settings *memSettings
	factory  *fakeFactory
	picker   *recordingPicker
}

func newEnv(t *testing.T, configure func(cfg *config.Config)) *env {
	t.Helper()
	e := &env{
		displays: twoDisplays(),
		windows:  &fakeEnumerator{entries: []window.Entry{chat, game}},
		settings: newMemSettings(),
		factory:  &fakeFactory{},
		picker:   newRecordingPicker(image.Rect(100, 100, 740, 580)),
	}
	if configure != nil {
		e.settings.Update(configure)
	}

	c, err := New(Options{
		Registry:   e.factory.registry(),
		Displays:   e.displays,
		Enumerator: e.windows,
		Settings:   e.settings,
		Picker:     e.picker,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	e.c = c
	return e
}
