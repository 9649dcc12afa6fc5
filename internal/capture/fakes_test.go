package capture

import (
	"image"
	"sync"
	"time"
)

type fakeDisplays struct {
	bounds []image.Rectangle
}

func (d *fakeDisplays) Count() int                   { return len(d.bounds) }
func (d *fakeDisplays) Bounds(i int) image.Rectangle { return d.bounds[i] }

func twoDisplays() *fakeDisplays {
	return &fakeDisplays{bounds: []image.Rectangle{
		image.Rect(0, 0, 1920, 1080),
		image.Rect(1920, 0, 3200, 1024),
	}}
}

// fakeBackend returns solid frames until lost is set
type fakeBackend struct {
	mu       sync.Mutex
	cfg      BackendConfig
	size     image.Point
	floor    time.Duration
	lost     bool
	empty    bool
	pulls    int
	closed   bool
	closeErr error
}

func (b *fakeBackend) CaptureFrame() (*Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pulls++
	if b.lost {
		return nil, lost(errFakeGone)
	}
	if b.empty {
		return nil, nil
	}
	return &Frame{Image: image.NewRGBA(image.Rectangle{Max: b.size}), CapturedAt: time.Now()}, nil
}

func (b *fakeBackend) MinInterval() time.Duration { return b.floor }

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return b.closeErr
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errFakeGone = fakeError("BadWindow")

// fakeFactory records every backend it builds
type fakeFactory struct {
	mu       sync.Mutex
	built    []*fakeBackend
	floor    time.Duration
	buildErr error
}

func (f *fakeFactory) construct(cfg BackendConfig) (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	b := &fakeBackend{cfg: cfg, size: image.Pt(640, 480), floor: f.floor}
	f.built = append(f.built, b)
	return b, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func (f *fakeFactory) last() *fakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.built) == 0 {
		return nil
	}
	return f.built[len(f.built)-1]
}

func (f *fakeFactory) registry() *Registry {
	r := NewRegistry()
	for _, kind := range []Kind{KindScreen, KindAllScreens, KindWindow} {
		r.Register(BackendKey{kind, MethodComposite}, f.construct)
		r.Register(BackendKey{kind, MethodBlit}, f.construct)
	}
	r.Register(BackendKey{KindCustomArea, MethodComposite}, f.construct)
	return r
}
