package capture

import (
	"fmt"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/window"
)

// Backend produces frames for one target with one method. A (nil, nil)
// return means no new frame is available this tick. A wrapped ErrTargetLost
// means the target is gone for good.
type Backend interface {
	CaptureFrame() (*Frame, error)

	// MinInterval is the shortest interval the backend can sustain between
	// frames. Zero means no floor.
	MinInterval() time.Duration

	// Close releases every OS resource held by the backend
	Close() error
}

// BackendKey selects a constructor in a Registry
type BackendKey struct {
	Kind   Kind
	Method Method
}

func (k BackendKey) String() string {
	return k.Kind.String() + "/" + k.Method.String()
}

// BackendConfig is what a constructor needs to build a backend.
type BackendConfig struct {
	Target        Target
	Method        Method
	CaptureCursor bool // effective, already negotiated
	HideTaskbar   bool // effective, already negotiated
	Displays      Displays

	// OnReconfigure is called from CaptureFrame when the backend notices the
	// screen layout changed. It must not block.
	OnReconfigure func()
}

// spec is the comparable part of a BackendConfig. A backend is rebuilt
// whenever it changes.
type spec struct {
	key           BackendKey
	screen        int
	handle        window.Handle
	captureCursor bool
	hideTaskbar   bool
}

func (c BackendConfig) spec() spec {
	s := spec{
		key:           BackendKey{Kind: c.Target.Kind, Method: c.Method},
		captureCursor: c.CaptureCursor,
		hideTaskbar:   c.HideTaskbar,
	}
	switch c.Target.Kind {
	case KindScreen:
		s.screen = c.Target.Screen
	case KindWindow:
		s.handle = c.Target.Window.Handle
	}
	return s
}

// Constructor builds a backend. It may fail with ErrTargetLost when the
// target is already gone.
type Constructor func(cfg BackendConfig) (Backend, error)

// Registry maps (kind, method) pairs to backend constructors
type Registry struct {
	constructors map[BackendKey]Constructor
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[BackendKey]Constructor)}
}

// DefaultRegistry returns a registry with the X11 and screenshot backends
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(BackendKey{KindScreen, MethodComposite}, newRootCapturer)
	r.Register(BackendKey{KindAllScreens, MethodComposite}, newRootCapturer)
	r.Register(BackendKey{KindScreen, MethodBlit}, newBlitCapturer)
	r.Register(BackendKey{KindAllScreens, MethodBlit}, newBlitCapturer)
	r.Register(BackendKey{KindWindow, MethodComposite}, newCompositeWindowCapturer)
	r.Register(BackendKey{KindWindow, MethodBlit}, newDirectWindowCapturer)
	r.Register(BackendKey{KindCustomArea, MethodComposite}, newAreaCapturer)
	return r
}

// Register adds or replaces the constructor for key
func (r *Registry) Register(key BackendKey, c Constructor) {
	r.constructors[key] = c
}

// Build constructs the backend for cfg's target kind and method
func (r *Registry) Build(cfg BackendConfig) (Backend, error) {
	key := BackendKey{Kind: cfg.Target.Kind, Method: cfg.Method}
	c, ok := r.constructors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, key)
	}
	return c(cfg)
}
