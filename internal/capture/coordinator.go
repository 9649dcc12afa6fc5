package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/logger"
)

// Status is the lifecycle state of a Coordinator
type Status int

const (
	// StatusIdle has no backend. One is built on the next pull.
	StatusIdle Status = iota
	// StatusBound has a live backend.
	StatusBound
	// StatusAborted lost its target. Only SetTarget leaves this state.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusBound:
		return "bound"
	case StatusAborted:
		return "aborted"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// AbortEvent is published once each time a target is lost
type AbortEvent struct {
	Target Target
	Err    error
	At     time.Time
}

// Coordinator owns the active backend and the capture state. Pulls and
// mutations are serialised by one mutex, so a pull never sees a half
// updated target and a replaced backend is closed before its successor is
// built.
type Coordinator struct {
	mu       sync.Mutex
	registry *Registry
	displays Displays
	state    State
	fps      int

	backend Backend
	built   spec
	floor   time.Duration
	status  Status

	onReconfigure func()
	listeners     []chan AbortEvent
}

// DefaultFrameRate is used when a non-positive rate is given to NewCoordinator
const DefaultFrameRate = 30

// NewCoordinator returns an idle coordinator for initial
func NewCoordinator(registry *Registry, displays Displays, initial State, fps int) *Coordinator {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &Coordinator{
		registry: registry,
		displays: displays,
		state:    initial,
		fps:      fps,
	}
}

// OnReconfigure sets the callback for screen layout changes seen by a
// backend. It runs inside PullFrame with the coordinator locked, so it must
// hand off to another goroutine before calling back into the coordinator.
func (c *Coordinator) OnReconfigure(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconfigure = fn
}

// State returns a copy of the capture state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the lifecycle state
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetTarget switches the capture target. It also clears an abort.
func (c *Coordinator) SetTarget(t Target) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Target = t
	if c.status == StatusAborted {
		c.status = StatusIdle
	}

	if t.Kind == KindCustomArea {
		if s, ok := c.backend.(areaSetter); ok {
			s.SetArea(t.Area)
		}
	}
	c.reconcileLocked()
}

// SetMethod selects the acquisition method for a target kind. Screens and
// all-screens share one method.
func (c *Coordinator) SetMethod(kind Kind, m Method) error {
	if m != MethodComposite && m != MethodBlit {
		return fmt.Errorf("unknown capture method %d", int(m))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case KindScreen, KindAllScreens:
		c.state.ScreenMethod = m
	case KindWindow:
		c.state.WindowMethod = m
	case KindCustomArea:
		return ErrFixedMethod
	default:
		return fmt.Errorf("unknown target kind %d", int(kind))
	}
	c.reconcileLocked()
	return nil
}

// SetCaptureCursor stores the cursor flag. It only takes effect on methods
// that support it.
func (c *Coordinator) SetCaptureCursor(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CaptureCursor = on
	c.reconcileLocked()
}

// SetHideTaskbar stores the taskbar flag. It only takes effect on methods
// that support it.
func (c *Coordinator) SetHideTaskbar(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.HideTaskbar = on
	c.reconcileLocked()
}

// SetArea changes the custom area crop in place. It is ignored unless the
// current target is a custom area.
func (c *Coordinator) SetArea(r image.Rectangle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Target.Kind != KindCustomArea {
		return
	}
	c.state.Target.Area = r.Canon()
	if s, ok := c.backend.(areaSetter); ok {
		s.SetArea(c.state.Target.Area)
	}
}

// SetFrameRate changes the pull rate. The backend is kept.
func (c *Coordinator) SetFrameRate(fps int) error {
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %d", fps)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
	return nil
}

// FrameRate returns the requested pull rate
func (c *Coordinator) FrameRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// CaptureInterval is the time between pulls: the frame rate period, raised
// to the backend's floor.
func (c *Coordinator) CaptureInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	interval := time.Second / time.Duration(c.fps)
	if c.floor > interval {
		return c.floor
	}
	return interval
}

// Capability reports whether the current target and method honour want
func (c *Coordinator) Capability(want Capability) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Supported(c.state.Target.Kind, c.state.Method(), want)
}

// PullFrame returns the next frame, building the backend first if needed.
// It returns (nil, nil) when no new frame is available.
func (c *Coordinator) PullFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusAborted {
		return nil, ErrAborted
	}

	if c.backend == nil {
		cfg := c.configLocked()
		b, err := c.registry.Build(cfg)
		if err != nil {
			if errors.Is(err, ErrTargetLost) {
				c.abortLocked(err)
				return nil, err
			}
			return nil, fmt.Errorf("create %s backend: %w", cfg.spec().key, err)
		}
		c.backend = b
		c.built = cfg.spec()
		c.floor = b.MinInterval()
		c.status = StatusBound

		logger.WithComponent("capture").Info().
			Str("target", c.state.Target.String()).
			Str("backend", c.built.key.String()).
			Bool("cursor", cfg.CaptureCursor).
			Bool("hide_taskbar", cfg.HideTaskbar).
			Msg("Capture backend bound")
	}

	f, err := c.backend.CaptureFrame()
	if err != nil {
		if errors.Is(err, ErrTargetLost) {
			c.closeBackendLocked()
			c.abortLocked(err)
		}
		return nil, err
	}
	return f, nil
}

// Subscribe returns a channel receiving abort events
func (c *Coordinator) Subscribe() chan AbortEvent {
	ch := make(chan AbortEvent, 10)
	c.mu.Lock()
	c.listeners = append(c.listeners, ch)
	c.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener
func (c *Coordinator) Unsubscribe(ch chan AbortEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, listener := range c.listeners {
		if listener == ch {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// Close releases the backend
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.closeBackendLocked()
	if c.status != StatusAborted {
		c.status = StatusIdle
	}
	return err
}

func (c *Coordinator) configLocked() BackendConfig {
	return BackendConfig{
		Target:        c.state.Target,
		Method:        c.state.Method(),
		CaptureCursor: c.state.Effective(CapabilityCaptureCursor),
		HideTaskbar:   c.state.Effective(CapabilityHideTaskbar),
		Displays:      c.displays,
		OnReconfigure: c.reconfigured,
	}
}

// reconfigured runs on the pulling goroutine with c.mu held
func (c *Coordinator) reconfigured() {
	if c.onReconfigure != nil {
		c.onReconfigure()
	}
}

// reconcileLocked closes the backend when the state no longer describes it
func (c *Coordinator) reconcileLocked() {
	if c.backend == nil {
		return
	}
	next := c.configLocked().spec()
	if next == c.built {
		return
	}

	logger.WithComponent("capture").Debug().
		Str("old_backend", c.built.key.String()).
		Str("new_backend", next.key.String()).
		Msg("Capture configuration changed, releasing backend")
	c.closeBackendLocked()
	c.status = StatusIdle
}

func (c *Coordinator) closeBackendLocked() error {
	if c.backend == nil {
		return nil
	}
	err := c.backend.Close()
	c.backend = nil
	c.built = spec{}
	c.floor = 0
	if err != nil {
		logger.WithComponent("capture").Warn().Err(err).Msg("Failed to close capture backend")
	}
	return err
}

func (c *Coordinator) abortLocked(err error) {
	c.status = StatusAborted
	event := AbortEvent{Target: c.state.Target, Err: err, At: time.Now()}

	logger.WithComponent("capture").Warn().
		Err(err).
		Str("target", c.state.Target.String()).
		Msg("Capture aborted")

	for _, listener := range c.listeners {
		select {
		case listener <- event:
		default:
			// Skip if channel is full
		}
	}
}
