package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/capture"
	"github.com/bryanchriswhite/AreaStream/internal/config"
	"github.com/bryanchriswhite/AreaStream/internal/logger"
	"github.com/bryanchriswhite/AreaStream/internal/preview"
	"github.com/bryanchriswhite/AreaStream/internal/scale"
	"github.com/bryanchriswhite/AreaStream/internal/window"
)

// Settings is the persisted store the controller reads and writes
type Settings interface {
	Get() *config.Config
	Update(fn func(cfg *config.Config)) error
}

// EventType names a controller notification
type EventType string

const (
	EventSelected EventType = "selected"
	EventTargets  EventType = "targets"
	EventAborted  EventType = "aborted"
)

// Event is published to subscribers when the selection or target list
// changes, or when capture is aborted
type Event struct {
	Type      EventType `json:"type"`
	Selection int       `json:"selection"`
	Name      string    `json:"name,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// TargetInfo describes one entry of the selection list
type TargetInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Key   string `json:"key,omitempty"`
}

// Status is a snapshot of the capture session
type Status struct {
	Selection     int             `json:"selection"`
	Name          string          `json:"name"`
	Target        string          `json:"target"`
	Kind          string          `json:"kind"`
	Capture       string          `json:"capture"`
	FrameRate     int             `json:"framerate"`
	IntervalMs    float64         `json:"interval_ms"`
	ScreenMethod  string          `json:"screen_method"`
	WindowMethod  string          `json:"window_method"`
	CaptureCursor bool            `json:"capture_cursor"`
	HideTaskbar   bool            `json:"hide_taskbar"`
	Capabilities  map[string]bool `json:"capabilities"`
	Generation    uint64          `json:"catalog_generation"`
	Preview       *preview.Stats  `json:"preview,omitempty"`
}

// Options wires a Controller
type Options struct {
	Registry   *capture.Registry
	Displays   capture.Displays
	Enumerator window.Enumerator
	Settings   Settings
	// Picker defaults to ConfigPicker
	Picker AreaPicker
}

// Controller owns the selection list and drives the coordinator from it.
// Lock order is Controller.mu, then the coordinator's own lock.
type Controller struct {
	coord      *capture.Coordinator
	displays   capture.Displays
	enumerator window.Enumerator
	settings   Settings
	picker     AreaPicker

	mu        sync.Mutex
	catalog   *window.Catalog
	layout    Layout
	names     []string
	selection int

	loop    *preview.Loop
	labeler preview.Labeler

	onAbort   []func(capture.AbortEvent)
	listeners []chan Event

	aborts     chan capture.AbortEvent
	recropping atomic.Bool
	started    atomic.Bool
	abortsDone chan struct{}
}

// New builds a controller and its coordinator from the stored settings.
// Call Init before pulling frames.
func New(opts Options) (*Controller, error) {
	if opts.Registry == nil || opts.Displays == nil || opts.Enumerator == nil || opts.Settings == nil {
		return nil, errors.New("session: registry, displays, enumerator and settings are required")
	}
	picker := opts.Picker
	if picker == nil {
		picker = ConfigPicker{Displays: opts.Displays}
	}

	cfg := opts.Settings.Get()
	state := capture.State{
		Target:        capture.ScreenTarget(capture.PrimaryIndex(opts.Displays)),
		ScreenMethod:  parseMethod(cfg.Capture.ScreenMethod),
		WindowMethod:  parseMethod(cfg.Capture.WindowMethod),
		CaptureCursor: cfg.Capture.CaptureCursor,
		HideTaskbar:   cfg.Capture.HideTaskbar,
	}

	c := &Controller{
		coord:      capture.NewCoordinator(opts.Registry, opts.Displays, state, cfg.Capture.FrameRate),
		displays:   opts.Displays,
		enumerator: opts.Enumerator,
		settings:   opts.Settings,
		picker:     picker,
		catalog:    window.Empty(),
		abortsDone: make(chan struct{}),
	}
	c.coord.OnReconfigure(c.requestRecrop)
	c.aborts = c.coord.Subscribe()
	return c, nil
}

func parseMethod(s string) capture.Method {
	m, err := capture.ParseMethod(s)
	if err != nil {
		return capture.MethodComposite
	}
	return m
}

// Init builds the first target list and restores the saved selection: the
// stored window key when that window is still open, the stored area index
// otherwise.
func (c *Controller) Init() error {
	if c.displays.Count() == 0 {
		return capture.ErrNoDisplays
	}

	c.mu.Lock()
	c.refreshLocked(false)
	c.restoreLocked()
	c.mu.Unlock()

	if c.started.CompareAndSwap(false, true) {
		go c.handleAborts()
	}
	return nil
}

func (c *Controller) restoreLocked() {
	key := c.settings.Get().Capture.WindowKey
	if key != "" {
		i, err := c.catalog.IndexOfEncodedKey(key)
		if err == nil {
			entry, _ := c.catalog.Entry(i)
			c.applyLocked(c.layout.WindowIndex(i), capture.WindowTarget(entry))
			return
		}
		logger.WithComponent("session").Info().
			Err(err).
			Msg("Saved window not found, restoring saved area")
	}
	c.fallbackLocked()
}

// Coordinator exposes the underlying coordinator
func (c *Controller) Coordinator() *capture.Coordinator {
	return c.coord
}

// Attach connects the preview loop and label surface that follow the
// selection. Either may be nil.
func (c *Controller) Attach(loop *preview.Loop, labeler preview.Labeler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loop = loop
	c.labeler = labeler
	if labeler != nil && c.selection < len(c.names) {
		labeler.SetLabel(c.names[c.selection])
	}
}

// RefreshTargetList rebuilds the window catalog and returns the display
// names of the selection list. A selected window is re-found by its key.
func (c *Controller) RefreshTargetList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked(true)
	return slices.Clone(c.names)
}

func (c *Controller) refreshLocked(rematch bool) {
	cur := c.coord.State().Target
	following := cur.Kind == capture.KindWindow && rematch

	cat, err := window.Refresh(c.enumerator)
	if err != nil && following && cat.IndexOfHandle(cur.Window.Handle) < 0 {
		// An incomplete list says nothing about the selected window; keep
		// the previous list until an enumeration succeeds.
		logger.WithComponent("session").Warn().
			Err(err).
			Str("window", cur.Window.Title).
			Msg("Window enumeration incomplete, keeping selection")
		return
	}
	c.catalog = cat
	c.layout = Layout{Screens: c.displays.Count(), Windows: cat.Len()}

	names := c.namesLocked()
	changed := !slices.Equal(names, c.names)
	c.names = names

	switch {
	case following:
		i := c.rematchLocked(cur.Window)
		if i < 0 {
			logger.WithComponent("session").Info().
				Str("window", cur.Window.Title).
				Msg("Selected window is gone")
			c.fallbackLocked()
			break
		}
		entry, _ := cat.Entry(i)
		if entry.Key() != cur.Window.Key() {
			c.persist(func(cfg *config.Config) {
				cfg.Capture.WindowKey = entry.Key().String()
			})
		}
		c.applyLocked(c.layout.WindowIndex(i), capture.WindowTarget(entry))
	case cur.Kind == capture.KindWindow:
		// the caller chooses the selection
	default:
		if i := c.layout.IndexOf(cur); i < 0 {
			logger.WithComponent("session").Info().
				Str("target", cur.String()).
				Msg("Selected screen is gone")
			c.fallbackLocked()
		} else if i != c.selection {
			c.applyLocked(i, cur)
		}
	}

	if changed {
		c.publish(Event{Type: EventTargets, Selection: c.selection})
	}
}

// rematchLocked finds prev in the current catalog. A live handle always
// wins, whatever its title is now; the durable key is only consulted once
// the handle is gone.
func (c *Controller) rematchLocked(prev window.Entry) int {
	if i := c.catalog.IndexOfHandle(prev.Handle); i >= 0 {
		return i
	}
	i, err := c.catalog.IndexOfKey(prev.Key())
	if err != nil {
		return -1
	}
	return i
}

func (c *Controller) namesLocked() []string {
	names := make([]string, 0, c.layout.Len())
	for i := 0; i < c.layout.Screens; i++ {
		names = append(names, ScreenName(c.displays, i))
	}
	if c.layout.AllScreensIndex() >= 0 {
		names = append(names, AllScreensName)
	}
	names = append(names, CustomAreaName)
	return append(names, c.catalog.Names()...)
}

// fallbackLocked selects the saved area index, or the primary screen when it
// no longer resolves to a screen or area slot
func (c *Controller) fallbackLocked() {
	i := c.settings.Get().Capture.AreaIndex
	slot, err := c.layout.Resolve(i)
	if err != nil || slot.Kind == capture.KindWindow {
		i = capture.PrimaryIndex(c.displays)
		slot = Slot{Kind: capture.KindScreen, Screen: i}
	}
	t, err := c.targetLocked(slot)
	if err != nil {
		logger.WithComponent("session").Warn().
			Err(err).
			Msg("Failed to restore saved area, using primary screen")
		i = capture.PrimaryIndex(c.displays)
		t = capture.ScreenTarget(i)
	}
	c.applyLocked(i, t)
}

func (c *Controller) targetLocked(slot Slot) (capture.Target, error) {
	switch slot.Kind {
	case capture.KindScreen:
		return capture.ScreenTarget(slot.Screen), nil
	case capture.KindAllScreens:
		return capture.AllScreensTarget(), nil
	case capture.KindCustomArea:
		area, err := c.customAreaLocked()
		if err != nil {
			return capture.Target{}, err
		}
		return capture.CustomAreaTarget(area), nil
	case capture.KindWindow:
		entry, ok := c.catalog.Entry(slot.Window)
		if !ok {
			return capture.Target{}, fmt.Errorf("%w: window %d", ErrIndexOutOfRange, slot.Window)
		}
		return capture.WindowTarget(entry), nil
	}
	return capture.Target{}, fmt.Errorf("unknown slot kind %s", slot.Kind)
}

// customAreaLocked returns the stored area, asking the picker for one when
// none is stored yet
func (c *Controller) customAreaLocked() (image.Rectangle, error) {
	area := toRect(c.settings.Get().Capture.CustomArea)
	if !area.Empty() {
		return area, nil
	}
	area, err := c.picker.PickArea(context.Background(), image.Rectangle{})
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("pick custom area: %w", err)
	}
	c.persist(func(cfg *config.Config) {
		cfg.Capture.CustomArea = fromRect(area)
	})
	return area, nil
}

// applyLocked points the coordinator at t. Subscribers are only told when
// the selection or its name changed.
func (c *Controller) applyLocked(i int, t capture.Target) {
	prev := c.coord.State().Target
	c.coord.SetTarget(t)

	moved := i != c.selection || prev.Kind != t.Kind || !prev.SameSource(t) || prev.Window.Title != t.Window.Title
	c.selection = i
	if !moved {
		return
	}

	name := c.nameLocked(i)
	if c.labeler != nil {
		c.labeler.SetLabel(name)
	}
	logger.WithComponent("session").Info().
		Int("index", i).
		Str("name", name).
		Str("target", t.String()).
		Msg("Capture target selected")
	c.publish(Event{Type: EventSelected, Selection: i, Name: name})
}

func (c *Controller) nameLocked(i int) string {
	if i >= 0 && i < len(c.names) {
		return c.names[i]
	}
	return ""
}

// SetTargetByIndex selects entry i of the last returned list. Screen and
// area selections persist the index, window selections persist the
// window's durable key.
func (c *Controller) SetTargetByIndex(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, err := c.layout.Resolve(i)
	if err != nil {
		return err
	}
	t, err := c.targetLocked(slot)
	if err != nil {
		return err
	}
	c.applyLocked(i, t)

	c.persist(func(cfg *config.Config) {
		if t.Kind == capture.KindWindow {
			cfg.Capture.WindowKey = t.Window.Key().String()
			return
		}
		cfg.Capture.AreaIndex = i
		cfg.Capture.WindowKey = ""
	})
	return nil
}

// Selection returns the selected index and its display name
func (c *Controller) Selection() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection, c.nameLocked(c.selection)
}

// Targets describes the current selection list
func (c *Controller) Targets() []TargetInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := make([]TargetInfo, 0, c.layout.Len())
	for i := 0; i < c.layout.Len(); i++ {
		slot, _ := c.layout.Resolve(i)
		info := TargetInfo{Index: i, Name: c.nameLocked(i), Kind: slot.Kind.String()}
		if slot.Kind == capture.KindWindow {
			if e, ok := c.catalog.Entry(slot.Window); ok {
				info.Key = e.Key().String()
			}
		}
		targets = append(targets, info)
	}
	return targets
}

// SetMethod selects the acquisition method for a target kind
func (c *Controller) SetMethod(kind capture.Kind, m capture.Method) error {
	if err := c.coord.SetMethod(kind, m); err != nil {
		return err
	}
	c.persist(func(cfg *config.Config) {
		if kind == capture.KindWindow {
			cfg.Capture.WindowMethod = m.String()
		} else {
			cfg.Capture.ScreenMethod = m.String()
		}
	})
	return nil
}

// SetFrameRate changes the pull rate within the configured bounds
func (c *Controller) SetFrameRate(fps int) error {
	if fps < config.MinFrameRate || fps > config.MaxFrameRate {
		return fmt.Errorf("frame rate %d outside %d..%d", fps, config.MinFrameRate, config.MaxFrameRate)
	}
	if err := c.coord.SetFrameRate(fps); err != nil {
		return err
	}
	c.persist(func(cfg *config.Config) {
		cfg.Capture.FrameRate = fps
	})
	return nil
}

// SetCaptureCursor stores the cursor flag
func (c *Controller) SetCaptureCursor(on bool) {
	c.coord.SetCaptureCursor(on)
	c.persist(func(cfg *config.Config) {
		cfg.Capture.CaptureCursor = on
	})
}

// SetHideTaskbar stores the taskbar flag
func (c *Controller) SetHideTaskbar(on bool) {
	c.coord.SetHideTaskbar(on)
	c.persist(func(cfg *config.Config) {
		cfg.Capture.HideTaskbar = on
	})
}

// SetCustomArea stores a new custom rectangle and recrops a running
// custom-area capture in place
func (c *Controller) SetCustomArea(r image.Rectangle) error {
	r = r.Canon()
	if r.Empty() {
		return fmt.Errorf("empty custom area %v", r)
	}
	c.persist(func(cfg *config.Config) {
		cfg.Capture.CustomArea = fromRect(r)
	})
	c.coord.SetArea(r)
	return nil
}

// SetScaleMode stores the preview scale mode and applies it to the
// attached loop
func (c *Controller) SetScaleMode(m scale.Mode) {
	c.mu.Lock()
	loop := c.loop
	c.mu.Unlock()

	if loop != nil {
		loop.SetScaleMode(m)
	}
	c.persist(func(cfg *config.Config) {
		cfg.Preview.ScaleMode = m.String()
	})
}

// PullFrame returns the next frame of the selected target
func (c *Controller) PullFrame() (*capture.Frame, error) {
	return c.coord.PullFrame()
}

// CaptureInterval is the time between pulls
func (c *Controller) CaptureInterval() time.Duration {
	return c.coord.CaptureInterval()
}

// CapabilitySupported reports whether the selected target and method honour
// want
func (c *Controller) CapabilitySupported(want capture.Capability) bool {
	return c.coord.Capability(want)
}

// Status returns a snapshot of the session
func (c *Controller) Status() Status {
	c.mu.Lock()
	selection, name := c.selection, c.nameLocked(c.selection)
	generation := c.catalog.Generation()
	loop := c.loop
	c.mu.Unlock()

	state := c.coord.State()
	st := Status{
		Selection:     selection,
		Name:          name,
		Target:        state.Target.String(),
		Kind:          state.Target.Kind.String(),
		Capture:       c.coord.Status().String(),
		FrameRate:     c.coord.FrameRate(),
		IntervalMs:    float64(c.coord.CaptureInterval()) / float64(time.Millisecond),
		ScreenMethod:  state.ScreenMethod.String(),
		WindowMethod:  state.WindowMethod.String(),
		CaptureCursor: state.CaptureCursor,
		HideTaskbar:   state.HideTaskbar,
		Capabilities: map[string]bool{
			capture.CapabilityCaptureCursor.String(): state.Effective(capture.CapabilityCaptureCursor),
			capture.CapabilityHideTaskbar.String():   state.Effective(capture.CapabilityHideTaskbar),
		},
		Generation: generation,
	}
	if loop != nil {
		stats := loop.Stats()
		st.Preview = &stats
	}
	return st
}

// OnAbort registers fn to run after the controller has fallen back from an
// aborted target
func (c *Controller) OnAbort(fn func(capture.AbortEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAbort = append(c.onAbort, fn)
}

func (c *Controller) handleAborts() {
	defer close(c.abortsDone)

	for event := range c.aborts {
		c.mu.Lock()
		c.persist(func(cfg *config.Config) {
			cfg.Capture.WindowKey = ""
		})
		// Rebuild the list without following the lost window, then return
		// to the saved area.
		c.refreshLocked(false)
		c.fallbackLocked()
		hooks := slices.Clone(c.onAbort)
		c.publish(Event{
			Type:      EventAborted,
			Selection: c.selection,
			Name:      c.nameLocked(c.selection),
			Error:     event.Err.Error(),
		})
		c.mu.Unlock()

		for _, fn := range hooks {
			fn(event)
		}
	}
}

// requestRecrop runs on the pulling goroutine with the coordinator locked
func (c *Controller) requestRecrop() {
	if !c.recropping.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.recropping.Store(false)

		current := toRect(c.settings.Get().Capture.CustomArea)
		area, err := c.picker.PickArea(context.Background(), current)
		if err != nil {
			logger.WithComponent("session").Warn().Err(err).Msg("Failed to pick custom area after screen change")
			return
		}
		if err := c.SetCustomArea(area); err != nil {
			logger.WithComponent("session").Warn().Err(err).Msg("Failed to apply custom area")
			return
		}
		logger.WithComponent("session").Info().
			Str("area", area.String()).
			Msg("Custom area re-cropped after screen change")
	}()
}

// Watch refreshes the target list every interval until ctx is done
func (c *Controller) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RefreshTargetList()
		}
	}
}

// Subscribe returns a channel receiving controller events
func (c *Controller) Subscribe() chan Event {
	ch := make(chan Event, 10)
	c.mu.Lock()
	c.listeners = append(c.listeners, ch)
	c.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener
func (c *Controller) Unsubscribe(ch chan Event) {
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

func (c *Controller) publish(e Event) {
	e.At = time.Now()
	for _, listener := range c.listeners {
		select {
		case listener <- e:
		default:
			// Skip if channel is full
		}
	}
}

func (c *Controller) persist(fn func(cfg *config.Config)) {
	if err := c.settings.Update(fn); err != nil {
		logger.WithComponent("session").Warn().Err(err).Msg("Failed to save settings")
	}
}

// Close stops abort handling and releases the capture backend
func (c *Controller) Close() error {
	c.coord.Unsubscribe(c.aborts)
	if c.started.Load() {
		<-c.abortsDone
	}
	return c.coord.Close()
}

func toRect(a config.Area) image.Rectangle {
	return image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height)
}

func fromRect(r image.Rectangle) config.Area {
	return config.Area{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}
