package capture

import (
	"fmt"
	"image"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/window"
)

// Kind is the type of region being captured
type Kind int

const (
	KindScreen Kind = iota
	KindAllScreens
	KindWindow
	KindCustomArea
)

var kindNames = map[Kind]string{
	KindScreen:     "screen",
	KindAllScreens: "all-screens",
	KindWindow:     "window",
	KindCustomArea: "custom-area",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind parses the String form of a Kind
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown target kind %q", s)
}

// Target is the region currently being captured. Only the fields relevant
// to Kind are set.
type Target struct {
	Kind   Kind
	Screen int             // KindScreen: display index
	Window window.Entry    // KindWindow: entry from the catalog that was current when selected
	Area   image.Rectangle // KindCustomArea: rectangle in virtual-screen coordinates
}

// ScreenTarget captures display i.
func ScreenTarget(i int) Target {
	return Target{Kind: KindScreen, Screen: i}
}

// AllScreensTarget captures the bounding rectangle of every display.
func AllScreensTarget() Target {
	return Target{Kind: KindAllScreens}
}

// WindowTarget captures the window described by e.
func WindowTarget(e window.Entry) Target {
	return Target{Kind: KindWindow, Window: e}
}

// CustomAreaTarget captures area, cropped out of all screens.
func CustomAreaTarget(area image.Rectangle) Target {
	return Target{Kind: KindCustomArea, Area: area.Canon()}
}

// SameSource reports whether t and o read from the same OS resource. Custom
// areas always share the all-screens source; only their crop differs.
func (t Target) SameSource(o Target) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindScreen:
		return t.Screen == o.Screen
	case KindWindow:
		return t.Window.Handle == o.Window.Handle
	}
	return true
}

func (t Target) String() string {
	switch t.Kind {
	case KindScreen:
		return fmt.Sprintf("screen %d", t.Screen)
	case KindWindow:
		return fmt.Sprintf("window %#x %q", uint32(t.Window.Handle), t.Window.Title)
	case KindCustomArea:
		return fmt.Sprintf("area %v", t.Area)
	}
	return t.Kind.String()
}

// Method is a pixel acquisition strategy
type Method int

const (
	// MethodComposite reads server-side buffers (root window image or the
	// Composite extension's window pixmap). It can draw the cursor.
	MethodComposite Method = iota
	// MethodBlit copies screen pixels through the screenshot library or a
	// direct GetImage on the window.
	MethodBlit
)

func (m Method) String() string {
	switch m {
	case MethodComposite:
		return "composite"
	case MethodBlit:
		return "blit"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod parses the String form of a Method
func ParseMethod(s string) (Method, error) {
	switch s {
	case "composite":
		return MethodComposite, nil
	case "blit":
		return MethodBlit, nil
	}
	return 0, fmt.Errorf("unknown capture method %q", s)
}

// Capability is an optional behaviour a backend may honour
type Capability int

const (
	CapabilityHideTaskbar Capability = iota
	CapabilityCaptureCursor
)

func (c Capability) String() string {
	switch c {
	case CapabilityHideTaskbar:
		return "hide_taskbar"
	case CapabilityCaptureCursor:
		return "capture_cursor"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// ParseCapability parses the String form of a Capability
func ParseCapability(s string) (Capability, error) {
	switch s {
	case "hide_taskbar":
		return CapabilityHideTaskbar, nil
	case "capture_cursor":
		return CapabilityCaptureCursor, nil
	}
	return 0, fmt.Errorf("unknown capability %q", s)
}

// Supported reports whether the backend for kind and method honours c.
func Supported(kind Kind, method Method, c Capability) bool {
	switch c {
	case CapabilityHideTaskbar:
		return kind == KindScreen && method == MethodBlit
	case CapabilityCaptureCursor:
		return method == MethodComposite
	}
	return false
}

// State is the capture configuration owned by a Coordinator. Flags are kept
// even while the current method cannot honour them.
type State struct {
	Target        Target
	ScreenMethod  Method
	WindowMethod  Method
	CaptureCursor bool
	HideTaskbar   bool
}

// MethodFor returns the method used for kind. Screens and all-screens share
// one selection; custom areas always use MethodComposite.
func (s State) MethodFor(kind Kind) Method {
	switch kind {
	case KindScreen, KindAllScreens:
		return s.ScreenMethod
	case KindWindow:
		return s.WindowMethod
	}
	return MethodComposite
}

// Method returns the method of the current target.
func (s State) Method() Method {
	return s.MethodFor(s.Target.Kind)
}

// Effective reports whether c is both requested and supported for the
// current target and method.
func (s State) Effective(c Capability) bool {
	var requested bool
	switch c {
	case CapabilityHideTaskbar:
		requested = s.HideTaskbar
	case CapabilityCaptureCursor:
		requested = s.CaptureCursor
	}
	return requested && Supported(s.Target.Kind, s.Method(), c)
}

// Frame is one captured image. It must not be modified after a backend
// returns it.
type Frame struct {
	Image      *image.RGBA
	Origin     image.Point // virtual-screen position of the top-left pixel
	CapturedAt time.Time
}

// Size returns the pixel dimensions of the frame.
func (f *Frame) Size() image.Point {
	if f == nil || f.Image == nil {
		return image.Point{}
	}
	return f.Image.Bounds().Size()
}
