package capture

import (
	"image"
	"testing"

	"github.com/bryanchriswhite/AreaStream/internal/window"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		kind   Kind
		method Method
		cap    Capability
		want   bool
	}{
		{KindScreen, MethodBlit, CapabilityHideTaskbar, true},
		{KindScreen, MethodComposite, CapabilityHideTaskbar, false},
		{KindAllScreens, MethodBlit, CapabilityHideTaskbar, false},
		{KindWindow, MethodBlit, CapabilityHideTaskbar, false},
		{KindScreen, MethodComposite, CapabilityCaptureCursor, true},
		{KindWindow, MethodComposite, CapabilityCaptureCursor, true},
		{KindCustomArea, MethodComposite, CapabilityCaptureCursor, true},
		{KindScreen, MethodBlit, CapabilityCaptureCursor, false},
		{KindWindow, MethodBlit, CapabilityCaptureCursor, false},
	}

	for _, tt := range tests {
		if got := Supported(tt.kind, tt.method, tt.cap); got != tt.want {
			t.Errorf("Supported(%s, %s, %s) = %v, want %v", tt.kind, tt.method, tt.cap, got, tt.want)
		}
	}
}

func TestSameSource(t *testing.T) {
	a := window.Entry{Handle: 1, Title: "a"}
	renamed := window.Entry{Handle: 1, Title: "a (2)"}
	other := window.Entry{Handle: 2, Title: "a"}

	tests := []struct {
		name string
		x, y Target
		want bool
	}{
		{"same screen", ScreenTarget(1), ScreenTarget(1), true},
		{"other screen", ScreenTarget(0), ScreenTarget(1), false},
		{"screen vs all", ScreenTarget(0), AllScreensTarget(), false},
		{"renamed window", WindowTarget(a), WindowTarget(renamed), true},
		{"other window", WindowTarget(a), WindowTarget(other), false},
		{"moved area", CustomAreaTarget(image.Rect(0, 0, 5, 5)), CustomAreaTarget(image.Rect(1, 1, 9, 9)), true},
	}
	for _, tt := range tests {
		if got := tt.x.SameSource(tt.y); got != tt.want {
			t.Errorf("%s: SameSource = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseRoundTrips(t *testing.T) {
	for _, k := range []Kind{KindScreen, KindAllScreens, KindWindow, KindCustomArea} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k, got, err)
		}
	}
	for _, m := range []Method{MethodComposite, MethodBlit} {
		got, err := ParseMethod(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMethod(%q) = %v, %v", m, got, err)
		}
	}
	for _, c := range []Capability{CapabilityHideTaskbar, CapabilityCaptureCursor} {
		got, err := ParseCapability(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCapability(%q) = %v, %v", c, got, err)
		}
	}
	if _, err := ParseMethod("dxgi"); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestStateMethodFor(t *testing.T) {
	s := State{ScreenMethod: MethodBlit, WindowMethod: MethodComposite}
	if s.MethodFor(KindAllScreens) != MethodBlit || s.MethodFor(KindScreen) != MethodBlit {
		t.Error("screens do not share the screen method")
	}
	if s.MethodFor(KindWindow) != MethodComposite {
		t.Error("window method ignored")
	}
	s.WindowMethod = MethodBlit
	if s.MethodFor(KindCustomArea) != MethodComposite {
		t.Error("custom area must always use composite")
	}
}

func TestCustomAreaTargetCanonicalises(t *testing.T) {
	got := CustomAreaTarget(image.Rectangle{Min: image.Pt(50, 40), Max: image.Pt(10, 20)})
	if got.Area != image.Rect(10, 20, 50, 40) {
		t.Errorf("unexpected area %v", got.Area)
	}
}
