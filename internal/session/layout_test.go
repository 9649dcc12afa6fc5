package session

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/bryanchriswhite/AreaStream/internal/capture"
)

func TestLayoutResolve(t *testing.T) {
	tests := []struct {
		name    string
		layout  Layout
		index   int
		want    Slot
		wantErr bool
	}{
		{"single screen", Layout{Screens: 1, Windows: 2}, 0, Slot{Kind: capture.KindScreen}, false},
		{"single screen custom area", Layout{Screens: 1, Windows: 2}, 1, Slot{Kind: capture.KindCustomArea}, false},
		{"single screen first window", Layout{Screens: 1, Windows: 2}, 2, Slot{Kind: capture.KindWindow}, false},
		{"single screen last window", Layout{Screens: 1, Windows: 2}, 3, Slot{Kind: capture.KindWindow, Window: 1}, false},
		{"second screen", Layout{Screens: 2, Windows: 1}, 1, Slot{Kind: capture.KindScreen, Screen: 1}, false},
		{"everything", Layout{Screens: 2, Windows: 1}, 2, Slot{Kind: capture.KindAllScreens}, false},
		{"custom area after everything", Layout{Screens: 2, Windows: 1}, 3, Slot{Kind: capture.KindCustomArea}, false},
		{"custom area with three screens", Layout{Screens: 3}, 4, Slot{Kind: capture.KindCustomArea}, false},
		{"past the end", Layout{Screens: 3}, 5, Slot{}, true},
		{"negative", Layout{Screens: 1, Windows: 2}, -1, Slot{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.layout.Resolve(tt.index)
			if tt.wantErr {
				if !errors.Is(err, ErrIndexOutOfRange) {
					t.Fatalf("expected ErrIndexOutOfRange, got %+v, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%d) failed: %v", tt.index, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%d) = %+v, want %+v", tt.index, got, tt.want)
			}
		})
	}
}

func TestLayoutResolveIsTotal(t *testing.T) {
	for screens := 0; screens <= 4; screens++ {
		for windows := 0; windows <= 5; windows++ {
			l := Layout{Screens: screens, Windows: windows}
			if _, err := l.Resolve(-1); err == nil {
				t.Errorf("%+v: -1 resolved", l)
			}
			if _, err := l.Resolve(l.Len()); err == nil {
				t.Errorf("%+v: %d resolved", l, l.Len())
			}

			counts := map[capture.Kind]int{}
			for i := 0; i < l.Len(); i++ {
				a, err := l.Resolve(i)
				if err != nil {
					t.Fatalf("%+v: Resolve(%d) failed: %v", l, i, err)
				}
				if b, _ := l.Resolve(i); a != b {
					t.Fatalf("%+v: Resolve(%d) not deterministic", l, i)
				}
				counts[a.Kind]++
				if a.Kind == capture.KindWindow && l.WindowIndex(a.Window) != i {
					t.Errorf("%+v: WindowIndex(%d) != %d", l, a.Window, i)
				}
				if a.Kind != capture.KindWindow {
					target := capture.Target{Kind: a.Kind, Screen: a.Screen}
					if got := l.IndexOf(target); got != i {
						t.Errorf("%+v: IndexOf(%v) = %d, want %d", l, target, got, i)
					}
				}
			}

			wantAll := 0
			if screens > 1 {
				wantAll = 1
			}
			if counts[capture.KindScreen] != screens || counts[capture.KindAllScreens] != wantAll ||
				counts[capture.KindCustomArea] != 1 || counts[capture.KindWindow] != windows {
				t.Errorf("%+v: slot counts %v", l, counts)
			}
		}
	}
}

func TestLayoutIndexOfMissingScreen(t *testing.T) {
	l := Layout{Screens: 1}
	if i := l.IndexOf(capture.ScreenTarget(1)); i != -1 {
		t.Errorf("IndexOf(screen 1) = %d", i)
	}
	if i := l.IndexOf(capture.AllScreensTarget()); i != -1 {
		t.Errorf("IndexOf(all screens) = %d with one screen", i)
	}
}

func TestScreenName(t *testing.T) {
	d := &fakeDisplays{bounds: []image.Rectangle{
		image.Rect(-1280, 0, 0, 1024),
		image.Rect(0, 0, 2560, 1440),
	}}
	if got := ScreenName(d, 0); got != "Screen 1 (1280 x 1024)" {
		t.Errorf("ScreenName(0) = %q", got)
	}
	if got := ScreenName(d, 1); got != "Primary screen (2560 x 1440)" {
		t.Errorf("ScreenName(1) = %q", got)
	}
}

func TestConfigPicker(t *testing.T) {
	p := ConfigPicker{Displays: twoDisplays()}
	virtual := image.Rect(0, 0, 3200, 1080)

	tests := []struct {
		name    string
		current image.Rectangle
		want    image.Rectangle
	}{
		{"empty picks everything", image.Rectangle{}, virtual},
		{"inside kept", image.Rect(10, 10, 100, 100), image.Rect(10, 10, 100, 100)},
		{"clipped", image.Rect(3000, 900, 4000, 2000), image.Rect(3000, 900, 3200, 1080)},
		{"off screen", image.Rect(5000, 5000, 5100, 5100), virtual},
	}
	for _, tt := range tests {
		got, err := p.PickArea(context.Background(), tt.current)
		if err != nil || got != tt.want {
			t.Errorf("%s: PickArea = %v, %v, want %v", tt.name, got, err, tt.want)
		}
	}

	if _, err := (ConfigPicker{Displays: &fakeDisplays{}}).PickArea(context.Background(), image.Rectangle{}); !errors.Is(err, capture.ErrNoDisplays) {
		t.Errorf("expected ErrNoDisplays, got %v", err)
	}
}
