// Package session maps the user's target selection onto the capture
// coordinator and keeps it valid as windows and displays come and go.
package session

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/AreaStream/internal/capture"
)

// ErrIndexOutOfRange is returned for a selection index outside the list
var ErrIndexOutOfRange = errors.New("selection index out of range")

const (
	AllScreensName = "Everything"
	CustomAreaName = "Custom area"
)

// Layout describes the selection list
// [screens..., Everything (more than one screen), Custom area, windows...]
type Layout struct {
	Screens int
	Windows int
}

// Slot is what a selection index refers to
type Slot struct {
	Kind   capture.Kind
	Screen int // KindScreen
	Window int // KindWindow: index into the catalog
}

// Len is the number of selectable entries
func (l Layout) Len() int {
	return l.CustomAreaIndex() + 1 + l.Windows
}

// AllScreensIndex is the index of the Everything entry, or -1 with a single
// screen
func (l Layout) AllScreensIndex() int {
	if l.Screens > 1 {
		return l.Screens
	}
	return -1
}

// CustomAreaIndex is the index of the custom area entry
func (l Layout) CustomAreaIndex() int {
	if l.Screens > 1 {
		return l.Screens + 1
	}
	return l.Screens
}

// WindowIndex is the selection index of catalog entry i
func (l Layout) WindowIndex(i int) int {
	return l.CustomAreaIndex() + 1 + i
}

// Resolve maps a selection index to its slot
func (l Layout) Resolve(i int) (Slot, error) {
	switch {
	case i < 0 || i >= l.Len():
		return Slot{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, l.Len())
	case i < l.Screens:
		return Slot{Kind: capture.KindScreen, Screen: i}, nil
	case i == l.AllScreensIndex():
		return Slot{Kind: capture.KindAllScreens}, nil
	case i == l.CustomAreaIndex():
		return Slot{Kind: capture.KindCustomArea}, nil
	}
	return Slot{Kind: capture.KindWindow, Window: i - l.CustomAreaIndex() - 1}, nil
}

// IndexOf returns the selection index of a non-window target, or -1
func (l Layout) IndexOf(t capture.Target) int {
	switch t.Kind {
	case capture.KindScreen:
		if t.Screen >= 0 && t.Screen < l.Screens {
			return t.Screen
		}
	case capture.KindAllScreens:
		return l.AllScreensIndex()
	case capture.KindCustomArea:
		return l.CustomAreaIndex()
	}
	return -1
}

// ScreenName labels display i
func ScreenName(d capture.Displays, i int) string {
	b := d.Bounds(i)
	if i == capture.PrimaryIndex(d) {
		return fmt.Sprintf("Primary screen (%d x %d)", b.Dx(), b.Dy())
	}
	return fmt.Sprintf("Screen %d (%d x %d)", i+1, b.Dx(), b.Dy())
}
