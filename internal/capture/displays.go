package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// Displays reports the connected monitors in virtual-screen coordinates.
type Displays interface {
	Count() int
	Bounds(i int) image.Rectangle
}

// ScreenshotDisplays reads the monitor layout through kbinani/screenshot.
type ScreenshotDisplays struct{}

func (ScreenshotDisplays) Count() int {
	return screenshot.NumActiveDisplays()
}

func (ScreenshotDisplays) Bounds(i int) image.Rectangle {
	return screenshot.GetDisplayBounds(i)
}

// VirtualBounds is the union of every display's bounds.
func VirtualBounds(d Displays) image.Rectangle {
	var r image.Rectangle
	for i := 0; i < d.Count(); i++ {
		r = r.Union(d.Bounds(i))
	}
	return r
}

// PrimaryIndex returns the display placed at the virtual origin, or 0.
func PrimaryIndex(d Displays) int {
	for i := 0; i < d.Count(); i++ {
		if d.Bounds(i).Min == (image.Point{}) {
			return i
		}
	}
	return 0
}

// targetBounds resolves the screen rectangle read for a screen or
// all-screens target.
func targetBounds(d Displays, t Target) (image.Rectangle, error) {
	n := d.Count()
	if n == 0 {
		return image.Rectangle{}, ErrNoDisplays
	}
	switch t.Kind {
	case KindScreen:
		if t.Screen < 0 || t.Screen >= n {
			return image.Rectangle{}, fmt.Errorf("%w: display %d of %d", ErrTargetLost, t.Screen, n)
		}
		return d.Bounds(t.Screen), nil
	case KindAllScreens, KindCustomArea:
		return VirtualBounds(d), nil
	}
	return image.Rectangle{}, fmt.Errorf("%s has no screen bounds", t.Kind)
}
