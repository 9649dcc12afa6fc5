package session

import (
	"context"
	"image"

	"github.com/bryanchriswhite/AreaStream/internal/capture"
)

// AreaPicker chooses the custom capture rectangle, in virtual-screen
// coordinates. current is empty the first time.
type AreaPicker interface {
	PickArea(ctx context.Context, current image.Rectangle) (image.Rectangle, error)
}

// ConfigPicker keeps the current rectangle, clipped to the screens, and
// falls back to the whole virtual screen. Areas are edited through settings
// or the control API.
type ConfigPicker struct {
	Displays capture.Displays
}

func (p ConfigPicker) PickArea(_ context.Context, current image.Rectangle) (image.Rectangle, error) {
	virtual := capture.VirtualBounds(p.Displays)
	if virtual.Empty() {
		return image.Rectangle{}, capture.ErrNoDisplays
	}
	if area := current.Canon().Intersect(virtual); !area.Empty() {
		return area, nil
	}
	return virtual, nil
}
