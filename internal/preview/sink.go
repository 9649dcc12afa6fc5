// Package preview drives captured frames onto a preview surface at a steady
// cadence.
package preview

import (
	"errors"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/capture"
	"github.com/bryanchriswhite/AreaStream/internal/scale"
)

// ErrSurfaceGone is returned by a Sink whose surface was closed or destroyed
var ErrSurfaceGone = errors.New("preview surface gone")

// Sink is a surface frames are drawn on
type Sink interface {
	// Viewport is the current drawable size, used as the box in fit mode
	Viewport() scale.Size

	// Resize asks the surface to take size. Called in fixed scale modes when
	// the native frame size or the mode changes.
	Resize(size scale.Size) error

	// Present draws f scaled to size
	Present(f *capture.Frame, size scale.Size) error
}

// Source supplies frames and the interval to pull them at
type Source interface {
	PullFrame() (*capture.Frame, error)
	CaptureInterval() time.Duration
}

// Labeler is implemented by sinks that can show the target name
type Labeler interface {
	SetLabel(text string)
}
