package preview

import (
	"sync"

	"github.com/bryanchriswhite/AreaStream/internal/capture"
	"github.com/bryanchriswhite/AreaStream/internal/scale"
)

// Discard is a headless sink. It tracks the requested size and the last
// presented frame size but draws nothing.
type Discard struct {
	mu       sync.Mutex
	viewport scale.Size
	last     scale.Size
	frames   uint64
	closed   bool
}

// NewDiscard returns a headless sink with a fixed viewport for fit mode
func NewDiscard(viewport scale.Size) *Discard {
	return &Discard{viewport: viewport}
}

func (d *Discard) Viewport() scale.Size {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

func (d *Discard) Resize(size scale.Size) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrSurfaceGone
	}
	d.viewport = size
	return nil
}

func (d *Discard) Present(f *capture.Frame, size scale.Size) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrSurfaceGone
	}
	d.last = size
	d.frames++
	return nil
}

// Last returns the size of the most recently presented frame and the number
// of frames presented
func (d *Discard) Last() (scale.Size, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.frames
}

// Close makes the next call fail with ErrSurfaceGone, ending the loop
func (d *Discard) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
