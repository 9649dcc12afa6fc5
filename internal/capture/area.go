package capture

import (
	"image"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

// areaSetter is implemented by backends whose crop can change without a
// rebuild
type areaSetter interface {
	SetArea(r image.Rectangle)
}

// areaCapturer crops an all-screens capture to a rectangle in
// virtual-screen coordinates
type areaCapturer struct {
	inner Backend

	mu   sync.Mutex
	area image.Rectangle
}

func newAreaCapturer(cfg BackendConfig) (Backend, error) {
	innerCfg := cfg
	innerCfg.Target = AllScreensTarget()
	inner, err := newRootCapturer(innerCfg)
	if err != nil {
		return nil, err
	}
	return newAreaCapturerFrom(inner, cfg.Target.Area), nil
}

// newAreaCapturerFrom wraps inner. Reconfigure signals raised by inner reach
// whoever inner was built with.
func newAreaCapturerFrom(inner Backend, area image.Rectangle) *areaCapturer {
	return &areaCapturer{inner: inner, area: area.Canon()}
}

func (c *areaCapturer) SetArea(r image.Rectangle) {
	c.mu.Lock()
	c.area = r.Canon()
	c.mu.Unlock()
}

func (c *areaCapturer) CaptureFrame() (*Frame, error) {
	f, err := c.inner.CaptureFrame()
	if err != nil || f == nil {
		return nil, err
	}

	c.mu.Lock()
	area := c.area
	c.mu.Unlock()

	src := area.Sub(f.Origin).Add(f.Image.Rect.Min).Intersect(f.Image.Rect)
	if src.Empty() {
		return nil, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Copy(dst, image.Point{}, f.Image, src, draw.Src, nil)

	origin := f.Origin.Add(src.Min.Sub(f.Image.Rect.Min))
	return &Frame{Image: dst, Origin: origin, CapturedAt: f.CapturedAt}, nil
}

func (c *areaCapturer) MinInterval() time.Duration {
	return c.inner.MinInterval()
}

func (c *areaCapturer) Close() error {
	return c.inner.Close()
}
