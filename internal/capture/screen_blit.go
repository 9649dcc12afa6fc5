package capture

import (
	"fmt"
	"image"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/logger"
	"github.com/kbinani/screenshot"
)

const (
	blitMinInterval    = 33 * time.Millisecond
	blitDisplayRecheck = time.Second
)

// blitCapturer copies screen pixels with kbinani/screenshot
type blitCapturer struct {
	displays    Displays
	target      Target
	bounds      image.Rectangle
	workArea    image.Rectangle // empty unless the taskbar is hidden
	count       int
	lastCheck   time.Time
	captureRect func(image.Rectangle) (*image.RGBA, error)
	now         func() time.Time
}

func newBlitCapturer(cfg BackendConfig) (Backend, error) {
	c := &blitCapturer{
		displays:    cfg.Displays,
		target:      cfg.Target,
		captureRect: screenshot.CaptureRect,
		now:         time.Now,
	}
	if err := c.refreshBounds(); err != nil {
		return nil, err
	}

	if cfg.HideTaskbar {
		area, err := currentWorkArea()
		if err != nil {
			logger.WithComponent("capture").Warn().Err(err).Msg("Work area unavailable, taskbar stays visible")
		} else {
			c.workArea = area
		}
	}
	return c, nil
}

func currentWorkArea() (image.Rectangle, error) {
	x, err := openX11()
	if err != nil {
		return image.Rectangle{}, err
	}
	defer x.close()
	return x.readWorkArea()
}

func (c *blitCapturer) refreshBounds() error {
	bounds, err := targetBounds(c.displays, c.target)
	if err != nil {
		return err
	}
	c.bounds = bounds
	c.count = c.displays.Count()
	c.lastCheck = c.now()
	return nil
}

func (c *blitCapturer) CaptureFrame() (*Frame, error) {
	if c.now().Sub(c.lastCheck) >= blitDisplayRecheck {
		if n := c.displays.Count(); n != c.count {
			logger.WithComponent("capture").Info().
				Int("old_count", c.count).
				Int("new_count", n).
				Msg("Display count changed")
		}
		if err := c.refreshBounds(); err != nil {
			return nil, err
		}
	}

	r := c.bounds
	if !c.workArea.Empty() {
		r = r.Intersect(c.workArea)
	}
	if r.Empty() {
		return nil, nil
	}

	img, err := c.captureRect(r)
	if err != nil {
		return nil, fmt.Errorf("screenshot %v: %w", r, err)
	}
	return &Frame{Image: img, Origin: r.Min, CapturedAt: c.now()}, nil
}

func (c *blitCapturer) MinInterval() time.Duration {
	return blitMinInterval
}

func (c *blitCapturer) Close() error {
	return nil
}
