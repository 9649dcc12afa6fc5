package capture

import (
	"image"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/AreaStream/internal/logger"
)

// rootCapturer reads screens from the root window. With a compositing
// manager the root image is the composited desktop.
type rootCapturer struct {
	x             *x11Session
	displays      Displays
	target        Target
	bounds        image.Rectangle
	rootSize      image.Point
	cursor        *cursorSource
	onReconfigure func()
}

func newRootCapturer(cfg BackendConfig) (Backend, error) {
	bounds, err := targetBounds(cfg.Displays, cfg.Target)
	if err != nil {
		return nil, err
	}

	x, err := openX11()
	if err != nil {
		return nil, err
	}

	c := &rootCapturer{
		x:             x,
		displays:      cfg.Displays,
		target:        cfg.Target,
		bounds:        bounds,
		rootSize:      image.Pt(int(x.screen.WidthInPixels), int(x.screen.HeightInPixels)),
		onReconfigure: cfg.OnReconfigure,
	}

	if cfg.CaptureCursor {
		c.cursor, err = newCursorSource(x.conn)
		if err != nil {
			logger.WithComponent("capture").Warn().Err(err).Msg("Cursor capture unavailable")
		}
	}

	logger.WithComponent("capture").Debug().
		Str("target", cfg.Target.String()).
		Str("bounds", bounds.String()).
		Bool("cursor", c.cursor != nil).
		Msg("Root capturer ready")
	return c, nil
}

func (c *rootCapturer) CaptureFrame() (*Frame, error) {
	geom, err := xproto.GetGeometry(c.x.conn, xproto.Drawable(c.x.root)).Reply()
	if err != nil {
		return nil, err
	}
	if size := image.Pt(int(geom.Width), int(geom.Height)); size != c.rootSize {
		c.rootSize = size
		if err := c.reconfigure(); err != nil {
			return nil, err
		}
	}

	// The root may have shrunk under a display that still reports old bounds
	r := c.bounds.Intersect(image.Rectangle{Max: c.rootSize})
	if r.Empty() {
		return nil, nil
	}

	img, err := c.x.getImage(xproto.Drawable(c.x.root), r)
	if err != nil {
		return nil, err
	}

	if c.cursor != nil {
		if err := c.cursor.overlay(img, r.Min); err != nil {
			logger.WithComponent("capture").Debug().Err(err).Msg("Failed to draw cursor")
		}
	}

	return &Frame{Image: img, Origin: r.Min, CapturedAt: time.Now()}, nil
}

// reconfigure re-reads the display layout after the root window changed size
func (c *rootCapturer) reconfigure() error {
	bounds, err := targetBounds(c.displays, c.target)
	if err != nil {
		return err
	}

	logger.WithComponent("capture").Info().
		Str("old_bounds", c.bounds.String()).
		Str("new_bounds", bounds.String()).
		Msg("Screen configuration changed")

	c.bounds = bounds
	if c.onReconfigure != nil {
		c.onReconfigure()
	}
	return nil
}

func (c *rootCapturer) MinInterval() time.Duration {
	return 0
}

func (c *rootCapturer) Close() error {
	c.x.close()
	return nil
}
