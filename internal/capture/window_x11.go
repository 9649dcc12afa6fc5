package capture

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/AreaStream/internal/logger"
)

// windowCapturer reads a single top-level window. In composite mode it reads
// the window's off-screen pixmap, which stays valid while the window is
// obscured. Otherwise it reads the window (or its first viewable output
// child) directly.
type windowCapturer struct {
	x          *x11Session
	win        xproto.Window
	composite  bool
	redirected bool
	cursor     *cursorSource
}

func newCompositeWindowCapturer(cfg BackendConfig) (Backend, error) {
	return newWindowCapturer(cfg, true)
}

func newDirectWindowCapturer(cfg BackendConfig) (Backend, error) {
	return newWindowCapturer(cfg, false)
}

func newWindowCapturer(cfg BackendConfig, useComposite bool) (Backend, error) {
	log := logger.WithComponent("capture")

	x, err := openX11()
	if err != nil {
		return nil, err
	}

	c := &windowCapturer{
		x:         x,
		win:       xproto.Window(cfg.Target.Window.Handle),
		composite: useComposite,
	}

	if _, err := xproto.GetWindowAttributes(x.conn, c.win).Reply(); err != nil {
		x.close()
		if isGone(err) {
			return nil, lost(err)
		}
		return nil, fmt.Errorf("failed to get window attributes: %w", err)
	}

	if useComposite {
		if err := composite.Init(x.conn); err != nil {
			x.close()
			return nil, fmt.Errorf("composite extension not available: %w", err)
		}
		err := composite.RedirectWindowChecked(x.conn, c.win, composite.RedirectAutomatic).Check()
		if err != nil {
			log.Warn().
				Err(err).
				Uint32("window_id", uint32(c.win)).
				Msg("Failed to redirect window via Composite, falling back to direct capture")
		} else {
			c.redirected = true
		}
	}

	if cfg.CaptureCursor {
		c.cursor, err = newCursorSource(x.conn)
		if err != nil {
			log.Warn().Err(err).Msg("Cursor capture unavailable")
		}
	}

	log.Debug().
		Uint32("window_id", uint32(c.win)).
		Str("title", cfg.Target.Window.Title).
		Bool("redirected", c.redirected).
		Msg("Window capturer ready")
	return c, nil
}

func lost(err error) error {
	return fmt.Errorf("%w: %v", ErrTargetLost, err)
}

func (c *windowCapturer) CaptureFrame() (*Frame, error) {
	attrs, err := xproto.GetWindowAttributes(c.x.conn, c.win).Reply()
	if err != nil {
		if isGone(err) {
			return nil, lost(err)
		}
		return nil, err
	}
	// Minimised
	if attrs.MapState != xproto.MapStateViewable {
		return nil, nil
	}

	win := c.win
	if !c.redirected && attrs.Class != xproto.WindowClassInputOutput {
		child, err := c.findCapturableChild(win)
		if err != nil {
			return nil, nil
		}
		win = child
	}

	geom, err := xproto.GetGeometry(c.x.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		if isGone(err) {
			return nil, lost(err)
		}
		return nil, err
	}

	drawable := xproto.Drawable(win)
	if c.redirected {
		pixmap, err := xproto.NewPixmapId(c.x.conn)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate pixmap id: %w", err)
		}
		if err := composite.NameWindowPixmapChecked(c.x.conn, win, pixmap).Check(); err != nil {
			if isGone(err) {
				return nil, lost(err)
			}
			return nil, fmt.Errorf("failed to name window pixmap: %w", err)
		}
		defer xproto.FreePixmap(c.x.conn, pixmap)
		drawable = xproto.Drawable(pixmap)
	}

	img, err := c.x.getImage(drawable, image.Rect(0, 0, int(geom.Width), int(geom.Height)))
	if err != nil {
		var match xproto.MatchError
		switch {
		case isGone(err):
			return nil, lost(err)
		case errors.As(err, &match):
			// Partly off screen without a backing pixmap
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	origin := image.Point{}
	if pos, err := xproto.TranslateCoordinates(c.x.conn, win, c.x.root, 0, 0).Reply(); err == nil {
		origin = image.Pt(int(pos.DstX), int(pos.DstY))
	}

	if c.cursor != nil {
		if err := c.cursor.overlay(img, origin); err != nil {
			logger.WithComponent("capture").Debug().Err(err).Msg("Failed to draw cursor")
		}
	}

	return &Frame{Image: img, Origin: origin, CapturedAt: time.Now()}, nil
}

// findCapturableChild recursively searches for a viewable InputOutput child
func (c *windowCapturer) findCapturableChild(parent xproto.Window) (xproto.Window, error) {
	tree, err := xproto.QueryTree(c.x.conn, parent).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to query tree: %w", err)
	}

	for _, child := range tree.Children {
		attrs, err := xproto.GetWindowAttributes(c.x.conn, child).Reply()
		if err != nil {
			continue
		}

		geom, err := xproto.GetGeometry(c.x.conn, xproto.Drawable(child)).Reply()
		if err != nil {
			continue
		}

		if attrs.Class == xproto.WindowClassInputOutput && attrs.MapState == xproto.MapStateViewable {
			if geom.Width > 10 && geom.Height > 10 {
				return child, nil
			}
		}

		if grandchild, err := c.findCapturableChild(child); err == nil {
			return grandchild, nil
		}
	}

	return 0, fmt.Errorf("no capturable child found")
}

func (c *windowCapturer) MinInterval() time.Duration {
	return 0
}

func (c *windowCapturer) Close() error {
	if c.redirected {
		// Checked so the request reaches the server before the connection
		// closes. The window may already be gone.
		_ = composite.UnredirectWindowChecked(c.x.conn, c.win, composite.RedirectAutomatic).Check()
	}
	c.x.close()
	return nil
}
