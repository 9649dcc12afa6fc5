package preview

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/AreaStream/internal/capture"
	"github.com/bryanchriswhite/AreaStream/internal/logger"
	"github.com/bryanchriswhite/AreaStream/internal/scale"
	"golang.org/x/image/draw"
)

// WindowOptions configures the preview window
type WindowOptions struct {
	Title     string
	Size      scale.Size
	ShowLabel bool
}

// Window is an X11 top-level window showing the preview. It belongs to this
// process, so the window catalog never offers it as a target.
type Window struct {
	conn    *xgb.Conn
	screen  *xproto.ScreenInfo
	win     xproto.Window
	gc      xproto.Gcontext
	format  pixelFormat
	maxRows func(stride int) int

	wmProtocols    xproto.Atom
	wmDeleteWindow xproto.Atom

	mu        sync.Mutex
	viewport  scale.Size
	label     string
	showLabel bool

	// gone is set once a request fails on the destroyed window or the
	// close event arrives. Resize and Present return early on it instead
	// of issuing a request that would fail the same way.
	gone atomic.Bool
	done chan struct{}
}

// pixelFormat is the server's ZPixmap layout for the root depth
type pixelFormat struct {
	depth         byte
	bytesPerPixel int
	scanlinePad   int
}

// NewWindow creates and maps the preview window
func NewWindow(opts WindowOptions) (*Window, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	format, err := findPixelFormat(setup, screen.RootDepth)
	if err != nil {
		conn.Close()
		return nil, err
	}

	size := opts.Size
	if size.Zero() {
		size = scale.Size{W: 640, H: 360}
	}

	w := &Window{
		conn:      conn,
		screen:    screen,
		format:    format,
		viewport:  size,
		showLabel: opts.ShowLabel,
		done:      make(chan struct{}),
	}
	// MaximumRequestLength is in 4-byte units; PutImage has a 24-byte header
	maxBytes := int(setup.MaximumRequestLength)*4 - 24
	w.maxRows = func(stride int) int { return bandRows(maxBytes, stride) }

	if err := w.create(opts.Title, size); err != nil {
		conn.Close()
		return nil, err
	}

	go w.handleEvents()

	logger.WithComponent("preview").Info().
		Int("width", size.W).
		Int("height", size.H).
		Uint32("window_id", uint32(w.win)).
		Msg("Preview window created")
	return w, nil
}

func (w *Window) create(title string, size scale.Size) error {
	log := logger.WithComponent("preview")

	windowID, err := xproto.NewWindowId(w.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	w.win = windowID

	// Black background
	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		0x000000,
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify,
	}

	err = xproto.CreateWindowChecked(
		w.conn,
		w.screen.RootDepth,
		w.win,
		w.screen.Root,
		0, 0,
		uint16(size.W), uint16(size.H),
		0,
		xproto.WindowClassInputOutput,
		w.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	if err := w.setWindowTitle(title); err != nil {
		log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := w.setWindowClass("areastream", "AreaStream"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window class")
	}
	if err := w.setPID(); err != nil {
		log.Warn().Err(err).Msg("Failed to set _NET_WM_PID")
	}
	if err := w.watchDeleteRequests(); err != nil {
		log.Warn().Err(err).Msg("Failed to register WM_DELETE_WINDOW")
	}

	if err := xproto.MapWindowChecked(w.conn, w.win).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(w.conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	w.gc = gc

	err = xproto.CreateGCChecked(
		w.conn,
		w.gc,
		xproto.Drawable(w.win),
		xproto.GcForeground|xproto.GcBackground,
		[]uint32{
			0xffffffff, // foreground: white
			0x00000000, // background: black
		},
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}

	w.conn.Sync()
	return nil
}

// handleEvents tracks the window size and notices when the window goes away
func (w *Window) handleEvents() {
	defer close(w.done)
	log := logger.WithComponent("preview")

	for {
		ev, err := w.conn.WaitForEvent()
		if ev == nil && err == nil {
			// Connection closed
			w.gone.Store(true)
			return
		}
		if err != nil {
			log.Debug().Err(err).Msg("X event error")
			continue
		}

		switch e := ev.(type) {
		case xproto.ConfigureNotifyEvent:
			if e.Window != w.win {
				continue
			}
			w.mu.Lock()
			w.viewport = scale.Size{W: int(e.Width), H: int(e.Height)}
			w.mu.Unlock()
		case xproto.ClientMessageEvent:
			if e.Type == w.wmProtocols && e.Format == 32 && xproto.Atom(e.Data.Data32[0]) == w.wmDeleteWindow {
				log.Info().Msg("Preview window close requested")
				w.gone.Store(true)
				xproto.DestroyWindow(w.conn, w.win)
				w.conn.Sync()
			}
		case xproto.DestroyNotifyEvent:
			if e.Window == w.win {
				w.gone.Store(true)
			}
		}
	}
}

// SetLabel sets the text drawn in the corner when labels are enabled
func (w *Window) SetLabel(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.label = text
}

func (w *Window) Viewport() scale.Size {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewport
}

// Resize asks the window manager for a new client size. The viewport
// follows when the ConfigureNotify arrives.
func (w *Window) Resize(size scale.Size) error {
	if w.gone.Load() {
		return ErrSurfaceGone
	}
	if size.Zero() {
		return nil
	}
	err := xproto.ConfigureWindowChecked(
		w.conn,
		w.win,
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(size.W), uint32(size.H)},
	).Check()
	if err != nil {
		return w.requestErr(err, "resize window")
	}
	return nil
}

// Present draws f scaled to size, centered in the viewport
func (w *Window) Present(f *capture.Frame, size scale.Size) error {
	if w.gone.Load() {
		return ErrSurfaceGone
	}

	w.mu.Lock()
	vp, label, showLabel := w.viewport, w.label, w.showLabel
	w.mu.Unlock()
	if vp.Zero() {
		return nil
	}

	canvas := compose(f.Image, vp, size)
	if showLabel {
		drawLabel(canvas, label)
	}

	if err := w.putImage(canvas); err != nil {
		return w.requestErr(err, "draw frame")
	}
	return nil
}

// requestErr turns a failed request on the preview window into
// ErrSurfaceGone when the window no longer exists
func (w *Window) requestErr(err error, what string) error {
	if isWindowGone(err) {
		w.gone.Store(true)
		return ErrSurfaceGone
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

// compose scales src to size and letterboxes it into a viewport-sized canvas
func compose(src *image.RGBA, vp, size scale.Size) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, vp.W, vp.H))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)

	dst := letterbox(vp, size)
	if size == (scale.Size{W: src.Rect.Dx(), H: src.Rect.Dy()}) {
		draw.Copy(canvas, dst.Min, src, src.Rect, draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(canvas, dst, src, src.Rect, draw.Src, nil)
	}
	return canvas
}

// letterbox centers a size-sized rectangle in vp. Oversized content is
// centered too and gets clipped evenly on both sides.
func letterbox(vp, size scale.Size) image.Rectangle {
	x := (vp.W - size.W) / 2
	y := (vp.H - size.H) / 2
	return image.Rect(x, y, x+size.W, y+size.H)
}

// putImage sends img in bands that fit the server's request size limit
func (w *Window) putImage(img *image.RGBA) error {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	data, stride, err := encodeZPixmap(img, w.format)
	if err != nil {
		return err
	}

	rows := w.maxRows(stride)
	if rows < 1 {
		return fmt.Errorf("scanline of %d bytes exceeds request limit", stride)
	}

	for y := 0; y < height; y += rows {
		n := rows
		if y+n > height {
			n = height - y
		}
		err := xproto.PutImageChecked(
			w.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(w.win),
			w.gc,
			uint16(width),
			uint16(n),
			0, int16(y),
			0,
			w.format.depth,
			data[y*stride:(y+n)*stride],
		).Check()
		if err != nil {
			return fmt.Errorf("failed to put image: %w", err)
		}
	}
	return nil
}

func bandRows(maxBytes, stride int) int {
	if stride <= 0 {
		return 0
	}
	return maxBytes / stride
}

func findPixelFormat(setup *xproto.SetupInfo, depth byte) (pixelFormat, error) {
	for _, format := range setup.PixmapFormats {
		if format.Depth == depth {
			return pixelFormat{
				depth:         depth,
				bytesPerPixel: int(format.BitsPerPixel) / 8,
				scanlinePad:   int(format.ScanlinePad) / 8,
			}, nil
		}
	}
	return pixelFormat{}, fmt.Errorf("no format found for depth %d", depth)
}

// encodeZPixmap converts RGBA to the server's BGRx layout with scanline
// padding
func encodeZPixmap(img *image.RGBA, f pixelFormat) ([]byte, int, error) {
	if f.bytesPerPixel != 3 && f.bytesPerPixel != 4 {
		return nil, 0, fmt.Errorf("unsupported bytes per pixel: %d", f.bytesPerPixel)
	}

	width, height := img.Rect.Dx(), img.Rect.Dy()
	pad := f.scanlinePad
	if pad <= 0 {
		pad = 1
	}
	unpadded := width * f.bytesPerPixel
	stride := ((unpadded + pad - 1) / pad) * pad

	data := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+width*4]
		row := data[y*stride:]
		for x := 0; x < width; x++ {
			s := src[x*4:]
			d := row[x*f.bytesPerPixel:]
			d[0] = s[2]
			d[1] = s[1]
			d[2] = s[0]
			if f.bytesPerPixel == 4 && f.depth == 32 {
				d[3] = s[3]
			}
		}
	}
	return data, stride, nil
}

// Close destroys the window and closes the connection
func (w *Window) Close() error {
	if !w.gone.Swap(true) {
		xproto.FreeGC(w.conn, w.gc)
		xproto.DestroyWindow(w.conn, w.win)
		w.conn.Sync()
	}
	w.conn.Close()
	<-w.done
	logger.WithComponent("preview").Info().Msg("Preview window closed")
	return nil
}

func (w *Window) setWindowTitle(title string) error {
	titleAtom, err := w.getAtom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := w.getAtom("UTF8_STRING")
	if err != nil {
		return err
	}

	return xproto.ChangePropertyChecked(
		w.conn,
		xproto.PropModeReplace,
		w.win,
		titleAtom,
		utf8Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

// setWindowClass sets WM_CLASS as instance\0class\0
func (w *Window) setWindowClass(instance, class string) error {
	classStr := instance + "\x00" + class + "\x00"
	return xproto.ChangePropertyChecked(
		w.conn,
		xproto.PropModeReplace,
		w.win,
		xproto.AtomWmClass,
		xproto.AtomString,
		8,
		uint32(len(classStr)),
		[]byte(classStr),
	).Check()
}

func (w *Window) setPID() error {
	pidAtom, err := w.getAtom("_NET_WM_PID")
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		w.conn,
		xproto.PropModeReplace,
		w.win,
		pidAtom,
		xproto.AtomCardinal,
		32,
		1,
		encodeCardinal(uint32(currentPID())),
	).Check()
}

func (w *Window) watchDeleteRequests() error {
	var err error
	if w.wmProtocols, err = w.getAtom("WM_PROTOCOLS"); err != nil {
		return err
	}
	if w.wmDeleteWindow, err = w.getAtom("WM_DELETE_WINDOW"); err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		w.conn,
		xproto.PropModeReplace,
		w.win,
		w.wmProtocols,
		xproto.AtomAtom,
		32,
		1,
		encodeCardinal(uint32(w.wmDeleteWindow)),
	).Check()
}

// getAtom gets an atom ID by name
func (w *Window) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(w.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
