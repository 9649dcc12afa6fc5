package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// x11Session is a private connection to the X server. Every backend opens
// its own so closing one never disturbs another.
type x11Session struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo
}

func openX11() (*x11Session, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	return &x11Session{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}, nil
}

func (s *x11Session) close() {
	s.conn.Close()
}

// getImage reads a rectangle of drawable as RGBA
func (s *x11Session) getImage(d xproto.Drawable, r image.Rectangle) (*image.RGBA, error) {
	reply, err := xproto.GetImage(
		s.conn,
		xproto.ImageFormatZPixmap,
		d,
		int16(r.Min.X), int16(r.Min.Y),
		uint16(r.Dx()), uint16(r.Dy()),
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, err
	}
	return bgraToRGBA(reply.Data, r.Dx(), r.Dy(), s.screen.RootDepth)
}

// bgraToRGBA converts a 24/32-bit ZPixmap image to RGBA
func bgraToRGBA(data []byte, width, height int, depth byte) (*image.RGBA, error) {
	if depth != 24 && depth != 32 {
		return nil, fmt.Errorf("unsupported depth %d", depth)
	}
	if len(data) < width*height*4 {
		return nil, fmt.Errorf("short image data: %d bytes for %dx%d", len(data), width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height*4; i += 4 {
		img.Pix[i] = data[i+2]
		img.Pix[i+1] = data[i+1]
		img.Pix[i+2] = data[i]
		img.Pix[i+3] = 255
	}
	return img, nil
}

// isGone reports whether err means the window or drawable was destroyed
func isGone(err error) bool {
	var we xproto.WindowError
	var de xproto.DrawableError
	return errors.As(err, &we) || errors.As(err, &de)
}

// readWorkArea returns the _NET_WORKAREA rectangle of the current desktop,
// which excludes panels and docks.
func (s *x11Session) readWorkArea() (image.Rectangle, error) {
	values, err := s.cardinals("_NET_WORKAREA")
	if err != nil {
		return image.Rectangle{}, err
	}

	desktop := 0
	if cur, err := s.cardinals("_NET_CURRENT_DESKTOP"); err == nil && len(cur) > 0 {
		desktop = int(cur[0])
	}
	return workAreaFor(values, desktop)
}

// workAreaFor picks desktop's rectangle out of the flat x,y,w,h list
func workAreaFor(values []uint32, desktop int) (image.Rectangle, error) {
	if len(values) < 4 {
		return image.Rectangle{}, fmt.Errorf("_NET_WORKAREA has %d values", len(values))
	}
	if (desktop+1)*4 > len(values) {
		desktop = 0
	}
	v := values[desktop*4 : desktop*4+4]
	return image.Rect(int(v[0]), int(v[1]), int(v[0]+v[2]), int(v[1]+v[3])), nil
}

func (s *x11Session) cardinals(name string) ([]uint32, error) {
	atom, err := xproto.InternAtom(s.conn, true, uint16(len(name)), name).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to intern %s: %w", name, err)
	}
	if atom.Atom == xproto.AtomNone {
		return nil, fmt.Errorf("%s not supported by window manager", name)
	}

	reply, err := xproto.GetProperty(s.conn, false, s.root, atom.Atom,
		xproto.AtomCardinal, 0, 1024).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	if reply.Format != 32 {
		return nil, fmt.Errorf("%s not set", name)
	}

	out := make([]uint32, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		out = append(out, binary.LittleEndian.Uint32(reply.Value[i:]))
	}
	return out, nil
}
