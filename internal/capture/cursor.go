package capture

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
)

// cursorSource draws the pointer into captured frames using XFixes
type cursorSource struct {
	conn *xgb.Conn
}

func newCursorSource(conn *xgb.Conn) (*cursorSource, error) {
	if err := xfixes.Init(conn); err != nil {
		return nil, fmt.Errorf("XFixes extension not available: %w", err)
	}
	// The server refuses XFixes requests until a version is negotiated
	if _, err := xfixes.QueryVersion(conn, 4, 0).Reply(); err != nil {
		return nil, fmt.Errorf("failed to query XFixes version: %w", err)
	}
	return &cursorSource{conn: conn}, nil
}

// overlay draws the cursor onto img, whose top-left pixel sits at origin in
// root coordinates
func (c *cursorSource) overlay(img *image.RGBA, origin image.Point) error {
	reply, err := xfixes.GetCursorImage(c.conn).Reply()
	if err != nil {
		return err
	}
	at := image.Pt(int(reply.X)-int(reply.Xhot), int(reply.Y)-int(reply.Yhot)).Sub(origin)
	blendCursor(img, reply.CursorImage, int(reply.Width), int(reply.Height), at)
	return nil
}

// blendCursor composites premultiplied ARGB cursor pixels over dst with the
// cursor's top-left at at
func blendCursor(dst *image.RGBA, argb []uint32, width, height int, at image.Point) {
	area := image.Rect(at.X, at.Y, at.X+width, at.Y+height).Intersect(dst.Rect)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			idx := (y-at.Y)*width + (x - at.X)
			if idx >= len(argb) {
				return
			}
			p := argb[idx]
			a := uint32(p >> 24)
			if a == 0 {
				continue
			}

			o := dst.PixOffset(x, y)
			inv := 255 - a
			dst.Pix[o] = uint8(((p>>16)&0xff) + uint32(dst.Pix[o])*inv/255)
			dst.Pix[o+1] = uint8(((p>>8)&0xff) + uint32(dst.Pix[o+1])*inv/255)
			dst.Pix[o+2] = uint8((p & 0xff) + uint32(dst.Pix[o+2])*inv/255)
			dst.Pix[o+3] = 255
		}
	}
}
