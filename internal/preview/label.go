package preview

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	labelPadding  = 5
	labelFontSize = 13 // basicfont size
)

var labelBackground = color.RGBA{0, 0, 0, 160}

// drawLabel writes text in the top-left corner of img over a translucent box
func drawLabel(img *image.RGBA, text string) {
	if text == "" {
		return
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: face,
	}

	width := d.MeasureString(text).Ceil()
	box := image.Rect(0, 0, width+labelPadding*2, labelFontSize+labelPadding*2).Intersect(img.Rect)
	draw.Draw(img, box, image.NewUniform(labelBackground), image.Point{}, draw.Over)

	d.Dot = fixed.Point26_6{X: fixed.I(labelPadding), Y: fixed.I(labelPadding + labelFontSize)}
	d.DrawString(text)
}
