// Package scale computes preview sizes for captured frames.
package scale

import (
	"fmt"
	"math"
)

// Size is a width and height in pixels
type Size struct {
	W int `json:"width"`
	H int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}

// Zero reports whether either dimension is zero or negative
func (s Size) Zero() bool {
	return s.W <= 0 || s.H <= 0
}

// Mode is a preview scaling policy
type Mode int

const (
	Mode100 Mode = iota
	Mode50
	Mode150
	Mode200
	ModeFit
)

var modeNames = []struct {
	mode Mode
	name string
}{
	{Mode50, "50%"},
	{Mode100, "100%"},
	{Mode150, "150%"},
	{Mode200, "200%"},
	{ModeFit, "fit"},
}

// Modes lists every mode name in presentation order
func Modes() []string {
	names := make([]string, len(modeNames))
	for i, m := range modeNames {
		names[i] = m.name
	}
	return names
}

func (m Mode) String() string {
	for _, n := range modeNames {
		if n.mode == m {
			return n.name
		}
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses "50%", "100%", "150%", "200%" or "fit"
func ParseMode(s string) (Mode, error) {
	for _, n := range modeNames {
		if n.name == s {
			return n.mode, nil
		}
	}
	return Mode100, fmt.Errorf("unknown scale mode %q", s)
}

// Fixed reports whether the mode scales by a constant factor
func (m Mode) Fixed() bool {
	return m != ModeFit
}

func (m Mode) factor() float64 {
	switch m {
	case Mode50:
		return 0.5
	case Mode150:
		return 1.5
	case Mode200:
		return 2
	}
	return 1
}

// Scaler maps native frame sizes to preview sizes under one mode
type Scaler struct {
	Mode Mode
}

// Size returns the preview size for a frame of size native. box bounds the
// result in fit mode and is ignored otherwise. A degenerate native size is
// returned unchanged, as is native when fitting into a degenerate box.
func (s Scaler) Size(native, box Size) Size {
	if native.Zero() {
		return native
	}

	if s.Mode.Fixed() {
		f := s.Mode.factor()
		return Size{
			W: int(math.Round(float64(native.W) * f)),
			H: int(math.Round(float64(native.H) * f)),
		}
	}

	if box.Zero() {
		return native
	}
	ratio := math.Min(float64(box.W)/float64(native.W), float64(box.H)/float64(native.H))
	out := Size{
		W: int(math.Round(float64(native.W) * ratio)),
		H: int(math.Round(float64(native.H) * ratio)),
	}
	if out.W < 1 {
		out.W = 1
	}
	if out.H < 1 {
		out.H = 1
	}
	return out
}
