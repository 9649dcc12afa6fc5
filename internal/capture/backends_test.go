package capture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/BurntSushi/xgb/xproto"
)

func TestBGRAToRGBA(t *testing.T) {
	data := []byte{
		10, 20, 30, 0, 40, 50, 60, 0,
		70, 80, 90, 0, 1, 2, 3, 0,
	}
	img, err := bgraToRGBA(data, 2, 2, 24)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{R: 30, G: 20, B: 10, A: 255}) {
		t.Errorf("pixel (0,0) = %v", got)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{R: 3, G: 2, B: 1, A: 255}) {
		t.Errorf("pixel (1,1) = %v", got)
	}

	if _, err := bgraToRGBA(data[:8], 2, 2, 24); err == nil {
		t.Error("expected error for short data")
	}
	if _, err := bgraToRGBA(data, 2, 2, 16); err == nil {
		t.Error("expected error for 16-bit depth")
	}
}

func TestBlendCursor(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range dst.Pix {
		dst.Pix[i] = 100
	}

	// 2x2 cursor: opaque red, transparent, half white (premultiplied), opaque blue
	argb := []uint32{0xffff0000, 0x00000000, 0x80808080, 0xff0000ff}
	blendCursor(dst, argb, 2, 2, image.Pt(3, 3))

	if got := dst.RGBAAt(3, 3); got != (color.RGBA{R: 255, G: 0, B: 0, A: 255}) {
		t.Errorf("opaque pixel = %v", got)
	}
	if got := dst.RGBAAt(2, 2); got.R != 100 {
		t.Errorf("pixel outside cursor changed: %v", got)
	}

	dst2 := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range dst2.Pix {
		dst2.Pix[i] = 100
	}
	blendCursor(dst2, argb, 2, 2, image.Pt(0, 0))
	if got := dst2.RGBAAt(1, 0); got.R != 100 {
		t.Errorf("transparent pixel changed: %v", got)
	}
	if got := dst2.RGBAAt(0, 1); got.R != 0x80+100*(255-0x80)/255 {
		t.Errorf("half pixel = %v", got)
	}

	blendCursor(dst2, argb, 2, 2, image.Pt(-5, -5))
}

func TestWorkAreaFor(t *testing.T) {
	values := []uint32{0, 0, 1920, 1040, 0, 32, 1920, 1048}

	got, err := workAreaFor(values, 1)
	if err != nil || got != image.Rect(0, 32, 1920, 1080) {
		t.Errorf("desktop 1: %v, %v", got, err)
	}
	got, _ = workAreaFor(values, 7)
	if got != image.Rect(0, 0, 1920, 1040) {
		t.Errorf("out of range desktop should use the first: %v", got)
	}
	if _, err := workAreaFor(values[:3], 0); err == nil {
		t.Error("expected error for short list")
	}
}

func TestIsGone(t *testing.T) {
	if !isGone(xproto.WindowError{}) {
		t.Error("BadWindow not recognised")
	}
	if !isGone(fmt.Errorf("wrapped: %w", xproto.DrawableError{})) {
		t.Error("wrapped BadDrawable not recognised")
	}
	if isGone(xproto.MatchError{}) || isGone(errors.New("timeout")) {
		t.Error("unrelated error treated as gone")
	}
}

func TestTargetBounds(t *testing.T) {
	d := twoDisplays()

	if got, _ := targetBounds(d, ScreenTarget(1)); got != image.Rect(1920, 0, 3200, 1024) {
		t.Errorf("screen 1 bounds %v", got)
	}
	if got, _ := targetBounds(d, AllScreensTarget()); got != image.Rect(0, 0, 3200, 1080) {
		t.Errorf("virtual bounds %v", got)
	}
	if _, err := targetBounds(d, ScreenTarget(2)); !errors.Is(err, ErrTargetLost) {
		t.Errorf("expected ErrTargetLost, got %v", err)
	}
	if _, err := targetBounds(&fakeDisplays{}, AllScreensTarget()); !errors.Is(err, ErrNoDisplays) {
		t.Errorf("expected ErrNoDisplays, got %v", err)
	}
}

func TestPrimaryIndex(t *testing.T) {
	d := &fakeDisplays{bounds: []image.Rectangle{
		image.Rect(-1280, 0, 0, 1024),
		image.Rect(0, 0, 1920, 1080),
	}}
	if got := PrimaryIndex(d); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := PrimaryIndex(&fakeDisplays{}); got != 0 {
		t.Errorf("expected 0 with no displays, got %d", got)
	}
}

func TestAreaCapturerCrops(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	src.SetRGBA(60, 10, color.RGBA{R: 200, A: 255})
	inner := &stillBackend{frame: &Frame{Image: src, Origin: image.Pt(-100, 0)}}

	c := newAreaCapturerFrom(inner, image.Rect(-50, 5, -30, 25))
	f, err := c.CaptureFrame()
	if err != nil {
		t.Fatalf("CaptureFrame failed: %v", err)
	}
	if f.Size() != image.Pt(20, 20) {
		t.Fatalf("unexpected size %v", f.Size())
	}
	if f.Origin != image.Pt(-50, 5) {
		t.Errorf("unexpected origin %v", f.Origin)
	}
	if got := f.Image.RGBAAt(10, 5); got.R != 200 {
		t.Errorf("crop offset wrong, got %v", got)
	}

	c.SetArea(image.Rect(500, 500, 600, 600))
	if f, err := c.CaptureFrame(); f != nil || err != nil {
		t.Errorf("area outside capture should yield no frame, got %v, %v", f, err)
	}
	if err := c.Close(); err != nil || !inner.closed {
		t.Error("close not forwarded")
	}
}

type stillBackend struct {
	frame  *Frame
	closed bool
}

func (b *stillBackend) CaptureFrame() (*Frame, error) { return b.frame, nil }
func (b *stillBackend) MinInterval() time.Duration    { return 0 }
func (b *stillBackend) Close() error                  { b.closed = true; return nil }

func TestBlitCapturer(t *testing.T) {
	d := twoDisplays()
	now := time.Unix(1000, 0)
	var requested []image.Rectangle

	c := &blitCapturer{
		displays: d,
		target:   ScreenTarget(1),
		workArea: image.Rect(0, 24, 3200, 1080),
		captureRect: func(r image.Rectangle) (*image.RGBA, error) {
			requested = append(requested, r)
			return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy())), nil
		},
		now: func() time.Time { return now },
	}
	if err := c.refreshBounds(); err != nil {
		t.Fatalf("refreshBounds failed: %v", err)
	}

	f, err := c.CaptureFrame()
	if err != nil {
		t.Fatalf("CaptureFrame failed: %v", err)
	}
	if requested[0] != image.Rect(1920, 24, 3200, 1024) {
		t.Errorf("taskbar not excluded: %v", requested[0])
	}
	if f.Origin != image.Pt(1920, 24) {
		t.Errorf("unexpected origin %v", f.Origin)
	}
	if c.MinInterval() != 33*time.Millisecond {
		t.Errorf("unexpected floor %v", c.MinInterval())
	}

	// Display unplugged: noticed only after the recheck interval
	d.bounds = d.bounds[:1]
	now = now.Add(500 * time.Millisecond)
	if _, err := c.CaptureFrame(); err != nil {
		t.Errorf("display count rechecked too early: %v", err)
	}
	now = now.Add(600 * time.Millisecond)
	if _, err := c.CaptureFrame(); !errors.Is(err, ErrTargetLost) {
		t.Errorf("expected ErrTargetLost, got %v", err)
	}
}

func TestRegistryBuild(t *testing.T) {
	r := DefaultRegistry()
	for _, key := range []BackendKey{
		{KindScreen, MethodComposite}, {KindScreen, MethodBlit},
		{KindAllScreens, MethodComposite}, {KindAllScreens, MethodBlit},
		{KindWindow, MethodComposite}, {KindWindow, MethodBlit},
		{KindCustomArea, MethodComposite},
	} {
		if _, ok := r.constructors[key]; !ok {
			t.Errorf("no constructor for %s", key)
		}
	}
	if _, err := r.Build(BackendConfig{Target: CustomAreaTarget(image.Rect(0, 0, 1, 1)), Method: MethodBlit}); !errors.Is(err, ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}
}
