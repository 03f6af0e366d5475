package render

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/starsong-studio/render-orchestrator/pkg/lyrics"
)

func newTestCompositor(t *testing.T, w, h int) *Compositor {
	t.Helper()
	c, err := NewCompositor(w, h)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	return c
}

func TestDrawFrameWithNoBackground(t *testing.T) {
	// Every image failed to load: the compositor must fall back to the solid
	// background and keep drawing, frame after frame, without panicking.
	c := newTestCompositor(t, 320, 180)
	frame := c.NewFrame()

	track := lyrics.Segment("hello\nworld")
	for i := 0; i < 5; i++ {
		c.DrawFrame(frame, FrameSpec{
			Label: "Mia",
			Lines: track.ActiveLines(float64(i), 0.5, 4.5),
		})
	}

	got := frame.RGBAAt(frame.Rect.Dx()/2, 2)
	if got.A != 255 {
		t.Errorf("fallback frame should be opaque, got alpha %d", got.A)
	}
}

func TestDrawFrameEmptySpec(t *testing.T) {
	c := newTestCompositor(t, 160, 90)
	frame := c.NewFrame()
	// No background, no label, no lines: still a valid (dark) frame.
	c.DrawFrame(frame, FrameSpec{})
	c.DrawFrame(nil, FrameSpec{}) // nil target is a no-op, not a crash
}

func TestDrawFrameCoverFit(t *testing.T) {
	c := newTestCompositor(t, 200, 100)
	frame := c.NewFrame()

	// A solid red source wider than the target: cover fit must fill every
	// pixel of the frame before the gradient dims it.
	src := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			src.SetRGBA(x, y, color.RGBA{200, 0, 0, 255})
		}
	}

	c.DrawFrame(frame, FrameSpec{Background: src})

	for _, pt := range []image.Point{{0, 0}, {199, 0}, {0, 99}, {199, 99}, {100, 50}} {
		px := frame.RGBAAt(pt.X, pt.Y)
		if px.R == 0 || px.G != 0 || px.B != 0 {
			t.Errorf("pixel %v = %v, want red-dominated cover fill", pt, px)
		}
	}
}

func TestGradientDarkensBottomMore(t *testing.T) {
	c := newTestCompositor(t, 100, 100)
	frame := c.NewFrame()

	bounded := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			bounded.SetRGBA(x, y, color.RGBA{200, 200, 200, 255})
		}
	}

	c.DrawFrame(frame, FrameSpec{Background: bounded})

	top := frame.RGBAAt(50, 2)
	bottom := frame.RGBAAt(50, 97)
	if bottom.R >= top.R {
		t.Errorf("gradient should darken the bottom: top R=%d bottom R=%d", top.R, bottom.R)
	}
}

func TestWrapTextGreedy(t *testing.T) {
	c := newTestCompositor(t, 1080, 1920)

	long := strings.Repeat("twinkle ", 12)
	rows := wrapText(c.currentFace, strings.TrimSpace(long), int(1080*maxTextWidthRatio))
	if len(rows) < 2 {
		t.Fatalf("long line should wrap into multiple rows, got %d", len(rows))
	}
	max := int(1080 * maxTextWidthRatio)
	for _, row := range rows {
		if measure(c.currentFace, row) > max {
			t.Errorf("row %q exceeds max width", row)
		}
	}

	if rows := wrapText(c.currentFace, "", 500); rows != nil {
		t.Errorf("empty text should yield no rows, got %v", rows)
	}
	if rows := wrapText(c.currentFace, "hi", 500); len(rows) != 1 || rows[0] != "hi" {
		t.Errorf("short text should stay one row, got %v", rows)
	}
}

func TestWrapDependsOnFace(t *testing.T) {
	big := newTestCompositor(t, 1920, 1080)
	small := newTestCompositor(t, 480, 270)

	text := "a fairly long lyric line that may or may not need wrapping"
	bigRows := wrapText(big.currentFace, text, int(1920*maxTextWidthRatio))
	smallRows := wrapText(small.currentFace, text, int(480*maxTextWidthRatio))
	if len(smallRows) < len(bigRows) {
		t.Errorf("smaller canvas should never need fewer rows: %d vs %d", len(smallRows), len(bigRows))
	}
}

func TestContextLinesBlendOverBackground(t *testing.T) {
	// Dimmed context lines are translucent white. Drawn over a uniform
	// mid-gray frame they may only brighten pixels, never darken them, and
	// glyph interiors must land strictly between the background and full
	// white. An invalid premultiplied color breaks both bounds.
	c := newTestCompositor(t, 320, 180)
	frame := c.NewFrame()
	bg := color.RGBA{100, 100, 100, 255}
	for y := 0; y < 180; y++ {
		for x := 0; x < 320; x++ {
			frame.SetRGBA(x, y, bg)
		}
	}

	// Context lines only: no current line, so no shadow pass darkens pixels.
	c.drawLyricStack(frame, lyrics.ActiveLineSet{Previous: "hello there", Next: "see you soon"})

	blended := 0
	for i := 0; i < len(frame.Pix); i += 4 {
		r := frame.Pix[i]
		if r < bg.R {
			t.Fatalf("dimmed text darkened the background: pixel %d R=%d", i/4, r)
		}
		if r > bg.R && r < 255 {
			blended++
		}
	}
	if blended == 0 {
		t.Error("expected glyph pixels partially blended between background and white")
	}
}

func TestBadgeDrawsOnlyWithLabel(t *testing.T) {
	c := newTestCompositor(t, 320, 180)

	plain := c.NewFrame()
	c.DrawFrame(plain, FrameSpec{})

	badged := c.NewFrame()
	c.DrawFrame(badged, FrameSpec{Label: "Theo"})

	same := true
	for i := range plain.Pix {
		if plain.Pix[i] != badged.Pix[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("label should change the frame (badge drawn)")
	}
}
