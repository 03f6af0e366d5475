package render

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/starsong-studio/render-orchestrator/pkg/lyrics"
)

// Layout constants, all proportional to canvas size so output scales
// correctly across the supported resolutions.
const (
	lyricAnchorRatio   = 0.78 // vertical anchor of the current lyric line
	maxTextWidthRatio  = 0.85 // wrap limit for lyric text
	gradientTopAlpha   = 0.10
	gradientBotAlpha   = 0.80
	contextLineOpacity = 0.40 // previous/next lines are dimmed to this
)

// fallbackBackground is drawn when no background image loaded at all.
var fallbackBackground = color.RGBA{R: 24, G: 28, B: 52, A: 255}

// FrameSpec carries everything the compositor needs for one frame.
type FrameSpec struct {
	Background image.Image // nil means solid-color fallback
	Lines      lyrics.ActiveLineSet
	Label      string // the child's name, shown in the badge
}

// Compositor paints export frames: cover-fit background, legibility gradient,
// name badge, and the three-line lyric stack. It has no failure mode; missing
// pieces are skipped rather than aborting the frame, since DrawFrame runs on
// every tick of an export.
type Compositor struct {
	width  int
	height int

	currentFace font.Face
	contextFace font.Face
	badgeFace   font.Face

	currentSize float64
	contextSize float64
	badgeSize   float64
}

// NewCompositor builds a compositor for one output resolution. Font faces are
// sized from the canvas width and belong to this resolution only; wrapping is
// measured with these faces and never reused across resolutions.
func NewCompositor(width, height int) (*Compositor, error) {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}

	c := &Compositor{
		width:       width,
		height:      height,
		currentSize: float64(width) / 22,
		contextSize: float64(width) / 30,
		badgeSize:   float64(width) / 34,
	}

	c.currentFace, err = opentype.NewFace(bold, &opentype.FaceOptions{
		Size: c.currentSize, DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	c.contextFace, err = opentype.NewFace(regular, &opentype.FaceOptions{
		Size: c.contextSize, DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	c.badgeFace, err = opentype.NewFace(bold, &opentype.FaceOptions{
		Size: c.badgeSize, DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewFrame allocates a frame buffer matching the compositor's resolution.
func (c *Compositor) NewFrame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, c.width, c.height))
}

// DrawFrame paints one complete frame back to front.
func (c *Compositor) DrawFrame(dst *image.RGBA, spec FrameSpec) {
	if dst == nil {
		return
	}

	if spec.Background != nil {
		c.drawCoverFit(dst, spec.Background)
	} else {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(fallbackBackground), image.Point{}, draw.Src)
	}

	c.drawGradient(dst)

	if spec.Label != "" {
		c.drawBadge(dst, spec.Label)
	}

	c.drawLyricStack(dst, spec.Lines)
}

// drawCoverFit scales the image to fill the frame completely, preserving
// aspect ratio and cropping the longer axis centered.
func (c *Compositor) drawCoverFit(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	if sw <= 0 || sh <= 0 {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(fallbackBackground), image.Point{}, draw.Src)
		return
	}

	dw, dh := float64(c.width), float64(c.height)
	scale := dw / sw
	if dh/sh > scale {
		scale = dh / sh
	}

	// Visible source window after cropping, centered.
	visW := dw / scale
	visH := dh / scale
	x0 := sb.Min.X + int((sw-visW)/2)
	y0 := sb.Min.Y + int((sh-visH)/2)
	crop := image.Rect(x0, y0, x0+int(visW), y0+int(visH))

	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
}

// drawGradient darkens the frame top to bottom so lyric text stays legible
// regardless of image content.
func (c *Compositor) drawGradient(dst *image.RGBA) {
	b := dst.Bounds()
	h := b.Dy()
	if h <= 1 {
		return
	}
	for y := 0; y < h; y++ {
		a := gradientTopAlpha + (gradientBotAlpha-gradientTopAlpha)*float64(y)/float64(h-1)
		keep := 1 - a
		row := dst.Pix[(y+b.Min.Y-dst.Rect.Min.Y)*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			i := x * 4
			row[i] = uint8(float64(row[i]) * keep)
			row[i+1] = uint8(float64(row[i+1]) * keep)
			row[i+2] = uint8(float64(row[i+2]) * keep)
		}
	}
}

// drawBadge paints the rounded top-left badge with a music note and label.
func (c *Compositor) drawBadge(dst *image.RGBA, label string) {
	pad := int(c.badgeSize * 0.7)
	noteW := int(c.badgeSize * 0.9)
	textW := measure(c.badgeFace, label)

	badgeH := int(c.badgeSize * 2)
	badgeW := pad + noteW + pad/2 + textW + pad
	margin := int(c.badgeSize)

	rect := image.Rect(margin, margin, margin+badgeW, margin+badgeH)
	fillRoundedRect(dst, rect, badgeH/3, color.RGBA{0, 0, 0, 150})

	noteX := rect.Min.X + pad
	noteY := rect.Min.Y + badgeH/2
	c.drawNoteGlyph(dst, noteX, noteY, noteW)

	baseline := rect.Min.Y + badgeH/2 + int(c.badgeSize*0.36)
	drawText(dst, c.badgeFace, label, noteX+noteW+pad/2, baseline, color.RGBA{255, 255, 255, 255})
}

// drawNoteGlyph draws a small eighth-note: head, stem and flag.
func (c *Compositor) drawNoteGlyph(dst *image.RGBA, x, centerY, w int) {
	white := color.RGBA{255, 255, 255, 255}
	headR := w / 4
	headCX := x + headR
	headCY := centerY + w/4
	fillCircle(dst, headCX, headCY, headR, white)

	stemX := headCX + headR - 1
	stemTop := centerY - w/2
	for yy := stemTop; yy <= headCY; yy++ {
		setPixel(dst, stemX, yy, white)
		setPixel(dst, stemX+1, yy, white)
	}
	for i := 0; i < w/3; i++ {
		setPixel(dst, stemX+2+i, stemTop+i/2, white)
		setPixel(dst, stemX+2+i, stemTop+i/2+1, white)
	}
}

// drawLyricStack draws up to three lines around the fixed vertical anchor:
// previous above (dimmed), current at the anchor (full opacity, shadowed),
// next below (dimmed). Absent lines are skipped without shifting the others;
// wrapped rows do stack by measured row count.
func (c *Compositor) drawLyricStack(dst *image.RGBA, lines lyrics.ActiveLineSet) {
	if !lines.HasCurrent && lines.Previous == "" && lines.Next == "" {
		return
	}

	maxWidth := int(float64(c.width) * maxTextWidthRatio)
	anchor := int(float64(c.height) * lyricAnchorRatio)

	currentLH := int(c.currentSize * 1.3)
	contextLH := int(c.contextSize * 1.3)
	gap := int(c.contextSize * 0.8)

	var currentRows []string
	if lines.HasCurrent && lines.Current != "" {
		currentRows = wrapText(c.currentFace, lines.Current, maxWidth)
	}

	// The current block is centered on the anchor; context blocks are laid
	// out from the anchor and the current block's measured height, so a
	// missing sibling never shifts the lines that are present.
	blockH := len(currentRows) * currentLH
	if blockH == 0 {
		blockH = currentLH
	}
	topOfCurrent := anchor - blockH/2

	dim := uint8(255 * contextLineOpacity)
	shadow := color.RGBA{0, 0, 0, 200}
	white := color.RGBA{255, 255, 255, 255}
	// color.RGBA is alpha-premultiplied: 40% white is {dim, dim, dim, dim}.
	dimmed := color.RGBA{dim, dim, dim, dim}

	if lines.Previous != "" {
		rows := wrapText(c.contextFace, lines.Previous, maxWidth)
		baseline := topOfCurrent - gap - (len(rows)-1)*contextLH
		for _, row := range rows {
			c.drawCenteredText(dst, c.contextFace, row, baseline, dimmed)
			baseline += contextLH
		}
	}

	if len(currentRows) > 0 {
		offset := int(c.currentSize / 16)
		if offset < 2 {
			offset = 2
		}
		baseline := topOfCurrent + currentLH
		for _, row := range currentRows {
			w := measure(c.currentFace, row)
			x := (c.width - w) / 2
			drawText(dst, c.currentFace, row, x+offset, baseline+offset, shadow)
			drawText(dst, c.currentFace, row, x, baseline, white)
			baseline += currentLH
		}
	}

	if lines.Next != "" {
		rows := wrapText(c.contextFace, lines.Next, maxWidth)
		baseline := topOfCurrent + blockH + gap + contextLH
		for _, row := range rows {
			c.drawCenteredText(dst, c.contextFace, row, baseline, dimmed)
			baseline += contextLH
		}
	}
}

func (c *Compositor) drawCenteredText(dst *image.RGBA, face font.Face, s string, baseline int, col color.Color) {
	w := measure(face, s)
	drawText(dst, face, s, (c.width-w)/2, baseline, col)
}

// wrapText greedily packs words into rows no wider than maxWidth, measured
// with the active face. A single word wider than the limit gets its own row.
func wrapText(face font.Face, s string, maxWidth int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var rows []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if measure(face, candidate) <= maxWidth {
			current = candidate
		} else {
			rows = append(rows, current)
			current = word
		}
	}
	return append(rows, current)
}

func measure(face font.Face, s string) int {
	d := font.Drawer{Face: face}
	return d.MeasureString(s).Ceil()
}

func drawText(dst *image.RGBA, face font.Face, s string, x, baseline int, col color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

// fillRoundedRect alpha-blends a rounded rectangle onto dst.
func fillRoundedRect(dst *image.RGBA, rect image.Rectangle, radius int, col color.RGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if !insideRounded(x, y, rect, radius) {
				continue
			}
			blendPixel(dst, x, y, col)
		}
	}
}

func insideRounded(x, y int, rect image.Rectangle, r int) bool {
	cx, cy := x, y
	switch {
	case x < rect.Min.X+r && y < rect.Min.Y+r:
		cx, cy = rect.Min.X+r, rect.Min.Y+r
	case x >= rect.Max.X-r && y < rect.Min.Y+r:
		cx, cy = rect.Max.X-r-1, rect.Min.Y+r
	case x < rect.Min.X+r && y >= rect.Max.Y-r:
		cx, cy = rect.Min.X+r, rect.Max.Y-r-1
	case x >= rect.Max.X-r && y >= rect.Max.Y-r:
		cx, cy = rect.Max.X-r-1, rect.Max.Y-r-1
	default:
		return true
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

func fillCircle(dst *image.RGBA, cx, cy, r int, col color.RGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				setPixel(dst, x, y, col)
			}
		}
	}
}

func blendCircle(dst *image.RGBA, cx, cy, r int, col color.RGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				blendPixel(dst, x, y, col)
			}
		}
	}
}

func setPixel(dst *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(dst.Rect) {
		dst.SetRGBA(x, y, col)
	}
}

func blendPixel(dst *image.RGBA, x, y int, col color.RGBA) {
	if !image.Pt(x, y).In(dst.Rect) {
		return
	}
	old := dst.RGBAAt(x, y)
	a := uint32(col.A)
	inv := 255 - a
	dst.SetRGBA(x, y, color.RGBA{
		R: uint8((uint32(col.R)*a + uint32(old.R)*inv) / 255),
		G: uint8((uint32(col.G)*a + uint32(old.G)*inv) / 255),
		B: uint8((uint32(col.B)*a + uint32(old.B)*inv) / 255),
		A: old.A,
	})
}
