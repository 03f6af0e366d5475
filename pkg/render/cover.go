package render

import (
	"image"
	"image/color"
	"math/rand"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// CoverFormat selects the cover video aspect.
type CoverFormat string

const (
	CoverSquare  CoverFormat = "square"  // 1080x1080
	CoverStories CoverFormat = "stories" // 1080x1920
)

// CoverDimensions returns the fixed output resolution for a format. Unknown
// formats fall back to square.
func CoverDimensions(format CoverFormat) (int, int) {
	if format == CoverStories {
		return 1080, 1920
	}
	return 1080, 1080
}

// coverPalette maps a theme to the gradient endpoints of its cover.
var coverPalette = map[string][2]color.RGBA{
	"adventure": {{R: 255, G: 140, B: 66, A: 255}, {R: 122, G: 44, B: 140, A: 255}},
	"lullaby":   {{R: 70, G: 90, B: 180, A: 255}, {R: 20, G: 24, B: 64, A: 255}},
	"birthday":  {{R: 255, G: 105, B: 180, A: 255}, {R: 255, G: 200, B: 60, A: 255}},
	"princess":  {{R: 230, G: 140, B: 220, A: 255}, {R: 110, G: 40, B: 150, A: 255}},
	"dinosaur":  {{R: 90, G: 180, B: 90, A: 255}, {R: 20, G: 70, B: 40, A: 255}},
	"space":     {{R: 40, G: 40, B: 110, A: 255}, {R: 8, G: 8, B: 30, A: 255}},
}

var defaultPalette = [2]color.RGBA{{R: 80, G: 120, B: 200, A: 255}, {R: 30, G: 30, B: 80, A: 255}}

// BuildCover synthesizes the static themed cover for the cover-only export
// path: a gradient background keyed by theme, scattered decorative note
// glyphs, and a centered card with the child's name. Decoration placement is
// intentionally random and cosmetic; the gradient, card and text are the
// structural output.
func BuildCover(childName, theme string, format CoverFormat) (*image.RGBA, error) {
	w, h := CoverDimensions(format)
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	palette, ok := coverPalette[theme]
	if !ok {
		palette = defaultPalette
	}
	drawVerticalGradient(img, palette[0], palette[1])

	scatterNotes(img, 14)

	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	nameFace, err := opentype.NewFace(bold, &opentype.FaceOptions{
		Size: float64(w) / 12, DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	defer nameFace.Close()

	drawNameCard(img, nameFace, childName)
	return img, nil
}

func drawVerticalGradient(img *image.RGBA, top, bottom color.RGBA) {
	b := img.Bounds()
	h := b.Dy()
	for y := 0; y < h; y++ {
		t := float64(y) / float64(h-1)
		c := color.RGBA{
			R: uint8(float64(top.R)*(1-t) + float64(bottom.R)*t),
			G: uint8(float64(top.G)*(1-t) + float64(bottom.G)*t),
			B: uint8(float64(top.B)*(1-t) + float64(bottom.B)*t),
			A: 255,
		}
		for x := 0; x < b.Dx(); x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// scatterNotes sprinkles translucent note heads across the middle of the
// cover. Placement is unseeded randomness; it stays inside an 8% margin so
// the corners and the name card area remain predictable.
func scatterNotes(img *image.RGBA, count int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	col := color.RGBA{255, 255, 255, 70}
	for i := 0; i < count; i++ {
		x := int(float64(w) * (0.08 + 0.84*rand.Float64()))
		y := int(float64(h) * (0.08 + 0.84*rand.Float64()))
		r := w / 60
		blendCircle(img, x, y, r, col)
		for yy := y - 3*r; yy <= y; yy++ {
			blendPixel(img, x+r-1, yy, col)
			blendPixel(img, x+r, yy, col)
		}
	}
}

func drawNameCard(img *image.RGBA, face font.Face, name string) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	textW := measure(face, name)
	padX := w / 16
	padY := w / 24
	cardW := textW + 2*padX
	cardH := w/12 + 2*padY

	x0 := (w - cardW) / 2
	y0 := (h - cardH) / 2
	rect := image.Rect(x0, y0, x0+cardW, y0+cardH)
	fillRoundedRect(img, rect, cardH/4, color.RGBA{255, 255, 255, 235})

	baseline := y0 + cardH/2 + int(float64(w)/12*0.36)
	drawText(img, face, name, (w-textW)/2, baseline, color.RGBA{40, 30, 70, 255})
}
