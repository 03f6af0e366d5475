package render

import (
	"testing"
)

func TestCoverDimensions(t *testing.T) {
	tests := []struct {
		format CoverFormat
		w, h   int
	}{
		{CoverSquare, 1080, 1080},
		{CoverStories, 1080, 1920},
		{CoverFormat("banner"), 1080, 1080}, // unknown falls back to square
		{CoverFormat(""), 1080, 1080},
	}
	for _, tt := range tests {
		w, h := CoverDimensions(tt.format)
		if w != tt.w || h != tt.h {
			t.Errorf("CoverDimensions(%q) = %dx%d, want %dx%d", tt.format, w, h, tt.w, tt.h)
		}
	}
}

func TestBuildCoverStructure(t *testing.T) {
	img, err := BuildCover("Nora", "space", CoverStories)
	if err != nil {
		t.Fatalf("BuildCover: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 1080 || got.Dy() != 1920 {
		t.Fatalf("cover bounds = %v, want 1080x1920", got)
	}

	// The gradient is theme keyed and the note scatter stays inside an 8%
	// margin, so the extreme corners carry the palette endpoints exactly.
	top := img.RGBAAt(0, 0)
	want := coverPalette["space"][0]
	if top != want {
		t.Errorf("top-left = %v, want theme top color %v", top, want)
	}
	bottom := img.RGBAAt(0, 1919)
	wantBottom := coverPalette["space"][1]
	if bottom != wantBottom {
		t.Errorf("bottom-left = %v, want theme bottom color %v", bottom, wantBottom)
	}

	// The name card is a near-white rounded rect centered on the cover.
	center := img.RGBAAt(540, 960)
	if center.R < 200 || center.G < 200 || center.B < 200 {
		t.Errorf("cover center = %v, want the light name card", center)
	}
}

func TestBuildCoverUnknownTheme(t *testing.T) {
	img, err := BuildCover("Sam", "no-such-theme", CoverSquare)
	if err != nil {
		t.Fatalf("BuildCover: %v", err)
	}
	if img.RGBAAt(0, 0) != defaultPalette[0] {
		t.Errorf("unknown theme should use the default palette, got %v", img.RGBAAt(0, 0))
	}
}

func TestBuildCoverFullyOpaque(t *testing.T) {
	// The decorative note scatter blends translucent white into the
	// gradient. Every output pixel must stay fully opaque; a decoration
	// that writes its own alpha punches see-through holes into the video.
	img, err := BuildCover("Iris", "lullaby", CoverSquare)
	if err != nil {
		t.Fatalf("BuildCover: %v", err)
	}
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			t.Fatalf("pixel %d has alpha %d, want 255", i/4, img.Pix[i])
		}
	}
}

func TestBuildCoverLongName(t *testing.T) {
	// A very long name widens the card; it must not panic or write outside
	// the image.
	img, err := BuildCover("Maximiliana Wilhelmina", "birthday", CoverSquare)
	if err != nil {
		t.Fatalf("BuildCover: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 1080 || got.Dy() != 1080 {
		t.Fatalf("cover bounds = %v, want 1080x1080", got)
	}
}
