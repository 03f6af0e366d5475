package lyrics

import (
	"reflect"
	"strings"
	"testing"
)

func TestSegmentDropsBlanksAndTrims(t *testing.T) {
	got := Segment("Line one\n\nLine two\n  \nLine three")
	want := Track{"Line one", "Line two", "Line three"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segment = %#v, want %#v", got, want)
	}
}

func TestSegmentIdempotent(t *testing.T) {
	raw := "  hello \nworld\n\n again "
	once := Segment(raw)
	twice := Segment(strings.Join(once, "\n"))
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("re-segmenting changed the track: %#v vs %#v", once, twice)
	}
}

func TestSegmentEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\n\n", " \n\t\n "} {
		if got := Segment(raw); len(got) != 0 {
			t.Errorf("Segment(%q) = %#v, want empty track", raw, got)
		}
	}
}

func TestSegmentParagraphBlock(t *testing.T) {
	raw := "a\nb\n\nc\nd\n\ne\nf"
	if got := Segment(raw); len(got) != 6 {
		t.Errorf("3-paragraph block yielded %d lines, want 6", len(got))
	}
}

func TestActiveLinesWindowGating(t *testing.T) {
	track := Segment("one\ntwo\nthree\nfour")
	// 100s media, 5% margins: window [5, 95), 22.5s per line.
	const start, end = 5.0, 95.0

	if set := track.ActiveLines(4.9, start, end); set.HasCurrent {
		t.Errorf("t=4.9 before window should have no current line, got %q", set.Current)
	}

	set := track.ActiveLines(5.0, start, end)
	if !set.HasCurrent || set.Current != "one" {
		t.Errorf("t=5.0 current = %q, want %q", set.Current, "one")
	}
	if set.Previous != "" || set.Next != "two" {
		t.Errorf("t=5.0 prev/next = %q/%q, want \"\"/\"two\"", set.Previous, set.Next)
	}

	set = track.ActiveLines(94.9, start, end)
	if set.Current != "four" {
		t.Errorf("t=94.9 current = %q, want %q", set.Current, "four")
	}
	if set.Previous != "three" || set.Next != "" {
		t.Errorf("t=94.9 prev/next = %q/%q, want \"three\"/\"\"", set.Previous, set.Next)
	}

	// Past the window end the last line stays selected, no index overflow.
	if set := track.ActiveLines(99.9, start, end); set.Current != "four" {
		t.Errorf("t past window current = %q, want %q", set.Current, "four")
	}
}

func TestActiveLinesMidTrackHasBothNeighbors(t *testing.T) {
	track := Segment("one\ntwo\nthree\nfour")
	// Line 1 owns [27.5, 50) of the [5, 95) window.
	set := track.ActiveLines(30, 5, 95)
	if set.Current != "two" || set.Previous != "one" || set.Next != "three" {
		t.Errorf("t=30 got %q/%q/%q, want one/two/three", set.Previous, set.Current, set.Next)
	}
}

func TestActiveLinesEmptyTrack(t *testing.T) {
	var track Track
	if set := track.ActiveLines(50, 5, 95); set.HasCurrent {
		t.Error("empty track must never report a current line")
	}
}

func TestActiveLinesNonEmptyInsideWindow(t *testing.T) {
	track := Segment("solo")
	for _, at := range []float64{5, 20, 60, 94.99} {
		if set := track.ActiveLines(at, 5, 95); !set.HasCurrent {
			t.Errorf("t=%v inside window must select a line for a non-empty track", at)
		}
	}
}
