package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"testing"
)

// stubFetcher serves canned images and scripted failures, counting calls.
type stubFetcher struct {
	mu       sync.Mutex
	images   map[string]image.Image
	failures map[string]int // remaining failures before success
	calls    map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		images:   make(map[string]image.Image),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (f *stubFetcher) FetchImage(_ context.Context, url string) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.failures[url] > 0 {
		f.failures[url]--
		return nil, errors.New("fetch refused")
	}
	img, ok := f.images[url]
	if !ok {
		return nil, errors.New("no such image")
	}
	return img, nil
}

func tintedImage(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestLoadImageSetFailedSlotSubstitutesFirstLoaded(t *testing.T) {
	// Image #2 of 4 never loads; times mapping to its interval must get the
	// first successfully loaded image instead, without aborting anything.
	f := newStubFetcher()
	urls := []string{"a", "b", "c", "d"}
	f.images["a"] = tintedImage(color.RGBA{1, 0, 0, 255})
	f.images["c"] = tintedImage(color.RGBA{3, 0, 0, 255})
	f.images["d"] = tintedImage(color.RGBA{4, 0, 0, 255})
	// "b" always fails

	set := LoadImageSet(context.Background(), f, urls)

	if set.Len() != 4 {
		t.Fatalf("Len = %d, want 4", set.Len())
	}
	if set.LoadedCount() != 3 {
		t.Fatalf("LoadedCount = %d, want 3", set.LoadedCount())
	}
	if set.At(1) != set.At(0) {
		t.Error("failed slot should substitute the first loaded image")
	}
	if set.At(2) == nil || set.At(3) == nil {
		t.Error("loaded slots must return their own image")
	}
}

func TestLoadImageSetRetriesOnce(t *testing.T) {
	f := newStubFetcher()
	f.images["flaky"] = tintedImage(color.RGBA{9, 0, 0, 255})
	f.failures["flaky"] = 1 // first attempt fails, retry succeeds

	set := LoadImageSet(context.Background(), f, []string{"flaky"})
	if set.LoadedCount() != 1 {
		t.Fatalf("flaky image should load on retry, LoadedCount = %d", set.LoadedCount())
	}
	if got := f.calls["flaky"]; got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}

	f2 := newStubFetcher()
	f2.failures["gone"] = 99
	set2 := LoadImageSet(context.Background(), f2, []string{"gone"})
	if set2.LoadedCount() != 0 {
		t.Fatal("permanently failing image should stay unavailable")
	}
	if got := f2.calls["gone"]; got != 2 {
		t.Errorf("exactly one retry expected, got %d attempts", got)
	}
}

func TestLoadImageSetAllFailed(t *testing.T) {
	f := newStubFetcher()
	set := LoadImageSet(context.Background(), f, []string{"x", "y"})
	if set.LoadedCount() != 0 {
		t.Fatalf("LoadedCount = %d, want 0", set.LoadedCount())
	}
	for i := 0; i < set.Len(); i++ {
		if set.At(i) != nil {
			t.Errorf("slot %d should be nil when nothing loaded", i)
		}
	}
}

func TestLoadImageSetSlotOrderIndependentOfCompletion(t *testing.T) {
	// Slots are assigned by original index, however loads interleave.
	f := newStubFetcher()
	var urls []string
	for i := 0; i < 8; i++ {
		url := fmt.Sprintf("img-%d", i)
		urls = append(urls, url)
		f.images[url] = tintedImage(color.RGBA{uint8(i + 1), 0, 0, 255})
	}

	set := LoadImageSet(context.Background(), f, urls)
	for i := 0; i < 8; i++ {
		r, _, _, _ := set.At(i).At(0, 0).RGBA()
		if uint8(r>>8) != uint8(i+1) {
			t.Errorf("slot %d holds the wrong image (r=%d)", i, r>>8)
		}
	}
}
