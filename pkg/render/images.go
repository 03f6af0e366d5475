package render

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
)

// ImageSet holds the decoded background images of one export session. Slots
// are assigned by original list index regardless of load completion order, so
// playback-time image selection stays deterministic. A slot whose source
// failed to load is substituted with the first successfully loaded image; if
// nothing loaded at all, At returns nil and the compositor falls back to a
// solid background.
type ImageSet struct {
	images   []image.Image
	fallback image.Image
	loaded   int
}

// ImageFetcher retrieves and decodes a single image source.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (image.Image, error)
}

// HTTPImageFetcher fetches images over HTTP(S), or from local paths when the
// source has no scheme (useful for pre-generated assets on disk).
type HTTPImageFetcher struct {
	Client *http.Client
}

// FetchImage retrieves and decodes one image.
func (f *HTTPImageFetcher) FetchImage(ctx context.Context, url string) (image.Image, error) {
	var r io.ReadCloser
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		client := f.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		file, err := os.Open(url)
		if err != nil {
			return nil, err
		}
		r = file
	}
	defer r.Close()

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return img, nil
}

// LoadImageSet loads every source in parallel. Loads are independent: a slow
// or failed image never delays or aborts the others. Each source gets one
// retry before being recorded as unavailable.
func LoadImageSet(ctx context.Context, fetcher ImageFetcher, urls []string) *ImageSet {
	set := &ImageSet{images: make([]image.Image, len(urls))}

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(slot int, url string) {
			defer wg.Done()
			img, err := fetcher.FetchImage(ctx, url)
			if err != nil {
				// Exactly one retry per source.
				img, err = fetcher.FetchImage(ctx, url)
			}
			if err != nil {
				log.Printf("Background image %d unavailable (%s): %v", slot, url, err)
				return
			}
			set.images[slot] = img
		}(i, url)
	}
	wg.Wait()

	for _, img := range set.images {
		if img != nil {
			set.loaded++
			if set.fallback == nil {
				set.fallback = img
			}
		}
	}
	return set
}

// Len returns the number of slots, loaded or not.
func (s *ImageSet) Len() int { return len(s.images) }

// LoadedCount returns how many sources actually loaded.
func (s *ImageSet) LoadedCount() int { return s.loaded }

// At returns the image for a slot, substituting the first successfully loaded
// image for failed slots. Returns nil only when no image loaded at all.
func (s *ImageSet) At(i int) image.Image {
	if i < 0 || i >= len(s.images) {
		return s.fallback
	}
	if s.images[i] != nil {
		return s.images[i]
	}
	return s.fallback
}
