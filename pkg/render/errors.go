package render

import (
	"errors"
	"fmt"
)

// ErrCancelled marks a deliberate, user-initiated stop. It is never a real
// failure and must never be surfaced to end users as "something went wrong".
var ErrCancelled = errors.New("export cancelled")

// ResourceLoadError reports an audio or image resource that failed to fetch
// or decode. Image failures are recovered locally with a fallback; an audio
// failure is fatal to the session.
type ResourceLoadError struct {
	Resource string // "audio" or "image"
	URL      string
	Err      error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("failed to load %s %q: %v", e.Resource, e.URL, e.Err)
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }

// IsCancellation reports whether err is the cooperative-cancellation outcome
// rather than a genuine failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled)
}
