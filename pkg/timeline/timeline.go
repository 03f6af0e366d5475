package timeline

import "math"

const (
	// DefaultIntroRatio and DefaultOutroRatio carve the lyrics-active window
	// out of the total duration. 5% on each side keeps lyric text off the
	// instrumental intro and outro.
	DefaultIntroRatio = 0.05
	DefaultOutroRatio = 0.05
)

// Timeline maps playback time onto the media assets of one export: which
// background image is active and where the lyrics-active window sits.
// Computed once when the audio duration is known, immutable afterwards.
type Timeline struct {
	DurationSeconds float64
	IntroRatio      float64
	OutroRatio      float64
	ImageCount      int
}

// New builds a timeline for the given audio duration and image count using
// the default intro/outro margins.
func New(durationSeconds float64, imageCount int) Timeline {
	return Timeline{
		DurationSeconds: durationSeconds,
		IntroRatio:      DefaultIntroRatio,
		OutroRatio:      DefaultOutroRatio,
		ImageCount:      imageCount,
	}
}

// LyricsStart returns the start of the lyrics-active window in seconds.
func (tl Timeline) LyricsStart() float64 {
	return tl.DurationSeconds * tl.IntroRatio
}

// LyricsEnd returns the end of the lyrics-active window in seconds.
func (tl Timeline) LyricsEnd() float64 {
	return tl.DurationSeconds * (1 - tl.OutroRatio)
}

// ImageIntervalSeconds returns how long each background image stays on
// screen. With no images the single interval spans the whole duration.
func (tl Timeline) ImageIntervalSeconds() float64 {
	if tl.ImageCount <= 0 {
		return tl.DurationSeconds
	}
	return tl.DurationSeconds / float64(tl.ImageCount)
}

// ActiveImageIndex returns which of n images is on screen at time t for a
// total duration of d seconds. floor semantics: an interval boundary belongs
// to the later image. The result is clamped to [0, n-1], so times at or past
// the end of media keep showing the last image.
//
// Callers with zero images must skip the lookup entirely and fall back to a
// solid background.
func ActiveImageIndex(t float64, n int, d float64) int {
	if n <= 0 {
		return 0
	}
	if d <= 0 || t <= 0 {
		return 0
	}
	idx := int(math.Floor(t / (d / float64(n))))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// ActiveImageIndex is the method form over the timeline's own duration and
// image count.
func (tl Timeline) ActiveImageIndex(t float64) int {
	return ActiveImageIndex(t, tl.ImageCount, tl.DurationSeconds)
}

// Progress normalizes t into [0, 1] against the total duration.
func (tl Timeline) Progress(t float64) float64 {
	if tl.DurationSeconds <= 0 {
		return 0
	}
	p := t / tl.DurationSeconds
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
