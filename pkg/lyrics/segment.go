package lyrics

import "strings"

// Track is the ordered sequence of display lines for one export session.
// It is built once from the raw lyrics block and never mutated afterwards.
type Track []string

// Segment splits a raw lyrics block into display lines: split on line breaks,
// trim each line, drop blanks, preserve order. Empty or blank-only input
// yields an empty track and no lyric text is ever drawn. Pure and idempotent.
func Segment(raw string) Track {
	var track Track
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			track = append(track, trimmed)
		}
	}
	return track
}

// ActiveLineSet is the previous/current/next triple displayed at one instant.
// Current is empty while playback is outside the lyrics-active window.
// Recomputed every frame, never persisted.
type ActiveLineSet struct {
	Previous string
	Current  string
	Next     string
	// HasCurrent distinguishes "no active line yet" from an empty track.
	HasCurrent bool
}

// ActiveLines selects the line triple for time t given the lyrics-active
// window [start, end). Before start no line is current; inside the window
// each line owns an equal slice of the window; at or past end the last line
// stays selected so the outro never overflows the track.
func (tr Track) ActiveLines(t, start, end float64) ActiveLineSet {
	if len(tr) == 0 {
		return ActiveLineSet{}
	}

	elapsed := t - start
	if elapsed < 0 {
		return ActiveLineSet{}
	}

	window := end - start
	if window <= 0 {
		return ActiveLineSet{}
	}

	perLine := window / float64(len(tr))
	idx := int(elapsed / perLine)
	if idx > len(tr)-1 {
		idx = len(tr) - 1
	}

	set := ActiveLineSet{Current: tr[idx], HasCurrent: true}
	if idx > 0 {
		set.Previous = tr[idx-1]
	}
	if idx < len(tr)-1 {
		set.Next = tr[idx+1]
	}
	return set
}
