package render

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/starsong-studio/render-orchestrator/pkg/lyrics"
	"github.com/starsong-studio/render-orchestrator/pkg/timeline"
)

// State is the lifecycle of an export session.
type State int

const (
	StateIdle State = iota
	StatePriming
	StatePlaying
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePriming:
		return "priming"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FrameSink receives composited frames strictly in timestamp order, one call
// per tick. The capture/mux pipeline implements this. The frame buffer is
// reused between ticks, so implementations must encode before returning.
type FrameSink func(t float64, frame *image.RGBA) error

// DurationProber reports the duration of an audio source. Loading audio
// metadata is the one priming step whose failure is fatal to the session.
type DurationProber interface {
	Duration(ctx context.Context, audioURL string) (float64, error)
}

// Options configures one lyric-video export session.
type Options struct {
	AudioURL  string
	Lyrics    string
	ImageURLs []string
	Label     string // child's name for the badge
	Width     int
	Height    int
	FPS       int

	// OnProgress receives normalized progress in [0,1]. Values are
	// non-decreasing; exactly one final 1.0 is reported on natural
	// completion. Optional.
	OnProgress func(float64)
}

// Session owns all media state of one export: the timeline, the lyric track,
// the image set and the frame buffer. The rendering surface belongs to
// exactly one session; resources are acquired in Priming and never touched
// after a terminal state. Events addressed to a session that has already
// terminated are ignored, so a late callback from a cancelled export can
// never mutate shared state.
type Session struct {
	ID   uuid.UUID
	opts Options

	mu           sync.Mutex
	state        State
	cancelled    bool
	lastProgress float64
	finalSent    bool

	tl     timeline.Timeline
	track  lyrics.Track
	images *ImageSet
}

// NewSession prepares an idle session. Nothing is loaded until Run.
func NewSession(opts Options) *Session {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	return &Session{
		ID:    uuid.New(),
		opts:  opts,
		state: StateIdle,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel requests cooperative cancellation. No further ticks fire after this
// returns; Run settles with ErrCancelled, which callers must treat as an
// expected outcome, never a failure to surface to users.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Run drives the full state machine: Priming (parallel image loads plus the
// audio metadata probe), Playing (one compositor tick per output frame,
// frames handed to the sink in order), then Stopped at natural end of media.
// Every failure funnels into the terminal Failed state and is returned.
func (s *Session) Run(ctx context.Context, prober DurationProber, fetcher ImageFetcher, sink FrameSink) error {
	if !s.transition(StateIdle, StatePriming) {
		return fmt.Errorf("session %s is not idle", s.ID)
	}

	comp, err := NewCompositor(s.opts.Width, s.opts.Height)
	if err != nil {
		return s.fail(fmt.Errorf("compositor init: %w", err))
	}

	// Image loads run concurrently with the audio metadata probe. A failed
	// image is recorded and substituted, never fatal.
	imagesCh := make(chan *ImageSet, 1)
	go func() {
		imagesCh <- LoadImageSet(ctx, fetcher, s.opts.ImageURLs)
	}()

	duration, err := prober.Duration(ctx, s.opts.AudioURL)
	if err != nil {
		<-imagesCh
		return s.fail(&ResourceLoadError{Resource: "audio", URL: s.opts.AudioURL, Err: err})
	}
	if duration <= 0 {
		<-imagesCh
		return s.fail(&ResourceLoadError{Resource: "audio", URL: s.opts.AudioURL,
			Err: fmt.Errorf("non-positive duration %.3f", duration)})
	}

	s.images = <-imagesCh
	if s.images.LoadedCount() < s.images.Len() {
		log.Printf("Session %s: %d of %d background images unavailable, substituting fallback",
			s.ID, s.images.Len()-s.images.LoadedCount(), s.images.Len())
	}

	s.tl = timeline.New(duration, s.images.Len())
	s.track = lyrics.Segment(s.opts.Lyrics)

	if !s.transition(StatePriming, StatePlaying) {
		return s.settleCancelled()
	}

	frame := comp.NewFrame()
	totalFrames := int(duration * float64(s.opts.FPS))
	if totalFrames < 1 {
		totalFrames = 1
	}

	for i := 0; i < totalFrames; i++ {
		if ctx.Err() != nil {
			s.Cancel()
		}
		t := float64(i) / float64(s.opts.FPS)
		if !s.tick(t) {
			return s.settleCancelled()
		}

		spec := FrameSpec{
			Label: s.opts.Label,
			Lines: s.track.ActiveLines(t, s.tl.LyricsStart(), s.tl.LyricsEnd()),
		}
		if s.images.Len() > 0 {
			spec.Background = s.images.At(s.tl.ActiveImageIndex(t))
		}
		comp.DrawFrame(frame, spec)

		if err := sink(t, frame); err != nil {
			return s.fail(fmt.Errorf("capture pipeline: %w", err))
		}
	}

	return s.stop()
}

// tick records progress for time t. It returns false, with no side effects,
// when the session is no longer playing. This is the late-callback guard:
// after cancellation an in-flight tick is a no-op.
func (s *Session) tick(t float64) bool {
	s.mu.Lock()
	if s.cancelled || s.state != StatePlaying {
		s.mu.Unlock()
		return false
	}
	p := s.tl.Progress(t)
	if p < s.lastProgress {
		p = s.lastProgress
	}
	s.lastProgress = p
	cb := s.opts.OnProgress
	s.mu.Unlock()

	if cb != nil {
		cb(p)
	}
	return true
}

// stop is the natural Playing -> Stopped transition. It reports the final
// progress of exactly 1, exactly once.
func (s *Session) stop() error {
	s.mu.Lock()
	if s.cancelled || s.state != StatePlaying {
		s.mu.Unlock()
		return s.settleCancelled()
	}
	s.state = StateStopped
	alreadySent := s.finalSent
	s.finalSent = true
	s.lastProgress = 1
	cb := s.opts.OnProgress
	s.mu.Unlock()

	if cb != nil && !alreadySent {
		cb(1)
	}
	return nil
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.state = StateFailed
	s.mu.Unlock()
	return err
}

func (s *Session) settleCancelled() error {
	s.mu.Lock()
	s.state = StateFailed
	s.mu.Unlock()
	return ErrCancelled
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.state != from {
		return false
	}
	s.state = to
	return true
}
