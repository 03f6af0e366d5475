package encode

import (
	"bufio"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/starsong-studio/render-orchestrator/pkg/render"
)

// CoverState is the lifecycle of a cover-only export.
type CoverState int

const (
	CoverIdle CoverState = iota
	CoverBuilding
	CoverFetchingAudio
	CoverLoadingEncoder
	CoverTranscoding
	CoverDone
	CoverFailed
)

func (s CoverState) String() string {
	switch s {
	case CoverIdle:
		return "idle"
	case CoverBuilding:
		return "building_cover"
	case CoverFetchingAudio:
		return "fetching_audio"
	case CoverLoadingEncoder:
		return "loading_encoder"
	case CoverTranscoding:
		return "transcoding"
	case CoverDone:
		return "done"
	case CoverFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AudioFetcher materializes an audio source as a local file the transcoder
// can read.
type AudioFetcher interface {
	FetchAudio(ctx context.Context, url, destDir string) (string, error)
}

// CoverOptions configures one cover-only export.
type CoverOptions struct {
	ChildName  string
	Theme      string
	Format     render.CoverFormat
	AudioURL   string
	OutputPath string
	WorkDir    string
	FFmpegPath string

	// OnProgress receives whole percents in [0,100]. The transcode phase
	// owns the 30 to 95 band; values never decrease. Optional.
	OnProgress func(int)
}

// transcodeFunc turns a still cover and an audio file into the final video.
// report receives the completed fraction of the transcode in [0,1].
type transcodeFunc func(ctx context.Context, coverPNG, audioPath, outPath string, duration float64, report func(float64)) error

// CoverExporter runs the cover-only export: a static themed cover held for
// the full length of the audio, H.264 video with AAC audio, stream-start
// metadata up front. All intermediate files live in WorkDir; the output path
// is only written on success, so a failed export never leaves a partial file
// behind.
type CoverExporter struct {
	opts  CoverOptions
	probe CapabilityProbe

	mu        sync.Mutex
	state     CoverState
	cancelled bool
	progress  int
	cancelRun context.CancelFunc

	transcode transcodeFunc
}

// NewCoverExporter prepares an idle exporter. Nothing runs until Run.
func NewCoverExporter(opts CoverOptions, probe CapabilityProbe) *CoverExporter {
	e := &CoverExporter{opts: opts, probe: probe, state: CoverIdle}
	e.transcode = e.ffmpegTranscode
	return e
}

// Enabled reports whether the host can run this export at all. Callers check
// it before accepting work; a disabled exporter fails Run immediately with a
// CapabilityUnavailableError.
func (e *CoverExporter) Enabled() bool {
	return e.probe.Supports(ProfileH264AAC)
}

// State returns the exporter's current lifecycle state.
func (e *CoverExporter) State() CoverState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress returns the last reported percent.
func (e *CoverExporter) Progress() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Cancel requests cancellation. Phase boundaries check the flag; an
// in-flight transcode is stopped through its context so a running ffmpeg
// child does not outlive the request.
func (e *CoverExporter) Cancel() {
	e.mu.Lock()
	e.cancelled = true
	cancel := e.cancelRun
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run drives the full export. Phase order is fixed: build the cover still,
// fetch the audio, bring up the encoder, transcode, then finalize. Every
// failure lands in the terminal Failed state with intermediates removed.
func (e *CoverExporter) Run(ctx context.Context, fetcher AudioFetcher, prober render.DurationProber) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancelRun = cancel
	e.mu.Unlock()

	if !e.transition(CoverIdle, CoverBuilding) {
		return fmt.Errorf("cover export is not idle")
	}
	if !e.Enabled() {
		return e.fail(&CapabilityUnavailableError{Feature: "cover video export"})
	}
	e.report(10)

	workDir := e.opts.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	coverPath := filepath.Join(workDir, "cover.png")
	defer os.Remove(coverPath)

	cover, err := render.BuildCover(e.opts.ChildName, e.opts.Theme, e.opts.Format)
	if err != nil {
		return e.fail(fmt.Errorf("cover build: %w", err))
	}
	f, err := os.Create(coverPath)
	if err != nil {
		return e.fail(fmt.Errorf("cover build: %w", err))
	}
	if err := png.Encode(f, cover); err != nil {
		f.Close()
		return e.fail(fmt.Errorf("cover build: %w", err))
	}
	if err := f.Close(); err != nil {
		return e.fail(fmt.Errorf("cover build: %w", err))
	}

	if !e.transition(CoverBuilding, CoverFetchingAudio) {
		return e.settleCancelled()
	}
	e.report(20)

	audioPath, err := fetcher.FetchAudio(ctx, e.opts.AudioURL, workDir)
	if err != nil {
		return e.fail(&render.ResourceLoadError{Resource: "audio", URL: e.opts.AudioURL, Err: err})
	}

	if !e.transition(CoverFetchingAudio, CoverLoadingEncoder) {
		return e.settleCancelled()
	}
	e.report(30)

	duration, err := prober.Duration(ctx, audioPath)
	if err != nil {
		return e.fail(&render.ResourceLoadError{Resource: "audio", URL: e.opts.AudioURL, Err: err})
	}

	if !e.transition(CoverLoadingEncoder, CoverTranscoding) {
		return e.settleCancelled()
	}

	// Transcode into a sibling temp file so the output path never holds a
	// partial result.
	tmpOut := e.opts.OutputPath + ".part"
	defer os.Remove(tmpOut)

	err = e.transcode(ctx, coverPath, audioPath, tmpOut, duration, func(ratio float64) {
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		e.report(30 + int(ratio*65))
	})
	if err != nil {
		if e.isCancelled() || ctx.Err() != nil {
			return e.settleCancelled()
		}
		return e.fail(&TranscodeError{Err: err})
	}
	if e.isCancelled() {
		return e.settleCancelled()
	}
	e.report(95)

	if err := os.Rename(tmpOut, e.opts.OutputPath); err != nil {
		return e.fail(&TranscodeError{Err: fmt.Errorf("finalize: %w", err)})
	}

	e.mu.Lock()
	e.state = CoverDone
	e.mu.Unlock()
	e.report(100)
	return nil
}

// report raises progress to pct, never lowering it, and notifies the
// callback outside the lock.
func (e *CoverExporter) report(pct int) {
	e.mu.Lock()
	if e.cancelled || pct <= e.progress {
		e.mu.Unlock()
		return
	}
	e.progress = pct
	cb := e.opts.OnProgress
	e.mu.Unlock()
	if cb != nil {
		cb(pct)
	}
}

func (e *CoverExporter) transition(from, to CoverState) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelled || e.state != from {
		return false
	}
	e.state = to
	return true
}

func (e *CoverExporter) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

func (e *CoverExporter) fail(err error) error {
	e.mu.Lock()
	e.state = CoverFailed
	e.mu.Unlock()
	return err
}

func (e *CoverExporter) settleCancelled() error {
	e.mu.Lock()
	e.state = CoverFailed
	e.mu.Unlock()
	return render.ErrCancelled
}

// ffmpegTranscode loops the cover still over the audio track. The output
// stops with the shorter input and carries its index up front so playback
// can start before the download completes.
func (e *CoverExporter) ffmpegTranscode(ctx context.Context, coverPNG, audioPath, outPath string, duration float64, report func(float64)) error {
	path := e.opts.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, path,
		"-y",
		"-loop", "1",
		"-i", coverPNG,
		"-i", audioPath,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-v", "error",
		outPath,
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if ratio, ok := parseProgressLine(scanner.Text(), duration); ok {
			report(ratio)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg transcode failed: %w\nOutput: %s", err, stderr.String())
	}
	return nil
}

// parseProgressLine extracts the completed fraction from one line of
// ffmpeg's -progress key=value stream.
func parseProgressLine(line string, duration float64) (float64, bool) {
	const key = "out_time_us="
	if duration <= 0 || !strings.HasPrefix(line, key) {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, key)), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return float64(us) / 1e6 / duration, true
}
