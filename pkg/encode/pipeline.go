package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	"github.com/icza/mjpeg"

	"github.com/starsong-studio/render-orchestrator/pkg/render"
)

// AudioGraph is the audio routing held open for the lifetime of one capture.
// The pipeline owns its graph and closes it exactly once on every exit path,
// success, failure or cancellation alike.
type AudioGraph interface {
	Close() error
}

// EngineOptions carries the per-export parameters an encoder engine needs.
type EngineOptions struct {
	Width      int
	Height     int
	FPS        int
	AudioPath  string // local audio file, empty for silent profiles
	OutputPath string
	FFmpegPath string
}

// encoderEngine is the profile-specific half of the pipeline. WriteFrame is
// called strictly in timestamp order; either Finish or Abort is called
// exactly once afterwards.
type encoderEngine interface {
	Start(ctx context.Context) error
	WriteFrame(frame *image.RGBA) error
	Finish() error
	Abort()
}

// Pipeline turns an ordered stream of composited frames into a finished
// media file. Frames are handed to the engine as they arrive and batched
// into one-second chunks for accounting; the chunk list is what the progress
// surface reports on.
type Pipeline struct {
	profile Profile
	opts    EngineOptions
	engine  encoderEngine
	graph   AudioGraph

	mu          sync.Mutex
	started     bool
	closed      bool
	graphClosed bool
	chunkStart  float64
	pending     int
	chunks      []int
}

// NewPipeline builds the pipeline for a negotiated profile. The audio graph
// may be nil when the caller has no audio route to manage.
func NewPipeline(profile Profile, graph AudioGraph, opts EngineOptions) (*Pipeline, error) {
	engine, err := engineFor(profile, opts)
	if err != nil {
		return nil, err
	}
	return &Pipeline{profile: profile, opts: opts, engine: engine, graph: graph}, nil
}

func engineFor(profile Profile, opts EngineOptions) (encoderEngine, error) {
	switch profile.Name {
	case ProfileH264AAC.Name:
		return &ffmpegEngine{opts: opts}, nil
	case ProfileMJPEG.Name:
		return &mjpegEngine{opts: opts}, nil
	}
	return nil, &CapabilityUnavailableError{Feature: fmt.Sprintf("profile %q", profile.Name)}
}

// Profile returns the profile this pipeline encodes with.
func (p *Pipeline) Profile() Profile { return p.profile }

// Start brings up the encoder engine. It must be called before any frame is
// sunk.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return &EncodeError{Stage: "start", Err: fmt.Errorf("pipeline already started")}
	}
	if err := p.engine.Start(ctx); err != nil {
		p.releaseGraphLocked()
		p.closed = true
		return &EncodeError{Stage: "start", Err: err}
	}
	p.started = true
	return nil
}

// Sink adapts the pipeline to the render session's frame callback.
func (p *Pipeline) Sink() render.FrameSink {
	return func(t float64, frame *image.RGBA) error {
		return p.writeFrame(t, frame)
	}
}

func (p *Pipeline) writeFrame(t float64, frame *image.RGBA) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return &EncodeError{Stage: "frame", Err: fmt.Errorf("pipeline is closed")}
	}
	if !p.started {
		p.mu.Unlock()
		return &EncodeError{Stage: "frame", Err: fmt.Errorf("pipeline not started")}
	}
	// Seal the running chunk once a full second of media time has passed.
	if p.pending > 0 && t >= p.chunkStart+1.0 {
		p.chunks = append(p.chunks, p.pending)
		p.pending = 0
		p.chunkStart = t
	}
	p.pending++
	p.mu.Unlock()

	if err := p.engine.WriteFrame(frame); err != nil {
		p.Abort()
		return &EncodeError{Stage: "frame", Err: err}
	}
	return nil
}

// ChunkCount reports how many one-second chunks have been sealed so far.
func (p *Pipeline) ChunkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chunks)
}

// Finish seals the final partial chunk, finalizes the container and releases
// the audio graph. On success it returns the finished file's path.
func (p *Pipeline) Finish() (string, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", &EncodeError{Stage: "finish", Err: fmt.Errorf("pipeline is closed")}
	}
	p.closed = true
	if p.pending > 0 {
		p.chunks = append(p.chunks, p.pending)
		p.pending = 0
	}
	p.releaseGraphLocked()
	p.mu.Unlock()

	if err := p.engine.Finish(); err != nil {
		return "", &EncodeError{Stage: "finish", Err: err}
	}
	return p.opts.OutputPath, nil
}

// Abort tears the pipeline down without producing output. Safe to call more
// than once and after Finish.
func (p *Pipeline) Abort() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.releaseGraphLocked()
	p.mu.Unlock()

	p.engine.Abort()
}

func (p *Pipeline) releaseGraphLocked() {
	if p.graph == nil || p.graphClosed {
		return
	}
	p.graphClosed = true
	if err := p.graph.Close(); err != nil {
		log.Printf("Warning: audio graph close: %v", err)
	}
}

// ffmpegEngine streams PNG frames into an ffmpeg child process that muxes
// them with the audio track into an MP4.
type ffmpegEngine struct {
	opts   EngineOptions
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
}

func (e *ffmpegEngine) Start(ctx context.Context) error {
	path := e.opts.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}

	args := []string{
		"-y",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-framerate", fmt.Sprintf("%d", e.opts.FPS),
		"-i", "-",
	}
	if e.opts.AudioPath != "" {
		args = append(args, "-i", e.opts.AudioPath)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
	)
	if e.opts.AudioPath != "" {
		args = append(args,
			"-c:a", "aac",
			"-b:a", "192k",
			"-shortest",
		)
	}
	args = append(args, "-movflags", "+faststart", e.opts.OutputPath)

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = &e.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}
	e.cmd = cmd
	e.stdin = stdin
	return nil
}

func (e *ffmpegEngine) WriteFrame(frame *image.RGBA) error {
	if err := png.Encode(e.stdin, frame); err != nil {
		return fmt.Errorf("frame write: %w", err)
	}
	return nil
}

func (e *ffmpegEngine) Finish() error {
	if err := e.stdin.Close(); err != nil {
		return fmt.Errorf("ffmpeg stdin close: %w", err)
	}
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg mux failed: %w\nOutput: %s", err, e.stderr.String())
	}
	return nil
}

func (e *ffmpegEngine) Abort() {
	if e.stdin != nil {
		e.stdin.Close()
	}
	if e.cmd != nil && e.cmd.Process != nil {
		e.cmd.Process.Kill()
		e.cmd.Wait()
	}
	os.Remove(e.opts.OutputPath)
}

// mjpegEngine is the pure-Go fallback: Motion JPEG frames in an AVI
// container, no audio track.
type mjpegEngine struct {
	opts   EngineOptions
	writer mjpeg.AviWriter
	buf    bytes.Buffer
}

func (e *mjpegEngine) Start(_ context.Context) error {
	aw, err := mjpeg.New(e.opts.OutputPath, int32(e.opts.Width), int32(e.opts.Height), int32(e.opts.FPS))
	if err != nil {
		return fmt.Errorf("avi writer: %w", err)
	}
	e.writer = aw
	return nil
}

func (e *mjpegEngine) WriteFrame(frame *image.RGBA) error {
	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, frame, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("jpeg encode: %w", err)
	}
	if err := e.writer.AddFrame(e.buf.Bytes()); err != nil {
		return fmt.Errorf("avi frame: %w", err)
	}
	return nil
}

func (e *mjpegEngine) Finish() error {
	if err := e.writer.Close(); err != nil {
		return fmt.Errorf("avi finalize: %w", err)
	}
	return nil
}

func (e *mjpegEngine) Abort() {
	if e.writer != nil {
		e.writer.Close()
	}
	os.Remove(e.opts.OutputPath)
}
