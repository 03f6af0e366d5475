package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starsong-studio/render-orchestrator/internal/database"
	"github.com/starsong-studio/render-orchestrator/internal/models"
	"github.com/starsong-studio/render-orchestrator/internal/services"
	"github.com/starsong-studio/render-orchestrator/pkg/audio"
	"github.com/starsong-studio/render-orchestrator/pkg/encode"
	"github.com/starsong-studio/render-orchestrator/pkg/logger"
	"github.com/starsong-studio/render-orchestrator/pkg/render"
)

// Default output settings for lyric video exports
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultFPS    = 30
)

// Processor runs one export job at a time: it primes a render session,
// streams its frames into an encode pipeline and records progress as it
// goes.
type Processor struct {
	repo        *database.ExportRepository
	broadcaster *services.ProgressBroadcaster
	registry    *services.CancelRegistry
	probe       encode.CapabilityProbe

	StoragePath string
	VideosPath  string
	TempPath    string
	FFmpegPath  string
	FFprobePath string

	// Configured render defaults, applied when a job leaves them unset.
	RenderWidth  int
	RenderHeight int
	RenderFPS    int
}

// NewProcessor creates a new export processor
func NewProcessor(
	repo *database.ExportRepository,
	broadcaster *services.ProgressBroadcaster,
	registry *services.CancelRegistry,
	probe encode.CapabilityProbe,
) *Processor {
	return &Processor{
		repo:        repo,
		broadcaster: broadcaster,
		registry:    registry,
		probe:       probe,
	}
}

// Process runs a single export job to completion. The returned error is nil
// on success, render.ErrCancelled when the job was cancelled, and the
// underlying failure otherwise. Job output fields are filled in on success.
func (p *Processor) Process(job *models.ExportJob) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.registry.Register(job.ID, cancel)
	defer p.registry.Release(job.ID)

	rl, err := logger.NewRenderLogger(p.StoragePath, job.ID)
	if err != nil {
		return fmt.Errorf("failed to create render log: %w", err)
	}

	switch job.Kind {
	case models.KindLyricVideo:
		err = p.processLyricVideo(ctx, job, rl)
	case models.KindCover:
		err = p.processCover(ctx, cancel, job, rl)
	default:
		err = fmt.Errorf("unknown export kind %q", job.Kind)
	}

	if err != nil {
		rl.Error("%v", err)
		rl.Close(false, err.Error())
		return err
	}
	rl.Close(true, fmt.Sprintf("Output: %s (%d bytes)", job.OutputPath, job.OutputSize))
	return nil
}

// tempAudio is the audio route of one export: a temp directory holding the
// downloaded track. Closing it releases the files.
type tempAudio struct {
	dir string
}

func (t *tempAudio) Close() error {
	return os.RemoveAll(t.dir)
}

func (p *Processor) processLyricVideo(ctx context.Context, job *models.ExportJob, rl *logger.RenderLogger) error {
	rl.Phase("Priming", "Loading source material")
	rl.Property("child_name", job.ChildName)
	rl.Property("audio_url", job.AudioURL)

	var imageURLs []string
	if job.ImageURLs != "" {
		if err := json.Unmarshal([]byte(job.ImageURLs), &imageURLs); err != nil {
			return fmt.Errorf("invalid image URL list: %w", err)
		}
	}
	rl.Property("image_count", len(imageURLs))

	width, height, fps := job.Width, job.Height, job.FPS
	if width <= 0 || height <= 0 {
		width, height = p.RenderWidth, p.RenderHeight
	}
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	if fps <= 0 {
		fps = p.RenderFPS
	}
	if fps <= 0 {
		fps = DefaultFPS
	}

	profile, err := encode.Negotiate(p.probe)
	if err != nil {
		return err
	}
	rl.Info("Negotiated profile %s (%s)", profile.Name, profile.Container)

	workDir, err := os.MkdirTemp(p.TempPath, fmt.Sprintf("export-%d-", job.ID))
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	graph := &tempAudio{dir: workDir}

	fetcher := &audio.Fetcher{}
	audioPath, err := fetcher.FetchAudio(ctx, job.AudioURL, workDir)
	if err != nil {
		graph.Close()
		return &render.ResourceLoadError{Resource: "audio", URL: job.AudioURL, Err: err}
	}
	rl.Info("Audio fetched to %s", audioPath)

	outPath := filepath.Join(p.VideosPath, fmt.Sprintf("export_%d.%s", job.ID, profile.Container))
	engineAudio := audioPath
	if !profile.HasAudio {
		engineAudio = ""
	}

	// The pipeline owns the audio graph from here; it releases the temp
	// files on every exit path.
	pipeline, err := encode.NewPipeline(profile, graph, encode.EngineOptions{
		Width:      width,
		Height:     height,
		FPS:        fps,
		AudioPath:  engineAudio,
		OutputPath: outPath,
		FFmpegPath: p.FFmpegPath,
	})
	if err != nil {
		graph.Close()
		return err
	}
	if err := pipeline.Start(ctx); err != nil {
		return err
	}

	session := render.NewSession(render.Options{
		AudioURL:  audioPath,
		Lyrics:    job.Lyrics,
		ImageURLs: imageURLs,
		Label:     job.ChildName,
		Width:     width,
		Height:    height,
		FPS:       fps,
		OnProgress: func(progress float64) {
			// The render and encode phases share the 5..90 band; the mux
			// finalization owns the rest.
			p.reportProgress(job, "Rendering", 5+int(progress*85))
		},
	})

	job.SessionID = session.ID.String()
	p.reportProgress(job, "Priming", 5)
	rl.Property("session_id", job.SessionID)

	rl.Phase("Rendering", fmt.Sprintf("%dx%d at %d fps", width, height, fps))
	prober := audio.Prober{FFprobePath: p.FFprobePath}
	if err := session.Run(ctx, prober, &render.HTTPImageFetcher{}, pipeline.Sink()); err != nil {
		pipeline.Abort()
		return err
	}
	rl.Info("Encoded %d chunks", pipeline.ChunkCount())

	rl.Phase("Finalizing", "Closing container")
	p.reportProgress(job, "Finalizing", 95)
	finalPath, err := pipeline.Finish()
	if err != nil {
		return err
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return fmt.Errorf("output missing after mux: %w", err)
	}

	job.OutputPath = finalPath
	job.OutputSize = info.Size()
	job.MimeType = profile.MimeType
	rl.Success("Lyric video finished: %s", finalPath)
	return nil
}

func (p *Processor) processCover(ctx context.Context, cancel context.CancelFunc, job *models.ExportJob, rl *logger.RenderLogger) error {
	rl.Phase("Cover export", fmt.Sprintf("theme=%s format=%s", job.Theme, job.Format))

	workDir, err := os.MkdirTemp(p.TempPath, fmt.Sprintf("cover-%d-", job.ID))
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	outPath := filepath.Join(p.VideosPath, fmt.Sprintf("export_%d.mp4", job.ID))

	exporter := encode.NewCoverExporter(encode.CoverOptions{
		ChildName:  job.ChildName,
		Theme:      job.Theme,
		Format:     render.CoverFormat(job.Format),
		AudioURL:   job.AudioURL,
		OutputPath: outPath,
		WorkDir:    workDir,
		FFmpegPath: p.FFmpegPath,
		OnProgress: func(pct int) {
			p.reportProgress(job, coverStep(pct), pct)
		},
	}, p.probe)

	// Re-registering replaces the job's registry entry, so the replacement
	// must keep the context cancel alongside the exporter's own flag.
	p.registry.Register(job.ID, func() {
		cancel()
		exporter.Cancel()
	})

	prober := audio.Prober{FFprobePath: p.FFprobePath}
	if err := exporter.Run(ctx, &audio.Fetcher{}, prober); err != nil {
		return err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("output missing after transcode: %w", err)
	}

	job.OutputPath = outPath
	job.OutputSize = info.Size()
	job.MimeType = encode.ProfileH264AAC.MimeType
	rl.Success("Cover video finished: %s", outPath)
	return nil
}

// coverStep names the cover phase a given percent falls in, for the
// progress surface.
func coverStep(pct int) string {
	switch {
	case pct < 20:
		return "Building cover"
	case pct < 30:
		return "Fetching audio"
	case pct < 95:
		return "Transcoding"
	default:
		return "Finalizing"
	}
}

// reportProgress persists and broadcasts a progress change. Regressions are
// dropped so the surface only ever moves forward.
func (p *Processor) reportProgress(job *models.ExportJob, step string, pct int) {
	if pct <= job.Progress && step == job.CurrentStep {
		return
	}
	if pct > job.Progress {
		job.Progress = pct
	}
	job.CurrentStep = step
	if err := p.repo.Update(job); err != nil {
		return
	}
	p.broadcaster.BroadcastFromJob(job, step)
}
