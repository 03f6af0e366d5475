package worker

import (
	"context"
	"log"
	"time"

	"github.com/starsong-studio/render-orchestrator/internal/database"
	"github.com/starsong-studio/render-orchestrator/internal/models"
	"github.com/starsong-studio/render-orchestrator/internal/services"
	"github.com/starsong-studio/render-orchestrator/pkg/render"
)

// Worker processes queued export jobs
type Worker struct {
	repo         *database.ExportRepository
	broadcaster  *services.ProgressBroadcaster
	processor    *Processor
	pollInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorker creates a new export worker
func NewWorker(
	repo *database.ExportRepository,
	broadcaster *services.ProgressBroadcaster,
	processor *Processor,
	pollInterval time.Duration,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		repo:         repo,
		broadcaster:  broadcaster,
		processor:    processor,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins processing export jobs
func (w *Worker) Start() {
	log.Println("Export worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.processNext()

	// Then process on interval
	for {
		select {
		case <-w.ctx.Done():
			log.Println("Export worker stopped")
			return
		case <-ticker.C:
			w.processNext()
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	log.Println("Stopping export worker...")
	w.cancel()
}

// processNext processes the next queued export job
func (w *Worker) processNext() {
	job, err := w.repo.GetNextPending()
	if err != nil {
		log.Printf("Error getting next pending export: %v", err)
		return
	}

	if job == nil {
		// Nothing queued
		return
	}

	log.Printf("Processing export %d (%s for %s)", job.ID, job.Kind, job.ChildName)

	// Mark as processing
	now := time.Now()
	job.Status = models.StatusProcessing
	job.StartedAt = &now
	job.Progress = 0
	job.CurrentStep = "Starting"
	if err := w.repo.Update(job); err != nil {
		log.Printf("Error updating export job: %v", err)
		return
	}

	w.broadcaster.BroadcastFromJob(job, "Processing started")

	if err := w.processor.Process(job); err != nil {
		if render.IsCancellation(err) {
			w.settleCancelled(job)
			return
		}
		log.Printf("Error processing export %d: %v", job.ID, err)
		w.failJob(job, err.Error())
		return
	}

	// Mark as completed
	completed := time.Now()
	job.Status = models.StatusCompleted
	job.CompletedAt = &completed
	job.Progress = 100
	job.CurrentStep = "Completed"
	if err := w.repo.Update(job); err != nil {
		log.Printf("Error updating completed export: %v", err)
		return
	}

	w.broadcaster.BroadcastFromJob(job, "Export completed successfully")
	log.Printf("Export %d completed successfully", job.ID)
}

// failJob marks an export job as failed
func (w *Worker) failJob(job *models.ExportJob, errorMsg string) {
	job.Status = models.StatusFailed
	job.ErrorMessage = errorMsg
	job.RetryCount++
	completed := time.Now()
	job.CompletedAt = &completed

	if err := w.repo.Update(job); err != nil {
		log.Printf("Error updating failed export: %v", err)
		return
	}

	w.broadcaster.BroadcastFromJob(job, "Export failed")
	log.Printf("Export %d failed: %s", job.ID, errorMsg)
}

// settleCancelled marks an export job as cancelled. Cancellation is an
// expected outcome, never reported as a failure.
func (w *Worker) settleCancelled(job *models.ExportJob) {
	job.Status = models.StatusCancelled
	completed := time.Now()
	job.CompletedAt = &completed

	if err := w.repo.Update(job); err != nil {
		log.Printf("Error updating cancelled export: %v", err)
		return
	}

	w.broadcaster.BroadcastFromJob(job, "Export cancelled")
	log.Printf("Export %d cancelled", job.ID)
}
