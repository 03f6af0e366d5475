package models

import "time"

// Export kinds
const (
	KindLyricVideo = "lyric_video"
	KindCover      = "cover"
)

// Export status constants
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// ExportJob represents one export request in the processing queue, either a
// full lyric video or a cover-only video.
type ExportJob struct {
	ID       int    `json:"id" db:"id"`
	Kind     string `json:"kind" db:"kind"`
	Status   string `json:"status" db:"status"`
	Priority int    `json:"priority" db:"priority"`

	// Source material
	ChildName string `json:"child_name" db:"child_name"`
	Theme     string `json:"theme" db:"theme"`
	AudioURL  string `json:"audio_url" db:"audio_url"`
	Lyrics    string `json:"lyrics" db:"lyrics"`
	ImageURLs string `json:"image_urls" db:"image_urls"` // JSON array

	// Output settings
	Format string `json:"format" db:"format"` // cover aspect: square, stories
	Width  int    `json:"width" db:"width"`
	Height int    `json:"height" db:"height"`
	FPS    int    `json:"fps" db:"fps"`

	CurrentStep  string `json:"current_step" db:"current_step"`
	Progress     int    `json:"progress" db:"progress"`
	ErrorMessage string `json:"error_message" db:"error_message"`
	RetryCount   int    `json:"retry_count" db:"retry_count"`

	OutputPath string `json:"output_path" db:"output_path"`
	OutputSize int64  `json:"output_size" db:"output_size"`
	MimeType   string `json:"mime_type" db:"mime_type"`

	// SessionID is the render session UUID, set once processing starts.
	SessionID string `json:"session_id" db:"session_id"`

	QueuedAt    time.Time  `json:"queued_at" db:"queued_at"`
	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *ExportJob) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CreateLyricVideoRequest is the payload for queueing a lyric video export.
type CreateLyricVideoRequest struct {
	ChildName string   `json:"child_name" binding:"required"`
	AudioURL  string   `json:"audio_url" binding:"required"`
	Lyrics    string   `json:"lyrics" binding:"required"`
	ImageURLs []string `json:"image_urls"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	FPS       int      `json:"fps"`
	Priority  int      `json:"priority"`
}

// CreateCoverRequest is the payload for queueing a cover-only export.
type CreateCoverRequest struct {
	ChildName string `json:"child_name" binding:"required"`
	Theme     string `json:"theme"`
	AudioURL  string `json:"audio_url" binding:"required"`
	Format    string `json:"format" binding:"omitempty,oneof=square stories"`
	Priority  int    `json:"priority"`
}
