package database

import (
	"database/sql"

	"github.com/starsong-studio/render-orchestrator/internal/models"
)

// ExportRepository handles export job database operations
type ExportRepository struct {
	db *sql.DB
}

// NewExportRepository creates a new export repository
func NewExportRepository(db *sql.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

const exportColumns = `id, kind, status, priority,
	child_name, COALESCE(theme, '') as theme, audio_url,
	COALESCE(lyrics, '') as lyrics,
	COALESCE(image_urls, '') as image_urls,
	COALESCE(format, '') as format,
	COALESCE(width, 0) as width,
	COALESCE(height, 0) as height,
	COALESCE(fps, 0) as fps,
	COALESCE(current_step, '') as current_step,
	COALESCE(progress, 0) as progress,
	COALESCE(error_message, '') as error_message,
	COALESCE(retry_count, 0) as retry_count,
	COALESCE(output_path, '') as output_path,
	COALESCE(output_size, 0) as output_size,
	COALESCE(mime_type, '') as mime_type,
	COALESCE(session_id, '') as session_id,
	queued_at, started_at, completed_at`

func scanExport(row interface{ Scan(...interface{}) error }) (*models.ExportJob, error) {
	var job models.ExportJob
	err := row.Scan(
		&job.ID, &job.Kind, &job.Status, &job.Priority,
		&job.ChildName, &job.Theme, &job.AudioURL,
		&job.Lyrics, &job.ImageURLs,
		&job.Format, &job.Width, &job.Height, &job.FPS,
		&job.CurrentStep, &job.Progress, &job.ErrorMessage, &job.RetryCount,
		&job.OutputPath, &job.OutputSize, &job.MimeType, &job.SessionID,
		&job.QueuedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetAll returns all export jobs, newest first
func (r *ExportRepository) GetAll() ([]models.ExportJob, error) {
	query := `SELECT ` + exportColumns + ` FROM exports ORDER BY queued_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.ExportJob
	for rows.Next() {
		job, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

// GetByID returns an export job by ID
func (r *ExportRepository) GetByID(id int) (*models.ExportJob, error) {
	query := `SELECT ` + exportColumns + ` FROM exports WHERE id = ?`

	job, err := scanExport(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Create inserts a new export job
func (r *ExportRepository) Create(job *models.ExportJob) error {
	query := `INSERT INTO exports (kind, status, priority,
		child_name, theme, audio_url, lyrics, image_urls,
		format, width, height, fps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.Exec(query,
		job.Kind, job.Status, job.Priority,
		job.ChildName, job.Theme, job.AudioURL, job.Lyrics, job.ImageURLs,
		job.Format, job.Width, job.Height, job.FPS,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	job.ID = int(id)
	return nil
}

// Update updates an existing export job
func (r *ExportRepository) Update(job *models.ExportJob) error {
	query := `UPDATE exports SET status=?, priority=?,
		current_step=?, progress=?, error_message=?, retry_count=?,
		output_path=?, output_size=?, mime_type=?, session_id=?,
		started_at=?, completed_at=?
		WHERE id=?`

	_, err := r.db.Exec(query,
		job.Status, job.Priority,
		job.CurrentStep, job.Progress, job.ErrorMessage, job.RetryCount,
		job.OutputPath, job.OutputSize, job.MimeType, job.SessionID,
		job.StartedAt, job.CompletedAt,
		job.ID,
	)
	return err
}

// GetNextPending returns the next queued export job
func (r *ExportRepository) GetNextPending() (*models.ExportJob, error) {
	query := `SELECT ` + exportColumns + ` FROM exports
		WHERE status = ?
		ORDER BY priority DESC, queued_at ASC
		LIMIT 1`

	job, err := scanExport(r.db.QueryRow(query, models.StatusQueued))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}
