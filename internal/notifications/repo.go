package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
	"github.com/coraldesk/coraldesk-backend/pkg/pagination"
)

// Repository exposes persistence helpers for the notification job queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.NotificationJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.NotificationJob, error)
	FindDue(ctx context.Context, now time.Time) ([]models.NotificationJob, error)
	FindBatchSiblings(ctx context.Context, job models.NotificationJob, orderID int64) ([]models.NotificationJob, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, now time.Time) error
	MarkCompleted(ctx context.Context, ids []uuid.UUID, now time.Time) error
	MarkFailed(ctx context.Context, job *models.NotificationJob, failure string, now time.Time) error
	Reset(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, params listJobsParams) ([]models.NotificationJob, *pagination.Cursor, error)
	DeleteProcessedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a queue repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listJobsParams struct {
	Limit  int
	Cursor *pagination.Cursor
	Status enums.NotificationJobStatus
	Kind   enums.NotificationKind
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, job *models.NotificationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.NotificationJob, error) {
	var job models.NotificationJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// FindDue returns jobs ready for processing in FIFO order: pending jobs, plus
// failed jobs whose backoff window has elapsed. Permanently failed jobs carry
// a NULL next_attempt_at alongside exhausted attempts and are never returned.
func (r *repositoryImpl) FindDue(ctx context.Context, now time.Time) ([]models.NotificationJob, error) {
	var jobs []models.NotificationJob
	err := r.db.WithContext(ctx).
		Where("attempts < max_attempts").
		Where(
			r.db.Where("status = ?", enums.NotificationJobStatusPending).
				Or("status = ? AND next_attempt_at IS NOT NULL", enums.NotificationJobStatusFailed),
		).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("created_at ASC").
		Order("id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindBatchSiblings returns pending status-update jobs for the same order
// whose created_at falls within the symmetric batch window around job's
// created_at, plus job itself whatever its status. The window looks forward
// as well as back, so a job can match siblings created strictly after it,
// and a failed job coming back for a retry still sits in its own set.
func (r *repositoryImpl) FindBatchSiblings(ctx context.Context, job models.NotificationJob, orderID int64) ([]models.NotificationJob, error) {
	window := job.BatchWindow()
	from := job.CreatedAt.Add(-window)
	to := job.CreatedAt.Add(window)

	var jobs []models.NotificationJob
	err := r.db.WithContext(ctx).
		Where("kind = ?", enums.NotificationKindStatusUpdate).
		Where("status = ? OR id = ?", enums.NotificationJobStatusPending, job.ID).
		Where("created_at BETWEEN ? AND ?", from, to).
		Where("CAST(payload ->> 'order_id' AS BIGINT) = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repositoryImpl) MarkProcessing(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.NotificationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          enums.NotificationJobStatusProcessing,
			"last_attempt_at": now,
		}).Error
}

func (r *repositoryImpl) MarkCompleted(ctx context.Context, ids []uuid.UUID, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.NotificationJob{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":       enums.NotificationJobStatusCompleted,
			"processed_at": now,
		}).Error
}

// MarkFailed bumps the attempt counter and schedules the exponential backoff.
// When attempts are exhausted, next_attempt_at is cleared so the job stays
// failed until an operator resets it.
func (r *repositoryImpl) MarkFailed(ctx context.Context, job *models.NotificationJob, failure string, now time.Time) error {
	attempts := job.Attempts + 1
	updates := map[string]any{
		"status":          enums.NotificationJobStatusFailed,
		"attempts":        attempts,
		"last_error":      failure,
		"last_attempt_at": now,
	}
	if attempts < job.MaxAttempts {
		updates["next_attempt_at"] = now.Add(backoffDelay(attempts))
	} else {
		updates["next_attempt_at"] = nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.NotificationJob{}).
		Where("id = ?", job.ID).
		Updates(updates).Error
	if err != nil {
		return err
	}

	job.Attempts = attempts
	job.Status = enums.NotificationJobStatusFailed
	job.LastError = &failure
	job.LastAttemptAt = &now
	if attempts < job.MaxAttempts {
		next := now.Add(backoffDelay(attempts))
		job.NextAttemptAt = &next
	} else {
		job.NextAttemptAt = nil
	}
	return nil
}

// Reset returns a failed job to pending and clears its attempt bookkeeping.
func (r *repositoryImpl) Reset(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationJob{}).
		Where("id = ? AND status = ?", id, enums.NotificationJobStatusFailed).
		Updates(map[string]any{
			"status":          enums.NotificationJobStatusPending,
			"attempts":        0,
			"last_error":      nil,
			"next_attempt_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, enums.NotificationJobStatusProcessing).
		Delete(&models.NotificationJob{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listJobsParams) ([]models.NotificationJob, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.NotificationJob{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Kind != "" {
		query = query.Where("kind = ?", params.Kind)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var jobs []models.NotificationJob
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, nil, err
	}

	if len(jobs) > normalized {
		jobs = jobs[:normalized]
		// The predicate is strict, so the cursor carries the last returned
		// row and the next page starts right after it.
		last := jobs[normalized-1]
		return jobs, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return jobs, nil, nil
}

func (r *repositoryImpl) DeleteProcessedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	result := conn.WithContext(ctx).
		Where("status = ? AND processed_at < ?", enums.NotificationJobStatusCompleted, cutoff).
		Delete(&models.NotificationJob{})
	return result.RowsAffected, result.Error
}

// backoffDelay returns 2^attempts seconds.
func backoffDelay(attempts int) time.Duration {
	return time.Duration(1<<uint(attempts)) * time.Second
}
