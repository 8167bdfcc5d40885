package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
	"github.com/coraldesk/coraldesk-backend/pkg/pagination"
)

// Service defines the queue's enqueue contract and the admin surface.
type Service interface {
	Enqueue(ctx context.Context, payload Payload, opts EnqueueOptions) (*models.NotificationJob, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Retry(ctx context.Context, jobID uuid.UUID) error
	Delete(ctx context.Context, jobID uuid.UUID) error
}

// EnqueueOptions tune scheduling for a single job. Zero values fall back to
// the configured queue defaults.
type EnqueueOptions struct {
	BatchWindow time.Duration
	MaxAttempts int
	Delay       time.Duration
}

// ListParams configures pagination and filtering for the admin job list.
type ListParams struct {
	Limit  int
	Cursor string
	Status string
	Kind   string
}

// ListResult wraps returned jobs and the cursor for the next page.
type ListResult struct {
	Items  []models.NotificationJob `json:"items"`
	Cursor string                   `json:"cursor"`
}

type service struct {
	repo Repository
	cfg  config.QueueConfig
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires the queue service dependencies.
func NewService(repo Repository, cfg config.QueueConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{
		repo: repo,
		cfg:  cfg,
		logg: logg,
		now:  time.Now,
	}, nil
}

// Enqueue inserts a new pending job. Storage failures propagate; callers in
// the business path are expected to log and continue, since notification
// delivery is best-effort relative to the transaction that triggered it.
func (s *service) Enqueue(ctx context.Context, payload Payload, opts EnqueueOptions) (*models.NotificationJob, error) {
	if payload == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification payload required")
	}

	raw, err := EncodePayload(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode notification payload")
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.MaxAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	window := opts.BatchWindow
	if window <= 0 {
		window = time.Duration(s.cfg.BatchWindowSeconds) * time.Second
	}
	if window <= 0 {
		window = 300 * time.Second
	}

	job := &models.NotificationJob{
		ID:                 uuid.New(),
		Kind:               payload.Kind(),
		Payload:            raw,
		Status:             enums.NotificationJobStatusPending,
		Attempts:           0,
		MaxAttempts:        maxAttempts,
		BatchWindowSeconds: int(window / time.Second),
	}
	if opts.Delay > 0 {
		next := s.now().UTC().Add(opts.Delay)
		job.NextAttemptAt = &next
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue notification job")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"job_id": job.ID.String(),
			"kind":   job.Kind,
		})
		s.logg.Info(logCtx, "notification job enqueued")
	}
	return job, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listJobsParams{Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	if params.Status != "" {
		status, err := enums.ParseNotificationJobStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = status
	}
	if params.Kind != "" {
		kind, err := enums.ParseNotificationKind(params.Kind)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind filter")
		}
		query.Kind = kind
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notification jobs")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// Retry resets a failed job so the next poll tick can pick it up again.
func (s *service) Retry(ctx context.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}

	reset, err := s.repo.Reset(ctx, jobID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset notification job")
	}
	if !reset {
		if _, err := s.repo.FindByID(ctx, jobID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "notification job not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification job")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only failed jobs can be retried")
	}
	return nil
}

// Delete removes a job that is not mid-flight. A processing row stays until
// the worker finishes with it.
func (s *service) Delete(ctx context.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}

	deleted, err := s.repo.Delete(ctx, jobID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete notification job")
	}
	if !deleted {
		if _, err := s.repo.FindByID(ctx, jobID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "notification job not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification job")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "job is currently processing")
	}
	return nil
}
