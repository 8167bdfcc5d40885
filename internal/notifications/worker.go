package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
	"github.com/coraldesk/coraldesk-backend/pkg/metrics"
)

// Worker drains the notification queue on a fixed poll interval. A single
// worker processes jobs sequentially in creation order, so status updates for
// the same order are always collapsed by the oldest job in the window.
type Worker struct {
	repo       Repository
	dispatcher *Dispatcher
	logg       *logger.Logger
	queueStats *metrics.QueueMetrics
	interval   time.Duration
	now        func() time.Time
}

// NewWorker wires the queue worker. Metrics may be nil.
func NewWorker(repo Repository, dispatcher *Dispatcher, cfg config.QueueConfig, logg *logger.Logger, queueStats *metrics.QueueMetrics) (*Worker, error) {
	if repo == nil {
		return nil, fmt.Errorf("notification repository required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		repo:       repo,
		dispatcher: dispatcher,
		logg:       logg,
		queueStats: queueStats,
		interval:   interval,
		now:        time.Now,
	}, nil
}

// Run polls until the context is cancelled. The first tick fires immediately.
func (w *Worker) Run(ctx context.Context) error {
	w.logg.Info(ctx, "notification worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Tick(ctx); err != nil {
			w.logg.Error(ctx, "queue tick failed", err)
		}
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "notification worker stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick fetches all due jobs and processes them sequentially.
func (w *Worker) Tick(ctx context.Context) error {
	now := w.now()
	due, err := w.repo.FindDue(ctx, now)
	if err != nil {
		return fmt.Errorf("find due jobs: %w", err)
	}
	w.queueStats.SetDepth(len(due))

	for _, job := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		jobCtx := w.logg.WithJobID(ctx, job.ID.String())
		if err := w.processJob(jobCtx, job.ID); err != nil {
			w.logg.Error(jobCtx, "job processing failed", err)
		}
	}
	return nil
}

// processJob re-reads the job by ID before acting. Jobs in the due snapshot
// may have been completed earlier in the same tick when a batch representative
// folded them in.
func (w *Worker) processJob(ctx context.Context, id uuid.UUID) error {
	job, err := w.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("reload job: %w", err)
	}
	if !w.isDue(*job) {
		return nil
	}

	start := w.now()
	kind := string(job.Kind)

	payload, err := DecodePayload(job.Kind, job.Payload)
	if err != nil {
		w.queueStats.IncFailed(kind)
		return w.repo.MarkFailed(ctx, job, fmt.Sprintf("decode payload: %v", err), w.now())
	}

	if statusPayload, ok := payload.(StatusUpdatePayload); ok {
		err = w.processStatusUpdate(ctx, job, statusPayload)
	} else {
		err = w.processSingle(ctx, job, payload)
	}
	w.queueStats.ObserveDuration(kind, w.now().Sub(start))
	return err
}

func (w *Worker) processSingle(ctx context.Context, job *models.NotificationJob, payload Payload) error {
	if err := w.repo.MarkProcessing(ctx, job.ID, w.now()); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := w.dispatcher.Dispatch(ctx, payload); err != nil {
		w.queueStats.IncFailed(string(job.Kind))
		if markErr := w.repo.MarkFailed(ctx, job, err.Error(), w.now()); markErr != nil {
			return fmt.Errorf("mark failed after dispatch error %q: %w", err, markErr)
		}
		w.logg.Warn(ctx, fmt.Sprintf("dispatch failed, attempt %d of %d", job.Attempts, job.MaxAttempts))
		return nil
	}

	if err := w.repo.MarkCompleted(ctx, []uuid.UUID{job.ID}, w.now()); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	w.queueStats.IncProcessed(string(job.Kind))
	return nil
}

// processStatusUpdate applies the batch rule. All pending status-update jobs
// for the same order inside the job's window, plus the job being processed,
// form one set. The oldest job in the set is the representative: it sends a
// single message covering the set's distinct statuses in creation order, then
// the whole set is completed together. A non-oldest job is completed without
// sending. A failed job retrying is always the oldest in its set, so its
// status is carried by the message it sends rather than dropped.
func (w *Worker) processStatusUpdate(ctx context.Context, job *models.NotificationJob, payload StatusUpdatePayload) error {
	siblings, err := w.repo.FindBatchSiblings(ctx, *job, payload.OrderID)
	if err != nil {
		return fmt.Errorf("find batch siblings: %w", err)
	}

	if len(siblings) > 0 && siblings[0].ID != job.ID {
		if err := w.repo.MarkCompleted(ctx, []uuid.UUID{job.ID}, w.now()); err != nil {
			return fmt.Errorf("fold into batch: %w", err)
		}
		w.queueStats.IncBatched(string(job.Kind))
		return nil
	}

	statuses, ids, err := w.collapseStatuses(*job, siblings)
	if err != nil {
		w.queueStats.IncFailed(string(job.Kind))
		return w.repo.MarkFailed(ctx, job, err.Error(), w.now())
	}

	if err := w.repo.MarkProcessing(ctx, job.ID, w.now()); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := w.dispatcher.DispatchStatusProgression(ctx, payload, statuses); err != nil {
		w.queueStats.IncFailed(string(job.Kind))
		if markErr := w.repo.MarkFailed(ctx, job, err.Error(), w.now()); markErr != nil {
			return fmt.Errorf("mark failed after dispatch error %q: %w", err, markErr)
		}
		return nil
	}

	if err := w.repo.MarkCompleted(ctx, ids, w.now()); err != nil {
		return fmt.Errorf("mark batch completed: %w", err)
	}
	w.queueStats.IncProcessed(string(job.Kind))
	for i := 1; i < len(ids); i++ {
		w.queueStats.IncBatched(string(job.Kind))
	}
	return nil
}

// collapseStatuses returns the set's distinct statuses in first-seen creation
// order plus every sibling ID, the representative included.
func (w *Worker) collapseStatuses(job models.NotificationJob, siblings []models.NotificationJob) ([]string, []uuid.UUID, error) {
	if len(siblings) == 0 {
		siblings = []models.NotificationJob{job}
	}

	var (
		statuses []string
		ids      []uuid.UUID
		seen     = map[string]bool{}
	)
	for _, sibling := range siblings {
		decoded, err := DecodePayload(sibling.Kind, sibling.Payload)
		if err != nil {
			return nil, nil, fmt.Errorf("decode sibling %s: %w", sibling.ID, err)
		}
		sp, ok := decoded.(StatusUpdatePayload)
		if !ok {
			return nil, nil, fmt.Errorf("sibling %s is not a status update", sibling.ID)
		}
		ids = append(ids, sibling.ID)
		if !seen[sp.Status] {
			seen[sp.Status] = true
			statuses = append(statuses, sp.Status)
		}
	}
	return statuses, ids, nil
}

func (w *Worker) isDue(job models.NotificationJob) bool {
	if job.Attempts >= job.MaxAttempts {
		return false
	}
	now := w.now()
	switch job.Status {
	case enums.NotificationJobStatusPending:
		return job.NextAttemptAt == nil || !job.NextAttemptAt.After(now)
	case enums.NotificationJobStatusFailed:
		return job.NextAttemptAt != nil && !job.NextAttemptAt.After(now)
	default:
		return false
	}
}
