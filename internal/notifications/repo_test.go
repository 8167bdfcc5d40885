package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
)

func setupQueueTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS notification_jobs (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INTEGER NOT NULL DEFAULT 0,
  max_attempts INTEGER NOT NULL DEFAULT 3,
  batch_window_seconds INTEGER NOT NULL DEFAULT 300,
  last_attempt_at DATETIME,
  next_attempt_at DATETIME,
  last_error TEXT,
  processed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec("DELETE FROM notification_jobs").Error)
	return db
}

func statusUpdateJSON(orderID int64, status string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"order_id":%d,"client_email":"reef@example.com","client_name":"Reef Co","status":%q}`,
		orderID, status,
	))
}

func createJob(t *testing.T, db *gorm.DB, kind enums.NotificationKind, status enums.NotificationJobStatus, created time.Time, mutate func(*models.NotificationJob)) *models.NotificationJob {
	t.Helper()

	job := &models.NotificationJob{
		ID:                 uuid.New(),
		Kind:               kind,
		Payload:            json.RawMessage(`{}`),
		Status:             status,
		MaxAttempts:        3,
		BatchWindowSeconds: 300,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
	if mutate != nil {
		mutate(job)
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func TestRepositoryFindDue_selectionAndOrder(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	oldest := createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusPending, now.Add(-2*time.Hour), nil)
	retryable := createJob(t, db, enums.NotificationKindLowStock, enums.NotificationJobStatusFailed, now.Add(-time.Hour), func(j *models.NotificationJob) {
		j.Attempts = 1
		next := now.Add(-time.Minute)
		j.NextAttemptAt = &next
	})
	createJob(t, db, enums.NotificationKindLowStock, enums.NotificationJobStatusFailed, now.Add(-time.Hour), func(j *models.NotificationJob) {
		j.Attempts = 3
	})
	createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusPending, now.Add(-time.Hour), func(j *models.NotificationJob) {
		next := now.Add(time.Hour)
		j.NextAttemptAt = &next
	})
	createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusCompleted, now.Add(-time.Hour), nil)
	createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusProcessing, now.Add(-time.Hour), nil)

	due, err := repo.FindDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, oldest.ID, due[0].ID)
	assert.Equal(t, retryable.ID, due[1].ID)
}

func TestRepositoryMarkFailed_backoffThenExhaustion(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	job := createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusPending, now.Add(-time.Minute), nil)

	require.NoError(t, repo.MarkFailed(context.Background(), job, "smtp timeout", now))
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, enums.NotificationJobStatusFailed, job.Status)
	require.NotNil(t, job.NextAttemptAt)
	assert.Equal(t, now.Add(2*time.Second), job.NextAttemptAt.UTC())

	require.NoError(t, repo.MarkFailed(context.Background(), job, "smtp timeout", now))
	require.NotNil(t, job.NextAttemptAt)
	assert.Equal(t, now.Add(4*time.Second), job.NextAttemptAt.UTC())

	require.NoError(t, repo.MarkFailed(context.Background(), job, "smtp timeout", now))
	assert.Equal(t, 3, job.Attempts)
	assert.Nil(t, job.NextAttemptAt)

	stored, err := repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Attempts)
	assert.Nil(t, stored.NextAttemptAt)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "smtp timeout", *stored.LastError)

	due, err := repo.FindDue(context.Background(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRepositoryFindBatchSiblings_windowIsSymmetric(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	anchor := createJob(t, db, enums.NotificationKindStatusUpdate, enums.NotificationJobStatusPending, now, func(j *models.NotificationJob) {
		j.Payload = statusUpdateJSON(42, "confirmed")
	})
	later := createJob(t, db, enums.NotificationKindStatusUpdate, enums.NotificationJobStatusPending, now.Add(90*time.Second), func(j *models.NotificationJob) {
		j.Payload = statusUpdateJSON(42, "processing")
	})
	earlier := createJob(t, db, enums.NotificationKindStatusUpdate, enums.NotificationJobStatusPending, now.Add(-90*time.Second), func(j *models.NotificationJob) {
		j.Payload = statusUpdateJSON(42, "pending")
	})
	createJob(t, db, enums.NotificationKindStatusUpdate, enums.NotificationJobStatusPending, now.Add(10*time.Minute), func(j *models.NotificationJob) {
		j.Payload = statusUpdateJSON(42, "ready_for_pickup")
	})
	createJob(t, db, enums.NotificationKindStatusUpdate, enums.NotificationJobStatusPending, now, func(j *models.NotificationJob) {
		j.Payload = statusUpdateJSON(77, "confirmed")
	})
	createJob(t, db, enums.NotificationKindStatusUpdate, enums.NotificationJobStatusCompleted, now, func(j *models.NotificationJob) {
		j.Payload = statusUpdateJSON(42, "completed")
	})
	createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusPending, now, nil)

	siblings, err := repo.FindBatchSiblings(context.Background(), *anchor, 42)
	require.NoError(t, err)
	require.Len(t, siblings, 3)
	assert.Equal(t, earlier.ID, siblings[0].ID)
	assert.Equal(t, anchor.ID, siblings[1].ID)
	assert.Equal(t, later.ID, siblings[2].ID)
}

func TestRepositoryFindBatchSiblings_includesFailedAnchor(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	anchor := createJob(t, db, enums.NotificationKindStatusUpdate, enums.NotificationJobStatusFailed, now, func(j *models.NotificationJob) {
		j.Payload = statusUpdateJSON(42, "confirmed")
		j.Attempts = 1
	})
	pending := createJob(t, db, enums.NotificationKindStatusUpdate, enums.NotificationJobStatusPending, now.Add(time.Minute), func(j *models.NotificationJob) {
		j.Payload = statusUpdateJSON(42, "processing")
	})
	createJob(t, db, enums.NotificationKindStatusUpdate, enums.NotificationJobStatusFailed, now.Add(time.Minute), func(j *models.NotificationJob) {
		j.Payload = statusUpdateJSON(42, "cancelled")
		j.Attempts = 1
	})

	siblings, err := repo.FindBatchSiblings(context.Background(), *anchor, 42)
	require.NoError(t, err)
	require.Len(t, siblings, 2)
	assert.Equal(t, anchor.ID, siblings[0].ID)
	assert.Equal(t, pending.ID, siblings[1].ID)
}

func TestRepositoryReset_onlyFailedJobs(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	failed := createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusFailed, now, func(j *models.NotificationJob) {
		j.Attempts = 3
		msg := "mailer down"
		j.LastError = &msg
	})
	completed := createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusCompleted, now, nil)

	reset, err := repo.Reset(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.True(t, reset)

	stored, err := repo.FindByID(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.NotificationJobStatusPending, stored.Status)
	assert.Equal(t, 0, stored.Attempts)
	assert.Nil(t, stored.LastError)
	assert.Nil(t, stored.NextAttemptAt)

	reset, err = repo.Reset(context.Background(), completed.ID)
	require.NoError(t, err)
	assert.False(t, reset)

	reset, err = repo.Reset(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, reset)
}

func TestRepositoryList_paginationAndFilters(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusCompleted, now.Add(time.Duration(i)*time.Minute), nil)
	}
	createJob(t, db, enums.NotificationKindLowStock, enums.NotificationJobStatusFailed, now.Add(time.Hour), nil)

	page, next, err := repo.List(context.Background(), listJobsParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.Equal(t, enums.NotificationKindLowStock, page[0].Kind)

	rest, next, err := repo.List(context.Background(), listJobsParams{Limit: 10, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Nil(t, next)

	failedOnly, _, err := repo.List(context.Background(), listJobsParams{Limit: 10, Status: enums.NotificationJobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failedOnly, 1)

	bulletins, _, err := repo.List(context.Background(), listJobsParams{Limit: 10, Kind: enums.NotificationKindBulletin})
	require.NoError(t, err)
	assert.Len(t, bulletins, 3)
}

func TestRepositoryDeleteProcessedBefore(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	old := createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusCompleted, now.Add(-48*time.Hour), func(j *models.NotificationJob) {
		processed := now.Add(-48 * time.Hour)
		j.ProcessedAt = &processed
	})
	fresh := createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusCompleted, now, func(j *models.NotificationJob) {
		j.ProcessedAt = &now
	})
	failed := createJob(t, db, enums.NotificationKindBulletin, enums.NotificationJobStatusFailed, now.Add(-48*time.Hour), nil)

	deleted, err := repo.DeleteProcessedBefore(context.Background(), nil, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.FindByID(context.Background(), old.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.FindByID(context.Background(), fresh.ID)
	assert.NoError(t, err)
	_, err = repo.FindByID(context.Background(), failed.ID)
	assert.NoError(t, err)
}
