package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	return logg
}

func TestRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	healthy := &testJob{name: "healthy"}
	broken := &testJob{name: "broken", err: errors.New("boom")}
	trailing := &testJob{name: "trailing"}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(t),
		Registry: NewRegistry(healthy, broken, trailing),
		Lock:     &fakeLock{},
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, 1, healthy.runs)
	assert.Equal(t, 1, broken.runs)
	assert.Equal(t, 1, trailing.runs)
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "skipped"}
	lock := &fakeLock{held: true}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(t),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Zero(t, job.runs)
	assert.Equal(t, 1, lock.acquires)
}

func TestRunCycleReleasesLock(t *testing.T) {
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(t),
		Registry: NewRegistry(&testJob{name: "one"}),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.False(t, lock.held)

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, 2, lock.acquires)
}

func TestRegistryCopiesJobSlice(t *testing.T) {
	registry := NewRegistry()
	jobA := &testJob{name: "a"}
	registry.Register(jobA)
	registry.Register(nil)

	jobs := registry.Jobs()
	require.Len(t, jobs, 1)
	jobs[0] = nil
	assert.Equal(t, Job(jobA), registry.Jobs()[0])
}

type retentionRepoStub struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (r *retentionRepoStub) DeleteProcessedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	r.cutoff = cutoff
	return r.deleted, r.err
}

type sqliteTx struct {
	db *gorm.DB
}

func (s sqliteTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func TestNotificationRetentionJobUsesConfiguredWindow(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	repo := &retentionRepoStub{deleted: 4}
	job, err := NewNotificationRetentionJob(NotificationRetentionJobParams{
		Logger:     testLogger(t),
		DB:         sqliteTx{db: db},
		Repository: repo,
		Retention:  7,
	})
	require.NoError(t, err)
	assert.Equal(t, "notification-retention", job.Name())

	before := time.Now().UTC().Add(-7 * 24 * time.Hour)
	require.NoError(t, job.Run(context.Background()))
	assert.WithinDuration(t, before, repo.cutoff, time.Minute)
}

func TestNotificationRetentionJobPropagatesError(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	job, err := NewNotificationRetentionJob(NotificationRetentionJobParams{
		Logger:     testLogger(t),
		DB:         sqliteTx{db: db},
		Repository: &retentionRepoStub{err: errors.New("db down")},
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
