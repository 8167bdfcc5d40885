package cron

import (
	"context"
	"fmt"

	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

type backupRunner interface {
	Run(ctx context.Context) error
	Prune(ctx context.Context) (int, error)
}

// NewBackupJob wraps the backup run as a scheduled job.
func NewBackupJob(backups backupRunner, logg *logger.Logger) (Job, error) {
	if backups == nil {
		return nil, fmt.Errorf("backup service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &backupJob{backups: backups, logg: logg}, nil
}

type backupJob struct {
	backups backupRunner
	logg    *logger.Logger
}

func (j *backupJob) Name() string { return "backup" }

func (j *backupJob) Run(ctx context.Context) error {
	return j.backups.Run(ctx)
}

// NewBackupRetentionJob wraps backup pruning as a scheduled job.
func NewBackupRetentionJob(backups backupRunner, logg *logger.Logger) (Job, error) {
	if backups == nil {
		return nil, fmt.Errorf("backup service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &backupRetentionJob{backups: backups, logg: logg}, nil
}

type backupRetentionJob struct {
	backups backupRunner
	logg    *logger.Logger
}

func (j *backupRetentionJob) Name() string { return "backup-retention" }

func (j *backupRetentionJob) Run(ctx context.Context) error {
	removed, err := j.backups.Prune(ctx)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "removed", removed), "backup retention done")
	return nil
}
