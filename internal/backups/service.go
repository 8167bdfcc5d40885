package backups

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

const timestampLayout = "20060102-150405"

// Service produces and prunes on-disk backups: a pg_dump of the database and
// a tar.gz of the uploads directory per run.
type Service struct {
	cfg     config.BackupConfig
	dbDSN   string
	uploads string
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a backup service.
func NewService(cfg config.BackupConfig, db config.DBConfig, uploads config.UploadsConfig, logg *logger.Logger) (*Service, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup dir required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		cfg:     cfg,
		dbDSN:   db.DSN,
		uploads: uploads.BaseDir,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Run writes both backup artifacts for this cycle. Failures are aggregated
// so a broken dump does not skip the uploads archive.
func (s *Service) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	stamp := s.now().UTC().Format(timestampLayout)

	var errs error
	if err := s.dumpDatabase(ctx, stamp); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("database dump: %w", err))
	}
	if err := s.archiveUploads(stamp); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("uploads archive: %w", err))
	}
	return errs
}

func (s *Service) dumpDatabase(ctx context.Context, stamp string) error {
	if s.dbDSN == "" {
		return fmt.Errorf("database dsn not configured")
	}
	target := filepath.Join(s.cfg.Dir, fmt.Sprintf("db-%s.sql", stamp))

	cmd := exec.CommandContext(ctx, s.cfg.PgDumpPath, "--no-owner", "--format=plain", "--file", target, s.dbDSN)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(target)
		return fmt.Errorf("pg_dump: %w: %s", err, strings.TrimSpace(string(output)))
	}
	s.logg.Info(s.logg.WithField(ctx, "file", target), "database dump written")
	return nil
}

func (s *Service) archiveUploads(stamp string) error {
	if s.uploads == "" {
		return fmt.Errorf("uploads dir not configured")
	}
	if _, err := os.Stat(s.uploads); err != nil {
		return fmt.Errorf("stat uploads dir: %w", err)
	}
	target := filepath.Join(s.cfg.Dir, fmt.Sprintf("uploads-%s.tar.gz", stamp))

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(s.uploads, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.uploads, path)
		if err != nil {
			return err
		}
		return addFile(tw, path, filepath.ToSlash(rel))
	})

	err = multierr.Combine(walkErr, tw.Close(), gz.Close(), out.Close())
	if err != nil {
		os.Remove(target)
		return err
	}
	return nil
}

func addFile(tw *tar.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name
	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(tw, file)
	return err
}

// Prune removes backup artifacts older than the retention window. Only
// regular files directly inside the backup dir are considered.
func (s *Service) Prune(ctx context.Context) (int, error) {
	retention := s.cfg.RetentionDays
	if retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-time.Duration(retention) * 24 * time.Hour)

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read backup dir: %w", err)
	}

	var removed int
	var errs error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.cfg.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logg.Info(s.logg.WithField(ctx, "removed", removed), "backup retention pruned old artifacts")
	}
	return removed, errs
}
