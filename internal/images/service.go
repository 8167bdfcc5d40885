package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/coraldesk/coraldesk-backend/internal/categories"
	"github.com/coraldesk/coraldesk-backend/pkg/config"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

// UncategorizedDir holds images not yet assigned to a category.
const UncategorizedDir = "uncategorized"

// Service moves coral images between category directories under the
// uploads root.
type Service interface {
	Move(ctx context.Context, filename, fromCategory, toCategory string) (string, error)
}

type service struct {
	baseDir  string
	maxBytes int64
	logg     *logger.Logger
}

// NewService builds an image service rooted at the configured uploads dir.
func NewService(cfg config.UploadsConfig, logg *logger.Logger) (Service, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("uploads base dir required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		baseDir:  cfg.BaseDir,
		maxBytes: int64(cfg.MaxUploadMB) << 20,
		logg:     logg,
	}, nil
}

// Move relocates filename from one category directory to another. It tries a
// rename first and falls back to copy+delete when the rename fails, which
// covers moves across filesystem boundaries.
func (s *service) Move(ctx context.Context, filename, fromCategory, toCategory string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "image filename required")
	}

	src := filepath.Join(s.baseDir, categoryDir(fromCategory), name)
	dstDir := filepath.Join(s.baseDir, categoryDir(toCategory))
	dst := filepath.Join(dstDir, name)

	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("image %s not found", name))
		}
		return "", moveError(err, "stat source image")
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image %s exceeds the %dMB size limit", name, s.maxBytes>>20))
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", moveError(err, "create destination directory")
	}
	if _, err := os.Stat(dst); err == nil {
		return "", pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("image %s already exists in destination", name))
	}

	if err := os.Rename(src, dst); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "image", name), "rename failed, copying across filesystems")
		if err := copyThenDelete(src, dst); err != nil {
			return "", moveError(err, "move image")
		}
	}
	return dst, nil
}

func categoryDir(category string) string {
	dir := categories.SanitizeDirectoryName(category)
	if dir == "" {
		return UncategorizedDir
	}
	return dir
}

func copyThenDelete(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy contents: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("flush destination: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source: %w", err)
	}
	return nil
}

func moveError(err error, action string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "image move failed").
		WithDetails(map[string]any{"action": action, "cause": err.Error()})
}
