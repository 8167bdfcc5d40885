package categories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/db"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
)

// Service manages coral categories and their upload directories.
type Service interface {
	Create(ctx context.Context, name string) (*models.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*models.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository exposes category persistence.
type Repository interface {
	Create(ctx context.Context, category *models.Category) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindByDirectory(ctx context.Context, directory string) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountCorals(ctx context.Context, categoryID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
}

// NewService builds a category service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("categories repository required")
	}
	return &service{repo: repo}, nil
}

var directoryUnsafe = regexp.MustCompile(`[^a-z0-9_-]+`)

// SanitizeDirectoryName turns a display name into a filesystem-safe directory
// segment. The result never contains path separators.
func SanitizeDirectoryName(name string) string {
	dir := strings.ToLower(strings.TrimSpace(name))
	dir = strings.ReplaceAll(dir, " ", "_")
	dir = directoryUnsafe.ReplaceAllString(dir, "")
	dir = strings.Trim(dir, "_-")
	if dir == "" {
		dir = "uncategorized"
	}
	return dir
}

func (s *service) Create(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name required")
	}

	directory := SanitizeDirectoryName(name)
	if _, err := s.repo.FindByDirectory(ctx, directory); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("category directory %q already in use", directory))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check category directory")
	}

	category := &models.Category{
		ID:            uuid.New(),
		Name:          name,
		DirectoryName: directory,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("category %q already exists", name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return category, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return category, nil
}

func (s *service) List(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}

// Rename updates the display name only. The directory name is immutable once
// created so stored image paths stay valid.
func (s *service) Rename(ctx context.Context, id uuid.UUID, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name required")
	}

	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, map[string]any{"name": name}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rename category")
	}
	category.Name = name
	return category, nil
}

// Delete refuses while corals still reference the category.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.repo.CountCorals(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count category corals")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("category still has %d corals", count))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	return nil
}
