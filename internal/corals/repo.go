package corals

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
)

// Repository exposes coral persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, coral *models.Coral) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coral, error)
	FindByName(ctx context.Context, name string) (*models.Coral, error)
	List(ctx context.Context, params ListParams) ([]models.Coral, int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a coral repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// ListParams filter and page the coral list.
type ListParams struct {
	Limit      int
	Offset     int
	CategoryID *uuid.UUID
	Status     *enums.CoralStockStatus
	Query      string
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, coral *models.Coral) error {
	return r.db.WithContext(ctx).Create(coral).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Coral, error) {
	var coral models.Coral
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&coral).Error; err != nil {
		return nil, err
	}
	return &coral, nil
}

// FindByName matches case-insensitively. It backs the uniqueness pre-check;
// the lower(name) unique index is the backstop for races.
func (r *repositoryImpl) FindByName(ctx context.Context, name string) (*models.Coral, error) {
	var coral models.Coral
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		First(&coral).Error
	if err != nil {
		return nil, err
	}
	return &coral, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListParams) ([]models.Coral, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Coral{})
	if params.CategoryID != nil {
		query = query.Where("category_id = ?", *params.CategoryID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Query != "" {
		needle := "%" + strings.ToLower(params.Query) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(COALESCE(species, '')) LIKE ?", needle, needle)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var corals []models.Coral
	err := query.
		Order("name ASC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&corals).Error
	if err != nil {
		return nil, 0, err
	}
	return corals, total, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Coral{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Coral{}).Error
}
