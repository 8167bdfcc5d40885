package bulletins

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
)

// Repository exposes bulletin persistence.
type Repository interface {
	Create(ctx context.Context, bulletin *models.Bulletin) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Bulletin, error)
	List(ctx context.Context, publishedOnly bool) ([]models.Bulletin, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a bulletin repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, bulletin *models.Bulletin) error {
	return r.db.WithContext(ctx).Create(bulletin).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Bulletin, error) {
	var bulletin models.Bulletin
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&bulletin).Error; err != nil {
		return nil, err
	}
	return &bulletin, nil
}

func (r *repositoryImpl) List(ctx context.Context, publishedOnly bool) ([]models.Bulletin, error) {
	query := r.db.WithContext(ctx).Model(&models.Bulletin{})
	if publishedOnly {
		query = query.Where("published_at IS NOT NULL").Order("published_at DESC")
	} else {
		query = query.Order("created_at DESC")
	}

	var bulletins []models.Bulletin
	if err := query.Find(&bulletins).Error; err != nil {
		return nil, err
	}
	return bulletins, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Bulletin{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Bulletin{}).Error
}
