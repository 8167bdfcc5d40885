package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
)

// Repository exposes persistence for orders plus the coral stock adjustments
// that must share the order transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	List(ctx context.Context, params ListParams) ([]models.Order, int64, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	Delete(ctx context.Context, id int64) error
	DeleteItems(ctx context.Context, orderID int64) error
	FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	FindCorals(ctx context.Context, ids []uuid.UUID) ([]models.Coral, error)
	FindCoral(ctx context.Context, id uuid.UUID) (*models.Coral, error)
	AdjustCoralStock(ctx context.Context, coralID uuid.UUID, delta int) (bool, error)
	UpdateCoralStatus(ctx context.Context, coralID uuid.UUID, status enums.CoralStockStatus) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Client").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListParams) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.ClientID != nil {
		query = query.Where("client_id = ?", *params.ClientID)
	}
	if params.Archived != nil {
		query = query.Where("archived = ?", *params.Archived)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Order("id DESC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id int64, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Order{}).Error
}

func (r *repositoryImpl) DeleteItems(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&models.OrderItem{}).Error
}

func (r *repositoryImpl) FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *repositoryImpl) FindCorals(ctx context.Context, ids []uuid.UUID) ([]models.Coral, error) {
	var corals []models.Coral
	if len(ids) == 0 {
		return corals, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&corals).Error; err != nil {
		return nil, err
	}
	return corals, nil
}

func (r *repositoryImpl) FindCoral(ctx context.Context, id uuid.UUID) (*models.Coral, error) {
	var coral models.Coral
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&coral).Error; err != nil {
		return nil, err
	}
	return &coral, nil
}

// AdjustCoralStock applies a quantity delta with a conditional update so the
// non-negative invariant is enforced by the store itself. The affected-row
// count tells the caller whether the adjustment applied.
func (r *repositoryImpl) AdjustCoralStock(ctx context.Context, coralID uuid.UUID, delta int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Coral{}).
		Where("id = ? AND quantity + ? >= 0", coralID, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) UpdateCoralStatus(ctx context.Context, coralID uuid.UUID, status enums.CoralStockStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Coral{}).
		Where("id = ?", coralID).
		Update("status", status).Error
}
