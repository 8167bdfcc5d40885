package corals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/db"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes coral inventory management.
type Service interface {
	Create(ctx context.Context, input CreateCoralInput) (*models.Coral, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Coral, error)
	List(ctx context.Context, params ListParams) (*CoralList, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCoralInput) (*models.Coral, error)
	Restock(ctx context.Context, id uuid.UUID, quantity int) (*models.Coral, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateCoralInput holds the validated payload to create a coral.
type CreateCoralInput struct {
	Name         string
	Species      *string
	Description  *string
	Price        decimal.Decimal
	Quantity     int
	MinimumStock int
	CategoryID   *uuid.UUID
}

// UpdateCoralInput holds optional mutation values. Quantity changes go
// through Restock or the order paths, never through Update.
type UpdateCoralInput struct {
	Name         *string
	Species      *string
	Description  *string
	Price        *decimal.Decimal
	MinimumStock *int
	CategoryID   *uuid.UUID
	ImagePath    *string
}

// CoralList wraps a page of corals plus the unfiltered total.
type CoralList struct {
	Corals []models.Coral `json:"corals"`
	Total  int64          `json:"total"`
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a coral service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("corals repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateCoralInput) (*models.Coral, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coral name required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.Quantity < 0 || input.MinimumStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity and minimum stock cannot be negative")
	}

	if err := s.checkNameAvailable(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}

	coral := &models.Coral{
		ID:           uuid.New(),
		Name:         name,
		Species:      input.Species,
		Description:  input.Description,
		Price:        input.Price,
		Quantity:     input.Quantity,
		MinimumStock: input.MinimumStock,
		Status:       ComputeStatus(input.Quantity, input.MinimumStock),
		CategoryID:   input.CategoryID,
	}
	if err := s.repo.Create(ctx, coral); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("coral %q already exists", name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coral")
	}
	return coral, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Coral, error) {
	coral, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coral not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coral")
	}
	return coral, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*CoralList, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 25
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	corals, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list corals")
	}
	return &CoralList{Corals: corals, Total: total}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateCoralInput) (*models.Coral, error) {
	var coral *models.Coral
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		coral, err = repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "coral not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coral")
		}

		updates := map[string]any{}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "coral name required")
			}
			if !strings.EqualFold(name, coral.Name) {
				if err := s.checkNameAvailable(ctx, name, coral.ID); err != nil {
					return err
				}
			}
			updates["name"] = name
			coral.Name = name
		}
		if input.Species != nil {
			updates["species"] = *input.Species
			coral.Species = input.Species
		}
		if input.Description != nil {
			updates["description"] = *input.Description
			coral.Description = input.Description
		}
		if input.Price != nil {
			if input.Price.IsNegative() {
				return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
			}
			updates["price"] = *input.Price
			coral.Price = *input.Price
		}
		if input.CategoryID != nil {
			updates["category_id"] = *input.CategoryID
			coral.CategoryID = input.CategoryID
		}
		if input.ImagePath != nil {
			updates["image_path"] = *input.ImagePath
			coral.ImagePath = input.ImagePath
		}
		if input.MinimumStock != nil {
			if *input.MinimumStock < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "minimum stock cannot be negative")
			}
			updates["minimum_stock"] = *input.MinimumStock
			coral.MinimumStock = *input.MinimumStock
		}

		status := ComputeStatus(coral.Quantity, coral.MinimumStock)
		if status != coral.Status {
			updates["status"] = status
			coral.Status = status
		}
		if len(updates) == 0 {
			return nil
		}

		if err := repo.Update(ctx, coral.ID, updates); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("coral %q already exists", coral.Name))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coral")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coral, nil
}

// Restock adds received stock and recomputes the derived status.
func (s *service) Restock(ctx context.Context, id uuid.UUID, quantity int) (*models.Coral, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}

	var coral *models.Coral
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		coral, err = repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "coral not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coral")
		}

		coral.Quantity += quantity
		coral.Status = ComputeStatus(coral.Quantity, coral.MinimumStock)
		updates := map[string]any{
			"quantity": coral.Quantity,
			"status":   coral.Status,
		}
		if err := repo.Update(ctx, coral.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock coral")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coral, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete coral")
	}
	return nil
}

func (s *service) checkNameAvailable(ctx context.Context, name string, selfID uuid.UUID) error {
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check coral name")
	}
	if existing.ID != selfID {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("coral %q already exists", name))
	}
	return nil
}
