package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coraldesk/coraldesk-backend/pkg/enums"
)

// Coral is one stocked inventory item.
type Coral struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string                 `gorm:"column:name;type:text;not null" json:"name"`
	Species      *string                `gorm:"column:species;type:text" json:"species,omitempty"`
	Description  *string                `gorm:"column:description;type:text" json:"description,omitempty"`
	Price        decimal.Decimal        `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	Quantity     int                    `gorm:"column:quantity;not null;default:0" json:"quantity"`
	MinimumStock int                    `gorm:"column:minimum_stock;not null;default:0" json:"minimum_stock"`
	Status       enums.CoralStockStatus `gorm:"column:status;type:coral_stock_status;not null;default:'out_of_stock'" json:"status"`
	CategoryID   *uuid.UUID             `gorm:"column:category_id;type:uuid" json:"category_id,omitempty"`
	ImagePath    *string                `gorm:"column:image_path;type:text" json:"image_path,omitempty"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
