package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coraldesk/coraldesk-backend/pkg/enums"
)

// Order is a client purchase. Once archived, ClientID is nulled, live item
// rows are deleted, and the Archived* snapshots become the only source of
// client and line-item data.
type Order struct {
	ID                 int64             `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ClientID           *uuid.UUID        `gorm:"column:client_id;type:uuid" json:"client_id,omitempty"`
	Status             enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'" json:"status"`
	TotalAmount        decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null" json:"total_amount"`
	Paid               bool              `gorm:"column:paid;not null;default:false" json:"paid"`
	Archived           bool              `gorm:"column:archived;not null;default:false" json:"archived"`
	StockRestored      bool              `gorm:"column:stock_restored;not null;default:false" json:"stock_restored"`
	ArchivedClientData json.RawMessage   `gorm:"column:archived_client_data;type:jsonb" json:"archived_client_data,omitempty"`
	ArchivedItemsData  json.RawMessage   `gorm:"column:archived_items_data;type:jsonb" json:"archived_items_data,omitempty"`
	Notes              *string           `gorm:"column:notes;type:text" json:"notes,omitempty"`
	Client             *Client           `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Items              []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	InvoiceRef         *string           `gorm:"column:invoice_ref;type:text" json:"invoice_ref,omitempty"`
	ArchivedAt         *time.Time        `gorm:"column:archived_at;type:timestamptz" json:"archived_at,omitempty"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// OrderItem snapshots one line of an order at purchase time.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID      int64           `gorm:"column:order_id;not null" json:"order_id"`
	CoralID      uuid.UUID       `gorm:"column:coral_id;type:uuid;not null" json:"coral_id"`
	CoralName    string          `gorm:"column:coral_name;type:text;not null" json:"coral_name"`
	Quantity     int             `gorm:"column:quantity;not null" json:"quantity"`
	PriceAtOrder decimal.Decimal `gorm:"column:price_at_order;type:numeric(10,2);not null" json:"price_at_order"`
	Subtotal     decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
