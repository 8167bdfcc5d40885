package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
)

// CreateOrderItemInput is one requested line. ExpectedUnitPrice is the
// client-visible discounted price and is checked against the server-side
// computation before the order is accepted.
type CreateOrderItemInput struct {
	CoralID           uuid.UUID       `json:"coral_id"`
	Quantity          int             `json:"quantity"`
	ExpectedUnitPrice decimal.Decimal `json:"expected_unit_price"`
}

// CreateOrderInput carries a new order request.
type CreateOrderInput struct {
	ClientID uuid.UUID              `json:"client_id"`
	Items    []CreateOrderItemInput `json:"items"`
	Notes    *string                `json:"notes,omitempty"`
}

// ListParams filter and page the order list.
type ListParams struct {
	Limit    int
	Offset   int
	Status   *enums.OrderStatus
	ClientID *uuid.UUID
	Archived *bool
}

// OrderList wraps a page of orders plus the unfiltered total.
type OrderList struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
}

// ArchivedClientSnapshot is the denormalized client record frozen at archive
// time. Once written it is the only client data the order retains.
type ArchivedClientSnapshot struct {
	ID           uuid.UUID       `json:"id"`
	Email        string          `json:"email"`
	Name         string          `json:"name"`
	Phone        *string         `json:"phone,omitempty"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
}

// ArchivedItemSnapshot is one frozen order line.
type ArchivedItemSnapshot struct {
	CoralID      uuid.UUID       `json:"coral_id"`
	CoralName    string          `json:"coral_name"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// lowStockAlert is collected inside the create/restock transaction and
// enqueued only after it commits.
type lowStockAlert struct {
	CoralID      uuid.UUID
	CoralName    string
	Quantity     int
	MinimumStock int
}
