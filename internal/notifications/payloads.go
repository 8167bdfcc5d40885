package notifications

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/coraldesk/coraldesk-backend/pkg/enums"
)

// Payload is the kind-discriminated content of a queued job. Dispatch code
// switches exhaustively on the concrete type; an unrecognized kind is a
// permanent failure, never a retry.
type Payload interface {
	Kind() enums.NotificationKind
}

// OrderConfirmationPayload captures the order snapshot sent on creation.
type OrderConfirmationPayload struct {
	OrderID     int64            `json:"order_id"`
	ClientEmail string           `json:"client_email"`
	ClientName  string           `json:"client_name"`
	ClientPhone *string          `json:"client_phone,omitempty"`
	TotalAmount string           `json:"total_amount"`
	Items       []OrderItemBrief `json:"items"`
}

// OrderItemBrief is one line of the confirmation summary.
type OrderItemBrief struct {
	CoralName string `json:"coral_name"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

func (OrderConfirmationPayload) Kind() enums.NotificationKind {
	return enums.NotificationKindOrderConfirmation
}

// StatusUpdatePayload records one order status transition. The order id is the
// correlation key used to find batch siblings.
type StatusUpdatePayload struct {
	OrderID     int64   `json:"order_id"`
	ClientEmail string  `json:"client_email"`
	ClientName  string  `json:"client_name"`
	ClientPhone *string `json:"client_phone,omitempty"`
	Status      string  `json:"status"`
}

func (StatusUpdatePayload) Kind() enums.NotificationKind {
	return enums.NotificationKindStatusUpdate
}

// BulletinPayload fans a published bulletin out to recipients.
type BulletinPayload struct {
	BulletinID uuid.UUID `json:"bulletin_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Recipients []string  `json:"recipients"`
}

func (BulletinPayload) Kind() enums.NotificationKind {
	return enums.NotificationKindBulletin
}

// LowStockPayload alerts staff when a coral dips to or below its minimum.
type LowStockPayload struct {
	CoralID      uuid.UUID `json:"coral_id"`
	CoralName    string    `json:"coral_name"`
	Quantity     int       `json:"quantity"`
	MinimumStock int       `json:"minimum_stock"`
}

func (LowStockPayload) Kind() enums.NotificationKind {
	return enums.NotificationKindLowStock
}

// ClientRegistrationPayload welcomes a newly registered client.
type ClientRegistrationPayload struct {
	ClientID    uuid.UUID `json:"client_id"`
	ClientEmail string    `json:"client_email"`
	ClientName  string    `json:"client_name"`
}

func (ClientRegistrationPayload) Kind() enums.NotificationKind {
	return enums.NotificationKindClientRegistration
}

// DecodePayload parses raw job payload bytes into the typed shape for kind.
func DecodePayload(kind enums.NotificationKind, raw json.RawMessage) (Payload, error) {
	switch kind {
	case enums.NotificationKindOrderConfirmation:
		var p OrderConfirmationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode order confirmation payload: %w", err)
		}
		return p, nil
	case enums.NotificationKindStatusUpdate:
		var p StatusUpdatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode status update payload: %w", err)
		}
		return p, nil
	case enums.NotificationKindBulletin:
		var p BulletinPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode bulletin payload: %w", err)
		}
		return p, nil
	case enums.NotificationKindLowStock:
		var p LowStockPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode low stock payload: %w", err)
		}
		return p, nil
	case enums.NotificationKindClientRegistration:
		var p ClientRegistrationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode client registration payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}
}

// EncodePayload serializes a typed payload for storage.
func EncodePayload(payload Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", payload.Kind(), err)
	}
	return raw, nil
}
