package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client is a customer account. DiscountRate is a fraction in [0,1) applied
// to list prices at order time.
type Client struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string          `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	Name         string          `gorm:"column:name;type:text;not null" json:"name"`
	Phone        *string         `gorm:"column:phone;type:text" json:"phone,omitempty"`
	PasswordHash string          `gorm:"column:password_hash;type:text;not null" json:"-"`
	DiscountRate decimal.Decimal `gorm:"column:discount_rate;type:numeric(5,4);not null;default:0" json:"discount_rate"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
