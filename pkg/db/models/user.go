package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coraldesk/coraldesk-backend/pkg/enums"
)

// User is a staff account for the admin surfaces.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string         `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	Name         string         `gorm:"column:name;type:text;not null" json:"name"`
	PasswordHash string         `gorm:"column:password_hash;type:text;not null" json:"-"`
	Role         enums.UserRole `gorm:"column:role;type:user_role;not null;default:'staff'" json:"role"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at;type:timestamptz" json:"last_login_at,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
