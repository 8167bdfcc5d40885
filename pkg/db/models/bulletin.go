package models

import (
	"time"

	"github.com/google/uuid"
)

// Bulletin is an announcement pushed to clients when published.
type Bulletin struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title       string     `gorm:"column:title;type:text;not null" json:"title"`
	Body        string     `gorm:"column:body;type:text;not null" json:"body"`
	PublishedAt *time.Time `gorm:"column:published_at;type:timestamptz" json:"published_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
