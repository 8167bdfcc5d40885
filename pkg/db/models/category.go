package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups corals and maps to a directory under the uploads root.
type Category struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string    `gorm:"column:name;type:text;not null" json:"name"`
	DirectoryName string    `gorm:"column:directory_name;type:text;not null" json:"directory_name"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
