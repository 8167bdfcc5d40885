package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/coraldesk/coraldesk-backend/pkg/enums"
)

// NotificationJob is one durable unit of outbound notification work.
// Rows are mutated only by the queue service and removed only by the
// retention cleanup job.
type NotificationJob struct {
	ID                 uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind               enums.NotificationKind      `gorm:"column:kind;type:notification_kind;not null" json:"kind"`
	Payload            json.RawMessage             `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	Status             enums.NotificationJobStatus `gorm:"column:status;type:notification_job_status;not null;default:'pending'" json:"status"`
	Attempts           int                         `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts        int                         `gorm:"column:max_attempts;not null;default:3" json:"max_attempts"`
	BatchWindowSeconds int                         `gorm:"column:batch_window_seconds;not null;default:300" json:"batch_window_seconds"`
	LastAttemptAt      *time.Time                  `gorm:"column:last_attempt_at;type:timestamptz" json:"last_attempt_at,omitempty"`
	NextAttemptAt      *time.Time                  `gorm:"column:next_attempt_at;type:timestamptz" json:"next_attempt_at,omitempty"`
	LastError          *string                     `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	ProcessedAt        *time.Time                  `gorm:"column:processed_at;type:timestamptz" json:"processed_at,omitempty"`
	CreatedAt          time.Time                   `gorm:"column:created_at;type:timestamptz;default:now()" json:"created_at"`
	UpdatedAt          time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// BatchWindow returns the symmetric sibling-matching window as a duration.
func (j NotificationJob) BatchWindow() time.Duration {
	return time.Duration(j.BatchWindowSeconds) * time.Second
}
