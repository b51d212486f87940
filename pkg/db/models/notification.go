package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// Notification logs one outbound email dispatch attempt.
type Notification struct {
	ID        uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	Kind      enums.NotificationKind   `gorm:"column:kind;type:notification_kind;not null"`
	Recipient string                   `gorm:"column:recipient;not null"`
	Subject   string                   `gorm:"column:subject;not null"`
	Status    enums.NotificationStatus `gorm:"column:status;type:notification_status;not null"`
	Error     *string                  `gorm:"column:error"`
	Data      json.RawMessage          `gorm:"column:data;type:jsonb"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
}
