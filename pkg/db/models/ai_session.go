package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// AISession logs one metered AI generation call.
type AISession struct {
	ID          uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	ProjectID   *uuid.UUID          `gorm:"column:project_id;type:uuid"`
	Kind        enums.AISessionKind `gorm:"column:kind;type:ai_session_kind;not null"`
	PromptChars int                 `gorm:"column:prompt_chars;not null"`
	Units       int                 `gorm:"column:units;not null;default:1"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}
