package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRoom is a per-project conversation channel.
type ChatRoom struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id" validate:"required"`
	Name      string    `gorm:"not null" json:"name" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is a single message posted to a room.
type ChatMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RoomID    uuid.UUID `gorm:"type:uuid;index;not null" json:"room_id" validate:"required"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id" validate:"required"`
	Body      string    `gorm:"type:text;not null" json:"body" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}
