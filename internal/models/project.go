package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Project represents a managed project owned by a user.
type Project struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OwnerID     uuid.UUID      `gorm:"type:uuid;index;not null" json:"owner_id" validate:"required"`
	Title       string         `gorm:"not null;index:idx_projects_owner_title,unique" json:"title" validate:"required"`
	Description string         `gorm:"type:text" json:"description"`
	Settings    datatypes.JSON `gorm:"type:jsonb" json:"settings"`
	Archived    bool           `gorm:"not null;default:false;index" json:"archived"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Member roles. Owners and editors may mutate project contents, including
// triggering backlog generation; viewers are read-only.
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// ProjectMember links a user to a project with a role.
type ProjectMember struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index:idx_members_project_user,unique" json:"project_id" validate:"required"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_members_project_user,unique" json:"user_id" validate:"required"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role" validate:"required,oneof=owner editor viewer"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sprint is a time-boxed iteration tasks can be scheduled into.
type Sprint struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProjectID uuid.UUID  `gorm:"type:uuid;index;not null" json:"project_id" validate:"required"`
	Name      string     `gorm:"not null" json:"name" validate:"required"`
	StartsAt  *time.Time `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
