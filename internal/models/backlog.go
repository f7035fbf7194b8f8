package models

import (
	"time"

	"github.com/google/uuid"
)

// Backlog is the root of a project's product-management tree. A project holds
// at most one backlog at a time; regeneration replaces the whole subtree.
type Backlog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"project_id" validate:"required"`
	Epics     []Epic    `gorm:"foreignKey:BacklogID;constraint:OnDelete:CASCADE" json:"epics,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Epic is a top-level functional area of a backlog. Position values of
// sibling epics form a contiguous 0-based sequence.
type Epic struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	BacklogID uuid.UUID `gorm:"type:uuid;not null;index:idx_epics_backlog_pos,unique" json:"backlog_id" validate:"required"`
	Title     string    `gorm:"not null" json:"title" validate:"required"`
	Position  int       `gorm:"not null;index:idx_epics_backlog_pos,unique" json:"position"`
	SubEpics  []SubEpic `gorm:"foreignKey:EpicID;constraint:OnDelete:CASCADE" json:"sub_epics,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubEpic refines an epic into a narrower slice of work.
type SubEpic struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	EpicID      uuid.UUID   `gorm:"type:uuid;not null;index:idx_subepics_epic_pos,unique" json:"epic_id" validate:"required"`
	Title       string      `gorm:"not null" json:"title" validate:"required"`
	Position    int         `gorm:"not null;index:idx_subepics_epic_pos,unique" json:"position"`
	UserStories []UserStory `gorm:"foreignKey:SubEpicID;constraint:OnDelete:CASCADE" json:"user_stories,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// UserStory carries a single sentence in the canonical
// "As a <role>, I want <goal> so that <benefit>" form.
type UserStory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SubEpicID uuid.UUID `gorm:"type:uuid;not null;index:idx_stories_subepic_pos,unique" json:"sub_epic_id" validate:"required"`
	Text      string    `gorm:"type:text;not null" json:"text" validate:"required"`
	Position  int       `gorm:"not null;index:idx_stories_subepic_pos,unique" json:"position"`
	Tasks     []Task    `gorm:"foreignKey:UserStoryID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task statuses.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Task is the leaf work item under a user story.
type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserStoryID uuid.UUID  `gorm:"type:uuid;not null;index:idx_tasks_story_pos,unique" json:"user_story_id" validate:"required"`
	Title       string     `gorm:"not null" json:"title" validate:"required"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"type:varchar(16);not null;default:todo" json:"status" validate:"required,oneof=todo in_progress done"`
	AssigneeID  *uuid.UUID `gorm:"type:uuid;index" json:"assignee_id"`
	SprintID    *uuid.UUID `gorm:"type:uuid;index" json:"sprint_id"`
	Position    int        `gorm:"not null;index:idx_tasks_story_pos,unique" json:"position"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
