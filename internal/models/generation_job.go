package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationJob states. Transitions are monotone along
// pending -> prompting -> parsing -> persisting -> (done | failed);
// failed is terminal.
const (
	JobStatePending    = "pending"
	JobStatePrompting  = "prompting"
	JobStateParsing    = "parsing"
	JobStatePersisting = "persisting"
	JobStateDone       = "done"
	JobStateFailed     = "failed"
)

// GenerationJob identifies one run of the backlog generation pipeline.
// Terminal jobs are retained for a configurable TTL as a polling fallback.
type GenerationJob struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"project_id" validate:"required"`
	RequesterID uuid.UUID  `gorm:"type:uuid;index;not null" json:"requester_id" validate:"required"`
	State       string     `gorm:"type:varchar(16);index;not null" json:"state" validate:"required,oneof=pending prompting parsing persisting done failed"`
	ErrorKind   *string    `gorm:"type:varchar(32)" json:"error_kind,omitempty"`
	BacklogID   *uuid.UUID `gorm:"type:uuid" json:"backlog_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the job can no longer change state.
func (j *GenerationJob) Terminal() bool {
	return j.State == JobStateDone || j.State == JobStateFailed
}
