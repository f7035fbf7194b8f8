package generation

import (
	"time"

	"github.com/google/uuid"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/ai"
)

// ErrorKind is the user-visible failure classification of a generation job.
type ErrorKind string

const (
	KindUnauthorized        ErrorKind = "Unauthorized"
	KindJobAlreadyRunning   ErrorKind = "JobAlreadyRunning"
	KindModelUnavailable    ErrorKind = "ModelUnavailable"
	KindModelUnparseable    ErrorKind = "ModelUnparseable"
	KindBacklogEmpty        ErrorKind = "BacklogEmpty"
	KindPersistenceConflict ErrorKind = "PersistenceConflict"
	KindPersistenceFailed   ErrorKind = "PersistenceFailed"
	KindCancelled           ErrorKind = "Cancelled"
	KindInternal            ErrorKind = "Internal"
)

// EventType discriminates progress messages streamed to the client.
type EventType string

const (
	EventJobStarted EventType = "job_started"
	EventPhase      EventType = "phase"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// Event is one progress message of a generation job. Events for a single
// job are delivered in strict monotone order matching the state machine.
type Event struct {
	Type      EventType   `json:"type"`
	JobID     uuid.UUID   `json:"job_id"`
	Phase     string      `json:"phase,omitempty"`
	ErrorKind ErrorKind   `json:"error_kind,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	BacklogID *uuid.UUID  `json:"backlog_id,omitempty"`
	Summary   *ai.Summary `json:"summary,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
