package generation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ringSize bounds the per-job event history replayed to reconnecting
// clients.
const ringSize = 16

// subBuffer is the capacity of a subscriber channel. A subscriber that falls
// further behind than this loses events rather than blocking the job.
const subBuffer = 64

// Job is the in-memory identity of a generation run. It outlives any single
// WebSocket connection; clients reattach by job id.
type Job struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	RequesterID uuid.UUID

	cancel context.CancelFunc

	mu      sync.Mutex
	state   string
	ring    []Event
	subs    map[int]chan Event
	nextSub int
}

// State returns the job's current state.
func (j *Job) State() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Cancel requests cancellation; the job fails at its next suspension point.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) setState(s string) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// publish appends an event to the ring and fans it out to live subscribers.
// The ring is single-writer: only the orchestrator goroutine publishes.
func (j *Job) publish(e Event) {
	j.mu.Lock()
	j.ring = append(j.ring, e)
	if len(j.ring) > ringSize {
		j.ring = j.ring[len(j.ring)-ringSize:]
	}
	for _, ch := range j.subs {
		select {
		case ch <- e:
		default:
		}
	}
	j.mu.Unlock()
}

// Subscribe replays the retained event history and then tails live events.
// The returned cancel function must be called to release the subscription.
func (j *Job) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subBuffer)

	j.mu.Lock()
	for _, e := range j.ring {
		ch <- e
	}
	id := j.nextSub
	j.nextSub++
	j.subs[id] = ch
	j.mu.Unlock()

	return ch, func() {
		j.mu.Lock()
		delete(j.subs, id)
		j.mu.Unlock()
	}
}

// Registry tracks jobs by id and enforces the one-active-job-per-project
// rule. Terminal jobs stay resolvable for the configured TTL.
type Registry struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*Job
	active map[uuid.UUID]uuid.UUID // project id -> running job id
	ttl    time.Duration
}

// NewRegistry creates a registry retaining terminal jobs for ttl.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		jobs:   map[uuid.UUID]*Job{},
		active: map[uuid.UUID]uuid.UUID{},
		ttl:    ttl,
	}
}

// Get resolves a job by id, or nil.
func (r *Registry) Get(id uuid.UUID) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

// admit registers a new job unless the project already has an active one.
func (r *Registry) admit(projectID, requesterID uuid.UUID, cancel context.CancelFunc) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.active[projectID]; busy {
		return nil, false
	}

	j := &Job{
		ID:          uuid.New(),
		ProjectID:   projectID,
		RequesterID: requesterID,
		cancel:      cancel,
		state:       "pending",
		subs:        map[int]chan Event{},
	}
	r.jobs[j.ID] = j
	r.active[projectID] = j.ID
	return j, true
}

// release marks a job terminal: the project slot frees immediately and the
// job record expires after the TTL.
func (r *Registry) release(j *Job) {
	r.mu.Lock()
	if r.active[j.ProjectID] == j.ID {
		delete(r.active, j.ProjectID)
	}
	r.mu.Unlock()

	time.AfterFunc(r.ttl, func() {
		r.mu.Lock()
		delete(r.jobs, j.ID)
		r.mu.Unlock()
	})
}
