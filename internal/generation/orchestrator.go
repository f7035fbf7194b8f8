package generation

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/ai"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/logger"
)

// Committer persists a normalized tree as the project's backlog, replacing
// any previous one atomically.
type Committer interface {
	Commit(ctx context.Context, projectID uuid.UUID, tree []ai.EpicNode) (uuid.UUID, error)
}

// JobStore mirrors job state into the database for the polling fallback.
type JobStore interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	SetState(ctx context.Context, id uuid.UUID, state string) error
	Finish(ctx context.Context, id uuid.UUID, state string, errorKind *string, backlogID *uuid.UUID) error
}

// Options tune the orchestrator. Waits are configurable so tests can shrink
// them.
type Options struct {
	Caps            ai.Caps
	Temperature     float64
	TemperatureBump float64
	MaxOutputTokens int
	RequestTimeout  time.Duration

	RateLimitRetries  int
	TimeoutRetries    int
	RetryBase         time.Duration
	ConflictRetryWait time.Duration

	JobTTL time.Duration
}

// DefaultOptions returns the production retry policy.
func DefaultOptions() Options {
	return Options{
		Caps:              ai.DefaultCaps(),
		Temperature:       0.7,
		TemperatureBump:   0.2,
		MaxOutputTokens:   2048,
		RequestTimeout:    60 * time.Second,
		RateLimitRetries:  2,
		TimeoutRetries:    1,
		RetryBase:         2 * time.Second,
		ConflictRetryWait: 500 * time.Millisecond,
		JobTTL:            time.Hour,
	}
}

// Start rejections.
var (
	ErrJobAlreadyRunning = appErr.New(appErr.CodeConflict, "a generation job is already running for this project")
	ErrEmptyDescription  = appErr.New(appErr.CodeEmptyResult, "project description is empty")
)

// Orchestrator drives generation jobs end to end: prompt, model call,
// parse, normalize, persist. It is the only component that retries.
type Orchestrator struct {
	client    ai.Client
	committer Committer
	store     JobStore
	registry  *Registry
	opts      Options
}

// New wires an orchestrator.
func New(client ai.Client, committer Committer, store JobStore, opts Options) *Orchestrator {
	return &Orchestrator{
		client:    client,
		committer: committer,
		store:     store,
		registry:  NewRegistry(opts.JobTTL),
		opts:      opts,
	}
}

// Job resolves a job by id, including terminal jobs within their TTL.
func (o *Orchestrator) Job(id uuid.UUID) *Job {
	return o.registry.Get(id)
}

// Start admits and launches a job for the project. It fails fast with an
// empty-result error when the description is blank, without touching the
// model, and with a conflict error when the project already has an active
// job.
func (o *Orchestrator) Start(projectID, requesterID uuid.UUID, projectTitle, description string, constraints map[string]string) (*Job, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}

	ctx, cancel := context.WithCancel(context.Background())
	j, ok := o.registry.admit(projectID, requesterID, cancel)
	if !ok {
		cancel()
		return nil, ErrJobAlreadyRunning
	}

	rec := &models.GenerationJob{
		ID:          j.ID,
		ProjectID:   projectID,
		RequesterID: requesterID,
		State:       models.JobStatePending,
		StartedAt:   time.Now().UTC(),
	}
	if err := o.store.Create(ctx, rec); err != nil {
		o.registry.release(j)
		cancel()
		return nil, appErr.Wrap(err, appErr.CodeInternal, "create generation job failed")
	}

	j.publish(Event{Type: EventJobStarted, JobID: j.ID, Timestamp: time.Now().UTC()})
	logger.L().Info("generation job started",
		zap.String("job_id", j.ID.String()),
		zap.String("project_id", projectID.String()),
	)

	prompt := ai.BuildPrompt(ai.PromptInput{
		ProjectTitle:       projectTitle,
		ProjectDescription: description,
		Constraints:        constraints,
	}, o.opts.Caps)

	go o.run(ctx, j, prompt)
	return j, nil
}

// Cancel requests cancellation of a non-terminal job. The job transitions
// to failed with kind Cancelled at its next suspension point.
func (o *Orchestrator) Cancel(jobID uuid.UUID) bool {
	j := o.registry.Get(jobID)
	if j == nil {
		return false
	}
	switch j.State() {
	case models.JobStateDone, models.JobStateFailed:
		return false
	}
	j.Cancel()
	return true
}

func (o *Orchestrator) run(ctx context.Context, j *Job, prompt string) {
	temp := o.opts.Temperature
	reprompted := false

	var tree []ai.EpicNode
	for {
		if !o.transition(ctx, j, models.JobStatePrompting) {
			return
		}
		text, err := o.generate(ctx, prompt, temp)
		if err != nil {
			if ctx.Err() != nil {
				o.fail(j, KindCancelled, "job cancelled")
				return
			}
			o.fail(j, KindModelUnavailable, err.Error())
			return
		}

		if !o.transition(ctx, j, models.JobStateParsing) {
			return
		}
		parsed := ai.ParseBacklog(text)
		if len(parsed) == 0 {
			if !reprompted {
				// re-prompt with higher entropy
				reprompted = true
				temp += o.opts.TemperatureBump
				continue
			}
			o.fail(j, KindModelUnparseable, "model reply carried no parseable backlog")
			return
		}

		normalized, err := ai.Normalize(parsed, o.opts.Caps)
		if err != nil {
			if !reprompted {
				reprompted = true
				temp += o.opts.TemperatureBump
				continue
			}
			o.fail(j, KindBacklogEmpty, "backlog empty after normalization")
			return
		}
		tree = normalized
		break
	}

	if !o.transition(ctx, j, models.JobStatePersisting) {
		return
	}
	backlogID, err := o.commit(ctx, j.ProjectID, tree)
	if err != nil {
		if ctx.Err() != nil {
			o.fail(j, KindCancelled, "job cancelled")
			return
		}
		if appErr.IsCode(err, appErr.CodeConflict) {
			o.fail(j, KindPersistenceConflict, err.Error())
			return
		}
		o.fail(j, KindPersistenceFailed, err.Error())
		return
	}

	o.done(j, backlogID, ai.Summarize(tree))
}

// generate calls the model, applying the retry policy: rate limits honor
// the suggested delay with exponential backoff on top, timeouts get one
// immediate retry, unavailability backs off. A malformed body is treated as
// an empty reply so the re-prompt rule applies.
func (o *Orchestrator) generate(ctx context.Context, prompt string, temp float64) (string, error) {
	opts := ai.Options{
		Temperature:     temp,
		MaxOutputTokens: o.opts.MaxOutputTokens,
		Timeout:         o.opts.RequestTimeout,
	}

	var rateRetries, timeoutRetries, unavailRetries int
	for {
		text, err := o.client.Generate(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}

		switch {
		case appErr.IsCode(err, appErr.CodeRateLimited):
			if rateRetries >= o.opts.RateLimitRetries {
				return "", err
			}
			wait := ai.RetryAfterOf(err)
			if wait == 0 {
				wait = o.backoff(rateRetries)
			}
			rateRetries++
			if !sleep(ctx, wait) {
				return "", err
			}
		case appErr.IsCode(err, appErr.CodeDeadline):
			if timeoutRetries >= o.opts.TimeoutRetries {
				return "", err
			}
			timeoutRetries++
		case appErr.IsCode(err, appErr.CodeUnavailable):
			if unavailRetries >= o.opts.RateLimitRetries {
				return "", err
			}
			unavailRetries++
			if !sleep(ctx, o.backoff(unavailRetries-1)) {
				return "", err
			}
		case appErr.IsCode(err, appErr.CodeMalformed):
			return "", nil
		default:
			return "", err
		}
	}
}

func (o *Orchestrator) commit(ctx context.Context, projectID uuid.UUID, tree []ai.EpicNode) (uuid.UUID, error) {
	id, err := o.committer.Commit(ctx, projectID, tree)
	if err != nil && appErr.IsCode(err, appErr.CodeConflict) {
		if !sleep(ctx, o.opts.ConflictRetryWait) {
			return uuid.Nil, err
		}
		id, err = o.committer.Commit(ctx, projectID, tree)
	}
	return id, err
}

// transition moves the job to the next phase and emits the phase event.
// Returns false when the job was cancelled, in which case it is failed.
func (o *Orchestrator) transition(ctx context.Context, j *Job, state string) bool {
	if ctx.Err() != nil {
		o.fail(j, KindCancelled, "job cancelled")
		return false
	}
	j.setState(state)
	_ = o.store.SetState(context.Background(), j.ID, state)
	j.publish(Event{Type: EventPhase, JobID: j.ID, Phase: state, Timestamp: time.Now().UTC()})
	return true
}

func (o *Orchestrator) fail(j *Job, kind ErrorKind, detail string) {
	j.setState(models.JobStateFailed)
	k := string(kind)
	_ = o.store.Finish(context.Background(), j.ID, models.JobStateFailed, &k, nil)
	j.publish(Event{Type: EventError, JobID: j.ID, ErrorKind: kind, Detail: detail, Timestamp: time.Now().UTC()})
	o.registry.release(j)
	logger.L().Warn("generation job failed",
		zap.String("job_id", j.ID.String()),
		zap.String("error_kind", string(kind)),
		zap.String("detail", detail),
	)
}

func (o *Orchestrator) done(j *Job, backlogID uuid.UUID, summary ai.Summary) {
	j.setState(models.JobStateDone)
	_ = o.store.Finish(context.Background(), j.ID, models.JobStateDone, nil, &backlogID)
	j.publish(Event{
		Type:      EventDone,
		JobID:     j.ID,
		BacklogID: &backlogID,
		Summary:   &summary,
		Timestamp: time.Now().UTC(),
	})
	o.registry.release(j)
	logger.L().Info("generation job done",
		zap.String("job_id", j.ID.String()),
		zap.String("backlog_id", backlogID.String()),
		zap.Int("epics", summary.Epics),
	)
}

// backoff returns base << n with +-25% jitter.
func (o *Orchestrator) backoff(n int) time.Duration {
	d := float64(o.opts.RetryBase << n)
	return time.Duration(d * (0.75 + 0.5*rand.Float64()))
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
