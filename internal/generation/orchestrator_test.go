package generation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/ai"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// Mock implementations

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Generate(ctx context.Context, prompt string, opts ai.Options) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

type mockCommitter struct {
	mock.Mock
}

func (m *mockCommitter) Commit(ctx context.Context, projectID uuid.UUID, tree []ai.EpicNode) (uuid.UUID, error) {
	args := m.Called(ctx, projectID, tree)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// nopStore satisfies JobStore without a database.
type nopStore struct{}

func (nopStore) Create(ctx context.Context, job *models.GenerationJob) error { return nil }
func (nopStore) SetState(ctx context.Context, id uuid.UUID, state string) error {
	return nil
}
func (nopStore) Finish(ctx context.Context, id uuid.UUID, state string, errorKind *string, backlogID *uuid.UUID) error {
	return nil
}

func testOptions() Options {
	o := DefaultOptions()
	o.RetryBase = time.Millisecond
	o.ConflictRetryWait = time.Millisecond
	o.RequestTimeout = time.Second
	o.JobTTL = time.Minute
	return o
}

const validReply = `backlog:
  - epic: Loyalty
    sub_epics:
      - title: Points
        user_stories:
          - As a customer, I want to earn points so that I get rewards
          - As a customer, I want to redeem points so that drinks are free
  - epic: Accounts
    sub_epics:
      - title: Profiles
        user_stories:
          - As a customer, I want a profile so that my history is saved
`

// collect drains events until a terminal one or the timeout.
func collect(t *testing.T, j *Job) []Event {
	t.Helper()
	ch, cancel := j.Subscribe()
	defer cancel()

	var events []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-ch:
			events = append(events, e)
			if e.Type == EventDone || e.Type == EventError {
				return events
			}
		case <-deadline:
			t.Fatalf("timed out waiting for terminal event, got %v", events)
		}
	}
}

func phases(events []Event) []string {
	var out []string
	for _, e := range events {
		if e.Type == EventPhase {
			out = append(out, e.Phase)
		}
	}
	return out
}

func TestHappyPath(t *testing.T) {
	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(validReply, nil).Once()

	backlogID := uuid.New()
	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, mock.Anything, mock.Anything).Return(backlogID, nil).Once()

	o := New(client, committer, nopStore{}, testOptions())
	j, err := o.Start(uuid.New(), uuid.New(), "Coffee", "A coffee shop loyalty mobile app", nil)
	require.NoError(t, err)

	events := collect(t, j)
	require.Equal(t, EventJobStarted, events[0].Type)
	require.Equal(t, []string{"prompting", "parsing", "persisting"}, phases(events))

	last := events[len(events)-1]
	require.Equal(t, EventDone, last.Type)
	require.Equal(t, backlogID, *last.BacklogID)
	require.Equal(t, 2, last.Summary.Epics)
	require.Equal(t, 3, last.Summary.Stories)
	require.GreaterOrEqual(t, last.Summary.Tasks, 3)

	client.AssertExpectations(t)
	committer.AssertExpectations(t)
}

func TestRepromptAfterMalformedReply(t *testing.T) {
	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(func(o ai.Options) bool {
		return o.Temperature == 0.7
	})).Return("Sorry, I cannot help with that.", nil).Once()
	client.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(func(o ai.Options) bool {
		return o.Temperature > 0.89 && o.Temperature < 0.91
	})).Return(validReply, nil).Once()

	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, mock.Anything, mock.Anything).Return(uuid.New(), nil).Once()

	o := New(client, committer, nopStore{}, testOptions())
	j, err := o.Start(uuid.New(), uuid.New(), "T", "desc", nil)
	require.NoError(t, err)

	events := collect(t, j)
	require.Equal(t, []string{"prompting", "parsing", "prompting", "parsing", "persisting"}, phases(events))
	require.Equal(t, EventDone, events[len(events)-1].Type)
	client.AssertExpectations(t)
}

func TestMalformedTwiceFails(t *testing.T) {
	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("prose only", nil).Twice()

	committer := &mockCommitter{}
	o := New(client, committer, nopStore{}, testOptions())
	j, err := o.Start(uuid.New(), uuid.New(), "T", "desc", nil)
	require.NoError(t, err)

	events := collect(t, j)
	last := events[len(events)-1]
	require.Equal(t, EventError, last.Type)
	require.Equal(t, KindModelUnparseable, last.ErrorKind)
	committer.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
	client.AssertExpectations(t)
}

func TestRateLimitRetry(t *testing.T) {
	rateErr := appErr.New(appErr.CodeRateLimited, "slow down").WithMeta("retry_after", 50*time.Millisecond)

	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", error(rateErr)).Once()
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(validReply, nil).Once()

	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, mock.Anything, mock.Anything).Return(uuid.New(), nil).Once()

	o := New(client, committer, nopStore{}, testOptions())
	start := time.Now()
	j, err := o.Start(uuid.New(), uuid.New(), "T", "desc", nil)
	require.NoError(t, err)

	events := collect(t, j)
	require.Equal(t, EventDone, events[len(events)-1].Type)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	client.AssertExpectations(t)
}

func TestUnavailableAfterRetriesFails(t *testing.T) {
	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("", error(appErr.New(appErr.CodeUnavailable, "upstream down"))).Times(3)

	o := New(client, &mockCommitter{}, nopStore{}, testOptions())
	j, err := o.Start(uuid.New(), uuid.New(), "T", "desc", nil)
	require.NoError(t, err)

	events := collect(t, j)
	last := events[len(events)-1]
	require.Equal(t, KindModelUnavailable, last.ErrorKind)
	client.AssertExpectations(t)
}

func TestEmptyDescriptionFailsFast(t *testing.T) {
	client := &mockClient{}
	o := New(client, &mockCommitter{}, nopStore{}, testOptions())

	_, err := o.Start(uuid.New(), uuid.New(), "T", "   ", nil)
	require.ErrorIs(t, err, ErrEmptyDescription)
	client.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestSecondJobRejectedWhileFirstRuns(t *testing.T) {
	release := make(chan struct{})
	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { <-release }).
		Return(validReply, nil)

	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, mock.Anything, mock.Anything).Return(uuid.New(), nil)

	o := New(client, committer, nopStore{}, testOptions())
	projectID := uuid.New()

	j, err := o.Start(projectID, uuid.New(), "T", "desc", nil)
	require.NoError(t, err)

	_, err = o.Start(projectID, uuid.New(), "T", "desc", nil)
	require.ErrorIs(t, err, ErrJobAlreadyRunning)

	close(release)
	events := collect(t, j)
	require.Equal(t, EventDone, events[len(events)-1].Type)

	// slot freed: a new job is admitted
	j2, err := o.Start(projectID, uuid.New(), "T", "desc", nil)
	require.NoError(t, err)
	collect(t, j2)
}

func TestCancelDuringModelCall(t *testing.T) {
	started := make(chan struct{})
	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return("", error(appErr.New(appErr.CodeUnavailable, "interrupted")))

	committer := &mockCommitter{}
	o := New(client, committer, nopStore{}, testOptions())
	j, err := o.Start(uuid.New(), uuid.New(), "T", "desc", nil)
	require.NoError(t, err)

	<-started
	require.True(t, o.Cancel(j.ID))

	events := collect(t, j)
	last := events[len(events)-1]
	require.Equal(t, EventError, last.Type)
	require.Equal(t, KindCancelled, last.ErrorKind)
	committer.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
}

func TestPersistenceConflictRetriedOnce(t *testing.T) {
	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(validReply, nil).Once()

	backlogID := uuid.New()
	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, mock.Anything, mock.Anything).
		Return(uuid.Nil, error(appErr.New(appErr.CodeConflict, "locked"))).Once()
	committer.On("Commit", mock.Anything, mock.Anything, mock.Anything).Return(backlogID, nil).Once()

	o := New(client, committer, nopStore{}, testOptions())
	j, err := o.Start(uuid.New(), uuid.New(), "T", "desc", nil)
	require.NoError(t, err)

	events := collect(t, j)
	last := events[len(events)-1]
	require.Equal(t, EventDone, last.Type)
	require.Equal(t, backlogID, *last.BacklogID)
	committer.AssertExpectations(t)
}

func TestPersistenceFailedIsTerminal(t *testing.T) {
	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(validReply, nil).Once()

	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, mock.Anything, mock.Anything).
		Return(uuid.Nil, error(appErr.New(appErr.CodeInternal, "insert failed")))

	o := New(client, committer, nopStore{}, testOptions())
	j, err := o.Start(uuid.New(), uuid.New(), "T", "desc", nil)
	require.NoError(t, err)

	events := collect(t, j)
	require.Equal(t, KindPersistenceFailed, events[len(events)-1].ErrorKind)
}

func TestSubscribeReplaysRing(t *testing.T) {
	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(validReply, nil).Once()

	committer := &mockCommitter{}
	committer.On("Commit", mock.Anything, mock.Anything, mock.Anything).Return(uuid.New(), nil).Once()

	o := New(client, committer, nopStore{}, testOptions())
	j, err := o.Start(uuid.New(), uuid.New(), "T", "desc", nil)
	require.NoError(t, err)

	// wait for the job to finish, then subscribe late
	collect(t, j)

	late := collect(t, j)
	require.Equal(t, EventJobStarted, late[0].Type)
	require.Equal(t, []string{"prompting", "parsing", "persisting"}, phases(late))
	require.Equal(t, EventDone, late[len(late)-1].Type)
}
