package ws

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/ai"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/generation"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/services"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

var testSecret = []byte("ws-test-secret")

type stubClient struct {
	reply string
}

func (c stubClient) Generate(ctx context.Context, prompt string, opts ai.Options) (string, error) {
	return c.reply, nil
}

// blockingClient holds the model call open until released, keeping the job
// in the prompting phase.
type blockingClient struct {
	reply   string
	release chan struct{}
}

func (c blockingClient) Generate(ctx context.Context, prompt string, opts ai.Options) (string, error) {
	select {
	case <-c.release:
		return c.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type stubCommitter struct {
	backlogID uuid.UUID
}

func (c stubCommitter) Commit(ctx context.Context, projectID uuid.UUID, tree []ai.EpicNode) (uuid.UUID, error) {
	return c.backlogID, nil
}

type nopStore struct{}

func (nopStore) Create(ctx context.Context, job *models.GenerationJob) error    { return nil }
func (nopStore) SetState(ctx context.Context, id uuid.UUID, state string) error { return nil }
func (nopStore) Finish(ctx context.Context, id uuid.UUID, state string, errorKind *string, backlogID *uuid.UUID) error {
	return nil
}

// stubProjects grants a fixed role per project, ignoring the user.
type stubProjects struct {
	services.ProjectService
	roles    map[uuid.UUID]string
	projects map[uuid.UUID]*models.Project
}

func (s stubProjects) CanRead(ctx context.Context, projectID, userID uuid.UUID) error {
	if s.roles[projectID] == "" {
		return appErr.New(appErr.CodeUnauthorized, "user has no access to project")
	}
	return nil
}

func (s stubProjects) CanWrite(ctx context.Context, projectID, userID uuid.UUID) error {
	if err := s.CanRead(ctx, projectID, userID); err != nil {
		return err
	}
	if role := s.roles[projectID]; role != models.RoleOwner && role != models.RoleEditor {
		return appErr.New(appErr.CodeForbidden, "write access requires the owner or editor role")
	}
	return nil
}

func (s stubProjects) GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	p := s.projects[projectID]
	if p == nil {
		return nil, appErr.New(appErr.CodeNotFound, "project not found")
	}
	return p, nil
}

func singleProject(projectID uuid.UUID, role, description string) stubProjects {
	return stubProjects{
		roles: map[uuid.UUID]string{projectID: role},
		projects: map[uuid.UUID]*models.Project{
			projectID: {ID: projectID, Title: "Loyalty App", Description: description},
		},
	}
}

const wellFormedReply = `backlog:
  - epic: Loyalty
    sub_epics:
      - title: Points
        user_stories:
          - As a customer, I want to earn points so that I get rewards
`

func signTestToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T, projects stubProjects, client ai.Client) (*httptest.Server, *generation.Orchestrator) {
	t.Helper()
	opts := generation.DefaultOptions()
	opts.RetryBase = time.Millisecond
	opts.JobTTL = time.Minute
	orch := generation.New(client, stubCommitter{backlogID: uuid.New()}, nopStore{}, opts)

	r := chi.NewRouter()
	r.Get("/ws/ai/backlog/{projectID}", NewBacklogChannel(testSecret, orch, projects).ServeHTTP)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, orch
}

func dial(t *testing.T, srv *httptest.Server, projectID uuid.UUID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/ai/backlog/" + projectID.String()
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntilTerminal(t *testing.T, conn *websocket.Conn) []generation.Event {
	t.Helper()
	var events []generation.Event
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var e generation.Event
		require.NoError(t, conn.ReadJSON(&e))
		events = append(events, e)
		if e.Type == generation.EventDone || e.Type == generation.EventError {
			return events
		}
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) generation.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var e generation.Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestBacklogChannelGeneratesOverWebsocket(t *testing.T) {
	projectID := uuid.New()
	userID := uuid.New()
	projects := singleProject(projectID, models.RoleOwner, "A coffee shop loyalty mobile app")
	srv, _ := newTestServer(t, projects, stubClient{reply: wellFormedReply})

	conn := dial(t, srv, projectID, signTestToken(t, userID))
	require.NoError(t, conn.WriteJSON(Command{Type: CommandGenerate}))

	events := readUntilTerminal(t, conn)
	final := events[len(events)-1]
	require.Equal(t, generation.EventDone, final.Type)
	require.NotNil(t, final.BacklogID)
	require.NotNil(t, final.Summary)
	require.Equal(t, 1, final.Summary.Epics)

	require.Equal(t, generation.EventJobStarted, events[0].Type)
	var phases []string
	for _, e := range events {
		if e.Type == generation.EventPhase {
			phases = append(phases, e.Phase)
		}
	}
	require.Equal(t, []string{"prompting", "parsing", "persisting"}, phases)
}

func TestBacklogChannelRejectsBadToken(t *testing.T) {
	projectID := uuid.New()
	projects := singleProject(projectID, models.RoleOwner, "brief")
	srv, _ := newTestServer(t, projects, stubClient{reply: wellFormedReply})

	conn := dial(t, srv, projectID, "not-a-token")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close frame, got %v", err)
	require.Equal(t, CloseUnauthorized, closeErr.Code)
}

func TestBacklogChannelRejectsViewerGenerate(t *testing.T) {
	projectID := uuid.New()
	userID := uuid.New()
	projects := singleProject(projectID, models.RoleViewer, "brief")
	srv, _ := newTestServer(t, projects, stubClient{reply: wellFormedReply})

	conn := dial(t, srv, projectID, signTestToken(t, userID))
	require.NoError(t, conn.WriteJSON(Command{Type: CommandGenerate}))

	events := readUntilTerminal(t, conn)
	require.Equal(t, generation.EventError, events[len(events)-1].Type)
	require.Equal(t, generation.KindUnauthorized, events[len(events)-1].ErrorKind)
}

func TestBacklogChannelCancelScopedToProject(t *testing.T) {
	projectA := uuid.New()
	projectB := uuid.New()
	userID := uuid.New()
	projects := stubProjects{
		roles: map[uuid.UUID]string{projectA: models.RoleOwner, projectB: models.RoleOwner},
		projects: map[uuid.UUID]*models.Project{
			projectA: {ID: projectA, Title: "A", Description: "brief A"},
			projectB: {ID: projectB, Title: "B", Description: "brief B"},
		},
	}
	client := blockingClient{reply: wellFormedReply, release: make(chan struct{})}
	srv, orch := newTestServer(t, projects, client)
	token := signTestToken(t, userID)

	// Job runs on project A, held in the prompting phase.
	job, err := orch.Start(projectA, userID, "A", "brief A", nil)
	require.NoError(t, err)

	// A fully privileged connection on project B's channel must not be able
	// to cancel it.
	connB := dial(t, srv, projectB, token)
	require.NoError(t, connB.WriteJSON(Command{Type: CommandCancel, JobID: job.ID.String()}))
	e := readEvent(t, connB)
	require.Equal(t, generation.EventError, e.Type)
	require.Equal(t, generation.KindInternal, e.ErrorKind)

	// The job was untouched: it completes once the model call returns.
	close(client.release)
	require.Eventually(t, func() bool {
		return job.State() == models.JobStateDone
	}, 5*time.Second, 10*time.Millisecond, "cross-project cancel must not reach the job")
}

func TestBacklogChannelViewerCannotCancel(t *testing.T) {
	projectID := uuid.New()
	userID := uuid.New()
	projects := singleProject(projectID, models.RoleViewer, "brief")
	client := blockingClient{reply: wellFormedReply, release: make(chan struct{})}
	srv, orch := newTestServer(t, projects, client)

	job, err := orch.Start(projectID, uuid.New(), "Loyalty App", "brief", nil)
	require.NoError(t, err)

	conn := dial(t, srv, projectID, signTestToken(t, userID))
	require.NoError(t, conn.WriteJSON(Command{Type: CommandCancel, JobID: job.ID.String()}))
	e := readEvent(t, conn)
	require.Equal(t, generation.EventError, e.Type)
	require.Equal(t, generation.KindUnauthorized, e.ErrorKind)

	close(client.release)
	require.Eventually(t, func() bool {
		return job.State() == models.JobStateDone
	}, 5*time.Second, 10*time.Millisecond, "viewer cancel must not reach the job")
}

func TestBacklogChannelResumeReplaysHistory(t *testing.T) {
	projectID := uuid.New()
	userID := uuid.New()
	projects := singleProject(projectID, models.RoleOwner, "A coffee shop loyalty mobile app")
	srv, _ := newTestServer(t, projects, stubClient{reply: wellFormedReply})

	token := signTestToken(t, userID)
	conn := dial(t, srv, projectID, token)
	require.NoError(t, conn.WriteJSON(Command{Type: CommandGenerate}))
	first := readUntilTerminal(t, conn)
	require.Equal(t, generation.EventDone, first[len(first)-1].Type)
	jobID := first[0].JobID
	conn.Close()

	// A fresh connection resuming the job sees the same sequence from the ring.
	conn2 := dial(t, srv, projectID, token)
	require.NoError(t, conn2.WriteJSON(Command{Type: CommandResume, JobID: jobID.String()}))
	replayed := readUntilTerminal(t, conn2)
	require.Equal(t, len(first), len(replayed))
	require.Equal(t, generation.EventDone, replayed[len(replayed)-1].Type)
	for i := range first {
		require.Equal(t, first[i].Type, replayed[i].Type)
	}
}
