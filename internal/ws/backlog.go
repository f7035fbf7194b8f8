package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/middleware"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/generation"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/services"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/logger"
)

const (
	// CloseUnauthorized is sent when the handshake carries no valid token
	// or the user has no access to the project.
	CloseUnauthorized = 4401

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxCommandSize = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Command is a client-to-server message on the backlog channel.
type Command struct {
	Type        string            `json:"type"`
	JobID       string            `json:"job_id,omitempty"`
	Description string            `json:"description,omitempty"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

const (
	CommandGenerate = "generate_backlog"
	CommandCancel   = "cancel_job"
	CommandResume   = "resume"
)

// BacklogChannel serves /ws/ai/backlog/{project_id}. It accepts generation
// commands and streams job events. A reconnecting client resumes a running
// job and receives the retained event history before live events.
type BacklogChannel struct {
	secret   []byte
	orch     *generation.Orchestrator
	projects services.ProjectService
}

func NewBacklogChannel(secret []byte, orch *generation.Orchestrator, projects services.ProjectService) *BacklogChannel {
	return &BacklogChannel{secret: secret, orch: orch, projects: projects}
}

func (c *BacklogChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	userID, err := middleware.ParseUserID(c.secret, middleware.BearerToken(r))
	if err != nil || c.projects.CanRead(r.Context(), projectID, userID) != nil {
		closeWith(conn, CloseUnauthorized, "unauthorized")
		return
	}

	s := &backlogSession{
		channel:   c,
		conn:      conn,
		projectID: projectID,
		userID:    userID,
		out:       make(chan generation.Event, 64),
		done:      make(chan struct{}),
	}
	go s.writeLoop()
	s.readLoop(r)
}

// backlogSession is one websocket connection. The write loop is the only
// goroutine that touches the connection for writes; event pumps feed it
// through the out channel.
type backlogSession struct {
	channel   *BacklogChannel
	conn      *websocket.Conn
	projectID uuid.UUID
	userID    uuid.UUID
	out       chan generation.Event
	done      chan struct{}
}

func (s *backlogSession) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case e := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *backlogSession) readLoop(r *http.Request) {
	defer close(s.done)
	s.conn.SetReadLimit(maxCommandSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			s.sendError(uuid.Nil, generation.KindInternal, "invalid command json")
			continue
		}
		switch cmd.Type {
		case CommandGenerate:
			s.handleGenerate(r, cmd)
		case CommandCancel:
			s.handleCancel(r, cmd)
		case CommandResume:
			s.handleResume(cmd)
		default:
			s.sendError(uuid.Nil, generation.KindInternal, "unknown message type: "+cmd.Type)
		}
	}
}

func (s *backlogSession) handleGenerate(r *http.Request, cmd Command) {
	ctx := r.Context()
	if err := s.channel.projects.CanWrite(ctx, s.projectID, s.userID); err != nil {
		s.sendError(uuid.Nil, generation.KindUnauthorized, "write access required")
		return
	}
	p, err := s.channel.projects.GetProject(ctx, s.projectID, s.userID)
	if err != nil {
		s.sendError(uuid.Nil, generation.KindInternal, "project lookup failed")
		return
	}

	// The brief in the message wins; the stored project description is the
	// fallback so saved projects can regenerate without resending it.
	description := cmd.Description
	if description == "" {
		description = p.Description
	}

	job, err := s.channel.orch.Start(s.projectID, s.userID, p.Title, description, cmd.Constraints)
	switch {
	case errors.Is(err, generation.ErrEmptyDescription):
		s.sendError(uuid.Nil, generation.KindBacklogEmpty, "project description is empty")
		return
	case errors.Is(err, generation.ErrJobAlreadyRunning):
		s.sendError(uuid.Nil, generation.KindJobAlreadyRunning, "a generation job is already running for this project")
		return
	case err != nil:
		s.sendError(uuid.Nil, generation.KindInternal, "failed to start job")
		return
	}

	logger.L().Info("websocket generation requested",
		zap.String("project_id", s.projectID.String()),
		zap.String("job_id", job.ID.String()),
	)
	go s.pump(job)
}

// handleCancel is scoped like generate: the job must belong to this
// channel's project and the requester needs write capability.
func (s *backlogSession) handleCancel(r *http.Request, cmd Command) {
	jobID, err := uuid.Parse(cmd.JobID)
	if err != nil {
		s.sendError(uuid.Nil, generation.KindInternal, "invalid job_id")
		return
	}
	job := s.channel.orch.Job(jobID)
	if job == nil || job.ProjectID != s.projectID {
		s.sendError(jobID, generation.KindInternal, "unknown job")
		return
	}
	if err := s.channel.projects.CanWrite(r.Context(), s.projectID, s.userID); err != nil {
		s.sendError(jobID, generation.KindUnauthorized, "write access required")
		return
	}
	s.channel.orch.Cancel(jobID)
}

func (s *backlogSession) handleResume(cmd Command) {
	jobID, err := uuid.Parse(cmd.JobID)
	if err != nil {
		s.sendError(uuid.Nil, generation.KindInternal, "invalid job_id")
		return
	}
	job := s.channel.orch.Job(jobID)
	if job == nil || job.ProjectID != s.projectID {
		s.sendError(jobID, generation.KindInternal, "unknown job")
		return
	}
	go s.pump(job)
}

// pump forwards a job's events to the session until the job reaches a
// terminal event or the session ends. History retained in the job's ring is
// replayed first, so resumed clients see the full sequence.
func (s *backlogSession) pump(job *generation.Job) {
	events, cancel := job.Subscribe()
	defer cancel()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			select {
			case s.out <- e:
			case <-s.done:
				return
			}
			if e.Type == generation.EventDone || e.Type == generation.EventError {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *backlogSession) sendError(jobID uuid.UUID, kind generation.ErrorKind, detail string) {
	e := generation.Event{
		Type:      generation.EventError,
		JobID:     jobID,
		ErrorKind: kind,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
	select {
	case s.out <- e:
	case <-s.done:
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, msg)
	conn.Close()
}
