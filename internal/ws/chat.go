package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/middleware"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/services"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/logger"
)

// ChatChannel serves /ws/chat/{room_id}. Messages posted by any member are
// persisted and fanned out to every connection on the room.
type ChatChannel struct {
	secret   []byte
	chat     services.ChatService
	projects services.ProjectService

	mu    sync.Mutex
	rooms map[uuid.UUID]map[*chatClient]struct{}
}

func NewChatChannel(secret []byte, chat services.ChatService, projects services.ProjectService) *ChatChannel {
	return &ChatChannel{secret: secret, chat: chat, projects: projects, rooms: map[uuid.UUID]map[*chatClient]struct{}{}}
}

type chatClient struct {
	conn *websocket.Conn
	out  chan *models.ChatMessage
	done chan struct{}
	once sync.Once
}

type inboundMessage struct {
	Body string `json:"body"`
}

func (c *ChatChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "roomID"))
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	userID, err := middleware.ParseUserID(c.secret, middleware.BearerToken(r))
	if err != nil {
		closeWith(conn, CloseUnauthorized, "unauthorized")
		return
	}
	projectID, err := c.chat.RoomProject(r.Context(), roomID)
	if err != nil {
		closeWith(conn, CloseUnauthorized, "unknown room")
		return
	}
	if err := c.projects.CanRead(r.Context(), projectID, userID); err != nil {
		closeWith(conn, CloseUnauthorized, "unauthorized")
		return
	}

	client := &chatClient{
		conn: conn,
		out:  make(chan *models.ChatMessage, 32),
		done: make(chan struct{}),
	}
	c.join(roomID, client)
	defer c.leave(roomID, client)

	go client.writeLoop()
	c.readLoop(r, roomID, userID, client)
}

func (c *ChatChannel) join(roomID uuid.UUID, client *chatClient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.rooms[roomID]
	if room == nil {
		room = map[*chatClient]struct{}{}
		c.rooms[roomID] = room
	}
	room[client] = struct{}{}
}

func (c *ChatChannel) leave(roomID uuid.UUID, client *chatClient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room := c.rooms[roomID]; room != nil {
		delete(room, client)
		if len(room) == 0 {
			delete(c.rooms, roomID)
		}
	}
	client.close()
}

// broadcast fans a persisted message out to every live connection on the
// room. Slow clients drop messages rather than block the sender.
func (c *ChatChannel) broadcast(roomID uuid.UUID, msg *models.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for client := range c.rooms[roomID] {
		select {
		case client.out <- msg:
		default:
		}
	}
}

func (c *ChatChannel) readLoop(r *http.Request, roomID, userID uuid.UUID, client *chatClient) {
	conn := client.conn
	conn.SetReadLimit(maxCommandSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var in inboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		msg, err := c.chat.PostMessage(r.Context(), roomID, userID, in.Body)
		if err != nil {
			logger.L().Warn("chat message rejected",
				zap.String("room_id", roomID.String()),
				zap.Error(err),
			)
			continue
		}
		c.broadcast(roomID, msg)
	}
}

func (cl *chatClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case msg := <-cl.out:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}

func (cl *chatClient) close() {
	cl.once.Do(func() { close(cl.done) })
}
