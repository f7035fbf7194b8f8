package handlers

import (
	"net/http"
	"strconv"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/middleware"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/types"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/services"
)

type ChatHandler struct {
	chat services.ChatService
}

func NewChatHandler(chat services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req types.RoomCreateRequest
	if !decodeValid(w, r, &req) {
		return
	}
	room, err := h.chat.CreateRoom(r.Context(), projectID, middleware.GetUserID(r.Context()), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: room})
}

func (h *ChatHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rooms, err := h.chat.ListRooms(r.Context(), projectID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: rooms})
}

// ListMessages returns the most recent messages of a room, oldest first.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathUUID(w, r, "roomID")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := h.chat.ListMessages(r.Context(), roomID, middleware.GetUserID(r.Context()), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: msgs})
}
