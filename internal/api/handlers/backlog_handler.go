package handlers

import (
	"net/http"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/middleware"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/types"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/services"
)

// BacklogHandler serves the persisted backlog tree and generation job state.
// Clients that miss websocket events fall back to polling GetJob.
type BacklogHandler struct {
	backlogs services.BacklogService
}

func NewBacklogHandler(backlogs services.BacklogService) *BacklogHandler {
	return &BacklogHandler{backlogs: backlogs}
}

func (h *BacklogHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.backlogs.GetBacklog(r.Context(), projectID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: b})
}

func (h *BacklogHandler) Summary(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	s, err := h.backlogs.GetSummary(r.Context(), projectID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: s})
}

func (h *BacklogHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathUUID(w, r, "jobID")
	if !ok {
		return
	}
	job, err := h.backlogs.GetJob(r.Context(), jobID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: job})
}
