package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/middleware"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/types"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/services"
)

type TasksHandler struct {
	tasks services.TaskService
}

func NewTasksHandler(tasks services.TaskService) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

// Update patches status, assignee or sprint on a task. An empty string for
// assignee_id or sprint_id clears the field.
func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req types.TaskUpdateRequest
	if !decodeValid(w, r, &req) {
		return
	}
	userID := middleware.GetUserID(r.Context())

	if req.Status != nil {
		if err := h.tasks.UpdateStatus(r.Context(), taskID, userID, *req.Status); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.AssigneeID != nil {
		id, perr := parseOptionalUUID(*req.AssigneeID)
		if perr != nil {
			writeErrorStr(w, http.StatusBadRequest, "invalid assignee_id")
			return
		}
		if err := h.tasks.Assign(r.Context(), taskID, userID, id); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.SprintID != nil {
		id, perr := parseOptionalUUID(*req.SprintID)
		if perr != nil {
			writeErrorStr(w, http.StatusBadRequest, "invalid sprint_id")
			return
		}
		if err := h.tasks.SetSprint(r.Context(), taskID, userID, id); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}

func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
