package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/middleware"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/types"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/services"
)

type ProjectsHandler struct {
	projects services.ProjectService
}

func NewProjectsHandler(projects services.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{projects: projects}
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	items, err := h.projects.ListProjects(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	end := start + size
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    items[start:end],
		Meta:    &types.Meta{Page: page, PageSize: size, Total: int64(len(items))},
	})
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectCreateRequest
	if !decodeValid(w, r, &req) {
		return
	}
	userID := middleware.GetUserID(r.Context())
	p, err := h.projects.CreateProject(r.Context(), userID, &services.CreateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Settings:    req.Settings,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: p})
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.projects.GetProject(r.Context(), projectID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: p})
}

func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req types.ProjectUpdateRequest
	if !decodeValid(w, r, &req) {
		return
	}
	p, err := h.projects.UpdateProject(r.Context(), projectID, middleware.GetUserID(r.Context()), &services.UpdateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Settings:    req.Settings,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: p})
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.projects.DeleteProject(r.Context(), projectID, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}

func (h *ProjectsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	members, err := h.projects.ListMembers(r.Context(), projectID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: members})
}

func (h *ProjectsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req types.MemberAddRequest
	if !decodeValid(w, r, &req) {
		return
	}
	memberID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	m, err := h.projects.AddMember(r.Context(), projectID, middleware.GetUserID(r.Context()), memberID, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: m})
}

func (h *ProjectsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.projects.RemoveMember(r.Context(), projectID, middleware.GetUserID(r.Context()), memberID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}

func (h *ProjectsHandler) ListSprints(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sprints, err := h.projects.ListSprints(r.Context(), projectID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: sprints})
}

func (h *ProjectsHandler) CreateSprint(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req types.SprintCreateRequest
	if !decodeValid(w, r, &req) {
		return
	}
	input := &services.CreateSprintInput{Name: req.Name}
	if req.StartsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.StartsAt)
		if err != nil {
			writeErrorStr(w, http.StatusBadRequest, "starts_at must be RFC3339")
			return
		}
		input.StartsAt = &t
	}
	if req.EndsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.EndsAt)
		if err != nil {
			writeErrorStr(w, http.StatusBadRequest, "ends_at must be RFC3339")
			return
		}
		input.EndsAt = &t
	}
	sp, err := h.projects.CreateSprint(r.Context(), projectID, middleware.GetUserID(r.Context()), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: sp})
}
