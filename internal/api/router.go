package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/handlers"
	mw "github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/middleware"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/ws"
)

type Dependencies struct {
	HMACSecret      []byte
	AuthHandler     *handlers.AuthHandler
	ProjectsHandler *handlers.ProjectsHandler
	BacklogHandler  *handlers.BacklogHandler
	TasksHandler    *handlers.TasksHandler
	ChatHandler     *handlers.ChatHandler
	BacklogChannel  *ws.BacklogChannel
	ChatChannel     *ws.ChatChannel
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(10, 20))
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := handlers.NewHealthHandler()
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	// WebSocket channels authenticate during their own handshake so that
	// failures surface as close code 4401 rather than a failed upgrade.
	r.Get("/ws/ai/backlog/{projectID}", dep.BacklogChannel.ServeHTTP)
	r.Get("/ws/chat/{roomID}", dep.ChatChannel.ServeHTTP)

	r.Route("/api/v1", func(api chi.Router) {
		// Auth routes (public)
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)
			ar.Post("/logout", dep.AuthHandler.Logout)
		})

		// Protected routes
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.HMACSecret))

			protected.Route("/projects", func(pr chi.Router) {
				pr.Get("/", dep.ProjectsHandler.List)
				pr.Post("/", dep.ProjectsHandler.Create)
				pr.Get("/{id}", dep.ProjectsHandler.Get)
				pr.Put("/{id}", dep.ProjectsHandler.Update)
				pr.Delete("/{id}", dep.ProjectsHandler.Delete)

				pr.Get("/{id}/members", dep.ProjectsHandler.ListMembers)
				pr.Post("/{id}/members", dep.ProjectsHandler.AddMember)
				pr.Delete("/{id}/members/{userID}", dep.ProjectsHandler.RemoveMember)

				pr.Get("/{id}/sprints", dep.ProjectsHandler.ListSprints)
				pr.Post("/{id}/sprints", dep.ProjectsHandler.CreateSprint)

				pr.Get("/{id}/backlog", dep.BacklogHandler.Get)
				pr.Get("/{id}/backlog/summary", dep.BacklogHandler.Summary)

				pr.Get("/{id}/rooms", dep.ChatHandler.ListRooms)
				pr.Post("/{id}/rooms", dep.ChatHandler.CreateRoom)
			})

			protected.Get("/jobs/{jobID}", dep.BacklogHandler.GetJob)

			protected.Patch("/tasks/{id}", dep.TasksHandler.Update)

			protected.Get("/rooms/{roomID}/messages", dep.ChatHandler.ListMessages)
		})
	})

	return r
}
