package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/ai"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/api/handlers"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/generation"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/repository"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/services"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/ws"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/config"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/database"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting My Crew Manager",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	sprintRepo := repository.NewSprintRepository(db)
	backlogRepo := repository.NewBacklogRepository(db)
	jobRepo := repository.NewGenerationJobRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	chatRepo := repository.NewChatRepository(db)

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		log.Warn("JWT_SECRET not set, using default (INSECURE for production)")
		jwtSecret = []byte("change-me-in-production-please")
	}

	// Services
	authService := services.NewAuthService(userRepo, jwtSecret)
	projectService := services.NewProjectService(projectRepo, memberRepo, sprintRepo)
	backlogService := services.NewBacklogService(backlogRepo, jobRepo, projectService)
	taskService := services.NewTaskService(taskRepo, projectService)
	chatService := services.NewChatService(chatRepo, projectService)

	// Generation pipeline
	llm := ai.NewHTTPClient(cfg.LLMProviderURL, cfg.LLMProviderAPIKey, cfg.LLMModel)
	orchOpts := generation.DefaultOptions()
	orchOpts.Caps = ai.Caps{
		MaxEpics:    cfg.BacklogMaxEpics,
		MaxSubEpics: cfg.BacklogMaxSubEpics,
		MaxStories:  cfg.BacklogMaxStories,
	}
	orchOpts.Temperature = cfg.LLMDefaultTemperature
	orchOpts.MaxOutputTokens = cfg.LLMMaxOutputTokens
	orchOpts.RequestTimeout = cfg.LLMRequestTimeout
	orchOpts.JobTTL = cfg.JobTTL()
	orchestrator := generation.New(llm, backlogRepo, jobRepo, orchOpts)

	// Terminal jobs double as the polling fallback; prune rows once they
	// outlive the TTL the in-memory registry honors.
	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go func() {
		ticker := time.NewTicker(cfg.JobTTL())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := jobRepo.PruneFinishedBefore(pruneCtx, time.Now().Add(-cfg.JobTTL()))
				if err != nil {
					log.Warn("prune generation jobs failed", zap.Error(err))
				} else if n > 0 {
					log.Info("pruned generation jobs", zap.Int64("count", n))
				}
			case <-pruneCtx.Done():
				return
			}
		}
	}()

	// Router
	router := api.NewRouter(api.Dependencies{
		HMACSecret:      jwtSecret,
		AuthHandler:     handlers.NewAuthHandler(authService),
		ProjectsHandler: handlers.NewProjectsHandler(projectService),
		BacklogHandler:  handlers.NewBacklogHandler(backlogService),
		TasksHandler:    handlers.NewTasksHandler(taskService),
		ChatHandler:     handlers.NewChatHandler(chatService),
		BacklogChannel:  ws.NewBacklogChannel(jwtSecret, orchestrator, projectService),
		ChatChannel:     ws.NewChatChannel(jwtSecret, chatService, projectService),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
