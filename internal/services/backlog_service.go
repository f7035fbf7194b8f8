package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/ai"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/repository"
)

// BacklogService exposes the persisted backlog tree and generation job
// records for the REST surface. Generation itself runs through the
// orchestrator, reached over the websocket channel.
type BacklogService interface {
	GetBacklog(ctx context.Context, projectID, userID uuid.UUID) (*models.Backlog, error)
	GetSummary(ctx context.Context, projectID, userID uuid.UUID) (*ai.Summary, error)
	GetJob(ctx context.Context, jobID, userID uuid.UUID) (*models.GenerationJob, error)
}

type backlogService struct {
	backlogRepo repository.BacklogRepository
	jobRepo     repository.GenerationJobRepository
	projects    ProjectService
}

func NewBacklogService(backlogRepo repository.BacklogRepository, jobRepo repository.GenerationJobRepository, projects ProjectService) BacklogService {
	return &backlogService{backlogRepo: backlogRepo, jobRepo: jobRepo, projects: projects}
}

func (s *backlogService) GetBacklog(ctx context.Context, projectID, userID uuid.UUID) (*models.Backlog, error) {
	if err := s.projects.CanRead(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.backlogRepo.GetByProject(ctx, projectID)
}

func (s *backlogService) GetSummary(ctx context.Context, projectID, userID uuid.UUID) (*ai.Summary, error) {
	if err := s.projects.CanRead(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.backlogRepo.Summary(ctx, projectID)
}

func (s *backlogService) GetJob(ctx context.Context, jobID, userID uuid.UUID) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := s.jobRepo.GetByID(ctx, jobID, &job); err != nil {
		return nil, err
	}
	if err := s.projects.CanRead(ctx, job.ProjectID, userID); err != nil {
		return nil, err
	}
	return &job, nil
}
