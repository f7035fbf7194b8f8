package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/repository"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
)

type TaskService interface {
	UpdateStatus(ctx context.Context, taskID, userID uuid.UUID, status string) error
	Assign(ctx context.Context, taskID, userID uuid.UUID, assigneeID *uuid.UUID) error
	SetSprint(ctx context.Context, taskID, userID uuid.UUID, sprintID *uuid.UUID) error
}

type taskService struct {
	taskRepo repository.TaskRepository
	projects ProjectService
}

func NewTaskService(taskRepo repository.TaskRepository, projects ProjectService) TaskService {
	return &taskService{taskRepo: taskRepo, projects: projects}
}

func (s *taskService) UpdateStatus(ctx context.Context, taskID, userID uuid.UUID, status string) error {
	switch status {
	case models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusDone:
	default:
		return appErr.New(appErr.CodeInvalid, "unknown task status: "+status)
	}
	if err := s.authorize(ctx, taskID, userID); err != nil {
		return err
	}
	return s.taskRepo.UpdateStatus(ctx, taskID, status)
}

func (s *taskService) Assign(ctx context.Context, taskID, userID uuid.UUID, assigneeID *uuid.UUID) error {
	if err := s.authorize(ctx, taskID, userID); err != nil {
		return err
	}
	return s.taskRepo.Assign(ctx, taskID, assigneeID)
}

func (s *taskService) SetSprint(ctx context.Context, taskID, userID uuid.UUID, sprintID *uuid.UUID) error {
	if err := s.authorize(ctx, taskID, userID); err != nil {
		return err
	}
	return s.taskRepo.SetSprint(ctx, taskID, sprintID)
}

func (s *taskService) authorize(ctx context.Context, taskID, userID uuid.UUID) error {
	projectID, err := s.taskRepo.ProjectOf(ctx, taskID)
	if err != nil {
		return err
	}
	return s.projects.CanWrite(ctx, projectID, userID)
}
