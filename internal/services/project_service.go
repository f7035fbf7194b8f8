package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/repository"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/logger"
)

// ProjectService covers project CRUD, membership and sprints. Write access
// requires the owner or editor role; reads require any membership.
type ProjectService interface {
	CreateProject(ctx context.Context, ownerID uuid.UUID, input *CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	UpdateProject(ctx context.Context, projectID, userID uuid.UUID, updates *UpdateProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error

	AddMember(ctx context.Context, projectID, userID uuid.UUID, memberID uuid.UUID, role string) (*models.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID, userID, memberID uuid.UUID) error
	ListMembers(ctx context.Context, projectID, userID uuid.UUID) ([]models.ProjectMember, error)

	CreateSprint(ctx context.Context, projectID, userID uuid.UUID, input *CreateSprintInput) (*models.Sprint, error)
	ListSprints(ctx context.Context, projectID, userID uuid.UUID) ([]models.Sprint, error)

	// CanWrite reports whether a user may mutate project contents,
	// including triggering backlog generation.
	CanWrite(ctx context.Context, projectID, userID uuid.UUID) error
	CanRead(ctx context.Context, projectID, userID uuid.UUID) error
}

type CreateProjectInput struct {
	Title       string
	Description string
	Settings    map[string]interface{}
}

type UpdateProjectInput struct {
	Title       *string
	Description *string
	Settings    map[string]interface{}
}

type CreateSprintInput struct {
	Name     string
	StartsAt *time.Time
	EndsAt   *time.Time
}

type projectService struct {
	projectRepo repository.ProjectRepository
	memberRepo  repository.MemberRepository
	sprintRepo  repository.SprintRepository
}

func NewProjectService(projectRepo repository.ProjectRepository, memberRepo repository.MemberRepository, sprintRepo repository.SprintRepository) ProjectService {
	return &projectService{projectRepo: projectRepo, memberRepo: memberRepo, sprintRepo: sprintRepo}
}

func (s *projectService) CreateProject(ctx context.Context, ownerID uuid.UUID, input *CreateProjectInput) (*models.Project, error) {
	logger.L().Info("create project", zap.String("owner_id", ownerID.String()), zap.String("title", input.Title))

	var settings datatypes.JSON
	if input.Settings != nil {
		b, err := json.Marshal(input.Settings)
		if err != nil {
			return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid settings json")
		}
		settings = datatypes.JSON(b)
	}

	p := &models.Project{
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		Settings:    settings,
	}
	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *projectService) GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	if err := s.CanRead(ctx, projectID, userID); err != nil {
		return nil, err
	}
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectService) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	return s.projectRepo.ListForUser(ctx, userID)
}

func (s *projectService) UpdateProject(ctx context.Context, projectID, userID uuid.UUID, updates *UpdateProjectInput) (*models.Project, error) {
	if err := s.CanWrite(ctx, projectID, userID); err != nil {
		return nil, err
	}
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}

	if updates.Title != nil {
		p.Title = *updates.Title
	}
	if updates.Description != nil {
		p.Description = *updates.Description
	}
	if updates.Settings != nil {
		b, err := json.Marshal(updates.Settings)
		if err != nil {
			return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid settings json")
		}
		p.Settings = datatypes.JSON(b)
	}

	if err := s.projectRepo.Update(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectService) DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return err
	}
	if p.OwnerID != userID {
		return appErr.New(appErr.CodeForbidden, "only the owner may delete a project")
	}
	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		return err
	}
	logger.L().Info("project deleted", zap.String("project_id", projectID.String()))
	return nil
}

func (s *projectService) AddMember(ctx context.Context, projectID, userID, memberID uuid.UUID, role string) (*models.ProjectMember, error) {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	if p.OwnerID != userID {
		return nil, appErr.New(appErr.CodeForbidden, "only the owner may manage members")
	}
	m := &models.ProjectMember{ProjectID: projectID, UserID: memberID, Role: role}
	if err := s.memberRepo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *projectService) RemoveMember(ctx context.Context, projectID, userID, memberID uuid.UUID) error {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return err
	}
	if p.OwnerID != userID {
		return appErr.New(appErr.CodeForbidden, "only the owner may manage members")
	}
	return s.memberRepo.Remove(ctx, projectID, memberID)
}

func (s *projectService) ListMembers(ctx context.Context, projectID, userID uuid.UUID) ([]models.ProjectMember, error) {
	if err := s.CanRead(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.memberRepo.ListByProject(ctx, projectID)
}

func (s *projectService) CreateSprint(ctx context.Context, projectID, userID uuid.UUID, input *CreateSprintInput) (*models.Sprint, error) {
	if err := s.CanWrite(ctx, projectID, userID); err != nil {
		return nil, err
	}
	sp := &models.Sprint{ProjectID: projectID, Name: input.Name, StartsAt: input.StartsAt, EndsAt: input.EndsAt}
	if err := s.sprintRepo.Create(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *projectService) ListSprints(ctx context.Context, projectID, userID uuid.UUID) ([]models.Sprint, error) {
	if err := s.CanRead(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.sprintRepo.ListByProject(ctx, projectID)
}

func (s *projectService) CanWrite(ctx context.Context, projectID, userID uuid.UUID) error {
	role, err := s.projectRepo.RoleFor(ctx, projectID, userID)
	if err != nil {
		return appErr.New(appErr.CodeUnauthorized, "user has no access to project")
	}
	if role != models.RoleOwner && role != models.RoleEditor {
		return appErr.New(appErr.CodeForbidden, "write access requires the owner or editor role")
	}
	return nil
}

func (s *projectService) CanRead(ctx context.Context, projectID, userID uuid.UUID) error {
	if _, err := s.projectRepo.RoleFor(ctx, projectID, userID); err != nil {
		return appErr.New(appErr.CodeUnauthorized, "user has no access to project")
	}
	return nil
}
