package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
	"gorm.io/gorm"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	Archive(ctx context.Context, projectID uuid.UUID) error
	// RoleFor resolves a user's role on a project: "owner" for the project
	// owner, the membership role for members, not_found otherwise.
	RoleFor(ctx context.Context, projectID, userID uuid.UUID) (string, error)
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db), db: db}
}

func (r *projectRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	var out []models.Project
	err := r.db.WithContext(ctx).
		Where("archived = false").
		Where("owner_id = ? OR id IN (?)", userID,
			r.db.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", userID),
		).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list projects for user failed")
	}
	return out, nil
}

func (r *projectRepository) Archive(ctx context.Context, projectID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Update("archived", true)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "archive project failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "project not found")
	}
	return nil
}

func (r *projectRepository) RoleFor(ctx context.Context, projectID, userID uuid.UUID) (string, error) {
	var p models.Project
	if err := r.GetByID(ctx, projectID, &p); err != nil {
		return "", err
	}
	if p.OwnerID == userID {
		return models.RoleOwner, nil
	}

	var m models.ProjectMember
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", appErr.New(appErr.CodeNotFound, "user is not a member of project")
		}
		return "", appErr.Wrap(err, appErr.CodeInternal, "get project membership failed")
	}
	return m.Role, nil
}
