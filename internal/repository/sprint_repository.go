package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
	"gorm.io/gorm"
)

type SprintRepository interface {
	BaseRepository[models.Sprint]
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Sprint, error)
}

type sprintRepository struct {
	BaseRepository[models.Sprint]
	db *gorm.DB
}

func NewSprintRepository(db *gorm.DB) SprintRepository {
	return &sprintRepository{BaseRepository: NewBaseRepository[models.Sprint](db), db: db}
}

func (r *sprintRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Sprint, error) {
	var out []models.Sprint
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list sprints failed")
	}
	return out, nil
}
