package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
	"gorm.io/gorm"
)

type MemberRepository interface {
	BaseRepository[models.ProjectMember]
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error)
	Remove(ctx context.Context, projectID, userID uuid.UUID) error
}

type memberRepository struct {
	BaseRepository[models.ProjectMember]
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{BaseRepository: NewBaseRepository[models.ProjectMember](db), db: db}
}

func (r *memberRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error) {
	var out []models.ProjectMember
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list members failed")
	}
	return out, nil
}

func (r *memberRepository) Remove(ctx context.Context, projectID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("project_id = ? AND user_id = ?", projectID, userID).Delete(&models.ProjectMember{})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "remove member failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "member not found")
	}
	return nil
}
