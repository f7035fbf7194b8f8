package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
)

// GenerationJobRepository persists generation job records. It satisfies
// generation.JobStore.
type GenerationJobRepository interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	GetByID(ctx context.Context, id uuid.UUID, dest *models.GenerationJob) error
	SetState(ctx context.Context, id uuid.UUID, state string) error
	Finish(ctx context.Context, id uuid.UUID, state string, errorKind *string, backlogID *uuid.UUID) error
	// PruneFinishedBefore removes terminal jobs that finished before the
	// cutoff; the in-memory registry applies the same TTL.
	PruneFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type generationJobRepository struct {
	db *gorm.DB
}

func NewGenerationJobRepository(db *gorm.DB) GenerationJobRepository {
	return &generationJobRepository{db: db}
}

func (r *generationJobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create generation job failed")
	}
	return nil
}

func (r *generationJobRepository) GetByID(ctx context.Context, id uuid.UUID, dest *models.GenerationJob) error {
	if err := r.db.WithContext(ctx).First(dest, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "generation job not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get generation job failed")
	}
	return nil
}

func (r *generationJobRepository) SetState(ctx context.Context, id uuid.UUID, state string) error {
	res := r.db.WithContext(ctx).Model(&models.GenerationJob{}).Where("id = ?", id).Update("state", state)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update generation job state failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "generation job not found")
	}
	return nil
}

func (r *generationJobRepository) Finish(ctx context.Context, id uuid.UUID, state string, errorKind *string, backlogID *uuid.UUID) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.GenerationJob{}).Where("id = ?", id).Updates(map[string]any{
		"state":       state,
		"error_kind":  errorKind,
		"backlog_id":  backlogID,
		"finished_at": &now,
	})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "finish generation job failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "generation job not found")
	}
	return nil
}

func (r *generationJobRepository) PruneFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("state IN ? AND finished_at < ?", []string{models.JobStateDone, models.JobStateFailed}, cutoff).
		Delete(&models.GenerationJob{})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "prune generation jobs failed")
	}
	return res.RowsAffected, nil
}
