package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
	"gorm.io/gorm"
)

type TaskRepository interface {
	BaseRepository[models.Task]
	UpdateStatus(ctx context.Context, taskID uuid.UUID, status string) error
	Assign(ctx context.Context, taskID uuid.UUID, assigneeID *uuid.UUID) error
	SetSprint(ctx context.Context, taskID uuid.UUID, sprintID *uuid.UUID) error
	// ProjectOf resolves the owning project of a task through the tree.
	ProjectOf(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error)
}

type taskRepository struct {
	BaseRepository[models.Task]
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{BaseRepository: NewBaseRepository[models.Task](db), db: db}
}

func (r *taskRepository) UpdateStatus(ctx context.Context, taskID uuid.UUID, status string) error {
	return r.updateColumn(ctx, taskID, "status", status)
}

func (r *taskRepository) Assign(ctx context.Context, taskID uuid.UUID, assigneeID *uuid.UUID) error {
	return r.updateColumn(ctx, taskID, "assignee_id", assigneeID)
}

func (r *taskRepository) SetSprint(ctx context.Context, taskID uuid.UUID, sprintID *uuid.UUID) error {
	return r.updateColumn(ctx, taskID, "sprint_id", sprintID)
}

func (r *taskRepository) updateColumn(ctx context.Context, taskID uuid.UUID, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", taskID).Update(column, value)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update task failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "task not found")
	}
	return nil
}

func (r *taskRepository) ProjectOf(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error) {
	var projectID uuid.UUID
	err := r.db.WithContext(ctx).
		Table("tasks").
		Select("backlogs.project_id").
		Joins("JOIN user_stories ON user_stories.id = tasks.user_story_id").
		Joins("JOIN sub_epics ON sub_epics.id = user_stories.sub_epic_id").
		Joins("JOIN epics ON epics.id = sub_epics.epic_id").
		Joins("JOIN backlogs ON backlogs.id = epics.backlog_id").
		Where("tasks.id = ?", taskID).
		Scan(&projectID).Error
	if err != nil {
		return uuid.Nil, appErr.Wrap(err, appErr.CodeInternal, "resolve task project failed")
	}
	if projectID == uuid.Nil {
		return uuid.Nil, appErr.New(appErr.CodeNotFound, "task not found")
	}
	return projectID, nil
}
