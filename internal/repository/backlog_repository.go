package repository

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/ai"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
)

// lockWait bounds how long Commit polls for the per-project advisory lock
// before reporting a conflict.
const lockWait = 5 * time.Second

const lockPollInterval = 100 * time.Millisecond

type BacklogRepository interface {
	// Commit atomically replaces the project's backlog with the given tree
	// and returns the new backlog id. Either the old or the new tree is
	// visible at any point, never a mix. Concurrent regenerations of the
	// same project are serialized by a transaction-scoped advisory lock;
	// a conflict error is returned when the lock cannot be taken in time.
	Commit(ctx context.Context, projectID uuid.UUID, tree []ai.EpicNode) (uuid.UUID, error)
	// GetByProject loads the project's backlog with all children ordered
	// by position.
	GetByProject(ctx context.Context, projectID uuid.UUID) (*models.Backlog, error)
	Summary(ctx context.Context, projectID uuid.UUID) (*ai.Summary, error)
}

type backlogRepository struct {
	db *gorm.DB
}

func NewBacklogRepository(db *gorm.DB) BacklogRepository {
	return &backlogRepository{db: db}
}

func (r *backlogRepository) Commit(ctx context.Context, projectID uuid.UUID, tree []ai.EpicNode) (uuid.UUID, error) {
	var backlogID uuid.UUID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := tryProjectLock(ctx, tx, projectID)
		if err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "acquire project lock failed")
		}
		if !locked {
			return appErr.New(appErr.CodeConflict, "project backlog is locked by another generation")
		}

		// foreign keys cascade the old tree away with the root row
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Backlog{}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "delete previous backlog failed")
		}

		b := buildBacklog(projectID, tree)
		if err := tx.Create(b).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "insert backlog tree failed")
		}
		backlogID = b.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return backlogID, nil
}

// buildBacklog maps a normalized tree onto the relational model, assigning
// positions by iteration order.
func buildBacklog(projectID uuid.UUID, tree []ai.EpicNode) *models.Backlog {
	b := &models.Backlog{ProjectID: projectID}
	for i, e := range tree {
		epic := models.Epic{Title: e.Title, Position: i}
		for j, se := range e.SubEpics {
			sub := models.SubEpic{Title: se.Title, Position: j}
			for k, st := range se.Stories {
				story := models.UserStory{Text: st.Text, Position: k}
				for l, t := range st.Tasks {
					story.Tasks = append(story.Tasks, models.Task{
						Title:       t.Title,
						Description: t.Description,
						Status:      t.Status,
						Position:    l,
					})
				}
				sub.UserStories = append(sub.UserStories, story)
			}
			epic.SubEpics = append(epic.SubEpics, sub)
		}
		b.Epics = append(b.Epics, epic)
	}
	return b
}

// tryProjectLock polls pg_try_advisory_xact_lock until it is granted or the
// wait budget runs out. The lock releases with the transaction.
func tryProjectLock(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (bool, error) {
	deadline := time.Now().Add(lockWait)
	for {
		var locked bool
		if err := tx.Raw("SELECT pg_try_advisory_xact_lock(?)", advisoryKey(projectID)).Scan(&locked).Error; err != nil {
			return false, err
		}
		if locked {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// advisoryKey maps a project id onto the int64 advisory lock keyspace.
func advisoryKey(projectID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(projectID[:])
	return int64(h.Sum64())
}

func (r *backlogRepository) GetByProject(ctx context.Context, projectID uuid.UUID) (*models.Backlog, error) {
	var b models.Backlog
	err := r.db.WithContext(ctx).
		Preload("Epics", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Epics.SubEpics", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Epics.SubEpics.UserStories", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Epics.SubEpics.UserStories.Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("project_id = ?", projectID).
		First(&b).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.New(appErr.CodeNotFound, "backlog not found")
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get backlog failed")
	}
	return &b, nil
}

func (r *backlogRepository) Summary(ctx context.Context, projectID uuid.UUID) (*ai.Summary, error) {
	b, err := r.GetByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var s ai.Summary
	s.Epics = len(b.Epics)
	for _, e := range b.Epics {
		for _, se := range e.SubEpics {
			s.Stories += len(se.UserStories)
			for _, st := range se.UserStories {
				s.Tasks += len(st.Tasks)
			}
		}
	}
	return &s, nil
}
