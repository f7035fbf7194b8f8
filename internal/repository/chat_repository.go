package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
	"gorm.io/gorm"
)

type ChatRepository interface {
	BaseRepository[models.ChatRoom]
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.ChatMessage, error)
	ListRooms(ctx context.Context, projectID uuid.UUID) ([]models.ChatRoom, error)
}

type chatRepository struct {
	BaseRepository[models.ChatRoom]
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{BaseRepository: NewBaseRepository[models.ChatRoom](db), db: db}
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create chat message failed")
	}
	return nil
}

func (r *chatRepository) ListMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list chat messages failed")
	}
	return out, nil
}

func (r *chatRepository) ListRooms(ctx context.Context, projectID uuid.UUID) ([]models.ChatRoom, error) {
	var out []models.ChatRoom
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list chat rooms failed")
	}
	return out, nil
}
