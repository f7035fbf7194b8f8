package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/repository"
	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
)

type ChatService interface {
	CreateRoom(ctx context.Context, projectID, userID uuid.UUID, name string) (*models.ChatRoom, error)
	ListRooms(ctx context.Context, projectID, userID uuid.UUID) ([]models.ChatRoom, error)
	// PostMessage persists a message after checking the author can read the
	// room's project. Any member may post.
	PostMessage(ctx context.Context, roomID, userID uuid.UUID, body string) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, roomID, userID uuid.UUID, limit int) ([]models.ChatMessage, error)
	// RoomProject resolves the owning project for authorization at the
	// websocket boundary.
	RoomProject(ctx context.Context, roomID uuid.UUID) (uuid.UUID, error)
}

type chatService struct {
	chatRepo repository.ChatRepository
	projects ProjectService
}

func NewChatService(chatRepo repository.ChatRepository, projects ProjectService) ChatService {
	return &chatService{chatRepo: chatRepo, projects: projects}
}

func (s *chatService) CreateRoom(ctx context.Context, projectID, userID uuid.UUID, name string) (*models.ChatRoom, error) {
	if err := s.projects.CanWrite(ctx, projectID, userID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.New(appErr.CodeInvalid, "room name must not be empty")
	}
	room := &models.ChatRoom{ProjectID: projectID, Name: name}
	if err := s.chatRepo.Create(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *chatService) ListRooms(ctx context.Context, projectID, userID uuid.UUID) ([]models.ChatRoom, error) {
	if err := s.projects.CanRead(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.chatRepo.ListRooms(ctx, projectID)
}

func (s *chatService) PostMessage(ctx context.Context, roomID, userID uuid.UUID, body string) (*models.ChatMessage, error) {
	projectID, err := s.RoomProject(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.CanRead(ctx, projectID, userID); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, appErr.New(appErr.CodeInvalid, "message body must not be empty")
	}
	msg := &models.ChatMessage{RoomID: roomID, UserID: userID, Body: body}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *chatService) ListMessages(ctx context.Context, roomID, userID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	projectID, err := s.RoomProject(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.CanRead(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.chatRepo.ListMessages(ctx, roomID, limit)
}

func (s *chatService) RoomProject(ctx context.Context, roomID uuid.UUID) (uuid.UUID, error) {
	var room models.ChatRoom
	if err := s.chatRepo.GetByID(ctx, roomID, &room); err != nil {
		return uuid.Nil, err
	}
	return room.ProjectID, nil
}
