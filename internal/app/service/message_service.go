package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyMessage    = errors.New("message content is required")
)

// MaxMessageLength bounds a single support message or reply, in runes.
const MaxMessageLength = 2000

type MessageService interface {
	PostMessage(ctx context.Context, userID uint, content string) (*model.Message, error)
	GetUserMessages(ctx context.Context, userID uint) ([]model.Message, error)
	ListMessages(ctx context.Context) ([]model.Message, error)
	Reply(ctx context.Context, messageID uint, content string) (*model.Message, *model.MessageReply, error)
	DeleteMessage(ctx context.Context, id uint) error
}

type messageService struct {
	messageRepo repository.MessageRepository
}

func NewMessageService(messageRepo repository.MessageRepository) MessageService {
	return &messageService{messageRepo: messageRepo}
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	if r := []rune(content); len(r) > MaxMessageLength {
		content = string(r[:MaxMessageLength])
	}
	return content, nil
}

func (s *messageService) PostMessage(ctx context.Context, userID uint, content string) (*model.Message, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	message := &model.Message{UserID: userID, Content: content}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	logger.Debug("Support message stored", map[string]interface{}{
		"message_id": message.ID,
		"user_id":    userID,
	})
	return message, nil
}

func (s *messageService) GetUserMessages(ctx context.Context, userID uint) ([]model.Message, error) {
	return s.messageRepo.FindByUserID(ctx, userID)
}

func (s *messageService) ListMessages(ctx context.Context) ([]model.Message, error) {
	return s.messageRepo.FindAll(ctx)
}

// Reply stores an admin reply and returns the parent message so the caller
// can notify its author.
func (s *messageService) Reply(ctx context.Context, messageID uint, content string) (*model.Message, *model.MessageReply, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return nil, nil, err
	}

	message, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMessageNotFound
		}
		return nil, nil, err
	}

	reply := &model.MessageReply{MessageID: message.ID, Content: content}
	if err := s.messageRepo.CreateReply(ctx, reply); err != nil {
		return nil, nil, err
	}
	message.Replies = append(message.Replies, *reply)

	logger.Info("Admin replied to message", map[string]interface{}{
		"message_id": message.ID,
		"user_id":    message.UserID,
	})
	return message, reply, nil
}

func (s *messageService) DeleteMessage(ctx context.Context, id uint) error {
	err := s.messageRepo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMessageNotFound
	}
	return err
}
