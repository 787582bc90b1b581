package repository

import (
	"context"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	FindByID(ctx context.Context, id uint) (*model.Message, error)
	FindByUserID(ctx context.Context, userID uint) ([]model.Message, error)
	FindAll(ctx context.Context) ([]model.Message, error)
	CreateReply(ctx context.Context, reply *model.MessageReply) error
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) withReplies(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Replies", func(db *gorm.DB) *gorm.DB {
		return db.Order("message_replies.created_at ASC, message_replies.id ASC")
	})
}

func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	if err := r.db.WithContext(ctx).Omit("Replies").Create(message).Error; err != nil {
		logger.Error("Failed to create message in database", err, map[string]interface{}{
			"user_id": message.UserID,
		})
		return err
	}
	return nil
}

func (r *messageRepository) FindByID(ctx context.Context, id uint) (*model.Message, error) {
	var message model.Message
	if err := r.withReplies(ctx).First(&message, id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Message, error) {
	var messages []model.Message
	err := r.withReplies(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&messages).Error
	if err != nil {
		logger.Error("Failed to find messages by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) FindAll(ctx context.Context) ([]model.Message, error) {
	var messages []model.Message
	err := r.withReplies(ctx).
		Model(&model.Message{}).
		Select("messages.*, users.username AS user_name").
		Joins("LEFT JOIN users ON users.id = messages.user_id").
		Order("messages.created_at DESC, messages.id DESC").
		Find(&messages).Error
	if err != nil {
		logger.Error("Failed to list messages in database", err)
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) CreateReply(ctx context.Context, reply *model.MessageReply) error {
	if err := r.db.WithContext(ctx).Create(reply).Error; err != nil {
		logger.Error("Failed to create message reply in database", err, map[string]interface{}{
			"message_id": reply.MessageID,
		})
		return err
	}
	return nil
}

// Delete removes a message and its replies
func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&model.MessageReply{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Message{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *messageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Count(&count).Error
	return count, err
}
