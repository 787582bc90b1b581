package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OutboxRepository interface {
	WithTx(tx *gorm.DB) OutboxRepository
	Insert(ctx context.Context, eventType, key string, payload interface{}) (*model.OutboxEvent, error)
	FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkSent(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, cause error) error
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) WithTx(tx *gorm.DB) OutboxRepository {
	return &outboxRepository{db: tx}
}

func (r *outboxRepository) Insert(ctx context.Context, eventType, key string, payload interface{}) (*model.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	event := &model.OutboxEvent{
		EventID: uuid.NewString(),
		Type:    eventType,
		Key:     key,
		Payload: datatypes.JSON(data),
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// FetchPending returns unsent events in insertion order
func (r *outboxRepository) FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *outboxRepository) MarkSent(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Update("sent_at", &now).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uint, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
}
