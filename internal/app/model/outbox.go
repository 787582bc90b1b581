package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OutboxEvent is written in the same transaction as the change it describes
// and relayed to the broker afterwards.
type OutboxEvent struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	EventID   string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"event_id"`
	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Key       string         `gorm:"type:varchar(64);not null" json:"key"`
	Payload   datatypes.JSON `json:"payload"`
	Attempts  int            `gorm:"not null;default:0" json:"attempts"`
	LastError string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	SentAt    *time.Time     `gorm:"index" json:"sent_at,omitempty"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
