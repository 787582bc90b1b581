package model

import (
	"time"
)

// Message is a customer support message sent over the websocket relay.
type Message struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"message_content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	UserName string `gorm:"->;-:migration" json:"user_name,omitempty"`

	User    *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Replies []MessageReply `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"replies"`
}

func (Message) TableName() string {
	return "messages"
}

type MessageReply struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	MessageID uint      `gorm:"not null;index" json:"message_id"`
	Content   string    `gorm:"type:text;not null" json:"reply_content"`
	CreatedAt time.Time `json:"created_at"`
}

func (MessageReply) TableName() string {
	return "message_replies"
}
