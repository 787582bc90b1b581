package model

import (
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is unique per (user, product).
type Review struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_reviews_user_product,priority:1" json:"user_id"`
	ProductName string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_reviews_user_product,priority:2;index" json:"product_name"`
	Rating      int       `gorm:"not null" json:"rating"`
	Comment     string    `gorm:"type:text" json:"comment"`
	CreatedAt   time.Time `json:"created_at"`

	UserName string `gorm:"->;-:migration" json:"user_name,omitempty"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Review) TableName() string {
	return "reviews"
}
