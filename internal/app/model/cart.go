package model

import (
	"time"
)

// CartItem is one line of a user's cart. A user holds at most one line per
// product name; adding the same product again increases the quantity.
type CartItem struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_cart_user_product,priority:1" json:"user_id"`
	ProductName string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_cart_user_product,priority:2" json:"product_name"`
	Price       float64   `gorm:"not null" json:"price"`
	Quantity    int       `gorm:"not null;default:1" json:"quantity"`
	Image       string    `gorm:"type:text" json:"image"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// LineTotal is price times quantity.
func (c CartItem) LineTotal() float64 {
	return c.Price * float64(c.Quantity)
}
