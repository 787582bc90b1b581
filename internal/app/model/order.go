package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusReceived   OrderStatus = "received"   // initial state
	OrderStatusDispatched OrderStatus = "dispatched" // handed to the courier
	OrderStatusDelivered  OrderStatus = "delivered"  // terminal, unlocks reviews
)

// ParseOrderStatus normalizes s and reports whether it names a known state.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case OrderStatusReceived, OrderStatusDispatched, OrderStatusDelivered:
		return status, true
	}
	return "", false
}

const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "credit card"
)

type Order struct {
	ID             uint        `gorm:"primarykey" json:"id"`
	UserID         uint        `gorm:"not null;index;uniqueIndex:idx_orders_user_idempotency,priority:1" json:"user_id"`
	Name           string      `gorm:"type:varchar(255);not null" json:"name"`
	Phone          string      `gorm:"type:varchar(50)" json:"phone"`
	Email          string      `gorm:"type:varchar(255)" json:"email"`
	Address        string      `gorm:"type:text" json:"address"`
	City           string      `gorm:"type:varchar(100)" json:"city"`
	Country        string      `gorm:"type:varchar(100)" json:"country"`
	PaymentMethod  string      `gorm:"type:varchar(50);not null;default:'cash'" json:"payment_method"`
	CardNumber     *string     `gorm:"type:varchar(32)" json:"-"`
	ExpiryDate     *string     `gorm:"type:varchar(10)" json:"expiry_date,omitempty"`
	CVV            *string     `gorm:"column:cvv;type:varchar(8)" json:"-"`
	TotalPrice     float64     `gorm:"not null" json:"total_price"`
	Status         OrderStatus `gorm:"type:varchar(20);not null;default:'received';index" json:"status"`
	IdempotencyKey *string     `gorm:"type:varchar(128);uniqueIndex:idx_orders_user_idempotency,priority:2" json:"-"`
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	CardLast4 string `gorm:"-" json:"card_last4,omitempty"`
	UserName  string `gorm:"->;-:migration" json:"user_name,omitempty"`

	User       *User       `gorm:"foreignKey:UserID" json:"-"`
	OrderItems []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Order) TableName() string {
	return "orders"
}

// AfterFind exposes only the last four card digits.
func (o *Order) AfterFind(tx *gorm.DB) error {
	o.MaskCard()
	return nil
}

// MaskCard sets CardLast4 from CardNumber.
func (o *Order) MaskCard() {
	o.CardLast4 = ""
	if o.CardNumber != nil {
		digits := strings.ReplaceAll(*o.CardNumber, " ", "")
		if len(digits) >= 4 {
			o.CardLast4 = digits[len(digits)-4:]
		}
	}
}

// OrderItem is created only together with its order and never mutated.
type OrderItem struct {
	ID          uint    `gorm:"primarykey" json:"id"`
	OrderID     uint    `gorm:"not null;index" json:"order_id"`
	ProductName string  `gorm:"type:varchar(255);not null;index" json:"product_name"`
	Quantity    int     `gorm:"not null" json:"quantity"`
	Price       float64 `gorm:"not null" json:"price"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
