package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ikkim/bookstore-backend/config"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	appErrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/internal/lock"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"github.com/ikkim/bookstore-backend/pkg/metrics"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrInvalidStatus        = errors.New("invalid status value")
	ErrOrderPlacementFailed = errors.New("failed to place order")
	ErrStatusUpdateFailed   = errors.New("failed to update order status")
	ErrStoreBusy            = errors.New("order store is busy")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
)

// Reasons carried by OrderValidationError.
const (
	ReasonEmptyItems    = "items"
	ReasonMissingFields = "fields"
	ReasonInvalidItem   = "item"
	ReasonTotalMismatch = "total"
)

// OrderValidationError is returned before any transaction is opened. It
// matches ErrInvalidOrder with errors.Is.
type OrderValidationError struct {
	Reason  string
	Message string
}

func (e *OrderValidationError) Error() string { return e.Message }
func (e *OrderValidationError) Unwrap() error { return ErrInvalidOrder }

type OrderItemInput struct {
	ProductName string
	Quantity    int
	Price       float64
}

type PlaceOrderInput struct {
	UserID         uint
	Name           string
	Phone          string
	Email          string
	Address        string
	City           string
	Country        string
	PaymentMethod  string
	CardNumber     string
	ExpiryDate     string
	CVV            string
	TotalPrice     float64
	Items          []OrderItemInput
	IdempotencyKey string
}

type PlaceOrderResult struct {
	Order    *model.Order
	Replayed bool
}

type OrderService interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
	SetStatus(ctx context.Context, orderID uint, status string) (model.OrderStatus, error)
	GetUserOrders(ctx context.Context, userID uint) ([]model.Order, error)
	GetOrderByID(ctx context.Context, userID, orderID uint) (*model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error)
}

type orderService struct {
	db         *gorm.DB
	orderRepo  repository.OrderRepository
	cartRepo   repository.CartRepository
	outboxRepo repository.OutboxRepository
	locker     lock.Locker
	metrics    *metrics.ServerMetrics
	cfg        config.CheckoutConfig
}

// NewOrderService wires the order engine. A nil locker falls back to an
// in-process lock; nil metrics disables counters.
func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	outboxRepo repository.OutboxRepository,
	locker lock.Locker,
	cfg config.CheckoutConfig,
	m *metrics.ServerMetrics,
) OrderService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 3 * cfg.TxTimeout
	}
	return &orderService{
		db:         db,
		orderRepo:  orderRepo,
		cartRepo:   cartRepo,
		outboxRepo: outboxRepo,
		locker:     locker,
		metrics:    m,
		cfg:        cfg,
	}
}

func normalizeOrderInput(in PlaceOrderInput) PlaceOrderInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.Country = strings.TrimSpace(in.Country)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if in.PaymentMethod == "" {
		in.PaymentMethod = model.PaymentMethodCash
	}
	items := make([]OrderItemInput, len(in.Items))
	for i, item := range in.Items {
		item.ProductName = strings.TrimSpace(item.ProductName)
		items[i] = item
	}
	in.Items = items
	return in
}

func validateOrderInput(in PlaceOrderInput) error {
	if len(in.Items) == 0 {
		return &OrderValidationError{
			Reason:  ReasonEmptyItems,
			Message: "Invalid order items. Please make sure your cart is not empty.",
		}
	}
	if in.UserID == 0 || in.Name == "" || in.TotalPrice <= 0 {
		return &OrderValidationError{
			Reason:  ReasonMissingFields,
			Message: "Missing required fields: user_id, name, and total_price are required",
		}
	}
	for i, item := range in.Items {
		switch {
		case item.ProductName == "":
			return &OrderValidationError{Reason: ReasonInvalidItem, Message: fmt.Sprintf("Item %d: product_name is required", i+1)}
		case item.Quantity < 1:
			return &OrderValidationError{Reason: ReasonInvalidItem, Message: fmt.Sprintf("Item %d: quantity must be at least 1", i+1)}
		case item.Price < 0:
			return &OrderValidationError{Reason: ReasonInvalidItem, Message: fmt.Sprintf("Item %d: price must not be negative", i+1)}
		}
	}
	return nil
}

// itemsTotal sums price*quantity in decimal to avoid float drift.
func itemsTotal(items []OrderItemInput) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum.Round(2)
}

func (s *orderService) checkTotal(in PlaceOrderInput) error {
	computed := itemsTotal(in.Items)
	declared := decimal.NewFromFloat(in.TotalPrice).Round(2)
	if computed.Equal(declared) {
		return nil
	}

	logger.Warn("Order total does not match item sum", map[string]interface{}{
		"user_id":  in.UserID,
		"declared": declared.String(),
		"computed": computed.String(),
		"strict":   s.cfg.StrictTotals,
	})
	if !s.cfg.StrictTotals {
		return nil
	}
	return &OrderValidationError{
		Reason:  ReasonTotalMismatch,
		Message: fmt.Sprintf("total_price %s does not match the sum of items %s", declared.String(), computed.String()),
	}
}

// runInTx runs fn in one transaction bounded by the checkout timeout and
// reports whether the transaction was actually opened.
func (s *orderService) runInTx(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) (bool, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	began := false
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		began = true
		return fn(txCtx, tx)
	})
	return began, err
}

// storeBusy: no connection could be obtained in time, or the server refused one.
func storeBusy(began bool, err error) bool {
	if appErrors.IsPoolExhausted(err) {
		return true
	}
	return !began && errors.Is(err, context.DeadlineExceeded)
}

func (s *orderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (result *PlaceOrderResult, err error) {
	in := normalizeOrderInput(input)

	if err := validateOrderInput(in); err != nil {
		logger.Warn("Order rejected by validation", map[string]interface{}{
			"user_id": in.UserID,
			"reason":  err.Error(),
		})
		s.metrics.ObserveCheckout(metrics.CheckoutInvalid)
		return nil, err
	}
	if err := s.checkTotal(in); err != nil {
		s.metrics.ObserveCheckout(metrics.CheckoutInvalid)
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.CheckoutKey(in.UserID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			logger.Warn("Concurrent checkout rejected", map[string]interface{}{
				"user_id": in.UserID,
			})
			s.metrics.ObserveCheckout(metrics.CheckoutConflict)
			return nil, ErrCheckoutInProgress
		}
		logger.Error("Failed to acquire checkout lock", err, map[string]interface{}{
			"user_id": in.UserID,
		})
		s.metrics.ObserveCheckout(metrics.CheckoutBusy)
		return nil, ErrStoreBusy
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic during order placement, transaction rolled back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"user_id": in.UserID,
			})
			s.metrics.ObserveCheckout(metrics.CheckoutFailed)
			result, err = nil, ErrOrderPlacementFailed
		}
	}()

	if in.IdempotencyKey != "" {
		if existing, err := s.orderRepo.FindByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey); err == nil {
			logger.Info("Replaying order for repeated idempotency key", map[string]interface{}{
				"user_id":  in.UserID,
				"order_id": existing.ID,
			})
			return &PlaceOrderResult{Order: existing, Replayed: true}, nil
		}
	}

	logger.Info("Placing order", map[string]interface{}{
		"user_id":        in.UserID,
		"item_count":     len(in.Items),
		"total_price":    in.TotalPrice,
		"payment_method": in.PaymentMethod,
	})

	order := buildOrder(in)
	began, err := s.runInTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		orders := s.orderRepo.WithTx(tx)

		if err := orders.CreateHeader(ctx, order); err != nil {
			return fmt.Errorf("insert order header: %w", err)
		}

		items := make([]model.OrderItem, 0, len(in.Items))
		for _, it := range in.Items {
			item := model.OrderItem{
				OrderID:     order.ID,
				ProductName: it.ProductName,
				Quantity:    it.Quantity,
				Price:       it.Price,
			}
			if err := orders.CreateItem(ctx, &item); err != nil {
				return fmt.Errorf("insert order item %q: %w", it.ProductName, err)
			}
			items = append(items, item)
		}
		order.OrderItems = items

		if _, err := s.cartRepo.WithTx(tx).DeleteByUserID(ctx, in.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		if _, err := s.outboxRepo.WithTx(tx).Insert(ctx, model.EventOrderPlaced, orderKey(order.ID), orderPlacedPayload(order)); err != nil {
			return fmt.Errorf("record order event: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.placementFailure(ctx, in, began, err)
	}

	logger.Info("Order placed successfully", map[string]interface{}{
		"user_id":     in.UserID,
		"order_id":    order.ID,
		"item_count":  len(order.OrderItems),
		"total_price": order.TotalPrice,
	})
	s.metrics.ObserveCheckout(metrics.CheckoutPlaced)
	order.MaskCard()
	return &PlaceOrderResult{Order: order}, nil
}

func (s *orderService) placementFailure(ctx context.Context, in PlaceOrderInput, began bool, err error) (*PlaceOrderResult, error) {
	fields := map[string]interface{}{
		"user_id":     in.UserID,
		"tx_began":    began,
		"error_class": appErrors.Classify(err).String(),
	}

	if storeBusy(began, err) {
		logger.Error("Order store busy, placement not attempted", err, fields)
		s.metrics.ObserveCheckout(metrics.CheckoutBusy)
		return nil, ErrStoreBusy
	}

	if in.IdempotencyKey != "" && appErrors.IsDuplicate(err) {
		if existing, findErr := s.orderRepo.FindByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey); findErr == nil {
			return &PlaceOrderResult{Order: existing, Replayed: true}, nil
		}
	}

	logger.Error("Order placement rolled back", err, fields)
	s.metrics.ObserveCheckout(metrics.CheckoutFailed)
	return nil, ErrOrderPlacementFailed
}

func buildOrder(in PlaceOrderInput) *model.Order {
	order := &model.Order{
		UserID:        in.UserID,
		Name:          in.Name,
		Phone:         in.Phone,
		Email:         in.Email,
		Address:       in.Address,
		City:          in.City,
		Country:       in.Country,
		PaymentMethod: in.PaymentMethod,
		TotalPrice:    in.TotalPrice,
		Status:        model.OrderStatusReceived,
	}
	if in.PaymentMethod == model.PaymentMethodCard {
		order.CardNumber = optional(in.CardNumber)
		order.ExpiryDate = optional(in.ExpiryDate)
		order.CVV = optional(in.CVV)
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		order.IdempotencyKey = &key
	}
	return order
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func orderKey(orderID uint) string {
	return strconv.FormatUint(uint64(orderID), 10)
}

func orderPlacedPayload(order *model.Order) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(order.OrderItems))
	for _, it := range order.OrderItems {
		items = append(items, map[string]interface{}{
			"product_name": it.ProductName,
			"quantity":     it.Quantity,
			"price":        it.Price,
		})
	}
	return map[string]interface{}{
		"order_id":       order.ID,
		"user_id":        order.UserID,
		"total_price":    order.TotalPrice,
		"payment_method": order.PaymentMethod,
		"status":         order.Status,
		"items":          items,
	}
}

// SetStatus overwrites the order's status. Transitions are not ordered: any
// of the three states may follow any other.
func (s *orderService) SetStatus(ctx context.Context, orderID uint, status string) (model.OrderStatus, error) {
	next, ok := model.ParseOrderStatus(status)
	if !ok {
		logger.Warn("Rejected invalid order status", map[string]interface{}{
			"order_id": orderID,
			"status":   status,
		})
		return "", ErrInvalidStatus
	}
	if orderID == 0 {
		return "", ErrOrderNotFound
	}

	began, err := s.runInTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := s.orderRepo.WithTx(tx).UpdateStatus(ctx, orderID, next); err != nil {
			return err
		}
		payload := map[string]interface{}{
			"order_id":   orderID,
			"status":     next,
			"changed_at": time.Now().UTC(),
		}
		_, err := s.outboxRepo.WithTx(tx).Insert(ctx, model.EventOrderStatusChanged, orderKey(orderID), payload)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			logger.Warn("Order not found for status update", map[string]interface{}{
				"order_id": orderID,
			})
			return "", ErrOrderNotFound
		case storeBusy(began, err):
			logger.Error("Order store busy, status not updated", err, map[string]interface{}{
				"order_id": orderID,
			})
			return "", ErrStoreBusy
		default:
			logger.Error("Failed to update order status", err, map[string]interface{}{
				"order_id": orderID,
				"status":   next,
			})
			return "", ErrStatusUpdateFailed
		}
	}

	logger.Info("Order status updated", map[string]interface{}{
		"order_id": orderID,
		"status":   next,
	})
	return next, nil
}

func (s *orderService) GetUserOrders(ctx context.Context, userID uint) ([]model.Order, error) {
	orders, err := s.orderRepo.FindByUserID(ctx, userID)
	if err != nil {
		logger.Error("Failed to fetch user orders", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

// GetOrderByID hides other users' orders behind ErrOrderNotFound.
func (s *orderService) GetOrderByID(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		logger.Warn("Order access denied", map[string]interface{}{
			"order_id": orderID,
			"user_id":  userID,
		})
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error) {
	return s.orderRepo.FindAll(ctx, filter)
}
