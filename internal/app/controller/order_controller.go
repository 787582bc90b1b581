package controller

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/bookstore-backend/internal/app/service"
	apperrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/internal/middleware"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type OrderController struct {
	orderService service.OrderService
	retryAfter   time.Duration
}

// NewOrderController takes the Retry-After hint sent with busy responses.
func NewOrderController(orderService service.OrderService, retryAfter time.Duration) *OrderController {
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	return &OrderController{orderService: orderService, retryAfter: retryAfter}
}

type OrderItemRequest struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// PlaceOrderRequest leaves field checks to the service so every rejection
// carries the same user-facing message.
type PlaceOrderRequest struct {
	UserID        *uint              `json:"user_id"`
	Name          string             `json:"name"`
	Phone         string             `json:"phone"`
	Email         string             `json:"email"`
	Address       string             `json:"address"`
	City          string             `json:"city"`
	Country       string             `json:"country"`
	PaymentMethod string             `json:"payment_method"`
	CardNumber    string             `json:"card_number"`
	ExpiryDate    string             `json:"expiry_date"`
	CVV           string             `json:"cvv"`
	TotalPrice    float64            `json:"total_price"`
	Items         []OrderItemRequest `json:"items"`
}

// PlaceOrder creates an order from the submitted items and clears the cart
// POST /api/v1/orders
func (ctrl *OrderController) PlaceOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Malformed order request body", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request body")
		return
	}

	if req.UserID != nil && *req.UserID != userID {
		log.Warn("Order submitted for another user", map[string]interface{}{
			"user_id":      userID,
			"body_user_id": *req.UserID,
		})
		apperrors.Forbidden(c, "Cannot place orders for another user")
		return
	}

	input := service.PlaceOrderInput{
		UserID:         userID,
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		Address:        req.Address,
		City:           req.City,
		Country:        req.Country,
		PaymentMethod:  req.PaymentMethod,
		CardNumber:     req.CardNumber,
		ExpiryDate:     req.ExpiryDate,
		CVV:            req.CVV,
		TotalPrice:     req.TotalPrice,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
		Items:          make([]service.OrderItemInput, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, service.OrderItemInput{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}

	result, err := ctrl.orderService.PlaceOrder(c.Request.Context(), input)
	if err != nil {
		ctrl.respondPlacementError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success":     true,
		"message":     fmt.Sprintf("Order #%d placed successfully", result.Order.ID),
		"order_id":    result.Order.ID,
		"total_price": result.Order.TotalPrice,
		"replayed":    result.Replayed,
	})
}

func (ctrl *OrderController) respondPlacementError(c *gin.Context, err error) {
	var verr *service.OrderValidationError
	switch {
	case errors.As(err, &verr):
		apperrors.BadRequest(c, validationCode(verr.Reason), verr.Message)
	case errors.Is(err, service.ErrStoreBusy):
		apperrors.ServiceUnavailable(c, apperrors.InternalStoreBusy, "Order service is busy, please retry shortly", ctrl.retryAfter)
	case errors.Is(err, service.ErrCheckoutInProgress):
		apperrors.Conflict(c, apperrors.OrderCheckoutInFlight, "Another checkout is already in progress")
	default:
		apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.OrderPlacementFailed, "Failed to place order")
	}
}

func validationCode(reason string) string {
	switch reason {
	case service.ReasonEmptyItems, service.ReasonInvalidItem:
		return apperrors.OrderInvalidItems
	case service.ReasonMissingFields:
		return apperrors.OrderMissingFields
	case service.ReasonTotalMismatch:
		return apperrors.OrderTotalMismatch
	default:
		return apperrors.ValidationInvalidInput
	}
}

// GetOrders returns the user's orders, newest first
// GET /api/v1/orders
func (ctrl *OrderController) GetOrders(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	orders, err := ctrl.orderService.GetUserOrders(c.Request.Context(), userID)
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to fetch orders", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "Failed to fetch orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrderByID returns one of the user's orders
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetOrderByID(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id", "order")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrderByID(c.Request.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
			return
		}
		apperrors.InternalError(c, "Failed to fetch order")
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}
