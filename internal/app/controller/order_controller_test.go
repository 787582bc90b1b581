package controller

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/bookstore-backend/config"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	"github.com/ikkim/bookstore-backend/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupOrderControllerTest(t *testing.T) (*gin.Engine, *gorm.DB, *model.User) {
	testDB := setupControllerDB(t)

	orderService := service.NewOrderService(
		testDB,
		repository.NewOrderRepository(testDB),
		repository.NewCartRepository(testDB),
		repository.NewOutboxRepository(testDB),
		nil,
		config.CheckoutConfig{TxTimeout: 2 * time.Second},
		nil,
	)
	ctrl := NewOrderController(orderService, 2*time.Second)
	user := createTestUser(t, testDB, "reader")

	router := gin.New()
	router.POST("/orders", asUser(user.ID, ctrl.PlaceOrder))
	router.GET("/orders", asUser(user.ID, ctrl.GetOrders))
	router.GET("/orders/:id", asUser(user.ID, ctrl.GetOrderByID))
	return router, testDB, user
}

func validOrderBody() map[string]interface{} {
	return map[string]interface{}{
		"name":           "Reader One",
		"email":          "reader@example.com",
		"address":        "1 Main St",
		"payment_method": "cash",
		"total_price":    35.5,
		"items": []map[string]interface{}{
			{"product_name": "Dune", "quantity": 2, "price": 10.25},
			{"product_name": "Emma", "quantity": 1, "price": 15.0},
		},
	}
}

func TestOrderController_PlaceOrder_Success(t *testing.T) {
	router, testDB, user := setupOrderControllerTest(t)
	require.NoError(t, testDB.Create(&model.CartItem{UserID: user.ID, ProductName: "Dune", Quantity: 2, Price: 10.25}).Error)

	w := doJSON(router, http.MethodPost, "/orders", validOrderBody())

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 35.5, body["total_price"])
	orderID := uint(body["order_id"].(float64))
	assert.Contains(t, body["message"], "placed successfully")

	var items int64
	testDB.Model(&model.OrderItem{}).Where("order_id = ?", orderID).Count(&items)
	assert.EqualValues(t, 2, items)

	var cart int64
	testDB.Model(&model.CartItem{}).Where("user_id = ?", user.ID).Count(&cart)
	assert.Zero(t, cart)
}

func TestOrderController_PlaceOrder_IdempotentReplay(t *testing.T) {
	router, testDB, _ := setupOrderControllerTest(t)

	first := doJSON(router, http.MethodPost, "/orders", validOrderBody(), IdempotencyKeyHeader, "abc-123")
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(router, http.MethodPost, "/orders", validOrderBody(), IdempotencyKeyHeader, "abc-123")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, true, decodeBody(t, second)["replayed"])
	assert.Equal(t, decodeBody(t, first)["order_id"], decodeBody(t, second)["order_id"])

	var orders int64
	testDB.Model(&model.Order{}).Count(&orders)
	assert.EqualValues(t, 1, orders)
}

func TestOrderController_PlaceOrder_OtherUser(t *testing.T) {
	router, testDB, user := setupOrderControllerTest(t)

	body := validOrderBody()
	body["user_id"] = user.ID + 1
	w := doJSON(router, http.MethodPost, "/orders", body)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var orders int64
	testDB.Model(&model.Order{}).Count(&orders)
	assert.Zero(t, orders)
}

func TestOrderController_PlaceOrder_Validation(t *testing.T) {
	router, _, _ := setupOrderControllerTest(t)

	tests := []struct {
		name    string
		mutate  func(map[string]interface{})
		message string
	}{
		{
			name:    "empty items",
			mutate:  func(b map[string]interface{}) { b["items"] = []interface{}{} },
			message: "Invalid order items. Please make sure your cart is not empty.",
		},
		{
			name:    "missing name",
			mutate:  func(b map[string]interface{}) { b["name"] = "" },
			message: "Missing required fields: user_id, name, and total_price are required",
		},
		{
			name:    "zero quantity",
			mutate:  func(b map[string]interface{}) { b["items"] = []map[string]interface{}{{"product_name": "Dune", "quantity": 0, "price": 1}} },
			message: "Item 1: quantity must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validOrderBody()
			tt.mutate(body)
			w := doJSON(router, http.MethodPost, "/orders", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeBody(t, w)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tt.message, resp["error"])
		})
	}
}

func TestOrderController_PlaceOrder_MalformedBody(t *testing.T) {
	router, _, _ := setupOrderControllerTest(t)

	w := doJSON(router, http.MethodPost, "/orders", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubOrderService struct {
	service.OrderService
	err error
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, input service.PlaceOrderInput) (*service.PlaceOrderResult, error) {
	return nil, s.err
}

func TestOrderController_PlaceOrder_ErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"busy", service.ErrStoreBusy, http.StatusServiceUnavailable, "INTERNAL_STORE_BUSY"},
		{"in progress", service.ErrCheckoutInProgress, http.StatusConflict, "ORDER_CHECKOUT_IN_PROGRESS"},
		{"failed", service.ErrOrderPlacementFailed, http.StatusInternalServerError, "ORDER_PLACEMENT_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewOrderController(&stubOrderService{err: tt.err}, 3*time.Second)
			router := gin.New()
			router.POST("/orders", asUser(1, ctrl.PlaceOrder))

			w := doJSON(router, http.MethodPost, "/orders", validOrderBody())

			assert.Equal(t, tt.status, w.Code)
			resp := decodeBody(t, w)
			assert.Equal(t, tt.code, resp["code"])
			assert.NotContains(t, resp["error"], "sql")
			if tt.status == http.StatusServiceUnavailable {
				assert.Equal(t, "3", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestOrderController_GetOrders(t *testing.T) {
	router, _, _ := setupOrderControllerTest(t)
	require.Equal(t, http.StatusCreated, doJSON(router, http.MethodPost, "/orders", validOrderBody()).Code)

	w := doJSON(router, http.MethodGet, "/orders", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["count"])
	orders := body["orders"].([]interface{})
	first := orders[0].(map[string]interface{})
	assert.Len(t, first["items"], 2)
	assert.NotContains(t, first, "cvv")
}

func TestOrderController_GetOrderByID(t *testing.T) {
	router, testDB, _ := setupOrderControllerTest(t)
	other := createTestUser(t, testDB, "someone-else")
	foreign := &model.Order{UserID: other.ID, Name: "Other", TotalPrice: 5, PaymentMethod: "cash", Status: model.OrderStatusReceived}
	require.NoError(t, testDB.Create(foreign).Error)

	t.Run("other users' orders are hidden", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/orders/"+uintStr(foreign.ID), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/orders/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("own order", func(t *testing.T) {
		created := decodeBody(t, doJSON(router, http.MethodPost, "/orders", validOrderBody()))
		w := doJSON(router, http.MethodGet, "/orders/"+uintStr(uint(created["order_id"].(float64))), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		order := decodeBody(t, w)["order"].(map[string]interface{})
		assert.Equal(t, "received", order["status"])
	})
}
