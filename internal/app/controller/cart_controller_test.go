package controller

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	"github.com/ikkim/bookstore-backend/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartControllerTest(t *testing.T) (*gin.Engine, *gorm.DB, *model.User) {
	testDB := setupControllerDB(t)
	ctrl := NewCartController(service.NewCartService(repository.NewCartRepository(testDB)))
	user := createTestUser(t, testDB, "reader")

	router := gin.New()
	router.GET("/cart", asUser(user.ID, ctrl.GetCart))
	router.POST("/cart", asUser(user.ID, ctrl.AddToCart))
	router.PUT("/cart/:id", asUser(user.ID, ctrl.UpdateCartItem))
	router.DELETE("/cart/:id", asUser(user.ID, ctrl.RemoveFromCart))
	router.DELETE("/cart", asUser(user.ID, ctrl.ClearCart))
	return router, testDB, user
}

func TestCartController_AddMergesExistingLine(t *testing.T) {
	router, _, _ := setupCartControllerTest(t)

	line := map[string]interface{}{"product_name": "Dune", "price": 12.5, "quantity": 1}
	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/cart", line).Code)
	line["quantity"] = 2
	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/cart", line).Code)

	w := doJSON(router, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["count"])
	assert.EqualValues(t, 37.5, body["total"])
	item := body["cart_items"].([]interface{})[0].(map[string]interface{})
	assert.EqualValues(t, 3, item["quantity"])
}

func TestCartController_AddToCart_Invalid(t *testing.T) {
	router, _, _ := setupCartControllerTest(t)

	w := doJSON(router, http.MethodPost, "/cart", map[string]interface{}{"product_name": "Dune", "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartController_UpdateAndRemove(t *testing.T) {
	router, testDB, user := setupCartControllerTest(t)
	other := createTestUser(t, testDB, "other")
	mine := &model.CartItem{UserID: user.ID, ProductName: "Dune", Quantity: 1, Price: 10}
	theirs := &model.CartItem{UserID: other.ID, ProductName: "Emma", Quantity: 1, Price: 10}
	require.NoError(t, testDB.Create(mine).Error)
	require.NoError(t, testDB.Create(theirs).Error)

	w := doJSON(router, http.MethodPut, "/cart/"+uintStr(mine.ID), map[string]interface{}{"quantity": 4})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPut, "/cart/"+uintStr(theirs.ID), map[string]interface{}{"quantity": 4})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Item not found in cart", decodeBody(t, w)["error"])

	w = doJSON(router, http.MethodDelete, "/cart/"+uintStr(theirs.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodDelete, "/cart/"+uintStr(mine.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var remaining int64
	testDB.Model(&model.CartItem{}).Count(&remaining)
	assert.EqualValues(t, 1, remaining)
}

func TestCartController_ClearCart(t *testing.T) {
	router, testDB, user := setupCartControllerTest(t)
	require.NoError(t, testDB.Create(&model.CartItem{UserID: user.ID, ProductName: "Dune", Quantity: 1, Price: 10}).Error)

	w := doJSON(router, http.MethodDelete, "/cart", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, doJSON(router, http.MethodGet, "/cart", nil))
	assert.EqualValues(t, 0, body["count"])
}

func TestCartController_Unauthenticated(t *testing.T) {
	testDB := setupControllerDB(t)
	ctrl := NewCartController(service.NewCartService(repository.NewCartRepository(testDB)))
	router := gin.New()
	router.GET("/cart", ctrl.GetCart)

	w := doJSON(router, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
