package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/bookstore-backend/internal/app/service"
	apperrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{cartService: cartService}
}

type AddToCartRequest struct {
	ProductName string  `json:"product_name" binding:"required"`
	Price       float64 `json:"price" binding:"min=0"`
	Quantity    int     `json:"quantity" binding:"required,min=1"`
	Image       string  `json:"image"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// GetCart returns user's cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	items, total, err := ctrl.cartService.GetUserCart(c.Request.Context(), userID)
	if err != nil {
		apperrors.InternalError(c, "Failed to fetch cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cart_items": items,
		"count":      len(items),
		"total":      total,
	})
}

// AddToCart adds a line or bumps the quantity of an existing one
// POST /api/v1/cart
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.RespondWithValidationError(c, "product_name and quantity >= 1 are required", nil)
		return
	}

	item, err := ctrl.cartService.AddToCart(c.Request.Context(), userID, service.AddToCartInput{
		ProductName: req.ProductName,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Image:       req.Image,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCartItem) {
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
			return
		}
		apperrors.InternalError(c, "Failed to add item to cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Item added to cart",
		"cart_item": item,
	})
}

// UpdateCartItem sets the quantity of one of the user's lines
// PUT /api/v1/cart/:id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "cart item")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, "quantity must be at least 1", nil)
		return
	}

	if err := ctrl.cartService.UpdateCartItem(c.Request.Context(), userID, id, req.Quantity); err != nil {
		ctrl.respondCartError(c, err, "Failed to update cart item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart item updated"})
}

// RemoveFromCart deletes one of the user's lines
// DELETE /api/v1/cart/:id
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "cart item")
	if !ok {
		return
	}

	if err := ctrl.cartService.RemoveFromCart(c.Request.Context(), userID, id); err != nil {
		ctrl.respondCartError(c, err, "Failed to remove item from cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Item removed from cart"})
}

// ClearCart empties the user's cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := ctrl.cartService.ClearCart(c.Request.Context(), userID); err != nil {
		apperrors.InternalError(c, "Failed to clear cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart cleared"})
}

func (ctrl *CartController) respondCartError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrCartItemNotFound):
		apperrors.NotFound(c, apperrors.CartItemNotFound, "Item not found in cart")
	case errors.Is(err, service.ErrInvalidCartItem):
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
	default:
		middleware.GetLoggerFromContext(c).Error(fallback, err)
		apperrors.InternalError(c, fallback)
	}
}
