package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	appErrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCartItemNotFound = errors.New("item not found in cart")
	ErrInvalidCartItem  = errors.New("invalid cart item")
)

type AddToCartInput struct {
	ProductName string
	Price       float64
	Quantity    int
	Image       string
}

type CartService interface {
	GetUserCart(ctx context.Context, userID uint) ([]model.CartItem, float64, error)
	AddToCart(ctx context.Context, userID uint, input AddToCartInput) (*model.CartItem, error)
	UpdateCartItem(ctx context.Context, userID, cartItemID uint, quantity int) error
	RemoveFromCart(ctx context.Context, userID, cartItemID uint) error
	ClearCart(ctx context.Context, userID uint) error
}

type cartService struct {
	cartRepo repository.CartRepository
}

func NewCartService(cartRepo repository.CartRepository) CartService {
	return &cartService{cartRepo: cartRepo}
}

// GetUserCart returns the lines and their summed total
func (s *cartService) GetUserCart(ctx context.Context, userID uint) ([]model.CartItem, float64, error) {
	cartItems, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		logger.Error("Failed to fetch user cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, 0, err
	}

	var total float64
	for _, item := range cartItems {
		total += item.LineTotal()
	}
	return cartItems, total, nil
}

// AddToCart inserts a line, or increases the quantity of the existing line
// for the same product.
func (s *cartService) AddToCart(ctx context.Context, userID uint, input AddToCartInput) (*model.CartItem, error) {
	input.ProductName = strings.TrimSpace(input.ProductName)
	if input.ProductName == "" || input.Quantity < 1 || input.Price < 0 {
		return nil, ErrInvalidCartItem
	}

	logger.Info("Adding item to cart", map[string]interface{}{
		"user_id":      userID,
		"product_name": input.ProductName,
		"quantity":     input.Quantity,
	})

	if item, err := s.mergeExisting(ctx, userID, input); item != nil || err != nil {
		return item, err
	}

	item := &model.CartItem{
		UserID:      userID,
		ProductName: input.ProductName,
		Price:       input.Price,
		Quantity:    input.Quantity,
		Image:       input.Image,
	}
	if err := s.cartRepo.Create(ctx, item); err != nil {
		// A concurrent add won the insert; fold into its line instead.
		if appErrors.IsDuplicate(err) {
			if merged, mergeErr := s.mergeExisting(ctx, userID, input); merged != nil || mergeErr != nil {
				return merged, mergeErr
			}
		}
		return nil, err
	}
	return item, nil
}

func (s *cartService) mergeExisting(ctx context.Context, userID uint, input AddToCartInput) (*model.CartItem, error) {
	existing, err := s.cartRepo.FindByUserAndProduct(ctx, userID, input.ProductName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.IncrementQuantity(ctx, existing.ID, userID, input.Quantity); err != nil {
		return nil, err
	}
	merged, err := s.cartRepo.FindByID(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	logger.Debug("Merged cart line", map[string]interface{}{
		"cart_item_id": merged.ID,
		"quantity":     merged.Quantity,
	})
	return merged, nil
}

func (s *cartService) UpdateCartItem(ctx context.Context, userID, cartItemID uint, quantity int) error {
	if quantity < 1 {
		return ErrInvalidCartItem
	}
	err := s.cartRepo.UpdateQuantity(ctx, cartItemID, userID, quantity)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCartItemNotFound
	}
	return err
}

func (s *cartService) RemoveFromCart(ctx context.Context, userID, cartItemID uint) error {
	err := s.cartRepo.DeleteForUser(ctx, cartItemID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warn("Cart item not found for removal", map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": cartItemID,
		})
		return ErrCartItemNotFound
	}
	return err
}

func (s *cartService) ClearCart(ctx context.Context, userID uint) error {
	_, err := s.cartRepo.DeleteByUserID(ctx, userID)
	return err
}
