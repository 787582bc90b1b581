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
	ErrReviewNotFound   = errors.New("review not found")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrInvalidReview    = errors.New("product_name is required")
	ErrReviewNotAllowed = errors.New("product must be delivered before it can be reviewed")
	ErrAlreadyReviewed  = errors.New("you have already reviewed this product")
)

type CreateReviewInput struct {
	ProductName string
	Rating      int
	Comment     string
}

type ReviewService struct {
	reviewRepo *repository.ReviewRepository
	orderRepo  repository.OrderRepository
}

func NewReviewService(reviewRepo *repository.ReviewRepository, orderRepo repository.OrderRepository) *ReviewService {
	return &ReviewService{
		reviewRepo: reviewRepo,
		orderRepo:  orderRepo,
	}
}

// CanReview is true when a delivered order of the user contains the product
// and the user has not reviewed it yet. It reads both facts on every call.
func (s *ReviewService) CanReview(ctx context.Context, userID uint, productName string) (bool, error) {
	productName = strings.TrimSpace(productName)
	if userID == 0 || productName == "" {
		return false, nil
	}

	reviewed, err := s.reviewRepo.Exists(ctx, userID, productName)
	if err != nil {
		return false, err
	}
	if reviewed {
		return false, nil
	}
	return s.orderRepo.HasDeliveredProduct(ctx, userID, productName)
}

// CreateReview checks the rating and eligibility, then stores the review
func (s *ReviewService) CreateReview(ctx context.Context, userID uint, input CreateReviewInput) (*model.Review, error) {
	input.ProductName = strings.TrimSpace(input.ProductName)
	if input.ProductName == "" {
		return nil, ErrInvalidReview
	}
	if input.Rating < model.MinRating || input.Rating > model.MaxRating {
		return nil, ErrInvalidRating
	}

	reviewed, err := s.reviewRepo.Exists(ctx, userID, input.ProductName)
	if err != nil {
		return nil, err
	}
	if reviewed {
		return nil, ErrAlreadyReviewed
	}

	delivered, err := s.orderRepo.HasDeliveredProduct(ctx, userID, input.ProductName)
	if err != nil {
		return nil, err
	}
	if !delivered {
		logger.Warn("Review rejected: product not delivered", map[string]interface{}{
			"user_id":      userID,
			"product_name": input.ProductName,
		})
		return nil, ErrReviewNotAllowed
	}

	review := &model.Review{
		UserID:      userID,
		ProductName: input.ProductName,
		Rating:      input.Rating,
		Comment:     strings.TrimSpace(input.Comment),
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		if appErrors.IsDuplicate(err) {
			return nil, ErrAlreadyReviewed
		}
		return nil, err
	}

	logger.Info("Review created", map[string]interface{}{
		"review_id":    review.ID,
		"user_id":      userID,
		"product_name": review.ProductName,
		"rating":       review.Rating,
	})
	return review, nil
}

func (s *ReviewService) GetProductReviews(ctx context.Context, productName string) ([]model.Review, error) {
	return s.reviewRepo.FindByProduct(ctx, strings.TrimSpace(productName))
}

func (s *ReviewService) GetUserReviews(ctx context.Context, userID uint) ([]model.Review, error) {
	return s.reviewRepo.FindByUser(ctx, userID)
}

func (s *ReviewService) ListReviews(ctx context.Context) ([]model.Review, error) {
	return s.reviewRepo.FindAll(ctx)
}

func (s *ReviewService) DeleteReview(ctx context.Context, id uint) error {
	err := s.reviewRepo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrReviewNotFound
	}
	return err
}
