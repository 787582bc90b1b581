package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/bookstore-backend/internal/app/service"
	apperrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/internal/middleware"
)

type ReviewController struct {
	reviewService *service.ReviewService
}

func NewReviewController(reviewService *service.ReviewService) *ReviewController {
	return &ReviewController{reviewService: reviewService}
}

type CreateReviewRequest struct {
	ProductName string `json:"product_name"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
}

// Eligibility reports whether the user may review a product
// GET /api/v1/reviews/eligibility?product_name=
func (ctrl *ReviewController) Eligibility(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	productName := strings.TrimSpace(c.Query("product_name"))
	if productName == "" {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "product_name is required")
		return
	}

	canReview, err := ctrl.reviewService.CanReview(c.Request.Context(), userID, productName)
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to check review eligibility", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"can_review": canReview})
}

// CreateReview
// POST /api/v1/reviews
func (ctrl *ReviewController) CreateReview(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithValidationError(c, "", nil)
		return
	}

	review, err := ctrl.reviewService.CreateReview(c.Request.Context(), userID, service.CreateReviewInput{
		ProductName: req.ProductName,
		Rating:      req.Rating,
		Comment:     req.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRating):
			apperrors.BadRequest(c, apperrors.ReviewInvalidRating, "Rating must be between 1 and 5")
		case errors.Is(err, service.ErrInvalidReview):
			apperrors.BadRequest(c, apperrors.ValidationRequired, "product_name is required")
		case errors.Is(err, service.ErrReviewNotAllowed):
			apperrors.RespondWithError(c, http.StatusForbidden, apperrors.ReviewNotAllowed, "You can only review products from delivered orders")
		case errors.Is(err, service.ErrAlreadyReviewed):
			apperrors.Conflict(c, apperrors.ReviewAlreadyExists, "You have already reviewed this product")
		default:
			middleware.GetLoggerFromContext(c).Error("Failed to create review", err, map[string]interface{}{
				"user_id": userID,
			})
			apperrors.InternalError(c, "Failed to create review")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"review":  review,
	})
}

// GetProductReviews
// GET /api/v1/reviews/product/:productName
func (ctrl *ReviewController) GetProductReviews(c *gin.Context) {
	reviews, err := ctrl.reviewService.GetProductReviews(c.Request.Context(), c.Param("productName"))
	if err != nil {
		apperrors.InternalError(c, "Failed to fetch reviews")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "count": len(reviews)})
}

// GetMyReviews
// GET /api/v1/reviews/me
func (ctrl *ReviewController) GetMyReviews(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	reviews, err := ctrl.reviewService.GetUserReviews(c.Request.Context(), userID)
	if err != nil {
		apperrors.InternalError(c, "Failed to fetch reviews")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "count": len(reviews)})
}
