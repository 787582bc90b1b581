package service

import (
	"testing"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupReviewServiceTest(t *testing.T) (*ReviewService, *model.User, *gorm.DB) {
	testDB := setupServiceDB(t)
	svc := NewReviewService(repository.NewReviewRepository(testDB), repository.NewOrderRepository(testDB))
	return svc, createUser(t, testDB, "reader"), testDB
}

func createOrderWithStatus(t *testing.T, testDB *gorm.DB, userID uint, status model.OrderStatus, products ...string) *model.Order {
	t.Helper()
	order := &model.Order{UserID: userID, Name: "Ann", TotalPrice: 10, PaymentMethod: model.PaymentMethodCash, Status: status}
	for _, p := range products {
		order.OrderItems = append(order.OrderItems, model.OrderItem{ProductName: p, Quantity: 1, Price: 10})
	}
	require.NoError(t, testDB.Create(order).Error)
	return order
}

func TestReviewService_CanReview(t *testing.T) {
	svc, user, testDB := setupReviewServiceTest(t)

	ok, err := svc.CanReview(bg, user.ID, "Dune")
	require.NoError(t, err)
	assert.False(t, ok)

	order := createOrderWithStatus(t, testDB, user.ID, model.OrderStatusDispatched, "Dune")
	ok, err = svc.CanReview(bg, user.ID, "Dune")
	require.NoError(t, err)
	assert.False(t, ok, "dispatched is not delivered")

	require.NoError(t, testDB.Model(order).Update("status", model.OrderStatusDelivered).Error)
	ok, err = svc.CanReview(bg, user.ID, "Dune")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanReview(bg, user.ID, "  ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReviewService_CanReview_RevertedStatus(t *testing.T) {
	svc, user, testDB := setupReviewServiceTest(t)
	order := createOrderWithStatus(t, testDB, user.ID, model.OrderStatusDelivered, "Dune")

	ok, err := svc.CanReview(bg, user.ID, "Dune")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, testDB.Model(order).Update("status", model.OrderStatusReceived).Error)
	ok, err = svc.CanReview(bg, user.ID, "Dune")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReviewService_CreateReview(t *testing.T) {
	svc, user, testDB := setupReviewServiceTest(t)
	createOrderWithStatus(t, testDB, user.ID, model.OrderStatusDelivered, "Dune")

	review, err := svc.CreateReview(bg, user.ID, CreateReviewInput{ProductName: "Dune", Rating: 5, Comment: " great "})
	require.NoError(t, err)
	assert.NotZero(t, review.ID)
	assert.Equal(t, "great", review.Comment)

	_, err = svc.CreateReview(bg, user.ID, CreateReviewInput{ProductName: "Dune", Rating: 4})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	ok, err := svc.CanReview(bg, user.ID, "Dune")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReviewService_CreateReview_Rejections(t *testing.T) {
	svc, user, testDB := setupReviewServiceTest(t)
	createOrderWithStatus(t, testDB, user.ID, model.OrderStatusReceived, "Dune")

	_, err := svc.CreateReview(bg, user.ID, CreateReviewInput{ProductName: "Dune", Rating: 0})
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = svc.CreateReview(bg, user.ID, CreateReviewInput{ProductName: "Dune", Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = svc.CreateReview(bg, user.ID, CreateReviewInput{ProductName: "", Rating: 3})
	assert.ErrorIs(t, err, ErrInvalidReview)
	_, err = svc.CreateReview(bg, user.ID, CreateReviewInput{ProductName: "Dune", Rating: 3})
	assert.ErrorIs(t, err, ErrReviewNotAllowed)

	assert.Zero(t, tableCount(t, testDB, &model.Review{}))
}

func TestReviewService_ListAndDelete(t *testing.T) {
	svc, user, testDB := setupReviewServiceTest(t)
	createOrderWithStatus(t, testDB, user.ID, model.OrderStatusDelivered, "Dune", "Emma")

	r1, err := svc.CreateReview(bg, user.ID, CreateReviewInput{ProductName: "Dune", Rating: 5})
	require.NoError(t, err)
	_, err = svc.CreateReview(bg, user.ID, CreateReviewInput{ProductName: "Emma", Rating: 3})
	require.NoError(t, err)

	byProduct, err := svc.GetProductReviews(bg, "Dune")
	require.NoError(t, err)
	require.Len(t, byProduct, 1)
	assert.Equal(t, "reader", byProduct[0].UserName)

	mine, err := svc.GetUserReviews(bg, user.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	require.NoError(t, svc.DeleteReview(bg, r1.ID))
	assert.ErrorIs(t, svc.DeleteReview(bg, r1.ID), ErrReviewNotFound)

	all, err := svc.ListReviews(bg)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
