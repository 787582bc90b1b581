package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	"github.com/ikkim/bookstore-backend/internal/app/service"
	apperrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/internal/middleware"
	"github.com/ikkim/bookstore-backend/internal/storage"
	ws "github.com/ikkim/bookstore-backend/internal/websocket"
)

// ReplyNotifier pushes a frame to every connection of a user; *websocket.Hub
// satisfies it.
type ReplyNotifier interface {
	SendToUser(userID uint, env ws.Envelope) int
}

type AdminController struct {
	adminService   service.AdminService
	orderService   service.OrderService
	reviewService  *service.ReviewService
	messageService service.MessageService
	notifier       ReplyNotifier
	retryAfter     time.Duration
}

func NewAdminController(
	adminService service.AdminService,
	orderService service.OrderService,
	reviewService *service.ReviewService,
	messageService service.MessageService,
	notifier ReplyNotifier,
	retryAfter time.Duration,
) *AdminController {
	return &AdminController{
		adminService:   adminService,
		orderService:   orderService,
		reviewService:  reviewService,
		messageService: messageService,
		notifier:       notifier,
		retryAfter:     retryAfter,
	}
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type ReplyRequest struct {
	ReplyContent string `json:"reply_content"`
}

// Dashboard
// GET /api/v1/admin/dashboard
func (ctrl *AdminController) Dashboard(c *gin.Context) {
	stats, err := ctrl.adminService.DashboardStats(c.Request.Context())
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to compute dashboard stats", err)
		apperrors.InternalError(c, "Failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// orderFilter reads ?status= and ?user_id=; ok is false after a 400 was written.
func orderFilter(c *gin.Context) (repository.OrderFilter, bool) {
	var filter repository.OrderFilter
	if raw := c.Query("status"); raw != "" {
		status, valid := model.ParseOrderStatus(raw)
		if !valid {
			apperrors.BadRequest(c, apperrors.OrderInvalidStatus, "Invalid status value")
			return filter, false
		}
		filter.Status = status
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid user ID")
			return filter, false
		}
		filter.UserID = uint(id)
	}
	return filter, true
}

// ListOrders
// GET /api/v1/admin/orders
func (ctrl *AdminController) ListOrders(c *gin.Context) {
	filter, ok := orderFilter(c)
	if !ok {
		return
	}
	orders, err := ctrl.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to list orders", err)
		apperrors.InternalError(c, "Failed to fetch orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":       orders,
		"total_orders": len(orders),
	})
}

// UpdateOrderStatus
// PUT /api/v1/admin/orders/:id/status
func (ctrl *AdminController) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := parseID(c, "id", "order")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.OrderInvalidStatus, "Invalid status value")
		return
	}

	status, err := ctrl.orderService.SetStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			apperrors.BadRequest(c, apperrors.OrderInvalidStatus, "Invalid status value")
		case errors.Is(err, service.ErrOrderNotFound):
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
		case errors.Is(err, service.ErrStoreBusy):
			apperrors.ServiceUnavailable(c, apperrors.InternalStoreBusy, "Order service is busy, please retry shortly", ctrl.retryAfter)
		default:
			apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.OrderStatusUpdateFails, "Failed to update order status")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Order status updated",
		"order_id": orderID,
		"status":   status,
	})
}

// ExportOrders streams the orders workbook, or archives it to object storage
// with ?archive=true
// GET /api/v1/admin/orders/export
func (ctrl *AdminController) ExportOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	filter, ok := orderFilter(c)
	if !ok {
		return
	}

	if archive, _ := strconv.ParseBool(c.Query("archive")); archive {
		link, err := ctrl.adminService.ArchiveOrders(c.Request.Context(), filter)
		if err != nil {
			if errors.Is(err, storage.ErrStorageDisabled) {
				apperrors.ServiceUnavailable(c, apperrors.InternalUnavailable, "Export archive storage is not configured", time.Minute)
				return
			}
			log.Error("Failed to archive orders export", err)
			apperrors.InternalError(c, "Failed to archive export")
			return
		}
		c.JSON(http.StatusOK, link)
		return
	}

	data, err := ctrl.adminService.ExportOrders(c.Request.Context(), filter)
	if err != nil {
		log.Error("Failed to export orders", err)
		apperrors.InternalError(c, "Failed to export orders")
		return
	}

	filename := fmt.Sprintf("orders-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, storage.ContentTypeXLSX, data)
}

// ListUsers
// GET /api/v1/admin/users
func (ctrl *AdminController) ListUsers(c *gin.Context) {
	users, err := ctrl.adminService.ListUsers(c.Request.Context())
	if err != nil {
		apperrors.InternalError(c, "Failed to fetch users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// DeleteUser
// DELETE /api/v1/admin/users/:id
func (ctrl *AdminController) DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id", "user")
	if !ok {
		return
	}
	if err := ctrl.adminService.DeleteUser(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			apperrors.NotFound(c, apperrors.ResourceNotFound, "User not found")
		case errors.Is(err, service.ErrUserHasOrders):
			apperrors.Conflict(c, apperrors.ResourceConflict, "User has orders and cannot be deleted")
		default:
			middleware.GetLoggerFromContext(c).Error("Failed to delete user", err, map[string]interface{}{
				"user_id": id,
			})
			apperrors.InternalError(c, "Failed to delete user")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted"})
}

// ListReviews
// GET /api/v1/admin/reviews
func (ctrl *AdminController) ListReviews(c *gin.Context) {
	reviews, err := ctrl.reviewService.ListReviews(c.Request.Context())
	if err != nil {
		apperrors.InternalError(c, "Failed to fetch reviews")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "count": len(reviews)})
}

// DeleteReview
// DELETE /api/v1/admin/reviews/:id
func (ctrl *AdminController) DeleteReview(c *gin.Context) {
	id, ok := parseID(c, "id", "review")
	if !ok {
		return
	}
	if err := ctrl.reviewService.DeleteReview(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrReviewNotFound) {
			apperrors.NotFound(c, apperrors.ReviewNotFound, "Review not found")
			return
		}
		apperrors.InternalError(c, "Failed to delete review")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Review deleted"})
}

// ListMessages
// GET /api/v1/admin/messages
func (ctrl *AdminController) ListMessages(c *gin.Context) {
	messages, err := ctrl.messageService.ListMessages(c.Request.Context())
	if err != nil {
		apperrors.InternalError(c, "Failed to fetch messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

// ReplyToMessage stores the reply and pushes it to the author if connected
// POST /api/v1/admin/messages/:id/reply
func (ctrl *AdminController) ReplyToMessage(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	id, ok := parseID(c, "id", "message")
	if !ok {
		return
	}

	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ReplyContent) == "" {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "reply_content is required")
		return
	}

	message, reply, err := ctrl.messageService.Reply(c.Request.Context(), id, req.ReplyContent)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			apperrors.NotFound(c, apperrors.MessageNotFound, "Message not found")
		case errors.Is(err, service.ErrEmptyMessage):
			apperrors.BadRequest(c, apperrors.ValidationRequired, "reply_content is required")
		default:
			log.Error("Failed to store reply", err, map[string]interface{}{
				"message_id": id,
			})
			apperrors.InternalError(c, "Failed to send reply")
		}
		return
	}

	delivered := 0
	if ctrl.notifier != nil {
		delivered = ctrl.notifier.SendToUser(message.UserID, ws.Envelope{
			Type: ws.TypeNewReply,
			Data: reply,
		})
	}
	log.Info("Reply sent", map[string]interface{}{
		"message_id": id,
		"user_id":    message.UserID,
		"delivered":  delivered,
	})

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"reply":     reply,
		"delivered": delivered > 0,
	})
}

// DeleteMessage
// DELETE /api/v1/admin/messages/:id
func (ctrl *AdminController) DeleteMessage(c *gin.Context) {
	id, ok := parseID(c, "id", "message")
	if !ok {
		return
	}
	if err := ctrl.messageService.DeleteMessage(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrMessageNotFound) {
			apperrors.NotFound(c, apperrors.MessageNotFound, "Message not found")
			return
		}
		apperrors.InternalError(c, "Failed to delete message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message deleted"})
}
