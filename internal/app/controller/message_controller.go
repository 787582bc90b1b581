package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ikkim/bookstore-backend/internal/app/service"
	apperrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/internal/middleware"
	ws "github.com/ikkim/bookstore-backend/internal/websocket"
)

type MessageController struct {
	messageService service.MessageService
	hub            *ws.Hub
	upgrader       websocket.Upgrader
}

func NewMessageController(messageService service.MessageService, hub *ws.Hub, upgrader websocket.Upgrader) *MessageController {
	return &MessageController{
		messageService: messageService,
		hub:            hub,
		upgrader:       upgrader,
	}
}

// Connect upgrades an authenticated request to the support relay
// GET /ws?token=
func (ctrl *MessageController) Connect(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	role, _ := middleware.GetUserRole(c)

	if err := ws.Serve(ctrl.hub, ctrl.upgrader, c.Writer, c.Request, userID, string(role)); err != nil {
		// the upgrader has already written the HTTP error
		return
	}
	log.Info("Websocket client connected", map[string]interface{}{
		"user_id": userID,
		"role":    role,
	})
}

// GetMyMessages
// GET /api/v1/messages
func (ctrl *MessageController) GetMyMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	messages, err := ctrl.messageService.GetUserMessages(c.Request.Context(), userID)
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to fetch messages", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "Failed to fetch messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}
