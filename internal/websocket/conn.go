package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ikkim/bookstore-backend/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 16 * 1024
)

// Conn wraps a gorilla connection
type Conn struct {
	*websocket.Conn
}

// NewUpgrader accepts origins listed in allowed; an empty list or "*" accepts any.
func NewUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			for _, a := range allowed {
				if a == "*" || a == origin {
					return true
				}
			}
			return false
		},
	}
}

// Serve upgrades the request, registers the client and starts its pumps.
func Serve(hub *Hub, upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, userID uint, role string) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return err
	}

	client := NewClient(hub, &Conn{Conn: ws}, userID, role)
	hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return nil
}

// ReadPump reads frames until the peer goes away
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error", err, map[string]interface{}{
					"user_id": c.UserID,
				})
			}
			break
		}

		c.Hub.HandleClientMessage(c, message)
	}
}

// WritePump drains Send to the peer and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error("Failed to write message", err, map[string]interface{}{
					"user_id": c.UserID,
				})
				return
			}

			n := len(c.Send)
			for i := 0; i < n; i++ {
				msg, ok := <-c.Send
				if !ok {
					c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
