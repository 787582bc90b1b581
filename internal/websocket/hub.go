package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/pkg/logger"
)

const (
	maxMessagesPerSecond = 10
	storeTimeout         = 5 * time.Second

	TypeNewMessage   = "new_message"
	TypeNewReply     = "new_reply"
	TypeConfirmation = "confirmation"
	TypeError        = "error"
)

// Envelope is the frame the server writes to clients.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ClientMessage is the frame a client sends to post a support message.
type ClientMessage struct {
	Message string `json:"message"`
}

type NewMessageData struct {
	ID             uint      `json:"id"`
	UserID         uint      `json:"user_id"`
	MessageContent string    `json:"message_content"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageStore persists support messages; service.MessageService satisfies it.
type MessageStore interface {
	PostMessage(ctx context.Context, userID uint, content string) (*model.Message, error)
}

type Client struct {
	Hub    *Hub
	Conn   *Conn
	UserID uint
	Role   string
	Send   chan []byte

	rateMu        sync.Mutex
	messageCount  int
	lastResetTime time.Time
}

func NewClient(hub *Hub, conn *Conn, userID uint, role string) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Role:   role,
		Send:   make(chan []byte, 256),
	}
}

type BroadcastMessage struct {
	Message []byte
	Exclude *Client
}

// Hub tracks connected clients. Every send to a client's channel happens
// under mu and only while the client is registered, so a closed channel is
// never written to.
type Hub struct {
	clients map[*Client]struct{}
	byUser  map[uint][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	store MessageStore
	mu    sync.RWMutex
}

func NewHub(store MessageStore) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		byUser:     make(map[uint][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *BroadcastMessage, 1024),
		store:      store,
	}
}

// Run processes registrations and broadcasts until ctx is done, then drops
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.removeLocked(c)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.byUser[client.UserID] = append(h.byUser[client.UserID], client)
			sessions := len(h.byUser[client.UserID])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"user_id":        client.UserID,
				"total_sessions": sessions,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case message := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for c := range h.clients {
				if c == message.Exclude {
					continue
				}
				select {
				case c.Send <- message.Message:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			h.dropSlow(slow)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	list := h.byUser[client.UserID]
	kept := list[:0]
	for _, c := range list {
		if c != client {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(h.byUser, client.UserID)
	} else {
		h.byUser[client.UserID] = kept
	}
	close(client.Send)

	logger.Info("WebSocket client unregistered", map[string]interface{}{
		"user_id":            client.UserID,
		"remaining_sessions": len(kept),
	})
}

func (h *Hub) dropSlow(clients []*Client) {
	if len(clients) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range clients {
		logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
			"user_id": c.UserID,
		})
		h.removeLocked(c)
	}
	h.mu.Unlock()
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount is the number of registered connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byUser[userID]
	return ok
}

// Broadcast queues env for every client except exclude. A full queue drops
// the frame.
func (h *Hub) Broadcast(env Envelope, exclude *Client) error {
	data, err := json.Marshal(env)
	if err != nil {
		logger.Error("Failed to marshal message", err)
		return err
	}

	select {
	case h.broadcast <- &BroadcastMessage{Message: data, Exclude: exclude}:
	default:
		logger.Warn("Broadcast channel full, message dropped", map[string]interface{}{
			"type": env.Type,
		})
	}
	return nil
}

// SendToUser delivers env to every open session of userID and reports how
// many received it.
func (h *Hub) SendToUser(userID uint, env Envelope) int {
	data, err := json.Marshal(env)
	if err != nil {
		logger.Error("Failed to marshal message", err)
		return 0
	}

	var sent int
	var slow []*Client
	h.mu.RLock()
	for _, c := range h.byUser[userID] {
		select {
		case c.Send <- data:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.dropSlow(slow)
	return sent
}

func (h *Hub) reply(client *Client, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	_, ok := h.clients[client]
	full := false
	if ok {
		select {
		case client.Send <- data:
		default:
			full = true
		}
	}
	h.mu.RUnlock()
	if full {
		h.dropSlow([]*Client{client})
	}
}

func (c *Client) allow() bool {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	now := time.Now()
	if now.Sub(c.lastResetTime) >= time.Second {
		c.messageCount = 0
		c.lastResetTime = now
	}
	c.messageCount++
	return c.messageCount <= maxMessagesPerSecond
}

// HandleClientMessage stores a posted message, fans it out to the other
// clients and confirms to the sender. The author is always the
// authenticated user of the connection.
func (h *Hub) HandleClientMessage(client *Client, raw []byte) {
	if !client.allow() {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"user_id": client.UserID,
		})
		h.reply(client, Envelope{Type: TypeError, Data: map[string]string{"error": "Too many messages"}})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil || strings.TrimSpace(msg.Message) == "" {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
		})
		h.reply(client, Envelope{Type: TypeError, Data: map[string]string{"error": "Failed to process message"}})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	stored, err := h.store.PostMessage(ctx, client.UserID, msg.Message)
	if err != nil {
		logger.Error("Failed to store support message", err, map[string]interface{}{
			"user_id": client.UserID,
		})
		h.reply(client, Envelope{Type: TypeError, Data: map[string]string{"error": "Failed to process message"}})
		return
	}

	_ = h.Broadcast(Envelope{Type: TypeNewMessage, Data: NewMessageData{
		ID:             stored.ID,
		UserID:         stored.UserID,
		MessageContent: stored.Content,
		CreatedAt:      stored.CreatedAt,
	}}, client)
	h.reply(client, Envelope{Type: TypeConfirmation, Data: map[string]uint{"id": stored.ID}})
}
