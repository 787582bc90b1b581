package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/ikkim/bookstore-backend/config"
	"github.com/ikkim/bookstore-backend/internal/app/controller"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	"github.com/ikkim/bookstore-backend/internal/app/service"
	"github.com/ikkim/bookstore-backend/internal/db"
	"github.com/ikkim/bookstore-backend/internal/events"
	"github.com/ikkim/bookstore-backend/internal/middleware"
	"github.com/ikkim/bookstore-backend/internal/router"
	"github.com/ikkim/bookstore-backend/internal/websocket"
	"github.com/ikkim/bookstore-backend/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "integration-secret"

type publishedEvent struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Key: key, Value: value, Headers: headers})
	return nil
}

type TestServer struct {
	Server    *httptest.Server
	DB        *gorm.DB
	Relay     *events.Relay
	Publisher *recordingPublisher
	Hub       *websocket.Hub
}

func setupIntegrationTest(t *testing.T) *TestServer {
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	cfg := &config.Config{
		Server:   config.ServerConfig{GinMode: gin.TestMode},
		JWT:      config.JWTConfig{Secret: testSecret, AccessTokenExpiry: 15 * time.Minute, RefreshTokenExpiry: time.Hour},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Admin:    config.AdminConfig{Username: "admin", Password: "admin-pass"},
		Checkout: config.CheckoutConfig{TxTimeout: 2 * time.Second, LockTTL: 5 * time.Second},
	}
	m := metrics.NewServerMetrics()

	userRepo := repository.NewUserRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)
	outboxRepo := repository.NewOutboxRepository(testDB)
	reviewRepo := repository.NewReviewRepository(testDB)
	messageRepo := repository.NewMessageRepository(testDB)

	authService := service.NewAuthService(userRepo, cfg.JWT, cfg.Admin, nil)
	require.NoError(t, authService.EnsureAdmin(context.Background()))
	orderService := service.NewOrderService(testDB, orderRepo, cartRepo, outboxRepo, nil, cfg.Checkout, m)
	reviewService := service.NewReviewService(reviewRepo, orderRepo)
	messageService := service.NewMessageService(messageRepo)
	adminService := service.NewAdminService(userRepo, orderRepo, reviewRepo, messageRepo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewHub(messageService)
	go hub.Run(ctx)

	r := router.NewRouter(
		router.Controllers{
			Auth:    controller.NewAuthController(authService),
			Cart:    controller.NewCartController(service.NewCartService(cartRepo)),
			Order:   controller.NewOrderController(orderService, time.Second),
			Review:  controller.NewReviewController(reviewService),
			Message: controller.NewMessageController(messageService, hub, websocket.NewUpgrader(cfg.CORS.AllowedOrigins)),
			Admin:   controller.NewAdminController(adminService, orderService, reviewService, messageService, hub, time.Second),
		},
		middleware.NewAuthMiddleware(testSecret, nil),
		m,
		testDB,
		cfg,
	)
	srv := httptest.NewServer(r.Setup())

	publisher := &recordingPublisher{}
	t.Cleanup(func() {
		srv.Close()
		cancel()
		db.CleanupTestDB(testDB)
	})

	return &TestServer{
		Server:    srv,
		DB:        testDB,
		Relay:     events.NewRelay(outboxRepo, publisher, 50, m),
		Publisher: publisher,
		Hub:       hub,
	}
}

func (ts *TestServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (ts *TestServer) register(t *testing.T, username string) (string, uint) {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status)
	user := body["user"].(map[string]interface{})
	return body["tokens"].(map[string]interface{})["access_token"].(string), uint(user["id"].(float64))
}

func (ts *TestServer) adminToken(t *testing.T) string {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/api/v1/auth/admin/login", "", map[string]string{
		"username": "admin",
		"password": "admin-pass",
	})
	require.Equal(t, http.StatusOK, status)
	return body["tokens"].(map[string]interface{})["access_token"].(string)
}

func TestCompleteOrderJourney(t *testing.T) {
	ts := setupIntegrationTest(t)

	t.Log("Step 1: register and fill the cart")
	token, userID := ts.register(t, "reader")
	for _, line := range []map[string]interface{}{
		{"product_name": "Dune", "price": 12.5, "quantity": 2},
		{"product_name": "Emma", "price": 8, "quantity": 1},
	} {
		status, _ := ts.do(t, http.MethodPost, "/api/v1/cart", token, line)
		require.Equal(t, http.StatusOK, status)
	}
	_, cart := ts.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	assert.EqualValues(t, 33, cart["total"])

	t.Log("Step 2: place the order")
	status, placed := ts.do(t, http.MethodPost, "/api/v1/orders", token, map[string]interface{}{
		"user_id":        userID,
		"name":           "Reader",
		"email":          "reader@example.com",
		"address":        "1 Main St",
		"payment_method": "credit card",
		"card_number":    "4111 1111 1111 1234",
		"expiry_date":    "12/30",
		"cvv":            "123",
		"total_price":    33,
		"items": []map[string]interface{}{
			{"product_name": "Dune", "quantity": 2, "price": 12.5},
			{"product_name": "Emma", "quantity": 1, "price": 8},
		},
	})
	require.Equal(t, http.StatusCreated, status)
	orderID := uint(placed["order_id"].(float64))

	_, cart = ts.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	assert.EqualValues(t, 0, cart["count"])

	_, mine := ts.do(t, http.MethodGet, "/api/v1/orders/"+strconv.Itoa(int(orderID)), token, nil)
	order := mine["order"].(map[string]interface{})
	assert.Equal(t, "1234", order["card_last4"])
	assert.NotContains(t, order, "card_number")

	t.Log("Step 3: reviews are locked until delivery")
	status, _ = ts.do(t, http.MethodPost, "/api/v1/reviews", token, map[string]interface{}{"product_name": "Dune", "rating": 5})
	assert.Equal(t, http.StatusForbidden, status)

	t.Log("Step 4: admin moves the order to delivered")
	admin := ts.adminToken(t)
	status, _ = ts.do(t, http.MethodGet, "/api/v1/admin/orders", token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, listed := ts.do(t, http.MethodGet, "/api/v1/admin/orders", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, listed["total_orders"])

	for _, next := range []string{"dispatched", "delivered"} {
		status, _ = ts.do(t, http.MethodPut, "/api/v1/admin/orders/"+strconv.Itoa(int(orderID))+"/status", admin, map[string]string{"status": next})
		require.Equal(t, http.StatusOK, status)
	}

	t.Log("Step 5: review the delivered product")
	_, eligible := ts.do(t, http.MethodGet, "/api/v1/reviews/eligibility?product_name=Dune", token, nil)
	assert.Equal(t, true, eligible["can_review"])
	status, _ = ts.do(t, http.MethodPost, "/api/v1/reviews", token, map[string]interface{}{"product_name": "Dune", "rating": 5, "comment": "classic"})
	assert.Equal(t, http.StatusCreated, status)

	_, stats := ts.do(t, http.MethodGet, "/api/v1/admin/dashboard", admin, nil)
	assert.EqualValues(t, 1, stats["total_reviews"])
	assert.EqualValues(t, 33, stats["revenue"])

	t.Log("Step 6: order events reach the broker in order")
	sent, err := ts.Relay.RelayPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	require.Len(t, ts.Publisher.events, 3)
	types := make([]string, 0, 3)
	for _, ev := range ts.Publisher.events {
		assert.Equal(t, strconv.Itoa(int(orderID)), ev.Key)
		types = append(types, ev.Headers[events.HeaderEventType])
	}
	assert.Equal(t, []string{model.EventOrderPlaced, model.EventOrderStatusChanged, model.EventOrderStatusChanged}, types)

	sent, err = ts.Relay.RelayPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestConcurrentCheckoutsForDifferentUsers(t *testing.T) {
	ts := setupIntegrationTest(t)

	const users = 5
	tokens := make([]string, users)
	for i := range tokens {
		tokens[i], _ = ts.register(t, "user"+strconv.Itoa(i))
	}

	var wg sync.WaitGroup
	statuses := make([]int, users)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], _ = ts.do(t, http.MethodPost, "/api/v1/orders", tokens[i], map[string]interface{}{
				"name":        "Buyer",
				"total_price": 10,
				"items":       []map[string]interface{}{{"product_name": "Dune", "quantity": 1, "price": 10}},
			})
		}(i)
	}
	wg.Wait()

	for _, s := range statuses {
		assert.Equal(t, http.StatusCreated, s)
	}
	var orders, items int64
	ts.DB.Model(&model.Order{}).Count(&orders)
	ts.DB.Model(&model.OrderItem{}).Count(&items)
	assert.EqualValues(t, users, orders)
	assert.EqualValues(t, users, items)
}

func TestSupportMessagingRelay(t *testing.T) {
	ts := setupIntegrationTest(t)
	token, userID := ts.register(t, "reader")
	otherToken, _ := ts.register(t, "watcher")
	admin := ts.adminToken(t)

	wsURL := "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/ws?token="
	dial := func(tok string) *gorillaws.Conn {
		before := ts.Hub.ClientCount()
		conn, _, err := gorillaws.DefaultDialer.Dial(wsURL+tok, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.Eventually(t, func() bool { return ts.Hub.ClientCount() > before }, 2*time.Second, 10*time.Millisecond)
		return conn
	}
	read := func(conn *gorillaws.Conn) map[string]interface{} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var env map[string]interface{}
		require.NoError(t, conn.ReadJSON(&env))
		return env
	}

	_, _, err := gorillaws.DefaultDialer.Dial(wsURL+"bogus", nil)
	require.Error(t, err)

	author := dial(token)
	watcher := dial(otherToken)

	require.NoError(t, author.WriteJSON(map[string]string{"message": "where is my parcel?"}))

	confirmation := read(author)
	assert.Equal(t, websocket.TypeConfirmation, confirmation["type"])
	messageID := uint(confirmation["data"].(map[string]interface{})["id"].(float64))

	broadcast := read(watcher)
	assert.Equal(t, websocket.TypeNewMessage, broadcast["type"])
	data := broadcast["data"].(map[string]interface{})
	assert.EqualValues(t, userID, data["user_id"])
	assert.Equal(t, "where is my parcel?", data["message_content"])

	status, body := ts.do(t, http.MethodPost, "/api/v1/admin/messages/"+strconv.Itoa(int(messageID))+"/reply", admin, map[string]string{"reply_content": "shipped today"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["delivered"])

	reply := read(author)
	assert.Equal(t, websocket.TypeNewReply, reply["type"])
	assert.Equal(t, "shipped today", reply["data"].(map[string]interface{})["reply_content"])

	_, mine := ts.do(t, http.MethodGet, "/api/v1/messages", token, nil)
	assert.EqualValues(t, 1, mine["count"])
}

func TestOperationalEndpoints(t *testing.T) {
	ts := setupIntegrationTest(t)

	status, health := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", health["status"])

	status, _ = ts.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	resp, err := ts.Server.Client().Get(ts.Server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")

	req, _ := http.NewRequest(http.MethodOptions, ts.Server.URL+"/api/v1/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflight, err := ts.Server.Client().Do(req)
	require.NoError(t, err)
	preflight.Body.Close()
	assert.Equal(t, http.StatusNoContent, preflight.StatusCode)
	assert.Equal(t, "http://localhost:3000", preflight.Header.Get("Access-Control-Allow-Origin"))
}
