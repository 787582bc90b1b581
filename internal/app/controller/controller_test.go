package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/db"
	"github.com/ikkim/bookstore-backend/internal/middleware"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupControllerDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	gin.SetMode(gin.TestMode)
	return testDB
}

func createTestUser(t *testing.T, testDB *gorm.DB, username string) *model.User {
	t.Helper()
	user := &model.User{Username: username, PasswordHash: "hash", Role: model.RoleUser}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

// Helper to set user ID in context (simulating auth middleware)
func setUserIDInContext(c *gin.Context, userID uint) {
	c.Set(middleware.UserIDKey, userID)
	c.Set(middleware.UserRoleKey, model.RoleUser)
}

func setAdminInContext(c *gin.Context) {
	c.Set(middleware.UserIDKey, uint(0))
	c.Set(middleware.UsernameKey, "admin")
	c.Set(middleware.UserRoleKey, model.RoleAdmin)
}

func asUser(userID uint, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		setUserIDInContext(c, userID)
		h(c)
	}
}

func asAdmin(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		setAdminInContext(c)
		h(c)
	}
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

var bgCtx = context.Background()

func uintStr(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
