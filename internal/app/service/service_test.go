package service

import (
	"context"
	"testing"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	return testDB
}

func createUser(t *testing.T, testDB *gorm.DB, username string) *model.User {
	t.Helper()
	user := &model.User{Username: username, PasswordHash: "hash", Role: model.RoleUser}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func addCartLine(t *testing.T, testDB *gorm.DB, userID uint, product string, qty int, price float64) {
	t.Helper()
	require.NoError(t, testDB.Create(&model.CartItem{
		UserID: userID, ProductName: product, Quantity: qty, Price: price,
	}).Error)
}

func cartLines(t *testing.T, testDB *gorm.DB, userID uint) []model.CartItem {
	t.Helper()
	var lines []model.CartItem
	require.NoError(t, testDB.Where("user_id = ?", userID).Order("id ASC").Find(&lines).Error)
	return lines
}

// assertCartUnchanged compares every stored column of the two snapshots.
func assertCartUnchanged(t *testing.T, before, after []model.CartItem) {
	t.Helper()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].ProductName, after[i].ProductName)
		assert.Equal(t, before[i].Quantity, after[i].Quantity)
		assert.Equal(t, before[i].Price, after[i].Price)
		assert.Equal(t, before[i].Image, after[i].Image)
		assert.True(t, before[i].CreatedAt.Equal(after[i].CreatedAt))
		assert.True(t, before[i].UpdatedAt.Equal(after[i].UpdatedAt))
	}
}

func cartCount(t *testing.T, testDB *gorm.DB, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, testDB.Model(&model.CartItem{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func tableCount(t *testing.T, testDB *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, testDB.Model(m).Count(&n).Error)
	return n
}

var bg = context.Background()
