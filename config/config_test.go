package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "")
	t.Setenv("CHECKOUT_TX_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Checkout.TxTimeout)
	assert.False(t, cfg.Checkout.StrictTotals)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "12")
	t.Setenv("CHECKOUT_STRICT_TOTALS", "true")
	t.Setenv("CHECKOUT_LOCK_TTL", "30s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Checkout.StrictTotals)
	assert.Equal(t, 30*time.Second, cfg.Checkout.LockTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("CHECKOUT_TX_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Checkout.TxTimeout)
}

func TestValidate(t *testing.T) {
	t.Run("production requires a real secret", func(t *testing.T) {
		cfg := &Config{
			Server:   ServerConfig{Environment: "production"},
			JWT:      JWTConfig{Secret: "your-secret-key"},
			Database: DatabaseConfig{MaxOpenConns: 5},
			Checkout: CheckoutConfig{TxTimeout: time.Second, LockTTL: 3 * time.Second},
		}
		assert.Error(t, cfg.Validate())
	})

	t.Run("pool size must be positive", func(t *testing.T) {
		cfg := &Config{
			JWT:      JWTConfig{Secret: "s"},
			Database: DatabaseConfig{MaxOpenConns: 0},
			Checkout: CheckoutConfig{TxTimeout: time.Second, LockTTL: 3 * time.Second},
		}
		assert.Error(t, cfg.Validate())
	})

	t.Run("lock must outlive the transaction", func(t *testing.T) {
		for _, ttl := range []time.Duration{0, time.Second, 500 * time.Millisecond} {
			cfg := &Config{
				JWT:      JWTConfig{Secret: "s"},
				Database: DatabaseConfig{MaxOpenConns: 5},
				Checkout: CheckoutConfig{TxTimeout: time.Second, LockTTL: ttl},
			}
			assert.Error(t, cfg.Validate(), "lock ttl %s", ttl)
		}
	})

	t.Run("valid", func(t *testing.T) {
		cfg := &Config{
			JWT:      JWTConfig{Secret: "s"},
			Database: DatabaseConfig{MaxOpenConns: 5},
			Checkout: CheckoutConfig{TxTimeout: time.Second, LockTTL: 3 * time.Second},
		}
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad_RejectsShortLockTTL(t *testing.T) {
	t.Setenv("CHECKOUT_TX_TIMEOUT", "10s")
	t.Setenv("CHECKOUT_LOCK_TTL", "10s")

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", c.DSN())
}
