package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestServerMetrics_Checkouts(t *testing.T) {
	m := NewServerMetrics()

	m.ObserveCheckout(CheckoutPlaced)
	m.ObserveCheckout(CheckoutPlaced)
	m.ObserveCheckout(CheckoutBusy)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues(CheckoutPlaced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues(CheckoutBusy)))
}

func TestServerMetrics_NilSafe(t *testing.T) {
	var m *ServerMetrics
	assert.NotPanics(t, func() {
		m.ObserveCheckout(CheckoutFailed)
		m.ObserveRelay("sent")
	})
}

func TestServerMetrics_Handler(t *testing.T) {
	m := NewServerMetrics()
	m.ObserveRelay("sent")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bookstore_outbox_events_relayed_total")
}
