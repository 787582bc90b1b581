// Package events moves committed outbox rows to the message broker.
package events

import (
	"context"
	"sync"

	"github.com/ikkim/bookstore-backend/internal/app/repository"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"github.com/ikkim/bookstore-backend/pkg/metrics"
)

const (
	TopicOrderEvents = "order-events"

	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"

	RelaySent   = "sent"
	RelayFailed = "failed"
)

// Publisher is satisfied by *kafka.Publisher.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// Relay publishes pending outbox events in id order. Delivery is at least
// once: an event whose publish succeeded but whose MarkSent failed is sent again.
type Relay struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	batchSize int
	metrics   *metrics.ServerMetrics

	mu sync.Mutex
}

func NewRelay(outbox repository.OutboxRepository, publisher Publisher, batchSize int, m *metrics.ServerMetrics) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		metrics:   m,
	}
}

// RelayPending publishes one batch and returns how many events were sent.
// Runs never overlap.
func (r *Relay) RelayPending(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending, err := r.outbox.FetchPending(ctx, r.batchSize)
	if err != nil {
		logger.Error("Failed to fetch pending outbox events", err)
		return 0, err
	}

	sent := 0
	for _, ev := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		headers := map[string]string{
			HeaderEventID:   ev.EventID,
			HeaderEventType: ev.Type,
		}
		if err := r.publisher.Publish(ctx, ev.Key, ev.Payload, headers); err != nil {
			logger.Warn("Outbox event publish failed", map[string]interface{}{
				"event_id": ev.EventID,
				"type":     ev.Type,
				"attempts": ev.Attempts + 1,
				"error":    err.Error(),
			})
			r.metrics.ObserveRelay(RelayFailed)
			if markErr := r.outbox.MarkFailed(ctx, ev.ID, err); markErr != nil {
				logger.Error("Failed to record outbox publish failure", markErr, map[string]interface{}{
					"event_id": ev.EventID,
				})
			}
			// Keep ordering per order key: stop instead of skipping ahead.
			break
		}

		if err := r.outbox.MarkSent(ctx, ev.ID); err != nil {
			logger.Error("Failed to mark outbox event sent", err, map[string]interface{}{
				"event_id": ev.EventID,
			})
			return sent, err
		}
		r.metrics.ObserveRelay(RelaySent)
		sent++
	}

	if sent > 0 {
		logger.Debug("Relayed outbox events", map[string]interface{}{
			"sent":    sent,
			"pending": len(pending) - sent,
		})
	}
	return sent, nil
}
