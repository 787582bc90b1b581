package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrDisabled = errors.New("kafka disabled")

type Client struct {
	Brokers []string
}

// NewClient parses a comma separated broker list. An empty list disables publishing.
func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewWriter returns a writer that hashes on the message key so every event of
// one order lands on the same partition.
func (c *Client) NewWriter(topic string) (*kafka.Writer, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}, nil
}

// MessageWriter is the part of *kafka.Writer used for publishing.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends already-encoded payloads to one topic.
type Publisher struct {
	writer MessageWriter
}

func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

func (p *Publisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	msg := kafka.Message{Key: []byte(key), Value: value, Time: time.Now().UTC()}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
