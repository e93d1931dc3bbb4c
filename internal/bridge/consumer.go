package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/serigela/lifeloop/internal/bus"
)

// ConsumerMessage is one record read from an upstream topic.
type ConsumerMessage struct {
	Topic string
	Key   []byte
	Value []byte
}

// Consumer abstracts the Kafka read side so tests can inject messages
// without a broker.
type Consumer interface {
	Start(ctx context.Context) error
	Messages() <-chan ConsumerMessage
	Close() error
}

// KafkaConsumer implements Consumer using segmentio/kafka-go, one
// reader goroutine per topic.
type KafkaConsumer struct {
	brokers []string
	groupID string
	topics  []string

	mu       sync.Mutex
	readers  []*kafka.Reader
	messages chan ConsumerMessage
}

// NewKafkaConsumer creates a consumer for the given topics.
func NewKafkaConsumer(brokers []string, groupID string, topics []string) *KafkaConsumer {
	return &KafkaConsumer{
		brokers:  brokers,
		groupID:  groupID,
		topics:   topics,
		messages: make(chan ConsumerMessage, 100),
	}
}

// Start begins consuming from all configured topics.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	for _, topic := range c.topics {
		c.startReader(ctx, topic)
	}
	return nil
}

func (c *KafkaConsumer) startReader(ctx context.Context, topic string) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.brokers,
		Topic:    topic,
		GroupID:  c.groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()

	go func() {
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("KafkaConsumer: read error", "topic", topic, "error", err)
				continue
			}
			c.messages <- ConsumerMessage{Topic: topic, Key: msg.Key, Value: msg.Value}
		}
	}()
}

// Messages returns the channel of consumed messages.
func (c *KafkaConsumer) Messages() <-chan ConsumerMessage {
	return c.messages
}

// Close stops all readers.
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.readers {
		r.Close()
	}
	close(c.messages)
	return nil
}

// ChannelConsumer is a test/in-process Consumer backed by a Go channel.
type ChannelConsumer struct {
	ch chan ConsumerMessage
}

// NewChannelConsumer creates an in-process consumer for testing.
func NewChannelConsumer() *ChannelConsumer {
	return &ChannelConsumer{ch: make(chan ConsumerMessage, 100)}
}

func (c *ChannelConsumer) Start(ctx context.Context) error { return nil }
func (c *ChannelConsumer) Messages() <-chan ConsumerMessage {
	return c.ch
}
func (c *ChannelConsumer) Close() error {
	close(c.ch)
	return nil
}

// Send pushes a message into the channel consumer (for testing).
func (c *ChannelConsumer) Send(msg ConsumerMessage) {
	c.ch <- msg
}

// Ingest pumps remote agent results from a Consumer onto the local bus.
// Records that do not decode to a result-bearing message are skipped.
func Ingest(ctx context.Context, c Consumer, b *bus.Bus) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rec, ok := <-c.Messages():
				if !ok {
					return
				}
				var msg bus.Message
				if err := json.Unmarshal(rec.Value, &msg); err != nil {
					slog.Warn("Bridge ingest: bad record", "topic", rec.Topic, "error", err)
					continue
				}
				if msg.Result == nil {
					continue
				}
				b.PublishResult("bridge", msg.Result)
			}
		}
	}()
	return nil
}
