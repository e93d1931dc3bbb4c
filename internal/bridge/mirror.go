// Package bridge mirrors bus traffic to Kafka and ingests results
// published by remote agents.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/serigela/lifeloop/internal/bus"
)

// Writer is the producer surface the mirror needs. *kafka.Writer
// satisfies it.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds mirror settings.
type Config struct {
	Brokers     []string `json:"brokers" envconfig:"BROKERS"`
	TopicPrefix string   `json:"topicPrefix" envconfig:"TOPIC_PREFIX"`
}

// Mirror forwards every bus message to Kafka, one Kafka topic per bus
// topic with the configured prefix. Forwarding is best-effort: a broker
// outage is logged and the message dropped, never blocking the bus.
type Mirror struct {
	cfg    Config
	bus    *bus.Bus
	writer Writer

	mu     sync.Mutex
	sub    *bus.Subscription
	cancel context.CancelFunc
}

// NewMirror creates a mirror backed by a kafka.Writer for the
// configured brokers.
func NewMirror(cfg Config, b *bus.Bus) *Mirror {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "lifeloop."
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Mirror{cfg: cfg, bus: b, writer: w}
}

// NewMirrorWithWriter creates a mirror with an injected producer.
func NewMirrorWithWriter(cfg Config, b *bus.Bus, w Writer) *Mirror {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "lifeloop."
	}
	return &Mirror{cfg: cfg, bus: b, writer: w}
}

// Start subscribes the mirror to every bus topic.
func (m *Mirror) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, m.cancel = context.WithCancel(ctx)
	m.sub = m.bus.Subscribe("kafka-mirror", func(msg bus.Message) error {
		return m.forward(ctx, msg)
	}, bus.TopicWildcard)
	slog.Info("Kafka mirror started", "brokers", m.cfg.Brokers, "prefix", m.cfg.TopicPrefix)
}

func (m *Mirror) forward(ctx context.Context, msg bus.Message) error {
	// The storage topic is an internal duplicate of agent and insight
	// traffic; mirroring it would double every message downstream.
	if msg.Topic == bus.TopicStorage {
		return nil
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := msg.Source
	if msg.Result != nil {
		key = msg.Result.AgentID
	}

	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = m.writer.WriteMessages(wctx, kafka.Message{
		Topic: m.cfg.TopicPrefix + msg.Topic,
		Key:   []byte(key),
		Value: value,
		Time:  msg.PublishedAt,
	})
	if err != nil {
		slog.Warn("Kafka mirror: write failed", "topic", msg.Topic, "error", err)
	}
	return nil
}

// Close unsubscribes from the bus and closes the producer.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	if m.sub != nil {
		m.bus.Unsubscribe(m.sub)
		m.sub = nil
	}
	return m.writer.Close()
}
