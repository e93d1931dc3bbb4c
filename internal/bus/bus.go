// Package bus provides the topic-keyed publish/subscribe layer that
// decouples agents, the scheduler, and downstream consumers.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Subscription is a named tap on one or more topics. Each subscription
// owns a private FIFO queue drained by its own goroutine, so a slow
// consumer never blocks publishers or other subscribers. Messages for
// the same topic are delivered in publish order.
type Subscription struct {
	Name string

	topics  map[string]bool
	handler Handler

	mu     sync.Mutex
	queue  []Message
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func (s *Subscription) matches(topic string) bool {
	return s.topics[topic] || s.topics[TopicWildcard]
}

// push appends a message to the subscription's queue. Returns false if
// the subscription has been cancelled.
func (s *Subscription) push(msg Message) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Depth returns the number of queued, undelivered messages.
func (s *Subscription) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Bus is an in-process message bus. Subscribers bind to topics, not to
// producers; publishing to a topic with no subscribers is not an error.
// Delivery is at-least-once per subscriber with per-topic ordering.
type Bus struct {
	mu        sync.RWMutex
	subs      []*Subscription
	onFault   FaultFunc
	closed    bool
	published map[string]int64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{published: make(map[string]int64)}
}

// SetFaultHandler installs the consumer-fault callback. The scheduler
// registers itself here so subscriber failures surface in one place.
func (b *Bus) SetFaultHandler(f FaultFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFault = f
}

// Subscribe binds a handler to the given topics and starts its dispatch
// goroutine. A fresh subscription only sees messages published after it
// joined. TopicWildcard subscribes to every topic.
func (b *Bus) Subscribe(name string, handler Handler, topics ...string) *Subscription {
	sub := &Subscription{
		Name:    name,
		topics:  make(map[string]bool, len(topics)),
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go b.dispatch(sub)
	slog.Info("Bus subscription added", "name", name, "topics", topics)
	return sub
}

// Chan is a convenience subscription that feeds delivered messages into
// a buffered channel. Used by tests and the CLI event tail.
func (b *Bus) Chan(name string, buffer int, topics ...string) (<-chan Message, *Subscription) {
	ch := make(chan Message, buffer)
	sub := b.Subscribe(name, func(msg Message) error {
		ch <- msg
		return nil
	}, topics...)
	return ch, sub
}

// Unsubscribe cancels a subscription. Queued messages that have not yet
// been handed to the handler are discarded.
func (b *Bus) Unsubscribe(sub *Subscription) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.closed = true
	sub.queue = nil
	sub.mu.Unlock()
	close(sub.done)

	b.mu.Lock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	slog.Info("Bus subscription removed", "name", sub.Name)
}

// Publish fans a message out to every subscription bound to its topic.
// PublishedAt is stamped if unset. Publish never blocks on consumers.
func (b *Bus) Publish(msg Message) {
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(msg.Topic) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	b.mu.Lock()
	b.published[msg.Topic]++
	b.mu.Unlock()

	for _, sub := range targets {
		sub.push(msg)
	}
}

// PublishResult publishes a result on its agent topic and mirrors it to
// the storage topic for the durable-store subscriber.
func (b *Bus) PublishResult(source string, r *Result) {
	now := time.Now()
	b.Publish(Message{Topic: r.Topic, Source: source, PublishedAt: now, Result: r})
	b.Publish(Message{Topic: TopicStorage, Source: source, PublishedAt: now, Result: r})
}

// PublishInsight publishes an insight on the insights topic and mirrors
// it to the storage topic.
func (b *Bus) PublishInsight(source string, in *Insight) {
	now := time.Now()
	b.Publish(Message{Topic: TopicInsights, Source: source, PublishedAt: now, Insight: in})
	b.Publish(Message{Topic: TopicStorage, Source: source, PublishedAt: now, Insight: in})
}

// dispatch drains one subscription's queue, invoking its handler for
// each message. Handler errors and panics are captured and reported as
// consumer faults; delivery then continues with the next message.
func (b *Bus) dispatch(sub *Subscription) {
	for {
		select {
		case <-sub.done:
			return
		case <-sub.wake:
		}

		for {
			sub.mu.Lock()
			if len(sub.queue) == 0 {
				sub.mu.Unlock()
				break
			}
			msg := sub.queue[0]
			sub.queue = sub.queue[1:]
			sub.mu.Unlock()

			b.deliver(sub, msg)
		}
	}
}

func (b *Bus) deliver(sub *Subscription, msg Message) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return sub.handler(msg)
	}()
	if err == nil {
		return
	}

	b.mu.RLock()
	fault := b.onFault
	b.mu.RUnlock()
	if fault != nil {
		fault(sub.Name, msg, err)
	} else {
		slog.Warn("Bus consumer fault", "subscriber", sub.Name, "topic", msg.Topic, "error", err)
	}
}

// Stats is a point-in-time snapshot for the status surface.
type Stats struct {
	Published   map[string]int64 `json:"published"`
	Subscribers map[string]int   `json:"subscribers"`
}

// Stats returns publish counts per topic and queue depths per subscriber.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		Published:   make(map[string]int64, len(b.published)),
		Subscribers: make(map[string]int, len(b.subs)),
	}
	for topic, n := range b.published {
		st.Published[topic] = n
	}
	for _, sub := range b.subs {
		st.Subscribers[sub.Name] = sub.Depth()
	}
	return st
}

// Close cancels every subscription and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			sub.queue = nil
			close(sub.done)
		}
		sub.mu.Unlock()
	}
}
