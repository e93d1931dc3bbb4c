package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func result(topic string, n int) *Result {
	return &Result{
		AgentID:    topic,
		Topic:      topic,
		Status:     StatusSuccess,
		Payload:    map[string]any{"seq": n},
		ProducedAt: time.Now(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPublishOrderPerTopic(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var got []int
	b.Subscribe("order", func(msg Message) error {
		mu.Lock()
		got = append(got, msg.Result.Payload["seq"].(int))
		mu.Unlock()
		return nil
	}, "finance")

	for i := 0; i < 50; i++ {
		b.Publish(Message{Topic: "finance", Result: result("finance", i)})
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 50
	})

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("delivery out of order at %d: got seq %d", i, v)
		}
	}
}

func TestMidStreamJoinNoReplay(t *testing.T) {
	b := New()
	defer b.Close()

	var early atomic.Int32
	b.Subscribe("early", func(Message) error {
		early.Add(1)
		return nil
	}, "activity")

	b.Publish(Message{Topic: "activity", Result: result("activity", 0)})
	b.Publish(Message{Topic: "activity", Result: result("activity", 1)})
	waitFor(t, func() bool { return early.Load() == 2 })

	// A subscriber joining now must not see the two earlier messages.
	var late atomic.Int32
	b.Subscribe("late", func(Message) error {
		late.Add(1)
		return nil
	}, "activity")

	b.Publish(Message{Topic: "activity", Result: result("activity", 2)})

	waitFor(t, func() bool { return late.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	if late.Load() != 1 {
		t.Errorf("late subscriber received %d messages, want 1", late.Load())
	}
	if early.Load() != 3 {
		t.Errorf("early subscriber received %d messages, want 3", early.Load())
	}
}

func TestSlowConsumerDoesNotBlockOthers(t *testing.T) {
	b := New()
	defer b.Close()

	release := make(chan struct{})
	var slow atomic.Int32
	b.Subscribe("slow", func(Message) error {
		<-release
		slow.Add(1)
		return nil
	}, "email")

	var fast atomic.Int32
	b.Subscribe("fast", func(Message) error {
		fast.Add(1)
		return nil
	}, "email")

	for i := 0; i < 20; i++ {
		b.Publish(Message{Topic: "email", Result: result("email", i)})
	}

	// The fast consumer drains everything while the slow one is stuck.
	waitFor(t, func() bool { return fast.Load() == 20 })
	if slow.Load() != 0 {
		t.Errorf("slow consumer processed %d before release", slow.Load())
	}

	close(release)
	waitFor(t, func() bool { return slow.Load() == 20 })
}

func TestConsumerFaultIsolated(t *testing.T) {
	b := New()
	defer b.Close()

	var faults atomic.Int32
	b.SetFaultHandler(func(sub string, msg Message, err error) {
		if sub == "flaky" {
			faults.Add(1)
		}
	})

	var flakySeen, healthySeen atomic.Int32
	b.Subscribe("flaky", func(msg Message) error {
		flakySeen.Add(1)
		if msg.Result.Payload["seq"].(int) == 0 {
			return errors.New("boom")
		}
		return nil
	}, "finance")
	b.Subscribe("healthy", func(Message) error {
		healthySeen.Add(1)
		return nil
	}, "finance")

	b.Publish(Message{Topic: "finance", Result: result("finance", 0)})
	b.Publish(Message{Topic: "finance", Result: result("finance", 1)})

	waitFor(t, func() bool { return flakySeen.Load() == 2 && healthySeen.Load() == 2 })
	if faults.Load() != 1 {
		t.Errorf("faults = %d, want 1", faults.Load())
	}
}

func TestHandlerPanicReportedAsFault(t *testing.T) {
	b := New()
	defer b.Close()

	var faults atomic.Int32
	b.SetFaultHandler(func(string, Message, error) { faults.Add(1) })

	var seen atomic.Int32
	b.Subscribe("panicky", func(msg Message) error {
		seen.Add(1)
		if msg.Result.Payload["seq"].(int) == 0 {
			panic("unexpected payload shape")
		}
		return nil
	}, "activity")

	b.Publish(Message{Topic: "activity", Result: result("activity", 0)})
	b.Publish(Message{Topic: "activity", Result: result("activity", 1)})

	waitFor(t, func() bool { return seen.Load() == 2 })
	if faults.Load() != 1 {
		t.Errorf("faults = %d, want 1", faults.Load())
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := New()
	defer b.Close()

	var topics sync.Map
	var count atomic.Int32
	b.Subscribe("all", func(msg Message) error {
		topics.Store(msg.Topic, true)
		count.Add(1)
		return nil
	}, TopicWildcard)

	b.Publish(Message{Topic: "activity", Result: result("activity", 0)})
	b.Publish(Message{Topic: "finance", Result: result("finance", 0)})
	b.Publish(Message{Topic: "email", Result: result("email", 0)})

	waitFor(t, func() bool { return count.Load() == 3 })
	for _, topic := range []string{"activity", "finance", "email"} {
		if _, ok := topics.Load(topic); !ok {
			t.Errorf("wildcard subscriber missed topic %q", topic)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	var seen atomic.Int32
	sub := b.Subscribe("once", func(Message) error {
		seen.Add(1)
		return nil
	}, "finance")

	b.Publish(Message{Topic: "finance", Result: result("finance", 0)})
	waitFor(t, func() bool { return seen.Load() == 1 })

	b.Unsubscribe(sub)
	b.Publish(Message{Topic: "finance", Result: result("finance", 1)})
	time.Sleep(50 * time.Millisecond)

	if seen.Load() != 1 {
		t.Errorf("seen = %d after unsubscribe, want 1", seen.Load())
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	// Fire-and-forget: must not panic or block.
	b.Publish(Message{Topic: "nobody-listens", Result: result("x", 0)})

	st := b.Stats()
	if st.Published["nobody-listens"] != 1 {
		t.Errorf("published count = %d, want 1", st.Published["nobody-listens"])
	}
}

func TestPublishResultMirrorsToStorage(t *testing.T) {
	b := New()
	defer b.Close()

	var onTopic, onStorage atomic.Int32
	b.Subscribe("consumer", func(Message) error {
		onTopic.Add(1)
		return nil
	}, "finance")
	b.Subscribe("store", func(Message) error {
		onStorage.Add(1)
		return nil
	}, TopicStorage)

	b.PublishResult("scheduler", result("finance", 0))

	waitFor(t, func() bool { return onTopic.Load() == 1 && onStorage.Load() == 1 })
}
