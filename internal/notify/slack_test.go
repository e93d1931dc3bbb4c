package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/serigela/lifeloop/internal/bus"
)

type fakePoster struct {
	mu       sync.Mutex
	channels []string
	count    int
}

func (p *fakePoster) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channelID)
	p.count++
	return channelID, "ts", nil
}

func (p *fakePoster) posts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func TestNotifierPostsInsights(t *testing.T) {
	b := bus.New()
	defer b.Close()
	p := &fakePoster{}
	n := NewWithPoster(Config{Channel: "#insights"}, b, p)
	n.Start(context.Background())
	defer n.Stop()

	b.PublishInsight("aggregator", &bus.Insight{
		ID: "in-1", Window: time.Now(), Summary: "all quiet",
		Contributing: []string{"activity"}, GeneratedAt: time.Now(),
	})

	deadline := time.Now().Add(2 * time.Second)
	for p.posts() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("insight never posted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channels[0] != "#insights" {
		t.Errorf("posted to %q", p.channels[0])
	}
}

func TestNotifierIgnoresResults(t *testing.T) {
	b := bus.New()
	defer b.Close()
	p := &fakePoster{}
	n := NewWithPoster(Config{Channel: "#insights"}, b, p)
	n.Start(context.Background())
	defer n.Stop()

	b.PublishResult("scheduler", &bus.Result{
		AgentID: "a", Topic: "activity", Status: bus.StatusSuccess,
		Window: time.Now(), ProducedAt: time.Now(), Attempt: 1,
	})

	time.Sleep(100 * time.Millisecond)
	if p.posts() != 0 {
		t.Errorf("notifier posted %d times for a plain result", p.posts())
	}
}

func TestFormatInsight(t *testing.T) {
	in := &bus.Insight{
		Window:          time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		Summary:         "Email: 5 unread message(s), 1 require immediate attention.",
		Recommendations: []string{"Triage the 1 high-priority email(s) first."},
		Missing:         []string{"finance"},
		Partial:         true,
	}
	text := FormatInsight(in)

	for _, want := range []string{
		"2026-08-29 09:00",
		"5 unread message(s)",
		"Partial: no data from finance",
		"Triage the 1 high-priority email(s) first.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("formatted insight missing %q:\n%s", want, text)
		}
	}
}
