package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/serigela/lifeloop/internal/bus"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "lifeloop.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndQueryResults(t *testing.T) {
	s := newTestService(t)
	window := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	for i, topic := range []string{"activity", "finance", "activity"} {
		err := s.InsertResult(&bus.Result{
			AgentID:    topic + "-agent",
			Topic:      topic,
			Window:     window,
			Status:     bus.StatusSuccess,
			Payload:    map[string]any{"n": float64(i)},
			Attempt:    1,
			ProducedAt: window.Add(time.Duration(i) * time.Second),
			TraceID:    "trace-1",
		})
		if err != nil {
			t.Fatalf("insert result %d: %v", i, err)
		}
	}

	all, err := s.RecentResults(ResultFilter{})
	if err != nil {
		t.Fatalf("recent results: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d results, want 3", len(all))
	}
	// newest first
	if all[0].Payload["n"] != float64(2) {
		t.Errorf("first result payload = %v", all[0].Payload)
	}

	activity, err := s.RecentResults(ResultFilter{Topic: "activity"})
	if err != nil {
		t.Fatalf("filtered results: %v", err)
	}
	if len(activity) != 2 {
		t.Errorf("activity results = %d, want 2", len(activity))
	}

	limited, err := s.RecentResults(ResultFilter{Limit: 1})
	if err != nil {
		t.Fatalf("limited results: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited results = %d, want 1", len(limited))
	}
}

func TestInsertInsightIdempotent(t *testing.T) {
	s := newTestService(t)
	in := &bus.Insight{
		ID:              "insight-1",
		Window:          time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		Summary:         "Activity: Detected 2 routine patterns from 8 activities.",
		Recommendations: []string{"keep it up"},
		Contributing:    []string{"activity"},
		Missing:         []string{"email"},
		Partial:         true,
		GeneratedAt:     time.Now().UTC(),
	}
	if err := s.InsertInsight(in); err != nil {
		t.Fatalf("insert insight: %v", err)
	}
	if err := s.InsertInsight(in); err != nil {
		t.Fatalf("duplicate insert should be a no-op: %v", err)
	}

	got, err := s.RecentInsights(10)
	if err != nil {
		t.Fatalf("recent insights: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d insights, want 1", len(got))
	}
	if !got[0].Partial || len(got[0].Missing) != 1 || got[0].Missing[0] != "email" {
		t.Errorf("round-trip lost fields: %+v", got[0])
	}
	if len(got[0].Recommendations) != 1 {
		t.Errorf("recommendations = %v", got[0].Recommendations)
	}
}

func TestAttachPersistsBusTraffic(t *testing.T) {
	s := newTestService(t)
	b := bus.New()
	defer b.Close()
	s.Attach(b)

	window := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	b.PublishResult("scheduler", &bus.Result{
		AgentID: "finance-agent", Topic: "finance", Window: window,
		Status: bus.StatusSuccess, Attempt: 1, ProducedAt: time.Now(),
	})
	b.PublishInsight("aggregator", &bus.Insight{
		ID: "insight-bus", Window: window, Summary: "ok",
		Contributing: []string{"finance"}, GeneratedAt: time.Now(),
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		results, insights, err := s.Counts()
		if err != nil {
			t.Fatalf("counts: %v", err)
		}
		if results == 1 && insights == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("bus traffic not persisted: results=%d insights=%d", results, insights)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCountsEmpty(t *testing.T) {
	s := newTestService(t)
	results, insights, err := s.Counts()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if results != 0 || insights != 0 {
		t.Errorf("fresh db counts = %d/%d", results, insights)
	}
}
