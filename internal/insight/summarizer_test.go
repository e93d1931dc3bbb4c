package insight

import (
	"strings"
	"testing"
	"time"

	"github.com/serigela/lifeloop/internal/bus"
)

func TestRuleSummarizerAllTopics(t *testing.T) {
	now := time.Now()
	received := map[string]*bus.Result{
		"activity": {Topic: "activity", Status: bus.StatusSuccess, Payload: map[string]any{
			"total_activities": 9,
			"routines":         map[string]any{"routine_1": map[string]any{}},
		}},
		"finance": {Topic: "finance", Status: bus.StatusSuccess, Payload: map[string]any{
			"insights": map[string]any{
				"total_spent":          312.5,
				"anomalies_detected":   2,
				"analysis_period_days": 30,
			},
		}},
		"email": {Topic: "email", Status: bus.StatusSuccess, Payload: map[string]any{
			"total_unread":        14,
			"high_priority_count": 3,
		}},
	}

	summary, recs := RuleSummarizer{}.Summarize(now, []string{"activity", "finance", "email"}, received)

	for _, want := range []string{
		"Detected 1 routine patterns from 9 activities",
		"Spent $312.50 over 30 days with 2 unusual transaction(s)",
		"14 unread message(s), 3 require immediate attention",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q\nsummary: %s", want, summary)
		}
	}
	if parts := strings.Split(summary, " | "); len(parts) != 3 {
		t.Errorf("expected 3 summary segments, got %d", len(parts))
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 recommendations, got %v", recs)
	}
}

func TestRuleSummarizerFailedResult(t *testing.T) {
	received := map[string]*bus.Result{
		"finance": {Topic: "finance", Status: bus.StatusTimeout},
	}
	summary, _ := RuleSummarizer{}.Summarize(time.Now(), []string{"finance"}, received)
	if !strings.Contains(summary, "no data (timeout)") {
		t.Errorf("failed result not reflected: %q", summary)
	}
}

func TestRuleSummarizerEmptyWindow(t *testing.T) {
	summary, recs := RuleSummarizer{}.Summarize(time.Now(), []string{"activity"}, nil)
	if summary != "No agent data available for this window." {
		t.Errorf("summary = %q", summary)
	}
	if len(recs) != 0 {
		t.Errorf("unexpected recommendations: %v", recs)
	}
}

func TestRuleSummarizerDefaultsPeriodDays(t *testing.T) {
	received := map[string]*bus.Result{
		"finance": {Topic: "finance", Status: bus.StatusSuccess, Payload: map[string]any{
			"insights": map[string]any{"total_spent": 10.0},
		}},
	}
	summary, _ := RuleSummarizer{}.Summarize(time.Now(), []string{"finance"}, received)
	if !strings.Contains(summary, "over 30 days") {
		t.Errorf("missing default period: %q", summary)
	}
}
