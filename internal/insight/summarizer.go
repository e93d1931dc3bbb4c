package insight

import (
	"fmt"
	"strings"
	"time"

	"github.com/serigela/lifeloop/internal/bus"
)

// Summarizer turns a window's collected results into the human-readable
// summary and recommendation list carried on the insight.
type Summarizer interface {
	Summarize(window time.Time, expected []string, received map[string]*bus.Result) (summary string, recommendations []string)
}

// RuleSummarizer is the default summarizer. It reads well-known payload
// fields per topic and degrades gracefully when a field is absent or a
// result failed.
type RuleSummarizer struct{}

func (RuleSummarizer) Summarize(_ time.Time, expected []string, received map[string]*bus.Result) (string, []string) {
	var parts []string
	var recs []string

	for _, topic := range expected {
		res, ok := received[topic]
		if !ok {
			continue
		}
		if res.Status != bus.StatusSuccess {
			parts = append(parts, fmt.Sprintf("%s: no data (%s)", title(topic), res.Status))
			continue
		}
		switch topic {
		case "activity":
			part, rec := summarizeActivity(res.Payload)
			parts = append(parts, part)
			recs = append(recs, rec...)
		case "finance":
			part, rec := summarizeFinance(res.Payload)
			parts = append(parts, part)
			recs = append(recs, rec...)
		case "email":
			part, rec := summarizeEmail(res.Payload)
			parts = append(parts, part)
			recs = append(recs, rec...)
		default:
			parts = append(parts, fmt.Sprintf("%s: reported", title(topic)))
		}
	}

	if len(parts) == 0 {
		return "No agent data available for this window.", nil
	}
	return strings.Join(parts, " | "), recs
}

func summarizeActivity(payload map[string]any) (string, []string) {
	total := asInt(payload["total_activities"])
	routines := 0
	if m, ok := payload["routines"].(map[string]any); ok {
		routines = len(m)
	}
	part := fmt.Sprintf("Activity: Detected %d routine patterns from %d activities.", routines, total)
	var recs []string
	if routines == 0 && total > 0 {
		recs = append(recs, "Your schedule shows no recurring routines yet; consider anchoring one daily habit.")
	}
	return part, recs
}

func summarizeFinance(payload map[string]any) (string, []string) {
	ins, _ := payload["insights"].(map[string]any)
	spent := asFloat(ins["total_spent"])
	anomalies := asInt(ins["anomalies_detected"])
	period := asInt(ins["analysis_period_days"])
	if period == 0 {
		period = 30
	}
	part := fmt.Sprintf("Finance: Spent $%.2f over %d days with %d unusual transaction(s) detected.",
		spent, period, anomalies)
	var recs []string
	if anomalies > 0 {
		recs = append(recs, fmt.Sprintf("Review the %d flagged transaction(s) for unexpected spending.", anomalies))
	}
	return part, recs
}

func summarizeEmail(payload map[string]any) (string, []string) {
	unread := asInt(payload["total_unread"])
	high := asInt(payload["high_priority_count"])
	part := fmt.Sprintf("Email: %d unread message(s), %d require immediate attention.", unread, high)
	var recs []string
	if high > 0 {
		recs = append(recs, fmt.Sprintf("Triage the %d high-priority email(s) first.", high))
	} else if unread > 20 {
		recs = append(recs, "Inbox is piling up; schedule a batch email session.")
	}
	return part, recs
}

func title(topic string) string {
	if topic == "" {
		return topic
	}
	return strings.ToUpper(topic[:1]) + topic[1:]
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
