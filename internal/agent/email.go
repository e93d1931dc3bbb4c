package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// EmailAgent summarizes the inbox: unread and high-priority counts,
// sender frequency, and a short rule-based summary line. An LLM-backed
// summarizer would replace buildSummary behind the same payload shape.
type EmailAgent struct {
	source EmailSource
}

func NewEmailAgent(source EmailSource) (*EmailAgent, error) {
	if source == nil {
		return nil, Fatal(fmt.Errorf("email agent: no source configured"))
	}
	return &EmailAgent{source: source}, nil
}

func (a *EmailAgent) ID() string    { return "email" }
func (a *EmailAgent) Topic() string { return "email" }

func (a *EmailAgent) Run(ctx context.Context) (map[string]any, error) {
	emails, err := a.source.Emails(ctx)
	if err != nil {
		return nil, Transient(fmt.Errorf("email agent: fetch: %w", err))
	}

	var unread, highPriority int
	senders := make(map[string]int)
	for _, em := range emails {
		if !em.Unread {
			continue
		}
		unread++
		senders[em.From]++
		if em.Priority == "high" {
			highPriority++
		}
	}

	payload := map[string]any{
		"total_unread":        unread,
		"high_priority_count": highPriority,
		"sender_frequency":    senders,
		"summary":             buildSummary(unread, highPriority, senders),
	}
	slog.Info("Email analysis complete", "unread", unread, "high_priority", highPriority)
	return payload, nil
}

func buildSummary(unread, highPriority int, senders map[string]int) string {
	if unread == 0 {
		return "Inbox is clear."
	}
	parts := []string{fmt.Sprintf("You have %d unread message(s).", unread)}
	if highPriority > 0 {
		parts = append(parts, fmt.Sprintf("%d marked high priority.", highPriority))
	}
	if top := topSender(senders); top != "" {
		parts = append(parts, fmt.Sprintf("Most frequent sender: %s.", top))
	}
	return strings.Join(parts, " ")
}

func topSender(senders map[string]int) string {
	names := make([]string, 0, len(senders))
	for name := range senders {
		names = append(names, name)
	}
	// Highest count wins; ties break alphabetically for stable output.
	sort.Slice(names, func(i, j int) bool {
		if senders[names[i]] != senders[names[j]] {
			return senders[names[i]] > senders[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
