package bus

import "time"

// Reserved topic names. Agent topics ("activity", "finance", "email") are
// configured per descriptor; these are the channels the core itself owns.
const (
	// TopicInsights carries composite insights emitted by the aggregator.
	TopicInsights = "insights"
	// TopicStorage receives a copy of every Result and Insight for the
	// durable-store subscriber.
	TopicStorage = "storage"
	// TopicLate receives results that arrived after their aggregation
	// window closed. They are never folded into an emitted insight.
	TopicLate = "results.late"
	// TopicWildcard matches every topic on the bus.
	TopicWildcard = "*"
)

// Status is the terminal state of a single agent invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
)

// Result is the output of one agent invocation. Published once, immutable.
type Result struct {
	AgentID    string         `json:"agent_id"`
	Topic      string         `json:"topic"`
	Window     time.Time      `json:"window"`
	Status     Status         `json:"status"`
	Payload    map[string]any `json:"payload,omitempty"`
	Error      string         `json:"error,omitempty"`
	Attempt    int            `json:"attempt"`
	ProducedAt time.Time      `json:"produced_at"`
	TraceID    string         `json:"trace_id"`
}

// Insight is the composite output for one closed aggregation window.
// Exactly one insight is emitted per window. Partial means the window
// closed on its deadline with one or more expected topics missing.
type Insight struct {
	ID              string    `json:"id"`
	Window          time.Time `json:"window"`
	Summary         string    `json:"summary"`
	Recommendations []string  `json:"recommendations,omitempty"`
	Contributing    []string  `json:"contributing"`
	Missing         []string  `json:"missing,omitempty"`
	Partial         bool      `json:"partial"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Message is the envelope delivered to subscribers. Exactly one of Result
// or Insight is set.
type Message struct {
	Topic       string    `json:"topic"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Result      *Result   `json:"result,omitempty"`
	Insight     *Insight  `json:"insight,omitempty"`
}

// Handler processes one delivered message. A returned error is reported
// as a consumer fault for the owning subscription; it never stops
// delivery of subsequent messages.
type Handler func(Message) error

// FaultFunc receives consumer faults: the subscription name, the message
// being processed, and the error (or recovered panic) the handler raised.
type FaultFunc func(subscriber string, msg Message, err error)
