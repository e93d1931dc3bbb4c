// Package insight correlates per-agent results into time-windowed
// composite insights.
package insight

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serigela/lifeloop/internal/bus"
)

// Config holds aggregator settings.
type Config struct {
	// Deadline bounds how long an open window waits for missing topics
	// before closing partial.
	Deadline time.Duration `json:"deadline" envconfig:"DEADLINE"`
	// HistoryLimit caps the in-memory insight history kept for the
	// status surface.
	HistoryLimit int `json:"historyLimit" envconfig:"HISTORY_LIMIT"`
}

// DefaultConfig returns sensible aggregator defaults.
func DefaultConfig() Config {
	return Config{Deadline: 2 * time.Minute, HistoryLimit: 100}
}

type window struct {
	ts       time.Time
	received map[string]*bus.Result
	timer    *time.Timer
	closed   bool
}

// Aggregator groups results into windows keyed by window timestamp and
// emits exactly one insight per window: immediately once every expected
// topic has reported, or on the deadline with the missing set flagged.
// Only the aggregator mutates window contents.
type Aggregator struct {
	cfg        Config
	bus        *bus.Bus
	expected   []string
	summarizer Summarizer

	mu      sync.Mutex
	windows map[int64]*window
	history []bus.Insight
	// latest is the newest window timestamp ever closed. Results for
	// windows at or before it are late even when the closed marker has
	// been pruned, so a pruned window can never emit twice.
	latest time.Time
	sub    *bus.Subscription
}

// New creates an Aggregator expecting one result per listed topic in
// every window. A nil summarizer falls back to the rule-based one.
func New(cfg Config, b *bus.Bus, expected []string, summarizer Summarizer) *Aggregator {
	def := DefaultConfig()
	if cfg.Deadline <= 0 {
		cfg.Deadline = def.Deadline
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if summarizer == nil {
		summarizer = &RuleSummarizer{}
	}
	topics := make([]string, len(expected))
	copy(topics, expected)
	sort.Strings(topics)

	return &Aggregator{
		cfg:        cfg,
		bus:        b,
		expected:   topics,
		summarizer: summarizer,
		windows:    make(map[int64]*window),
	}
}

// Start subscribes the aggregator to every expected topic.
func (a *Aggregator) Start() {
	a.sub = a.bus.Subscribe("aggregator", a.handle, a.expected...)
	slog.Info("Aggregator started", "topics", a.expected, "deadline", a.cfg.Deadline)
}

// Stop unsubscribes and cancels open window timers without emitting.
func (a *Aggregator) Stop() {
	if a.sub != nil {
		a.bus.Unsubscribe(a.sub)
		a.sub = nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, w := range a.windows {
		if w.timer != nil {
			w.timer.Stop()
		}
	}
}

func (a *Aggregator) handle(msg bus.Message) error {
	if msg.Result == nil {
		return nil
	}
	a.record(msg.Result)
	return nil
}

// record files one result into its window, creating the window on first
// sight. Duplicate results for a topic inside an open window resolve by
// ProducedAt: the later one wins. Results for a closed window go to the
// late topic and never touch the emitted insight.
func (a *Aggregator) record(res *bus.Result) {
	key := res.Window.UnixNano()

	a.mu.Lock()
	w, ok := a.windows[key]
	if !ok && !res.Window.After(a.latest) {
		// The window's marker may already be pruned; the watermark still
		// proves it closed, so the result must not reopen it.
		a.mu.Unlock()
		a.publishLate(res)
		return
	}
	if !ok {
		w = &window{ts: res.Window, received: make(map[string]*bus.Result)}
		w.timer = time.AfterFunc(a.cfg.Deadline, func() { a.expire(key) })
		a.windows[key] = w
	}
	if w.closed {
		a.mu.Unlock()
		a.publishLate(res)
		return
	}

	if prev, dup := w.received[res.Topic]; dup {
		if !res.ProducedAt.After(prev.ProducedAt) {
			a.mu.Unlock()
			slog.Debug("Stale duplicate result ignored", "topic", res.Topic, "window", res.Window)
			return
		}
		slog.Info("Duplicate result superseded", "topic", res.Topic, "window", res.Window)
	}
	w.received[res.Topic] = res

	complete := true
	for _, topic := range a.expected {
		if _, got := w.received[topic]; !got {
			complete = false
			break
		}
	}
	if complete {
		a.closeWindow(w, key)
	}
	a.mu.Unlock()
}

// publishLate routes a result for an already-closed window to the late
// topic. It never touches the emitted insight.
func (a *Aggregator) publishLate(res *bus.Result) {
	slog.Warn("Late result for closed window", "agent", res.AgentID, "topic", res.Topic,
		"window", res.Window, "produced_at", res.ProducedAt)
	a.bus.Publish(bus.Message{Topic: bus.TopicLate, Source: "aggregator", Result: res})
}

// expire is the deadline path: close the window with whatever arrived.
func (a *Aggregator) expire(key int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if w, ok := a.windows[key]; ok && !w.closed {
		a.closeWindow(w, key)
	}
}

// closeWindow transitions a window open→closed exactly once and emits
// its insight. Caller holds a.mu.
func (a *Aggregator) closeWindow(w *window, key int64) {
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.ts.After(a.latest) {
		a.latest = w.ts
	}

	// A topic that reported a failure or timeout closed the window's wait
	// but contributed no data; it counts as missing in the emitted insight.
	var contributing, missing []string
	for _, topic := range a.expected {
		if res, ok := w.received[topic]; ok && res.Status == bus.StatusSuccess {
			contributing = append(contributing, topic)
		} else {
			missing = append(missing, topic)
		}
	}

	summary, recommendations := a.summarizer.Summarize(w.ts, a.expected, w.received)
	in := &bus.Insight{
		ID:              uuid.NewString(),
		Window:          w.ts,
		Summary:         summary,
		Recommendations: recommendations,
		Contributing:    contributing,
		Missing:         missing,
		Partial:         len(missing) > 0,
		GeneratedAt:     time.Now(),
	}

	a.history = append(a.history, *in)
	if len(a.history) > a.cfg.HistoryLimit {
		a.history = a.history[len(a.history)-a.cfg.HistoryLimit:]
	}
	a.pruneClosed()

	if in.Partial {
		slog.Warn("Window closed on deadline with missing topics", "window", w.ts, "missing", missing)
	} else {
		slog.Info("Window closed complete", "window", w.ts, "contributing", contributing)
	}
	a.bus.PublishInsight("aggregator", in)
}

// pruneClosed drops the oldest closed-window markers once enough have
// accumulated. Markers are kept so late results are recognized as late
// rather than opening a fresh window. Caller holds a.mu.
func (a *Aggregator) pruneClosed() {
	const keep = 256
	if len(a.windows) <= keep {
		return
	}
	keys := make([]int64, 0, len(a.windows))
	for key, w := range a.windows {
		if w.closed {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		if len(a.windows) <= keep {
			break
		}
		delete(a.windows, key)
	}
}

// History returns the most recent insights, newest last.
func (a *Aggregator) History(limit int) []bus.Insight {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit <= 0 || limit > len(a.history) {
		limit = len(a.history)
	}
	out := make([]bus.Insight, limit)
	copy(out, a.history[len(a.history)-limit:])
	return out
}

// OpenWindows returns the number of windows still collecting results.
func (a *Aggregator) OpenWindows() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, w := range a.windows {
		if !w.closed {
			n++
		}
	}
	return n
}
