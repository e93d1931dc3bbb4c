package scheduler

import (
	"time"
)

// State tracks a descriptor through its run lifecycle:
// Idle → Running → {Succeeded, Failed, TimedOut} → Running (next trigger).
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// OverlapPolicy decides what happens when a cadence trigger fires while
// a previous invocation of the same descriptor is still in flight
// (including retry backoff): skip drops the tick, queue coalesces it
// into at most one pending run started right after the current one.
type OverlapPolicy string

const (
	OverlapSkip  OverlapPolicy = "skip"
	OverlapQueue OverlapPolicy = "queue"
)

// Cadence is the triggering policy for a descriptor. Exactly one of the
// fields must be set: a fixed interval, a 5-field cron expression, or an
// upstream bus topic whose messages trigger a run.
type Cadence struct {
	Every   time.Duration
	Cron    *CronExpr
	OnTopic string
}

func (c Cadence) timed() bool { return c.Every > 0 || c.Cron != nil }

// Descriptor registers one agent with the scheduler. Immutable after
// Register; re-register to change it.
type Descriptor struct {
	ID         string
	Topic      string
	Cadence    Cadence
	Timeout    time.Duration
	MaxRetries int
	Overlap    OverlapPolicy
}

// DescriptorStatus is the per-descriptor view returned by Status.
type DescriptorStatus struct {
	ID       string    `json:"id"`
	Topic    string    `json:"topic"`
	State    State     `json:"state"`
	Disabled bool      `json:"disabled"`
	NextRun  time.Time `json:"next_run,omitempty"`
	LastRun  time.Time `json:"last_run,omitempty"`
}

// Config holds scheduler settings.
type Config struct {
	TickInterval    time.Duration `json:"tickInterval" envconfig:"TICK_INTERVAL"`
	WindowSize      time.Duration `json:"windowSize" envconfig:"WINDOW_SIZE"`
	MaxConcurrent   int           `json:"maxConcurrent" envconfig:"MAX_CONCURRENT"`
	RetryBackoff    time.Duration `json:"retryBackoff" envconfig:"RETRY_BACKOFF"`
	RetryBackoffCap time.Duration `json:"retryBackoffCap" envconfig:"RETRY_BACKOFF_CAP"`
	LockPath        string        `json:"lockPath" envconfig:"LOCK_PATH"`
}

// DefaultConfig returns sensible scheduler defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:    time.Second,
		WindowSize:      time.Minute,
		MaxConcurrent:   8,
		RetryBackoff:    2 * time.Second,
		RetryBackoffCap: time.Minute,
	}
}
