// Package scheduler owns the agent descriptor registry and the cadence
// clock: it triggers agents on their own schedules, enforces timeouts and
// retry budgets, and publishes every invocation outcome to the bus.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/serigela/lifeloop/internal/agent"
	"github.com/serigela/lifeloop/internal/bus"
)

type entry struct {
	desc     Descriptor
	agent    agent.Agent
	state    State
	running  bool
	queued   bool
	disabled bool
	next     time.Time
	last     time.Time
	sub      *bus.Subscription
}

// Scheduler triggers registered agents on their cadences. At most one
// invocation per descriptor is in flight at any instant; only the
// scheduler mutates a descriptor's run state.
type Scheduler struct {
	cfg    Config
	bus    *bus.Bus
	lock   *FileLock
	sem    *Semaphore
	faults atomic.Int64

	mu      sync.Mutex
	reg     map[string]*entry
	baseCtx context.Context
}

// New creates a Scheduler publishing to b.
func New(cfg Config, b *bus.Bus) *Scheduler {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.RetryBackoffCap <= 0 {
		cfg.RetryBackoffCap = def.RetryBackoffCap
	}

	s := &Scheduler{
		cfg: cfg,
		bus: b,
		sem: NewSemaphore(cfg.MaxConcurrent),
		reg: make(map[string]*entry),
	}
	if cfg.LockPath != "" {
		s.lock = NewFileLock(cfg.LockPath)
	}
	return s
}

// Register adds a descriptor and its agent. The descriptor is validated
// here; an invalid one is rejected immediately and never triggered.
func (s *Scheduler) Register(desc Descriptor, ag agent.Agent) error {
	if err := validate(desc, ag); err != nil {
		return err
	}

	e := &entry{desc: desc, agent: ag, state: StateIdle}
	if desc.Cadence.Cron != nil {
		e.next = desc.Cadence.Cron.Next(time.Now())
	}
	// The subscription is installed before the entry becomes visible so
	// a Deregister racing this Register always finds it.
	if desc.Cadence.OnTopic != "" {
		e.sub = s.bus.Subscribe("scheduler:"+desc.ID, func(bus.Message) error {
			s.trigger(e, time.Now())
			return nil
		}, desc.Cadence.OnTopic)
	}

	s.mu.Lock()
	old := s.reg[desc.ID]
	if old != nil {
		old.disabled = true
		old.queued = false
	}
	s.reg[desc.ID] = e
	s.mu.Unlock()
	if old != nil && old.sub != nil {
		s.bus.Unsubscribe(old.sub)
	}

	slog.Info("Scheduler descriptor registered", "id", desc.ID, "topic", desc.Topic,
		"timeout", desc.Timeout, "max_retries", desc.MaxRetries)
	return nil
}

// Deregister removes a descriptor. An in-flight invocation finishes but
// no further triggers fire.
func (s *Scheduler) Deregister(id string) {
	s.mu.Lock()
	e, ok := s.reg[id]
	if ok {
		delete(s.reg, id)
		e.disabled = true
		e.queued = false
	}
	s.mu.Unlock()
	if ok && e.sub != nil {
		s.bus.Unsubscribe(e.sub)
	}
}

// Disable stops cadence triggers for a descriptor until re-registered.
func (s *Scheduler) Disable(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.reg[id]; ok {
		e.disabled = true
		e.queued = false
	}
}

func validate(desc Descriptor, ag agent.Agent) error {
	if desc.ID == "" {
		return fmt.Errorf("scheduler: descriptor has no id")
	}
	if desc.Topic == "" {
		return fmt.Errorf("scheduler: descriptor %q has no topic", desc.ID)
	}
	if ag == nil {
		return fmt.Errorf("scheduler: descriptor %q has no agent", desc.ID)
	}
	if desc.Timeout <= 0 {
		return fmt.Errorf("scheduler: descriptor %q has no timeout", desc.ID)
	}
	if desc.MaxRetries < 0 {
		return fmt.Errorf("scheduler: descriptor %q has negative max retries", desc.ID)
	}
	set := 0
	if desc.Cadence.Every > 0 {
		set++
	}
	if desc.Cadence.Cron != nil {
		set++
	}
	if desc.Cadence.OnTopic != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("scheduler: descriptor %q needs exactly one cadence, has %d", desc.ID, set)
	}
	switch desc.Overlap {
	case "", OverlapSkip, OverlapQueue:
	default:
		return fmt.Errorf("scheduler: descriptor %q has unknown overlap policy %q", desc.ID, desc.Overlap)
	}
	return nil
}

// Run starts the tick loop and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	n := len(s.reg)
	s.mu.Unlock()

	slog.Info("Scheduler started", "tick", s.cfg.TickInterval, "descriptors", n)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// tick fires every due timed descriptor. Event-cadence descriptors are
// driven by their bus subscription instead.
func (s *Scheduler) tick(now time.Time) {
	if s.lock != nil {
		acquired, err := s.lock.TryLock()
		if err != nil {
			slog.Warn("Scheduler lock error", "error", err)
			return
		}
		if !acquired {
			slog.Debug("Scheduler tick skipped: lock held by another process")
			return
		}
		defer s.lock.Unlock()
	}

	s.mu.Lock()
	due := make([]*entry, 0, len(s.reg))
	for _, e := range s.reg {
		if !e.desc.Cadence.timed() || e.disabled {
			continue
		}
		if e.next.IsZero() || !now.Before(e.next) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.trigger(e, now)
	}
}

// trigger attempts to start one invocation for e. The single-in-flight
// rule and the overlap policy are enforced here, under the registry lock.
func (s *Scheduler) trigger(e *entry, now time.Time) {
	s.mu.Lock()
	if e.disabled {
		s.mu.Unlock()
		return
	}

	// Advance the cadence clock regardless of whether this trigger runs,
	// so a skipped tick is skipped, not replayed.
	switch {
	case e.desc.Cadence.Every > 0:
		e.next = now.Add(e.desc.Cadence.Every)
	case e.desc.Cadence.Cron != nil:
		e.next = e.desc.Cadence.Cron.Next(now)
	}

	if e.running {
		if e.desc.Overlap == OverlapQueue {
			e.queued = true
			slog.Info("Scheduler trigger queued behind in-flight run", "id", e.desc.ID)
		} else {
			slog.Warn("Scheduler trigger skipped: invocation in flight", "id", e.desc.ID)
		}
		s.mu.Unlock()
		return
	}
	if !s.sem.TryAcquire() {
		slog.Warn("Scheduler trigger skipped: concurrency limit", "id", e.desc.ID)
		s.mu.Unlock()
		return
	}
	e.running = true
	e.state = StateRunning
	e.last = now
	ctx := s.baseCtx
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	window := now.Truncate(s.cfg.WindowSize)
	go s.invoke(ctx, e, window)
}

// invoke runs one invocation to its terminal state: the initial attempt
// plus up to MaxRetries retries for transient failures, each attempt's
// result published. Timeouts and fatal errors end the invocation without
// further retries; a fatal error also disables the descriptor.
func (s *Scheduler) invoke(ctx context.Context, e *entry, window time.Time) {
	defer s.finish(e)

	for attempt := 1; ; attempt++ {
		res, fatal := s.runOnce(ctx, e, window, attempt)
		s.bus.PublishResult("scheduler", res)

		s.mu.Lock()
		switch res.Status {
		case bus.StatusSuccess:
			e.state = StateSucceeded
		case bus.StatusTimeout:
			e.state = StateTimedOut
		default:
			e.state = StateFailed
		}
		if fatal {
			e.disabled = true
			e.queued = false
		}
		s.mu.Unlock()

		switch {
		case res.Status == bus.StatusSuccess:
			return
		case res.Status == bus.StatusTimeout:
			// Terminal for this invocation; the next cadence tick
			// proceeds normally.
			return
		case fatal:
			slog.Error("Scheduler descriptor disabled after fatal error", "id", e.desc.ID, "error", res.Error)
			return
		case attempt > e.desc.MaxRetries:
			slog.Warn("Scheduler retries exhausted", "id", e.desc.ID, "attempts", attempt)
			return
		}

		delay := backoffDelay(s.cfg.RetryBackoff, s.cfg.RetryBackoffCap, attempt)
		slog.Info("Scheduler retrying after failure", "id", e.desc.ID, "attempt", attempt, "backoff", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runOnce executes a single attempt under the descriptor timeout. The
// agent runs in its own goroutine so an implementation that ignores its
// context cannot stall the invocation past the deadline; the timed-out
// result is published regardless.
func (s *Scheduler) runOnce(ctx context.Context, e *entry, window time.Time, attempt int) (*bus.Result, bool) {
	cctx, cancel := context.WithTimeout(ctx, e.desc.Timeout)
	defer cancel()

	type outcome struct {
		payload map[string]any
		err     error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("agent panic: %v", r)}
			}
		}()
		payload, err := e.agent.Run(cctx)
		ch <- outcome{payload: payload, err: err}
	}()

	res := &bus.Result{
		AgentID:    e.desc.ID,
		Topic:      e.desc.Topic,
		Window:     window,
		Attempt:    attempt,
		TraceID:    uuid.NewString(),
		ProducedAt: time.Now(),
	}

	select {
	case out := <-ch:
		res.ProducedAt = time.Now()
		switch {
		case out.err == nil:
			res.Status = bus.StatusSuccess
			res.Payload = out.payload
			return res, false
		case errors.Is(out.err, context.DeadlineExceeded):
			res.Status = bus.StatusTimeout
			res.Error = out.err.Error()
			return res, false
		default:
			res.Status = bus.StatusFailure
			res.Error = out.err.Error()
			return res, agent.IsFatal(out.err)
		}
	case <-cctx.Done():
		res.ProducedAt = time.Now()
		if err := ctx.Err(); err != nil {
			// Shutdown, not a deadline: report as failure without retry
			// noise downstream.
			res.Status = bus.StatusFailure
			res.Error = err.Error()
			return res, false
		}
		res.Status = bus.StatusTimeout
		res.Error = context.DeadlineExceeded.Error()
		slog.Warn("Scheduler invocation timed out", "id", e.desc.ID, "timeout", e.desc.Timeout, "attempt", attempt)
		return res, false
	}
}

// finish clears the in-flight flag and starts the queued run, if any.
func (s *Scheduler) finish(e *entry) {
	s.sem.Release()

	s.mu.Lock()
	e.running = false
	requeue := e.queued && !e.disabled
	e.queued = false
	s.mu.Unlock()

	if requeue {
		s.trigger(e, time.Now())
	}
}

// backoffDelay is exponential with base doubling per attempt, capped at
// the configured ceiling.
func backoffDelay(base, ceiling time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

// ReportConsumerFault is the bus fault callback: subscriber failures are
// isolated to the subscriber, logged here, and counted for the status
// surface.
func (s *Scheduler) ReportConsumerFault(subscriber string, msg bus.Message, err error) {
	s.faults.Add(1)
	slog.Warn("Consumer fault reported", "subscriber", subscriber, "topic", msg.Topic, "error", err)
}

// ConsumerFaults returns the number of consumer faults observed.
func (s *Scheduler) ConsumerFaults() int64 {
	return s.faults.Load()
}

// Status returns a snapshot of every descriptor, sorted by id.
func (s *Scheduler) Status() []DescriptorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DescriptorStatus, 0, len(s.reg))
	for _, e := range s.reg {
		out = append(out, DescriptorStatus{
			ID:       e.desc.ID,
			Topic:    e.desc.Topic,
			State:    e.state,
			Disabled: e.disabled,
			NextRun:  e.next,
			LastRun:  e.last,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
