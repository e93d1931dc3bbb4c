// Package runtime assembles the bus, scheduler, agents, aggregator, and
// optional bridges into one running process.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/serigela/lifeloop/internal/agent"
	"github.com/serigela/lifeloop/internal/bridge"
	"github.com/serigela/lifeloop/internal/bus"
	"github.com/serigela/lifeloop/internal/config"
	"github.com/serigela/lifeloop/internal/insight"
	"github.com/serigela/lifeloop/internal/notify"
	"github.com/serigela/lifeloop/internal/scheduler"
	"github.com/serigela/lifeloop/internal/store"
)

// Runtime owns the lifecycle of every component.
type Runtime struct {
	cfg *config.Config

	Bus        *bus.Bus
	Scheduler  *scheduler.Scheduler
	Aggregator *insight.Aggregator
	Store      *store.Service
	Mirror     *bridge.Mirror
	Consumer   bridge.Consumer
	Notifier   *notify.Notifier

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a runtime from config. Nothing runs until Start.
func New(cfg *config.Config) (*Runtime, error) {
	b := bus.New()

	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		return nil, fmt.Errorf("runtime: data dir: %w", err)
	}
	st, err := store.New(cfg.Paths.DatabasePath())
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(scheduler.Config{
		TickInterval:    cfg.Scheduler.TickInterval,
		WindowSize:      cfg.Scheduler.WindowSize,
		MaxConcurrent:   cfg.Scheduler.MaxConcurrent,
		RetryBackoff:    cfg.Scheduler.RetryBackoff,
		RetryBackoffCap: cfg.Scheduler.RetryBackoffCap,
		LockPath:        cfg.Paths.LockPath,
	}, b)
	b.SetFaultHandler(sched.ReportConsumerFault)

	expected, err := registerAgents(cfg, sched)
	if err != nil {
		st.Close()
		return nil, err
	}

	agg := insight.New(insight.Config{
		Deadline:     cfg.Aggregator.Deadline,
		HistoryLimit: cfg.Aggregator.HistoryLimit,
	}, b, expected, nil)

	rt := &Runtime{
		cfg:        cfg,
		Bus:        b,
		Scheduler:  sched,
		Aggregator: agg,
		Store:      st,
	}
	if cfg.Kafka.Enabled {
		rt.Mirror = bridge.NewMirror(bridge.Config{
			Brokers:     cfg.Kafka.Brokers,
			TopicPrefix: cfg.Kafka.TopicPrefix,
		}, b)
		if len(cfg.Kafka.ConsumeTopics) > 0 {
			rt.Consumer = bridge.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ConsumeTopics)
		}
	}
	if cfg.Slack.Enabled {
		rt.Notifier = notify.New(notify.Config{
			Token:   cfg.Slack.Token,
			Channel: cfg.Slack.Channel,
		}, b)
	}
	return rt, nil
}

// registerAgents wires the built-in agents onto the scheduler and
// returns the topics the aggregator should expect per window.
func registerAgents(cfg *config.Config, sched *scheduler.Scheduler) ([]string, error) {
	var expected []string

	type binding struct {
		topic string
		cfg   config.AgentConfig
		build func() (agent.Agent, error)
	}
	bindings := []binding{
		{"activity", cfg.Agents.Activity, func() (agent.Agent, error) {
			return agent.NewActivityAgent(agent.SampleActivitySource())
		}},
		{"finance", cfg.Agents.Finance, func() (agent.Agent, error) {
			return agent.NewFinanceAgent(agent.SampleTransactionSource(), 30)
		}},
		{"email", cfg.Agents.Email, func() (agent.Agent, error) {
			return agent.NewEmailAgent(agent.SampleEmailSource())
		}},
	}

	for _, bind := range bindings {
		if !bind.cfg.Enabled {
			slog.Info("Agent disabled", "topic", bind.topic)
			continue
		}
		ag, err := bind.build()
		if err != nil {
			return nil, fmt.Errorf("runtime: build %s agent: %w", bind.topic, err)
		}
		desc, err := descriptorFor(bind.topic, bind.cfg)
		if err != nil {
			return nil, err
		}
		if err := sched.Register(desc, ag); err != nil {
			return nil, err
		}
		expected = append(expected, bind.topic)
	}
	return expected, nil
}

// descriptorFor maps one agent config block to a scheduler descriptor.
// A cron expression takes precedence over a fixed interval.
func descriptorFor(topic string, ac config.AgentConfig) (scheduler.Descriptor, error) {
	desc := scheduler.Descriptor{
		ID:         topic + "-agent",
		Topic:      topic,
		Timeout:    ac.Timeout,
		MaxRetries: ac.MaxRetries,
		Overlap:    scheduler.OverlapPolicy(ac.Overlap),
	}
	if ac.Cron != "" {
		expr, err := scheduler.ParseCron(ac.Cron)
		if err != nil {
			return desc, fmt.Errorf("runtime: %s cadence: %w", topic, err)
		}
		desc.Cadence.Cron = expr
	} else {
		desc.Cadence.Every = ac.Every
	}
	return desc, nil
}

// Start launches every component. It returns once everything is
// running; the scheduler loop runs until Stop or ctx cancellation.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return fmt.Errorf("runtime: already started")
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	r.Store.Attach(r.Bus)
	r.Aggregator.Start()
	if r.Mirror != nil {
		r.Mirror.Start(ctx)
	}
	if r.Consumer != nil {
		if err := bridge.Ingest(ctx, r.Consumer, r.Bus); err != nil {
			return fmt.Errorf("runtime: bridge ingest: %w", err)
		}
	}
	if r.Notifier != nil {
		r.Notifier.Start(ctx)
	}

	go func() {
		defer close(r.done)
		if err := r.Scheduler.Run(ctx); err != nil && err != context.Canceled {
			slog.Error("Scheduler exited", "error", err)
		}
	}()

	slog.Info("Runtime started")
	return nil
}

// Stop shuts everything down in reverse order and waits for the
// scheduler loop to exit.
func (r *Runtime) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if r.Notifier != nil {
		r.Notifier.Stop()
	}
	if r.Consumer != nil {
		if err := r.Consumer.Close(); err != nil {
			slog.Warn("Kafka consumer close failed", "error", err)
		}
	}
	if r.Mirror != nil {
		if err := r.Mirror.Close(); err != nil {
			slog.Warn("Kafka mirror close failed", "error", err)
		}
	}
	r.Aggregator.Stop()
	if err := r.Store.Close(); err != nil {
		slog.Warn("Store close failed", "error", err)
	}
	r.Bus.Close()
	slog.Info("Runtime stopped")
}

// Status is the aggregate snapshot behind the status command.
type Status struct {
	Descriptors    []scheduler.DescriptorStatus `json:"descriptors"`
	Bus            bus.Stats                    `json:"bus"`
	ConsumerFaults int64                        `json:"consumer_faults"`
	OpenWindows    int                          `json:"open_windows"`
	StoredResults  int64                        `json:"stored_results"`
	StoredInsights int64                        `json:"stored_insights"`
}

// Status collects a point-in-time snapshot across components.
func (r *Runtime) Status() (Status, error) {
	results, insights, err := r.Store.Counts()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Descriptors:    r.Scheduler.Status(),
		Bus:            r.Bus.Stats(),
		ConsumerFaults: r.Scheduler.ConsumerFaults(),
		OpenWindows:    r.Aggregator.OpenWindows(),
		StoredResults:  results,
		StoredInsights: insights,
	}, nil
}
