// Package config provides configuration types and loading for lifeloop.
package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Scheduler, Agents, Aggregator, Kafka, Slack.
type Config struct {
	Paths      PathsConfig      `json:"paths"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Agents     AgentsConfig     `json:"agents"`
	Aggregator AggregatorConfig `json:"aggregator"`
	Kafka      KafkaConfig      `json:"kafka"`
	Slack      SlackConfig      `json:"slack"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	DataDir  string `json:"dataDir" envconfig:"DATA_DIR"`
	LockPath string `json:"lockPath,omitempty" envconfig:"LOCK_PATH"`
}

// DatabasePath returns the sqlite file location under the data dir.
func (p PathsConfig) DatabasePath() string {
	return filepath.Join(p.DataDir, "lifeloop.db")
}

// SchedulerConfig groups cadence-loop settings.
type SchedulerConfig struct {
	TickInterval    time.Duration `json:"tickInterval" envconfig:"TICK_INTERVAL"`
	WindowSize      time.Duration `json:"windowSize" envconfig:"WINDOW_SIZE"`
	MaxConcurrent   int           `json:"maxConcurrent" envconfig:"MAX_CONCURRENT"`
	RetryBackoff    time.Duration `json:"retryBackoff" envconfig:"RETRY_BACKOFF"`
	RetryBackoffCap time.Duration `json:"retryBackoffCap" envconfig:"RETRY_BACKOFF_CAP"`
}

// AgentConfig describes one agent's cadence. Every and Cron are mutually
// exclusive; leaving both empty uses the built-in default cadence.
type AgentConfig struct {
	Enabled    bool          `json:"enabled" envconfig:"ENABLED"`
	Every      time.Duration `json:"every,omitempty" envconfig:"EVERY"`
	Cron       string        `json:"cron,omitempty" envconfig:"CRON"`
	Timeout    time.Duration `json:"timeout" envconfig:"TIMEOUT"`
	MaxRetries int           `json:"maxRetries" envconfig:"MAX_RETRIES"`
	Overlap    string        `json:"overlap" envconfig:"OVERLAP"`
}

// AgentsConfig contains the per-agent cadence configurations.
type AgentsConfig struct {
	Activity AgentConfig `json:"activity"`
	Finance  AgentConfig `json:"finance"`
	Email    AgentConfig `json:"email"`
}

// AggregatorConfig groups insight-window settings.
type AggregatorConfig struct {
	Deadline     time.Duration `json:"deadline" envconfig:"DEADLINE"`
	HistoryLimit int           `json:"historyLimit" envconfig:"HISTORY_LIMIT"`
}

// KafkaConfig configures the optional bus-to-Kafka mirror and the
// inbound consumer. ConsumeTopics lists the Kafka topics whose results
// are ingested back onto the local bus; empty means mirror-only.
type KafkaConfig struct {
	Enabled       bool     `json:"enabled" envconfig:"ENABLED"`
	Brokers       []string `json:"brokers" envconfig:"BROKERS"`
	TopicPrefix   string   `json:"topicPrefix" envconfig:"TOPIC_PREFIX"`
	GroupID       string   `json:"groupId" envconfig:"GROUP_ID"`
	ConsumeTopics []string `json:"consumeTopics" envconfig:"CONSUME_TOPICS"`
}

// SlackConfig configures the optional insight notifier.
type SlackConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Token   string `json:"token" envconfig:"TOKEN"`
	Channel string `json:"channel" envconfig:"CHANNEL"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	defaultAgent := func(every time.Duration) AgentConfig {
		return AgentConfig{
			Enabled:    true,
			Every:      every,
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			Overlap:    "skip",
		}
	}
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.lifeloop",
		},
		Scheduler: SchedulerConfig{
			TickInterval:    time.Second,
			WindowSize:      time.Minute,
			MaxConcurrent:   8,
			RetryBackoff:    2 * time.Second,
			RetryBackoffCap: time.Minute,
		},
		Agents: AgentsConfig{
			Activity: defaultAgent(time.Hour),
			Finance:  defaultAgent(6 * time.Hour),
			Email:    defaultAgent(30 * time.Minute),
		},
		Aggregator: AggregatorConfig{
			Deadline:     2 * time.Minute,
			HistoryLimit: 100,
		},
		Kafka: KafkaConfig{
			Brokers:     []string{"localhost:9092"},
			TopicPrefix: "lifeloop.",
			GroupID:     "lifeloop",
		},
		Slack: SlackConfig{},
	}
}
