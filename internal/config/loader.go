package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".lifeloop"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("LIFELOOP_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("LIFELOOP_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home, nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults. A missing file is not an
// error; defaults are used.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err == nil {
		data = substituteEnv(data)
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Override with environment variables for each group
	envconfig.Process("LIFELOOP_PATHS", &cfg.Paths)
	envconfig.Process("LIFELOOP_SCHEDULER", &cfg.Scheduler)
	envconfig.Process("LIFELOOP_AGENTS_ACTIVITY", &cfg.Agents.Activity)
	envconfig.Process("LIFELOOP_AGENTS_FINANCE", &cfg.Agents.Finance)
	envconfig.Process("LIFELOOP_AGENTS_EMAIL", &cfg.Agents.Email)
	envconfig.Process("LIFELOOP_AGGREGATOR", &cfg.Aggregator)
	envconfig.Process("LIFELOOP_KAFKA", &cfg.Kafka)
	envconfig.Process("LIFELOOP_SLACK", &cfg.Slack)

	// Fallback for the Slack token
	if cfg.Slack.Token == "" {
		if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
			cfg.Slack.Token = token
		}
	}

	// Expand ~ in paths
	expandHome := func(p *string) {
		if strings.HasPrefix(*p, "~") {
			if home, err := os.UserHomeDir(); err == nil {
				*p = filepath.Join(home, (*p)[1:])
			}
		}
	}
	expandHome(&cfg.Paths.DataDir)
	expandHome(&cfg.Paths.LockPath)

	normalize(cfg)
	return cfg, nil
}

// normalize clamps out-of-range values back to defaults.
func normalize(cfg *Config) {
	def := DefaultConfig()
	if cfg.Scheduler.TickInterval <= 0 {
		cfg.Scheduler.TickInterval = def.Scheduler.TickInterval
	}
	if cfg.Scheduler.WindowSize <= 0 {
		cfg.Scheduler.WindowSize = def.Scheduler.WindowSize
	}
	if cfg.Scheduler.MaxConcurrent <= 0 {
		cfg.Scheduler.MaxConcurrent = def.Scheduler.MaxConcurrent
	}
	if cfg.Scheduler.RetryBackoff <= 0 {
		cfg.Scheduler.RetryBackoff = def.Scheduler.RetryBackoff
	}
	if cfg.Scheduler.RetryBackoffCap <= 0 {
		cfg.Scheduler.RetryBackoffCap = def.Scheduler.RetryBackoffCap
	}
	if cfg.Aggregator.Deadline <= 0 {
		cfg.Aggregator.Deadline = def.Aggregator.Deadline
	}
	if cfg.Aggregator.HistoryLimit <= 0 {
		cfg.Aggregator.HistoryLimit = def.Aggregator.HistoryLimit
	}
	if cfg.Kafka.TopicPrefix == "" {
		cfg.Kafka.TopicPrefix = def.Kafka.TopicPrefix
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = def.Kafka.GroupID
	}

	normalizeAgent(&cfg.Agents.Activity, def.Agents.Activity)
	normalizeAgent(&cfg.Agents.Finance, def.Agents.Finance)
	normalizeAgent(&cfg.Agents.Email, def.Agents.Email)
}

func normalizeAgent(a *AgentConfig, def AgentConfig) {
	if a.Every <= 0 && strings.TrimSpace(a.Cron) == "" {
		a.Every = def.Every
	}
	if a.Timeout <= 0 {
		a.Timeout = def.Timeout
	}
	if a.MaxRetries < 0 {
		a.MaxRetries = def.MaxRetries
	}
	switch strings.ToLower(strings.TrimSpace(a.Overlap)) {
	case "queue":
		a.Overlap = "queue"
	default:
		a.Overlap = "skip"
	}
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv expands ${VAR} references in the raw config file.
// Unset variables are left untouched.
func substituteEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		if value, ok := os.LookupEnv(string(parts[1])); ok {
			return []byte(value)
		}
		return match
	})
}
