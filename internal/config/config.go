// Package config holds the lifobench configuration.
//
// Values come, lowest precedence first, from the `default` struct tags,
// an optional config file, LIFOBENCH_* environment variables and command
// line flags.
//
// # Configuration Structure
//
//	Config
//	├── Pool        - pool sizing and policies
//	├── Bench       - load generator settings
//	├── LogLevel    - logging verbosity
//	├── LogFormat   - "console" or "json"
//	└── MetricsAddr - Prometheus listen address, empty to disable
//
// Environment variables use the key path in upper case with dots and
// dashes replaced by underscores, e.g. LIFOBENCH_POOL_MAX_WORKERS.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/tahsin716/lifo"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LIFOBENCH"

// Rejection policy names accepted in Pool.Rejection.
const (
	RejectAbort         = "abort"
	RejectCallerRuns    = "caller-runs"
	RejectDiscard       = "discard"
	RejectDiscardOldest = "discard-oldest"
)

type Config struct {
	Pool        Pool   `mapstructure:"pool"`
	Bench       Bench  `mapstructure:"bench"`
	LogLevel    string `mapstructure:"log-level" default:"info"`
	LogFormat   string `mapstructure:"log-format" default:"console"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

type Pool struct {
	Name           string        `mapstructure:"name" default:"lifobench"`
	CoreWorkers    int           `mapstructure:"core-workers" default:"0"`
	MaxWorkers     int           `mapstructure:"max-workers" default:"64"`
	MaxIdleTime    time.Duration `mapstructure:"max-idle-time" default:"60s"`
	QueueSizeLimit int           `mapstructure:"queue-size-limit" default:"1024"`
	SpinCount      int           `mapstructure:"spin-count" default:"1024"`
	Daemon         bool          `mapstructure:"daemon"`
	Priority       int           `mapstructure:"priority" default:"5"`
	Rejection      string        `mapstructure:"rejection" default:"abort"`
	PinThreads     bool          `mapstructure:"pin-threads"`
}

type Bench struct {
	Tasks         int           `mapstructure:"tasks" default:"1000000"`
	Producers     int           `mapstructure:"producers" default:"4"`
	Rate          float64       `mapstructure:"rate"`
	TaskDuration  time.Duration `mapstructure:"task-duration"`
	FailingTasks  int           `mapstructure:"failing-tasks" default:"1"`
	Retry         bool          `mapstructure:"retry" default:"true"`
	RetryMaxTries uint          `mapstructure:"retry-max-tries" default:"1000"`
	RetryInitial  time.Duration `mapstructure:"retry-initial" default:"50us"`
	RetryMax      time.Duration `mapstructure:"retry-max" default:"10ms"`
	Timeout       time.Duration `mapstructure:"timeout" default:"5m"`
}

// flagKeys maps every flag registered by RegisterFlags to its config key.
var flagKeys = map[string]string{
	"pool-name":        "pool.name",
	"core-workers":     "pool.core-workers",
	"max-workers":      "pool.max-workers",
	"max-idle-time":    "pool.max-idle-time",
	"queue-size-limit": "pool.queue-size-limit",
	"spin-count":       "pool.spin-count",
	"daemon":           "pool.daemon",
	"priority":         "pool.priority",
	"rejection":        "pool.rejection",
	"pin-threads":      "pool.pin-threads",
	"tasks":            "bench.tasks",
	"producers":        "bench.producers",
	"rate":             "bench.rate",
	"task-duration":    "bench.task-duration",
	"failing-tasks":    "bench.failing-tasks",
	"retry":            "bench.retry",
	"retry-max-tries":  "bench.retry-max-tries",
	"retry-initial":    "bench.retry-initial",
	"retry-max":        "bench.retry-max",
	"timeout":          "bench.timeout",
	"log-level":        "log-level",
	"log-format":       "log-format",
	"metrics-addr":     "metrics-addr",
}

// Default returns a Config populated from the struct tags.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// Tags are static; failing here is a programming error.
		panic(fmt.Sprintf("config: invalid default tags: %v", err))
	}
	return cfg
}

// RegisterFlags adds a flag for every config key to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.String("pool-name", d.Pool.Name, "pool name, also the worker name prefix")
	fs.Int("core-workers", d.Pool.CoreWorkers, "workers exempt from idle eviction")
	fs.Int("max-workers", d.Pool.MaxWorkers, "ceiling on live workers")
	fs.Duration("max-idle-time", d.Pool.MaxIdleTime, "idle timeout of non-core workers")
	fs.Int("queue-size-limit", d.Pool.QueueSizeLimit, "maximum number of queued tasks")
	fs.Int("spin-count", d.Pool.SpinCount, "non-blocking handoff checks before a worker blocks")
	fs.Bool("daemon", d.Pool.Daemon, "daemon flag stamped on workers")
	fs.Int("priority", d.Pool.Priority, "priority stamped on workers (1-10)")
	fs.String("rejection", d.Pool.Rejection, "rejection policy: abort, caller-runs, discard, discard-oldest")
	fs.Bool("pin-threads", d.Pool.PinThreads, "lock each worker to an OS thread")

	fs.Int("tasks", d.Bench.Tasks, "number of tasks to submit")
	fs.Int("producers", d.Bench.Producers, "number of concurrent submitters")
	fs.Float64("rate", d.Bench.Rate, "submission rate limit in tasks/sec, 0 for unlimited")
	fs.Duration("task-duration", d.Bench.TaskDuration, "time each task sleeps")
	fs.Int("failing-tasks", d.Bench.FailingTasks, "number of tasks that panic")
	fs.Bool("retry", d.Bench.Retry, "resubmit tasks rejected by a full pool with exponential backoff")
	fs.Uint("retry-max-tries", d.Bench.RetryMaxTries, "attempts per rejected task")
	fs.Duration("retry-initial", d.Bench.RetryInitial, "first retry interval")
	fs.Duration("retry-max", d.Bench.RetryMax, "maximum retry interval")
	fs.Duration("timeout", d.Bench.Timeout, "overall run timeout")

	fs.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	fs.String("log-format", d.LogFormat, "log format: console or json")
	fs.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address")
}

// Load builds a Config from defaults, the optional file, the environment
// and fs, then validates it. fs may be nil.
func Load(fs *pflag.FlagSet, file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for flag, key := range flagKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
		if fs == nil {
			continue
		}
		if f := fs.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", flag, err)
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var err error

	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log-level: %w", lerr))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		err = multierr.Append(err, fmt.Errorf("log-format must be console or json, got %q", c.LogFormat))
	}

	switch c.Pool.Rejection {
	case RejectAbort, RejectCallerRuns, RejectDiscard, RejectDiscardOldest:
	default:
		err = multierr.Append(err, fmt.Errorf("pool.rejection: unknown policy %q", c.Pool.Rejection))
	}
	poolCfg := lifo.DefaultConfig()
	for _, opt := range c.Pool.Options() {
		opt(&poolCfg)
	}
	err = multierr.Append(err, poolCfg.Validate())

	if c.Bench.Tasks < 0 {
		err = multierr.Append(err, fmt.Errorf("bench.tasks must be >= 0, got %d", c.Bench.Tasks))
	}
	if c.Bench.Producers < 1 {
		err = multierr.Append(err, fmt.Errorf("bench.producers must be >= 1, got %d", c.Bench.Producers))
	}
	if c.Bench.Rate < 0 {
		err = multierr.Append(err, fmt.Errorf("bench.rate must be >= 0, got %v", c.Bench.Rate))
	}
	if c.Bench.FailingTasks < 0 || c.Bench.FailingTasks > c.Bench.Tasks {
		err = multierr.Append(err, fmt.Errorf("bench.failing-tasks must be in [0, %d], got %d",
			c.Bench.Tasks, c.Bench.FailingTasks))
	}
	if c.Bench.Retry && c.Bench.RetryMaxTries == 0 {
		err = multierr.Append(err, fmt.Errorf("bench.retry-max-tries must be > 0 when retrying"))
	}
	if c.Bench.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("bench.timeout must be > 0, got %v", c.Bench.Timeout))
	}

	return err
}

// Options converts the pool section into lifo options. Logger and
// handlers are left to the caller.
func (p Pool) Options() []lifo.Option {
	return []lifo.Option{
		lifo.WithCoreWorkers(p.CoreWorkers),
		lifo.WithMaxWorkers(p.MaxWorkers),
		lifo.WithMaxIdleTime(p.MaxIdleTime),
		lifo.WithQueueSizeLimit(p.QueueSizeLimit),
		lifo.WithSpinCount(p.SpinCount),
		lifo.WithDaemon(p.Daemon),
		lifo.WithPriority(p.Priority),
		lifo.WithPinWorkerThreads(p.PinThreads),
		lifo.WithRejectionHandler(p.RejectionHandler()),
	}
}

// RejectionHandler returns the policy named by Rejection, defaulting to
// abort.
func (p Pool) RejectionHandler() lifo.RejectionHandler {
	switch p.Rejection {
	case RejectCallerRuns:
		return lifo.CallerRunsPolicy{}
	case RejectDiscard:
		return lifo.DiscardPolicy{}
	case RejectDiscardOldest:
		return lifo.DiscardOldestPolicy{}
	default:
		return lifo.AbortPolicy{}
	}
}
