package lifo

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/multierr"
)

// ============================================================================
// Config Validation Tests
// ============================================================================

func TestConfig_DefaultIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "negative core", opts: []Option{WithCoreWorkers(-1)}},
		{name: "negative max", opts: []Option{WithMaxWorkers(-1)}},
		{name: "core above max", opts: []Option{WithCoreWorkers(5), WithMaxWorkers(4)}},
		{name: "negative idle time", opts: []Option{WithMaxIdleTime(-time.Second)}},
		{name: "negative queue limit", opts: []Option{WithQueueSizeLimit(-1)}},
		{name: "negative spin count", opts: []Option{WithSpinCount(-1)}},
		{name: "negative core min wait", opts: []Option{WithCoreMinWait(-time.Second)}},
		{name: "priority too low", opts: []Option{WithPriority(MinPriority - 1)}},
		{name: "priority too high", opts: []Option{WithPriority(MaxPriority + 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("invalid", tt.opts...)
			if err == nil {
				p.ShutdownNow()
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfig_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CoreWorkers = -1
	cfg.QueueSizeLimit = -1
	cfg.Priority = 0

	err := cfg.Validate()
	if got := len(multierr.Errors(err)); got != 3 {
		t.Errorf("Expected 3 errors, got %d: %v", got, err)
	}
}

func TestConfig_ZeroLimitsAllowed(t *testing.T) {
	p, err := New("zero", WithMaxWorkers(0), WithQueueSizeLimit(0), WithMaxIdleTime(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p.Shutdown()
}
