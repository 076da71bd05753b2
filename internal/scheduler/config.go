package scheduler

import (
	"time"

	"github.com/justinhw1987/invoiceflow/internal/config"
)

const jobRecurringGenerate = "recurring_generate"

// Config controls the recurring invoker loop.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	LockTTL     time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		BatchSize:   500,
		LockTTL:     36 * time.Hour,
		JobTimeout:  10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

// ProvideConfig reads RECURRING_INTERVAL; the rest keeps defaults.
func ProvideConfig(cfg config.Config) Config {
	return Config{RunInterval: cfg.RecurringInterval}.withDefaults()
}
