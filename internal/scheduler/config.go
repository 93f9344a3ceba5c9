package scheduler

import (
	"time"

	"github.com/smallbiznis/floorquote/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled            bool
	RunInterval        time.Duration
	JobTimeout         time.Duration
	BatchSize          int
	PendingLeadTTL     time.Duration
	DistributeLookback time.Duration
	PushgatewayURL     string
}

func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		RunInterval:        time.Minute,
		JobTimeout:         30 * time.Second,
		BatchSize:          50,
		PendingLeadTTL:     72 * time.Hour,
		DistributeLookback: 24 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:            cfg.Scheduler.Enabled,
		RunInterval:        cfg.Scheduler.Interval,
		BatchSize:          cfg.Scheduler.BatchSize,
		PendingLeadTTL:     cfg.Scheduler.PendingLeadTTL,
		DistributeLookback: cfg.Scheduler.DistributeLookback,
		PushgatewayURL:     cfg.Scheduler.PushgatewayURL,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PendingLeadTTL <= 0 {
		c.PendingLeadTTL = defaults.PendingLeadTTL
	}
	if c.DistributeLookback <= 0 {
		c.DistributeLookback = defaults.DistributeLookback
	}
	return c
}
