package scheduler

import (
	"fmt"
	"time"
)

// Lock backends.
const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

// Config defines the sweep cadence loaded from configuration.
type Config struct {
	Enabled         bool   `json:"enabled"`
	IntervalSeconds int    `json:"interval_seconds"`
	DryRun          bool   `json:"dry_run"`
	Actor           string `json:"actor"`
	// Lock selects the lock backend, "memory" or "redis".
	Lock           string `json:"lock"`
	LockKey        string `json:"lock_key"`
	LockTTLSeconds int    `json:"lock_ttl_seconds"`
}

func (c *Config) SetDefaults() {
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 60
	}
	if c.Actor == "" {
		c.Actor = "scheduler"
	}
	if c.Lock == "" {
		c.Lock = LockMemory
	}
	if c.LockKey == "" {
		c.LockKey = "fieldassign:sweep"
	}
	if c.LockTTLSeconds == 0 {
		c.LockTTLSeconds = 300
	}
}

func (c Config) Validate() error {
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive")
	}
	if c.LockTTLSeconds <= 0 {
		return fmt.Errorf("lock_ttl_seconds must be positive")
	}
	switch c.Lock {
	case LockMemory, LockRedis:
	default:
		return fmt.Errorf("unknown lock %s", c.Lock)
	}
	return nil
}

// Interval returns the pause between two sweeps.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LockTTL bounds how long a crashed instance can hold the lock.
func (c Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}
