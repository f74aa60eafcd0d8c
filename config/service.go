package config

import (
	"fmt"
	"time"
)

// Commit modes.
const (
	// CommitDirectory writes assignments back into the snapshot directory.
	CommitDirectory = "directory"
	// CommitMQTT publishes assignment orders and waits for device acks.
	CommitMQTT = "mqtt"
)

// CommitConfig selects how assignment decisions are persisted.
type CommitConfig struct {
	Mode string `json:"mode"`
	// DefaultActor is recorded when a request names no actor.
	DefaultActor string `json:"default_actor"`
}

func (c *CommitConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = CommitDirectory
	}
}

func (c CommitConfig) Validate() error {
	if c.Mode != CommitDirectory && c.Mode != CommitMQTT {
		return fmt.Errorf("unknown mode %s", c.Mode)
	}
	return nil
}

// DirectoryConfig points at the snapshot the directory serves.
type DirectoryConfig struct {
	SnapshotPath string `json:"snapshot_path"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Address        string `json:"address"`
	Token          string `json:"token"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

// Timeout returns the per-batch deadline, zero meaning none.
func (c APIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
