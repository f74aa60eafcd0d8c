package model

import "time"

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EngineerStatus reports whether an engineer can take new work.
type EngineerStatus string

const (
	EngineerActive   EngineerStatus = "active"
	EngineerInactive EngineerStatus = "inactive"
)

// Engineer is a field technician as seen in a directory snapshot.
type Engineer struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	BankID string         `json:"bank_id"`
	Status EngineerStatus `json:"status"`

	// Live position reported by the engineer's device and the time it was
	// reported. Both are optional.
	Location          *Coordinates `json:"location,omitempty"`
	LocationUpdatedAt *time.Time   `json:"location_updated_at,omitempty"`
	// Region names a coarse area whose centroid is used when the live
	// position is stale or missing.
	Region string `json:"region,omitempty"`

	ActiveCalls    int            `json:"active_calls"`
	Stock          map[string]int `json:"stock,omitempty"` // bank id -> devices held
	LastAssignedAt *time.Time     `json:"last_assigned_at,omitempty"`
}

// IsActive returns true if the engineer may receive new calls.
func (e Engineer) IsActive() bool {
	return e.Status == EngineerActive
}

// StockFor returns the number of devices held for the given bank.
func (e Engineer) StockFor(bankID string) int {
	return e.Stock[bankID]
}
