package model

import (
	"fmt"
	"strings"
	"time"
)

// CallType classifies the work requested by a call.
type CallType int

const (
	CallOther CallType = iota
	CallInstall
	CallSwap
)

// String returns a human-readable representation of the call type.
func (t CallType) String() string {
	switch t {
	case CallInstall:
		return "install"
	case CallSwap:
		return "swap"
	case CallOther:
		return "other"
	default:
		return "unknown"
	}
}

// RequiresDevice returns true for call types that consume a physical device
// from the engineer's stock.
func (t CallType) RequiresDevice() bool {
	return t == CallInstall || t == CallSwap
}

// ParseCallType converts the wire representation of a call type.
func ParseCallType(s string) (CallType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "install":
		return CallInstall, nil
	case "swap":
		return CallSwap, nil
	case "other", "":
		return CallOther, nil
	default:
		return CallOther, fmt.Errorf("unknown call type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t CallType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *CallType) UnmarshalText(b []byte) error {
	v, err := ParseCallType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Priority is the urgency of a call. Higher values are more urgent.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// Weight returns the ordering weight used when sorting a batch
// (urgent=4 ... low=1). Unknown priorities weigh 0.
func (p Priority) Weight() int {
	if p < PriorityLow || p > PriorityUrgent {
		return 0
	}
	return int(p)
}

// ParsePriority converts the wire representation of a priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// CallStatus is the lifecycle state of a call in the external directory.
type CallStatus string

const (
	CallPending  CallStatus = "pending"
	CallAssigned CallStatus = "assigned"
)

// Call is a field-service work order awaiting dispatch.
type Call struct {
	ID            string       `json:"id"`
	Number        string       `json:"number"`
	Type          CallType     `json:"type"`
	Priority      Priority     `json:"priority"`
	Status        CallStatus   `json:"status"`
	BankID        string       `json:"bank_id"`
	Location      *Coordinates `json:"location,omitempty"`
	ScheduledDate *time.Time   `json:"scheduled_date,omitempty"`
}
