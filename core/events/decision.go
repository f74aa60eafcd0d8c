package events

// DecisionEvent is published for every call processed by the allocator.
// EngineerID is empty and Reason holds the reason code when the call could
// not be placed.
type DecisionEvent struct {
	BatchID    string
	CallID     string
	EngineerID string
	Score      float64
	Reason     string
}
