// Package events defines the assignment related events emitted on the event bus.
//
// Available event types:
//   - BatchEvent: batch started or finished
//   - DecisionEvent: allocator decision for one call
//   - CommitEvent: result of committing one assignment
package events
