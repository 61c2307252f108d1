// Package audit defines the port through which recompute services leave a
// trail of the derived fields they changed.
package audit

import (
	"context"
)

// Action names the kind of derived-field change.
type Action string

const (
	ActionStatusChange   Action = "status_change"
	ActionAverageChange  Action = "average_change"
	ActionBatchRecompute Action = "batch_recompute"
)

// Entry is a single audit record.
type Entry struct {
	EntityType string
	EntityID   string
	Action     Action
	Changes    map[string]any
}

// Recorder persists audit entries. Implementations must join the
// transaction carried by ctx when one is present.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }

// Change builds the old/new pair stored for a single field.
func Change(oldVal, newVal any) map[string]any {
	return map[string]any{"old": oldVal, "new": newVal}
}
