package engine

import "github.com/agalue/rearfeed/internal/device"

// Snapshot is the read-only observable state the control surface
// exposes to a UI layer.
type Snapshot struct {
	State          PipelineState
	SourceDevice   device.Handle
	TargetDevice   device.Handle
	Overflows      uint64
	Underflows     uint64
	CallbackErrors uint64
	LastError      error
}

// Snapshot returns the engine's current observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:          e.state,
		SourceDevice:   e.sourceHandle,
		TargetDevice:   e.targetHandle,
		Overflows:      e.droppedCount(),
		Underflows:     e.underflowCount.Load(),
		CallbackErrors: e.errCount.Load(),
		LastError:      e.lastErr,
	}
}
