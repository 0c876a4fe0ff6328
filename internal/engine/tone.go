package engine

import "github.com/agalue/rearfeed/internal/tone"

// Side selects an output side: left, right, or both. Used both by
// SetChannel (which side's configuration is changing) and
// PlayTestTone (which side the synthesized tone feeds).
type Side int

const (
	SideLeft Side = iota
	SideRight
	SideBoth
)

// toneState is published by PlayTestTone via an atomic pointer and
// consumed exclusively by the capture callback thereafter: the
// control thread never touches gen or remaining again once published,
// so no further synchronization is needed between the two.
type toneState struct {
	side      Side
	gen       *tone.Generator
	remaining int64
}

// testToneHook returns the closure the capture callback calls once
// per frame to mix in an active test tone.
func (e *Engine) testToneHook() func() (float32, float32) {
	return func() (float32, float32) {
		ts := e.activeTone.Load()
		if ts == nil {
			return 0, 0
		}
		if ts.remaining <= 0 {
			e.activeTone.CompareAndSwap(ts, nil)
			return 0, 0
		}
		ts.remaining--
		s := ts.gen.Next()
		switch ts.side {
		case SideLeft:
			return s, 0
		case SideRight:
			return 0, s
		default:
			return s, s
		}
	}
}
