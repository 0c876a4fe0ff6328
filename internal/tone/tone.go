// Package tone generates the sine test tone the control interface's
// play_test_tone operation mixes into captured frames, ahead of the
// ring buffer and the DSP chain.
package tone

import "math"

// Generator produces a continuous sine wave at a fixed frequency and
// sample rate, one sample per call, advancing its phase each time.
type Generator struct {
	sampleRate int
	freqHz     float64
	phase      float64
	step       float64
}

// New builds a Generator for the given frequency at sampleRate.
func New(sampleRate int, freqHz float64) *Generator {
	return &Generator{
		sampleRate: sampleRate,
		freqHz:     freqHz,
		step:       2 * math.Pi * freqHz / float64(sampleRate),
	}
}

// Next returns the next sample in [-1, 1] and advances the phase.
func (g *Generator) Next() float32 {
	s := math.Sin(g.phase)
	g.phase += g.step
	if g.phase > 2*math.Pi {
		g.phase -= 2 * math.Pi
	}
	return float32(s)
}

// Fill writes len(out) samples into out, one per element.
func (g *Generator) Fill(out []float32) {
	for i := range out {
		out[i] = g.Next()
	}
}

// DurationFrames converts a duration in milliseconds to a frame count
// at this generator's sample rate.
func (g *Generator) DurationFrames(durationMs int) int {
	return durationMs * g.sampleRate / 1000
}
