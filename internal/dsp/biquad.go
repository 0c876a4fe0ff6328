// Package dsp implements the per-output-channel signal chain: delay,
// three-band EQ, mute ramp and gain. Coefficients are always computed on
// the control thread and handed to the audio thread as an immutable
// block via atomic pointer swap; the audio thread only ever applies
// coefficients it already holds.
package dsp

import "math"

// BiquadKind selects the filter topology for a band: low shelf, peak,
// or high shelf.
type BiquadKind int

const (
	// LowShelf boosts or cuts frequencies below the band frequency.
	LowShelf BiquadKind = iota
	// Peaking boosts or cuts a band centered on the band frequency.
	Peaking
	// HighShelf boosts or cuts frequencies above the band frequency.
	HighShelf
)

// BiquadCoeffs holds the normalized (a0=1) transfer-function
// coefficients for a single second-order IIR section, in the form
// y[n] = b0*x[n] + b1*x[n-1] + b2*x[n-2] - a1*y[n-1] - a2*y[n-2].
type BiquadCoeffs struct {
	B0, B1, B2 float32
	A1, A2     float32
}

// DesignBiquad computes Robert Bristow-Johnson cookbook coefficients for
// a shelf or peaking filter at the given sample rate.
//
//	freqHz: band center/corner frequency
//	gainDB: boost (+) or cut (-) in decibels, typically clamped to ±12 dB
//	   by the caller
//	q: resonance/bandwidth parameter, used as the cookbook Q for all
//	   three kinds (shelf filters included); values <= 0 fall back to 1
//
// A gain of 0 dB returns FlatBiquad.
func DesignBiquad(kind BiquadKind, freqHz, gainDB, q float64, sampleRate int) BiquadCoeffs {
	if gainDB == 0 {
		return FlatBiquad
	}
	if q <= 0 {
		q = 1.0
	}
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freqHz / float64(sampleRate)
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * q)

	var b0, b1, b2, a0, a1, a2 float64

	switch kind {
	case LowShelf:
		twoSqrtAAlpha := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) - (a-1)*cosW0 + twoSqrtAAlpha)
		b1 = 2 * a * ((a - 1) - (a+1)*cosW0)
		b2 = a * ((a + 1) - (a-1)*cosW0 - twoSqrtAAlpha)
		a0 = (a + 1) + (a-1)*cosW0 + twoSqrtAAlpha
		a1 = -2 * ((a - 1) + (a+1)*cosW0)
		a2 = (a + 1) + (a-1)*cosW0 - twoSqrtAAlpha

	case HighShelf:
		twoSqrtAAlpha := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) + (a-1)*cosW0 + twoSqrtAAlpha)
		b1 = -2 * a * ((a - 1) + (a+1)*cosW0)
		b2 = a * ((a + 1) + (a-1)*cosW0 - twoSqrtAAlpha)
		a0 = (a + 1) - (a-1)*cosW0 + twoSqrtAAlpha
		a1 = 2 * ((a - 1) - (a+1)*cosW0)
		a2 = (a + 1) - (a-1)*cosW0 - twoSqrtAAlpha

	default: // Peaking
		alphaOverA := alpha / a
		alphaTimesA := alpha * a
		b0 = 1 + alphaTimesA
		b1 = -2 * cosW0
		b2 = 1 - alphaTimesA
		a0 = 1 + alphaOverA
		a1 = -2 * cosW0
		a2 = 1 - alphaOverA
	}

	return BiquadCoeffs{
		B0: float32(b0 / a0),
		B1: float32(b1 / a0),
		B2: float32(b2 / a0),
		A1: float32(a1 / a0),
		A2: float32(a2 / a0),
	}
}

// FlatBiquad returns coefficients for an identity (0 dB, pass-through)
// filter, used when a band's gain is 0 so the chain is bit-identity.
var FlatBiquad = BiquadCoeffs{B0: 1}

// Biquad is the per-sample runtime state for one second-order section:
// the two-sample input/output history the cookbook form requires.
type Biquad struct {
	x1, x2 float32
	y1, y2 float32
}

// Process filters one sample using the given (already-computed)
// coefficients, updating the filter's internal history.
func (f *Biquad) Process(c BiquadCoeffs, x float32) float32 {
	y := c.B0*x + c.B1*f.x1 + c.B2*f.x2 - c.A1*f.y1 - c.A2*f.y2
	f.x2 = f.x1
	f.x1 = x
	f.y2 = f.y1
	f.y1 = y
	return y
}

// Reset zeroes the filter history, used on pipeline restart.
func (f *Biquad) Reset() {
	*f = Biquad{}
}
