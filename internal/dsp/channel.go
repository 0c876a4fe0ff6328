package dsp

import (
	"math"
	"sync/atomic"
)

// muteRampMs is the fade duration on a mute toggle.
const muteRampMs = 10

// CoeffBlock is the immutable set of EQ coefficients for one channel's
// three bands. The control thread computes a new block off the audio
// thread and publishes it via atomic pointer swap; the audio thread
// only ever reads whichever block is currently published.
type CoeffBlock struct {
	Low, Mid, High BiquadCoeffs
}

// FlatCoeffBlock is bit-identity: all three bands pass through
// unmodified.
var FlatCoeffBlock = &CoeffBlock{Low: FlatBiquad, Mid: FlatBiquad, High: FlatBiquad}

// Channel is the complete per-output-channel signal chain: delay line,
// three-band EQ, mute ramp, and gain, applied in that order. All fields
// touched by both threads are atomic; the filter histories and
// mute-ramp position belong exclusively to the audio thread that calls
// Process.
type Channel struct {
	sampleRate int

	delay  *DelayLine
	low    Biquad
	mid    Biquad
	high   Biquad
	coeffs atomic.Pointer[CoeffBlock]

	delayFrames atomic.Int64
	gainBits    atomic.Uint32 // float32 bits of the target volume (0..2)
	muted       atomic.Bool   // target mute state

	muteRamp float32 // current ramp value in [0,1], audio-thread owned
}

// NewChannel creates a channel chain for the given target sample rate
// with flat EQ, unity gain, unmuted.
func NewChannel(sampleRate int) *Channel {
	c := &Channel{
		sampleRate: sampleRate,
		delay:      NewDelayLine(sampleRate),
		muteRamp:   1.0,
	}
	c.coeffs.Store(FlatCoeffBlock)
	c.gainBits.Store(math.Float32bits(1.0))
	return c
}

// SampleRate returns the target sample rate this channel was built for.
func (c *Channel) SampleRate() int {
	return c.sampleRate
}

// SetCoeffs publishes a new coefficient block. Call from the control
// thread only; the old block is safely reclaimed by the garbage
// collector once the audio thread stops observing it, no explicit
// reclamation step needed the way there would be in a manually-managed
// language.
func (c *Channel) SetCoeffs(block *CoeffBlock) {
	c.coeffs.Store(block)
}

// SetGain sets the linear gain target, clamped by the caller to
// [0.0, 2.0].
func (c *Channel) SetGain(gain float32) {
	c.gainBits.Store(math.Float32bits(gain))
}

// Gain returns the currently published linear gain.
func (c *Channel) Gain() float32 {
	return math.Float32frombits(c.gainBits.Load())
}

// SetMuted sets the mute target; the audio thread ramps toward it over
// muteRampMs milliseconds.
func (c *Channel) SetMuted(muted bool) {
	c.muted.Store(muted)
}

// Muted reports the current mute target (not the ramp position).
func (c *Channel) Muted() bool {
	return c.muted.Load()
}

// SetDelayMs computes the frame offset for delayMs at this channel's
// sample rate and publishes it. Safe to call from the control thread;
// the audio thread picks it up on its next Process call.
func (c *Channel) SetDelayMs(delayMs float64) {
	c.delayFrames.Store(int64(FramesForDelay(delayMs, c.sampleRate)))
}

// Process runs one sample through delay, EQ, mute ramp and gain, in
// that order. Must be called only from the audio (playback) thread.
func (c *Channel) Process(x float32) float32 {
	if frames := int(c.delayFrames.Load()); frames != c.delay.delayFrames {
		c.delay.SetDelayFrames(frames)
	}
	x = c.delay.Process(x)

	block := c.coeffs.Load()
	x = c.low.Process(block.Low, x)
	x = c.mid.Process(block.Mid, x)
	x = c.high.Process(block.High, x)

	c.advanceMuteRamp()
	return x * c.Gain() * c.muteRamp
}

// advanceMuteRamp steps the mute ramp one sample toward its target
// (0.0 muted, 1.0 unmuted), linearly over muteRampMs.
func (c *Channel) advanceMuteRamp() {
	target := float32(1.0)
	if c.muted.Load() {
		target = 0.0
	}
	if c.muteRamp == target {
		return
	}
	step := float32(1000.0 / (muteRampMs * float64(c.sampleRate)))
	if c.muteRamp < target {
		c.muteRamp += step
		if c.muteRamp > target {
			c.muteRamp = target
		}
	} else {
		c.muteRamp -= step
		if c.muteRamp < target {
			c.muteRamp = target
		}
	}
}

// Reset zeroes the delay line and filter histories, used on pipeline
// restart. Coefficients, gain and mute targets persist across restarts:
// only the signal-history state is cleared.
func (c *Channel) Reset() {
	c.delay.Reset()
	c.low.Reset()
	c.mid.Reset()
	c.high.Reset()
	if c.muted.Load() {
		c.muteRamp = 0
	} else {
		c.muteRamp = 1
	}
}
