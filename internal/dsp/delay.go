package dsp

// maxDelayMs is the largest delay allowed per channel.
const maxDelayMs = 200

// DelayLine is a circular buffer sized to hold maxDelayMs of audio at
// the target sample rate. Changing the delay rewrites the read pointer
// without zeroing history: a brief artifact on change is acceptable, a
// glitch-free rewrite is not worth the complexity here.
type DelayLine struct {
	buf        []float32
	writePos   int
	delayFrames int
}

// NewDelayLine creates a delay line sized for the given sample rate.
func NewDelayLine(sampleRate int) *DelayLine {
	size := (sampleRate*maxDelayMs)/1000 + 1
	if size < 1 {
		size = 1
	}
	return &DelayLine{buf: make([]float32, size)}
}

// FramesForDelay converts a delay in milliseconds (clamped to [0, 200])
// to a frame count at the given sample rate, rounded to the nearest
// sample. Runs on the control thread.
func FramesForDelay(delayMs float64, sampleRate int) int {
	if delayMs < 0 {
		delayMs = 0
	}
	if delayMs > maxDelayMs {
		delayMs = maxDelayMs
	}
	return int(delayMs*float64(sampleRate)/1000 + 0.5)
}

// SetDelayFrames sets the read-pointer offset directly. Safe to call
// from the audio thread: it only rewrites the offset, never zeroes
// history, so a brief artifact on change is possible but no allocation
// or blocking occurs.
func (d *DelayLine) SetDelayFrames(frames int) {
	if frames < 0 {
		frames = 0
	}
	if frames >= len(d.buf) {
		frames = len(d.buf) - 1
	}
	d.delayFrames = frames
}

// Process pushes x into the delay line and returns the delayed sample.
func (d *DelayLine) Process(x float32) float32 {
	n := len(d.buf)
	d.buf[d.writePos] = x

	readPos := d.writePos - d.delayFrames
	if readPos < 0 {
		readPos += n
	}
	out := d.buf[readPos]

	d.writePos++
	if d.writePos >= n {
		d.writePos = 0
	}
	return out
}

// Reset zeroes the delay line's history, used on pipeline restart.
func (d *DelayLine) Reset() {
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.writePos = 0
}
