// Package resample provides a stateful stereo sample-rate converter used
// to bridge the capture device's rate to the playback device's rate.
package resample

import "math"

// filterTaps is the length of the windowed-sinc anti-aliasing filter.
// 64 taps gives a good quality/performance balance for the ratios this
// service sees in practice (192/96/48 kHz capture down to 44.1/48 kHz
// playback, or the reverse).
const filterTaps = 64

// Resampler converts interleaved stereo frames from one sample rate to
// another. It is stateful: filter history persists across calls to
// Process so streaming audio resamples continuously without clicks at
// chunk boundaries. Construct one per pipeline epoch and call Reset
// when the pipeline restarts.
//
// Process runs on the playback audio callback, which must never
// allocate from the general heap, so every scratch buffer it needs is
// preallocated here at construction time, sized to chunkFrames, and
// reused across calls. Feeding Process a chunk larger than chunkFrames
// is supported for correctness but falls off the preallocated fast
// path and allocates; callers on the audio thread must keep feeding
// the configured chunk size.
type Resampler struct {
	fromRate int
	toRate   int
	ratio    float64 // toRate / fromRate
	passthru bool

	filter []float32

	// Per-channel state (left=0, right=1).
	history [2][]float32
	last    [2]float32
	primed  bool

	chunkFrames int

	// Scratch buffers reused across Process calls, sized for
	// chunkFrames and its corresponding output length. deinterleaveIn
	// holds the per-channel input, channelOut the per-channel output,
	// combinedBuf the history+input working buffer downsample reads
	// from, and outFrames the final interleaved result Process returns.
	deinterleaveIn [2][]float32
	channelOut     [2][]float32
	combinedBuf    [2][]float32
	outFrames      []Frame
}

// New builds a resampler from fromRate to toRate. chunkFrames sizes the
// preallocated scratch buffers Process reuses on every call; callers
// must keep feeding chunks of this size for Process to stay
// allocation-free. If fromRate == toRate, the returned Resampler is a
// pass-through that still honors the chunk boundary (returns its input
// unmodified).
func New(fromRate, toRate, chunkFrames int) *Resampler {
	r := &Resampler{
		fromRate:    fromRate,
		toRate:      toRate,
		ratio:       float64(toRate) / float64(fromRate),
		chunkFrames: chunkFrames,
	}
	if fromRate == toRate {
		r.passthru = true
		return r
	}

	r.filter = designLowpass(r.ratio, filterTaps)
	r.history[0] = make([]float32, filterTaps)
	r.history[1] = make([]float32, filterTaps)

	maxOut := int(float64(chunkFrames)*r.ratio) + 1
	if maxOut < chunkFrames {
		maxOut = chunkFrames
	}
	for ch := 0; ch < 2; ch++ {
		r.deinterleaveIn[ch] = make([]float32, chunkFrames)
		r.channelOut[ch] = make([]float32, maxOut)
		r.combinedBuf[ch] = make([]float32, 0, filterTaps+chunkFrames)
	}
	r.outFrames = make([]Frame, maxOut)
	return r
}

// growFloat32 returns buf resized to length n, reusing its backing
// array when it already has enough capacity and only allocating when
// it does not (a chunk larger than configured).
func growFloat32(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

// designLowpass builds a windowed-sinc low-pass FIR filter. For
// downsampling, the cutoff sits at the output Nyquist frequency to
// prevent aliasing; for upsampling the cutoff is Nyquist of the
// (lower) input rate.
func designLowpass(ratio float64, taps int) []float32 {
	cutoff := 0.5
	if ratio < 1.0 {
		cutoff = ratio * 0.5
	}

	filter := make([]float32, taps)
	for i := 0; i < taps; i++ {
		n := float64(i) - float64(taps-1)/2.0
		if n == 0 {
			filter[i] = float32(2.0 * cutoff)
		} else {
			sinc := math.Sin(2.0*math.Pi*cutoff*n) / (math.Pi * n)
			window := 0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/float64(taps-1))
			filter[i] = float32(sinc * window)
		}
	}

	var sum float32
	for _, f := range filter {
		sum += f
	}
	if sum != 0 {
		for i := range filter {
			filter[i] /= sum
		}
	}
	return filter
}

// Frame is one stereo sample pair.
type Frame struct {
	L, R float32
}

// Process converts a slice of input stereo frames to output frames at
// the target rate. Every call emits int(len(in)*ratio) frames; the
// first call after construction or Reset filters against zeroed
// history, so its early output ramps in while the history primes. The
// returned slice aliases this Resampler's internal
// scratch buffer and is only valid until the next Process call.
func (r *Resampler) Process(in []Frame) []Frame {
	if r.passthru || len(in) == 0 {
		return in
	}
	n := len(in)

	r.deinterleaveIn[0] = growFloat32(r.deinterleaveIn[0], n)
	r.deinterleaveIn[1] = growFloat32(r.deinterleaveIn[1], n)
	left, right := r.deinterleaveIn[0], r.deinterleaveIn[1]
	for i, f := range in {
		left[i] = f.L
		right[i] = f.R
	}

	outL := r.processChannel(0, left)
	outR := r.processChannel(1, right)

	r.outFrames = growFrames(r.outFrames, len(outL))
	for i := range outL {
		r.outFrames[i] = Frame{L: outL[i], R: outR[i]}
	}
	r.primed = true
	return r.outFrames
}

// growFrames returns buf resized to length n, reusing its backing
// array when it already has enough capacity.
func growFrames(buf []Frame, n int) []Frame {
	if cap(buf) < n {
		return make([]Frame, n)
	}
	return buf[:n]
}

func (r *Resampler) processChannel(ch int, input []float32) []float32 {
	if r.ratio > 1.0 {
		return r.upsample(ch, input)
	}
	return r.downsample(ch, input)
}

// upsample uses linear interpolation between input samples; the
// anti-aliasing filter is unnecessary since no new high-frequency
// content above the input Nyquist is introduced.
func (r *Resampler) upsample(ch int, input []float32) []float32 {
	inputLen := len(input)
	outputLen := int(float64(inputLen) * r.ratio)
	r.channelOut[ch] = growFloat32(r.channelOut[ch], outputLen)
	output := r.channelOut[ch]

	last := r.last[ch]
	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		sample1 := last
		if srcIdx < inputLen {
			sample1 = input[srcIdx]
		}
		sample2 := sample1
		if srcIdx+1 < inputLen {
			sample2 = input[srcIdx+1]
		} else if srcIdx < inputLen {
			sample2 = input[inputLen-1]
		}
		output[i] = sample1 + (sample2-sample1)*frac
	}
	if inputLen > 0 {
		r.last[ch] = input[inputLen-1]
	}
	return output
}

// downsample runs the windowed-sinc FIR filter to band-limit the signal
// before decimating, preventing aliasing.
func (r *Resampler) downsample(ch int, input []float32) []float32 {
	inputLen := len(input)
	outputLen := int(float64(inputLen) * r.ratio)
	r.channelOut[ch] = growFloat32(r.channelOut[ch], outputLen)
	output := r.channelOut[ch]

	history := r.history[ch]
	combined := r.combinedBuf[ch][:0]
	combined = append(combined, history...)
	combined = append(combined, input...)
	r.combinedBuf[ch] = combined

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		// Centre the filter filterTaps/2 samples back so its window
		// stays inside history+input and never reads past the chunk.
		srcIdx := int(srcPos) + len(history) - filterTaps/2

		var sample float32
		for j := 0; j < filterTaps; j++ {
			idx := srcIdx - filterTaps/2 + j
			if idx >= 0 && idx < len(combined) {
				sample += combined[idx] * r.filter[j]
			}
		}
		output[i] = sample
	}

	if inputLen >= filterTaps {
		copy(history, input[inputLen-filterTaps:])
	} else {
		shift := filterTaps - inputLen
		copy(history, history[inputLen:])
		copy(history[shift:], input)
	}

	return output
}

// Reset clears all internal filter/interpolation state, used when the
// pipeline restarts so stale history from a previous epoch never
// bleeds into new audio.
func (r *Resampler) Reset() {
	r.primed = false
	r.last[0], r.last[1] = 0, 0
	for ch := range r.history {
		for i := range r.history[ch] {
			r.history[ch][i] = 0
		}
	}
}

// Primed reports whether at least one Process call has completed,
// i.e. whether filter history has been populated from real audio.
func (r *Resampler) Primed() bool {
	return r.passthru || r.primed
}
