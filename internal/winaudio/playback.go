package winaudio

import (
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/agalue/rearfeed/internal/device"
	"github.com/agalue/rearfeed/internal/dsp"
	"github.com/agalue/rearfeed/internal/resample"
	"github.com/agalue/rearfeed/internal/ring"
)

// PlaybackParams are the lock-free knobs the playback callback reads
// every period.
type PlaybackParams struct {
	MasterVolume func() float32
	Balance      func() float32
}

// PlaybackEvents reports countable conditions back to the control
// thread without blocking the audio callback.
type PlaybackEvents struct {
	// OnUnderflow is called whenever the ring buffer could not supply a
	// full chunk, passing the cumulative underflow count.
	OnUnderflow func(count uint64)
	// OnDeviceRemoved is called when the underlying stream stops on its
	// own, e.g. because the WASAPI endpoint was unplugged or disabled.
	// Never called for a deliberate Stop().
	OnDeviceRemoved func()
}

// Playback owns a render stream against the target device, draining
// the ring buffer, resampling, and running the per-channel DSP chain
// before writing.
type Playback struct {
	device *malgo.Device
	ring   *ring.Buffer
	resamp *resample.Resampler
	left   *dsp.Channel
	right  *dsp.Channel
	params PlaybackParams
	events PlaybackEvents
	format device.SampleFormat

	chunkFrames    int
	popBuf         []float32
	frameBuf       []resample.Frame
	outQueue       []resample.Frame
	queueUsed      int
	floatOut       []float32
	underflowCount uint64
	stopping       atomic.Bool
}

// NewPlayback opens a render stream against handle. sourceRate is the
// ring buffer's stereo sample rate (the loopback capture rate);
// handle's mix format determines the target rate and native sample
// format.
func NewPlayback(
	ctx *malgo.AllocatedContext,
	handle device.Handle,
	sourceRate int,
	periodFrames int,
	buf *ring.Buffer,
	left, right *dsp.Channel,
	params PlaybackParams,
	events PlaybackEvents,
) (*Playback, error) {
	chunkFrames := periodFrames
	if chunkFrames <= 0 {
		chunkFrames = 480
	}

	p := &Playback{
		ring:        buf,
		resamp:      resample.New(sourceRate, int(handle.Mix.SampleRate), chunkFrames),
		left:        left,
		right:       right,
		params:      params,
		events:      events,
		format:      handle.Mix.Format,
		chunkFrames: chunkFrames,
		popBuf:      make([]float32, chunkFrames*2),
		frameBuf:    make([]resample.Frame, chunkFrames),
		outQueue:    make([]resample.Frame, 0, chunkFrames*8),
		floatOut:    make([]float32, periodFrames*2),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = sampleFormatToMalgo(handle.Mix.Format)
	deviceConfig.Playback.Channels = 2
	deviceConfig.Playback.DeviceID = handle.ID().Pointer()
	deviceConfig.SampleRate = handle.Mix.SampleRate
	deviceConfig.PeriodSizeInFrames = uint32(periodFrames)

	callbacks := malgo.DeviceCallbacks{
		Data: p.onData,
		Stop: p.onStop,
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init render device: %w", err)
	}
	p.device = dev
	return p, nil
}

// onStop fires when the stream stops, whether from a deliberate Stop()
// or the backend tearing the endpoint down (device removed/disabled).
// Only the latter is reported upstream.
func (p *Playback) onStop() {
	if p.stopping.Load() {
		return
	}
	if p.events.OnDeviceRemoved != nil {
		p.events.OnDeviceRemoved()
	}
}

// fill tops up the resampled output queue until it holds at least
// need frames, pulling and resampling one ring-buffer chunk at a time.
func (p *Playback) fill(need int) {
	for len(p.outQueue)-p.queueUsed < need {
		read := p.ring.Pop(p.popBuf)
		if read < len(p.popBuf) {
			p.underflowCount++
			if p.events.OnUnderflow != nil {
				p.events.OnUnderflow(p.underflowCount)
			}
		}
		for i := read / 2; i < p.chunkFrames; i++ {
			p.popBuf[i*2] = 0
			p.popBuf[i*2+1] = 0
		}

		for i := 0; i < p.chunkFrames; i++ {
			p.frameBuf[i] = resample.Frame{L: p.popBuf[i*2], R: p.popBuf[i*2+1]}
		}

		out := p.resamp.Process(p.frameBuf)

		if p.queueUsed > 0 {
			p.outQueue = append(p.outQueue[:0], p.outQueue[p.queueUsed:]...)
			p.queueUsed = 0
		}
		p.outQueue = append(p.outQueue, out...)
	}
}

// onData is the playback callback: underflow is filled with silence,
// never blocks.
func (p *Playback) onData(out []byte, _ []byte, frameCount uint32) {
	n := int(frameCount)
	p.fill(n)

	volume := p.params.MasterVolume()
	balance := p.params.Balance()

	if cap(p.floatOut) < n*2 {
		p.floatOut = make([]float32, n*2)
	}
	floatOut := p.floatOut[:n*2]

	for i := 0; i < n; i++ {
		frame := p.outQueue[p.queueUsed+i]
		l := p.left.Process(frame.L)
		r := p.right.Process(frame.R)
		l, r = dsp.Balance(l, r, balance)
		floatOut[i*2] = l * volume
		floatOut[i*2+1] = r * volume
	}
	p.queueUsed += n

	float32ToBytes(floatOut, p.format, out)
}

// Start begins playback.
func (p *Playback) Start() error {
	if err := p.device.Start(); err != nil {
		return fmt.Errorf("start render device: %w", err)
	}
	return nil
}

// Stop halts and releases the playback device.
func (p *Playback) Stop() {
	if p.device == nil {
		return
	}
	p.stopping.Store(true)
	_ = p.device.Stop()
	p.device.Uninit()
	p.device = nil
}
