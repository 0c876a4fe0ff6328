// Package winaudio implements the capture and playback audio threads
// against WASAPI via malgo callback contracts.
package winaudio

import (
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/agalue/rearfeed/internal/config"
	"github.com/agalue/rearfeed/internal/device"
	"github.com/agalue/rearfeed/internal/ring"
)

// CaptureParams are the lock-free knobs the control thread publishes
// and the capture callback reads every period.
type CaptureParams struct {
	UpmixAmount  func() float32
	SwapChannels func() bool
	// TestTone, if non-nil, is called once per captured frame and
	// returns an additive (left, right) sample pair, letting a
	// synthesized test tone ride through the same extraction, push,
	// resample, and DSP path a real captured frame would.
	TestTone func() (left, right float32)
}

// CaptureEvents reports countable conditions back to the control
// thread without blocking the audio callback.
type CaptureEvents struct {
	OnOverflow func(dropped uint64)
	OnError    func(err error)
	// OnDeviceRemoved is called when the underlying stream stops on its
	// own, e.g. because the WASAPI endpoint was unplugged or disabled.
	// Never called for a deliberate Stop().
	OnDeviceRemoved func()
}

// Capture owns a WASAPI loopback stream against one render endpoint,
// extracting the configured left/right channel sources into a stereo
// ring buffer.
type Capture struct {
	device    *malgo.Device
	extractor *extractor
	ring      *ring.Buffer
	params    CaptureParams
	events    CaptureEvents
	format    device.SampleFormat
	channels  int

	rawBuf      []float32
	stereoBuf   []float32
	errCount    int
	lastDropped uint64
	stopping    atomic.Bool
}

// NewCapture opens a loopback capture stream against handle using
// ctx's shared malgo context. leftSrc/rightSrc select the channel (or
// blend) each output side draws from; the channel count, sample format
// and sample rate come from handle's negotiated mix format.
func NewCapture(
	ctx *malgo.AllocatedContext,
	handle device.Handle,
	leftSrc, rightSrc config.ChannelSource,
	periodFrames int,
	buf *ring.Buffer,
	params CaptureParams,
	events CaptureEvents,
) (*Capture, error) {
	ex, err := newExtractor(int(handle.Mix.Channels), leftSrc, rightSrc)
	if err != nil {
		return nil, err
	}

	c := &Capture{
		extractor: ex,
		ring:      buf,
		params:    params,
		events:    events,
		format:    handle.Mix.Format,
		channels:  int(handle.Mix.Channels),
		stereoBuf: make([]float32, periodFrames*2),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = sampleFormatToMalgo(handle.Mix.Format)
	deviceConfig.Capture.Channels = handle.Mix.Channels
	deviceConfig.Capture.DeviceID = handle.ID().Pointer()
	deviceConfig.SampleRate = handle.Mix.SampleRate
	deviceConfig.PeriodSizeInFrames = uint32(periodFrames)

	callbacks := malgo.DeviceCallbacks{
		Data: c.onData,
		Stop: c.onStop,
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init loopback capture device: %w", err)
	}
	c.device = dev
	return c, nil
}

// onStop fires when the stream stops, whether from a deliberate Stop()
// or the backend tearing the endpoint down (device removed/disabled).
// Only the latter is reported upstream.
func (c *Capture) onStop() {
	if c.stopping.Load() {
		return
	}
	if c.events.OnDeviceRemoved != nil {
		c.events.OnDeviceRemoved()
	}
}

// onData is the capture callback: no allocation beyond the
// pre-sized scratch buffers, no blocking I/O, no contended locks.
func (c *Capture) onData(_ []byte, in []byte, frameCount uint32) {
	c.rawBuf = bytesToFloat32(in, c.format, c.rawBuf)

	n := int(frameCount)
	if cap(c.stereoBuf) < n*2 {
		c.stereoBuf = make([]float32, n*2)
	}
	stereo := c.stereoBuf[:n*2]

	amount := c.params.UpmixAmount()
	swap := c.params.SwapChannels()

	for i := 0; i < n; i++ {
		frame := c.rawBuf[i*c.channels : (i+1)*c.channels]
		l := c.extractor.Left(frame)
		r := c.extractor.Right(frame)

		if amount != 0 && c.extractor.HasRearPair() {
			fl, fr := c.extractor.Front(frame)
			l += amount * fl * 0.5
			r += amount * fr * 0.5
		}

		if c.params.TestTone != nil {
			tl, tr := c.params.TestTone()
			l += tl
			r += tr
		}

		if swap {
			l, r = r, l
		}

		stereo[i*2] = l
		stereo[i*2+1] = r
	}

	c.ring.Push(stereo)
	if dropped := c.ring.Dropped(); dropped != c.lastDropped {
		c.lastDropped = dropped
		if c.events.OnOverflow != nil {
			c.events.OnOverflow(dropped)
		}
	}
}

// Start begins capture.
func (c *Capture) Start() error {
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("start loopback capture: %w", err)
	}
	return nil
}

// Stop halts and releases the capture device.
func (c *Capture) Stop() {
	if c.device == nil {
		return
	}
	c.stopping.Store(true)
	_ = c.device.Stop()
	c.device.Uninit()
	c.device = nil
}

func sampleFormatToMalgo(f device.SampleFormat) malgo.FormatType {
	switch f {
	case device.FormatF32:
		return malgo.FormatF32
	case device.FormatS16:
		return malgo.FormatS16
	case device.FormatS24:
		return malgo.FormatS24
	case device.FormatS32:
		return malgo.FormatS32
	default:
		return malgo.FormatF32
	}
}
