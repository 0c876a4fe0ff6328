// Package engine implements the routing engine: the supervisor that
// owns the capture/playback streams, the ring buffer, and the DSP
// chain, and that exposes rearfeed's control surface.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"

	"github.com/agalue/rearfeed/internal/config"
	"github.com/agalue/rearfeed/internal/device"
	"github.com/agalue/rearfeed/internal/dsp"
	"github.com/agalue/rearfeed/internal/engineerr"
	"github.com/agalue/rearfeed/internal/ring"
	"github.com/agalue/rearfeed/internal/tone"
	"github.com/agalue/rearfeed/internal/winaudio"
)

// periodFrames is the fixed device period rearfeed negotiates, a
// low-latency 10ms chunk appropriate for a routing pipeline.
const periodFrames = 480

// startupTimeout bounds device negotiation on enable.
const startupTimeout = 2 * time.Second

// shutdownTimeout bounds the wait for audio threads to drain on disable.
const shutdownTimeout = 500 * time.Millisecond

// retryDelay is how long a transient device-open failure waits before
// the single retry attempt.
const retryDelay = 250 * time.Millisecond

// consecutiveErrorLimit and errorWindow define the failure threshold:
// this many consecutive callback errors within errorWindow transitions
// the pipeline to Faulted.
const consecutiveErrorLimit = 10

const errorWindow = time.Second

// captureStream and playbackStream are the minimal surfaces Engine
// depends on, letting tests substitute fakes instead of opening real
// WASAPI devices.
type captureStream interface {
	Start() error
	Stop()
}

type playbackStream interface {
	Start() error
	Stop()
}

// Engine owns the routing pipeline and implements its state machine:
// capture and playback streams, the shared ring buffer, and the
// lifecycle transitions between them.
type Engine struct {
	ctx        *malgo.AllocatedContext
	enumerator *device.Enumerator
	logger     *log.Logger

	newCapture  func(ctx *malgo.AllocatedContext, handle device.Handle, left, right config.ChannelSource, buf *ring.Buffer, params winaudio.CaptureParams, events winaudio.CaptureEvents) (captureStream, error)
	newPlayback func(ctx *malgo.AllocatedContext, handle device.Handle, sourceRate int, buf *ring.Buffer, left, right *dsp.Channel, params winaudio.PlaybackParams, events winaudio.PlaybackEvents) (playbackStream, error)
	resolver    func() (source, target device.Handle, err error)

	mu           sync.Mutex
	state        PipelineState
	cfg          config.Config
	sourceHandle device.Handle
	targetHandle device.Handle
	lastErr      error

	leftChannel  *dsp.Channel
	rightChannel *dsp.Channel
	ringBuf      *ring.Buffer
	capture      captureStream
	playback     playbackStream

	masterVolume atomic.Uint32 // float32 bits
	balance      atomic.Uint32 // float32 bits
	swapChannels atomic.Bool
	upmixAmount  atomic.Uint32 // float32 bits

	activeTone atomic.Pointer[toneState]

	underflowCount atomic.Uint64
	overflowEvents atomic.Uint64
	errCount       atomic.Uint64

	consecutiveErrors atomic.Int64
	windowStart       atomic.Int64 // unix nanoseconds

	faultSignal   chan error
	removedSignal chan deviceRemoval
}

// deviceRemoval identifies which endpoint a removal/stop notification
// fired for, so the recovery path knows which config field to clear
// before falling back to the default endpoint.
type deviceRemoval struct {
	source bool
}

// New builds an Engine from an initial configuration. The engine takes
// ownership of the malgo context ctx: Close uninitializes and frees it,
// so callers should call Close when done.
func New(ctx *malgo.AllocatedContext, cfg *config.Config, logger *log.Logger) *Engine {
	e := &Engine{
		ctx:           ctx,
		enumerator:    device.New(ctx),
		logger:        logger,
		state:         Stopped,
		cfg:           *cfg,
		faultSignal:   make(chan error, 1),
		removedSignal: make(chan deviceRemoval, 2),
	}
	e.newCapture = e.realNewCapture
	e.newPlayback = e.realNewPlayback
	e.resolver = e.resolveDevicesLocked

	go e.watchFaults()
	go e.watchRemovals()

	e.masterVolume.Store(math.Float32bits(float32(cfg.Global.Volume)))
	e.balance.Store(math.Float32bits(float32(cfg.Global.Balance)))
	e.swapChannels.Store(cfg.Global.SwapChannels)
	e.upmixAmount.Store(math.Float32bits(float32(cfg.Global.UpmixAmount)))

	e.leftChannel = dsp.NewChannel(48000)
	e.rightChannel = dsp.NewChannel(48000)
	applyChannelConfig(e.leftChannel, cfg.Left)
	applyChannelConfig(e.rightChannel, cfg.Right)

	return e
}

func applyChannelConfig(ch *dsp.Channel, cc config.ChannelConfig) {
	ch.SetGain(float32(cc.Volume))
	ch.SetMuted(cc.Muted)
	ch.SetDelayMs(cc.DelayMs)
	ch.SetCoeffs(coeffBlockFor(cc.EQ, ch.SampleRate()))
}

func coeffBlockFor(eq config.EQ, sampleRate int) *dsp.CoeffBlock {
	return &dsp.CoeffBlock{
		Low:  dsp.DesignBiquad(dsp.LowShelf, eq.Low.FrequencyHz, eq.Low.GainDB, eq.Low.Q, sampleRate),
		Mid:  dsp.DesignBiquad(dsp.Peaking, eq.Mid.FrequencyHz, eq.Mid.GainDB, eq.Mid.Q, sampleRate),
		High: dsp.DesignBiquad(dsp.HighShelf, eq.High.FrequencyHz, eq.High.GainDB, eq.High.Q, sampleRate),
	}
}

func (e *Engine) realNewCapture(ctx *malgo.AllocatedContext, handle device.Handle, left, right config.ChannelSource, buf *ring.Buffer, params winaudio.CaptureParams, events winaudio.CaptureEvents) (captureStream, error) {
	return winaudio.NewCapture(ctx, handle, left, right, periodFrames, buf, params, events)
}

func (e *Engine) realNewPlayback(ctx *malgo.AllocatedContext, handle device.Handle, sourceRate int, buf *ring.Buffer, left, right *dsp.Channel, params winaudio.PlaybackParams, events winaudio.PlaybackEvents) (playbackStream, error) {
	return winaudio.NewPlayback(ctx, handle, sourceRate, periodFrames, buf, left, right, params, events)
}

func (e *Engine) droppedCount() uint64 {
	if e.ringBuf == nil {
		return 0
	}
	return e.ringBuf.Dropped()
}

// State returns the current pipeline state.
func (e *Engine) State() PipelineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Enable transitions Stopped -> Starting -> Running.
// Re-enabling an already-running pipeline is a no-op.
func (e *Engine) Enable() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Running || e.state == Starting {
		return nil
	}
	return e.startLocked()
}

func (e *Engine) startLocked() error {
	e.state = Starting

	source, target, err := e.resolver()
	if err != nil {
		return e.faultLocked(err)
	}
	e.sourceHandle = source
	e.targetHandle = target

	ringBuf := ring.New(ring.CapacityFor(periodFrames, 2))
	e.ringBuf = ringBuf

	applyChannelConfig(e.leftChannel, e.cfg.Left)
	applyChannelConfig(e.rightChannel, e.cfg.Right)
	e.leftChannel.Reset()
	e.rightChannel.Reset()

	captureParams := winaudio.CaptureParams{
		UpmixAmount:  e.readUpmixAmount,
		SwapChannels: e.swapChannels.Load,
		TestTone:     e.testToneHook(),
	}
	captureEvents := winaudio.CaptureEvents{
		OnOverflow:      e.onOverflow,
		OnError:         e.onCallbackError,
		OnDeviceRemoved: func() { e.onDeviceRemoved(true) },
	}
	playParams := winaudio.PlaybackParams{
		MasterVolume: e.readMasterVolume,
		Balance:      e.readBalance,
	}
	playEvents := winaudio.PlaybackEvents{
		OnUnderflow:     e.onUnderflow,
		OnDeviceRemoved: func() { e.onDeviceRemoved(false) },
	}

	type opened struct {
		cap  captureStream
		play playbackStream
	}

	result := make(chan error, 1)
	var started opened
	go func() {
		cap, play, err := e.attemptOpen(source, target, ringBuf, captureParams, captureEvents, playParams, playEvents)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("device open failed, retrying", "err", err)
			}
			time.Sleep(retryDelay)
			cap, play, err = e.attemptOpen(source, target, ringBuf, captureParams, captureEvents, playParams, playEvents)
		}
		if err != nil {
			result <- err
			return
		}
		started = opened{cap: cap, play: play}
		result <- nil
	}()

	select {
	case err := <-result:
		if err != nil {
			return e.faultLocked(err)
		}
		e.capture = started.cap
		e.playback = started.play
	case <-time.After(startupTimeout):
		return e.faultLocked(fmt.Errorf("device negotiation: %w", context.DeadlineExceeded))
	}

	e.state = Running
	e.consecutiveErrors.Store(0)
	if e.logger != nil {
		e.logger.Info("pipeline running", "source", e.sourceHandle.Name, "target", e.targetHandle.Name)
	}
	return nil
}

// attemptOpen opens and starts the capture and playback streams for one
// device-negotiation attempt, tearing down whatever it managed to open
// if a later step in the sequence fails.
func (e *Engine) attemptOpen(
	source, target device.Handle,
	ringBuf *ring.Buffer,
	captureParams winaudio.CaptureParams,
	captureEvents winaudio.CaptureEvents,
	playParams winaudio.PlaybackParams,
	playEvents winaudio.PlaybackEvents,
) (captureStream, playbackStream, error) {
	cap, err := e.newCapture(e.ctx, source, e.cfg.Left.Source, e.cfg.Right.Source, ringBuf, captureParams, captureEvents)
	if err != nil {
		return nil, nil, fmt.Errorf("open loopback capture: %w", engineerr.ClassifyDeviceOpen(err))
	}
	play, err := e.newPlayback(e.ctx, target, int(source.Mix.SampleRate), ringBuf, e.leftChannel, e.rightChannel, playParams, playEvents)
	if err != nil {
		cap.Stop()
		return nil, nil, fmt.Errorf("open render stream: %w", engineerr.ClassifyDeviceOpen(err))
	}
	if err := cap.Start(); err != nil {
		play.Stop()
		cap.Stop()
		return nil, nil, fmt.Errorf("start capture: %w", engineerr.ClassifyDeviceOpen(err))
	}
	if err := play.Start(); err != nil {
		cap.Stop()
		play.Stop()
		return nil, nil, fmt.Errorf("start playback: %w", engineerr.ClassifyDeviceOpen(err))
	}
	return cap, play, nil
}

func (e *Engine) resolveDevicesLocked() (source, target device.Handle, err error) {
	if e.cfg.SourceDevice == "" {
		source, err = e.enumerator.DefaultRenderEndpoint()
	} else {
		source, err = e.enumerator.ResolveByName(e.cfg.SourceDevice)
	}
	if err != nil {
		return device.Handle{}, device.Handle{}, engineerr.NotFound(e.cfg.SourceDevice)
	}

	if e.cfg.TargetDevice == "" {
		target, err = e.enumerator.DefaultRenderEndpoint()
	} else {
		target, err = e.enumerator.ResolveByName(e.cfg.TargetDevice)
	}
	if err != nil {
		return device.Handle{}, device.Handle{}, engineerr.NotFound(e.cfg.TargetDevice)
	}
	return source, target, nil
}

func (e *Engine) faultLocked(err error) error {
	e.state = Faulted
	e.lastErr = err
	if e.logger != nil {
		e.logger.Error("pipeline faulted", "err", err)
	}
	e.teardownLocked()
	return err
}

func (e *Engine) teardownLocked() {
	if e.playback != nil {
		e.playback.Stop()
		e.playback = nil
	}
	if e.capture != nil {
		e.capture.Stop()
		e.capture = nil
	}
	e.ringBuf = nil
}

// Disable tears down the pipeline, waiting up to shutdownTimeout for
// the audio threads to drain before force-closing.
func (e *Engine) Disable() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Stopped {
		return nil
	}

	done := make(chan struct{})
	go func() {
		e.teardownLocked()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		if e.logger != nil {
			e.logger.Warn("shutdown timeout, forcing close")
		}
	}

	e.state = Stopped
	return nil
}

// reconfigureLocked tears down and restarts the pipeline, used for
// changes that affect device identity or channel extraction (device
// change, channel-source change).
func (e *Engine) reconfigureLocked() error {
	if e.state != Running {
		return nil
	}
	e.state = Reconfiguring
	e.teardownLocked()
	return e.startLocked()
}

// Close releases the engine's malgo context. Callers must Disable
// first if the pipeline is running.
func (e *Engine) Close() {
	if e.ctx != nil {
		_ = e.ctx.Uninit()
		e.ctx.Free()
		e.ctx = nil
	}
	if e.faultSignal != nil {
		close(e.faultSignal)
		e.faultSignal = nil
	}
	if e.removedSignal != nil {
		close(e.removedSignal)
		e.removedSignal = nil
	}
}

func (e *Engine) readMasterVolume() float32 {
	return math.Float32frombits(e.masterVolume.Load())
}

func (e *Engine) readBalance() float32 {
	return math.Float32frombits(e.balance.Load())
}

func (e *Engine) readUpmixAmount() float32 {
	return math.Float32frombits(e.upmixAmount.Load())
}

func (e *Engine) onOverflow(dropped uint64) {
	if e.overflowEvents.Add(1)%100 == 0 && e.logger != nil {
		e.logger.Warn("ring buffer overflow", "dropped", dropped)
	}
}

func (e *Engine) onUnderflow(count uint64) {
	e.underflowCount.Store(count)
	if count%100 == 0 && e.logger != nil {
		e.logger.Warn("playback underflow", "count", count)
	}
}

// onDeviceRemoved is invoked by an audio thread when its stream stops
// on its own (the endpoint was unplugged or disabled). It must never
// block, so the recovery is handed off to watchRemovals over a
// buffered, non-blocking channel send, same as onCallbackError does for
// faults.
func (e *Engine) onDeviceRemoved(source bool) {
	select {
	case e.removedSignal <- deviceRemoval{source: source}:
	default:
	}
}

// watchRemovals runs for the engine's lifetime, turning device-removal
// signals raised from audio callbacks into a reconfiguration that falls
// back to the default endpoint for the affected side. If that fallback
// also fails to open, reconfigureLocked/startLocked already transitions
// the pipeline to Faulted. It is the only reader of removedSignal.
func (e *Engine) watchRemovals() {
	for ev := range e.removedSignal {
		e.mu.Lock()
		if e.state == Running {
			if ev.source {
				e.cfg.SourceDevice = ""
			} else {
				e.cfg.TargetDevice = ""
			}
			if e.logger != nil {
				e.logger.Warn("device removed, falling back to default endpoint",
					"err", engineerr.ErrDeviceRemoved, "source", ev.source)
			}
			e.reconfigureLocked()
		}
		e.mu.Unlock()
	}
}

// onCallbackError is invoked by audio threads on a recoverable error.
// consecutiveErrorLimit consecutive errors within errorWindow transition
// the pipeline to Faulted. It must never block: the threshold breach is
// handed off to watchFaults over a buffered, non-blocking channel send
// so the audio thread never contends on e.mu.
func (e *Engine) onCallbackError(err error) {
	e.errCount.Add(1)
	now := time.Now().UnixNano()
	start := e.windowStart.Load()
	if start == 0 || time.Duration(now-start) > errorWindow {
		e.windowStart.Store(now)
		e.consecutiveErrors.Store(1)
		return
	}
	if e.consecutiveErrors.Add(1) >= consecutiveErrorLimit {
		select {
		case e.faultSignal <- fmt.Errorf("too many consecutive callback errors: %w", err):
		default:
		}
	}
}

// watchFaults runs for the engine's lifetime, turning fault signals
// raised from audio callbacks into a properly locked state transition.
// It is the only reader of faultSignal.
func (e *Engine) watchFaults() {
	for err := range e.faultSignal {
		e.mu.Lock()
		if e.state == Running || e.state == Starting || e.state == Reconfiguring {
			e.faultLocked(err)
		}
		e.mu.Unlock()
	}
}

// SetSourceDevice changes the loopback capture endpoint. If the
// pipeline is running, this triggers a reconfiguration.
func (e *Engine) SetSourceDevice(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.SourceDevice = name
	return e.reconfigureLocked()
}

// SetTargetDevice changes the render endpoint. If the pipeline is
// running, this triggers a reconfiguration.
func (e *Engine) SetTargetDevice(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.TargetDevice = name
	return e.reconfigureLocked()
}

// SetMasterVolume updates the master volume, absorbed by an atomic
// swap with no pipeline restart.
func (e *Engine) SetMasterVolume(v float64) {
	e.cfg.Global.Volume = clampF(v, 0, 2)
	e.masterVolume.Store(math.Float32bits(float32(e.cfg.Global.Volume)))
}

// SetBalance updates the master balance, absorbed by an atomic swap.
func (e *Engine) SetBalance(v float64) {
	e.cfg.Global.Balance = clampF(v, -1, 1)
	e.balance.Store(math.Float32bits(float32(e.cfg.Global.Balance)))
}

// SetSwap toggles left/right swap at push time, absorbed by an atomic
// swap.
func (e *Engine) SetSwap(swap bool) {
	e.cfg.Global.SwapChannels = swap
	e.swapChannels.Store(swap)
}

// SetUpmixAmount updates the front-to-rear blend fraction, absorbed by
// an atomic swap.
func (e *Engine) SetUpmixAmount(v float64) {
	e.cfg.Global.UpmixAmount = clampF(v, 0, 1)
	e.upmixAmount.Store(math.Float32bits(float32(e.cfg.Global.UpmixAmount)))
}

// SetChannel updates one output side's configuration. A source change
// affects extraction and triggers a reconfiguration; everything else
// (volume, mute, EQ, delay) is absorbed by atomic swaps on the
// channel's DSP state.
func (e *Engine) SetChannel(side Side, cc config.ChannelConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ch *dsp.Channel
	sourceChanged := false
	switch side {
	case SideLeft:
		sourceChanged = e.cfg.Left.Source != cc.Source
		e.cfg.Left = cc
		ch = e.leftChannel
	case SideRight:
		sourceChanged = e.cfg.Right.Source != cc.Source
		e.cfg.Right = cc
		ch = e.rightChannel
	default:
		return fmt.Errorf("set channel: side must be SideLeft or SideRight")
	}

	applyChannelConfig(ch, cc)

	if sourceChanged {
		return e.reconfigureLocked()
	}
	return nil
}

// PlayTestTone synthesizes a sine tone into the given side for
// durationMs, riding through the real extraction/DSP/output path so it
// exercises the same signal chain a captured frame would.
func (e *Engine) PlayTestTone(side Side, freqHz float64, durationMs int) error {
	e.mu.Lock()
	sourceRate := int(e.sourceHandle.Mix.SampleRate)
	running := e.state == Running
	e.mu.Unlock()

	if !running {
		return fmt.Errorf("play test tone: pipeline not running")
	}
	if sourceRate == 0 {
		sourceRate = 48000
	}

	gen := tone.New(sourceRate, freqHz)
	ts := &toneState{side: side, gen: gen, remaining: int64(gen.DurationFrames(durationMs))}
	e.activeTone.Store(ts)
	return nil
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
