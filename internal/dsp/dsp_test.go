package dsp

import "testing"

func TestFlatEQUnityGainZeroDelayIsBitIdentity(t *testing.T) {
	c := NewChannel(48000)
	// Defaults: flat EQ, gain 1.0, delay 0, unmuted -> but the mute ramp
	// starts at 1.0 already so no ramp-in artifact.
	in := []float32{0.1, -0.2, 0.3, 0.0, 1.0, -1.0}
	for _, x := range in {
		got := c.Process(x)
		if got != x {
			t.Fatalf("Process(%v) = %v, want bit-identity %v", x, got, x)
		}
	}
}

func TestMuteRampMonotonicallyReachesZero(t *testing.T) {
	const sampleRate = 48000
	c := NewChannel(sampleRate)
	c.SetMuted(true)

	prev := float32(1.0)
	sawZero := false
	// 10ms ramp plus slack.
	samples := sampleRate/100 + 10
	for i := 0; i < samples; i++ {
		got := c.Process(1.0) // constant input isolates the ramp's effect
		if got > prev+1e-6 {
			t.Fatalf("sample %d: magnitude increased (%v -> %v) during mute ramp", i, prev, got)
		}
		prev = got
		if got == 0 {
			sawZero = true
		}
	}
	if !sawZero {
		t.Fatal("mute ramp never reached zero")
	}
	// Stays at zero afterward.
	for i := 0; i < 100; i++ {
		if got := c.Process(1.0); got != 0 {
			t.Fatalf("sample after ramp complete = %v, want 0", got)
		}
	}
}

func TestUnmuteRampsBackToOne(t *testing.T) {
	const sampleRate = 48000
	c := NewChannel(sampleRate)
	c.SetMuted(true)
	for i := 0; i < sampleRate; i++ {
		c.Process(1.0)
	}
	c.SetMuted(false)

	var last float32
	for i := 0; i < sampleRate/100+10; i++ {
		last = c.Process(1.0)
	}
	if last < 0.999 {
		t.Fatalf("after unmute ramp, output = %v, want ~1.0", last)
	}
}

func TestDesignBiquadPeakingFlatAtZeroGain(t *testing.T) {
	coeffs := DesignBiquad(Peaking, 1000, 0, 1.0, 48000)
	f := Biquad{}
	in := []float32{0.5, -0.3, 0.2, 0.9}
	for _, x := range in {
		got := f.Process(coeffs, x)
		if diff := got - x; diff > 1e-4 || diff < -1e-4 {
			t.Fatalf("0 dB peaking filter altered sample: got %v, want ~%v", got, x)
		}
	}
}

func TestDelayLineShiftsSamplesByRequestedFrames(t *testing.T) {
	const sampleRate = 1000 // 1 frame == 1ms, easy to reason about
	d := NewDelayLine(sampleRate)
	d.SetDelayFrames(5)

	impulse := make([]float32, 20)
	impulse[0] = 1.0

	var out []float32
	for _, x := range impulse {
		out = append(out, d.Process(x))
	}

	for i, v := range out {
		if i == 5 {
			if v != 1.0 {
				t.Fatalf("out[5] = %v, want 1.0 (impulse delayed by 5 frames)", v)
			}
		} else if v != 0 {
			t.Fatalf("out[%d] = %v, want 0", i, v)
		}
	}
}

func TestUpmixBlendsFrontIntoRear(t *testing.T) {
	l, r := Upmix(0, 0, 1.0, 1.0, 1.0)
	if l != 0.5 || r != 0.5 {
		t.Fatalf("Upmix() = (%v, %v), want (0.5, 0.5)", l, r)
	}

	l, r = Upmix(0.2, 0.3, 1.0, 1.0, 0)
	if l != 0.2 || r != 0.3 {
		t.Fatalf("Upmix() with amount=0 = (%v, %v), want unchanged rear", l, r)
	}
}

func TestBalancePanLaw(t *testing.T) {
	l, r := Balance(1.0, 1.0, 0)
	if l != 1.0 || r != 1.0 {
		t.Fatalf("Balance(0) = (%v, %v), want (1, 1)", l, r)
	}

	l, r = Balance(1.0, 1.0, 1.0) // full right
	if l != 0.0 || r != 1.0 {
		t.Fatalf("Balance(1.0) = (%v, %v), want (0, 1)", l, r)
	}

	l, r = Balance(1.0, 1.0, -1.0) // full left
	if l != 1.0 || r != 0.0 {
		t.Fatalf("Balance(-1.0) = (%v, %v), want (1, 0)", l, r)
	}
}

func TestChannelResetClearsHistoryNotConfig(t *testing.T) {
	c := NewChannel(48000)
	c.SetGain(1.5)
	c.SetMuted(true)
	c.SetDelayMs(10)
	c.Process(1.0)

	c.Reset()

	if c.Gain() != 1.5 {
		t.Fatalf("Gain() after Reset = %v, want 1.5 (config persists)", c.Gain())
	}
	if !c.Muted() {
		t.Fatal("Muted() after Reset = false, want true (config persists)")
	}
}
