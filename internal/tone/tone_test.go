package tone

import "testing"

func TestNextStaysInUnitRange(t *testing.T) {
	g := New(48000, 1000)
	for i := 0; i < 48000; i++ {
		s := g.Next()
		if s < -1.00001 || s > 1.00001 {
			t.Fatalf("sample %d out of range: %v", i, s)
		}
	}
}

func TestFillPopulatesEveryElement(t *testing.T) {
	g := New(48000, 440)
	out := make([]float32, 128)
	g.Fill(out)
	allZero := true
	for _, s := range out {
		if s != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Fatal("Fill produced an all-zero buffer for a nonzero-frequency tone")
	}
}

func TestDurationFramesConvertsMillisecondsAtRate(t *testing.T) {
	g := New(48000, 440)
	if got := g.DurationFrames(1000); got != 48000 {
		t.Errorf("DurationFrames(1000) = %d, want 48000", got)
	}
	if got := g.DurationFrames(500); got != 24000 {
		t.Errorf("DurationFrames(500) = %d, want 24000", got)
	}
}
