package winaudio

import (
	"testing"

	"github.com/agalue/rearfeed/internal/device"
)

func approxEqual(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestRoundTripF32(t *testing.T) {
	src := []float32{0.0, 0.5, -0.5, 1.0, -1.0}
	buf := make([]byte, len(src)*4)
	float32ToBytes(src, device.FormatF32, buf)
	got := bytesToFloat32(buf, device.FormatF32, nil)
	for i := range src {
		if got[i] != src[i] {
			t.Fatalf("sample %d: got %v, want %v", i, got[i], src[i])
		}
	}
}

func TestRoundTripS16(t *testing.T) {
	src := []float32{0.0, 0.5, -0.5, 0.99}
	buf := make([]byte, len(src)*2)
	float32ToBytes(src, device.FormatS16, buf)
	got := bytesToFloat32(buf, device.FormatS16, nil)
	for i := range src {
		if !approxEqual(got[i], src[i], 1.0/32768.0*2) {
			t.Fatalf("sample %d: got %v, want ~%v", i, got[i], src[i])
		}
	}
}

func TestRoundTripS24(t *testing.T) {
	src := []float32{0.0, 0.5, -0.5}
	buf := make([]byte, len(src)*3)
	float32ToBytes(src, device.FormatS24, buf)
	got := bytesToFloat32(buf, device.FormatS24, nil)
	for i := range src {
		if !approxEqual(got[i], src[i], 1.0/8388608.0*2) {
			t.Fatalf("sample %d: got %v, want ~%v", i, got[i], src[i])
		}
	}
}

func TestRoundTripS32(t *testing.T) {
	src := []float32{0.0, 0.25, -0.75}
	buf := make([]byte, len(src)*4)
	float32ToBytes(src, device.FormatS32, buf)
	got := bytesToFloat32(buf, device.FormatS32, nil)
	for i := range src {
		if !approxEqual(got[i], src[i], 1e-4) {
			t.Fatalf("sample %d: got %v, want ~%v", i, got[i], src[i])
		}
	}
}

func TestFloat32ToBytesClipsOutOfRange(t *testing.T) {
	src := []float32{2.0, -2.0}
	buf := make([]byte, len(src)*4)
	float32ToBytes(src, device.FormatF32, buf)
	got := bytesToFloat32(buf, device.FormatF32, nil)
	if got[0] != 1.0 {
		t.Fatalf("clip high: got %v, want 1.0", got[0])
	}
	if got[1] != -1.0 {
		t.Fatalf("clip low: got %v, want -1.0", got[1])
	}
}

func TestBytesToFloat32GrowsDestination(t *testing.T) {
	src := []float32{0.1, 0.2, 0.3}
	buf := make([]byte, len(src)*4)
	float32ToBytes(src, device.FormatF32, buf)

	var small []float32
	got := bytesToFloat32(buf, device.FormatF32, small)
	if len(got) != len(src) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(src))
	}
}

func TestClipBoundaries(t *testing.T) {
	if clip(1.5) != 1.0 {
		t.Fatal("clip(1.5) != 1.0")
	}
	if clip(-1.5) != -1.0 {
		t.Fatal("clip(-1.5) != -1.0")
	}
	if clip(0.3) != float32(0.3) {
		t.Fatal("clip(0.3) should pass through unchanged")
	}
}

func TestBytesPerSample(t *testing.T) {
	cases := map[device.SampleFormat]int{
		device.FormatF32: 4,
		device.FormatS32: 4,
		device.FormatS24: 3,
		device.FormatS16: 2,
	}
	for format, want := range cases {
		if got := bytesPerSample(format); got != want {
			t.Fatalf("bytesPerSample(%v) = %d, want %d", format, got, want)
		}
	}
}

