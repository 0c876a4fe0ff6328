package winaudio

import (
	"encoding/binary"
	"math"

	"github.com/agalue/rearfeed/internal/device"
)

// bytesToFloat32 converts a raw interleaved sample buffer in the given
// format to float32. dst must have capacity for
// len(src)/bytesPerSample(format) samples; it is grown if too small
// and the grown slice is returned.
func bytesToFloat32(src []byte, format device.SampleFormat, dst []float32) []float32 {
	n := len(src) / bytesPerSample(format)
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]

	switch format {
	case device.FormatF32:
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(src[i*4:])
			dst[i] = math.Float32frombits(bits)
		}
	case device.FormatS16:
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(src[i*2:]))
			dst[i] = float32(v) / 32768.0
		}
	case device.FormatS24:
		for i := 0; i < n; i++ {
			b := src[i*3 : i*3+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			dst[i] = float32(v) / 8388608.0
		}
	case device.FormatS32:
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(src[i*4:]))
			dst[i] = float32(v) / 2147483648.0
		}
	default:
		for i := range dst {
			dst[i] = 0
		}
	}
	return dst
}

// float32ToBytes converts a float32 sample buffer into the target
// device's native format, writing into dst (which must be large enough).
func float32ToBytes(src []float32, format device.SampleFormat, dst []byte) {
	switch format {
	case device.FormatF32:
		for i, s := range src {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(clip(s)))
		}
	case device.FormatS16:
		for i, s := range src {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(clip(s)*32767.0)))
		}
	case device.FormatS24:
		for i, s := range src {
			v := int32(clip(s) * 8388607.0)
			dst[i*3] = byte(v)
			dst[i*3+1] = byte(v >> 8)
			dst[i*3+2] = byte(v >> 16)
		}
	case device.FormatS32:
		for i, s := range src {
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(int32(clip(s)*2147483647.0)))
		}
	}
}

func clip(s float32) float32 {
	switch {
	case s > 1.0:
		return 1.0
	case s < -1.0:
		return -1.0
	default:
		return s
	}
}

func bytesPerSample(format device.SampleFormat) int {
	switch format {
	case device.FormatF32, device.FormatS32:
		return 4
	case device.FormatS24:
		return 3
	case device.FormatS16:
		return 2
	default:
		return 4
	}
}
