package audioconv

import (
	"encoding/binary"
	"math"
	"time"
)

// Float32ToPCM16 converts samples in [-1, 1] to little-endian signed 16-bit PCM.
// Out-of-range samples are clamped.
func Float32ToPCM16(in []float32) []byte {
	out := make([]byte, len(in)*2)
	for i, v := range in {
		s := math.Round(float64(v) * 32768)
		s = clamp(s, math.MinInt16, math.MaxInt16)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}

// PCM16ToFloat32 decodes little-endian signed 16-bit PCM. A trailing odd byte
// is ignored.
func PCM16ToFloat32(in []byte) []float32 {
	n := len(in) / 2
	out := make([]float32, n)
	const scale = 1.0 / 32768.0
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(in[i*2:]))
		out[i] = float32(float64(v) * scale)
	}
	return out
}

// Duration reports how long n mono samples last at rate.
func Duration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
