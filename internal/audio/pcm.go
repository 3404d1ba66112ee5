package audio

import "math"

// FloatToPCM16 converts one float sample to a signed 16-bit value.
// Negative samples scale by 32768 and non-negative samples by 32767 so that
// -1 and 1 land exactly on the int16 range limits.
func FloatToPCM16(s float32) int16 {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if v < 0 {
		return int16(math.Round(v * 32768))
	}
	return int16(math.Round(v * 32767))
}

// ConvertFloatFrame converts a capture slice into PCM16 samples.
func ConvertFloatFrame(frame []float32) []int16 {
	out := make([]int16, len(frame))
	for i, s := range frame {
		out[i] = FloatToPCM16(s)
	}
	return out
}

// SamplesForDuration returns the sample count of one mono chunk.
func SamplesForDuration(sampleRate int, seconds int) int {
	if sampleRate <= 0 || seconds <= 0 {
		return 0
	}
	return sampleRate * seconds
}
