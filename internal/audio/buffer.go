package audio

// SampleBuffer is the rolling PCM buffer between the capture callback and the
// periodic flush. It is not safe for concurrent use; the owner serializes access.
type SampleBuffer struct {
	samples []int16
}

func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &SampleBuffer{samples: make([]int16, 0, capacity)}
}

// Append adds samples at the tail.
func (b *SampleBuffer) Append(samples []int16) {
	b.samples = append(b.samples, samples...)
}

// Len returns the number of buffered samples.
func (b *SampleBuffer) Len() int {
	return len(b.samples)
}

// Drain removes and returns up to max of the oldest samples. A max of zero or
// less drains everything.
func (b *SampleBuffer) Drain(max int) []int16 {
	n := len(b.samples)
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]int16, n)
	copy(out, b.samples[:n])

	remaining := copy(b.samples, b.samples[n:])
	b.samples = b.samples[:remaining]
	return out
}

// Reset discards all buffered samples.
func (b *SampleBuffer) Reset() {
	b.samples = b.samples[:0]
}

// NextChunk applies the flush rule: a full chunk when at least chunkSize
// samples are buffered, otherwise the whole remainder. It returns nil when
// the buffer is empty.
func (b *SampleBuffer) NextChunk(chunkSize int) []int16 {
	if len(b.samples) == 0 {
		return nil
	}
	if chunkSize > 0 && len(b.samples) >= chunkSize {
		return b.Drain(chunkSize)
	}
	return b.Drain(0)
}
