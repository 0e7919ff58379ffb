package audio

// Buffer holds decoded PCM audio: per-channel float32 samples normalized to
// [-1, 1], tagged with a sample rate. A Buffer is never mutated after the
// decoder returns it, so concurrent read-only passes over the same buffer
// (tempo and key analysis) are safe without locking.
type Buffer struct {
	SampleRate int
	Data       [][]float32 // one slice per channel, equal lengths
}

// Channels returns the channel count (1 = mono, 2 = stereo).
func (b *Buffer) Channels() int {
	return len(b.Data)
}

// Frames returns the number of sample frames per channel.
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Mono returns a single-channel view of the buffer. Mono input is returned
// as-is (no copy); stereo is averaged into a fresh slice.
func (b *Buffer) Mono() []float32 {
	if len(b.Data) == 1 {
		return b.Data[0]
	}
	out := make([]float32, b.Frames())
	for i := range out {
		var sum float32
		for ch := range b.Data {
			sum += b.Data[ch][i]
		}
		out[i] = sum / float32(len(b.Data))
	}
	return out
}
