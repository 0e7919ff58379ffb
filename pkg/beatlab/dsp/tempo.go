package dsp

import "math"

// Tempo band for the content domain. Estimates outside it are octave-folded
// back in; anything still outside is analysis noise and gets clamped.
const (
	MinBPM = 60
	MaxBPM = 200
)

const (
	// tempoDownsample keeps the autocorrelation affordable.
	tempoDownsample = 4
	// tempoWindowSec caps how much audio feeds the autocorrelation; tempo is
	// assumed stable enough that the opening stretch is representative.
	tempoWindowSec = 12
	// peakBucket groups peak-to-peak lag distances (in downsampled samples)
	// into histogram buckets.
	peakBucket = 10
	// peakThreshold is the relative autocorrelation height a candidate beat
	// lag must clear.
	peakThreshold = 0.1
)

// EstimateTempo estimates beats per minute from mono samples via
// autocorrelation. The second return value is false when the signal carries
// too little periodic structure to call; use FallbackTempo then.
func EstimateTempo(samples []float32, sampleRate int) (int, bool) {
	if sampleRate <= 0 || len(samples) < sampleRate/2 {
		return 0, false
	}

	if max := tempoWindowSec * sampleRate; len(samples) > max {
		samples = samples[:max]
	}

	// Decimate by averaging groups of tempoDownsample samples.
	dsRate := sampleRate / tempoDownsample
	n := len(samples) / tempoDownsample
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < tempoDownsample; j++ {
			sum += float64(samples[i*tempoDownsample+j])
		}
		x[i] = sum / tempoDownsample
	}

	// Lags past a few 60 BPM periods tell us nothing about tempo.
	maxLag := n / 2
	if bound := 4 * dsRate * 60 / MinBPM; maxLag > bound {
		maxLag = bound
	}
	if maxLag < 2 {
		return 0, false
	}

	ac := make([]float64, maxLag+1)
	for lag := 1; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < n; i++ {
			sum += x[i] * x[i+lag]
		}
		ac[lag] = sum
	}

	var acPeak float64
	for lag := 1; lag <= maxLag; lag++ {
		if ac[lag] > acPeak {
			acPeak = ac[lag]
		}
	}
	if acPeak <= 0 {
		return 0, false
	}

	// Local maxima above the relative threshold are candidate beat lags.
	var peakLags []int
	for lag := 2; lag < maxLag; lag++ {
		if ac[lag] > ac[lag-1] && ac[lag] >= ac[lag+1] && ac[lag] > peakThreshold*acPeak {
			peakLags = append(peakLags, lag)
		}
	}
	if len(peakLags) < 2 {
		return 0, false
	}

	// Histogram of consecutive peak spacings; the dominant bucket is the
	// beat period.
	hist := make(map[int]int)
	for i := 1; i < len(peakLags); i++ {
		d := peakLags[i] - peakLags[i-1]
		bucket := (d + peakBucket/2) / peakBucket * peakBucket
		if bucket > 0 {
			hist[bucket]++
		}
	}

	period, best := 0, 0
	for bucket, count := range hist {
		if count > best || (count == best && (period == 0 || bucket < period)) {
			period, best = bucket, count
		}
	}
	if period <= 0 {
		return 0, false
	}

	bpm := 60.0 * float64(dsRate) / float64(period)
	for bpm > MaxBPM {
		bpm /= 2
	}
	for bpm < MinBPM {
		bpm *= 2
	}
	return ClampBPM(int(math.Round(bpm))), true
}

// ClampBPM forces a tempo into the [MinBPM, MaxBPM] band.
func ClampBPM(bpm int) int {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

// FallbackTempo maps a clip duration to a plausible tempo when real analysis
// is unavailable: shorter clips (loops, one-shots) tend to be faster tracks.
// Exposed standalone so the degraded path can use it without decoding.
func FallbackTempo(durationSec float64) int {
	switch {
	case durationSec <= 0:
		return 120
	case durationSec < 30:
		return 140
	case durationSec < 90:
		return 128
	case durationSec < 180:
		return 120
	case durationSec < 300:
		return 100
	default:
		return 90
	}
}
