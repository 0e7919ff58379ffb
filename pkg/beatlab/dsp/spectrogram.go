package dsp

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Tunables
const (
	WindowSize = 2048
	HopSize    = WindowSize / 4
)

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		// 0.54 - 0.46*cos(2*pi*i/(N-1))
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// MagnitudeSpectrum converts a complex spectrum into a magnitude spectrum
// (positive frequencies only).
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// STFT computes a time-major magnitude spectrogram: result[frameIdx][freqBin].
// maxFrames > 0 caps the number of frames analyzed.
func STFT(samples []float32, windowSize, hopSize int, window []float64, maxFrames int) ([][]float64, error) {
	if len(window) != windowSize {
		return nil, errors.New("window length must equal windowSize")
	}
	if len(samples) < windowSize {
		return nil, errors.New("input shorter than window size")
	}

	spectrogram := make([][]float64, 0)
	frame := make([]float64, windowSize)
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		for i := 0; i < windowSize; i++ {
			frame[i] = float64(samples[start+i]) * window[i]
		}
		spec := fft.FFTReal(frame)
		spectrogram = append(spectrogram, MagnitudeSpectrum(spec))
		if maxFrames > 0 && len(spectrogram) >= maxFrames {
			break
		}
	}
	return spectrogram, nil
}
