package dsp

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Fundamental-pitch band retained for chroma voting. Content above 1 kHz is
// dominated by harmonics and percussion and only smears the histogram.
const (
	minPitchHz = 80.0
	maxPitchHz = 1000.0
	// magnitudeFloor is the fraction of a frame's peak magnitude a bin must
	// reach to cast a vote.
	magnitudeFloor = 0.1
	// keyFrameCap bounds the number of analyzed frames.
	keyFrameCap = 600
)

// Krumhansl-Schmuckler tonal profiles, index 0 = tonic.
var (
	majorProfile = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// KeyEstimate is an estimated musical key: a pitch class plus mode.
type KeyEstimate struct {
	PitchClass int     // 0 = C ... 11 = B
	Major      bool    // mode
	Name       string  // canonical label, e.g. "C# Minor"
	Clarity    float64 // [0,1]; separation of the winning profile fit from the runner-up
}

// KeyName renders the canonical label for a pitch class and mode.
func KeyName(pitchClass int, major bool) string {
	mode := "Minor"
	if major {
		mode = "Major"
	}
	return pitchClassNames[pitchClass%12] + " " + mode
}

// KeyNames returns all 24 canonical key labels (12 major, then 12 minor).
func KeyNames() []string {
	names := make([]string, 0, 24)
	for pc := 0; pc < 12; pc++ {
		names = append(names, KeyName(pc, true))
	}
	for pc := 0; pc < 12; pc++ {
		names = append(names, KeyName(pc, false))
	}
	return names
}

// EstimateKey estimates the musical key of mono samples by framed spectral
// analysis and pitch-class voting. The tonic is the dominant chroma bin; the
// mode is picked deterministically by correlating the chroma histogram
// against the major and minor tonal profiles rotated to that tonic. The
// second return value is false when no frame produced a usable vote.
func EstimateKey(samples []float32, sampleRate int) (KeyEstimate, bool) {
	if sampleRate <= 0 || len(samples) < WindowSize {
		return KeyEstimate{}, false
	}

	window := Hamming(WindowSize)
	spectrogram, err := STFT(samples, WindowSize, HopSize, window, keyFrameCap)
	if err != nil {
		return KeyEstimate{}, false
	}

	// C0 derived from A4 = 440 Hz: A4 sits 4 octaves and 9 semitones above C0.
	c0 := 440.0 / math.Exp2(4.75)
	binHz := float64(sampleRate) / float64(WindowSize)

	var hist [12]float64
	total := 0.0
	for _, frame := range spectrogram {
		framePeak := 0.0
		for _, mag := range frame {
			if mag > framePeak {
				framePeak = mag
			}
		}
		if framePeak <= 0 {
			continue
		}
		threshold := magnitudeFloor * framePeak
		for bin, mag := range frame {
			freq := float64(bin) * binHz
			if freq < minPitchHz || freq > maxPitchHz || mag <= threshold {
				continue
			}
			note := int(math.Round(12*math.Log2(freq/c0))) % 12
			if note < 0 {
				note += 12
			}
			hist[note]++
			total++
		}
	}
	if total == 0 {
		return KeyEstimate{}, false
	}

	tonic := 0
	for pc := 1; pc < 12; pc++ {
		if hist[pc] > hist[tonic] {
			tonic = pc
		}
	}

	chroma := hist[:]
	major := profileCorrelation(chroma, majorProfile, tonic) >= profileCorrelation(chroma, minorProfile, tonic)

	// Score all 24 candidate keys so clarity reflects how far ahead the
	// winner is of every alternative, not just the opposite mode.
	scores := make([]float64, 0, 24)
	for pc := 0; pc < 12; pc++ {
		scores = append(scores, profileCorrelation(chroma, majorProfile, pc))
		scores = append(scores, profileCorrelation(chroma, minorProfile, pc))
	}
	best, second := -2.0, -2.0
	for _, s := range scores {
		if s > best {
			best, second = s, best
		} else if s > second {
			second = s
		}
	}
	clarity := 0.0
	if best > 0 {
		clarity = (best - second) / best
		if clarity < 0 {
			clarity = 0
		} else if clarity > 1 {
			clarity = 1
		}
	}

	return KeyEstimate{
		PitchClass: tonic,
		Major:      major,
		Name:       KeyName(tonic, major),
		Clarity:    clarity,
	}, true
}

// profileCorrelation computes the Pearson correlation between a 12-bin
// chroma histogram and a tonal profile rotated so profile[0] lands on tonic.
func profileCorrelation(chroma, profile []float64, tonic int) float64 {
	rotated := make([]float64, 12)
	for pc := 0; pc < 12; pc++ {
		rotated[pc] = profile[((pc-tonic)%12+12)%12]
	}
	r := stat.Correlation(chroma, rotated, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}
