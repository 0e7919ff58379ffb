package dsp

import (
	"math"
	"testing"
)

// sineWave synthesizes a pure tone.
func sineWave(freq float64, sampleRate int, seconds float64) []float32 {
	n := int(seconds * float64(sampleRate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return samples
}

func TestEstimateKeyPureTones(t *testing.T) {
	const sampleRate = 8000
	cases := []struct {
		name       string
		freq       float64
		pitchClass int
	}{
		{"A4", 440.00, 9},
		{"C5", 523.25, 0},
		{"E5", 659.25, 4},
		{"G4", 392.00, 7},
	}
	for _, c := range cases {
		samples := sineWave(c.freq, sampleRate, 3)

		key, ok := EstimateKey(samples, sampleRate)
		if !ok {
			t.Fatalf("%s: EstimateKey failed", c.name)
		}
		if key.PitchClass != c.pitchClass {
			t.Errorf("%s: expected pitch class %d, got %d (%s)", c.name, c.pitchClass, key.PitchClass, key.Name)
		}
		if key.Name != KeyName(key.PitchClass, key.Major) {
			t.Errorf("%s: name %q does not match pitch class %d / major=%v", c.name, key.Name, key.PitchClass, key.Major)
		}
		if key.Clarity < 0 || key.Clarity > 1 {
			t.Errorf("%s: clarity %f outside [0,1]", c.name, key.Clarity)
		}
	}
}

// The mode decision must be a pure function of the audio: repeated analysis
// of the same samples returns the same key every time.
func TestEstimateKeyDeterministic(t *testing.T) {
	const sampleRate = 8000
	samples := sineWave(440, sampleRate, 3)
	for i := range samples {
		// Add a second voice so the chroma histogram is not one-hot.
		samples[i] += float32(0.4 * math.Sin(2*math.Pi*659.25*float64(i)/float64(sampleRate)))
	}

	first, ok := EstimateKey(samples, sampleRate)
	if !ok {
		t.Fatal("EstimateKey failed")
	}
	for i := 0; i < 5; i++ {
		got, ok := EstimateKey(samples, sampleRate)
		if !ok {
			t.Fatalf("run %d: EstimateKey failed", i)
		}
		if got != first {
			t.Fatalf("run %d: got %+v, want %+v", i, got, first)
		}
	}
}

func TestEstimateKeySilence(t *testing.T) {
	if _, ok := EstimateKey(make([]float32, 8000*2), 8000); ok {
		t.Error("EstimateKey should fail on silence")
	}
}

func TestEstimateKeyTooShort(t *testing.T) {
	if _, ok := EstimateKey(make([]float32, WindowSize-1), 8000); ok {
		t.Error("EstimateKey should fail on input shorter than one window")
	}
}

func TestKeyNames(t *testing.T) {
	names := KeyNames()
	if len(names) != 24 {
		t.Fatalf("Expected 24 key names, got %d", len(names))
	}

	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			t.Errorf("Duplicate key name %q", name)
		}
		seen[name] = true
	}

	if names[0] != "C Major" {
		t.Errorf("Expected first name to be \"C Major\", got %q", names[0])
	}
	if names[12] != "C Minor" {
		t.Errorf("Expected 13th name to be \"C Minor\", got %q", names[12])
	}
}

func TestKeyName(t *testing.T) {
	if got := KeyName(1, false); got != "C# Minor" {
		t.Errorf("KeyName(1, false) = %q, want \"C# Minor\"", got)
	}
	if got := KeyName(9, true); got != "A Major" {
		t.Errorf("KeyName(9, true) = %q, want \"A Major\"", got)
	}
}
