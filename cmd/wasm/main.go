//go:build js && wasm
// +build js,wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/soundloft/beatlab/pkg/beatlab/dsp"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorProcessing
)

// Estimates BPM and musical key from raw PCM samples decoded by the browser's
// Web Audio API. Returns: {error: number, data: object | string}
func analyzeBeat(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels")
	}

	audioDataJS := args[0]
	sampleRateJS := args[1]
	channelsJS := args[2]

	if audioDataJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray must be an Array or Float32Array")
	}
	if sampleRateJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate must be a number")
	}
	if channelsJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "channels must be a number")
	}

	sampleRate := sampleRateJS.Int()
	channels := channelsJS.Int()

	if sampleRate <= 0 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sample rate: %d", sampleRate))
	}
	if channels < 1 || channels > 2 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels))
	}

	length := audioDataJS.Length()
	if length == 0 {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray is empty")
	}

	samples := make([]float32, length)
	for i := 0; i < length; i++ {
		val := audioDataJS.Index(i)
		if val.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("audioArray element %d is not a number", i))
		}
		samples[i] = float32(val.Float())
	}

	if channels == 2 {
		samples = stereoToMono(samples)
	}

	duration := float64(len(samples)) / float64(sampleRate)
	method := "spectral"
	confidence := 0.7

	bpm, tempoOK := dsp.EstimateTempo(samples, sampleRate)
	if !tempoOK {
		bpm = dsp.FallbackTempo(duration)
		method = "heuristic"
		confidence -= 0.2
	}

	key, keyOK := dsp.EstimateKey(samples, sampleRate)
	keyName := "C Major"
	if keyOK {
		keyName = key.Name
		confidence += 0.25 * key.Clarity
	} else {
		method = "heuristic"
		confidence -= 0.2
	}
	if confidence < 0.2 {
		confidence = 0.2
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	data := js.Global().Get("Object").New()
	data.Set("bpm", bpm)
	data.Set("key", keyName)
	data.Set("confidence", confidence)
	data.Set("sample_rate", sampleRate)
	data.Set("duration", duration)
	data.Set("analysis_method", method)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

func stereoToMono(stereo []float32) []float32 {
	if len(stereo)%2 != 0 {
		stereo = stereo[:len(stereo)-1]
	}

	monoLength := len(stereo) / 2
	mono := make([]float32, monoLength)

	for i := 0; i < monoLength; i++ {
		left := stereo[i*2]
		right := stereo[i*2+1]
		mono[i] = (left + right) / 2.0
	}

	return mono
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	if !console.IsUndefined() {
		console.Call("log", "🔧 beatlab WASM module initializing...")
	}

	done := make(chan struct{})

	js.Global().Set("analyzeBeat", js.FuncOf(analyzeBeat))

	if !console.IsUndefined() {
		console.Call("log", "📝 analyzeBeat function registered")
	}

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "❌ window object is undefined!")
	}

	if !console.IsUndefined() {
		console.Call("log", "✅ beatlab WASM module loaded and ready")
	}

	<-done
}
