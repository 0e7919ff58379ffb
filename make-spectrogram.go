package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"io/fs"
	"log"
	"mime"
	"os"
	"path/filepath"

	"github.com/eligwz/spectrogram"

	beataudio "github.com/soundloft/beatlab/pkg/beatlab/audio"
)

func main() {
	inputDir := flag.String("in", "testdata", "Directory of WAV/MP3 files")
	outputDir := flag.String("out", "spectrograms", "Directory for PNG output")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatal(err)
	}

	err := filepath.WalkDir(*inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		ext := filepath.Ext(path)
		if d.IsDir() || (ext != ".wav" && ext != ".mp3") {
			return nil
		}

		fmt.Printf("Processing %s...\n", path)

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Error reading %s: %v", path, err)
			return nil
		}

		buf, err := beataudio.Decode(data, mime.TypeByExtension(ext))
		if err != nil {
			log.Printf("Error decoding %s: %v", path, err)
			return nil
		}

		mono := buf.Mono()
		samples := make([]float64, len(mono))
		for i, v := range mono {
			samples[i] = float64(v)
		}

		fmt.Printf("Read %d samples at %d Hz\n", len(samples), buf.SampleRate)

		width := 2048
		height := 512
		img := spectrogram.NewImage128(image.Rect(0, 0, width, height))

		black := spectrogram.ParseColor("000000")
		draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

		// Hamming window, FFT, magnitude, linear scale
		spectrogram.Drawfft(
			img,
			samples,
			uint32(buf.SampleRate),
			uint32(height),
			false, // RECTANGLE
			false, // DFT
			true,  // MAG
			false, // LOG10
		)

		outputPath := filepath.Join(*outputDir, filepath.Base(path)+".png")
		if err := spectrogram.SavePng(img, outputPath); err != nil {
			log.Printf("Error saving PNG for %s: %v", outputPath, err)
			return nil
		}

		fmt.Printf("Saved spectrogram to %s\n", outputPath)
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Done!")
}
