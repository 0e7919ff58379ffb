package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soundloft/beatlab/pkg/beatlab"
	"github.com/soundloft/beatlab/pkg/logger"
)

// Global flags
var (
	analysisTimeout    time.Duration
	compressionTimeout time.Duration
)

func init() {
	flag.DurationVar(&analysisTimeout, "analysis-timeout", beatlab.DefaultAnalysisTimeout, "Maximum time to spend analyzing a beat")
	flag.DurationVar(&compressionTimeout, "compression-timeout", beatlab.DefaultCompressionTimeout, "Maximum time to spend compressing a beat")
}

// createService creates a new beatlab service with configured options
func createService() (beatlab.Service, error) {
	return beatlab.NewService(
		beatlab.WithAnalysisTimeout(analysisTimeout),
		beatlab.WithCompressionTimeout(compressionTimeout),
	)
}

func main() {
	log := logger.GetLogger()

	printBanner()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Infof("Executing command: %s", command)

	switch command {
	case "analyze":
		handleAnalyze()
	case "compress":
		handleCompress()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 _                _   _       _
| |__   ___  __ _| |_| | __ _| |__
| '_ \ / _ \/ _' | __| |/ _' | '_ \
| |_) |  __/ (_| | |_| | (_| | |_) |
|_.__/ \___|\__,_|\__|_|\__,_|_.__/

      Beat Analysis & Compression CLI
`
	fmt.Println(banner)
}

// readBeat loads an audio file and guesses its MIME type from the extension.
// The service also sniffs the bytes, so a missing or wrong extension is fine.
func readBeat(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	return data, mimeType, nil
}

func handleAnalyze() {
	log := logger.GetLogger()

	if len(os.Args) < 3 {
		fmt.Println("Usage: beatlab analyze <audio_file>")
		os.Exit(1)
	}

	audioPath := os.Args[2]
	log.Infof("Analyzing audio file: %s", audioPath)

	data, mimeType, err := readBeat(audioPath)
	if err != nil {
		fmt.Printf("❌ Failed to read file: %v\n", err)
		log.Errorf("Read failed: %v", err)
		os.Exit(1)
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("🔍 Analyzing beat...")
	fmt.Printf("   %s (%s)\n", filepath.Base(audioPath), humanize.Bytes(uint64(len(data))))

	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout+time.Second)
	defer cancel()

	result := svc.Analyze(ctx, data, filepath.Base(audioPath), mimeType)

	fmt.Println("\n✅ Analysis complete!")
	fmt.Printf("   BPM:        %d\n", result.BPM)
	fmt.Printf("   Key:        %s\n", result.Key)
	fmt.Printf("   Confidence: %.2f\n", result.Confidence)
	fmt.Printf("   Duration:   %.1fs\n", result.Duration)
	fmt.Printf("   Method:     %s\n", result.Method)
	log.Infof("Analyzed %s: %d BPM, %s (%s)", audioPath, result.BPM, result.Key, result.Method)
}

func handleCompress() {
	log := logger.GetLogger()

	// Separate the audio file path from flags
	args := os.Args[2:]
	var audioPath string
	var flagArgs []string
	for i, arg := range args {
		if len(arg) > 0 && arg[0] != '-' && audioPath == "" {
			audioPath = arg
		} else {
			flagArgs = append(flagArgs, args[i:]...)
			break
		}
	}

	compressCmd := flag.NewFlagSet("compress", flag.ExitOnError)
	output := compressCmd.String("out", "", "Output file path (default: input name with .ogg extension)")
	bitrate := compressCmd.Int("bitrate", 0, "Target bitrate in kbps (0 = pick from file size)")
	quality := compressCmd.Float64("quality", 0.9, "Encoder quality in [0,1], used with --bitrate")
	compressCmd.Parse(flagArgs)

	if audioPath == "" {
		fmt.Println("Usage: beatlab compress <audio_file> [--out <file>] [--bitrate <kbps>] [--quality <0..1>]")
		os.Exit(1)
	}

	log.Infof("Compressing audio file: %s", audioPath)

	data, mimeType, err := readBeat(audioPath)
	if err != nil {
		fmt.Printf("❌ Failed to read file: %v\n", err)
		log.Errorf("Read failed: %v", err)
		os.Exit(1)
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}

	var opts *beatlab.CompressionOptions
	if *bitrate > 0 {
		opts = &beatlab.CompressionOptions{
			BitrateKbps:  *bitrate,
			SampleRateHz: 48000,
			Channels:     2,
			Quality:      *quality,
		}
	}

	fmt.Println("🎛️  Compressing beat...")
	fmt.Printf("   %s (%s)\n", filepath.Base(audioPath), humanize.Bytes(uint64(len(data))))

	ctx, cancel := context.WithTimeout(context.Background(), compressionTimeout+time.Second)
	defer cancel()

	result := svc.Compress(ctx, data, filepath.Base(audioPath), mimeType, opts)
	if !result.Success {
		fmt.Printf("\n❌ Compression failed: %s\n", result.ErrorKind.Message())
		log.Errorf("Compress failed: %s", result.ErrorKind)
		os.Exit(1)
	}

	if result.CompressionRatio == 0 {
		fmt.Println("\n✅ File is already small and compressed; keeping original bytes")
	}

	outPath := *output
	if outPath == "" {
		outPath = result.OutputName
	}
	if err := os.WriteFile(outPath, result.Output, 0o644); err != nil {
		fmt.Printf("❌ Failed to write output: %v\n", err)
		log.Errorf("Write failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Compression complete!")
	fmt.Printf("   Output:   %s\n", outPath)
	fmt.Printf("   Original: %s\n", humanize.Bytes(uint64(result.OriginalSizeBytes)))
	fmt.Printf("   Result:   %s\n", humanize.Bytes(uint64(result.CompressedSizeBytes)))
	if result.CompressionRatio > 0 {
		fmt.Printf("   Saved:    %.0f%%\n", result.CompressionRatio*100)
	}
	log.Infof("Compressed %s -> %s (%d -> %d bytes)", audioPath, outPath, result.OriginalSizeBytes, result.CompressedSizeBytes)
}

func printUsage() {
	fmt.Println("beatlab - Beat Analysis & Compression CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --analysis-timeout <dur>      Maximum analysis time (default: 15s)")
	fmt.Println("  --compression-timeout <dur>   Maximum compression time (default: 30s)")
	fmt.Println("\nUsage:")
	fmt.Println("  beatlab [global-options] analyze <audio_file>")
	fmt.Println("  beatlab [global-options] compress <audio_file> [--out <file>] [--bitrate <kbps>] [--quality <0..1>]")
	fmt.Println("\nExamples:")
	fmt.Println("  # Estimate BPM and key of a beat")
	fmt.Println("  beatlab analyze beat.wav")
	fmt.Println()
	fmt.Println("  # Compress with policy-selected settings")
	fmt.Println("  beatlab compress beat.wav")
	fmt.Println()
	fmt.Println("  # Compress with explicit settings")
	fmt.Println("  beatlab compress beat.wav --out beat_small.ogg --bitrate 128 --quality 0.7")
}
