package beatlab

import "strings"

// Policy decides whether an upload is worth transcoding and how hard to
// squeeze it. All methods are pure functions of their arguments and the two
// thresholds; the same inputs always produce the same decision.
type Policy struct {
	// CeilingBytes: files above this are always compressed.
	CeilingBytes int64
	// FloorBytes: already-lossy files below this are left alone.
	FloorBytes int64
}

// DefaultPolicy returns the production thresholds (50 MB ceiling, 5 MB floor).
func DefaultPolicy() Policy {
	return Policy{
		CeilingBytes: 50 << 20,
		FloorBytes:   5 << 20,
	}
}

// aggressiveBytes is the tier boundary above which the most aggressive
// options apply.
const aggressiveBytes int64 = 100 << 20

// ShouldCompress reports whether a file of the given size and declared MIME
// type should go through the compression pipeline. Lossless containers are
// always compressed regardless of size; small already-compressed files are
// not worth re-encoding.
func (p Policy) ShouldCompress(fileSizeBytes int64, mimeType string) bool {
	if isLosslessMIME(mimeType) {
		return true
	}
	if fileSizeBytes > p.CeilingBytes {
		return true
	}
	return fileSizeBytes >= p.FloorBytes
}

// SelectOptions picks a quality tier from the file size. Bigger files get
// squeezed harder. The target sample rate is always 48 kHz (the opus rate).
func (p Policy) SelectOptions(fileSizeBytes int64) CompressionOptions {
	switch {
	case fileSizeBytes > aggressiveBytes:
		return CompressionOptions{BitrateKbps: 96, SampleRateHz: 48000, Channels: 1, Quality: 0.4}
	case fileSizeBytes > p.CeilingBytes:
		return CompressionOptions{BitrateKbps: 128, SampleRateHz: 48000, Channels: 2, Quality: 0.7}
	default:
		return CompressionOptions{BitrateKbps: 160, SampleRateHz: 48000, Channels: 2, Quality: 0.9}
	}
}

func isLosslessMIME(mimeType string) bool {
	switch normalizeMIME(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave",
		"audio/flac", "audio/x-flac",
		"audio/aiff", "audio/x-aiff":
		return true
	default:
		return false
	}
}

// isTargetMIME reports whether the file is already in the pipeline's output
// format.
func isTargetMIME(mimeType string) bool {
	switch normalizeMIME(mimeType) {
	case "audio/ogg", "audio/opus", "application/ogg":
		return true
	default:
		return false
	}
}

func normalizeMIME(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
