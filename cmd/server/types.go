package main

// AnalyzeResponse is the response for POST /api/analyze
type AnalyzeResponse struct {
	ID         string  `json:"id,omitempty"`
	BPM        int     `json:"bpm"`
	Key        string  `json:"key"`
	Confidence float64 `json:"confidence"`
	SampleRate int     `json:"sample_rate,omitempty"`
	Duration   float64 `json:"duration"`
	Method     string  `json:"analysis_method"`
}

// CompressFailureResponse is returned when compression fails and the client
// should fall back to uploading the original bytes.
type CompressFailureResponse struct {
	Success   bool   `json:"success"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// BeatDTO represents a cataloged beat in API responses
type BeatDTO struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Uploader            string  `json:"uploader"`
	Filename            string  `json:"filename"`
	SizeBytes           int64   `json:"size_bytes"`
	CompressedSizeBytes int64   `json:"compressed_size_bytes,omitempty"`
	BPM                 int     `json:"bpm"`
	Key                 string  `json:"key"`
	Confidence          float64 `json:"confidence"`
	DurationSec         float64 `json:"duration_sec"`
}

// ListBeatsResponse is the response for GET /api/beats
type ListBeatsResponse struct {
	Beats []BeatDTO `json:"beats"`
	Count int       `json:"count"`
}

// DeleteBeatResponse is the response for DELETE /api/beats/{id}
type DeleteBeatResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and catalog metrics
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	BeatCount    int64  `json:"beat_count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
