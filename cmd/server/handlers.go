package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soundloft/beatlab/internal/catalog"
	"github.com/soundloft/beatlab/pkg/beatlab"
	"github.com/soundloft/beatlab/pkg/logger"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service beatlab.Service
	store   *catalog.Store
	config  *ServerConfig
	log     beatlab.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	AllowedOrigins []string
	MaxUploadBytes int64
}

// NewServer creates a new server instance
func NewServer(service beatlab.Service, store *catalog.Store, config *ServerConfig) *Server {
	return &Server{
		service: service,
		store:   store,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "beatlab API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":     "GET /health",
			"metrics":    "GET /api/health/metrics",
			"analyze":    "POST /api/analyze",
			"compress":   "POST /api/compress",
			"listBeats":  "GET /api/beats",
			"getBeat":    "GET /api/beats/{id}",
			"deleteBeat": "DELETE /api/beats/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count()
	if err != nil {
		s.log.Errorf("Failed to get beat count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		BeatCount:    count,
	})
}

// readUpload pulls the uploaded audio file out of a multipart form and
// returns its bytes, original filename and MIME type.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data (upload too large?)")
		return nil, "", "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.log.Errorf("Failed to get audio file: %v", err)
		s.respondError(w, http.StatusBadRequest, "file is required")
		return nil, "", "", false
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType != "" && !strings.HasPrefix(mimeType, "audio/") && mimeType != "application/octet-stream" {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported content type %q, expected audio/*", mimeType))
		return nil, "", "", false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.log.Errorf("Failed to read upload: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return nil, "", "", false
	}

	return data, header.Filename, mimeType, true
}

// handleAnalyze handles POST /api/analyze (multipart file upload)
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Only POST is allowed")
		return
	}

	data, filename, mimeType, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	title := r.FormValue("title")
	uploader := r.FormValue("uploader")
	if title == "" {
		title = filename
	}

	s.log.Infof("Analyzing %s (%s) from %s", filename, humanize.Bytes(uint64(len(data))), getClientIP(r))

	result := s.service.Analyze(r.Context(), data, filename, mimeType)

	beatID := ""
	if s.store != nil {
		id, err := s.store.SaveBeat(&catalog.Beat{
			Title:       title,
			Uploader:    uploader,
			Filename:    filename,
			MimeType:    mimeType,
			SizeBytes:   int64(len(data)),
			BPM:         result.BPM,
			Key:         result.Key,
			Confidence:  result.Confidence,
			DurationSec: result.Duration,
		})
		if err != nil {
			// Analysis already succeeded; report it even if cataloging failed.
			s.log.Errorf("Failed to catalog beat: %v", err)
		} else {
			beatID = id
		}
	}

	s.log.Infof("Analyzed %s: %d BPM, %s (confidence %.2f, %s)", filename, result.BPM, result.Key, result.Confidence, result.Method)
	s.respondJSON(w, http.StatusOK, AnalyzeResponse{
		ID:         beatID,
		BPM:        result.BPM,
		Key:        result.Key,
		Confidence: result.Confidence,
		SampleRate: result.SampleRate,
		Duration:   result.Duration,
		Method:     result.Method,
	})
}

// handleCompress handles POST /api/compress (multipart file upload)
func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Only POST is allowed")
		return
	}

	data, filename, mimeType, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	s.log.Infof("Compressing %s (%s) from %s", filename, humanize.Bytes(uint64(len(data))), getClientIP(r))

	result := s.service.Compress(r.Context(), data, filename, mimeType, nil)
	if !result.Success {
		s.log.Warnf("Compression of %s failed: %s", filename, result.ErrorKind)
		s.respondJSON(w, http.StatusUnprocessableEntity, CompressFailureResponse{
			Success:   false,
			ErrorKind: result.ErrorKind.String(),
			Message:   result.ErrorKind.Message(),
		})
		return
	}

	s.log.Infof("Compressed %s: %s -> %s (ratio %.2f)", filename,
		humanize.Bytes(uint64(result.OriginalSizeBytes)),
		humanize.Bytes(uint64(result.CompressedSizeBytes)),
		result.CompressionRatio)

	w.Header().Set("Content-Type", "audio/ogg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.OutputName))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Output)))
	w.Header().Set("X-Original-Size", strconv.FormatInt(result.OriginalSizeBytes, 10))
	w.Header().Set("X-Compressed-Size", strconv.FormatInt(result.CompressedSizeBytes, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Output); err != nil {
		s.log.Errorf("Failed to write compressed audio: %v", err)
	}
}

// handleBeats handles GET /api/beats
func (s *Server) handleBeats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Only GET is allowed")
		return
	}

	beats, err := s.store.ListBeats()
	if err != nil {
		s.log.Errorf("Failed to list beats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve beats")
		return
	}

	dtos := make([]BeatDTO, len(beats))
	for i, beat := range beats {
		dtos[i] = beatToDTO(&beat)
	}

	s.respondJSON(w, http.StatusOK, ListBeatsResponse{
		Beats: dtos,
		Count: len(dtos),
	})
}

// handleBeat handles GET and DELETE /api/beats/{id}
func (s *Server) handleBeat(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/beats/")
	if id == "" || strings.Contains(id, "/") {
		s.respondError(w, http.StatusBadRequest, "Invalid beat ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		beat, err := s.store.GetBeatByID(id)
		if err != nil {
			s.log.Warnf("Beat not found: %s", id)
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Beat with ID %s not found", id))
			return
		}
		s.respondJSON(w, http.StatusOK, beatToDTO(beat))

	case http.MethodDelete:
		if err := s.store.DeleteBeatByID(id); err != nil {
			s.log.Warnf("Beat not found for deletion: %s", id)
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Beat with ID %s not found", id))
			return
		}
		s.log.Infof("Deleted beat %s", id)
		s.respondJSON(w, http.StatusOK, DeleteBeatResponse{
			Message: "Beat deleted successfully",
			ID:      id,
		})

	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Only GET and DELETE are allowed")
	}
}

func beatToDTO(beat *catalog.Beat) BeatDTO {
	return BeatDTO{
		ID:                  beat.ID,
		Title:               beat.Title,
		Uploader:            beat.Uploader,
		Filename:            beat.Filename,
		SizeBytes:           beat.SizeBytes,
		CompressedSizeBytes: beat.CompressedSizeBytes,
		BPM:                 beat.BPM,
		Key:                 beat.Key,
		Confidence:          beat.Confidence,
		DurationSec:         beat.DurationSec,
	}
}
