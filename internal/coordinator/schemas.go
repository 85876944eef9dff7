package coordinator

import (
	"encoding/json"
	"net/http"

	"github.com/studyslice/studyslice/internal/db"
)

const (
	VideoStatusCompleted       = "completed"
	VideoStatusProcessingClips = "processing_clips"
	VideoStatusTranscribing    = "transcribing"
	VideoStatusNotFound        = "not_found"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type VideoStatusResponse struct {
	VideoName        string `json:"video_name"`
	Status           string `json:"status"`
	VideoExists      bool   `json:"video_exists"`
	TranscriptExists bool   `json:"transcript_exists"`
	ClipsExist       bool   `json:"clips_exist"`

	LatestSlot *SlotResponse `json:"latest_slot,omitempty"`
}

type SlotResponse struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SlotToResponse(s *SlotRecord) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		Filename:  s.Filename,
		Bucket:    s.Bucket,
		Key:       s.Key,
		Status:    s.Status,
		ExpiresAt: s.ExpiresAt.Format(db.TimeLayout),
		CreatedAt: s.CreatedAt.Format(db.TimeLayout),
	}
}

func WriteError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
