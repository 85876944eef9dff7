package coordinator

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/studyslice/studyslice/internal/logging"
	"github.com/studyslice/studyslice/internal/transfer"
)

const (
	DefaultSlotExpiry = 3600 * time.Second
	maxRequestBody    = 64 << 10
)

// UploadResponse is the slot the client consumes plus the ledger id.
type UploadResponse struct {
	transfer.Slot
	SlotID string `json:"slot_id"`
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.SlotExpiry <= 0 {
		cfg.SlotExpiry = DefaultSlotExpiry
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware())

	r.Get("/health", healthHandler(cfg))
	r.Post("/upload", uploadHandler(cfg))
	r.Get("/video-status/{name}", videoStatusHandler(cfg))
	r.Get("/get-clips/{name}", getClipsHandler(cfg))
	r.Get("/slots/{id}", getSlotHandler(cfg))

	return r
}

// ObjectKey joins the upload prefix and a file name.
func ObjectKey(prefix, filename string) string {
	if prefix == "" {
		return filename
	}
	return prefix + "/" + filename
}

func TranscriptKey(name string) string {
	return "transcripts/" + name + "-transcript.json"
}

func ClipsKey(name string) string {
	return "clips/" + name + "-clips.json"
}

func validFilename(name string) bool {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return false
	}
	return path.Clean(name) == name
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "healthy",
			Service: "studyslice coordinator",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.WithRequestID(cfg.Logger, RequestIDFrom(r.Context()))

		var req transfer.SlotRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		filename := strings.TrimSpace(req.Filename)
		if filename == "" {
			WriteError(w, http.StatusBadRequest, "no filename provided", "BAD_REQUEST")
			return
		}
		if !validFilename(filename) {
			WriteError(w, http.StatusBadRequest, "invalid filename", "BAD_REQUEST")
			return
		}

		key := ObjectKey(cfg.Prefix, filename)
		url, err := cfg.Store.PresignPut(r.Context(), key, cfg.SlotExpiry)
		if err != nil {
			logger.Error("failed to presign upload", "key", key, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to create upload slot", "PRESIGN_FAILED")
			return
		}

		slot := &SlotRecord{
			Filename:  filename,
			Bucket:    cfg.Store.Bucket(),
			Key:       key,
			ExpiresAt: time.Now().Add(cfg.SlotExpiry),
		}
		if err := cfg.Repository.CreateSlot(r.Context(), slot); err != nil {
			logger.Error("failed to record slot", "key", key, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to record upload slot", "INTERNAL_ERROR")
			return
		}

		logging.WithSlotID(logger, slot.ID).Info("issued upload slot",
			"key", key,
			"url", logging.SanitizeURL(url),
			"expires_in", int(cfg.SlotExpiry.Seconds()),
		)

		WriteJSON(w, http.StatusOK, UploadResponse{
			Slot: transfer.Slot{
				PresignedURL: url,
				Bucket:       slot.Bucket,
				Key:          key,
				ExpiresIn:    int(cfg.SlotExpiry.Seconds()),
			},
			SlotID: slot.ID,
		})
	}
}

func videoStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		ctx := r.Context()

		resp := VideoStatusResponse{VideoName: name}
		checks := []struct {
			key string
			dst *bool
		}{
			{ObjectKey(cfg.Prefix, name), &resp.VideoExists},
			{TranscriptKey(name), &resp.TranscriptExists},
			{ClipsKey(name), &resp.ClipsExist},
		}
		for _, c := range checks {
			ok, err := cfg.Store.Exists(ctx, c.key)
			if err != nil {
				cfg.Logger.Error("failed to check object", "key", c.key, "error", err)
				WriteError(w, http.StatusInternalServerError, "failed to check video status", "INTERNAL_ERROR")
				return
			}
			*c.dst = ok
		}

		slots, err := cfg.Repository.ListSlotsByFilename(ctx, name)
		if err != nil {
			cfg.Logger.Warn("failed to list slots", "filename", name, "error", err)
		} else if len(slots) > 0 {
			latest := SlotToResponse(slots[0])
			resp.LatestSlot = &latest
		}

		switch {
		case resp.ClipsExist:
			resp.Status = VideoStatusCompleted
		case resp.TranscriptExists:
			resp.Status = VideoStatusProcessingClips
		case resp.VideoExists:
			resp.Status = VideoStatusTranscribing
		default:
			resp.Status = VideoStatusNotFound
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func getClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := ClipsKey(chi.URLParam(r, "name"))

		body, err := cfg.Store.Get(r.Context(), key)
		if errors.Is(err, ErrObjectNotFound) {
			WriteError(w, http.StatusNotFound, "clips not found, may still be processing", "NOT_FOUND")
			return
		}
		if err != nil {
			cfg.Logger.Error("failed to get clips", "key", key, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to get clips", "INTERNAL_ERROR")
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, body); err != nil {
			cfg.Logger.Warn("clips stream interrupted", "key", key, "error", err)
		}
	}
}

func getSlotHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, err := cfg.Repository.GetSlot(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			cfg.Logger.Error("failed to get slot", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to get slot", "INTERNAL_ERROR")
			return
		}
		if slot == nil {
			WriteError(w, http.StatusNotFound, "slot not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, SlotToResponse(slot))
	}
}
