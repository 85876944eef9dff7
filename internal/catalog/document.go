package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidDocument is returned when the payload is not a clip document.
	ErrInvalidDocument = errors.New("invalid clip document")

	// ErrNoClipsArray is returned when the document has no clips array.
	ErrNoClipsArray = errors.New("clips array not found")
)

// Document is the wire form of a clip catalog.
type Document struct {
	LectureID   string          `json:"lecture_id"`
	GeneratedAt string          `json:"generated_at"`
	Counts      map[string]int  `json:"counts,omitempty"`
	Clips       json.RawMessage `json:"clips"`
}

type rawClip struct {
	IndexID      json.RawMessage `json:"index_id"`
	ConceptTitle string          `json:"concept_title"`
	StartS       *float64        `json:"start_s"`
	EndS         *float64        `json:"end_s"`
	Duration     json.RawMessage `json:"duration"`
	URL          string          `json:"url"`
	Summary      string          `json:"summary"`
}

// Parse decodes a clip document. Entries that break the clip invariants
// are skipped with a warning; the duration field is ignored and recomputed.
func Parse(data []byte, source string, logger *slog.Logger) (ClipSet, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return ClipSet{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	trimmed := bytes.TrimSpace(doc.Clips)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return ClipSet{}, ErrNoClipsArray
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return ClipSet{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	set := ClipSet{
		Clips:     make([]Clip, 0, len(entries)),
		Source:    source,
		LectureID: doc.LectureID,
	}
	if doc.GeneratedAt != "" {
		if t, err := time.Parse(time.RFC3339, doc.GeneratedAt); err == nil {
			set.Generated = t
		}
	}

	seen := make(map[string]bool, len(entries))
	for i, entry := range entries {
		clip, err := toClip(entry)
		if err == nil && seen[clip.ID] {
			err = fmt.Errorf("duplicate index_id %q", clip.ID)
		}
		if err != nil {
			if logger != nil {
				logger.Warn("skipping clip entry", "index", i, "source", source, "error", err)
			}
			continue
		}
		seen[clip.ID] = true
		set.Clips = append(set.Clips, clip)
	}

	return set, nil
}

func toClip(entry json.RawMessage) (Clip, error) {
	var rc rawClip
	if err := json.Unmarshal(entry, &rc); err != nil {
		return Clip{}, err
	}

	id, err := parseID(rc.IndexID)
	if err != nil {
		return Clip{}, err
	}
	if rc.StartS == nil || rc.EndS == nil {
		return Clip{}, errors.New("missing start_s or end_s")
	}
	start, end := *rc.StartS, *rc.EndS
	if !finite(start) || !finite(end) || start < 0 || end < 0 {
		return Clip{}, fmt.Errorf("bounds out of range: %v-%v", start, end)
	}
	if end <= start {
		return Clip{}, fmt.Errorf("end_s %v not after start_s %v", end, start)
	}

	return NewClip(id, strings.TrimSpace(rc.ConceptTitle), start, end, rc.URL, rc.Summary), nil
}

// parseID accepts index_id as a JSON string or number.
func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("missing index_id")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		if s = strings.TrimSpace(s); s == "" {
			return "", errors.New("empty index_id")
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("index_id must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
