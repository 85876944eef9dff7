// Package catalog loads the clip document produced for an uploaded lecture.
// Loading never fails from the caller's point of view: any problem is
// logged and a built-in catalog is served instead.
package catalog

import (
	"math"
	"time"
)

// Clip is a labeled sub-range of the source media. Clips are immutable once
// loaded.
type Clip struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	StartSeconds    float64 `json:"start_s"`
	EndSeconds      float64 `json:"end_s"`
	DurationSeconds float64 `json:"duration"`
	MediaReference  string  `json:"url,omitempty"`
	Summary         string  `json:"summary,omitempty"`
}

// NewClip builds a clip with its duration derived from the bounds.
func NewClip(id, title string, start, end float64, media, summary string) Clip {
	return Clip{
		ID:              id,
		Title:           title,
		StartSeconds:    start,
		EndSeconds:      end,
		DurationSeconds: math.Trunc(end - start),
		MediaReference:  media,
		Summary:         summary,
	}
}

// ClipSet is one loaded catalog, in source order.
type ClipSet struct {
	Clips     []Clip
	Fallback  bool
	Source    string
	LectureID string
	Generated time.Time
}

// Len returns the number of clips.
func (s ClipSet) Len() int {
	return len(s.Clips)
}

// Find returns the clip with the given id.
func (s ClipSet) Find(id string) (Clip, bool) {
	for _, c := range s.Clips {
		if c.ID == id {
			return c, true
		}
	}
	return Clip{}, false
}

// IndexOf returns the position of id in the set, or -1.
func (s ClipSet) IndexOf(id string) int {
	for i, c := range s.Clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}
