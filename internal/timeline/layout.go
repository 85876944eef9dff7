package timeline

import (
	"math"

	"github.com/studyslice/studyslice/internal/catalog"
)

const (
	// DefaultDuration is the time base used when there are no clips.
	DefaultDuration = 900.0

	// TrailingPad is added after the last clip end.
	TrailingPad = 30.0

	// MinSegmentWidth keeps very short clips visible and clickable.
	MinSegmentWidth = 0.5
)

// DeriveDuration returns the total timeline length in seconds.
func DeriveDuration(clips []catalog.Clip) float64 {
	if len(clips) == 0 {
		return DefaultDuration
	}
	maxEnd := clips[0].EndSeconds
	for _, c := range clips[1:] {
		maxEnd = math.Max(maxEnd, c.EndSeconds)
	}
	return math.Ceil(maxEnd) + TrailingPad
}

// PositionPercent maps seconds to a 0-100 offset on a timeline of total
// seconds.
func PositionPercent(seconds, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return clamp(seconds/total*100, 0, 100)
}

// WidthPercent is the share of the timeline a clip occupies, never less
// than MinSegmentWidth.
func WidthPercent(c catalog.Clip, total float64) float64 {
	if total <= 0 {
		return MinSegmentWidth
	}
	return math.Max(c.DurationSeconds/total*100, MinSegmentWidth)
}

// Segment is the placement of one clip on the timeline, in percent.
type Segment struct {
	Clip  catalog.Clip
	Left  float64
	Width float64
}

// Layout places every clip on a timeline of total seconds.
func Layout(clips []catalog.Clip, total float64) []Segment {
	segs := make([]Segment, 0, len(clips))
	for _, c := range clips {
		segs = append(segs, Segment{
			Clip:  c,
			Left:  PositionPercent(c.StartSeconds, total),
			Width: WidthPercent(c, total),
		})
	}
	return segs
}

// Column converts a percent offset into a cell index on a bar of width
// cells.
func Column(percent float64, width int) int {
	if width <= 1 {
		return 0
	}
	pos := int(percent / 100 * float64(width-1))
	if pos < 0 {
		pos = 0
	}
	if pos > width-1 {
		pos = width - 1
	}
	return pos
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
