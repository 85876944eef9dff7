// Package timeline keeps the scrubber, the clip list and the media playhead
// in agreement. The engine is the only writer of timeline state; views read
// snapshots from it.
package timeline

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/studyslice/studyslice/internal/catalog"
	"github.com/studyslice/studyslice/internal/logging"
)

// ErrUnknownClip is returned when a clip id is not in the loaded set.
var ErrUnknownClip = errors.New("unknown clip")

// Seeker moves the media playhead.
type Seeker interface {
	Seek(seconds float64) error
}

// Reveal asks the clip list to scroll the card into view and emphasize it.
type Reveal struct {
	ClipID string
}

// State is a snapshot of the timeline.
type State struct {
	TotalDurationSeconds float64
	SelectedClipID       string
	PlayheadSeconds      float64
}

// Config configures an Engine.
type Config struct {
	Seeker Seeker
	Logger *slog.Logger

	// AutoSelectFirst selects the first clip after a load that leaves no
	// valid selection.
	AutoSelectFirst bool
}

// Engine owns the timeline state.
type Engine struct {
	seeker     Seeker
	autoSelect bool
	logger     *slog.Logger
	reveals    chan Reveal

	mu       sync.RWMutex
	set      catalog.ClipSet
	total    float64
	selected string
	playhead float64
}

func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		seeker:     cfg.Seeker,
		autoSelect: cfg.AutoSelectFirst,
		logger:     logging.WithComponent(logger, "timeline"),
		reveals:    make(chan Reveal, 8),
		total:      DefaultDuration,
	}
}

// Reveals delivers reveal requests made by ActivateSegment.
func (e *Engine) Reveals() <-chan Reveal {
	return e.reveals
}

// Load replaces the clip set and re-derives the time base. A selection that
// no longer resolves is cleared and the playhead is clamped.
func (e *Engine) Load(set catalog.ClipSet) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.set = set
	e.total = DeriveDuration(set.Clips)
	if _, ok := set.Find(e.selected); !ok {
		e.selected = ""
	}
	if e.selected == "" && e.autoSelect && set.Len() > 0 {
		e.selected = set.Clips[0].ID
	}
	e.playhead = clamp(e.playhead, 0, e.total)

	e.logger.Info("timeline loaded",
		"clips", set.Len(),
		"fallback", set.Fallback,
		"total_seconds", e.total,
		"selected", e.selected,
	)
}

// SelectClip selects a clip and moves the playhead and the media to its
// start. Seek failures are logged and do not undo the selection.
func (e *Engine) SelectClip(id string) error {
	e.mu.Lock()
	c, ok := e.set.Find(id)
	if !ok {
		e.mu.Unlock()
		return ErrUnknownClip
	}
	e.selected = c.ID
	e.playhead = clamp(c.StartSeconds, 0, e.total)
	e.mu.Unlock()

	if e.seeker != nil {
		if err := e.seeker.Seek(c.StartSeconds); err != nil {
			e.logger.Warn("seek failed", "clip_id", c.ID, "seconds", c.StartSeconds, "error", err)
		}
	}
	return nil
}

// ActivateSegment is SelectClip for a timeline segment, plus a reveal
// request for the matching card. It never blocks; when the reveal queue is
// full the request is dropped.
func (e *Engine) ActivateSegment(id string) error {
	if err := e.SelectClip(id); err != nil {
		return err
	}
	select {
	case e.reveals <- Reveal{ClipID: id}:
	default:
		e.logger.Debug("reveal queue full", "clip_id", id)
	}
	return nil
}

// AdvancePlayhead records the media's current time. It never changes the
// selection.
func (e *Engine) AdvancePlayhead(seconds float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playhead = clamp(seconds, 0, e.total)
	return e.playhead
}

// ActiveClipAt returns the first clip covering seconds, for highlighting.
func (e *Engine) ActiveClipAt(seconds float64) (catalog.Clip, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, c := range e.set.Clips {
		if seconds >= c.StartSeconds && seconds < c.EndSeconds {
			return c, true
		}
	}
	return catalog.Clip{}, false
}

// Position maps seconds to a 0-100 offset on the current time base.
func (e *Engine) Position(seconds float64) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return PositionPercent(seconds, e.total)
}

// SegmentWidth returns the clip's width in percent on the current time
// base.
func (e *Engine) SegmentWidth(c catalog.Clip) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return WidthPercent(c, e.total)
}

// Segments lays out every loaded clip.
func (e *Engine) Segments() []Segment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Layout(e.set.Clips, e.total)
}

// Clips returns the loaded set.
func (e *Engine) Clips() catalog.ClipSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.set
}

// Selected returns the selected clip, if any.
func (e *Engine) Selected() (catalog.Clip, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.selected == "" {
		return catalog.Clip{}, false
	}
	return e.set.Find(e.selected)
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		TotalDurationSeconds: e.total,
		SelectedClipID:       e.selected,
		PlayheadSeconds:      e.playhead,
	}
}
