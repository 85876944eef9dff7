package tui

import (
	"errors"
	"sync"
	"time"
)

// ErrNoMedia is returned by Seek when the player has nothing loaded.
var ErrNoMedia = errors.New("no media available")

// Player is a simulated media element. It keeps a clock that advances
// while playing and can be seeked by the timeline engine.
type Player struct {
	mu       sync.Mutex
	source   string
	duration float64
	position float64
	playing  bool
}

// NewPlayer returns a paused player for source. An empty source means
// there is no media and every Seek fails.
func NewPlayer(source string, duration float64) *Player {
	return &Player{source: source, duration: duration}
}

func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *Player) HasMedia() bool {
	return p.Source() != ""
}

// SetDuration changes the media length and clamps the clock to it.
func (p *Player) SetDuration(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.duration = seconds
	p.position = p.clampLocked(p.position)
}

func (p *Player) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == "" {
		return ErrNoMedia
	}
	p.position = p.clampLocked(seconds)
	return nil
}

// Toggle flips between playing and paused and reports the new state.
func (p *Player) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == "" {
		return false
	}
	p.playing = !p.playing
	return p.playing
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Advance moves the clock by d when playing and returns the current time.
// Playback pauses at the end of the media.
func (p *Player) Advance(d time.Duration) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return p.position
	}
	p.position = p.clampLocked(p.position + d.Seconds())
	if p.duration > 0 && p.position >= p.duration {
		p.playing = false
	}
	return p.position
}

func (p *Player) clampLocked(v float64) float64 {
	if v < 0 {
		return 0
	}
	if p.duration > 0 && v > p.duration {
		return p.duration
	}
	return v
}
