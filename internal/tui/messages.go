package tui

import "time"

// TickMsg advances the simulated player.
type TickMsg struct {
	Time time.Time
}

// RevealMsg carries a reveal request from the timeline engine.
type RevealMsg struct {
	ClipID string
}

// emphasisExpiredMsg ends the emphasis started by the reveal with the same
// sequence number.
type emphasisExpiredMsg struct {
	seq int
}

// ExportDoneMsg reports the result of an EDL or playlist export. Kind is
// "edl" or "playlist".
type ExportDoneMsg struct {
	Kind string
	Path string
	Err  error
}
