// Package tui is the results view: the uploaded lecture, its scrubber and
// the clip list, kept in step by the timeline engine.
package tui

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studyslice/studyslice/internal/export"
	"github.com/studyslice/studyslice/internal/logging"
	"github.com/studyslice/studyslice/internal/session"
	"github.com/studyslice/studyslice/internal/timeline"
)

const (
	DefaultTickInterval     = 250 * time.Millisecond
	DefaultEmphasisDuration = 300 * time.Millisecond
	defaultWidth            = 80
	defaultTitle            = "StudySlice clips"
)

type Config struct {
	Engine  *timeline.Engine
	Player  *Player
	Handoff *session.Handoff

	// ExportDir receives EDL files written with the e key.
	ExportDir string
	FrameRate float64

	TickInterval     time.Duration
	EmphasisDuration time.Duration
	Logger           *slog.Logger
}

// Model is the bubbletea model of the results view.
type Model struct {
	engine  *timeline.Engine
	player  *Player
	handoff *session.Handoff
	logger  *slog.Logger

	exportDir string
	frameRate float64
	tick      time.Duration
	emphasisD time.Duration

	cursor      int
	emphasis    string
	emphasisSeq int
	width       int

	status    string
	statusErr bool
}

func NewModel(cfg Config) Model {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := Model{
		engine:    cfg.Engine,
		player:    cfg.Player,
		handoff:   cfg.Handoff,
		logger:    logging.WithComponent(logger, "tui"),
		exportDir: cfg.ExportDir,
		frameRate: cfg.FrameRate,
		tick:      cfg.TickInterval,
		emphasisD: cfg.EmphasisDuration,
		width:     defaultWidth,
	}
	if m.player == nil {
		m.player = NewPlayer("", 0)
	}
	if m.frameRate <= 0 {
		m.frameRate = export.DefaultFrameRate
	}
	if m.tick <= 0 {
		m.tick = DefaultTickInterval
	}
	if m.emphasisD <= 0 {
		m.emphasisD = DefaultEmphasisDuration
	}
	if sel, ok := m.engine.Selected(); ok {
		m.cursor = max(m.engine.Clips().IndexOf(sel.ID), 0)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(m.tick), waitForReveal(m.engine.Reveals()))
}

// title names the lecture in the header and in exports.
func (m Model) title() string {
	if m.handoff != nil && m.handoff.FileName != "" {
		return m.handoff.FileName
	}
	return defaultTitle
}

// Cursor is the index of the highlighted card.
func (m Model) Cursor() int {
	return m.cursor
}

// Emphasized is the clip id of the card currently emphasized by a reveal.
func (m Model) Emphasized() string {
	return m.emphasis
}

func (m Model) Status() string {
	return m.status
}
