package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studyslice/studyslice/internal/timeline"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case TickMsg:
		return m.handleTick()
	case RevealMsg:
		return m.handleReveal(msg)
	case emphasisExpiredMsg:
		if msg.seq == m.emphasisSeq {
			m.emphasis = ""
		}
		return m, nil
	case ExportDoneMsg:
		return m.handleExportDone(msg)
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	clips := m.engine.Clips().Clips

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(clips)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor >= len(clips) {
			return m, nil
		}
		m.selectClip(clips[m.cursor].ID)
	case "left", "h":
		m.activateRelative(-1)
	case "right", "l":
		m.activateRelative(1)
	case " ", "space":
		if !m.player.HasMedia() {
			m.setStatus("no media available", true)
			return m, nil
		}
		if m.player.Toggle() {
			m.setStatus("playing", false)
		} else {
			m.setStatus("paused", false)
		}
	case "e":
		if len(clips) == 0 {
			m.setStatus("no clips to export", true)
			return m, nil
		}
		m.setStatus("exporting...", false)
		return m, exportCmd(m.exportDir, m.title(), clips, m.frameRate)
	case "p":
		if len(clips) == 0 {
			m.setStatus("no clips to export", true)
			return m, nil
		}
		m.setStatus("writing playlist...", false)
		return m, playlistCmd(m.exportDir, m.title(), clips, m.player.Source())
	}
	return m, nil
}

func (m *Model) selectClip(id string) {
	if err := m.engine.SelectClip(id); err != nil {
		m.logger.Warn("select clip failed", "clip_id", id, "error", err)
		m.setStatus(err.Error(), true)
	}
}

// activateRelative activates the segment delta steps from the selected
// clip, or the first segment when nothing is selected yet.
func (m *Model) activateRelative(delta int) {
	set := m.engine.Clips()
	if set.Len() == 0 {
		return
	}

	idx := 0
	if sel, ok := m.engine.Selected(); ok {
		idx = set.IndexOf(sel.ID) + delta
	}
	if idx < 0 || idx >= set.Len() {
		return
	}

	id := set.Clips[idx].ID
	if err := m.engine.ActivateSegment(id); err != nil {
		if errors.Is(err, timeline.ErrUnknownClip) {
			m.logger.Warn("segment vanished", "clip_id", id)
		}
		m.setStatus(err.Error(), true)
	}
}

func (m Model) handleTick() (tea.Model, tea.Cmd) {
	if m.player.Playing() {
		m.engine.AdvancePlayhead(m.player.Advance(m.tick))
	}
	return m, tickCmd(m.tick)
}

func (m Model) handleReveal(msg RevealMsg) (tea.Model, tea.Cmd) {
	next := waitForReveal(m.engine.Reveals())

	idx := m.engine.Clips().IndexOf(msg.ClipID)
	if idx < 0 {
		return m, next
	}
	m.cursor = idx
	m.emphasis = msg.ClipID
	m.emphasisSeq++
	return m, tea.Batch(next, expireEmphasis(m.emphasisSeq, m.emphasisD))
}

func (m Model) handleExportDone(msg ExportDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.logger.Error("export failed", "kind", msg.Kind, "error", msg.Err)
		m.setStatus(msg.Kind+" export failed: "+msg.Err.Error(), true)
		return m, nil
	}
	m.logger.Info("export written", "kind", msg.Kind, "path", msg.Path)
	m.setStatus("exported "+msg.Path, false)
	return m, nil
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}
