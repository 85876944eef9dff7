package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studyslice/studyslice/internal/catalog"
	"github.com/studyslice/studyslice/internal/export"
	"github.com/studyslice/studyslice/internal/timeline"
)

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// waitForReveal blocks on the engine's reveal queue. It is re-issued after
// every reveal so the queue is drained one request at a time.
func waitForReveal(reveals <-chan timeline.Reveal) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-reveals
		if !ok {
			return nil
		}
		return RevealMsg{ClipID: r.ClipID}
	}
}

func expireEmphasis(seq int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return emphasisExpiredMsg{seq: seq}
	})
}

func exportCmd(dir, title string, clips []catalog.Clip, fps float64) tea.Cmd {
	return func() tea.Msg {
		path, err := export.WriteEDL(dir, title, clips, fps)
		return ExportDoneMsg{Kind: "edl", Path: path, Err: err}
	}
}

func playlistCmd(dir, title string, clips []catalog.Clip, media string) tea.Cmd {
	return func() tea.Msg {
		path, err := export.WritePlaylist(dir, title, clips, media)
		return ExportDoneMsg{Kind: "playlist", Path: path, Err: err}
	}
}
