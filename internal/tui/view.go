package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/studyslice/studyslice/internal/catalog"
	"github.com/studyslice/studyslice/internal/timeline"
)

const (
	minBarWidth = 20
	barMargin   = 4
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("StudySlice · " + m.title()))
	b.WriteString("\n")
	b.WriteString(m.mediaLine())
	b.WriteString("\n\n")

	state := m.engine.State()
	set := m.engine.Clips()

	b.WriteString(m.playerLine(state))
	b.WriteString("\n")
	b.WriteString(m.scrubber(state))
	b.WriteString("\n\n")

	if set.Len() == 0 {
		b.WriteString(InfoStyle.Render("no clips"))
		b.WriteString("\n")
	} else {
		if set.Fallback {
			b.WriteString(WarningStyle.Render("clip catalog unavailable, showing sample clips"))
			b.WriteString("\n")
		}
		b.WriteString(m.clipList(state, set))
	}

	if m.status != "" {
		b.WriteString("\n")
		if m.statusErr {
			b.WriteString(ErrorStyle.Render(m.status))
		} else {
			b.WriteString(StatusStyle.Render(m.status))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(InfoStyle.Render("↑/↓ move • enter select • ←/→ segment • space play/pause • e export EDL • p playlist • q quit"))
	return b.String()
}

func (m Model) mediaLine() string {
	switch {
	case m.handoff == nil || !m.player.HasMedia():
		return ErrorStyle.Render("no media available")
	case m.handoff.IsDemo():
		return WarningStyle.Render(fmt.Sprintf("demo upload: %s (%s)", m.handoff.FileName, m.handoff.Demo.Message))
	case m.handoff.Storage != nil:
		return InfoStyle.Render(fmt.Sprintf("s3://%s/%s", m.handoff.Storage.Bucket, m.handoff.Storage.Key))
	default:
		return InfoStyle.Render(m.handoff.FileName)
	}
}

func (m Model) playerLine(state timeline.State) string {
	icon := "⏸"
	if m.player.Playing() {
		icon = "▶"
	}
	line := fmt.Sprintf("%s %s / %s", icon, clock(state.PlayheadSeconds), clock(state.TotalDurationSeconds))
	if c, ok := m.engine.ActiveClipAt(state.PlayheadSeconds); ok {
		line += "  " + c.Title
	}
	return line
}

// scrubber draws the clip segments on a track with the playhead on top.
func (m Model) scrubber(state timeline.State) string {
	width := max(m.width-barMargin, minBarWidth)

	cells := make([]rune, width)
	kinds := make([]int, width)
	for i := range cells {
		cells[i] = '─'
	}

	for _, seg := range m.engine.Segments() {
		start := timeline.Column(seg.Left, width)
		end := max(timeline.Column(seg.Left+seg.Width, width), start)
		kind := 1
		if seg.Clip.ID == state.SelectedClipID {
			kind = 2
		}
		for i := start; i <= end; i++ {
			cells[i] = '━'
			kinds[i] = kind
		}
	}

	head := timeline.Column(m.engine.Position(state.PlayheadSeconds), width)
	cells[head] = '◆'
	kinds[head] = 3

	var b strings.Builder
	b.WriteString(trackStyle.Render("["))
	for i, r := range cells {
		ch := string(r)
		switch kinds[i] {
		case 1:
			b.WriteString(segmentStyle.Render(ch))
		case 2:
			b.WriteString(selectedStyle.Render(ch))
		case 3:
			b.WriteString(playheadStyle.Render(ch))
		default:
			b.WriteString(trackStyle.Render(ch))
		}
	}
	b.WriteString(trackStyle.Render("]"))
	return b.String()
}

func (m Model) clipList(state timeline.State, set catalog.ClipSet) string {
	var b strings.Builder
	for i, c := range set.Clips {
		marker := " "
		if c.ID == state.SelectedClipID {
			marker = "●"
		}
		line := fmt.Sprintf("%s %s  %s–%s  %s", marker, c.ID, clock(c.StartSeconds), clock(c.EndSeconds), c.Title)

		switch {
		case c.ID == m.emphasis:
			b.WriteString(emphasisCardStyle.Render(line))
		case i == m.cursor:
			b.WriteString(cursorCardStyle.Render(line))
		default:
			b.WriteString(cardStyle.Render(line))
		}
		b.WriteString("\n")

		if i == m.cursor && c.Summary != "" {
			b.WriteString(summaryStyle.Render(c.Summary))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// clock formats seconds as m:ss, or h:mm:ss past the hour.
func clock(seconds float64) string {
	s := int(math.Max(seconds, 0))
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
