package timeline

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/studyslice/studyslice/internal/catalog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeSeeker struct {
	mu    sync.Mutex
	seeks []float64
	err   error
}

func (s *fakeSeeker) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeks = append(s.seeks, seconds)
	return s.err
}

func (s *fakeSeeker) calls() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.seeks...)
}

func clipSet(clips ...catalog.Clip) catalog.ClipSet {
	return catalog.ClipSet{Clips: clips, Source: "test"}
}

func TestDeriveDuration(t *testing.T) {
	tests := []struct {
		name  string
		clips []catalog.Clip
		want  float64
	}{
		{"empty", nil, 900},
		{"fallback", catalog.FallbackClipSet().Clips, 180},
		{"fractional end", []catalog.Clip{catalog.NewClip("a", "", 0, 10.2, "", "")}, 41},
		{"unsorted", []catalog.Clip{
			catalog.NewClip("a", "", 100, 200, "", ""),
			catalog.NewClip("b", "", 0, 50, "", ""),
		}, 230},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveDuration(tt.clips)
			if got != tt.want {
				t.Fatalf("DeriveDuration = %v, want %v", got, tt.want)
			}
			for _, c := range tt.clips {
				if got < c.EndSeconds {
					t.Fatalf("duration %v shorter than clip end %v", got, c.EndSeconds)
				}
			}
		})
	}
}

func TestPositionAndWidth(t *testing.T) {
	if got := PositionPercent(90, 180); got != 50 {
		t.Errorf("PositionPercent(90, 180) = %v, want 50", got)
	}
	if got := PositionPercent(-5, 180); got != 0 {
		t.Errorf("PositionPercent(-5) = %v, want 0", got)
	}
	if got := PositionPercent(500, 180); got != 100 {
		t.Errorf("PositionPercent(500) = %v, want 100", got)
	}

	short := catalog.NewClip("s", "", 10, 11, "", "")
	if got := WidthPercent(short, 900); got != MinSegmentWidth {
		t.Errorf("WidthPercent(short) = %v, want %v", got, MinSegmentWidth)
	}
	long := catalog.NewClip("l", "", 0, 90, "", "")
	if got := WidthPercent(long, 180); got != 50 {
		t.Errorf("WidthPercent(long) = %v, want 50", got)
	}
}

func TestColumn(t *testing.T) {
	tests := []struct {
		pct   float64
		width int
		want  int
	}{
		{0, 60, 0},
		{100, 60, 59},
		{50, 61, 30},
		{150, 10, 9},
		{-3, 10, 0},
		{50, 1, 0},
	}
	for _, tt := range tests {
		if got := Column(tt.pct, tt.width); got != tt.want {
			t.Errorf("Column(%v, %d) = %d, want %d", tt.pct, tt.width, got, tt.want)
		}
	}
}

func TestEngine_LoadFallbackAutoSelects(t *testing.T) {
	e := New(Config{Logger: testLogger(), AutoSelectFirst: true})
	e.Load(catalog.FallbackClipSet())

	st := e.State()
	if st.TotalDurationSeconds != 180 {
		t.Errorf("total = %v, want 180", st.TotalDurationSeconds)
	}
	if st.SelectedClipID != "1" {
		t.Errorf("selected = %q, want 1", st.SelectedClipID)
	}
	if len(e.Segments()) != 3 {
		t.Errorf("segments = %d, want 3", len(e.Segments()))
	}
}

func TestEngine_LoadEmpty(t *testing.T) {
	e := New(Config{Logger: testLogger(), AutoSelectFirst: true})
	e.Load(clipSet())

	st := e.State()
	if st.TotalDurationSeconds != 900 || st.SelectedClipID != "" {
		t.Fatalf("state = %+v, want 900s and no selection", st)
	}
	if len(e.Segments()) != 0 {
		t.Fatal("expected no segments")
	}
}

func TestEngine_ReloadRevalidatesSelection(t *testing.T) {
	e := New(Config{Logger: testLogger()})
	e.Load(clipSet(
		catalog.NewClip("a", "A", 0, 100, "", ""),
		catalog.NewClip("b", "B", 400, 500, "", ""),
	))
	if err := e.SelectClip("b"); err != nil {
		t.Fatalf("SelectClip() error = %v", err)
	}
	e.AdvancePlayhead(520)

	e.Load(clipSet(catalog.NewClip("b", "B", 400, 500, "", "")))
	if got := e.State().SelectedClipID; got != "b" {
		t.Errorf("selection after reload = %q, want b", got)
	}

	e.Load(clipSet(catalog.NewClip("c", "C", 10, 20, "", "")))
	st := e.State()
	if st.SelectedClipID != "" {
		t.Errorf("selection = %q, want cleared", st.SelectedClipID)
	}
	if st.PlayheadSeconds != 50 {
		t.Errorf("playhead = %v, want clamped to 50", st.PlayheadSeconds)
	}
}

func TestEngine_SelectClip(t *testing.T) {
	seeker := &fakeSeeker{}
	e := New(Config{Seeker: seeker, Logger: testLogger()})
	e.Load(catalog.FallbackClipSet())

	for i := 0; i < 2; i++ {
		if err := e.SelectClip("2"); err != nil {
			t.Fatalf("SelectClip() error = %v", err)
		}
		st := e.State()
		if st.SelectedClipID != "2" || st.PlayheadSeconds != 45 {
			t.Fatalf("state after select #%d = %+v", i+1, st)
		}
	}

	seeks := seeker.calls()
	if len(seeks) != 2 || seeks[0] != 45 || seeks[1] != 45 {
		t.Errorf("seeks = %v, want [45 45]", seeks)
	}
}

func TestEngine_SelectUnknown(t *testing.T) {
	seeker := &fakeSeeker{}
	e := New(Config{Seeker: seeker, Logger: testLogger()})
	e.Load(catalog.FallbackClipSet())
	e.SelectClip("1")
	before := e.State()

	if err := e.SelectClip("nope"); !errors.Is(err, ErrUnknownClip) {
		t.Fatalf("err = %v, want ErrUnknownClip", err)
	}
	if e.State() != before {
		t.Fatalf("state changed: %+v -> %+v", before, e.State())
	}
	if len(seeker.calls()) != 1 {
		t.Error("seek issued for unknown clip")
	}
}

func TestEngine_SeekErrorSwallowed(t *testing.T) {
	seeker := &fakeSeeker{err: errors.New("no media")}
	e := New(Config{Seeker: seeker, Logger: testLogger()})
	e.Load(catalog.FallbackClipSet())

	if err := e.SelectClip("3"); err != nil {
		t.Fatalf("SelectClip() error = %v, want nil", err)
	}
	if e.State().SelectedClipID != "3" {
		t.Error("selection not applied")
	}
}

func TestEngine_ActivateSegment(t *testing.T) {
	seeker := &fakeSeeker{}
	e := New(Config{Seeker: seeker, Logger: testLogger()})
	e.Load(catalog.FallbackClipSet())

	if err := e.ActivateSegment("3"); err != nil {
		t.Fatalf("ActivateSegment() error = %v", err)
	}

	st := e.State()
	if st.SelectedClipID != "3" || st.PlayheadSeconds != 120 {
		t.Fatalf("state = %+v, want clip 3 at 120s", st)
	}
	if seeks := seeker.calls(); len(seeks) != 1 || seeks[0] != 120 {
		t.Errorf("seeks = %v, want [120]", seeks)
	}

	select {
	case r := <-e.Reveals():
		if r.ClipID != "3" {
			t.Errorf("reveal = %q, want 3", r.ClipID)
		}
	default:
		t.Fatal("expected a reveal request")
	}
	select {
	case r := <-e.Reveals():
		t.Fatalf("unexpected extra reveal %q", r.ClipID)
	default:
	}
}

func TestEngine_ActivateSegmentNeverBlocks(t *testing.T) {
	e := New(Config{Logger: testLogger()})
	e.Load(catalog.FallbackClipSet())
	for i := 0; i < 100; i++ {
		if err := e.ActivateSegment("1"); err != nil {
			t.Fatalf("ActivateSegment() error = %v", err)
		}
	}
}

func TestEngine_AdvancePlayheadKeepsSelection(t *testing.T) {
	e := New(Config{Logger: testLogger()})
	e.Load(catalog.FallbackClipSet())
	e.SelectClip("1")

	for _, s := range []float64{10, 60, 130, 179, 1000, -4} {
		e.AdvancePlayhead(s)
		if got := e.State().SelectedClipID; got != "1" {
			t.Fatalf("selection = %q after advance to %v, want 1", got, s)
		}
	}
	if got := e.State().PlayheadSeconds; got != 0 {
		t.Errorf("playhead = %v, want clamped to 0", got)
	}
	if got := e.AdvancePlayhead(1000); got != 180 {
		t.Errorf("AdvancePlayhead(1000) = %v, want 180", got)
	}
}

func TestEngine_ActiveClipAt(t *testing.T) {
	e := New(Config{Logger: testLogger()})
	e.Load(catalog.FallbackClipSet())

	if c, ok := e.ActiveClipAt(50); !ok || c.ID != "2" {
		t.Errorf("ActiveClipAt(50) = %v %v, want clip 2", c.ID, ok)
	}
	if _, ok := e.ActiveClipAt(90); ok {
		t.Error("ActiveClipAt(90) found a clip in a gap")
	}
	if _, ok := e.ActiveClipAt(35); ok {
		t.Error("clip end must be exclusive")
	}
	if got := e.State().SelectedClipID; got != "" {
		t.Errorf("ActiveClipAt changed selection to %q", got)
	}
}
