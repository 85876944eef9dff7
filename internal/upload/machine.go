// Package upload drives one video file through the two-phase transfer
// protocol and hands the result over to the results view.
//
// All state lives behind a single mutex. Every asynchronous step runs in a
// goroutine bound to the task's context and identity, and re-checks that
// identity under the lock before mutating anything, so results that arrive
// after a reset or retry are dropped.
package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studyslice/studyslice/internal/events"
	"github.com/studyslice/studyslice/internal/logging"
	"github.com/studyslice/studyslice/internal/session"
	"github.com/studyslice/studyslice/internal/transfer"
)

// Transferer performs the slot request and the payload PUT.
type Transferer interface {
	RequestSlot(ctx context.Context, fileName string) (*transfer.Slot, error)
	PutPayload(ctx context.Context, slot *transfer.Slot, body io.Reader, size int64) error
}

// PreviewProvider hands out a local preview reference for a submitted file
// and takes it back when the task is discarded.
type PreviewProvider interface {
	Acquire(name, path string) (string, error)
	Release(ref string)
}

// Navigator is invoked once a task completes, after the handoff is stored.
type Navigator func(sessionID string)

// Observer receives every snapshot in transition order. It runs under the
// machine lock and must not call back into the machine.
type Observer func(Snapshot)

// Config wires a Machine to its collaborators. Transfer and Store are
// required; the rest are optional.
type Config struct {
	Transfer  Transferer
	Store     session.Store
	Notifier  events.Notifier
	Navigator Navigator
	Previews  PreviewProvider
	Observer  Observer

	// SessionID keys the handoff. A random one is generated when empty.
	SessionID string

	// DisableAutoFallback keeps the machine in Failed instead of scheduling
	// the demo run when the backend is unreachable.
	DisableAutoFallback bool

	Timings Timings
	Logger  *slog.Logger
}

// Snapshot is a copy of the machine's view of the current task.
type Snapshot struct {
	TaskID     string
	SessionID  string
	Phase      Phase
	Progress   int
	File       *Info
	PreviewRef string
	Slot       *transfer.Slot
	Demo       bool
	LastError  error

	// FallbackPending is set while a failed task waits for the automatic
	// demo run.
	FallbackPending bool
}

// ErrorKind returns the kind of LastError, or "" when there is none.
func (s Snapshot) ErrorKind() ErrorKind {
	return KindOf(s.LastError)
}

// Machine is the upload orchestration state machine.
type Machine struct {
	transfer  Transferer
	store     session.Store
	notifier  events.Notifier
	navigator Navigator
	previews  PreviewProvider
	observer  Observer
	fallback  bool
	timings   Timings
	sessionID string
	logger    *slog.Logger

	mu            sync.Mutex
	id            string
	file          *File
	preview       string
	phase         Phase
	progress      int
	slot          *transfer.Slot
	demo          bool
	lastErr       error
	cancel        context.CancelFunc
	fallbackTimer *time.Timer
	changed       chan struct{}
}

// NewMachine creates an idle machine.
func NewMachine(cfg Config) *Machine {
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		transfer:  cfg.Transfer,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		navigator: cfg.Navigator,
		previews:  cfg.Previews,
		observer:  cfg.Observer,
		fallback:  !cfg.DisableAutoFallback,
		timings:   cfg.Timings.withDefaults(),
		sessionID: sessionID,
		logger:    logging.WithComponent(logger, "upload"),
		phase:     PhaseIdle,
		changed:   make(chan struct{}),
	}
}

// SessionID returns the key under which the handoff is stored.
func (m *Machine) SessionID() string {
	return m.sessionID
}

// Submit validates f and makes it the current task. It is only valid while
// idle and never touches the network.
func (m *Machine) Submit(f File) error {
	if err := Validate(f); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseIdle {
		if m.phase.Busy() {
			return ErrTransferInProgress
		}
		return fmt.Errorf("%w: submit from %s", ErrInvalidState, m.phase)
	}

	ref := f.Path
	if m.previews != nil {
		r, err := m.previews.Acquire(f.Name, f.Path)
		if err != nil {
			m.logger.Warn("preview unavailable", "file", f.Name, "error", err)
			ref = ""
		} else {
			ref = r
		}
	}
	m.releasePreviewLocked()

	m.id = uuid.NewString()
	m.file = &f
	m.preview = ref
	m.progress = 0
	m.slot = nil
	m.demo = false
	m.lastErr = nil

	m.taskLogger(m.id).Info("file submitted",
		"file", f.Name,
		"size_bytes", f.Size,
		"media_type", f.MediaType,
	)
	m.publishLocked()
	return nil
}

// Start begins the live transfer of the submitted file. It returns
// immediately; progress is observed through snapshots.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase.Busy() {
		return ErrTransferInProgress
	}
	if m.phase != PhaseIdle || m.file == nil {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, m.phase)
	}
	m.beginTransferLocked()
	return nil
}

// Retry restarts a failed task from the slot request under a new identity.
func (m *Machine) Retry() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseFailed || m.file == nil {
		return fmt.Errorf("%w: retry from %s", ErrInvalidState, m.phase)
	}
	m.stopFallbackLocked()
	m.cancelRunLocked()
	m.id = uuid.NewString()
	m.progress = 0
	m.slot = nil
	m.lastErr = nil
	m.demo = false
	m.beginTransferLocked()
	return nil
}

// StartDemo runs the simulated upload, either on request from Idle or
// after a failure.
func (m *Machine) StartDemo() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase.Busy() {
		return ErrTransferInProgress
	}
	if m.file == nil || (m.phase != PhaseIdle && m.phase != PhaseFailed) {
		return fmt.Errorf("%w: demo from %s", ErrInvalidState, m.phase)
	}
	m.beginDemoLocked()
	return nil
}

// Reset cancels all pending work, releases the preview and returns to
// Idle without a task. It is valid from any phase.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.id != "" {
		m.taskLogger(m.id).Info("task reset", "phase", m.phase.String())
	}
	m.stopFallbackLocked()
	m.cancelRunLocked()
	m.releasePreviewLocked()
	m.id = ""
	m.file = nil
	m.phase = PhaseIdle
	m.progress = 0
	m.slot = nil
	m.demo = false
	m.lastErr = nil
	m.publishLocked()
}

// Close discards the machine's work the same way Reset does.
func (m *Machine) Close() error {
	m.Reset()
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Wait blocks until cond holds for a snapshot or ctx is done.
func (m *Machine) Wait(ctx context.Context, cond func(Snapshot) bool) (Snapshot, error) {
	for {
		m.mu.Lock()
		s := m.snapshotLocked()
		ch := m.changed
		m.mu.Unlock()

		if cond(s) {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ch:
		}
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		TaskID:     m.id,
		SessionID:  m.sessionID,
		Phase:      m.phase,
		Progress:   m.progress,
		PreviewRef: m.preview,
		Demo:       m.demo,
		LastError:  m.lastErr,

		FallbackPending: m.fallbackTimer != nil,
	}
	if m.file != nil {
		s.File = m.file.info()
	}
	if m.slot != nil {
		slot := *m.slot
		s.Slot = &slot
	}
	return s
}

func (m *Machine) publishLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
	if m.observer != nil {
		m.observer(m.snapshotLocked())
	}
}

func (m *Machine) currentLocked(id string) bool {
	return id != "" && m.id == id
}

func (m *Machine) taskLogger(id string) *slog.Logger {
	return logging.WithTaskID(m.logger, id)
}

func (m *Machine) cancelRunLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Machine) stopFallbackLocked() {
	if m.fallbackTimer != nil {
		m.fallbackTimer.Stop()
		m.fallbackTimer = nil
	}
}

func (m *Machine) releasePreviewLocked() {
	if m.preview != "" && m.previews != nil {
		m.previews.Release(m.preview)
	}
	m.preview = ""
}

func (m *Machine) newRunLocked() context.Context {
	m.cancelRunLocked()
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	return ctx
}

func (m *Machine) beginTransferLocked() {
	ctx := m.newRunLocked()
	m.phase = PhaseRequestingSlot
	m.progress = 10
	m.publishLocked()

	go m.runTransfer(ctx, m.id, *m.file)
}

func (m *Machine) runTransfer(ctx context.Context, id string, f File) {
	log := m.taskLogger(id)

	slot, err := m.transfer.RequestSlot(ctx, f.Name)
	if err != nil {
		m.fail(id, KindSlotAcquisition, err)
		return
	}

	m.mu.Lock()
	if !m.currentLocked(id) {
		m.mu.Unlock()
		return
	}
	m.slot = slot
	m.phase = PhaseTransferring
	m.progress = 30
	m.publishLocked()
	m.mu.Unlock()

	estCtx, stopEstimator := context.WithCancel(ctx)
	estDone := make(chan struct{})
	go func() {
		defer close(estDone)
		m.estimate(estCtx, id)
	}()

	err = m.putPayload(ctx, slot, f)
	stopEstimator()
	<-estDone

	if err != nil {
		m.fail(id, KindPayloadTransfer, err)
		return
	}

	m.mu.Lock()
	if !m.currentLocked(id) {
		m.mu.Unlock()
		return
	}
	m.progress = 100
	m.phase = PhaseServerProcessing
	m.publishLocked()
	m.mu.Unlock()

	log.Info("payload stored", "bucket", slot.Bucket, "key", slot.Key)

	if !m.settle(ctx) {
		return
	}

	now := time.Now().UTC()
	m.complete(ctx, id, session.Handoff{
		TaskID:   id,
		FileName: f.Name,
		FileSize: f.Size,
		Storage: &session.StorageRef{
			Bucket:     slot.Bucket,
			Key:        slot.Key,
			ExpiresIn:  slot.ExpiresIn,
			ObjectURL:  slot.ObjectURL(),
			UploadedAt: now,
		},
		CreatedAt: now,
	})
}

func (m *Machine) putPayload(ctx context.Context, slot *transfer.Slot, f File) error {
	body, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer body.Close()
	return m.transfer.PutPayload(ctx, slot, body, f.Size)
}

// settle waits out the server-processing delay. It reports false when the
// run was cancelled first.
func (m *Machine) settle(ctx context.Context) bool {
	t := time.NewTimer(m.timings.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// complete stores the handoff, announces the upload and only then marks the
// task completed and navigates.
func (m *Machine) complete(ctx context.Context, id string, h session.Handoff) {
	m.mu.Lock()
	if !m.currentLocked(id) {
		m.mu.Unlock()
		return
	}
	h.MediaReference = m.preview
	m.mu.Unlock()

	log := m.taskLogger(id)

	if err := m.store.Put(ctx, m.sessionID, h); err != nil {
		log.Error("handoff write failed", "session_id", m.sessionID, "error", err)
		m.fail(id, KindHandoff, err)
		return
	}
	if !m.isCurrent(id) {
		m.dropHandoff(id)
		return
	}

	if m.notifier != nil {
		ev := events.UploadCompleted{
			TaskID:      id,
			FileName:    h.FileName,
			FileSize:    h.FileSize,
			Demo:        h.IsDemo(),
			CompletedAt: h.CreatedAt,
		}
		if h.Storage != nil {
			ev.Bucket = h.Storage.Bucket
			ev.Key = h.Storage.Key
		}
		if err := m.notifier.UploadCompleted(ctx, ev); err != nil {
			log.Warn("completion event not published", "error", err)
		}
	}

	m.mu.Lock()
	if !m.currentLocked(id) {
		m.mu.Unlock()
		m.dropHandoff(id)
		return
	}
	m.phase = PhaseCompleted
	m.progress = 100
	m.cancelRunLocked()
	m.publishLocked()
	m.mu.Unlock()

	log.Info("upload completed", "session_id", m.sessionID, "demo", h.IsDemo())

	if m.navigator != nil {
		m.navigator(m.sessionID)
	}
}

func (m *Machine) isCurrent(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(id)
}

// dropHandoff removes the handoff written by a task that was reset while
// completing. A handoff already replaced by a newer task is left alone.
func (m *Machine) dropHandoff(id string) {
	ctx := context.Background()
	log := m.taskLogger(id)

	h, err := m.store.Get(ctx, m.sessionID)
	if err != nil || h == nil || h.TaskID != id {
		return
	}
	if err := m.store.Clear(ctx, m.sessionID); err != nil {
		log.Warn("stale handoff not cleared", "session_id", m.sessionID, "error", err)
		return
	}
	log.Info("stale handoff cleared", "session_id", m.sessionID)
}

// fail records err for the current task and, when the backend looks
// unreachable, schedules the demo run.
func (m *Machine) fail(id string, kind ErrorKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.currentLocked(id) {
		return
	}

	m.cancelRunLocked()
	m.phase = PhaseFailed
	m.lastErr = &Error{Kind: kind, Err: err}

	unavailable := transfer.IsUnavailable(err)
	m.taskLogger(id).Error("upload failed",
		"kind", string(kind),
		"unavailable", unavailable,
		"error", err,
	)
	if m.fallback && unavailable && kind != KindHandoff {
		m.stopFallbackLocked()
		m.fallbackTimer = time.AfterFunc(m.timings.FallbackDelay, func() {
			m.fallbackFired(id)
		})
	}
	m.publishLocked()
}

func (m *Machine) fallbackFired(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.currentLocked(id) || m.phase != PhaseFailed {
		return
	}
	m.fallbackTimer = nil
	m.taskLogger(id).Warn("backend unavailable, switching to demo upload")
	m.beginDemoLocked()
}

func (m *Machine) beginDemoLocked() {
	m.stopFallbackLocked()
	m.id = uuid.NewString()
	ctx := m.newRunLocked()
	m.phase = PhaseDemoFallback
	m.progress = 0
	m.slot = nil
	m.demo = true
	m.lastErr = nil
	m.publishLocked()

	go m.runDemo(ctx, m.id, *m.file)
}

func (m *Machine) runDemo(ctx context.Context, id string, f File) {
	ticker := time.NewTicker(m.timings.DemoInterval)
	defer ticker.Stop()

	for done := false; !done; {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if !m.currentLocked(id) || m.phase != PhaseDemoFallback {
			m.mu.Unlock()
			return
		}
		m.progress = min(m.progress+m.timings.DemoStep, 100)
		done = m.progress == 100
		m.publishLocked()
		m.mu.Unlock()
	}

	if !m.settle(ctx) {
		return
	}

	now := time.Now().UTC()
	m.complete(ctx, id, session.Handoff{
		TaskID:   id,
		FileName: f.Name,
		FileSize: f.Size,
		Demo: &session.DemoMarker{
			Status:   "success",
			Message:  "Demo upload completed",
			Filename: f.Name,
			DemoMode: true,
		},
		CreatedAt: now,
	})
}
