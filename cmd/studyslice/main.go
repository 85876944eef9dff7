// Command studyslice uploads a lecture recording through the coordinator
// and opens the clip timeline for it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studyslice/studyslice/internal/catalog"
	"github.com/studyslice/studyslice/internal/config"
	"github.com/studyslice/studyslice/internal/events"
	"github.com/studyslice/studyslice/internal/logging"
	"github.com/studyslice/studyslice/internal/playback"
	"github.com/studyslice/studyslice/internal/session"
	"github.com/studyslice/studyslice/internal/timeline"
	"github.com/studyslice/studyslice/internal/transfer"
	"github.com/studyslice/studyslice/internal/tui"
	"github.com/studyslice/studyslice/internal/upload"
)

const logFilename = "studyslice.log"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	demo := flag.Bool("demo", false, "simulate the upload without contacting the coordinator")
	catalogURL := flag.String("catalog", "", "clip document URL or path (overrides "+config.EnvCatalogURL+")")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <video file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return errors.New("exactly one video file is required")
	}

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir(), logFilename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	logger := logging.NewLoggerTo(logFile, cfg.LogLevel())
	logger.Info("starting studyslice", "version", config.Version, "data_dir", cfg.DataDir())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer notifier.Close()

	previews := playback.NewServer(logger)
	if err := previews.Start(ctx, cfg.PlaybackPort()); err != nil {
		return err
	}

	file, err := upload.OpenFile(flag.Arg(0))
	if err != nil {
		return err
	}

	navigated := make(chan string, 1)
	machine := upload.NewMachine(upload.Config{
		Transfer: transfer.NewClient(cfg.CoordinatorURL(), cfg.RequestTimeout(), logger),
		Store:    store,
		Notifier: notifier,
		Previews: previews,
		Navigator: func(sessionID string) {
			select {
			case navigated <- sessionID:
			default:
			}
		},
		Observer:            progressPrinter(os.Stdout),
		DisableAutoFallback: !cfg.DemoModeEnabled(),
		Timings:             upload.Timings{FallbackDelay: cfg.FallbackDelay()},
		Logger:              logger,
	})
	defer machine.Close()

	if err := machine.Submit(file); err != nil {
		return fmt.Errorf("cannot upload %s: %w", file.Name, err)
	}
	if *demo {
		err = machine.StartDemo()
	} else {
		err = machine.Start()
	}
	if err != nil {
		return err
	}

	final, err := machine.Wait(ctx, func(s upload.Snapshot) bool {
		return s.Phase == upload.PhaseCompleted || (s.Phase == upload.PhaseFailed && !s.FallbackPending)
	})
	fmt.Println()
	if err != nil {
		return err
	}
	if final.Phase == upload.PhaseFailed {
		return fmt.Errorf("upload failed: %w", final.LastError)
	}

	sessionID := machine.SessionID()
	select {
	case sessionID = <-navigated:
	default:
	}
	return showResults(ctx, cfg, logger, store, sessionID, *catalogURL)
}

func showResults(ctx context.Context, cfg config.Config, logger *slog.Logger, store session.Store, sessionID, catalogURL string) error {
	handoff, err := store.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("failed to read session handoff: %w", err)
		}
		logger.Warn("no handoff for session", "session_id", sessionID)
		handoff = nil
	}

	if catalogURL == "" {
		catalogURL = cfg.CatalogURL()
	}
	loader := catalog.WithFallback(catalog.NewFetcher(catalogURL, logger), catalog.FallbackClipSet(), logger)
	clips := loader.Load(ctx)

	source := ""
	if handoff != nil {
		source = handoff.MediaReference
	}
	player := tui.NewPlayer(source, 0)

	engine := timeline.New(timeline.Config{
		Seeker:          player,
		Logger:          logger,
		AutoSelectFirst: cfg.AutoSelectFirst(),
	})
	engine.Load(clips)
	player.SetDuration(engine.State().TotalDurationSeconds)

	model := tui.NewModel(tui.Config{
		Engine:    engine,
		Player:    player,
		Handoff:   handoff,
		ExportDir: filepath.Join(cfg.DataDir(), "exports"),
		Logger:    logger,
	})

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("results view: %w", err)
	}
	return nil
}

func newSessionStore(cfg config.Config) (session.Store, func(), error) {
	if cfg.SessionBackend() != "redis" {
		return session.NewMemoryStore(cfg.SessionTTL()), func() {}, nil
	}
	rs, err := session.NewRedisStore(session.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword(),
		DB:       cfg.RedisDB(),
		TTL:      cfg.SessionTTL(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect session store: %w", err)
	}
	return rs, func() { rs.Close() }, nil
}

func newNotifier(cfg config.Config, logger *slog.Logger) (events.Notifier, error) {
	if len(cfg.KafkaBrokers()) == 0 {
		return events.NewLogNotifier(logger), nil
	}
	n, err := events.NewKafkaNotifier(events.KafkaConfig{
		Brokers: cfg.KafkaBrokers(),
		Topic:   cfg.KafkaTopic(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event notifier: %w", err)
	}
	return n, nil
}

// progressPrinter redraws a single status line for every snapshot.
func progressPrinter(w io.Writer) upload.Observer {
	return func(s upload.Snapshot) {
		name := ""
		if s.File != nil {
			name = s.File.Name
		}
		line := fmt.Sprintf("%-18s %3d%%  %s", s.Phase, s.Progress, name)
		if s.Phase == upload.PhaseFailed && s.LastError != nil {
			line += "  " + s.LastError.Error()
			if s.FallbackPending {
				line += " (switching to demo upload)"
			}
		}
		fmt.Fprintf(w, "\r\033[K%s", line)
	}
}
