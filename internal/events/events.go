// Package events announces finished uploads to downstream processing.
// Publishing is best-effort: callers log failures and carry on.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/studyslice/studyslice/internal/logging"
)

// UploadCompleted is published once per finished upload task.
type UploadCompleted struct {
	TaskID      string    `json:"task_id"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	Bucket      string    `json:"bucket,omitempty"`
	Key         string    `json:"key,omitempty"`
	Demo        bool      `json:"demo"`
	CompletedAt time.Time `json:"completed_at"`
}

// Notifier publishes upload lifecycle events.
type Notifier interface {
	UploadCompleted(ctx context.Context, ev UploadCompleted) error
	Close() error
}

// LogNotifier writes events to the log. Used when no brokers are configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.WithComponent(logger, "events")}
}

func (n *LogNotifier) UploadCompleted(ctx context.Context, ev UploadCompleted) error {
	n.logger.Info("upload completed",
		"task_id", ev.TaskID,
		"file_name", ev.FileName,
		"file_size", ev.FileSize,
		"key", ev.Key,
		"demo", ev.Demo,
	)
	return nil
}

func (n *LogNotifier) Close() error {
	return nil
}
