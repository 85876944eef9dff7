// Package session carries the artifacts of a finished upload over to the
// results view. Entries expire with the session.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the session has no handoff, either
// because none was written or because it expired.
var ErrNotFound = errors.New("session handoff not found")

// StorageRef locates the uploaded object in the remote store.
type StorageRef struct {
	Bucket     string    `json:"bucket"`
	Key        string    `json:"key"`
	ExpiresIn  int       `json:"expires_in"`
	ObjectURL  string    `json:"object_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DemoMarker replaces StorageRef when the upload was simulated.
type DemoMarker struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Filename string `json:"filename"`
	DemoMode bool   `json:"demo_mode"`
}

// Handoff is what the upload flow leaves for the results flow.
// Exactly one of Storage and Demo is set.
type Handoff struct {
	TaskID         string      `json:"task_id"`
	MediaReference string      `json:"media_reference"`
	FileName       string      `json:"file_name"`
	FileSize       int64       `json:"file_size"`
	Storage        *StorageRef `json:"storage,omitempty"`
	Demo           *DemoMarker `json:"demo,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// IsDemo reports whether the handoff came from a simulated upload.
func (h *Handoff) IsDemo() bool {
	return h.Demo != nil && h.Demo.DemoMode
}

// Store keeps one handoff per session id.
type Store interface {
	Put(ctx context.Context, sessionID string, h Handoff) error
	Get(ctx context.Context, sessionID string) (*Handoff, error)
	Clear(ctx context.Context, sessionID string) error
}
