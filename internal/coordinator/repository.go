package coordinator

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studyslice/studyslice/internal/db"
)

const (
	SlotStatusIssued  = "issued"
	SlotStatusExpired = "expired"
)

// SlotRecord is one issued write grant in the ledger.
type SlotRecord struct {
	ID        string
	Filename  string
	Bucket    string
	Key       string
	Status    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repository interface {
	CreateSlot(ctx context.Context, slot *SlotRecord) error
	GetSlot(ctx context.Context, id string) (*SlotRecord, error)
	ListSlotsByFilename(ctx context.Context, filename string) ([]*SlotRecord, error)
	ExpireSlots(ctx context.Context, now time.Time) (int64, error)
}

type SQLiteRepository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *SQLiteRepository {
	return &SQLiteRepository{db: database}
}

func NewSlotID() string {
	return uuid.New().String()
}

func (r *SQLiteRepository) CreateSlot(ctx context.Context, s *SlotRecord) error {
	if s.ID == "" {
		s.ID = NewSlotID()
	}
	if s.Status == "" {
		s.Status = SlotStatusIssued
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO slots (id, filename, bucket, object_key, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Filename, s.Bucket, s.Key, s.Status,
		s.ExpiresAt.UTC().Format(db.TimeLayout), s.CreatedAt.UTC().Format(db.TimeLayout))
	return err
}

// GetSlot returns nil, nil when no slot has the id.
func (r *SQLiteRepository) GetSlot(ctx context.Context, id string) (*SlotRecord, error) {
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, filename, bucket, object_key, status, expires_at, created_at
		FROM slots WHERE id = ?
	`, id)

	s, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) ListSlotsByFilename(ctx context.Context, filename string) ([]*SlotRecord, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, filename, bucket, object_key, status, expires_at, created_at
		FROM slots WHERE filename = ? ORDER BY created_at DESC
	`, filename)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []*SlotRecord
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *SQLiteRepository) ExpireSlots(ctx context.Context, now time.Time) (int64, error) {
	return r.db.ExpireSlots(ctx, now)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSlot(row scanner) (*SlotRecord, error) {
	var s SlotRecord
	var expiresAt, createdAt string
	if err := row.Scan(&s.ID, &s.Filename, &s.Bucket, &s.Key, &s.Status, &expiresAt, &createdAt); err != nil {
		return nil, err
	}
	s.ExpiresAt, _ = time.Parse(db.TimeLayout, expiresAt)
	s.CreatedAt, _ = time.Parse(db.TimeLayout, createdAt)
	return &s, nil
}

// SweepSlots expires lapsed slots every interval until ctx is done.
func SweepSlots(ctx context.Context, repo Repository, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := repo.ExpireSlots(ctx, now)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("failed to expire slots", "error", err)
				}
				continue
			}
			if n > 0 {
				logger.Info("expired slots", "count", n)
			}
		}
	}
}
