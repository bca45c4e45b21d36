package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mjsoul-tools/soulcrawl/internal/progress"
)

// Snapshot is the most recent state of a fetch run, as observed through its
// progress events.
type Snapshot struct {
	RunID     uuid.UUID      `json:"run_id"`
	Stage     progress.Stage `json:"stage"`
	Mode      string         `json:"mode"`
	CursorMs  int64          `json:"cursor_ms"`
	Pages     int            `json:"pages"`
	Fetched   int            `json:"fetched"`
	Inserted  int            `json:"inserted"`
	Skipped   int            `json:"skipped"`
	StartedAt time.Time      `json:"started_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	LastError string         `json:"last_error,omitempty"`
}

// StatusSink folds progress events into a Snapshot for the status endpoint.
// A new RUN_START resets the counters, so the snapshot always describes the
// latest run.
type StatusSink struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStatusSink builds an empty StatusSink.
func NewStatusSink() *StatusSink {
	return &StatusSink{}
}

// Consume implements progress.Sink.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.snap = Snapshot{
				RunID:     evt.RunID,
				Stage:     evt.Stage,
				Mode:      evt.Mode.String(),
				CursorMs:  evt.CursorMs,
				StartedAt: evt.TS,
				UpdatedAt: evt.TS,
			}
		case progress.StagePageDone:
			s.snap.Stage = evt.Stage
			s.snap.CursorMs = evt.CursorMs
			s.snap.Pages = evt.Page
			s.snap.Fetched += evt.Fetched
			s.snap.Inserted += evt.Inserted
			s.snap.Skipped += evt.Skipped
			s.snap.UpdatedAt = evt.TS
		case progress.StageRunDone:
			s.snap.Stage = evt.Stage
			s.snap.CursorMs = evt.CursorMs
			s.snap.Fetched = evt.Fetched
			s.snap.Inserted = evt.Inserted
			s.snap.Skipped = evt.Skipped
			s.snap.UpdatedAt = evt.TS
		case progress.StageRunError:
			s.snap.Stage = evt.Stage
			s.snap.CursorMs = evt.CursorMs
			s.snap.LastError = evt.Note
			s.snap.UpdatedAt = evt.TS
		}
	}
	return nil
}

// Close implements progress.Sink.
func (s *StatusSink) Close(context.Context) error { return nil }

// Snapshot returns a copy of the current state.
func (s *StatusSink) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
