// Package progress defines the events a fetch run emits as it walks pages,
// and a hub that fans them out to sinks without blocking the fetch loop.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mjsoul-tools/soulcrawl/internal/game"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported run stages.
const (
	StageRunStart Stage = "RUN_START"
	StagePageDone Stage = "PAGE_DONE"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
)

// Event is one milestone of a fetch run.
type Event struct {
	// RunID identifies the fetch run emitting the event.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage is the milestone kind.
	Stage Stage
	// Mode is the room tier being fetched.
	Mode game.Mode
	// CursorMs is the upper-bound cursor (ms) the stage relates to: the
	// requested cursor for PAGE_DONE, the resume point for RUN_ERROR.
	CursorMs int64
	// Page is the 1-based page number for PAGE_DONE events.
	Page int
	// Fetched, Inserted and Skipped carry record counts for the page, or
	// run totals on RUN_DONE.
	Fetched  int
	Inserted int
	Skipped  int
	// Dur is the page fetch+store latency, or total runtime on RUN_DONE.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StagePageDone:
		if e.Page < 1 {
			return errors.New("page done requires a page number")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
