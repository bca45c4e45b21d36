// Package fetcher implements the pagination loop that walks the game-record
// API backwards in time and hands each page to the store.
//
// The cursor is an end-timestamp upper bound in milliseconds. Response records
// carry second-precision end times, so after each page the cursor moves to
// the oldest record's end time (converted to milliseconds) minus one. When
// second precision would leave the cursor on the same second, a full one
// second step back is forced so the loop always makes progress.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mjsoul-tools/soulcrawl/internal/game"
	"github.com/mjsoul-tools/soulcrawl/internal/progress"
)

// Pager fetches one page of records; the amae client satisfies it.
type Pager interface {
	FetchPage(ctx context.Context, mode game.Mode, endMs, startMs int64, limit int) ([]game.Game, error)
}

// RecordStore is the slice of the store the runner needs.
type RecordStore interface {
	UpsertBatch(ctx context.Context, rows []game.Row) (int, error)
}

// Options parameterize one fetch run. All timestamps are epoch milliseconds.
type Options struct {
	Mode game.Mode
	// StartMs is the lower bound of the window; the run stops once the
	// cursor would cross it. Records older than the bound that arrive on
	// the final page are still stored (emit-all policy); downstream range
	// filters trim them.
	StartMs int64
	// EndMs is the initial upper-bound cursor, typically "now" or a resume
	// checkpoint from an earlier run's summary.
	EndMs int64
	// PageLimit is the per-request record cap. The remote treats it as a
	// soft cap and may return fewer records even when more exist.
	PageLimit int
	// MaxPages optionally caps the number of pages fetched; zero means
	// walk until the window is exhausted.
	MaxPages int
}

// Summary reports what a run accomplished. LastCursorMs is the resume point:
// passing it as the next run's EndMs continues where this run stopped.
type Summary struct {
	RunID        uuid.UUID
	Pages        int
	Fetched      int
	Inserted     int
	Skipped      int
	LastCursorMs int64
}

// RunError wraps a fatal run failure with the cursor that had not yet been
// fetched, so the run can resume from it.
type RunError struct {
	CursorMs int64
	Err      error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("fetch run failed at cursor %d: %v", e.CursorMs, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Runner executes fetch runs sequentially: one request in flight, one batch
// write per page.
type Runner struct {
	pager   Pager
	store   RecordStore
	emitter progress.Emitter
	logger  *zap.Logger
}

// NewRunner builds a Runner. emitter may be nil when progress reporting is
// not wanted; a nil logger is replaced with a no-op one.
func NewRunner(pager Pager, store RecordStore, emitter progress.Emitter, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{pager: pager, store: store, emitter: emitter, logger: logger}
}

// Run walks pages from opts.EndMs down to opts.StartMs, flattening and
// storing every record. It terminates when a page comes back empty, when the
// oldest record crosses the lower bound, or when MaxPages is hit. On failure
// the returned error is a *RunError carrying the resume cursor; the Summary
// is valid either way.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	summary := Summary{RunID: uuid.New(), LastCursorMs: opts.EndMs}
	if err := validateOptions(opts); err != nil {
		return summary, err
	}

	logger := r.logger.With(
		zap.String("run_id", summary.RunID.String()),
		zap.Stringer("mode", opts.Mode),
	)
	started := time.Now()
	logger.Info("fetch run starting",
		zap.Int64("start_ms", opts.StartMs),
		zap.Int64("end_ms", opts.EndMs),
		zap.Int("page_limit", opts.PageLimit),
	)
	r.emit(progress.Event{
		RunID:    summary.RunID,
		TS:       time.Now().UTC(),
		Stage:    progress.StageRunStart,
		Mode:     opts.Mode,
		CursorMs: opts.EndMs,
	})

	cursor := opts.EndMs
	for {
		if err := ctx.Err(); err != nil {
			return summary, r.fail(summary, opts, started, cursor, err)
		}

		pageStart := time.Now()
		page, err := r.pager.FetchPage(ctx, opts.Mode, cursor, opts.StartMs, opts.PageLimit)
		if err != nil {
			return summary, r.fail(summary, opts, started, cursor, err)
		}
		if len(page) == 0 {
			logger.Info("no more records in range", zap.Int64("cursor_ms", cursor))
			break
		}

		rows, invalid := r.flattenPage(logger, page, opts.Mode)
		inserted, err := r.store.UpsertBatch(ctx, rows)
		if err != nil {
			return summary, r.fail(summary, opts, started, cursor, err)
		}
		skipped := invalid + (len(rows) - inserted)

		summary.Pages++
		summary.Fetched += len(page)
		summary.Inserted += inserted
		summary.Skipped += skipped
		summary.LastCursorMs = cursor
		r.emit(progress.Event{
			RunID:    summary.RunID,
			TS:       time.Now().UTC(),
			Stage:    progress.StagePageDone,
			Mode:     opts.Mode,
			CursorMs: cursor,
			Page:     summary.Pages,
			Fetched:  len(page),
			Inserted: inserted,
			Skipped:  skipped,
			Dur:      time.Since(pageStart),
		})
		logger.Debug("page stored",
			zap.Int("page", summary.Pages),
			zap.Int64("cursor_ms", cursor),
			zap.Int("fetched", len(page)),
			zap.Int("inserted", inserted),
			zap.Int("skipped", skipped),
		)

		next := nextCursor(cursor, oldestEndSeconds(page))
		if next < opts.StartMs {
			logger.Info("reached start of window", zap.Int64("cursor_ms", next))
			break
		}
		cursor = next
		summary.LastCursorMs = cursor

		if opts.MaxPages > 0 && summary.Pages >= opts.MaxPages {
			logger.Info("page cap reached", zap.Int("pages", summary.Pages))
			break
		}
	}

	r.emit(progress.Event{
		RunID:    summary.RunID,
		TS:       time.Now().UTC(),
		Stage:    progress.StageRunDone,
		Mode:     opts.Mode,
		CursorMs: summary.LastCursorMs,
		Fetched:  summary.Fetched,
		Inserted: summary.Inserted,
		Skipped:  summary.Skipped,
		Dur:      time.Since(started),
	})
	logger.Info("fetch run finished",
		zap.Int("pages", summary.Pages),
		zap.Int("fetched", summary.Fetched),
		zap.Int("inserted", summary.Inserted),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// flattenPage converts records to rows, skipping malformed ones. A single bad
// record never halts the run.
func (r *Runner) flattenPage(logger *zap.Logger, page []game.Game, mode game.Mode) ([]game.Row, int) {
	rows := make([]game.Row, 0, len(page))
	invalid := 0
	for _, g := range page {
		row, err := game.Flatten(g, mode)
		if err != nil {
			var verr *game.ValidationError
			if errors.As(err, &verr) {
				invalid++
				logger.Warn("skipping malformed record",
					zap.String("game_id", verr.GameID),
					zap.String("reason", verr.Reason),
				)
				continue
			}
			// Flatten only returns validation errors today; treat
			// anything else the same way rather than dropping the page.
			invalid++
			logger.Warn("skipping record", zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, invalid
}

func (r *Runner) fail(summary Summary, opts Options, started time.Time, cursor int64, err error) error {
	runErr := &RunError{CursorMs: cursor, Err: err}
	r.emit(progress.Event{
		RunID:    summary.RunID,
		TS:       time.Now().UTC(),
		Stage:    progress.StageRunError,
		Mode:     opts.Mode,
		CursorMs: cursor,
		Dur:      time.Since(started),
		Note:     err.Error(),
	})
	r.logger.Error("fetch run aborted",
		zap.String("run_id", summary.RunID.String()),
		zap.Int64("resume_cursor_ms", cursor),
		zap.Error(err),
	)
	return runErr
}

func (r *Runner) emit(evt progress.Event) {
	if r.emitter != nil {
		r.emitter.Emit(evt)
	}
}

func validateOptions(opts Options) error {
	if opts.Mode == 0 {
		return errors.New("mode is required")
	}
	if opts.EndMs < opts.StartMs {
		return fmt.Errorf("end_ms %d must be >= start_ms %d", opts.EndMs, opts.StartMs)
	}
	if opts.PageLimit <= 0 {
		return errors.New("page_limit must be > 0")
	}
	return nil
}

// oldestEndSeconds returns the minimum end time over the page, in seconds.
func oldestEndSeconds(page []game.Game) int64 {
	oldest := page[0].EndSeconds()
	for _, g := range page[1:] {
		if s := g.EndSeconds(); s < oldest {
			oldest = s
		}
	}
	return oldest
}

// nextCursor computes the next upper bound: one millisecond before the oldest
// record seen. The API boundary is inclusive, so stepping one unit back skips
// the already-fetched boundary record; sibling records sharing that exact
// second are still covered because the response is second-precision while the
// cursor is millisecond-precision. If the oldest record would not move the
// cursor to an earlier second, force a one-second step so the cursor strictly
// decreases.
func nextCursor(cursor, oldestSec int64) int64 {
	next := oldestSec*1000 - 1
	if next/1000 >= cursor/1000 {
		next = (cursor/1000)*1000 - 1000
		if next >= cursor {
			next = cursor - 1000
		}
	}
	return next
}
