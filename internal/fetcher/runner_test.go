package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjsoul-tools/soulcrawl/internal/game"
	"github.com/mjsoul-tools/soulcrawl/internal/progress"
)

type fakePager struct {
	pages   [][]game.Game
	errs    map[int]error
	cursors []int64
}

func (f *fakePager) FetchPage(_ context.Context, _ game.Mode, endMs, _ int64, _ int) ([]game.Game, error) {
	call := len(f.cursors)
	f.cursors = append(f.cursors, endMs)
	if err := f.errs[call]; err != nil {
		return nil, err
	}
	if call >= len(f.pages) {
		return nil, nil
	}
	return f.pages[call], nil
}

type fakeStore struct {
	rows     map[string]game.Row
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]game.Row)}
}

func (f *fakeStore) UpsertBatch(_ context.Context, rows []game.Row) (int, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	inserted := 0
	for _, row := range rows {
		if _, ok := f.rows[row.ID]; ok {
			continue
		}
		f.rows[row.ID] = row
		inserted++
	}
	return inserted, nil
}

type collectingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *collectingEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *collectingEmitter) stages() []progress.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]progress.Stage, len(c.events))
	for i, evt := range c.events {
		out[i] = evt.Stage
	}
	return out
}

func mkGame(id string, endSec int64, playerCount int) game.Game {
	g := game.Game{ID: id, ModeID: 12, EndTime: endSec}
	for i := 0; i < playerCount; i++ {
		g.Players = append(g.Players, game.Player{Level: 10301 + i, Score: 25000 - i})
	}
	return g
}

func TestRunner_EndToEnd(t *testing.T) {
	t.Parallel()

	// Window [1000s, 5000s]: page one covers 5000s and 4000s, page two
	// reaches past the lower bound.
	pager := &fakePager{pages: [][]game.Game{
		{mkGame("a", 5000, 4), mkGame("b", 4000, 4)},
		{mkGame("c", 3000, 4), mkGame("d", 500, 4)},
	}}
	store := newFakeStore()
	emitter := &collectingEmitter{}
	r := NewRunner(pager, store, emitter, nil)

	summary, err := r.Run(context.Background(), Options{
		Mode:      game.ModeJadeSouth,
		StartMs:   1_000_000,
		EndMs:     5_000_000,
		PageLimit: 2,
	})
	require.NoError(t, err)

	// Exactly two requests: the second cursor is one ms before the oldest
	// record of page one, and page two's oldest record crosses the bound.
	require.Equal(t, []int64{5_000_000, 3_999_999}, pager.cursors)

	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 4, summary.Fetched)
	assert.Equal(t, 4, summary.Inserted)
	assert.Equal(t, 0, summary.Skipped)
	assert.Len(t, store.rows, 4)
	// The out-of-range record on the final page is still stored.
	assert.Contains(t, store.rows, "d")

	assert.Equal(t, []progress.Stage{
		progress.StageRunStart,
		progress.StagePageDone,
		progress.StagePageDone,
		progress.StageRunDone,
	}, emitter.stages())
}

func TestRunner_EmptyPageTerminates(t *testing.T) {
	t.Parallel()

	pager := &fakePager{}
	store := newFakeStore()
	r := NewRunner(pager, store, nil, nil)

	summary, err := r.Run(context.Background(), Options{
		Mode:      game.ModeGoldSouth,
		StartMs:   1_000_000,
		EndMs:     5_000_000,
		PageLimit: 100,
	})
	require.NoError(t, err)
	assert.Len(t, pager.cursors, 1)
	assert.Zero(t, summary.Pages)
	assert.Empty(t, store.rows)
}

func TestRunner_CursorStrictlyDecreases(t *testing.T) {
	t.Parallel()

	// The second page claims a record newer than its own cursor; the
	// progress guard must still move the cursor backwards.
	pager := &fakePager{pages: [][]game.Game{
		{mkGame("a", 5000, 4)},
		{mkGame("b", 6000, 4)},
		{mkGame("c", 3000, 4)},
	}}
	store := newFakeStore()
	r := NewRunner(pager, store, nil, nil)

	_, err := r.Run(context.Background(), Options{
		Mode:      game.ModeJadeSouth,
		StartMs:   1_000_000,
		EndMs:     5_000_500,
		PageLimit: 1,
	})
	require.NoError(t, err)

	for i := 1; i < len(pager.cursors); i++ {
		assert.Less(t, pager.cursors[i], pager.cursors[i-1],
			"cursor must strictly decrease between requests")
	}
}

func TestRunner_MalformedRecordSkippedNotFatal(t *testing.T) {
	t.Parallel()

	pager := &fakePager{pages: [][]game.Game{
		{mkGame("ok", 5000, 4), mkGame("short", 4500, 3), mkGame("long", 4400, 5)},
	}}
	store := newFakeStore()
	r := NewRunner(pager, store, nil, nil)

	summary, err := r.Run(context.Background(), Options{
		Mode:      game.ModeThroneSouth,
		StartMs:   4_400_000,
		EndMs:     5_000_000,
		PageLimit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 2, summary.Skipped)
	assert.Len(t, store.rows, 1)
	assert.Contains(t, store.rows, "ok")
}

func TestRunner_DuplicateRowsCountAsSkipped(t *testing.T) {
	t.Parallel()

	pager := &fakePager{pages: [][]game.Game{
		{mkGame("dup", 5000, 4), mkGame("new", 4000, 4)},
	}}
	store := newFakeStore()
	store.rows["dup"] = game.Row{ID: "dup"}
	r := NewRunner(pager, store, nil, nil)

	summary, err := r.Run(context.Background(), Options{
		Mode:      game.ModeJadeSouth,
		StartMs:   4_000_000,
		EndMs:     5_000_000,
		PageLimit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRunner_FetchFailureCarriesResumeCursor(t *testing.T) {
	t.Parallel()

	pager := &fakePager{
		pages: [][]game.Game{{mkGame("a", 5000, 4), mkGame("b", 4000, 4)}},
		errs:  map[int]error{1: errors.New("connection reset")},
	}
	store := newFakeStore()
	emitter := &collectingEmitter{}
	r := NewRunner(pager, store, emitter, nil)

	summary, err := r.Run(context.Background(), Options{
		Mode:      game.ModeJadeSouth,
		StartMs:   1_000_000,
		EndMs:     5_000_000,
		PageLimit: 2,
	})
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, int64(3_999_999), runErr.CursorMs,
		"resume cursor names the page that was never fetched")

	// Page one's work is preserved in the summary.
	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, 2, summary.Inserted)
	assert.Len(t, store.rows, 2)

	stages := emitter.stages()
	assert.Equal(t, progress.StageRunError, stages[len(stages)-1])
}

func TestRunner_StoreFailureIsFatal(t *testing.T) {
	t.Parallel()

	pager := &fakePager{pages: [][]game.Game{{mkGame("a", 5000, 4)}}}
	store := newFakeStore()
	store.failWith = errors.New("disk full")
	r := NewRunner(pager, store, nil, nil)

	_, err := r.Run(context.Background(), Options{
		Mode:      game.ModeGoldSouth,
		StartMs:   1_000_000,
		EndMs:     5_000_000,
		PageLimit: 10,
	})
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, pager.cursors, 1)
}

func TestRunner_MaxPagesCapsTheWalk(t *testing.T) {
	t.Parallel()

	pager := &fakePager{pages: [][]game.Game{
		{mkGame("a", 5000, 4)},
		{mkGame("b", 4000, 4)},
	}}
	store := newFakeStore()
	r := NewRunner(pager, store, nil, nil)

	summary, err := r.Run(context.Background(), Options{
		Mode:      game.ModeJadeSouth,
		StartMs:   1_000_000,
		EndMs:     5_000_000,
		PageLimit: 1,
		MaxPages:  1,
	})
	require.NoError(t, err)
	assert.Len(t, pager.cursors, 1)
	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, int64(4_999_999), summary.LastCursorMs,
		"summary cursor resumes below the fetched page")
}

func TestRunner_OptionValidation(t *testing.T) {
	t.Parallel()

	r := NewRunner(&fakePager{}, newFakeStore(), nil, nil)

	_, err := r.Run(context.Background(), Options{StartMs: 1, EndMs: 2, PageLimit: 1})
	assert.Error(t, err, "mode is required")

	_, err = r.Run(context.Background(), Options{Mode: game.ModeJadeSouth, StartMs: 5, EndMs: 1, PageLimit: 1})
	assert.Error(t, err)

	_, err = r.Run(context.Background(), Options{Mode: game.ModeJadeSouth, StartMs: 1, EndMs: 5})
	assert.Error(t, err)
}

func TestRunner_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(&fakePager{}, newFakeStore(), nil, nil)
	_, err := r.Run(ctx, Options{
		Mode:      game.ModeJadeSouth,
		StartMs:   1_000_000,
		EndMs:     5_000_000,
		PageLimit: 1,
	})
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.ErrorIs(t, err, context.Canceled)
}
