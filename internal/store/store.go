// Package store persists flattened game rows into a relational games table.
//
// Two backends are provided: a file-backed SQLite database (the default) and
// Postgres. Both implement the same interface and the same idempotence
// contract: inserting a row whose match id already exists is a no-op, never an
// error and never a duplicate.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mjsoul-tools/soulcrawl/internal/game"
)

// ErrNotFound is returned by GetGame when no row matches the id.
var ErrNotFound = errors.New("game not found")

// Store is the persistence contract for flattened game rows.
type Store interface {
	// Init creates the games table if absent. Safe to call repeatedly.
	Init(ctx context.Context) error
	// UpsertGame writes one row. It reports true when a new row was
	// inserted and false when the id already existed.
	UpsertGame(ctx context.Context, row game.Row) (bool, error)
	// UpsertBatch writes a page of rows inside a single transaction and
	// returns how many were newly inserted. Correctness does not depend on
	// the transaction; every row is independently idempotent.
	UpsertBatch(ctx context.Context, rows []game.Row) (int, error)
	// GetGame reads one row back by match id, or ErrNotFound.
	GetGame(ctx context.Context, id string) (game.Row, error)
	// CountGames returns the number of stored rows.
	CountGames(ctx context.Context) (int64, error)
	Close() error
}

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and parameterizes a backend. For sqlite the DSN is a file
// path; for postgres a standard connection string.
type Config struct {
	Driver string
	DSN    string
}

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLite(cfg.DSN, logger)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
