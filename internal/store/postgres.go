package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mjsoul-tools/soulcrawl/internal/game"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	mode INTEGER,
	"endTime" BIGINT,
	player1_level INTEGER,
	player1_score INTEGER,
	"player1_gradingScore" INTEGER,
	player2_level INTEGER,
	player2_score INTEGER,
	"player2_gradingScore" INTEGER,
	player3_level INTEGER,
	player3_score INTEGER,
	"player3_gradingScore" INTEGER,
	player4_level INTEGER,
	player4_score INTEGER,
	"player4_gradingScore" INTEGER
);`

const pgInsert = `
INSERT INTO games (
	id, mode, "endTime",
	player1_level, player1_score, "player1_gradingScore",
	player2_level, player2_score, "player2_gradingScore",
	player3_level, player3_score, "player3_gradingScore",
	player4_level, player4_score, "player4_gradingScore"
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO NOTHING;`

const pgSelect = `
SELECT id, mode, "endTime",
	player1_level, player1_score, "player1_gradingScore",
	player2_level, player2_score, "player2_gradingScore",
	player3_level, player3_score, "player3_gradingScore",
	player4_level, player4_score, "player4_gradingScore"
FROM games WHERE id = $1;`

// pgxQuerier is the slice of pgxpool.Pool this store needs; pgxmock satisfies
// it in tests.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Postgres stores rows in a Postgres games table.
type Postgres struct {
	pool   pgxQuerier
	logger *zap.Logger
}

// NewPostgres connects a pgx pool using the given DSN.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresFromPool(pool, logger), nil
}

// NewPostgresFromPool wraps an existing pool or mock.
func NewPostgresFromPool(pool pgxQuerier, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}
}

// Init creates the games table if absent.
func (p *Postgres) Init(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("create games table: %w", err)
	}
	return nil
}

// UpsertGame inserts one row; a duplicate id is a silent no-op.
func (p *Postgres) UpsertGame(ctx context.Context, row game.Row) (bool, error) {
	tag, err := p.pool.Exec(ctx, pgInsert, insertArgs(row)...)
	if err != nil {
		return false, fmt.Errorf("insert game %s: %w", row.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertBatch writes a page of rows in one transaction.
func (p *Postgres) UpsertBatch(ctx context.Context, rows []game.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	for _, row := range rows {
		tag, err := tx.Exec(ctx, pgInsert, insertArgs(row)...)
		if err != nil {
			return inserted, fmt.Errorf("insert game %s: %w", row.ID, err)
		}
		if tag.RowsAffected() > 0 {
			inserted++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return inserted, nil
}

// GetGame reads a row back by id.
func (p *Postgres) GetGame(ctx context.Context, id string) (game.Row, error) {
	row, err := scanGameRow(p.pool.QueryRow(ctx, pgSelect, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Row{}, ErrNotFound
	}
	if err != nil {
		return game.Row{}, fmt.Errorf("get game %s: %w", id, err)
	}
	return row, nil
}

// CountGames returns the stored row count.
func (p *Postgres) CountGames(ctx context.Context) (int64, error) {
	var n int64
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM games;").Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
