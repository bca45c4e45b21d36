package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mjsoul-tools/soulcrawl/internal/game"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	mode INTEGER,
	endTime INTEGER,
	player1_level INTEGER,
	player1_score INTEGER,
	player1_gradingScore INTEGER,
	player2_level INTEGER,
	player2_score INTEGER,
	player2_gradingScore INTEGER,
	player3_level INTEGER,
	player3_score INTEGER,
	player3_gradingScore INTEGER,
	player4_level INTEGER,
	player4_score INTEGER,
	player4_gradingScore INTEGER
);`

const sqliteInsert = `
INSERT INTO games (
	id, mode, endTime,
	player1_level, player1_score, player1_gradingScore,
	player2_level, player2_score, player2_gradingScore,
	player3_level, player3_score, player3_gradingScore,
	player4_level, player4_score, player4_gradingScore
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING;`

const sqliteSelect = `
SELECT id, mode, endTime,
	player1_level, player1_score, player1_gradingScore,
	player2_level, player2_score, player2_gradingScore,
	player3_level, player3_score, player3_gradingScore,
	player4_level, player4_score, player4_gradingScore
FROM games WHERE id = ?;`

// SQLite is the file-backed default store.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens (creating if needed) the database file at path.
func NewSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set sqlite pragmas: %w", err)
	}
	return &SQLite{db: db, logger: logger}, nil
}

// Init creates the games table if absent.
func (s *SQLite) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create games table: %w", err)
	}
	return nil
}

// UpsertGame inserts one row; a duplicate id is a silent no-op.
func (s *SQLite) UpsertGame(ctx context.Context, row game.Row) (bool, error) {
	res, err := s.db.ExecContext(ctx, sqliteInsert, insertArgs(row)...)
	if err != nil {
		return false, fmt.Errorf("insert game %s: %w", row.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert game %s: rows affected: %w", row.ID, err)
	}
	return n > 0, nil
}

// UpsertBatch writes a page of rows in one transaction.
func (s *SQLite) UpsertBatch(ctx context.Context, rows []game.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, row := range rows {
		res, err := stmt.ExecContext(ctx, insertArgs(row)...)
		if err != nil {
			return inserted, fmt.Errorf("insert game %s: %w", row.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return inserted, nil
}

// GetGame reads a row back by id.
func (s *SQLite) GetGame(ctx context.Context, id string) (game.Row, error) {
	row, err := scanGameRow(s.db.QueryRowContext(ctx, sqliteSelect, id))
	if errors.Is(err, sql.ErrNoRows) {
		return game.Row{}, ErrNotFound
	}
	if err != nil {
		return game.Row{}, fmt.Errorf("get game %s: %w", id, err)
	}
	return row, nil
}

// CountGames returns the stored row count.
func (s *SQLite) CountGames(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM games;").Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
