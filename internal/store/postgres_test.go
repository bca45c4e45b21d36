package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjsoul-tools/soulcrawl/internal/game"
)

func newMockPostgres(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock, nil), mock
}

func TestPostgres_Init(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS games").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, p.Init(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertGame(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	row := testRow("pg1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO games")).
		WithArgs(insertArgs(row)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := p.UpsertGame(context.Background(), row)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertGameDuplicateIsNoOp(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	row := testRow("pg1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO games")).
		WithArgs(insertArgs(row)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := p.UpsertGame(context.Background(), row)
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertBatch(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	rows := []game.Row{testRow("a"), testRow("b")}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO games")).
		WithArgs(insertArgs(rows[0])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO games")).
		WithArgs(insertArgs(rows[1])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	inserted, err := p.UpsertBatch(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetGame(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	want := testRow("pg1")

	cols := []string{
		"id", "mode", "endTime",
		"player1_level", "player1_score", "player1_gradingScore",
		"player2_level", "player2_score", "player2_gradingScore",
		"player3_level", "player3_score", "player3_gradingScore",
		"player4_level", "player4_score", "player4_gradingScore",
	}
	mock.ExpectQuery("SELECT id, mode").
		WithArgs("pg1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(insertArgs(want)...))

	got, err := p.GetGame(context.Background(), "pg1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetGameNotFound(t *testing.T) {
	t.Parallel()

	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT id, mode").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := p.GetGame(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
