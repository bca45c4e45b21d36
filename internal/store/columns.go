package store

import "github.com/mjsoul-tools/soulcrawl/internal/game"

// The games table layout, shared by both backends: id, mode, endTime, then
// level/score/gradingScore for seats 1..4 in API order.

func insertArgs(r game.Row) []any {
	args := make([]any, 0, 15)
	args = append(args, r.ID, r.Mode, r.EndTime)
	for _, s := range r.Seats {
		args = append(args, s.Level, s.Score, s.GradingScore)
	}
	return args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGameRow(s rowScanner) (game.Row, error) {
	var r game.Row
	dest := make([]any, 0, 15)
	dest = append(dest, &r.ID, &r.Mode, &r.EndTime)
	for i := range r.Seats {
		dest = append(dest, &r.Seats[i].Level, &r.Seats[i].Score, &r.Seats[i].GradingScore)
	}
	err := s.Scan(dest...)
	return r, err
}
