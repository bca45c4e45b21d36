package game

import "fmt"

// SeatCount is the fixed number of players in every record this pipeline
// accepts; anything else is malformed.
const SeatCount = 4

// Seat is one player's persisted columns in a flattened row.
type Seat struct {
	Level        int
	Score        int
	GradingScore int
}

/// Row is the flattened, positional representation written to the games table:
// id, mode, endTime, then level/score/gradingScore for each of the four seats
// in API order.
type Row struct {
	ID      string
	Mode    int
	EndTime int64
	Seats   [SeatCount]Seat
}

// ValidationError marks a record that cannot be flattened into a Row. The
// record is skipped; it never produces a partial row.
type ValidationError struct {
	GameID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.GameID == "" {
		return fmt.Sprintf("invalid game record: %s", e.Reason)
	}
	return fmt.Sprintf("invalid game record %s: %s", e.GameID, e.Reason)
}

// Flatten converts a Game into its Row form. Seats keep the API's player
// order; they are never re-sorted. fallback supplies the mode for records
// missing modeId (the API omits it on some historical records).
func Flatten(g Game, fallback Mode) (Row, error) {
	id := g.Key()
	if id == "" {
		return Row{}, &ValidationError{Reason: "missing match id"}
	}
	if len(g.Players) != SeatCount {
		return Row{}, &ValidationError{
			GameID: id,
			Reason: fmt.Sprintf("expected %d players, got %d", SeatCount, len(g.Players)),
		}
	}
	mode := g.ModeID
	if mode == 0 {
		if fallback == 0 {
			return Row{}, &ValidationError{GameID: id, Reason: "missing modeId and no fallback mode"}
		}
		mode = int(fallback)
	}

	row := Row{
		ID:      id,
		Mode:    mode,
		EndTime: g.EndSeconds(),
	}
	for i, p := range g.Players {
		row.Seats[i] = Seat{
			Level:        p.Level,
			Score:        p.Score,
			GradingScore: p.GradingScore,
		}
	}
	return row, nil
}
