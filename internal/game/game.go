// Package game defines the domain types for four-player Mahjong Soul match
// records as served by the Amae Koromo API, plus the flattened row shape the
// store persists.
package game

import (
	"fmt"
	"strconv"
)

// Mode identifies the game format/tier a match was played in.
type Mode int

// Four-player south-round room tiers tracked by this pipeline.
const (
	ModeGoldSouth   Mode = 9
	ModeJadeSouth   Mode = 12
	ModeThroneSouth Mode = 16
)

// Known reports whether the mode is one of the tracked room tiers.
func (m Mode) Known() bool {
	switch m {
	case ModeGoldSouth, ModeJadeSouth, ModeThroneSouth:
		return true
	}
	return false
}

func (m Mode) String() string {
	switch m {
	case ModeGoldSouth:
		return "gold-south"
	case ModeJadeSouth:
		return "jade-south"
	case ModeThroneSouth:
		return "throne-south"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode resolves a configuration value to a Mode. It accepts the tier
// names used by String as well as raw numeric IDs.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "gold-south":
		return ModeGoldSouth, nil
	case "jade-south":
		return ModeJadeSouth, nil
	case "throne-south":
		return ModeThroneSouth, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown mode %q", s)
	}
	m := Mode(n)
	if !m.Known() {
		return 0, fmt.Errorf("unknown mode id %d", n)
	}
	return m, nil
}

// Player is one seat's final result inside a match record.
type Player struct {
	AccountID    int64  `json:"accountId"`
	Nickname     string `json:"nickname"`
	Level        int    `json:"level"`
	Score        int    `json:"score"`
	GradingScore int    `json:"gradingScore"`
}

// Game is a completed match as returned by the remote API. The API path
// parameters are milliseconds since epoch, but StartTime/EndTime here are
// seconds; see ToMillis/ToSeconds.
type Game struct {
	ID        string   `json:"_id"`
	ModeID    int      `json:"modeId"`
	UUID      string   `json:"uuid"`
	StartTime int64    `json:"startTime"`
	EndTime   int64    `json:"endTime"`
	Players   []Player `json:"players"`
	Masked    bool     `json:"_masked"`
}

// Key returns the unique match identifier, preferring _id over uuid.
func (g Game) Key() string {
	if g.ID != "" {
		return g.ID
	}
	return g.UUID
}

// EndSeconds returns the match end time in seconds since epoch. Records that
// omit endTime fall back to startTime.
func (g Game) EndSeconds() int64 {
	if g.EndTime != 0 {
		return ToSeconds(g.EndTime)
	}
	return ToSeconds(g.StartTime)
}

// unitThreshold separates second-precision from millisecond-precision epoch
// values: anything at or above 1e12 is taken to be milliseconds.
const unitThreshold = int64(1_000_000_000_000)

// ToMillis normalizes an epoch value of unknown precision to milliseconds.
func ToMillis(v int64) int64 {
	if v >= unitThreshold {
		return v
	}
	return v * 1000
}

// ToSeconds normalizes an epoch value of unknown precision to seconds.
func ToSeconds(v int64) int64 {
	if v >= unitThreshold {
		return v / 1000
	}
	return v
}
