// Package types contains the response shapes shared by the API and exports.
package types

import (
	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/pool"
)

// Entry represents a leaderboard entry.
type Entry struct {
	Rank     int     `json:"rank"`
	PlayerID int64   `json:"player_id"`
	Player   string  `json:"player"`
	Mu       float64 `json:"mu"`
	Sigma    float64 `json:"sigma"`
	Ordinal  float64 `json:"ordinal"`
}

// Entries converts finalized standings into ranked entries. limit <= 0
// returns every standing.
func Entries(standings []pool.Standing, limit int) []Entry {
	n := len(standings)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		s := standings[i]
		out[i] = Entry{
			Rank:     i + 1,
			PlayerID: int64(s.Player.ID),
			Player:   s.Player.Name,
			Mu:       s.State.Mu,
			Sigma:    s.State.Sigma,
			Ordinal:  s.State.Ordinal,
		}
	}
	return out
}

// PlayerRatings is a player's rating in every pool, the default prior where
// the player never played that format.
type PlayerRatings struct {
	ID      int64                        `json:"id"`
	Name    string                       `json:"name"`
	Ratings map[string]model.RatingState `json:"ratings"`
}

// PlayerHistory is one player's snapshots within an event.
type PlayerHistory struct {
	PlayerID  int64               `json:"player_id"`
	Player    string              `json:"player"`
	Snapshots []model.RatingState `json:"snapshots"`
}

// EventHistory is the read shape of one event's history.
type EventHistory struct {
	EventID  int64           `json:"event_id"`
	Event    string          `json:"event"`
	OneVsOne bool            `json:"one_vs_one"`
	Players  []PlayerHistory `json:"players"`
}

// History converts a pool event history.
func History(eh pool.EventHistory) EventHistory {
	out := EventHistory{
		EventID:  int64(eh.Event.ID),
		Event:    eh.Event.Name,
		OneVsOne: eh.Event.OneVsOne,
		Players:  make([]PlayerHistory, len(eh.Players)),
	}
	for i, ph := range eh.Players {
		out.Players[i] = PlayerHistory{
			PlayerID:  int64(ph.Player.ID),
			Player:    ph.Player.Name,
			Snapshots: ph.Snapshots,
		}
	}
	return out
}
