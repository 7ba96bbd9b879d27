// Package model contains the typed records passed between the replay,
// participation and sync stages.
package model

import "fmt"

// PlayerID is the stable external player identifier.
type PlayerID int64

// EventID is the stable external event identifier.
type EventID int64

// Player is a rated participant.
type Player struct {
	ID   PlayerID
	Name string
}

// Event is immutable reference data for a tournament.
type Event struct {
	ID       EventID
	Name     string
	OneVsOne bool // scored head-to-head; otherwise multi-player
}

// FormatPool returns the format-specific pool games of this event feed.
func (e Event) FormatPool() Pool {
	if e.OneVsOne {
		return PoolOneVsOne
	}
	return PoolThreeOrFourPlayer
}

// Placement is one participant's finish in a game. Ranks use competition
// ranking, so ties share a value and gaps (1,1,3) are allowed.
type Placement struct {
	Player Player
	Rank   int
}

// GameKey is the natural key of a game: unique name within an event.
type GameKey struct {
	Event EventID
	Name  string
}

func (k GameKey) String() string {
	return fmt.Sprintf("%d/%s", k.Event, k.Name)
}

// Game is one ledger row. Seq is its zero-based position in the ledger,
// which defines rating chronology.
type Game struct {
	Seq        int
	Event      Event
	Name       string
	Placements []Placement
}

// Key returns the game's natural key.
func (g Game) Key() GameKey {
	return GameKey{Event: g.Event.ID, Name: g.Name}
}

// Ranks returns the finish ranks in placement order.
func (g Game) Ranks() []int {
	ranks := make([]int, len(g.Placements))
	for i, p := range g.Placements {
		ranks[i] = p.Rank
	}
	return ranks
}
