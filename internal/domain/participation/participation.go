// Package participation derives the per-game and per-event facts that are
// persisted for every processed game.
package participation

import "github.com/okian/tourneyrank/internal/domain/model"

// Ratings is the read side of the pool manager.
type Ratings interface {
	RatingOrDefault(p model.Pool, id model.PlayerID) model.RatingState
}

// GameFact is one player's finish in one game and their format-pool rating
// right after it.
type GameFact struct {
	Game   model.GameKey
	Player model.Player
	Rank   int
	Rating model.RatingState
}

// EventKey is the natural key of an event participation.
type EventKey struct {
	Event  model.EventID
	Player model.PlayerID
}

// EventFact is a player's running record within one event.
type EventFact struct {
	Event    model.EventID
	Player   model.Player
	GamesWon int
	Rating   model.RatingState
}

// Key returns the natural key.
func (f EventFact) Key() EventKey {
	return EventKey{Event: f.Event, Player: f.Player.ID}
}

// Builder accumulates facts in ledger order. Observe must be called after
// the game was applied to the pools.
type Builder struct {
	ratings Ratings
	games   []GameFact
	events  map[EventKey]*EventFact
	order   []EventKey
}

// NewBuilder creates an empty builder reading snapshots from ratings.
func NewBuilder(ratings Ratings) *Builder {
	return &Builder{
		ratings: ratings,
		events:  make(map[EventKey]*EventFact),
	}
}

// Observe records the facts of one processed game.
func (b *Builder) Observe(game model.Game) {
	format := game.Event.FormatPool()
	for _, pl := range game.Placements {
		snap := b.ratings.RatingOrDefault(format, pl.Player.ID)
		b.games = append(b.games, GameFact{
			Game:   game.Key(),
			Player: pl.Player,
			Rank:   pl.Rank,
			Rating: snap,
		})

		key := EventKey{Event: game.Event.ID, Player: pl.Player.ID}
		ef, ok := b.events[key]
		if !ok {
			ef = &EventFact{Event: game.Event.ID, Player: pl.Player}
			b.events[key] = ef
			b.order = append(b.order, key)
		}
		// Ties at the top all count as wins.
		if pl.Rank == 1 {
			ef.GamesWon++
		}
		ef.Rating = snap
	}
}

// GameFacts returns every game fact in ledger order.
func (b *Builder) GameFacts() []GameFact {
	out := make([]GameFact, len(b.games))
	copy(out, b.games)
	return out
}

// EventFacts returns every event fact in first-appearance order.
func (b *Builder) EventFacts() []EventFact {
	out := make([]EventFact, len(b.order))
	for i, k := range b.order {
		out[i] = *b.events[k]
	}
	return out
}

// EventFact returns the running record of one player in one event.
func (b *Builder) EventFact(key EventKey) (EventFact, bool) {
	ef, ok := b.events[key]
	if !ok {
		return EventFact{}, false
	}
	return *ef, true
}
