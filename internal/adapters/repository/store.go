// Package repository defines the external store the sync reconciler writes
// to, plus an in-memory implementation.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/tourneyrank/internal/domain/model"
)

// Family names an entity family of the external store.
type Family string

const (
	FamilyGames              Family = "games"
	FamilyGameParticipation  Family = "game_participation"
	FamilyEventParticipation Family = "event_participation"
	FamilyPlayerRatings      Family = "player_ratings"
)

// Families lists every family in sync order.
var Families = []Family{FamilyGames, FamilyGameParticipation, FamilyEventParticipation, FamilyPlayerRatings}

// Operation names a store call for metrics and fault injection.
type Operation string

const (
	OpLoad   Operation = "load"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
)

// GameParticipationKey is the natural key of a game participation row.
type GameParticipationKey struct {
	Game   int64
	Player model.PlayerID
}

// GameParticipationRow is one persisted (game, player) finish.
type GameParticipationRow struct {
	Game    int64
	Player  model.PlayerID
	Ranking int
	Rating  model.RatingState
}

// Key returns the natural key.
func (r GameParticipationRow) Key() GameParticipationKey {
	return GameParticipationKey{Game: r.Game, Player: r.Player}
}

// EventParticipationKey is the natural key of an event participation row.
type EventParticipationKey struct {
	Event  model.EventID
	Player model.PlayerID
}

// EventParticipationRow is one persisted (event, player) record.
type EventParticipationRow struct {
	Event    model.EventID
	Player   model.PlayerID
	GamesWon int
	Rating   model.RatingState
}

// Key returns the natural key.
func (r EventParticipationRow) Key() EventParticipationKey {
	return EventParticipationKey{Event: r.Event, Player: r.Player}
}

// Store is the access pattern the reconciler needs: one bulk read per
// family, then single-record inserts and updates. Nothing is ever deleted.
type Store interface {
	// LoadGames returns the surrogate id of every stored game.
	LoadGames(ctx context.Context) (map[model.GameKey]int64, error)
	LoadGameParticipation(ctx context.Context) (map[GameParticipationKey]GameParticipationRow, error)
	LoadEventParticipation(ctx context.Context) (map[EventParticipationKey]EventParticipationRow, error)
	// LoadPlayerRatings returns the current rating of every player that has one.
	LoadPlayerRatings(ctx context.Context) (map[model.PlayerID]model.RatingState, error)

	// Inserts tolerate an existing key, so a run whose warm-up read failed
	// converges instead of failing every record.

	// InsertGame stores a game and returns its surrogate id.
	InsertGame(ctx context.Context, key model.GameKey) (int64, error)
	InsertGameParticipation(ctx context.Context, row GameParticipationRow) error
	UpdateGameParticipation(ctx context.Context, row GameParticipationRow) error
	InsertEventParticipation(ctx context.Context, row EventParticipationRow) error
	UpdateEventParticipation(ctx context.Context, row EventParticipationRow) error
	// UpdatePlayerRating sets a player's current rating. Player rows are
	// owned by the registry; a missing row returns ErrNotFound.
	UpdatePlayerRating(ctx context.Context, id model.PlayerID, rating model.RatingState) error

	Close() error
}

// ReferenceWriter is implemented by stores that can mirror the event and
// player reference tables, for deployments that own them locally.
type ReferenceWriter interface {
	UpsertEvents(ctx context.Context, events []model.Event) error
	UpsertPlayers(ctx context.Context, players []model.Player) error
}

// EncodeRating renders the updated_rating JSON column.
func EncodeRating(s model.RatingState) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode rating: %w", err)
	}
	return b, nil
}

// DecodeRating parses the updated_rating JSON column.
func DecodeRating(b []byte) (model.RatingState, error) {
	var s model.RatingState
	if err := json.Unmarshal(b, &s); err != nil {
		return model.RatingState{}, fmt.Errorf("%w: %v", ErrBadRating, err)
	}
	return s, nil
}
