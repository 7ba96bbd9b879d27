package repository

import (
	"context"

	"github.com/okian/tourneyrank/internal/domain/model"
)

// FaultFunc decides whether a store call fails. key is the natural key of
// the record, or nil for loads.
type FaultFunc func(ctx context.Context, family Family, op Operation, key any) error

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithFaults injects failures into store calls.
func WithFaults(f FaultFunc) Option {
	return func(s *MemoryStore) {
		s.faults = f
	}
}

// WithPlayers pre-registers player rows so UpdatePlayerRating can succeed.
func WithPlayers(ids ...model.PlayerID) Option {
	return func(s *MemoryStore) {
		for _, id := range ids {
			s.players[id] = playerRow{}
		}
	}
}
