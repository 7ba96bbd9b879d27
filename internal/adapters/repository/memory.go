package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/tourneyrank/internal/domain/model"
)

type playerRow struct {
	name   string
	rating *model.RatingState
}

// MemoryStore is an in-process Store. It backs tests and dry runs, counts
// every call and can inject faults. Inserts of an existing key overwrite,
// like the SQL adapters' ON CONFLICT clauses.
type MemoryStore struct {
	mu sync.Mutex

	nextGameID int64
	games      map[model.GameKey]int64
	gameParts  map[GameParticipationKey]GameParticipationRow
	eventParts map[EventParticipationKey]EventParticipationRow
	players    map[model.PlayerID]playerRow
	events     map[model.EventID]model.Event

	calls  map[Family]map[Operation]int
	faults FaultFunc
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		games:      make(map[model.GameKey]int64),
		gameParts:  make(map[GameParticipationKey]GameParticipationRow),
		eventParts: make(map[EventParticipationKey]EventParticipationRow),
		players:    make(map[model.PlayerID]playerRow),
		events:     make(map[model.EventID]model.Event),
		calls:      make(map[Family]map[Operation]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// call records the call and consults the fault hook. Must hold s.mu.
func (s *MemoryStore) call(ctx context.Context, f Family, op Operation, key any) error {
	if s.calls[f] == nil {
		s.calls[f] = make(map[Operation]int)
	}
	s.calls[f][op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.faults != nil {
		return s.faults(ctx, f, op, key)
	}
	return nil
}

// Calls returns how many times op was called on family.
func (s *MemoryStore) Calls(f Family, op Operation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[f][op]
}

// ResetCalls zeroes every call counter.
func (s *MemoryStore) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[Family]map[Operation]int)
}

// Count returns the number of stored records of family.
func (s *MemoryStore) Count(f Family) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch f {
	case FamilyGames:
		return len(s.games)
	case FamilyGameParticipation:
		return len(s.gameParts)
	case FamilyEventParticipation:
		return len(s.eventParts)
	case FamilyPlayerRatings:
		n := 0
		for _, p := range s.players {
			if p.rating != nil {
				n++
			}
		}
		return n
	}
	return 0
}

func (s *MemoryStore) LoadGames(ctx context.Context) (map[model.GameKey]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, FamilyGames, OpLoad, nil); err != nil {
		return nil, err
	}
	out := make(map[model.GameKey]int64, len(s.games))
	for k, v := range s.games {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) LoadGameParticipation(ctx context.Context) (map[GameParticipationKey]GameParticipationRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, FamilyGameParticipation, OpLoad, nil); err != nil {
		return nil, err
	}
	out := make(map[GameParticipationKey]GameParticipationRow, len(s.gameParts))
	for k, v := range s.gameParts {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) LoadEventParticipation(ctx context.Context) (map[EventParticipationKey]EventParticipationRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, FamilyEventParticipation, OpLoad, nil); err != nil {
		return nil, err
	}
	out := make(map[EventParticipationKey]EventParticipationRow, len(s.eventParts))
	for k, v := range s.eventParts {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) LoadPlayerRatings(ctx context.Context) (map[model.PlayerID]model.RatingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, FamilyPlayerRatings, OpLoad, nil); err != nil {
		return nil, err
	}
	out := make(map[model.PlayerID]model.RatingState)
	for id, p := range s.players {
		if p.rating != nil {
			out[id] = *p.rating
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertGame(ctx context.Context, key model.GameKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, FamilyGames, OpInsert, key); err != nil {
		return 0, err
	}
	if id, ok := s.games[key]; ok {
		return id, nil
	}
	s.nextGameID++
	s.games[key] = s.nextGameID
	return s.nextGameID, nil
}

func (s *MemoryStore) InsertGameParticipation(ctx context.Context, row GameParticipationRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, FamilyGameParticipation, OpInsert, row.Key()); err != nil {
		return err
	}
	s.gameParts[row.Key()] = row
	return nil
}

func (s *MemoryStore) UpdateGameParticipation(ctx context.Context, row GameParticipationRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, FamilyGameParticipation, OpUpdate, row.Key()); err != nil {
		return err
	}
	if _, ok := s.gameParts[row.Key()]; !ok {
		return fmt.Errorf("%w: game participation %v", ErrNotFound, row.Key())
	}
	s.gameParts[row.Key()] = row
	return nil
}

func (s *MemoryStore) InsertEventParticipation(ctx context.Context, row EventParticipationRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, FamilyEventParticipation, OpInsert, row.Key()); err != nil {
		return err
	}
	s.eventParts[row.Key()] = row
	return nil
}

func (s *MemoryStore) UpdateEventParticipation(ctx context.Context, row EventParticipationRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, FamilyEventParticipation, OpUpdate, row.Key()); err != nil {
		return err
	}
	if _, ok := s.eventParts[row.Key()]; !ok {
		return fmt.Errorf("%w: event participation %v", ErrNotFound, row.Key())
	}
	s.eventParts[row.Key()] = row
	return nil
}

func (s *MemoryStore) UpdatePlayerRating(ctx context.Context, id model.PlayerID, rating model.RatingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(ctx, FamilyPlayerRatings, OpUpdate, id); err != nil {
		return err
	}
	p, ok := s.players[id]
	if !ok {
		return fmt.Errorf("%w: player %d", ErrNotFound, id)
	}
	r := rating
	p.rating = &r
	s.players[id] = p
	return nil
}

// UpsertEvents mirrors the event table.
func (s *MemoryStore) UpsertEvents(_ context.Context, events []model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.events[e.ID] = e
	}
	return nil
}

// UpsertPlayers mirrors the player table, keeping current ratings.
func (s *MemoryStore) UpsertPlayers(_ context.Context, players []model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		row := s.players[p.ID]
		row.name = p.Name
		s.players[p.ID] = row
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
