// Package pool owns rating state per (player, pool) and replays games into it.
package pool

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/rating"
	"github.com/okian/tourneyrank/pkg/logger"
	"github.com/okian/tourneyrank/pkg/metrics"
)

// Standing is one exported ranking row.
type Standing struct {
	Player model.Player
	State  model.RatingState
}

// PlayerHistory is the chronological snapshots of one player within an event.
type PlayerHistory struct {
	Player    model.Player
	Snapshots []model.RatingState
}

// EventHistory holds the per-player histories of one event, players in
// first-appearance order.
type EventHistory struct {
	Event   model.Event
	Players []PlayerHistory
}

// Result is what one processed game produced.
type Result struct {
	Game       model.Game
	FormatPool model.Pool
	AllTime    []model.RatingState // aligned with Game.Placements
	Format     []model.RatingState // aligned with Game.Placements
}

// book is the state of one pool. order keeps first-insertion order, which
// breaks ordinal ties in Finalize.
type book struct {
	order   []model.PlayerID
	players map[model.PlayerID]model.Player
	states  map[model.PlayerID]model.RatingState
}

func newBook() *book {
	return &book{
		players: make(map[model.PlayerID]model.Player),
		states:  make(map[model.PlayerID]model.RatingState),
	}
}

type eventBook struct {
	event     model.Event
	order     []model.PlayerID
	players   map[model.PlayerID]model.Player
	snapshots map[model.PlayerID][]model.RatingState
}

// Manager applies games in ledger order. It is not safe for concurrent use;
// replay is single threaded.
type Manager struct {
	model     rating.Model
	transform rating.Transform
	logger    logger.Logger

	books      map[model.Pool]*book
	events     map[model.EventID]*eventBook
	eventOrder []model.EventID

	defaultSnapshot model.RatingState
}

// NewManager creates a Manager with empty pools.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		model:     rating.NewPlackettLuce(),
		transform: rating.DefaultTransform,
		books:     make(map[model.Pool]*book, len(model.Pools)),
		events:    make(map[model.EventID]*eventBook),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("pool")
	}
	for _, p := range model.Pools {
		m.books[p] = newBook()
	}
	m.defaultSnapshot = m.snapshot(m.model.Prior())
	return m
}

// snapshot fills in the display ordinal.
func (m *Manager) snapshot(s model.RatingState) model.RatingState {
	s.Ordinal = m.transform.Apply(m.model.Ordinal(s))
	return s
}

// DefaultSnapshot is the prior every new player starts from, with its
// display ordinal.
func (m *Manager) DefaultSnapshot() model.RatingState {
	return m.defaultSnapshot
}

// EnsurePlayer creates a prior for player in pool if it has none.
func (m *Manager) EnsurePlayer(p model.Pool, player model.Player) {
	b := m.books[p]
	if _, ok := b.states[player.ID]; ok {
		return
	}
	b.order = append(b.order, player.ID)
	b.players[player.ID] = player
	b.states[player.ID] = m.defaultSnapshot
}

// ApplyGame rates game in pool and overwrites every participant's state.
// The returned posteriors are aligned with game.Placements.
func (m *Manager) ApplyGame(p model.Pool, game model.Game) ([]model.RatingState, error) {
	out, err := m.rate(p, game, false)
	if err != nil {
		return nil, err
	}
	m.commit(p, game, out)
	return out, nil
}

// rate computes the posteriors of game in pool without touching state.
// With lazy set, players missing from the pool start from the default prior.
func (m *Manager) rate(p model.Pool, game model.Game, lazy bool) ([]model.RatingState, error) {
	b := m.books[p]
	priors := make([]model.RatingState, len(game.Placements))
	for i, pl := range game.Placements {
		s, ok := b.states[pl.Player.ID]
		switch {
		case ok:
		case lazy:
			s = m.defaultSnapshot
		default:
			return nil, fmt.Errorf("%w: %s in %s (game %s)", ErrUnknownPlayer, pl.Player.Name, p, game.Key())
		}
		priors[i] = s
	}

	start := time.Now()
	post, err := m.model.Rate(priors, game.Ranks())
	metrics.RecordModelLatency(time.Since(start))
	if err != nil {
		metrics.RecordModelError()
		return nil, fmt.Errorf("rate game %s in %s: %w", game.Key(), p, err)
	}
	if len(post) != len(priors) {
		metrics.RecordModelError()
		return nil, fmt.Errorf("%w: game %s: %d priors, %d posteriors", ErrModelArity, game.Key(), len(priors), len(post))
	}

	out := make([]model.RatingState, len(post))
	for i := range post {
		out[i] = m.snapshot(post[i])
	}
	return out, nil
}

func (m *Manager) commit(p model.Pool, game model.Game, states []model.RatingState) {
	b := m.books[p]
	for i, pl := range game.Placements {
		m.EnsurePlayer(p, pl.Player)
		b.states[pl.Player.ID] = states[i]
	}
}

// Process routes one game: all_time always, plus exactly one format pool,
// and appends each participant's all_time posterior to the event history.
// Both pools are rated before either is written, so a failed game leaves
// the Manager as it was after the previous one.
func (m *Manager) Process(ctx context.Context, game model.Game) (Result, error) {
	format := game.Event.FormatPool()

	allTime, err := m.rate(model.PoolAllTime, game, true)
	if err != nil {
		return Result{}, err
	}
	formatStates, err := m.rate(format, game, true)
	if err != nil {
		return Result{}, err
	}
	m.commit(model.PoolAllTime, game, allTime)
	m.commit(format, game, formatStates)

	eb := m.eventBook(game.Event)
	for i, pl := range game.Placements {
		if _, ok := eb.snapshots[pl.Player.ID]; !ok {
			eb.order = append(eb.order, pl.Player.ID)
			eb.players[pl.Player.ID] = pl.Player
		}
		eb.snapshots[pl.Player.ID] = append(eb.snapshots[pl.Player.ID], allTime[i])
	}

	metrics.RecordGameProcessed()
	metrics.UpdatePoolPlayers(model.PoolAllTime.String(), m.Len(model.PoolAllTime))
	metrics.UpdatePoolPlayers(format.String(), m.Len(format))
	m.logger.Debug(ctx, "game applied",
		logger.String("game", game.Key().String()),
		logger.String("pool", format.String()),
		logger.Int("participants", len(game.Placements)))

	return Result{Game: game, FormatPool: format, AllTime: allTime, Format: formatStates}, nil
}

func (m *Manager) eventBook(e model.Event) *eventBook {
	eb, ok := m.events[e.ID]
	if !ok {
		eb = &eventBook{
			event:     e,
			players:   make(map[model.PlayerID]model.Player),
			snapshots: make(map[model.PlayerID][]model.RatingState),
		}
		m.events[e.ID] = eb
		m.eventOrder = append(m.eventOrder, e.ID)
	}
	return eb
}

// Rating returns the current state of a player in pool.
func (m *Manager) Rating(p model.Pool, id model.PlayerID) (model.RatingState, bool) {
	s, ok := m.books[p].states[id]
	return s, ok
}

// RatingOrDefault returns the player's state in pool, or the default prior
// snapshot when the player never played a game that feeds pool.
func (m *Manager) RatingOrDefault(p model.Pool, id model.PlayerID) model.RatingState {
	if s, ok := m.Rating(p, id); ok {
		return s
	}
	return m.defaultSnapshot
}

// Len returns the number of players in pool.
func (m *Manager) Len(p model.Pool) int {
	return len(m.books[p].order)
}

// Players returns every player known to all_time in first-appearance order.
func (m *Manager) Players() []model.Player {
	b := m.books[model.PoolAllTime]
	out := make([]model.Player, len(b.order))
	for i, id := range b.order {
		out[i] = b.players[id]
	}
	return out
}

// Finalize returns pool sorted by display ordinal, highest first. Ties keep
// insertion order.
func (m *Manager) Finalize(p model.Pool) []Standing {
	b := m.books[p]
	out := make([]Standing, len(b.order))
	for i, id := range b.order {
		out[i] = Standing{Player: b.players[id], State: m.snapshot(b.states[id])}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].State.Ordinal > out[j].State.Ordinal
	})
	return out
}

// History returns every event's history, events and players in
// first-appearance order.
func (m *Manager) History() []EventHistory {
	out := make([]EventHistory, 0, len(m.eventOrder))
	for _, id := range m.eventOrder {
		out = append(out, m.events[id].history())
	}
	return out
}

// EventHistory returns the history of one event.
func (m *Manager) EventHistory(id model.EventID) (EventHistory, bool) {
	eb, ok := m.events[id]
	if !ok {
		return EventHistory{}, false
	}
	return eb.history(), true
}

func (eb *eventBook) history() EventHistory {
	eh := EventHistory{Event: eb.event, Players: make([]PlayerHistory, 0, len(eb.order))}
	for _, pid := range eb.order {
		snaps := make([]model.RatingState, len(eb.snapshots[pid]))
		copy(snaps, eb.snapshots[pid])
		eh.Players = append(eh.Players, PlayerHistory{Player: eb.players[pid], Snapshots: snaps})
	}
	return eh
}
