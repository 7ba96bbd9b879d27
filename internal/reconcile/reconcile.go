// Package reconcile mirrors computed ratings into the external store with
// the fewest writes, so a full ledger replay can be synced any number of
// times without duplicating records.
package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/tourneyrank/internal/adapters/mq/queue"
	"github.com/okian/tourneyrank/internal/adapters/mq/worker"
	"github.com/okian/tourneyrank/internal/adapters/repository"
	"github.com/okian/tourneyrank/internal/domain/dedupe"
	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/participation"
	"github.com/okian/tourneyrank/pkg/logger"
	"github.com/okian/tourneyrank/pkg/metrics"
)

const defaultProgressEvery = 100

// PlayerRating is the current rating to mirror onto a player row.
type PlayerRating struct {
	Player model.PlayerID
	Rating model.RatingState
}

// Input is the freshly computed state of a full ledger replay.
type Input struct {
	Games         []model.Game
	GameFacts     []participation.GameFact
	EventFacts    []participation.EventFact
	PlayerRatings []PlayerRating
}

// Reconciler syncs one Input per Run. It is not safe for concurrent Runs.
type Reconciler struct {
	store         repository.Store
	workers       int
	progressEvery int
	runID         string
	logger        logger.Logger

	// Existing keys per family. A key is recorded before its insert is
	// submitted and unrecorded if the insert fails, so the next run
	// retries it.
	games      dedupe.Deduper[model.GameKey]
	gameParts  dedupe.Deduper[repository.GameParticipationKey]
	eventParts dedupe.Deduper[repository.EventParticipationKey]

	// Stored values from warm-up, read only during a run.
	gamePartVals  map[repository.GameParticipationKey]repository.GameParticipationRow
	eventPartVals map[repository.EventParticipationKey]repository.EventParticipationRow
	ratingVals    map[model.PlayerID]model.RatingState

	// counted holds keys already counted this run, per family.
	counted map[repository.Family]dedupe.Deduper[string]

	idMu    sync.RWMutex
	gameIDs map[model.GameKey]int64

	tally    *tally
	degraded []repository.Family
}

// New creates a Reconciler writing to store.
func New(store repository.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:         store,
		workers:       1,
		progressEvery: defaultProgressEvery,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("reconcile")
	}
	r.reset()
	return r
}

func (r *Reconciler) reset() {
	r.games = dedupe.NewInMemoryDeduper[model.GameKey]()
	r.gameParts = dedupe.NewInMemoryDeduper[repository.GameParticipationKey]()
	r.eventParts = dedupe.NewInMemoryDeduper[repository.EventParticipationKey]()
	r.gamePartVals = map[repository.GameParticipationKey]repository.GameParticipationRow{}
	r.eventPartVals = map[repository.EventParticipationKey]repository.EventParticipationRow{}
	r.ratingVals = map[model.PlayerID]model.RatingState{}
	r.gameIDs = map[model.GameKey]int64{}
	r.counted = make(map[repository.Family]dedupe.Deduper[string], len(repository.Families))
	for _, f := range repository.Families {
		r.counted[f] = dedupe.NewInMemoryDeduper[string]()
	}
	r.tally = newTally()
	r.degraded = nil
}

// Run warms up, then syncs every family in dependency order. Individual
// write failures are counted, never returned. An error is returned only
// when ctx ends the run early; the report then covers what was done.
func (r *Reconciler) Run(ctx context.Context, in Input) (Report, error) {
	start := time.Now()
	runID := r.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	r.reset()
	log := r.logger
	log.Info(ctx, "sync started",
		logger.String("run_id", runID),
		logger.Int("games", len(in.Games)),
		logger.Int("workers", r.workers))

	r.WarmUp(ctx)

	pool := worker.NewPool(r.workers, worker.WithPoolLogger(log.Named("writers")))
	pool.Start(ctx)
	defer func() {
		if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn(ctx, "writer shutdown incomplete", logger.Error(err))
		}
	}()

	phases := []struct {
		family repository.Family
		run    func(context.Context, *worker.Pool) error
	}{
		{repository.FamilyGames, func(ctx context.Context, p *worker.Pool) error { return r.syncGames(ctx, p, in.Games) }},
		{repository.FamilyGameParticipation, func(ctx context.Context, p *worker.Pool) error { return r.syncGameParticipation(ctx, p, in.GameFacts) }},
		{repository.FamilyEventParticipation, func(ctx context.Context, p *worker.Pool) error { return r.syncEventParticipation(ctx, p, in.EventFacts) }},
		{repository.FamilyPlayerRatings, func(ctx context.Context, p *worker.Pool) error { return r.syncPlayerRatings(ctx, p, in.PlayerRatings) }},
	}

	var runErr error
	for _, ph := range phases {
		err := ph.run(ctx, pool)
		// Game participation needs the ids of games inserted above, so
		// every phase is a barrier.
		if ferr := pool.Flush(context.WithoutCancel(ctx)); ferr != nil && err == nil {
			err = ferr
		}
		c := r.tally.snapshot()[ph.family]
		log.Info(ctx, "family synced",
			logger.String("family", string(ph.family)),
			logger.Int("inserted", c.Inserted),
			logger.Int("updated", c.Updated),
			logger.Int("unchanged", c.Unchanged),
			logger.Int("failed", c.Failed),
			logger.Int("skipped", c.Skipped))
		if err != nil {
			runErr = fmt.Errorf("sync %s: %w", ph.family, err)
			break
		}
	}

	rep := Report{
		RunID:    runID,
		Families: r.tally.snapshot(),
		Degraded: append([]repository.Family(nil), r.degraded...),
		Duration: time.Since(start),
	}
	log.Info(ctx, "sync finished",
		logger.String("run_id", runID),
		logger.Int("failed", rep.Failed()),
		logger.Duration("duration", rep.Duration))
	return rep, runErr
}

// WarmUp bulk-loads every family once. A failed read degrades that family
// to an empty set: everything is treated as new and the store's conflict
// handling absorbs the redundant inserts.
func (r *Reconciler) WarmUp(ctx context.Context) {
	if games, err := r.store.LoadGames(ctx); r.warm(ctx, repository.FamilyGames, err) {
		keys := make([]model.GameKey, 0, len(games))
		for k, id := range games {
			keys = append(keys, k)
			r.gameIDs[k] = id
		}
		r.games = dedupe.FromKeys(keys)
	}

	if rows, err := r.store.LoadGameParticipation(ctx); r.warm(ctx, repository.FamilyGameParticipation, err) {
		keys := make([]repository.GameParticipationKey, 0, len(rows))
		for k := range rows {
			keys = append(keys, k)
		}
		r.gameParts = dedupe.FromKeys(keys)
		r.gamePartVals = rows
	}

	if rows, err := r.store.LoadEventParticipation(ctx); r.warm(ctx, repository.FamilyEventParticipation, err) {
		keys := make([]repository.EventParticipationKey, 0, len(rows))
		for k := range rows {
			keys = append(keys, k)
		}
		r.eventParts = dedupe.FromKeys(keys)
		r.eventPartVals = rows
	}

	if ratings, err := r.store.LoadPlayerRatings(ctx); r.warm(ctx, repository.FamilyPlayerRatings, err) {
		r.ratingVals = ratings
	}
}

func (r *Reconciler) warm(ctx context.Context, f repository.Family, err error) bool {
	if err == nil {
		return true
	}
	r.degraded = append(r.degraded, f)
	metrics.RecordWarmupFailure(string(f))
	r.logger.Warn(ctx, "warm-up read failed, treating family as empty",
		logger.String("family", string(f)),
		logger.Error(err))
	return false
}

// count records o for key unless key was already counted this run.
func (r *Reconciler) count(ctx context.Context, f repository.Family, key string, o Outcome) {
	if o != OutcomeFailed && r.counted[f].SeenAndRecord(ctx, key) {
		return
	}
	r.tally.record(f, o)
}

func (r *Reconciler) progress(ctx context.Context, f repository.Family, done, total int) {
	if done%r.progressEvery == 0 || done == total {
		r.logger.Info(ctx, "sync progress",
			logger.String("family", string(f)),
			logger.Int("done", done),
			logger.Int("total", total))
	}
}

func (r *Reconciler) gameID(k model.GameKey) (int64, bool) {
	r.idMu.RLock()
	defer r.idMu.RUnlock()
	id, ok := r.gameIDs[k]
	return id, ok
}

func (r *Reconciler) setGameID(k model.GameKey, id int64) {
	r.idMu.Lock()
	r.gameIDs[k] = id
	r.idMu.Unlock()
}

func (r *Reconciler) syncGames(ctx context.Context, p *worker.Pool, games []model.Game) error {
	f := repository.FamilyGames
	for i, g := range games {
		key := g.Key()
		ck := key.String()
		// A game row is its own natural key, so a recognized game needs no write.
		if r.games.SeenAndRecord(ctx, key) {
			r.count(ctx, f, ck, OutcomeUnchanged)
			r.progress(ctx, f, i+1, len(games))
			continue
		}
		err := p.Submit(ctx, queue.Task{Key: ck, Run: func(ctx context.Context) error {
			id, err := r.store.InsertGame(ctx, key)
			if err != nil {
				r.games.Unrecord(ctx, key)
				r.count(ctx, f, ck, OutcomeFailed)
				return err
			}
			r.setGameID(key, id)
			r.count(ctx, f, ck, OutcomeInserted)
			return nil
		}})
		if err != nil {
			r.games.Unrecord(ctx, key)
			return err
		}
		r.progress(ctx, f, i+1, len(games))
	}
	return nil
}

func (r *Reconciler) syncGameParticipation(ctx context.Context, p *worker.Pool, facts []participation.GameFact) error {
	f := repository.FamilyGameParticipation
	for i, fact := range facts {
		id, ok := r.gameID(fact.Game)
		if !ok {
			r.logger.Debug(ctx, "skipping participation of unsynced game",
				logger.String("game", fact.Game.String()),
				logger.Int64("player", int64(fact.Player.ID)),
				logger.Error(repository.ErrNoGameID))
			r.count(ctx, f, fact.Game.String()+"#"+strconv.FormatInt(int64(fact.Player.ID), 10), OutcomeSkipped)
			continue
		}
		row := repository.GameParticipationRow{Game: id, Player: fact.Player.ID, Ranking: fact.Rank, Rating: fact.Rating}
		key := row.Key()
		ck := strconv.FormatInt(key.Game, 10) + "/" + strconv.FormatInt(int64(key.Player), 10)

		var err error
		if r.gameParts.SeenAndRecord(ctx, key) {
			if prev, ok := r.gamePartVals[key]; ok && prev == row {
				r.count(ctx, f, ck, OutcomeUnchanged)
			} else {
				err = p.Submit(ctx, queue.Task{Key: ck, Run: func(ctx context.Context) error {
					if err := r.store.UpdateGameParticipation(ctx, row); err != nil {
						r.count(ctx, f, ck, OutcomeFailed)
						return err
					}
					r.count(ctx, f, ck, OutcomeUpdated)
					return nil
				}})
			}
		} else {
			err = p.Submit(ctx, queue.Task{Key: ck, Run: func(ctx context.Context) error {
				if err := r.store.InsertGameParticipation(ctx, row); err != nil {
					r.gameParts.Unrecord(ctx, key)
					r.count(ctx, f, ck, OutcomeFailed)
					return err
				}
				r.count(ctx, f, ck, OutcomeInserted)
				return nil
			}})
			if err != nil {
				r.gameParts.Unrecord(ctx, key)
			}
		}
		if err != nil {
			return err
		}
		r.progress(ctx, f, i+1, len(facts))
	}
	return nil
}

func (r *Reconciler) syncEventParticipation(ctx context.Context, p *worker.Pool, facts []participation.EventFact) error {
	f := repository.FamilyEventParticipation
	for i, fact := range facts {
		row := repository.EventParticipationRow{Event: fact.Event, Player: fact.Player.ID, GamesWon: fact.GamesWon, Rating: fact.Rating}
		key := row.Key()
		ck := strconv.FormatInt(int64(key.Event), 10) + "/" + strconv.FormatInt(int64(key.Player), 10)

		var err error
		if r.eventParts.SeenAndRecord(ctx, key) {
			if prev, ok := r.eventPartVals[key]; ok && prev == row {
				r.count(ctx, f, ck, OutcomeUnchanged)
			} else {
				err = p.Submit(ctx, queue.Task{Key: ck, Run: func(ctx context.Context) error {
					if err := r.store.UpdateEventParticipation(ctx, row); err != nil {
						r.count(ctx, f, ck, OutcomeFailed)
						return err
					}
					r.count(ctx, f, ck, OutcomeUpdated)
					return nil
				}})
			}
		} else {
			err = p.Submit(ctx, queue.Task{Key: ck, Run: func(ctx context.Context) error {
				if err := r.store.InsertEventParticipation(ctx, row); err != nil {
					r.eventParts.Unrecord(ctx, key)
					r.count(ctx, f, ck, OutcomeFailed)
					return err
				}
				r.count(ctx, f, ck, OutcomeInserted)
				return nil
			}})
			if err != nil {
				r.eventParts.Unrecord(ctx, key)
			}
		}
		if err != nil {
			return err
		}
		r.progress(ctx, f, i+1, len(facts))
	}
	return nil
}

// syncPlayerRatings only updates: player rows belong to the registry, so an
// unknown player fails with repository.ErrNotFound.
func (r *Reconciler) syncPlayerRatings(ctx context.Context, p *worker.Pool, ratings []PlayerRating) error {
	f := repository.FamilyPlayerRatings
	for i, pr := range ratings {
		ck := strconv.FormatInt(int64(pr.Player), 10)
		if prev, ok := r.ratingVals[pr.Player]; ok && prev == pr.Rating {
			r.count(ctx, f, ck, OutcomeUnchanged)
			r.progress(ctx, f, i+1, len(ratings))
			continue
		}
		err := p.Submit(ctx, queue.Task{Key: ck, Run: func(ctx context.Context) error {
			if err := r.store.UpdatePlayerRating(ctx, pr.Player, pr.Rating); err != nil {
				r.count(ctx, f, ck, OutcomeFailed)
				return err
			}
			r.count(ctx, f, ck, OutcomeUpdated)
			return nil
		}})
		if err != nil {
			return err
		}
		r.progress(ctx, f, i+1, len(ratings))
	}
	return nil
}
