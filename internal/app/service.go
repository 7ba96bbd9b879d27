// Package service runs the rating pipeline: ledger replay into the pools,
// optional store synchronization and the local exports. It also serves the
// results of the last run to the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/tourneyrank/internal/adapters/repository"
	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/participation"
	"github.com/okian/tourneyrank/internal/domain/pool"
	"github.com/okian/tourneyrank/internal/domain/rating"
	"github.com/okian/tourneyrank/internal/domain/types"
	"github.com/okian/tourneyrank/internal/export"
	"github.com/okian/tourneyrank/internal/ledger"
	"github.com/okian/tourneyrank/internal/reconcile"
	"github.com/okian/tourneyrank/pkg/logger"
	"github.com/okian/tourneyrank/pkg/metrics"
)

// Summary describes one run.
type Summary struct {
	RunID          string `json:"run_id"`
	GamesTotal     int    `json:"games_total"`
	GamesProcessed int    `json:"games_processed"`
	Interrupted    bool   `json:"interrupted"`
	// Error is the replay failure that ended the run early, if any.
	Error  string `json:"error,omitempty"`
	Synced bool   `json:"synced"`
	// SyncSkipped says why no sync ran; empty when it did.
	SyncSkipped string            `json:"sync_skipped,omitempty"`
	Sync        *reconcile.Report `json:"sync,omitempty"`
	Exported    []string          `json:"exported"`
	PoolSizes   map[string]int    `json:"pool_sizes"`
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration"`
}

// Service owns the pipeline configuration and the results of the last run.
type Service struct {
	mu sync.RWMutex

	// Configuration
	model         rating.Model
	transform     rating.Transform
	store         repository.Store
	storeErr      error
	seedReference bool
	syncWorkers   int
	progressEvery int
	outputDir     string

	// State of the last completed run
	manager *pool.Manager
	summary *Summary

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithModel sets the rating model.
func WithModel(m rating.Model) Option {
	return func(s *Service) {
		if m != nil {
			s.model = m
		}
	}
}

// WithTransform sets the display transform of ordinals.
func WithTransform(t rating.Transform) Option {
	return func(s *Service) {
		if t.Scale > 0 {
			s.transform = t
		}
	}
}

// WithStore enables synchronization into store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithStoreUnavailable records that the configured store could not be
// opened. Runs skip the sync and report err in the summary.
func WithStoreUnavailable(err error) Option {
	return func(s *Service) {
		s.storeErr = err
	}
}

// WithSeedReference mirrors the event and player tables into the store
// before syncing, when the store supports it.
func WithSeedReference(enabled bool) Option {
	return func(s *Service) {
		s.seedReference = enabled
	}
}

// WithSyncWorkers sets the number of concurrent store writers.
func WithSyncWorkers(n int) Option {
	return func(s *Service) {
		s.syncWorkers = n
	}
}

// WithProgressEvery sets the progress log cadence in games and records.
func WithProgressEvery(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.progressEvery = n
		}
	}
}

// WithOutputDir sets the export directory.
func WithOutputDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.outputDir = dir
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		model:         rating.NewPlackettLuce(),
		transform:     rating.DefaultTransform,
		syncWorkers:   4,
		progressEvery: 100,
		outputDir:     "out",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Run replays l, syncs the store when one is configured and writes the
// exports. Cancelling ctx stops the replay after the current game; exports
// are written for every game processed so far and ErrInterrupted is
// returned. A rating failure stops the replay at the failing game and skips
// the sync; the exports still cover every game before it.
func (s *Service) Run(ctx context.Context, l *ledger.Ledger) (Summary, error) {
	if l == nil {
		return Summary{}, ErrNilLedger
	}
	start := time.Now()
	sum := Summary{
		RunID:      uuid.NewString(),
		GamesTotal: len(l.Games),
		StartedAt:  start.UTC(),
	}
	log := s.logger
	log.Info(ctx, "run started",
		logger.String("run_id", sum.RunID),
		logger.Int("games", len(l.Games)),
		logger.Int("events", len(l.Events)),
		logger.Int("players", len(l.Players)))

	m := pool.NewManager(
		pool.WithModel(s.model),
		pool.WithTransform(s.transform),
		pool.WithLogger(log.Named("pool")),
	)
	b := participation.NewBuilder(m)

	var replayErr error
	for i, g := range l.Games {
		if ctx.Err() != nil {
			sum.Interrupted = true
			log.Warn(ctx, "replay interrupted",
				logger.Int("processed", i),
				logger.Int("total", len(l.Games)))
			break
		}
		if _, err := m.Process(ctx, g); err != nil {
			replayErr = fmt.Errorf("game %s (#%d): %w", g.Key(), g.Seq+1, err)
			sum.Error = replayErr.Error()
			log.Error(ctx, "replay aborted",
				logger.Int("processed", i),
				logger.Error(replayErr))
			break
		}
		b.Observe(g)
		sum.GamesProcessed++
		if sum.GamesProcessed%s.progressEvery == 0 {
			log.Info(ctx, "replay progress",
				logger.Int("processed", sum.GamesProcessed),
				logger.Int("total", len(l.Games)))
		}
	}
	processed := l.Games[:sum.GamesProcessed]
	gameFacts := b.GameFacts()

	sum.PoolSizes = make(map[string]int, len(model.Pools))
	for _, p := range model.Pools {
		sum.PoolSizes[p.String()] = m.Len(p)
	}

	switch {
	case replayErr != nil:
		sum.SyncSkipped = "replay failed"
	case sum.Interrupted:
		sum.SyncSkipped = "replay interrupted"
	case s.storeErr != nil:
		sum.SyncSkipped = "store unavailable: " + s.storeErr.Error()
		log.Warn(ctx, "store unavailable, sync skipped", logger.Error(s.storeErr))
	case s.store == nil:
		sum.SyncSkipped = "no store configured"
	default:
		rep, err := s.sync(ctx, sum.RunID, l, m, processed, gameFacts, b.EventFacts())
		sum.Sync = &rep
		sum.Synced = err == nil
		if err != nil {
			sum.Interrupted = errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			log.Error(ctx, "sync stopped early", logger.Error(err))
		}
	}

	// Exports cover whatever was replayed, even after a cancel.
	exp := export.New(s.outputDir, export.WithLogger(log.Named("export")))
	written, expErr := exp.Write(context.WithoutCancel(ctx), export.Input{
		Source:    m,
		Games:     processed,
		GameFacts: gameFacts,
	})
	sum.Exported = written
	sum.Duration = time.Since(start)
	metrics.RecordRunDuration(sum.Duration)

	s.mu.Lock()
	s.manager = m
	s.summary = &sum
	s.mu.Unlock()

	log.Info(ctx, "run finished",
		logger.String("run_id", sum.RunID),
		logger.Int("processed", sum.GamesProcessed),
		logger.Bool("synced", sum.Synced),
		logger.Bool("interrupted", sum.Interrupted),
		logger.Duration("duration", sum.Duration))

	if expErr != nil {
		expErr = fmt.Errorf("export: %w", expErr)
	}
	if replayErr != nil {
		return sum, errors.Join(replayErr, expErr)
	}
	if expErr != nil {
		return sum, expErr
	}
	if sum.Interrupted {
		return sum, fmt.Errorf("%w after %d of %d games", ErrInterrupted, sum.GamesProcessed, sum.GamesTotal)
	}
	return sum, nil
}

func (s *Service) sync(
	ctx context.Context,
	runID string,
	l *ledger.Ledger,
	m *pool.Manager,
	games []model.Game,
	gameFacts []participation.GameFact,
	eventFacts []participation.EventFact,
) (reconcile.Report, error) {
	if rw, ok := s.store.(repository.ReferenceWriter); ok && s.seedReference {
		if err := rw.UpsertEvents(ctx, l.Events); err != nil {
			s.logger.Warn(ctx, "event reference seeding failed", logger.Error(err))
		}
		if err := rw.UpsertPlayers(ctx, l.Players); err != nil {
			s.logger.Warn(ctx, "player reference seeding failed", logger.Error(err))
		}
	}

	players := m.Players()
	ratings := make([]reconcile.PlayerRating, len(players))
	for i, p := range players {
		ratings[i] = reconcile.PlayerRating{Player: p.ID, Rating: m.RatingOrDefault(model.PoolAllTime, p.ID)}
	}

	r := reconcile.New(s.store,
		reconcile.WithRunID(runID),
		reconcile.WithWorkers(s.syncWorkers),
		reconcile.WithProgressEvery(s.progressEvery),
		reconcile.WithLogger(s.logger.Named("reconcile")),
	)
	return r.Run(ctx, reconcile.Input{
		Games:         games,
		GameFacts:     gameFacts,
		EventFacts:    eventFacts,
		PlayerRatings: ratings,
	})
}

func (s *Service) last() (*pool.Manager, *Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.manager == nil {
		return nil, nil, ErrNoRun
	}
	return s.manager, s.summary, nil
}

// LastSummary returns the summary of the last completed run.
func (s *Service) LastSummary(_ context.Context) (Summary, error) {
	_, sum, err := s.last()
	if err != nil {
		return Summary{}, err
	}
	return *sum, nil
}

// Rankings returns the top limit entries of pool p; limit <= 0 returns all.
func (s *Service) Rankings(_ context.Context, p model.Pool, limit int) ([]types.Entry, error) {
	m, _, err := s.last()
	if err != nil {
		return nil, err
	}
	return types.Entries(m.Finalize(p), limit), nil
}

// EventHistory returns the rating history of one event.
func (s *Service) EventHistory(_ context.Context, id model.EventID) (types.EventHistory, error) {
	m, _, err := s.last()
	if err != nil {
		return types.EventHistory{}, err
	}
	eh, ok := m.EventHistory(id)
	if !ok {
		return types.EventHistory{}, fmt.Errorf("%w: event %d", ErrNotFound, id)
	}
	return types.History(eh), nil
}

// Player returns a player's rating in every pool.
func (s *Service) Player(_ context.Context, id model.PlayerID) (types.PlayerRatings, error) {
	m, _, err := s.last()
	if err != nil {
		return types.PlayerRatings{}, err
	}
	for _, p := range m.Players() {
		if p.ID != id {
			continue
		}
		out := types.PlayerRatings{ID: int64(p.ID), Name: p.Name, Ratings: make(map[string]model.RatingState, len(model.Pools))}
		for _, pl := range model.Pools {
			out.Ratings[pl.String()] = m.RatingOrDefault(pl, p.ID)
		}
		return out, nil
	}
	return types.PlayerRatings{}, fmt.Errorf("%w: player %d", ErrNotFound, id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"hasRun":      s.summary != nil,
		"syncEnabled": s.store != nil,
		"syncWorkers": s.syncWorkers,
		"outputDir":   s.outputDir,
	}
	if s.summary != nil {
		stats["lastRunID"] = s.summary.RunID
		stats["gamesProcessed"] = s.summary.GamesProcessed
		stats["poolSizes"] = s.summary.PoolSizes
	}
	return stats
}
