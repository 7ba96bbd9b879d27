// Package postgres is the PostgreSQL implementation of repository.Store.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/tourneyrank/internal/adapters/repository"
	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/pkg/metrics"
)

//go:embed schema.sql
var schema embed.FS

// Store is a pgx connection pool speaking the sync access pattern.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ repository.Store           = (*Store)(nil)
	_ repository.ReferenceWriter = (*Store)(nil)
)

// Open connects and pings.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func observe(f repository.Family, op repository.Operation, start time.Time) {
	metrics.RecordStoreLatency(string(f), string(op), time.Since(start))
}

func (s *Store) LoadGames(ctx context.Context) (map[model.GameKey]int64, error) {
	defer observe(repository.FamilyGames, repository.OpLoad, time.Now())
	rows, err := s.pool.Query(ctx, `SELECT id, event_id, name FROM games`)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}
	defer rows.Close()

	out := make(map[model.GameKey]int64)
	for rows.Next() {
		var id, event int64
		var name string
		if err := rows.Scan(&id, &event, &name); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out[model.GameKey{Event: model.EventID(event), Name: name}] = id
	}
	return out, rows.Err()
}

func (s *Store) LoadGameParticipation(ctx context.Context) (map[repository.GameParticipationKey]repository.GameParticipationRow, error) {
	defer observe(repository.FamilyGameParticipation, repository.OpLoad, time.Now())
	rows, err := s.pool.Query(ctx, `SELECT game_id, player_id, ranking, updated_rating FROM game_participation`)
	if err != nil {
		return nil, fmt.Errorf("load game participation: %w", err)
	}
	defer rows.Close()

	out := make(map[repository.GameParticipationKey]repository.GameParticipationRow)
	for rows.Next() {
		var game, player int64
		var ranking int
		var raw []byte
		if err := rows.Scan(&game, &player, &ranking, &raw); err != nil {
			return nil, fmt.Errorf("scan game participation: %w", err)
		}
		rating, err := repository.DecodeRating(raw)
		if err != nil {
			return nil, fmt.Errorf("game participation %d/%d: %w", game, player, err)
		}
		row := repository.GameParticipationRow{Game: game, Player: model.PlayerID(player), Ranking: ranking, Rating: rating}
		out[row.Key()] = row
	}
	return out, rows.Err()
}

func (s *Store) LoadEventParticipation(ctx context.Context) (map[repository.EventParticipationKey]repository.EventParticipationRow, error) {
	defer observe(repository.FamilyEventParticipation, repository.OpLoad, time.Now())
	rows, err := s.pool.Query(ctx, `SELECT event_id, player_id, games_won, updated_rating FROM event_participation`)
	if err != nil {
		return nil, fmt.Errorf("load event participation: %w", err)
	}
	defer rows.Close()

	out := make(map[repository.EventParticipationKey]repository.EventParticipationRow)
	for rows.Next() {
		var event, player int64
		var won int
		var raw []byte
		if err := rows.Scan(&event, &player, &won, &raw); err != nil {
			return nil, fmt.Errorf("scan event participation: %w", err)
		}
		rating, err := repository.DecodeRating(raw)
		if err != nil {
			return nil, fmt.Errorf("event participation %d/%d: %w", event, player, err)
		}
		row := repository.EventParticipationRow{Event: model.EventID(event), Player: model.PlayerID(player), GamesWon: won, Rating: rating}
		out[row.Key()] = row
	}
	return out, rows.Err()
}

func (s *Store) LoadPlayerRatings(ctx context.Context) (map[model.PlayerID]model.RatingState, error) {
	defer observe(repository.FamilyPlayerRatings, repository.OpLoad, time.Now())
	rows, err := s.pool.Query(ctx, `SELECT id, current_rating FROM players WHERE current_rating IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("load player ratings: %w", err)
	}
	defer rows.Close()

	out := make(map[model.PlayerID]model.RatingState)
	for rows.Next() {
		var id int64
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan player rating: %w", err)
		}
		rating, err := repository.DecodeRating(raw)
		if err != nil {
			return nil, fmt.Errorf("player %d: %w", id, err)
		}
		out[model.PlayerID(id)] = rating
	}
	return out, rows.Err()
}

func (s *Store) InsertGame(ctx context.Context, key model.GameKey) (int64, error) {
	defer observe(repository.FamilyGames, repository.OpInsert, time.Now())
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO games(event_id, name)
		VALUES ($1, $2)
		ON CONFLICT (event_id, name) DO UPDATE
		  SET name = EXCLUDED.name
		RETURNING id
	`, int64(key.Event), key.Name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert game %s: %w", key, err)
	}
	return id, nil
}

func (s *Store) InsertGameParticipation(ctx context.Context, row repository.GameParticipationRow) error {
	defer observe(repository.FamilyGameParticipation, repository.OpInsert, time.Now())
	raw, err := repository.EncodeRating(row.Rating)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO game_participation(game_id, player_id, ranking, updated_rating)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, player_id) DO UPDATE
		  SET ranking = EXCLUDED.ranking,
		      updated_rating = EXCLUDED.updated_rating
	`, row.Game, int64(row.Player), row.Ranking, raw)
	if err != nil {
		return fmt.Errorf("insert game participation %d/%d: %w", row.Game, row.Player, err)
	}
	return nil
}

func (s *Store) UpdateGameParticipation(ctx context.Context, row repository.GameParticipationRow) error {
	defer observe(repository.FamilyGameParticipation, repository.OpUpdate, time.Now())
	raw, err := repository.EncodeRating(row.Rating)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_participation
		   SET ranking = $3,
		       updated_rating = $4
		 WHERE game_id = $1 AND player_id = $2
	`, row.Game, int64(row.Player), row.Ranking, raw)
	if err != nil {
		return fmt.Errorf("update game participation %d/%d: %w", row.Game, row.Player, err)
	}
	return rowsAffected(tag.RowsAffected(), "game participation", row.Key())
}

func (s *Store) InsertEventParticipation(ctx context.Context, row repository.EventParticipationRow) error {
	defer observe(repository.FamilyEventParticipation, repository.OpInsert, time.Now())
	raw, err := repository.EncodeRating(row.Rating)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO event_participation(event_id, player_id, games_won, updated_rating)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, player_id) DO UPDATE
		  SET games_won = EXCLUDED.games_won,
		      updated_rating = EXCLUDED.updated_rating
	`, int64(row.Event), int64(row.Player), row.GamesWon, raw)
	if err != nil {
		return fmt.Errorf("insert event participation %d/%d: %w", row.Event, row.Player, err)
	}
	return nil
}

func (s *Store) UpdateEventParticipation(ctx context.Context, row repository.EventParticipationRow) error {
	defer observe(repository.FamilyEventParticipation, repository.OpUpdate, time.Now())
	raw, err := repository.EncodeRating(row.Rating)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE event_participation
		   SET games_won = $3,
		       updated_rating = $4
		 WHERE event_id = $1 AND player_id = $2
	`, int64(row.Event), int64(row.Player), row.GamesWon, raw)
	if err != nil {
		return fmt.Errorf("update event participation %d/%d: %w", row.Event, row.Player, err)
	}
	return rowsAffected(tag.RowsAffected(), "event participation", row.Key())
}

func (s *Store) UpdatePlayerRating(ctx context.Context, id model.PlayerID, rating model.RatingState) error {
	defer observe(repository.FamilyPlayerRatings, repository.OpUpdate, time.Now())
	raw, err := repository.EncodeRating(rating)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE players SET current_rating = $2 WHERE id = $1`, int64(id), raw)
	if err != nil {
		return fmt.Errorf("update player %d rating: %w", id, err)
	}
	return rowsAffected(tag.RowsAffected(), "player", id)
}

// UpsertEvents mirrors the event table in one batch.
func (s *Store) UpsertEvents(ctx context.Context, events []model.Event) error {
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO events(id, name, one_vs_one)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			  SET name = EXCLUDED.name,
			      one_vs_one = EXCLUDED.one_vs_one
		`, int64(e.ID), e.Name, e.OneVsOne)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert events: %w", err)
	}
	return nil
}

// UpsertPlayers mirrors the player table without touching current ratings.
func (s *Store) UpsertPlayers(ctx context.Context, players []model.Player) error {
	batch := &pgx.Batch{}
	for _, p := range players {
		batch.Queue(`
			INSERT INTO players(id, username)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE
			  SET username = EXCLUDED.username
		`, int64(p.ID), p.Name)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert players: %w", err)
	}
	return nil
}

func rowsAffected(n int64, what string, key any) error {
	if n == 0 {
		return fmt.Errorf("%w: %s %v", repository.ErrNotFound, what, key)
	}
	return nil
}
