// Package sqlite is a single-file implementation of repository.Store on the
// pure-Go SQLite driver, for local runs without a database server.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/tourneyrank/internal/adapters/repository"
	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/pkg/metrics"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store wraps a database/sql handle on a SQLite file.
type Store struct {
	db *sql.DB
}

var (
	_ repository.Store           = (*Store)(nil)
	_ repository.ReferenceWriter = (*Store)(nil)
)

// Open opens or creates the database file at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; the sync worker pool shares one connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates the schema if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func observe(f repository.Family, op repository.Operation, start time.Time) {
	metrics.RecordStoreLatency(string(f), string(op), time.Since(start))
}

func (s *Store) LoadGames(ctx context.Context) (map[model.GameKey]int64, error) {
	defer observe(repository.FamilyGames, repository.OpLoad, time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT id, event_id, name FROM games`)
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
	rows, err := s.db.QueryContext(ctx, `SELECT game_id, player_id, ranking, updated_rating FROM game_participation`)
	if err != nil {
		return nil, fmt.Errorf("load game participation: %w", err)
	}
	defer rows.Close()

	out := make(map[repository.GameParticipationKey]repository.GameParticipationRow)
	for rows.Next() {
		var game, player int64
		var ranking int
		var raw string
		if err := rows.Scan(&game, &player, &ranking, &raw); err != nil {
			return nil, fmt.Errorf("scan game participation: %w", err)
		}
		rating, err := repository.DecodeRating([]byte(raw))
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
	rows, err := s.db.QueryContext(ctx, `SELECT event_id, player_id, games_won, updated_rating FROM event_participation`)
	if err != nil {
		return nil, fmt.Errorf("load event participation: %w", err)
	}
	defer rows.Close()

	out := make(map[repository.EventParticipationKey]repository.EventParticipationRow)
	for rows.Next() {
		var event, player int64
		var won int
		var raw string
		if err := rows.Scan(&event, &player, &won, &raw); err != nil {
			return nil, fmt.Errorf("scan event participation: %w", err)
		}
		rating, err := repository.DecodeRating([]byte(raw))
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
	rows, err := s.db.QueryContext(ctx, `SELECT id, current_rating FROM players WHERE current_rating IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("load player ratings: %w", err)
	}
	defer rows.Close()

	out := make(map[model.PlayerID]model.RatingState)
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan player rating: %w", err)
		}
		rating, err := repository.DecodeRating([]byte(raw))
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
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO games(event_id, name)
		VALUES (?, ?)
		ON CONFLICT (event_id, name) DO UPDATE
		  SET name = excluded.name
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_participation(game_id, player_id, ranking, updated_rating)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (game_id, player_id) DO UPDATE
		  SET ranking = excluded.ranking,
		      updated_rating = excluded.updated_rating
	`, row.Game, int64(row.Player), row.Ranking, string(raw))
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
	res, err := s.db.ExecContext(ctx, `
		UPDATE game_participation
		   SET ranking = ?, updated_rating = ?
		 WHERE game_id = ? AND player_id = ?
	`, row.Ranking, string(raw), row.Game, int64(row.Player))
	if err != nil {
		return fmt.Errorf("update game participation %d/%d: %w", row.Game, row.Player, err)
	}
	return rowsAffected(res, "game participation", row.Key())
}

func (s *Store) InsertEventParticipation(ctx context.Context, row repository.EventParticipationRow) error {
	defer observe(repository.FamilyEventParticipation, repository.OpInsert, time.Now())
	raw, err := repository.EncodeRating(row.Rating)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO event_participation(event_id, player_id, games_won, updated_rating)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event_id, player_id) DO UPDATE
		  SET games_won = excluded.games_won,
		      updated_rating = excluded.updated_rating
	`, int64(row.Event), int64(row.Player), row.GamesWon, string(raw))
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
	res, err := s.db.ExecContext(ctx, `
		UPDATE event_participation
		   SET games_won = ?, updated_rating = ?
		 WHERE event_id = ? AND player_id = ?
	`, row.GamesWon, string(raw), int64(row.Event), int64(row.Player))
	if err != nil {
		return fmt.Errorf("update event participation %d/%d: %w", row.Event, row.Player, err)
	}
	return rowsAffected(res, "event participation", row.Key())
}

func (s *Store) UpdatePlayerRating(ctx context.Context, id model.PlayerID, rating model.RatingState) error {
	defer observe(repository.FamilyPlayerRatings, repository.OpUpdate, time.Now())
	raw, err := repository.EncodeRating(rating)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE players SET current_rating = ? WHERE id = ?`, string(raw), int64(id))
	if err != nil {
		return fmt.Errorf("update player %d rating: %w", id, err)
	}
	return rowsAffected(res, "player", id)
}

// UpsertEvents mirrors the event table in one transaction.
func (s *Store) UpsertEvents(ctx context.Context, events []model.Event) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range events {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO events(id, name, one_vs_one)
				VALUES (?, ?, ?)
				ON CONFLICT (id) DO UPDATE
				  SET name = excluded.name,
				      one_vs_one = excluded.one_vs_one
			`, int64(e.ID), e.Name, e.OneVsOne); err != nil {
				return fmt.Errorf("upsert event %d: %w", e.ID, err)
			}
		}
		return nil
	})
}

// UpsertPlayers mirrors the player table without touching current ratings.
func (s *Store) UpsertPlayers(ctx context.Context, players []model.Player) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range players {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO players(id, username)
				VALUES (?, ?)
				ON CONFLICT (id) DO UPDATE
				  SET username = excluded.username
			`, int64(p.ID), p.Name); err != nil {
				return fmt.Errorf("upsert player %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func rowsAffected(res sql.Result, what string, key any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %v: %w", what, key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %v", repository.ErrNotFound, what, key)
	}
	return nil
}
