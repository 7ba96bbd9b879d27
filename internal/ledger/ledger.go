// Package ledger reads the match ledger and its reference tables.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/tourneyrank/internal/domain/model"
)

// Participant slot limits per game.
const (
	MinParticipants = 2
	MaxParticipants = 4
)

// slots are the column suffixes of participant slots in ledger order.
var slots = []string{"a", "b", "c", "d"}

// Ledger is a fully resolved ledger with its reference data.
type Ledger struct {
	Events  []model.Event
	Players []model.Player
	Games   []model.Game
}

// header maps lower-cased column names to their index.
type header map[string]int

func newHeader(cols []string) header {
	h := make(header, len(cols))
	for i, c := range cols {
		h[strings.ToLower(strings.TrimSpace(c))] = i
	}
	return h
}

func (h header) require(names ...string) error {
	for _, n := range names {
		if _, ok := h[n]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, n)
		}
	}
	return nil
}

// get returns the trimmed cell or "" when the column is absent.
func (h header) get(rec []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// readAll reads a CSV with a header row. Row numbers in errors are 1-based
// and count the header.
func readAll(r io.Reader, each func(row int, h header, rec []string) error, required ...string) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cols, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty input", ErrMissingColumn)
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	h := newHeader(cols)
	if err := h.require(required...); err != nil {
		return err
	}

	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrMalformedRow, row, err)
		}
		if blank(rec) {
			continue
		}
		if err := each(row, h, rec); err != nil {
			return err
		}
	}
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadEvents reads the event table: id, name, one_vs_one.
func ReadEvents(r io.Reader) ([]model.Event, error) {
	var out []model.Event
	ids := make(map[model.EventID]bool)
	names := make(map[string]bool)
	err := readAll(r, func(row int, h header, rec []string) error {
		id, err := strconv.ParseInt(h.get(rec, "id"), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: row %d: event id %q", ErrMalformedRow, row, h.get(rec, "id"))
		}
		name := h.get(rec, "name")
		if name == "" {
			return fmt.Errorf("%w: row %d: empty event name", ErrMalformedRow, row)
		}
		flag, err := parseFlag(h.get(rec, "one_vs_one"))
		if err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrMalformedRow, row, err)
		}
		if ids[model.EventID(id)] || names[name] {
			return fmt.Errorf("%w: row %d: event %d %q listed twice", ErrMalformedRow, row, id, name)
		}
		ids[model.EventID(id)] = true
		names[name] = true
		out = append(out, model.Event{ID: model.EventID(id), Name: name, OneVsOne: flag})
		return nil
	}, "id", "name", "one_vs_one")
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return out, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true, nil
	case "no", "n", "":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("one_vs_one flag %q", s)
	}
	return v, nil
}

// ReadPlayers reads the player table: id, username.
func ReadPlayers(r io.Reader) ([]model.Player, error) {
	var out []model.Player
	ids := make(map[model.PlayerID]bool)
	names := make(map[string]bool)
	err := readAll(r, func(row int, h header, rec []string) error {
		id, err := strconv.ParseInt(h.get(rec, "id"), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: row %d: player id %q", ErrMalformedRow, row, h.get(rec, "id"))
		}
		name := h.get(rec, "username")
		if name == "" {
			return fmt.Errorf("%w: row %d: empty username", ErrMalformedRow, row)
		}
		if ids[model.PlayerID(id)] || names[name] {
			return fmt.Errorf("%w: row %d: player %d %q listed twice", ErrMalformedRow, row, id, name)
		}
		ids[model.PlayerID(id)] = true
		names[name] = true
		out = append(out, model.Player{ID: model.PlayerID(id), Name: name})
		return nil
	}, "id", "username")
	if err != nil {
		return nil, fmt.Errorf("players: %w", err)
	}
	return out, nil
}

// ReadGames reads the match ledger and resolves names against the reference
// tables. Any bad row fails the whole read: a skipped game would corrupt
// every later rating of its players.
func ReadGames(r io.Reader, events []model.Event, players []model.Player) ([]model.Game, error) {
	eventsByName := make(map[string]model.Event, len(events))
	for _, e := range events {
		eventsByName[e.Name] = e
	}
	playersByName := make(map[string]model.Player, len(players))
	for _, p := range players {
		playersByName[p.Name] = p
	}

	var out []model.Game
	seen := make(map[model.GameKey]int)
	err := readAll(r, func(row int, h header, rec []string) error {
		eventName := h.get(rec, "event")
		event, ok := eventsByName[eventName]
		if !ok {
			return fmt.Errorf("%w: row %d: %q", ErrUnknownEvent, row, eventName)
		}
		name := h.get(rec, "game")
		if name == "" {
			return fmt.Errorf("%w: row %d: empty game name", ErrMalformedRow, row)
		}

		g := model.Game{Seq: len(out), Event: event, Name: name}
		inGame := make(map[model.PlayerID]bool, MaxParticipants)
		for _, s := range slots {
			username := h.get(rec, "player_"+s)
			if username == "" {
				if r := h.get(rec, "rank_"+s); r != "" {
					return fmt.Errorf("%w: row %d: rank_%s %q without player_%s", ErrMalformedRow, row, s, r, s)
				}
				continue
			}
			p, ok := playersByName[username]
			if !ok {
				return fmt.Errorf("%w: row %d: %q", ErrUnknownPlayer, row, username)
			}
			if inGame[p.ID] {
				return fmt.Errorf("%w: row %d: %q appears twice", ErrMalformedRow, row, username)
			}
			inGame[p.ID] = true
			rank, err := strconv.Atoi(h.get(rec, "rank_"+s))
			if err != nil || rank < 1 {
				return fmt.Errorf("%w: row %d: rank_%s %q", ErrMalformedRow, row, s, h.get(rec, "rank_"+s))
			}
			g.Placements = append(g.Placements, model.Placement{Player: p, Rank: rank})
		}
		if n := len(g.Placements); n < MinParticipants || n > MaxParticipants {
			return fmt.Errorf("%w: row %d: %d participants", ErrMalformedRow, row, n)
		}
		if prev, dup := seen[g.Key()]; dup {
			return fmt.Errorf("%w: row %d: %s already at row %d", ErrDuplicateGame, row, g.Key(), prev)
		}
		seen[g.Key()] = row
		out = append(out, g)
		return nil
	}, "event", "game", "player_a", "rank_a", "player_b", "rank_b")
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return out, nil
}

// LoadFiles reads and resolves the three input files.
func LoadFiles(ledgerPath, eventsPath, playersPath string) (*Ledger, error) {
	events, err := readFile(eventsPath, ReadEvents)
	if err != nil {
		return nil, err
	}
	players, err := readFile(playersPath, ReadPlayers)
	if err != nil {
		return nil, err
	}
	games, err := readFile(ledgerPath, func(r io.Reader) ([]model.Game, error) {
		return ReadGames(r, events, players)
	})
	if err != nil {
		return nil, err
	}
	return &Ledger{Events: events, Players: players, Games: games}, nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	out, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
