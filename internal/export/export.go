// Package export writes the local artifacts of a run: per-pool rankings,
// per-event history, the basic rankings sheets and full CSV mirrors of the
// games and game participation families.
package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/participation"
	"github.com/okian/tourneyrank/internal/domain/pool"
	"github.com/okian/tourneyrank/internal/domain/types"
	"github.com/okian/tourneyrank/pkg/logger"
	"github.com/okian/tourneyrank/pkg/metrics"
)

// File names inside the output directory.
const (
	HistoryFile           = "event_history.json"
	PlayersFile           = "players.json"
	GamesFile             = "games.csv"
	GameParticipationFile = "game_participation.csv"
	basicRankingsDir      = "basic_rankings"
)

// RankingsFile is the ranking JSON of p, e.g. one_vs_one_ratings.json.
func RankingsFile(p model.Pool) string {
	return p.String() + "_ratings.json"
}

// BasicRankingsFile is the spreadsheet summary of p.
func BasicRankingsFile(p model.Pool) string {
	return filepath.Join(basicRankingsDir, p.String()+"_basic_rankings.csv")
}

// Source is the read side of a finished replay.
type Source interface {
	Finalize(p model.Pool) []pool.Standing
	History() []pool.EventHistory
	Players() []model.Player
	RatingOrDefault(p model.Pool, id model.PlayerID) model.RatingState
}

// Input is everything one export needs.
type Input struct {
	Source    Source
	Games     []model.Game
	GameFacts []participation.GameFact
}

// Exporter writes artifacts below one directory. Files are replaced
// atomically so a reader never sees a half-written export.
type Exporter struct {
	dir    string
	logger logger.Logger
}

// New creates an Exporter writing into dir.
func New(dir string, opts ...Option) *Exporter {
	e := &Exporter{dir: dir}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("export")
	}
	return e
}

// Dir returns the output directory.
func (e *Exporter) Dir() string { return e.dir }

// Write writes every artifact. A failing file does not stop the others; the
// written paths are returned along with the joined errors.
func (e *Exporter) Write(ctx context.Context, in Input) ([]string, error) {
	if in.Source == nil {
		return nil, ErrNoSource
	}

	type artifact struct {
		name  string
		write func(io.Writer) error
	}
	var artifacts []artifact
	for _, p := range model.Pools {
		standings := in.Source.Finalize(p)
		artifacts = append(artifacts,
			artifact{RankingsFile(p), func(w io.Writer) error { return WriteRankingsJSON(w, standings) }},
			artifact{BasicRankingsFile(p), func(w io.Writer) error { return WriteBasicRankings(w, standings) }},
		)
	}
	artifacts = append(artifacts,
		artifact{HistoryFile, func(w io.Writer) error { return WriteHistoryJSON(w, in.Source.History()) }},
		artifact{PlayersFile, func(w io.Writer) error { return WritePlayersJSON(w, in.Source) }},
		artifact{GamesFile, func(w io.Writer) error { return WriteGamesCSV(w, in.Games) }},
		artifact{GameParticipationFile, func(w io.Writer) error { return WriteGameParticipationCSV(w, in.Games, in.GameFacts) }},
	)

	var (
		written []string
		errs    []error
	)
	for _, a := range artifacts {
		path, err := e.writeFile(a.name, a.write)
		if err != nil {
			metrics.RecordExportError()
			e.logger.Error(ctx, "export failed", logger.String("file", a.name), logger.Error(err))
			errs = append(errs, err)
			continue
		}
		metrics.RecordExportFile()
		e.logger.Debug(ctx, "export written", logger.String("path", path))
		written = append(written, path)
	}
	e.logger.Info(ctx, "exports written",
		logger.String("dir", e.dir),
		logger.Int("files", len(written)),
		logger.Int("failed", len(errs)))
	return written, errors.Join(errs...)
}

func (e *Exporter) writeFile(name string, write func(io.Writer) error) (string, error) {
	path := filepath.Join(e.dir, name)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("flush %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("replace %s: %w", name, err)
	}
	return path, nil
}

// WriteRankingsJSON writes player name -> {mu, sigma, ordinal}, keys in
// standing order.
func WriteRankingsJSON(w io.Writer, standings []pool.Standing) error {
	keys := make([]string, len(standings))
	values := make([]any, len(standings))
	for i, s := range standings {
		keys[i] = s.Player.Name
		values[i] = s.State
	}
	raw, err := orderedObject(keys, values)
	if err != nil {
		return err
	}
	return writeIndented(w, raw)
}

// WriteHistoryJSON writes event id -> player name -> snapshots, events and
// players in first-appearance order.
func WriteHistoryJSON(w io.Writer, history []pool.EventHistory) error {
	keys := make([]string, len(history))
	values := make([]any, len(history))
	for i, eh := range history {
		pk := make([]string, len(eh.Players))
		pv := make([]any, len(eh.Players))
		for j, ph := range eh.Players {
			pk[j] = ph.Player.Name
			pv[j] = ph.Snapshots
		}
		inner, err := orderedObject(pk, pv)
		if err != nil {
			return fmt.Errorf("event %d: %w", eh.Event.ID, err)
		}
		keys[i] = strconv.FormatInt(int64(eh.Event.ID), 10)
		values[i] = json.RawMessage(inner)
	}
	raw, err := orderedObject(keys, values)
	if err != nil {
		return err
	}
	return writeIndented(w, raw)
}

// WritePlayersJSON writes every known player with a rating per pool, in
// first-appearance order.
func WritePlayersJSON(w io.Writer, src Source) error {
	players := src.Players()
	rows := make([]types.PlayerRatings, len(players))
	for i, p := range players {
		r := types.PlayerRatings{ID: int64(p.ID), Name: p.Name, Ratings: make(map[string]model.RatingState, len(model.Pools))}
		for _, pl := range model.Pools {
			r.Ratings[pl.String()] = src.RatingOrDefault(pl, p.ID)
		}
		rows[i] = r
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	return nil
}

// WriteBasicRankings writes the Ranking,Player,Elo sheet with the ordinal
// rounded to two places.
func WriteBasicRankings(w io.Writer, standings []pool.Standing) error {
	rows := make([][]string, 0, len(standings)+1)
	rows = append(rows, []string{"Ranking", "Player", "Elo"})
	for i, s := range standings {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			s.Player.Name,
			strconv.FormatFloat(s.State.Ordinal, 'f', 2, 64),
		})
	}
	return writeCSV(w, rows)
}

// LocalGameID is the id a game carries in the local mirrors: its 1-based
// ledger position. Store ids are assigned by the store and may differ.
func LocalGameID(g model.Game) int64 {
	return int64(g.Seq) + 1
}

// WriteGamesCSV mirrors the games family.
func WriteGamesCSV(w io.Writer, games []model.Game) error {
	rows := make([][]string, 0, len(games)+1)
	rows = append(rows, []string{"id", "event_id", "event", "name"})
	for _, g := range games {
		rows = append(rows, []string{
			strconv.FormatInt(LocalGameID(g), 10),
			strconv.FormatInt(int64(g.Event.ID), 10),
			g.Event.Name,
			g.Name,
		})
	}
	return writeCSV(w, rows)
}

// WriteGameParticipationCSV mirrors the game participation family.
func WriteGameParticipationCSV(w io.Writer, games []model.Game, facts []participation.GameFact) error {
	ids := make(map[model.GameKey]int64, len(games))
	for _, g := range games {
		ids[g.Key()] = LocalGameID(g)
	}
	rows := make([][]string, 0, len(facts)+1)
	rows = append(rows, []string{"game_id", "player_id", "player", "ranking", "mu", "sigma", "ordinal"})
	for _, f := range facts {
		id, ok := ids[f.Game]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownGame, f.Game)
		}
		rows = append(rows, []string{
			strconv.FormatInt(id, 10),
			strconv.FormatInt(int64(f.Player.ID), 10),
			f.Player.Name,
			strconv.Itoa(f.Rank),
			formatFloat(f.Rating.Mu),
			formatFloat(f.Rating.Sigma),
			formatFloat(f.Rating.Ordinal),
		})
	}
	return writeCSV(w, rows)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// orderedObject renders a JSON object whose keys keep the given order.
func orderedObject(keys []string, values []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", k, err)
		}
		vb, err := json.Marshal(values[i])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeIndented(w io.Writer, raw []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return fmt.Errorf("indent json: %w", err)
	}
	out.WriteByte('\n')
	if _, err := w.Write(out.Bytes()); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
