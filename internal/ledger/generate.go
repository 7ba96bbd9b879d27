package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/pkg/logger"
)

// usernameSpace namespaces generated usernames so the same seed and index
// always yield the same name.
var usernameSpace = uuid.MustParse("6f1c8a52-3c1e-4d7b-9a4e-2b8f0d6c71a3")

// Skill tiers for generated players.
const (
	tierCasual = iota
	tierRegular
	tierStrong
	tierElite
	tierCount
)

// performance noise added to the hidden skill on every game.
const noise = 4.0

// GenerateConfig controls the synthetic ledger.
type GenerateConfig struct {
	Seed          uint64
	Events        int
	Players       int
	GamesPerEvent int
	OneVsOneEvery int // every Nth event is head-to-head; 0 disables
}

// DefaultGenerateConfig returns a small mixed-format ledger.
func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Seed: 1, Events: 6, Players: 24, GamesPerEvent: 20, OneVsOneEvery: 3}
}

// Generate builds a deterministic ledger. The same config always produces
// the same ledger.
func Generate(ctx context.Context, cfg GenerateConfig) (*Ledger, error) {
	if cfg.Players < MinParticipants {
		return nil, fmt.Errorf("generate: need at least %d players, got %d", MinParticipants, cfg.Players)
	}
	if cfg.Events < 1 || cfg.GamesPerEvent < 1 {
		return nil, fmt.Errorf("generate: need at least one event and one game per event")
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	players := make([]model.Player, cfg.Players)
	skill := make([]float64, cfg.Players)
	for i := range players {
		id := uuid.NewSHA1(usernameSpace, []byte(strconv.FormatUint(cfg.Seed, 10)+"/"+strconv.Itoa(i)))
		players[i] = model.Player{ID: model.PlayerID(i + 1), Name: "player-" + id.String()[:8]}
		skill[i] = tierSkill(rng)
	}

	events := make([]model.Event, cfg.Events)
	for i := range events {
		oneVsOne := cfg.OneVsOneEvery > 0 && (i+1)%cfg.OneVsOneEvery == 0
		events[i] = model.Event{ID: model.EventID(i + 1), Name: fmt.Sprintf("Event %d", i+1), OneVsOne: oneVsOne}
	}

	var games []model.Game
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		for g := 0; g < cfg.GamesPerEvent; g++ {
			n := MinParticipants
			if !e.OneVsOne {
				n = 3 + rng.IntN(2)
			}
			if n > cfg.Players {
				n = cfg.Players
			}
			idx := rng.Perm(cfg.Players)[:n]
			games = append(games, model.Game{
				Seq:        len(games),
				Event:      e,
				Name:       fmt.Sprintf("R%d G%d", g/4+1, g%4+1),
				Placements: finish(rng, players, skill, idx),
			})
		}
	}

	logger.Get().Info(ctx, "generated ledger",
		logger.Int("events", len(events)),
		logger.Int("players", len(players)),
		logger.Int("games", len(games)))
	return &Ledger{Events: events, Players: players, Games: games}, nil
}

func tierSkill(rng *rand.Rand) float64 {
	switch rng.IntN(tierCount) {
	case tierCasual:
		return 10 + rng.Float64()*8
	case tierRegular:
		return 18 + rng.Float64()*8
	case tierStrong:
		return 26 + rng.Float64()*6
	default:
		return 32 + rng.Float64()*6
	}
}

// finish draws a performance per participant and assigns competition ranks.
// Performances are rounded so ties happen now and then.
func finish(rng *rand.Rand, players []model.Player, skill []float64, idx []int) []model.Placement {
	perf := make([]int, len(idx))
	for i, p := range idx {
		perf[i] = int(skill[p] + rng.NormFloat64()*noise)
	}
	order := make([]int, len(idx))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return perf[order[a]] > perf[order[b]] })

	ranks := make([]int, len(idx))
	for pos, i := range order {
		if pos > 0 && perf[i] == perf[order[pos-1]] {
			ranks[i] = ranks[order[pos-1]]
		} else {
			ranks[i] = pos + 1
		}
	}

	out := make([]model.Placement, len(idx))
	for i, p := range idx {
		out[i] = model.Placement{Player: players[p], Rank: ranks[i]}
	}
	return out
}

// WriteEvents writes the event table.
func WriteEvents(w io.Writer, events []model.Event) error {
	rows := [][]string{{"id", "name", "one_vs_one"}}
	for _, e := range events {
		rows = append(rows, []string{strconv.FormatInt(int64(e.ID), 10), e.Name, strconv.FormatBool(e.OneVsOne)})
	}
	return writeRows(w, rows)
}

// WritePlayers writes the player table.
func WritePlayers(w io.Writer, players []model.Player) error {
	rows := [][]string{{"id", "username"}}
	for _, p := range players {
		rows = append(rows, []string{strconv.FormatInt(int64(p.ID), 10), p.Name})
	}
	return writeRows(w, rows)
}

// WriteGames writes the match ledger with four participant slots.
func WriteGames(w io.Writer, games []model.Game) error {
	head := []string{"event", "game"}
	for _, s := range slots {
		head = append(head, "player_"+s)
	}
	for _, s := range slots {
		head = append(head, "rank_"+s)
	}
	rows := [][]string{head}
	for _, g := range games {
		rec := make([]string, len(head))
		rec[0], rec[1] = g.Event.Name, g.Name
		for i, pl := range g.Placements {
			rec[2+i] = pl.Player.Name
			rec[2+len(slots)+i] = strconv.Itoa(pl.Rank)
		}
		rows = append(rows, rec)
	}
	return writeRows(w, rows)
}

func writeRows(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Paths names the three input files of a ledger.
type Paths struct {
	Ledger  string
	Events  string
	Players string
}

// DefaultPaths returns the conventional file names inside dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Ledger:  filepath.Join(dir, "ledger.csv"),
		Events:  filepath.Join(dir, "events.csv"),
		Players: filepath.Join(dir, "players.csv"),
	}
}

// WriteFiles writes l to the three files of p, creating parent directories.
func WriteFiles(l *Ledger, p Paths) error {
	writes := []struct {
		path  string
		write func(io.Writer) error
	}{
		{p.Events, func(w io.Writer) error { return WriteEvents(w, l.Events) }},
		{p.Players, func(w io.Writer) error { return WritePlayers(w, l.Players) }},
		{p.Ledger, func(w io.Writer) error { return WriteGames(w, l.Games) }},
	}
	for _, wr := range writes {
		if err := os.MkdirAll(filepath.Dir(wr.path), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", wr.path, err)
		}
		f, err := os.Create(wr.path)
		if err != nil {
			return fmt.Errorf("create %s: %w", wr.path, err)
		}
		if err := wr.write(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("%s: %w", wr.path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", wr.path, err)
		}
	}
	return nil
}

// Load reads the three files of p.
func Load(p Paths) (*Ledger, error) {
	return LoadFiles(p.Ledger, p.Events, p.Players)
}
