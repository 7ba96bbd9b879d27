// Package modeltest builds small ledgers for tests.
package modeltest

import "github.com/okian/tourneyrank/internal/domain/model"

var (
	P1 = model.Player{ID: 1, Name: "P1"}
	P2 = model.Player{ID: 2, Name: "P2"}
	P3 = model.Player{ID: 3, Name: "P3"}
	P4 = model.Player{ID: 4, Name: "P4"}

	CupA    = model.Event{ID: 10, Name: "Cup A"}
	DuelCup = model.Event{ID: 20, Name: "Duel Cup", OneVsOne: true}
)

// Game builds a game; players and ranks are zipped positionally.
func Game(seq int, e model.Event, name string, players []model.Player, ranks ...int) model.Game {
	g := model.Game{Seq: seq, Event: e, Name: name, Placements: make([]model.Placement, len(players))}
	for i, p := range players {
		g.Placements[i] = model.Placement{Player: p, Rank: ranks[i]}
	}
	return g
}

// CupAFirst is "Cup A" game one: P1, P2, P3 finish 1, 2, 3.
func CupAFirst() model.Game {
	return Game(0, CupA, "G1", []model.Player{P1, P2, P3}, 1, 2, 3)
}

// CupASecond is "Cup A" game two with the finish reversed.
func CupASecond() model.Game {
	return Game(1, CupA, "G2", []model.Player{P3, P2, P1}, 1, 2, 3)
}

// Mixed is a short ledger touching both formats, with a tie for first.
func Mixed() []model.Game {
	return []model.Game{
		CupAFirst(),
		Game(1, DuelCup, "D1", []model.Player{P1, P4}, 2, 1),
		Game(2, CupA, "G2", []model.Player{P1, P2, P3, P4}, 1, 1, 3, 4),
		Game(3, DuelCup, "D2", []model.Player{P4, P1}, 1, 2),
	}
}
