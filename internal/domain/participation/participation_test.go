package participation_test

import (
	"context"
	"io"
	"testing"

	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/model/modeltest"
	"github.com/okian/tourneyrank/internal/domain/participation"
	"github.com/okian/tourneyrank/internal/domain/pool"
	"github.com/okian/tourneyrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

// fixedRatings answers every lookup with the same state unless a pool entry
// is present.
type fixedRatings struct {
	def    model.RatingState
	byPool map[model.Pool]map[model.PlayerID]model.RatingState
}

func (f fixedRatings) RatingOrDefault(p model.Pool, id model.PlayerID) model.RatingState {
	if s, ok := f.byPool[p][id]; ok {
		return s
	}
	return f.def
}

func TestBuilder_WinCounting(t *testing.T) {
	Convey("Given a four-player game with a tie for first", t, func() {
		m := pool.NewManager()
		b := participation.NewBuilder(m)
		g := modeltest.Game(0, modeltest.CupA, "G1",
			[]model.Player{modeltest.P1, modeltest.P2, modeltest.P3, modeltest.P4}, 1, 1, 3, 4)
		_, err := m.Process(context.Background(), g)
		So(err, ShouldBeNil)
		b.Observe(g)

		Convey("Then both rank-1 players count a win and the others do not", func() {
			wins := map[model.PlayerID]int{}
			for _, ef := range b.EventFacts() {
				wins[ef.Player.ID] = ef.GamesWon
			}
			So(wins, ShouldResemble, map[model.PlayerID]int{1: 1, 2: 1, 3: 0, 4: 0})
		})

		Convey("Then game facts keep placement order and carry format-pool ratings", func() {
			facts := b.GameFacts()
			So(facts, ShouldHaveLength, 4)
			for i, f := range facts {
				So(f.Player, ShouldResemble, g.Placements[i].Player)
				So(f.Rank, ShouldEqual, g.Placements[i].Rank)
				s, ok := m.Rating(model.PoolThreeOrFourPlayer, f.Player.ID)
				So(ok, ShouldBeTrue)
				So(f.Rating, ShouldResemble, s)
			}
		})

		Convey("When a second game is won by P3", func() {
			g2 := modeltest.Game(1, modeltest.CupA, "G2", []model.Player{modeltest.P1, modeltest.P3}, 2, 1)
			_, err := m.Process(context.Background(), g2)
			So(err, ShouldBeNil)
			b.Observe(g2)

			Convey("Then counts accumulate and snapshots refresh", func() {
				ef, ok := b.EventFact(participation.EventKey{Event: modeltest.CupA.ID, Player: modeltest.P3.ID})
				So(ok, ShouldBeTrue)
				So(ef.GamesWon, ShouldEqual, 1)
				latest, _ := m.Rating(model.PoolThreeOrFourPlayer, modeltest.P3.ID)
				So(ef.Rating, ShouldResemble, latest)

				p2, _ := b.EventFact(participation.EventKey{Event: modeltest.CupA.ID, Player: modeltest.P2.ID})
				So(p2.GamesWon, ShouldEqual, 1)
				So(b.GameFacts(), ShouldHaveLength, 6)
				So(b.EventFacts(), ShouldHaveLength, 4)
			})
		})
	})
}

func TestBuilder_DefaultSnapshot(t *testing.T) {
	Convey("Given a ratings source with no entry in the format pool", t, func() {
		def := model.RatingState{Mu: 25, Sigma: 25.0 / 3, Ordinal: 1200}
		r := fixedRatings{def: def, byPool: map[model.Pool]map[model.PlayerID]model.RatingState{
			model.PoolOneVsOne: {1: {Mu: 30, Sigma: 5, Ordinal: 1560}},
		}}
		b := participation.NewBuilder(r)
		b.Observe(modeltest.CupAFirst())

		Convey("Then every fact uses the default prior snapshot", func() {
			for _, f := range b.GameFacts() {
				So(f.Rating, ShouldResemble, def)
			}
			for _, f := range b.EventFacts() {
				So(f.Rating, ShouldResemble, def)
			}
		})
	})

	Convey("Given facts in separate events", t, func() {
		b := participation.NewBuilder(fixedRatings{})
		for _, g := range modeltest.Mixed() {
			b.Observe(g)
		}

		Convey("Then event facts are keyed by event and player", func() {
			keys := []participation.EventKey{}
			for _, ef := range b.EventFacts() {
				keys = append(keys, ef.Key())
			}
			So(keys, ShouldResemble, []participation.EventKey{
				{Event: 10, Player: 1}, {Event: 10, Player: 2}, {Event: 10, Player: 3},
				{Event: 20, Player: 1}, {Event: 20, Player: 4},
				{Event: 10, Player: 4},
			})
		})
	})
}
