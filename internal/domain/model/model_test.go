package model_test

import (
	"testing"

	model "github.com/okian/tourneyrank/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestEventFormatPool(t *testing.T) {
	convey.Convey("Given events with both format flags", t, func() {
		duel := model.Event{ID: 1, Name: "Duel Cup", OneVsOne: true}
		ffa := model.Event{ID: 2, Name: "Cup A"}

		convey.Convey("Then each maps to exactly one format pool", func() {
			convey.So(duel.FormatPool(), convey.ShouldEqual, model.PoolOneVsOne)
			convey.So(ffa.FormatPool(), convey.ShouldEqual, model.PoolThreeOrFourPlayer)
		})
	})
}

func TestGame(t *testing.T) {
	convey.Convey("Given a game with a tie for first", t, func() {
		g := model.Game{
			Event: model.Event{ID: 9, Name: "Cup A"},
			Name:  "R1 G1",
			Placements: []model.Placement{
				{Player: model.Player{ID: 1, Name: "a"}, Rank: 1},
				{Player: model.Player{ID: 2, Name: "b"}, Rank: 1},
				{Player: model.Player{ID: 3, Name: "c"}, Rank: 3},
			},
		}

		convey.Convey("Then ranks keep placement order and gaps", func() {
			convey.So(g.Ranks(), convey.ShouldResemble, []int{1, 1, 3})
		})

		convey.Convey("Then the natural key is event id plus name", func() {
			convey.So(g.Key(), convey.ShouldResemble, model.GameKey{Event: 9, Name: "R1 G1"})
			convey.So(g.Key().String(), convey.ShouldEqual, "9/R1 G1")
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given the pool enum", t, func() {
		convey.Convey("Then names round-trip", func() {
			for _, p := range model.Pools {
				parsed, err := model.ParsePool(p.String())
				convey.So(err, convey.ShouldBeNil)
				convey.So(parsed, convey.ShouldEqual, p)
			}
		})

		convey.Convey("Then unknown names are rejected", func() {
			_, err := model.ParsePool("by_event")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(model.Pool(42).String(), convey.ShouldEqual, "pool(42)")
		})
	})
}
