package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/pool"
	types "github.com/okian/tourneyrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func standings() []pool.Standing {
	return []pool.Standing{
		{Player: model.Player{ID: 7, Name: "ada"}, State: model.RatingState{Mu: 30, Sigma: 4, Ordinal: 1632}},
		{Player: model.Player{ID: 3, Name: "bo"}, State: model.RatingState{Mu: 26, Sigma: 5, Ordinal: 1464}},
		{Player: model.Player{ID: 9, Name: "cy"}, State: model.RatingState{Mu: 20, Sigma: 6, Ordinal: 1248}},
	}
}

func TestEntries(t *testing.T) {
	Convey("Given finalized standings", t, func() {
		Convey("When converting without a limit", func() {
			entries := types.Entries(standings(), 0)

			Convey("Then ranks are sequential and fields are copied", func() {
				So(entries, ShouldHaveLength, 3)
				for i, e := range entries {
					So(e.Rank, ShouldEqual, i+1)
				}
				So(entries[0], ShouldResemble, types.Entry{Rank: 1, PlayerID: 7, Player: "ada", Mu: 30, Sigma: 4, Ordinal: 1632})
			})
		})

		Convey("When converting with a limit", func() {
			entries := types.Entries(standings(), 2)

			Convey("Then only the top entries are returned", func() {
				So(entries, ShouldHaveLength, 2)
				So(entries[1].Player, ShouldEqual, "bo")
			})
		})

		Convey("When the limit exceeds the standings", func() {
			So(types.Entries(standings(), 50), ShouldHaveLength, 3)
			So(types.Entries(nil, 5), ShouldBeEmpty)
		})

		Convey("When marshalling an entry", func() {
			b, err := json.Marshal(types.Entries(standings(), 1)[0])

			Convey("Then it uses snake_case keys", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"rank":1,"player_id":7,"player":"ada","mu":30,"sigma":4,"ordinal":1632}`)
			})
		})
	})
}

func TestHistory(t *testing.T) {
	Convey("Given a pool event history", t, func() {
		snaps := []model.RatingState{{Mu: 26, Sigma: 8, Ordinal: 1210}, {Mu: 27, Sigma: 7, Ordinal: 1260}}
		eh := pool.EventHistory{
			Event:   model.Event{ID: 20, Name: "Duel Cup", OneVsOne: true},
			Players: []pool.PlayerHistory{{Player: model.Player{ID: 4, Name: "dee"}, Snapshots: snaps}},
		}

		Convey("Then the read shape carries ids, names and snapshots", func() {
			h := types.History(eh)
			So(h.EventID, ShouldEqual, 20)
			So(h.OneVsOne, ShouldBeTrue)
			So(h.Players, ShouldResemble, []types.PlayerHistory{{PlayerID: 4, Player: "dee", Snapshots: snaps}})
		})
	})
}
