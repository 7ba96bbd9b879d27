package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/tourneyrank/internal/adapters/repository"
	"github.com/okian/tourneyrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty memory store with two registered players", t, func() {
		s := repository.NewMemoryStore(repository.WithPlayers(1, 2))

		Convey("When inserting a game", func() {
			key := model.GameKey{Event: 10, Name: "G1"}
			id, err := s.InsertGame(ctx, key)
			So(err, ShouldBeNil)

			Convey("Then it is loaded back with its id", func() {
				games, err := s.LoadGames(ctx)
				So(err, ShouldBeNil)
				So(games, ShouldResemble, map[model.GameKey]int64{key: id})
				So(s.Count(repository.FamilyGames), ShouldEqual, 1)
			})

			Convey("Then inserting it again returns the stored id", func() {
				again, err := s.InsertGame(ctx, key)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, id)
				So(s.Count(repository.FamilyGames), ShouldEqual, 1)
			})

			Convey("Then participation rows round-trip", func() {
				row := repository.GameParticipationRow{Game: id, Player: 1, Ranking: 1, Rating: model.RatingState{Mu: 27, Sigma: 8, Ordinal: 1230}}
				So(s.InsertGameParticipation(ctx, row), ShouldBeNil)
				row.Ranking = 2
				So(s.UpdateGameParticipation(ctx, row), ShouldBeNil)

				rows, err := s.LoadGameParticipation(ctx)
				So(err, ShouldBeNil)
				So(rows[row.Key()], ShouldResemble, row)
				So(s.Calls(repository.FamilyGameParticipation, repository.OpUpdate), ShouldEqual, 1)
			})
		})

		Convey("When updating rows that do not exist", func() {
			err := s.UpdateEventParticipation(ctx, repository.EventParticipationRow{Event: 1, Player: 1})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			err = s.UpdatePlayerRating(ctx, 9, model.RatingState{Mu: 1, Sigma: 1})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When updating a registered player's rating", func() {
			r := model.RatingState{Mu: 26, Sigma: 7, Ordinal: 1224}
			So(s.UpdatePlayerRating(ctx, 2, r), ShouldBeNil)

			Convey("Then only rated players are loaded", func() {
				ratings, err := s.LoadPlayerRatings(ctx)
				So(err, ShouldBeNil)
				So(ratings, ShouldResemble, map[model.PlayerID]model.RatingState{2: r})
			})

			Convey("Then re-upserting the player keeps the rating", func() {
				So(s.UpsertPlayers(ctx, []model.Player{{ID: 2, Name: "P2"}}), ShouldBeNil)
				So(s.Count(repository.FamilyPlayerRatings), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a store with injected faults", t, func() {
		boom := errors.New("boom")
		s := repository.NewMemoryStore(repository.WithFaults(func(_ context.Context, f repository.Family, op repository.Operation, key any) error {
			if f == repository.FamilyGames && op == repository.OpInsert && key.(model.GameKey).Name == "bad" {
				return boom
			}
			if f == repository.FamilyEventParticipation && op == repository.OpLoad {
				return boom
			}
			return nil
		}))

		Convey("Then matching calls fail and others pass", func() {
			_, err := s.InsertGame(ctx, model.GameKey{Event: 1, Name: "bad"})
			So(errors.Is(err, boom), ShouldBeTrue)
			_, err = s.InsertGame(ctx, model.GameKey{Event: 1, Name: "good"})
			So(err, ShouldBeNil)
			_, err = s.LoadEventParticipation(ctx)
			So(errors.Is(err, boom), ShouldBeTrue)
			So(s.Count(repository.FamilyGames), ShouldEqual, 1)
			So(s.Calls(repository.FamilyGames, repository.OpInsert), ShouldEqual, 2)

			s.ResetCalls()
			So(s.Calls(repository.FamilyGames, repository.OpInsert), ShouldEqual, 0)
		})
	})
}

func TestRatingCodec(t *testing.T) {
	Convey("Given a rating state", t, func() {
		s := model.RatingState{Mu: 27.5, Sigma: 8.25, Ordinal: 1242}
		b, err := repository.EncodeRating(s)
		So(err, ShouldBeNil)

		Convey("Then it encodes as mu/sigma/ordinal JSON and decodes back", func() {
			So(string(b), ShouldEqual, `{"mu":27.5,"sigma":8.25,"ordinal":1242}`)
			back, err := repository.DecodeRating(b)
			So(err, ShouldBeNil)
			So(back, ShouldResemble, s)
		})

		Convey("Then garbage is rejected", func() {
			_, err := repository.DecodeRating([]byte("nope"))
			So(errors.Is(err, repository.ErrBadRating), ShouldBeTrue)
		})
	})
}
