package pool_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/model/modeltest"
	"github.com/okian/tourneyrank/internal/domain/pool"
	"github.com/okian/tourneyrank/internal/domain/rating"
	"github.com/okian/tourneyrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

// brokenModel drops the last posterior.
type brokenModel struct{ rating.Model }

func (b brokenModel) Rate(priors []model.RatingState, ranks []int) ([]model.RatingState, error) {
	out, err := b.Model.Rate(priors, ranks)
	if err != nil {
		return nil, err
	}
	return out[:len(out)-1], nil
}

// flakyModel fails every Rate call after the first ok ones.
type flakyModel struct {
	rating.Model
	ok    int
	calls *int
}

func (f flakyModel) Rate(priors []model.RatingState, ranks []int) ([]model.RatingState, error) {
	*f.calls++
	if *f.calls > f.ok {
		return nil, errModelDown
	}
	return f.Model.Rate(priors, ranks)
}

var errModelDown = errors.New("model down")

func replay(ctx context.Context, m *pool.Manager, games []model.Game) {
	for _, g := range games {
		_, err := m.Process(ctx, g)
		So(err, ShouldBeNil)
	}
}

func names(st []pool.Standing) []string {
	out := make([]string, len(st))
	for i, s := range st {
		out[i] = s.Player.Name
	}
	return out
}

func TestManager_CupA(t *testing.T) {
	ctx := context.Background()

	Convey("Given one multi-player game in Cup A", t, func() {
		m := pool.NewManager()
		res, err := m.Process(ctx, modeltest.CupAFirst())
		So(err, ShouldBeNil)

		Convey("Then all_time and three_or_four_player hold P1 > P2 > P3", func() {
			for _, p := range []model.Pool{model.PoolAllTime, model.PoolThreeOrFourPlayer} {
				st := m.Finalize(p)
				So(names(st), ShouldResemble, []string{"P1", "P2", "P3"})
				So(st[0].State.Ordinal, ShouldBeGreaterThan, st[1].State.Ordinal)
				So(st[1].State.Ordinal, ShouldBeGreaterThan, st[2].State.Ordinal)
			}
		})

		Convey("Then one_vs_one is empty", func() {
			So(m.Len(model.PoolOneVsOne), ShouldEqual, 0)
			So(m.Finalize(model.PoolOneVsOne), ShouldBeEmpty)
		})

		Convey("Then the event history has one snapshot per player", func() {
			eh, ok := m.EventHistory(modeltest.CupA.ID)
			So(ok, ShouldBeTrue)
			So(eh.Players, ShouldHaveLength, 3)
			for _, ph := range eh.Players {
				So(ph.Snapshots, ShouldHaveLength, 1)
			}
		})

		Convey("Then the result is aligned with the placements", func() {
			So(res.FormatPool, ShouldEqual, model.PoolThreeOrFourPlayer)
			for i, pl := range res.Game.Placements {
				s, ok := m.Rating(model.PoolAllTime, pl.Player.ID)
				So(ok, ShouldBeTrue)
				So(res.AllTime[i], ShouldResemble, s)
			}
		})

		Convey("When a second game reverses the finish", func() {
			_, err := m.Process(ctx, modeltest.CupASecond())
			So(err, ShouldBeNil)

			Convey("Then every player has two snapshots in ledger order", func() {
				eh, _ := m.EventHistory(modeltest.CupA.ID)
				So(eh.Players, ShouldHaveLength, 3)
				for _, ph := range eh.Players {
					So(ph.Snapshots, ShouldHaveLength, 2)
					last, _ := m.Rating(model.PoolAllTime, ph.Player.ID)
					So(ph.Snapshots[1], ShouldResemble, last)
				}
				So(eh.Players[0].Player, ShouldResemble, modeltest.P1)
			})
		})
	})
}

func TestManager_PositionalCorrespondence(t *testing.T) {
	Convey("Given the same finish listed in two input orders", t, func() {
		a := pool.NewManager()
		b := pool.NewManager()
		ctx := context.Background()

		_, err := a.Process(ctx, modeltest.Game(0, modeltest.CupA, "G", []model.Player{modeltest.P1, modeltest.P2, modeltest.P3}, 1, 2, 3))
		So(err, ShouldBeNil)
		_, err = b.Process(ctx, modeltest.Game(0, modeltest.CupA, "G", []model.Player{modeltest.P3, modeltest.P1, modeltest.P2}, 3, 1, 2))
		So(err, ShouldBeNil)

		Convey("Then each player receives the posterior of their own finish", func() {
			for _, p := range []model.Player{modeltest.P1, modeltest.P2, modeltest.P3} {
				ra, _ := a.Rating(model.PoolAllTime, p.ID)
				rb, _ := b.Rating(model.PoolAllTime, p.ID)
				So(rb.Mu, ShouldAlmostEqual, ra.Mu, 1e-12)
				So(rb.Sigma, ShouldAlmostEqual, ra.Sigma, 1e-12)
			}
			w, _ := b.Rating(model.PoolAllTime, modeltest.P1.ID)
			l, _ := b.Rating(model.PoolAllTime, modeltest.P3.ID)
			So(w.Mu, ShouldBeGreaterThan, l.Mu)
		})
	})
}

func TestManager_PoolPartition(t *testing.T) {
	Convey("Given a ledger mixing both formats", t, func() {
		ctx := context.Background()
		games := modeltest.Mixed()

		Convey("Then every game feeds all_time and exactly one format pool", func() {
			m := pool.NewManager()
			for _, g := range games {
				before := map[model.Pool]map[model.PlayerID]model.RatingState{}
				for _, p := range model.Pools {
					before[p] = map[model.PlayerID]model.RatingState{}
					for _, pl := range g.Placements {
						if s, ok := m.Rating(p, pl.Player.ID); ok {
							before[p][pl.Player.ID] = s
						}
					}
				}
				_, err := m.Process(ctx, g)
				So(err, ShouldBeNil)

				changed := func(p model.Pool) bool {
					for _, pl := range g.Placements {
						s, present := m.Rating(p, pl.Player.ID)
						if !present {
							continue
						}
						if prev, ok := before[p][pl.Player.ID]; !ok || prev != s {
							return true
						}
					}
					return false
				}
				So(changed(model.PoolAllTime), ShouldBeTrue)
				So(changed(model.PoolOneVsOne), ShouldEqual, g.Event.OneVsOne)
				So(changed(model.PoolThreeOrFourPlayer), ShouldEqual, !g.Event.OneVsOne)
			}
			So(m.Len(model.PoolAllTime), ShouldEqual, 4)
			So(m.Len(model.PoolOneVsOne), ShouldEqual, 2)
			So(m.Len(model.PoolThreeOrFourPlayer), ShouldEqual, 4)
			So(m.History(), ShouldHaveLength, 2)
		})

		Convey("Then replaying twice is deterministic", func() {
			a := pool.NewManager()
			b := pool.NewManager()
			replay(ctx, a, games)
			replay(ctx, b, games)
			for _, p := range model.Pools {
				So(b.Finalize(p), ShouldResemble, a.Finalize(p))
			}
			So(b.History(), ShouldResemble, a.History())
		})
	})
}

func TestManager_Defaults(t *testing.T) {
	Convey("Given a player who only played one-vs-one", t, func() {
		m := pool.NewManager()
		_, err := m.Process(context.Background(), modeltest.Game(0, modeltest.DuelCup, "D1", []model.Player{modeltest.P1, modeltest.P2}, 1, 2))
		So(err, ShouldBeNil)

		Convey("Then the multi-player pool reports the default prior snapshot", func() {
			_, ok := m.Rating(model.PoolThreeOrFourPlayer, modeltest.P1.ID)
			So(ok, ShouldBeFalse)
			def := m.RatingOrDefault(model.PoolThreeOrFourPlayer, modeltest.P1.ID)
			So(def, ShouldResemble, m.DefaultSnapshot())
			So(def.Mu, ShouldEqual, 25)
			So(def.Ordinal, ShouldAlmostEqual, 1200, 1e-9)
		})

		Convey("Then the player list follows first appearance", func() {
			So(m.Players(), ShouldResemble, []model.Player{modeltest.P1, modeltest.P2})
		})
	})

	Convey("Given a custom display transform", t, func() {
		m := pool.NewManager(pool.WithTransform(rating.Transform{Scale: 1}))

		Convey("Then the default snapshot ordinal is the raw ordinal", func() {
			So(m.DefaultSnapshot().Ordinal, ShouldAlmostEqual, 0, 1e-9)
		})
	})
}

func TestManager_Ties(t *testing.T) {
	Convey("Given players who never played", t, func() {
		m := pool.NewManager()
		m.EnsurePlayer(model.PoolAllTime, modeltest.P3)
		m.EnsurePlayer(model.PoolAllTime, modeltest.P1)
		m.EnsurePlayer(model.PoolAllTime, modeltest.P2)
		m.EnsurePlayer(model.PoolAllTime, modeltest.P1)

		Convey("Then equal ordinals keep insertion order", func() {
			So(names(m.Finalize(model.PoolAllTime)), ShouldResemble, []string{"P3", "P1", "P2"})
		})
	})
}

func TestManager_Errors(t *testing.T) {
	Convey("Given a game applied to a pool without ensuring players", t, func() {
		m := pool.NewManager()
		_, err := m.ApplyGame(model.PoolOneVsOne, modeltest.CupAFirst())

		Convey("Then it fails with ErrUnknownPlayer", func() {
			So(errors.Is(err, pool.ErrUnknownPlayer), ShouldBeTrue)
		})
	})

	Convey("Given a model that loses a posterior", t, func() {
		m := pool.NewManager(pool.WithModel(brokenModel{rating.NewPlackettLuce()}))
		_, err := m.Process(context.Background(), modeltest.CupAFirst())

		Convey("Then the game fails with ErrModelArity", func() {
			So(errors.Is(err, pool.ErrModelArity), ShouldBeTrue)
		})
	})

	Convey("Given a game with an invalid rank", t, func() {
		m := pool.NewManager()
		_, err := m.Process(context.Background(), modeltest.Game(0, modeltest.CupA, "bad", []model.Player{modeltest.P1, modeltest.P2}, 0, 1))

		Convey("Then the model error is surfaced", func() {
			So(errors.Is(err, rating.ErrInvalidRank), ShouldBeTrue)
		})
	})
	Convey("Given a model that fails while rating the format pool", t, func() {
		calls := 0
		m := pool.NewManager(pool.WithModel(flakyModel{Model: rating.NewPlackettLuce(), ok: 3, calls: &calls}))
		ctx := context.Background()
		_, err := m.Process(ctx, modeltest.CupAFirst())
		So(err, ShouldBeNil)
		before, _ := m.Rating(model.PoolAllTime, modeltest.P1.ID)

		_, err = m.Process(ctx, modeltest.Game(1, modeltest.CupA, "G2", []model.Player{modeltest.P1, modeltest.P4}, 1, 2))

		Convey("Then the error is surfaced and no pool moved", func() {
			So(errors.Is(err, errModelDown), ShouldBeTrue)
			after, _ := m.Rating(model.PoolAllTime, modeltest.P1.ID)
			So(after, ShouldResemble, before)
			So(m.Len(model.PoolAllTime), ShouldEqual, 3)
			So(m.Len(model.PoolThreeOrFourPlayer), ShouldEqual, 3)
			h, ok := m.EventHistory(modeltest.CupA.ID)
			So(ok, ShouldBeTrue)
			for _, ph := range h.Players {
				So(ph.Snapshots, ShouldHaveLength, 1)
			}
		})
	})
}
