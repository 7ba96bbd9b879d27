package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/tourneyrank/internal/domain/dedupe"
	"github.com/okian/tourneyrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper[string]()

			Convey("Then it should be empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording game keys", func() {
			d := dedupe.NewInMemoryDeduper[model.GameKey](dedupe.WithCapacity(8))
			k := model.GameKey{Event: 1, Name: "R1 G1"}

			Convey("And the key is new", func() {
				seen := d.SeenAndRecord(ctx, k)

				Convey("Then it should return false and record the key", func() {
					So(seen, ShouldBeFalse)
					So(d.Seen(ctx, k), ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key was already seen", func() {
				d.SeenAndRecord(ctx, k)
				seen := d.SeenAndRecord(ctx, model.GameKey{Event: 1, Name: "R1 G1"})

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the same name exists in another event", func() {
				d.SeenAndRecord(ctx, k)
				seen := d.SeenAndRecord(ctx, model.GameKey{Event: 2, Name: "R1 G1"})

				Convey("Then it is a different key", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 2)
				})
			})
		})

		Convey("When unrecording keys", func() {
			d := dedupe.NewInMemoryDeduper[string]()

			Convey("And the key exists", func() {
				d.SeenAndRecord(ctx, "k1")
				d.Unrecord(ctx, "k1")

				Convey("Then it should be removed and take the insert path again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.Seen(ctx, "k1"), ShouldBeFalse)
					So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
				})
			})

			Convey("And the key doesn't exist", func() {
				d.Unrecord(ctx, "nonexistent")

				Convey("Then it should not affect the size", func() {
					So(d.Size(), ShouldEqual, 0)
				})
			})
		})

		Convey("When built from warm-up keys", func() {
			d := dedupe.FromKeys([]string{"a", "b", "a"})

			Convey("Then duplicates collapse and every key is seen", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.Seen(ctx, "a"), ShouldBeTrue)
				So(d.Seen(ctx, "b"), ShouldBeTrue)
			})
		})

		Convey("When many keys are recorded", func() {
			d := dedupe.NewInMemoryDeduper[string]()
			const n = 1000
			for i := 0; i < n; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeFalse)
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, int64(n))
				So(d.Seen(ctx, "k-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper[int]()
		const goroutines = 10
		var fresh atomic.Int64
		var wg sync.WaitGroup

		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(context.Background(), i) {
						fresh.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each key is newly recorded exactly once", func() {
			So(fresh.Load(), ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
