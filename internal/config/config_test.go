package config_test

import (
	"errors"
	"testing"

	"github.com/okian/tourneyrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverNone)
			convey.So(cfg.SyncWorkers, convey.ShouldEqual, 4)
			convey.So(cfg.OrdinalScale, convey.ShouldEqual, 24)
			convey.So(cfg.OrdinalOffset, convey.ShouldEqual, 1200)
			convey.So(cfg.ModelSigma, convey.ShouldAlmostEqual, 25.0/3, 1e-12)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad setting", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty ledger", func(c *config.Config) { c.LedgerPath = " " }},
			{"zero scale", func(c *config.Config) { c.OrdinalScale = 0 }},
			{"negative sigma", func(c *config.Config) { c.ModelSigma = -1 }},
			{"zero beta", func(c *config.Config) { c.ModelBeta = 0 }},
			{"zero progress", func(c *config.Config) { c.ProgressEvery = 0 }},
			{"zero limit", func(c *config.Config) { c.MaxRankingsLimit = 0 }},
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown driver", func(c *config.Config) { c.StoreDriver = "mysql" }},
			{"postgres without url", func(c *config.Config) { c.StoreDriver = config.DriverPostgres }},
		}
		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" is rejected", func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then a postgres store with a url is accepted", func() {
			cfg := config.New()
			cfg.StoreDriver = config.DriverPostgres
			cfg.DatabaseURL = "postgres://localhost/tourney"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
