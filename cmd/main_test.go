package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/tourneyrank/internal/adapters/repository"
	service "github.com/okian/tourneyrank/internal/app"
	"github.com/okian/tourneyrank/internal/config"
	"github.com/okian/tourneyrank/internal/export"
	"github.com/okian/tourneyrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func execute(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		cmd := newRootCommand()

		convey.Convey("Then it exposes run, serve and generate", func() {
			names := map[string]bool{}
			for _, c := range cmd.Commands() {
				names[c.Name()] = true
			}
			convey.So(names["run"], convey.ShouldBeTrue)
			convey.So(names["serve"], convey.ShouldBeTrue)
			convey.So(names["generate"], convey.ShouldBeTrue)
		})
	})
}

func TestGenerateAndRun(t *testing.T) {
	convey.Convey("Given a generated ledger and a SQLite store", t, func() {
		ctx := context.Background()
		dataDir := t.TempDir()
		outDir := t.TempDir()

		t.Setenv("TOURNEY_LOG_LEVEL", "error")
		t.Setenv("TOURNEY_LEDGER_PATH", filepath.Join(dataDir, "ledger.csv"))
		t.Setenv("TOURNEY_EVENTS_PATH", filepath.Join(dataDir, "events.csv"))
		t.Setenv("TOURNEY_PLAYERS_PATH", filepath.Join(dataDir, "players.csv"))
		t.Setenv("TOURNEY_OUTPUT_DIR", outDir)
		t.Setenv("TOURNEY_STORE_DRIVER", "sqlite")
		t.Setenv("TOURNEY_SQLITE_PATH", filepath.Join(t.TempDir(), "tourney.db"))
		t.Setenv("TOURNEY_SEED_REFERENCE", "true")

		_, err := execute(ctx, "generate", "--dir", dataDir, "--events", "3", "--players", "8", "--games-per-event", "4")
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the ledger is run", func() {
			out, err := execute(ctx, "run")
			convey.So(err, convey.ShouldBeNil)

			var sum service.Summary
			convey.So(json.Unmarshal([]byte(out), &sum), convey.ShouldBeNil)

			convey.Convey("Then every game is replayed, synced and exported", func() {
				convey.So(sum.GamesTotal, convey.ShouldEqual, 12)
				convey.So(sum.GamesProcessed, convey.ShouldEqual, 12)
				convey.So(sum.Synced, convey.ShouldBeTrue)
				convey.So(sum.Sync, convey.ShouldNotBeNil)
				convey.So(sum.Sync.Family(repository.FamilyGames).Inserted, convey.ShouldEqual, 12)
				convey.So(sum.Sync.Failed(), convey.ShouldEqual, 0)

				_, statErr := os.Stat(filepath.Join(outDir, export.HistoryFile))
				convey.So(statErr, convey.ShouldBeNil)
			})

			convey.Convey("Then a second run writes nothing new", func() {
				out, err := execute(ctx, "run")
				convey.So(err, convey.ShouldBeNil)

				var again service.Summary
				convey.So(json.Unmarshal([]byte(out), &again), convey.ShouldBeNil)
				for _, f := range repository.Families {
					convey.So(again.Sync.Family(f).Inserted, convey.ShouldEqual, 0)
					convey.So(again.Sync.Family(f).Updated, convey.ShouldEqual, 0)
				}
				convey.So(again.RunID, convey.ShouldNotEqual, sum.RunID)
			})
		})
	})
}

func TestRunWithUnreachableStore(t *testing.T) {
	convey.Convey("Given a generated ledger and a postgres store nobody listens on", t, func() {
		ctx := context.Background()
		dataDir := t.TempDir()
		outDir := t.TempDir()

		t.Setenv("TOURNEY_LOG_LEVEL", "error")
		t.Setenv("TOURNEY_LEDGER_PATH", filepath.Join(dataDir, "ledger.csv"))
		t.Setenv("TOURNEY_EVENTS_PATH", filepath.Join(dataDir, "events.csv"))
		t.Setenv("TOURNEY_PLAYERS_PATH", filepath.Join(dataDir, "players.csv"))
		t.Setenv("TOURNEY_OUTPUT_DIR", outDir)
		t.Setenv("TOURNEY_STORE_DRIVER", "postgres")
		t.Setenv("TOURNEY_DATABASE_URL", "postgres://u:p@127.0.0.1:1/db?connect_timeout=2")

		_, err := execute(ctx, "generate", "--dir", dataDir, "--events", "2", "--players", "6", "--games-per-event", "3")
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the ledger is run", func() {
			out, err := execute(ctx, "run")

			convey.Convey("Then the run completes locally without syncing", func() {
				convey.So(err, convey.ShouldBeNil)

				var sum service.Summary
				convey.So(json.Unmarshal([]byte(out), &sum), convey.ShouldBeNil)
				convey.So(sum.GamesProcessed, convey.ShouldEqual, 6)
				convey.So(sum.Synced, convey.ShouldBeFalse)
				convey.So(sum.Sync, convey.ShouldBeNil)
				convey.So(sum.SyncSkipped, convey.ShouldStartWith, "store unavailable")

				_, statErr := os.Stat(filepath.Join(outDir, export.GamesFile))
				convey.So(statErr, convey.ShouldBeNil)
			})
		})
	})
}

func TestRunFailures(t *testing.T) {
	convey.Convey("Given an environment without a ledger", t, func() {
		ctx := context.Background()
		t.Setenv("TOURNEY_LOG_LEVEL", "error")
		t.Setenv("TOURNEY_LEDGER_PATH", filepath.Join(t.TempDir(), "missing.csv"))

		convey.Convey("When run is executed", func() {
			out, err := execute(ctx, "run")

			convey.Convey("Then it fails before writing a summary", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "failed to load ledger")
				convey.So(out, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the configuration is invalid", func() {
			t.Setenv("TOURNEY_STORE_DRIVER", "mongo")
			_, err := execute(ctx, "run")

			convey.Convey("Then the config error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "failed to load config")
			})
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given the store wiring", t, func() {
		ctx := context.Background()
		convey.So(logger.Init(), convey.ShouldBeNil)

		convey.Convey("When no driver is configured", func() {
			store, closeStore, err := openStore(ctx, config.New())
			defer closeStore()

			convey.Convey("Then sync is disabled", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(store, convey.ShouldBeNil)
				convey.So(newService(config.New(), store, nil), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the SQLite driver is configured", func() {
			cfg := config.New()
			cfg.StoreDriver = config.DriverSQLite
			cfg.SQLitePath = filepath.Join(t.TempDir(), "nested", "tourney.db")

			store, closeStore, err := openStore(ctx, cfg)
			defer closeStore()

			convey.Convey("Then a migrated store is returned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(store, convey.ShouldNotBeNil)
				games, err := store.LoadGames(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(games, convey.ShouldBeEmpty)
			})
		})
	})
}
