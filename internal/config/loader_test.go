package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/tourneyrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TOURNEY_ADDR", ":8080")
			_ = os.Setenv("TOURNEY_SYNC_WORKERS", "16")
			_ = os.Setenv("TOURNEY_STORE_DRIVER", "sqlite")
			_ = os.Setenv("TOURNEY_ORDINAL_SCALE", "30.5")
			_ = os.Setenv("TOURNEY_SEED_REFERENCE", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SyncWorkers, convey.ShouldEqual, 16)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.OrdinalScale, convey.ShouldEqual, 30.5)
				convey.So(cfg.SeedReference, convey.ShouldBeTrue)
				convey.So(cfg.OrdinalOffset, convey.ShouldEqual, 1200)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
# local overrides
ledger_path: fixtures/ledger.csv
output_dir: build/out
sync_workers: 8
model_z: 2
store_driver: postgres
database_url: postgres://file/tourney
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("TOURNEY_CONFIG", tmpFile)
			_ = os.Setenv("TOURNEY_SYNC_WORKERS", "1")
			_ = os.Setenv("TOURNEY_DATABASE_URL", "postgres://env/tourney")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LedgerPath, convey.ShouldEqual, "fixtures/ledger.csv")
				convey.So(cfg.OutputDir, convey.ShouldEqual, "build/out")
				convey.So(cfg.ModelZ, convey.ShouldEqual, 2)
				convey.So(cfg.SyncWorkers, convey.ShouldEqual, 1)
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://env/tourney")
				convey.So(cfg.EventsPath, convey.ShouldEqual, "data/events.csv")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile("addr: [unclosed\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TOURNEY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("TOURNEY_CONFIG", "/nonexistent/tourney.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("TOURNEY_SYNC_WORKERS", "many")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the postgres store is selected without a url", func() {
			_ = os.Setenv("TOURNEY_STORE_DRIVER", "postgres")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	envVars := []string{
		"TOURNEY_CONFIG",
		"TOURNEY_ADDR",
		"TOURNEY_SYNC_WORKERS",
		"TOURNEY_STORE_DRIVER",
		"TOURNEY_DATABASE_URL",
		"TOURNEY_ORDINAL_SCALE",
		"TOURNEY_SEED_REFERENCE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "tourney-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
