package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/tourneyrank/internal/adapters/http/api"
	"github.com/okian/tourneyrank/internal/adapters/http/swagger"
	"github.com/okian/tourneyrank/internal/adapters/repository"
	"github.com/okian/tourneyrank/internal/adapters/repository/postgres"
	"github.com/okian/tourneyrank/internal/adapters/repository/sqlite"
	service "github.com/okian/tourneyrank/internal/app"
	"github.com/okian/tourneyrank/internal/config"
	"github.com/okian/tourneyrank/internal/domain/rating"
	"github.com/okian/tourneyrank/internal/ledger"
	"github.com/okian/tourneyrank/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// rootOptions holds state shared by every subcommand.
type rootOptions struct {
	envFile string
	cfg     *config.Config
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		// The logger may not be up yet.
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tourneyrank",
		Short:         "Tournament rating pools with idempotent store sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd.Context())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration; ignored when missing")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newGenerateCommand(opts))
	return cmd
}

// setup loads the dotenv file, the configuration (defaults -> optional file
// -> env) and initializes logging.
func (o *rootOptions) setup(ctx context.Context) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", o.envFile, err)
		}
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	o.cfg = cfg

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	// Fall back to info on invalid input.
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Replay the ledger, sync the store and write the exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, closeStore, storeErr := openStore(ctx, opts.cfg)
			defer closeStore()

			svc := newService(opts.cfg, store, storeErr)
			sum, err := runOnce(ctx, opts.cfg, svc)
			if sum != nil {
				if werr := writeSummary(cmd.OutOrStdout(), sum); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run once, then serve rankings and history over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.Get()
			cfg := opts.cfg

			store, closeStore, storeErr := openStore(ctx, cfg)
			defer closeStore()

			svc := newService(cfg, store, storeErr)
			if _, err := runOnce(ctx, cfg, svc); err != nil {
				if errors.Is(err, service.ErrInterrupted) {
					return err
				}
				// Endpoints answer 503 until a run has completed.
				log.Error(ctx, "initial run failed", logger.Error(err))
			}

			return serve(ctx, cfg, svc)
		},
	}
}

func newGenerateCommand(_ *rootOptions) *cobra.Command {
	gen := ledger.DefaultGenerateConfig()
	var dir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a deterministic synthetic ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			l, err := ledger.Generate(ctx, gen)
			if err != nil {
				return err
			}
			paths := ledger.DefaultPaths(dir)
			if err := ledger.WriteFiles(l, paths); err != nil {
				return err
			}
			logger.Get().Info(ctx, "ledger written", logger.String("dir", dir))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "data", "output directory")
	cmd.Flags().Uint64Var(&gen.Seed, "seed", gen.Seed, "random seed")
	cmd.Flags().IntVar(&gen.Events, "events", gen.Events, "number of events")
	cmd.Flags().IntVar(&gen.Players, "players", gen.Players, "number of players")
	cmd.Flags().IntVar(&gen.GamesPerEvent, "games-per-event", gen.GamesPerEvent, "games per event")
	cmd.Flags().IntVar(&gen.OneVsOneEvery, "one-vs-one-every", gen.OneVsOneEvery, "every Nth event is head-to-head; 0 disables")
	return cmd
}

// openStore opens and migrates the configured store. The returned store is
// nil when sync is disabled or the store is unreachable; the run goes on
// without it and the error ends up in the summary.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	log := logger.Get()
	noop := func() {}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, unavailable(ctx, cfg, err)
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, noop, unavailable(ctx, cfg, err)
		}
		log.Info(ctx, "store opened", logger.String("driver", cfg.StoreDriver))
		return st, closer(ctx, st), nil
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, unavailable(ctx, cfg, err)
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, noop, unavailable(ctx, cfg, err)
		}
		log.Info(ctx, "store opened", logger.String("driver", cfg.StoreDriver), logger.String("path", cfg.SQLitePath))
		return st, closer(ctx, st), nil
	default:
		log.Info(ctx, "no store configured; sync disabled")
		return nil, noop, nil
	}
}

func unavailable(ctx context.Context, cfg *config.Config, err error) error {
	logger.Get().Warn(ctx, "store unavailable; continuing without sync",
		logger.String("driver", cfg.StoreDriver),
		logger.Error(err))
	return err
}

func closer(ctx context.Context, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Get().Error(ctx, "store close failed", logger.Error(err))
		}
	}
}

func newService(cfg *config.Config, store repository.Store, storeErr error) *service.Service {
	model := rating.NewPlackettLuce(
		rating.WithMu(cfg.ModelMu),
		rating.WithSigma(cfg.ModelSigma),
		rating.WithBeta(cfg.ModelBeta),
		rating.WithTau(cfg.ModelTau),
		rating.WithKappa(cfg.ModelKappa),
		rating.WithZ(cfg.ModelZ),
	)
	opts := []service.Option{
		service.WithModel(model),
		service.WithTransform(rating.Transform{Scale: cfg.OrdinalScale, Offset: cfg.OrdinalOffset}),
		service.WithSeedReference(cfg.SeedReference),
		service.WithSyncWorkers(cfg.SyncWorkers),
		service.WithProgressEvery(cfg.ProgressEvery),
		service.WithOutputDir(cfg.OutputDir),
		service.WithLogger(logger.Get().Named("service")),
	}
	// A nil interface keeps sync disabled.
	if store != nil {
		opts = append(opts, service.WithStore(store))
	}
	if storeErr != nil {
		opts = append(opts, service.WithStoreUnavailable(storeErr))
	}
	return service.New(opts...)
}

// runOnce loads the ledger and runs svc over it. The summary is nil when the
// ledger could not be loaded.
func runOnce(ctx context.Context, cfg *config.Config, svc *service.Service) (*service.Summary, error) {
	l, err := ledger.LoadFiles(cfg.LedgerPath, cfg.EventsPath, cfg.PlayersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	sum, err := svc.Run(ctx, l)
	return &sum, err
}

func writeSummary(w io.Writer, sum *service.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, svc *service.Service) error {
	log := logger.Get()

	apiServer := api.NewServer(svc,
		api.WithMaxLimit(cfg.MaxRankingsLimit),
		api.WithNotFoundErrors(service.ErrNotFound),
		api.WithUnavailableErrors(service.ErrNoRun),
	)
	router := apiServer.Router(ctx)
	swagger.Register(ctx, router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}

	log.Info(ctx, "server stopped")
	return nil
}
