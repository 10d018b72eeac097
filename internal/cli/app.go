package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/healthlog/internal/cache"
	"github.com/roach88/healthlog/internal/config"
	"github.com/roach88/healthlog/internal/logging"
	"github.com/roach88/healthlog/internal/model"
	"github.com/roach88/healthlog/internal/repo"
	"github.com/roach88/healthlog/internal/store"
)

// app is everything a command needs, opened from the global flags.
type app struct {
	cfg   *config.Config
	l     *zap.Logger
	store *store.Store
	cache *cache.Store
	out   *OutputFormatter
	ids   model.IDGenerator
	now   func() time.Time
}

// openApp loads the config, opens the database and loads the cache.
// Callers must close the returned app.
func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	l, err := logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up logging", err)
	}

	st, err := store.Open(ctx, cfg.StoreOptions(), l)
	if err != nil {
		return nil, storageError("failed to open database", err)
	}

	a := &app{
		cfg:   cfg,
		l:     l,
		store: st,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
		ids: opts.IDGenerator,
		now: opts.Now,
	}
	rl := l.Named("repo")
	a.cache = cache.NewStore(repo.NewFields(st, rl), repo.NewRecords(st, rl), st, cfg.CacheOptions(), l)

	if a.ids == nil {
		a.ids = model.UUIDv7Generator{}
	}
	if a.now == nil {
		a.now = time.Now
	}

	if err := a.cache.LoadAll(ctx); err != nil {
		a.close()
		return nil, storageError("failed to load data", err)
	}

	a.out.VerboseLog("Opened %s (%d fields, %d records)", cfg.Database.Path, a.cache.Fields.Len(), a.cache.Records.Len())
	return a, nil
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		a.l.Warn("Close failed", zap.Error(err))
	}
	_ = a.l.Sync()
}

// withApp opens the app, runs fn and closes the app.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}
