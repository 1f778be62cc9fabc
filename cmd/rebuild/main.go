package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/swapcircle/catalog-backend/internal/eventstore"
	"github.com/swapcircle/catalog-backend/internal/items"
	"github.com/swapcircle/catalog-backend/internal/replay"
	"github.com/swapcircle/catalog-backend/pkg/config"
	"github.com/swapcircle/catalog-backend/pkg/db"
	pkgerrors "github.com/swapcircle/catalog-backend/pkg/errors"
	"github.com/swapcircle/catalog-backend/pkg/logger"
	"github.com/swapcircle/catalog-backend/pkg/migrate"
)

// rebuild re-derives read-model rows from the event log. With -item it
// rebuilds a single aggregate; without it, every aggregate in the log. The log
// is authoritative, so running this at any time is safe.
func main() {
	itemID := flag.String("item", "", "aggregate id to rebuild (defaults to all)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "rebuild"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "rebuild",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logFailure(ctx, logg, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logFailure(ctx, logg, "failed to run dev migrations", err)
		os.Exit(1)
	}

	store := eventstore.NewRepository(dbClient.DB())
	repo := items.NewRepository(dbClient.DB())
	replayer, err := replay.NewReplayer(dbClient, store, repo, logg)
	if err != nil {
		logg.Error(ctx, "failed to build replayer", err)
		os.Exit(1)
	}

	if *itemID != "" {
		id, err := uuid.Parse(*itemID)
		if err != nil {
			logg.Error(ctx, "invalid item id", err)
			os.Exit(1)
		}
		if _, err := replayer.Rebuild(ctx, id); err != nil {
			logFailure(ctx, logg, "rebuild failed", err)
			os.Exit(1)
		}
		return
	}

	count, err := replayer.RebuildAll(ctx)
	ctx = logg.WithField(ctx, "rebuilt", count)
	if err != nil {
		logFailure(ctx, logg, "rebuild completed with failures", err)
		os.Exit(1)
	}
	logg.Info(ctx, "rebuild complete")
}

// logFailure attaches the flattened error chain and any Postgres driver detail
// before the error line, so a failed run is diagnosable from the log alone.
func logFailure(ctx context.Context, logg *logger.Logger, msg string, err error) {
	dump := pkgerrors.Dump(err)
	ctx = logg.WithFields(ctx, map[string]any{
		"error_code":    dump.Code,
		"error_chain":   dump.Chain,
		"pg_code":       dump.PGCode,
		"pg_constraint": dump.PGConstraint,
		"pg_detail":     dump.PGDetail,
	})
	logg.Error(ctx, msg, err)
}
