package commands

import (
	"database/sql"

	"github.com/hillwire/powergraph/config"
	"github.com/hillwire/powergraph/db"
	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph/classify"
	"github.com/hillwire/powergraph/graph/evolve"
	"github.com/hillwire/powergraph/logger"
	"github.com/hillwire/powergraph/snapshot"
	"github.com/hillwire/powergraph/storage"
)

// app bundles the configured stores and engines every command works with.
type app struct {
	cfg *config.Config

	sqlDB *sql.DB
	db    *storage.DB

	entities        *storage.SQLEntityStore
	edges           *storage.SQLEdgeStore
	classifications *storage.SQLClassificationStore
	ledger          *storage.SQLLedger
	snapshots       *storage.SQLSnapshotStore

	classifier *classify.Engine
	evolver    *evolve.Engine
}

// openApp loads configuration, opens the migrated database, and wires the
// stores and engines once, at command start.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	sqlDB, err := db.OpenWithMigrations(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	wrapped := storage.New(sqlDB)
	edges := storage.NewEdgeStore(wrapped, logger.Logger)

	return &app{
		cfg:             cfg,
		sqlDB:           sqlDB,
		db:              wrapped,
		entities:        storage.NewEntityStore(wrapped, logger.Logger),
		edges:           edges,
		classifications: storage.NewClassificationStore(wrapped, logger.Logger),
		ledger:          storage.NewLedger(wrapped, logger.Logger),
		snapshots:       storage.NewSnapshotStore(wrapped, logger.Logger),
		classifier: classify.New(classify.Thresholds{
			Primary:   cfg.Classify.PrimaryThreshold,
			Secondary: cfg.Classify.SecondaryThreshold,
		}, logger.Logger),
		evolver: evolve.New(edges, evolve.Config{
			StrengthenIncrement: cfg.Evolve.StrengthenIncrement,
			DecayStep:           cfg.Evolve.DecayStep,
		}, logger.Logger),
	}, nil
}

// snapshotter builds the snapshot manager over the app's stores.
func (a *app) snapshotter() *snapshot.Manager {
	return snapshot.New(a.entities, a.edges, a.snapshots, a.classifier, a.db, logger.Logger)
}

func (a *app) Close() error {
	return a.sqlDB.Close()
}
