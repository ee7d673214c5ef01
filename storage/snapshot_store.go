package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
)

const snapshotSelectColumns = `id, schema_version, snapshot_at, legislative_state,
	entities, edges, classifications, created_at`

// SQLSnapshotStore persists immutable network snapshots with a SQLite
// backend. Ordering always uses the record's own snapshot_at field, never
// storage metadata: a restored backup must not corrupt the "most recent
// snapshot" comparison.
type SQLSnapshotStore struct {
	db     *DB
	logger *zap.SugaredLogger
}

// NewSnapshotStore creates a SQL-based snapshot store.
func NewSnapshotStore(db *DB, logger *zap.SugaredLogger) *SQLSnapshotStore {
	return &SQLSnapshotStore{db: db, logger: logger}
}

// Insert persists a snapshot. Snapshots are immutable; there is no update.
func (s *SQLSnapshotStore) Insert(ctx context.Context, snap *graph.Snapshot) error {
	if snap.ID == "" {
		return errors.NewMalformed("snapshot requires an id")
	}
	if snap.LegislativeState == "" {
		return errors.NewMalformed("snapshot requires a legislative state")
	}
	if snap.SnapshotAt.IsZero() {
		return errors.NewMalformed("snapshot requires snapshot_at")
	}

	s.db.Lock()
	defer s.db.Unlock()

	entitiesJSON, err := json.Marshal(snap.Entities)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot entities")
	}
	edgesJSON, err := json.Marshal(snap.Edges)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot edges")
	}
	classificationsJSON, err := json.Marshal(snap.Classifications)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot classifications")
	}

	snap.SchemaVersion = graph.SchemaVersion
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.SQL().ExecContext(ctx, `
		INSERT INTO snapshots (id, schema_version, snapshot_at, legislative_state,
			entities, edges, classifications, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.SchemaVersion, snap.SnapshotAt, snap.LegislativeState,
		string(entitiesJSON), string(edgesJSON), string(classificationsJSON), snap.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert snapshot")
	}

	if s.logger != nil {
		s.logger.Infow("Snapshot persisted",
			"snapshot_id", snap.ID,
			"legislative_state", snap.LegislativeState,
			"entities", len(snap.Entities),
			"edges", len(snap.Edges),
		)
	}
	return nil
}

// Latest returns the most recent snapshot by snapshot_at, or nil when the
// store is empty.
func (s *SQLSnapshotStore) Latest(ctx context.Context) (*graph.Snapshot, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		"SELECT "+snapshotSelectColumns+" FROM snapshots ORDER BY snapshot_at DESC, created_at DESC LIMIT 1")

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query latest snapshot")
	}
	return snap, nil
}

// Get returns the snapshot or a NotFound error.
func (s *SQLSnapshotStore) Get(ctx context.Context, snapshotID string) (*graph.Snapshot, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		"SELECT "+snapshotSelectColumns+" FROM snapshots WHERE id = ?", snapshotID)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("snapshot %q", snapshotID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query snapshot")
	}
	return snap, nil
}

// List returns up to limit snapshots, newest first by snapshot_at.
func (s *SQLSnapshotStore) List(ctx context.Context, limit int) ([]*graph.Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.SQL().QueryContext(ctx,
		"SELECT "+snapshotSelectColumns+" FROM snapshots ORDER BY snapshot_at DESC, created_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list snapshots")
	}
	defer rows.Close()

	var snaps []*graph.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan snapshot")
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(row rowScanner) (*graph.Snapshot, error) {
	var snap graph.Snapshot
	var entitiesJSON, edgesJSON, classificationsJSON string

	err := row.Scan(&snap.ID, &snap.SchemaVersion, &snap.SnapshotAt, &snap.LegislativeState,
		&entitiesJSON, &edgesJSON, &classificationsJSON, &snap.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(entitiesJSON), &snap.Entities); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot entities")
	}
	if err := json.Unmarshal([]byte(edgesJSON), &snap.Edges); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot edges")
	}
	if err := json.Unmarshal([]byte(classificationsJSON), &snap.Classifications); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot classifications")
	}
	return &snap, nil
}
