// Package snapshot materializes immutable point-in-time views of the
// influence graph, keyed by legislative state. A snapshot embeds copies of
// every entity, every ACTIVE edge, and freshly derived classifications, so
// downstream readers never depend on the live stores.
package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
	"github.com/hillwire/powergraph/graph/classify"
)

// ReadLocker is the shared lock the manager holds across its reads so the
// snapshot observes a consistent cut. Writers are excluded for the duration
// of the reads only; the insert itself runs after the lock is released.
type ReadLocker interface {
	RLock()
	RUnlock()
}

// Manager decides when a new snapshot is due and materializes it.
type Manager struct {
	entities graph.EntityStore
	edges    graph.EdgeStore
	snaps    graph.SnapshotStore
	engine   *classify.Engine
	lock     ReadLocker
	logger   *zap.SugaredLogger
}

// New creates a snapshot manager over the given stores.
func New(entities graph.EntityStore, edges graph.EdgeStore, snaps graph.SnapshotStore,
	engine *classify.Engine, lock ReadLocker, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		entities: entities,
		edges:    edges,
		snaps:    snaps,
		engine:   engine,
		lock:     lock,
		logger:   logger,
	}
}

// MaybeSnapshot takes a snapshot when currentState differs from the state
// recorded in the most recent snapshot, compared by the snapshot's own
// snapshot_at field. Returns the new snapshot id, or "" when the state is
// unchanged and no snapshot is due. Taking a snapshot never mutates the
// entity store, the edge store, or the ledger.
func (m *Manager) MaybeSnapshot(ctx context.Context, currentState string) (string, error) {
	if currentState == "" {
		return "", errors.NewMalformed("legislative state must not be empty")
	}

	snap, err := m.assemble(ctx, currentState)
	if err != nil {
		return "", err
	}
	if snap == nil {
		if m.logger != nil {
			m.logger.Debugw("Snapshot skipped, legislative state unchanged",
				"legislative_state", currentState)
		}
		return "", nil
	}

	if err := m.snaps.Insert(ctx, snap); err != nil {
		return "", err
	}
	return snap.ID, nil
}

// assemble performs all reads under the shared lock and returns the snapshot
// to persist, or nil when none is due.
func (m *Manager) assemble(ctx context.Context, currentState string) (*graph.Snapshot, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	latest, err := m.snaps.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.LegislativeState == currentState {
		return nil, nil
	}

	entities, err := m.entities.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := m.edges.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	snap := &graph.Snapshot{
		ID:               uuid.NewString(),
		SchemaVersion:    graph.SchemaVersion,
		SnapshotAt:       time.Now().UTC(),
		LegislativeState: currentState,
	}

	outgoing := make(map[string][]*graph.Edge)
	for _, e := range edges {
		snap.Edges = append(snap.Edges, *e)
		if e.AppliesAt(currentState) {
			outgoing[e.FromEntityID] = append(outgoing[e.FromEntityID], e)
		}
	}

	cctx := graph.ClassificationContext{LegislativeState: currentState}
	for _, ent := range entities {
		snap.Entities = append(snap.Entities, *ent)
		if c := m.engine.Classify(ent.ID, outgoing[ent.ID], cctx); c != nil {
			c.ID = uuid.NewString()
			snap.Classifications = append(snap.Classifications, *c)
		}
	}

	if m.logger != nil {
		m.logger.Infow("Snapshot assembled",
			"snapshot_id", snap.ID,
			"legislative_state", currentState,
			"entities", len(snap.Entities),
			"edges", len(snap.Edges),
			"classifications", len(snap.Classifications),
		)
	}
	return snap, nil
}
