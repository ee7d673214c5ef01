package graph

import (
	"context"
	"time"
)

// EntityRecord is the input to EntityStore.Upsert. When ID is empty the
// store resolves the entity by NaturalKey: repeated upserts with the same
// natural key always resolve to the same entity id.
type EntityRecord struct {
	ID          string
	NaturalKey  string
	EntityType  EntityType
	EntityClass string
	Name        string

	// Optional attribute updates; nil leaves the stored value untouched
	// (new entities default to active with zero scores).
	Active                   *bool
	ContinuityScore          *float64
	InstitutionalMemoryDepth *float64
}

// EntityStore holds versioned records for staff, members, and committees.
// Implementations serialize their own mutations (single writer per store).
type EntityStore interface {
	// Upsert creates or updates an entity and returns its id. Idempotent:
	// duplicate natural keys resolve to the same entity.
	Upsert(ctx context.Context, rec EntityRecord) (string, error)

	// Get returns the entity or a NotFound error.
	Get(ctx context.Context, entityID string) (*Entity, error)

	// GetByNaturalKey returns the entity with the given natural key or a
	// NotFound error.
	GetByNaturalKey(ctx context.Context, naturalKey string) (*Entity, error)

	// ListByClass returns all entities of the given entity class.
	ListByClass(ctx context.Context, entityClass string) ([]*Entity, error)

	// ListAll returns every entity in the store.
	ListAll(ctx context.Context) ([]*Entity, error)

	// AddAssignment appends to current assignments and the timeline.
	// A duplicate (assignment_type, target) pair is a Duplicate error.
	AddAssignment(ctx context.Context, entityID string, a Assignment) error

	// EndAssignment moves the assignment to history and appends a timeline
	// event. A missing assignment reports NotFound; the caller decides.
	EndAssignment(ctx context.Context, entityID string, key AssignmentKey, endedAt time.Time) error

	// RefreshNetworkSpan recomputes network_span from the entity's distinct
	// ACTIVE edge counterparties and returns the new value.
	RefreshNetworkSpan(ctx context.Context, entityID string) (int, error)
}

// EdgeObservation is one observed relationship, routed through
// EdgeStore.Observe. EventID is the upstream idempotency key; replaying the
// same EventID is a no-op.
type EdgeObservation struct {
	From             string
	To               string
	Type             EdgeType
	Weights          WeightUpdate
	LegislativeState string
	EventID          string
	Cause            string
	ObservedAt       time.Time
}

// EdgeStore holds directed influence edges.
type EdgeStore interface {
	// Observe upserts the unique ACTIVE edge for the observation's
	// (from, to, edge_type) triple, merging weights last-observed-wins, and
	// returns the edge id. A second observation of an existing relationship
	// updates the ACTIVE edge rather than creating a duplicate.
	Observe(ctx context.Context, obs EdgeObservation) (string, error)

	// Get returns the edge or a NotFound error.
	Get(ctx context.Context, edgeID string) (*Edge, error)

	// FindActive returns the ACTIVE edge for the triple, or NotFound.
	FindActive(ctx context.Context, from, to string, t EdgeType) (*Edge, error)

	// ActiveEdgesFrom returns ACTIVE edges out of an entity, filtered by
	// legislative state per Edge.AppliesAt. Empty atState matches all.
	ActiveEdgesFrom(ctx context.Context, entityID string, atState string) ([]*Edge, error)

	// ListActive returns every ACTIVE edge.
	ListActive(ctx context.Context) ([]*Edge, error)

	// UpdateWeights replaces the edge's weight vector and appends hist to
	// the activation history. Archived edges are rejected.
	UpdateWeights(ctx context.Context, edgeID string, w WeightVector, hist EdgeHistoryEvent) error

	// ApplyDecay replaces the edge's weight vector and appends hist to the
	// decay triggers. Archived edges are rejected.
	ApplyDecay(ctx context.Context, edgeID string, w WeightVector, hist EdgeHistoryEvent) error

	// Archive sets the edge ARCHIVED and appends a decay trigger. Archival
	// is terminal; re-archiving is a no-op, not an error.
	Archive(ctx context.Context, edgeID, cause, eventID string) error
}

// ClassificationStore persists derived classifications and their supersession
// chain.
type ClassificationStore interface {
	// Insert persists a new classification. Any current record for the same
	// (entity, context) is closed: its effective_until is set and the new
	// record's OverridesClassificationID points at it.
	Insert(ctx context.Context, c *Classification) error

	// Current returns the open classification for (entity, context), or
	// NotFound if none.
	Current(ctx context.Context, entityID string, cctx ClassificationContext) (*Classification, error)

	// History returns all classifications for an entity, oldest first.
	History(ctx context.Context, entityID string) ([]*Classification, error)
}

// TransferIter lazily walks ledger entries in append order. Always Close it.
type TransferIter interface {
	Next() bool
	Event() *TransferEvent
	Err() error
	Close() error
}

// Ledger is the append-only log of power-transfer events. It records claims,
// not validated authority: transfers referencing unknown entities are
// accepted as long as they are well-formed.
type Ledger interface {
	// Record appends a transfer and returns its id. The entry's Seq is
	// assigned by the ledger.
	Record(ctx context.Context, t *TransferEvent) (string, error)

	// Since returns an iterator over events with TransferredAt >= since and
	// Seq > afterSeq, in append order. afterSeq=0 starts from the beginning;
	// a consumer restarts from the last Seq it consumed.
	Since(ctx context.Context, since time.Time, afterSeq int64) (TransferIter, error)
}

// SnapshotStore persists immutable network snapshots.
type SnapshotStore interface {
	Insert(ctx context.Context, s *Snapshot) error

	// Latest returns the most recent snapshot ordered by the record's own
	// snapshot_at field (never storage metadata), or nil when none exists.
	Latest(ctx context.Context) (*Snapshot, error)

	// Get returns the snapshot or a NotFound error.
	Get(ctx context.Context, snapshotID string) (*Snapshot, error)

	// List returns up to limit snapshots, newest first by snapshot_at.
	List(ctx context.Context, limit int) ([]*Snapshot, error)
}
