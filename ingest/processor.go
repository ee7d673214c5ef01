package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
	"github.com/hillwire/powergraph/graph/evolve"
)

// Result summarizes what one batch did to the stores.
type Result struct {
	Source string `json:"source"`

	EntitiesUpserted   int `json:"entities_upserted"`
	AssignmentsApplied int `json:"assignments_applied"`
	EdgeEventsApplied  int `json:"edge_events_applied"`
	TransfersRecorded  int `json:"transfers_recorded"`

	// SnapshotID is set when processing the batch produced a new snapshot.
	SnapshotID string `json:"snapshot_id,omitempty"`

	Rejected []RejectedRecord `json:"rejected,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// RejectedRecord names one record the batch dropped and why.
type RejectedRecord struct {
	Kind   string `json:"kind"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Snapshotter captures graph state after a batch lands. Returns the new
// snapshot id, or empty when the state has not changed.
type Snapshotter interface {
	MaybeSnapshot(ctx context.Context, state string) (string, error)
}

// Processor applies observation batches to the graph stores.
type Processor struct {
	entities graph.EntityStore
	edges    graph.EdgeStore
	ledger   graph.Ledger
	evolver  *evolve.Engine
	snaps    Snapshotter
	logger   *zap.SugaredLogger
}

// NewProcessor creates a batch processor over the given stores.
func NewProcessor(entities graph.EntityStore, edges graph.EdgeStore, ledger graph.Ledger,
	evolver *evolve.Engine, logger *zap.SugaredLogger) *Processor {
	return &Processor{
		entities: entities,
		edges:    edges,
		ledger:   ledger,
		evolver:  evolver,
		logger:   logger,
	}
}

// ProcessFile reads a batch document from disk and processes it. A file that
// does not parse as a batch is rejected whole; individual bad records inside
// a parsable batch are rejected individually.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read batch file %s", path)
	}

	var batch ObservationBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformed, "batch file %s: %v", path, err)
	}
	return p.Process(ctx, &batch)
}

// WithSnapshots wires a snapshot manager. After each batch that reports a
// legislative state, the processor asks it to capture the graph.
func (p *Processor) WithSnapshots(s Snapshotter) *Processor {
	p.snaps = s
	return p
}

// Process applies the batch. Entities first, then assignments, then edge
// events, then transfers. Malformed records are rejected and logged, never
// partially applied; the rest of the batch continues.
func (p *Processor) Process(ctx context.Context, batch *ObservationBatch) (*Result, error) {
	result := &Result{
		Source:    batch.Source,
		StartTime: time.Now().UTC(),
	}

	for i, obs := range batch.Entities {
		if err := p.applyEntity(ctx, obs); err != nil {
			p.reject(result, "entity", i, err)
			continue
		}
		result.EntitiesUpserted++
	}

	for i, ev := range batch.Assignments {
		if err := p.applyAssignment(ctx, batch, ev); err != nil {
			p.reject(result, "assignment", i, err)
			continue
		}
		result.AssignmentsApplied++
	}

	for i, ev := range batch.Edges {
		if err := p.applyEdgeEvent(ctx, batch, ev); err != nil {
			p.reject(result, "edge", i, err)
			continue
		}
		result.EdgeEventsApplied++
	}

	for i, obs := range batch.Transfers {
		if err := p.applyTransfer(ctx, batch, obs); err != nil {
			p.reject(result, "transfer", i, err)
			continue
		}
		result.TransfersRecorded++
	}

	if p.snaps != nil && batch.LegislativeState != "" {
		id, err := p.snaps.MaybeSnapshot(ctx, batch.LegislativeState)
		switch {
		case err != nil:
			// The batch already applied; a failed snapshot is not grounds
			// to report the records as rejected
			if p.logger != nil {
				p.logger.Warnw("Snapshot after batch failed",
					"state", batch.LegislativeState,
					"error", err,
				)
			}
		case id != "":
			result.SnapshotID = id
		}
	}

	result.EndTime = time.Now().UTC()

	if p.logger != nil {
		p.logger.Infow("Batch processed",
			"source", batch.Source,
			"entities", result.EntitiesUpserted,
			"assignments", result.AssignmentsApplied,
			"edge_events", result.EdgeEventsApplied,
			"transfers", result.TransfersRecorded,
			"rejected", len(result.Rejected),
		)
	}
	return result, nil
}

func (p *Processor) reject(result *Result, kind string, index int, err error) {
	result.Rejected = append(result.Rejected, RejectedRecord{
		Kind:   kind,
		Index:  index,
		Reason: err.Error(),
	})
	if p.logger != nil {
		p.logger.Warnw("Record rejected",
			"kind", kind,
			"index", index,
			"error", err,
		)
	}
}

func (p *Processor) applyEntity(ctx context.Context, obs EntityObservation) error {
	if err := obs.validate(); err != nil {
		return err
	}
	_, err := p.entities.Upsert(ctx, graph.EntityRecord{
		NaturalKey:               obs.NaturalKey,
		EntityType:               graph.EntityType(obs.EntityType),
		EntityClass:              obs.EntityClass,
		Name:                     obs.Name,
		Active:                   obs.Active,
		ContinuityScore:          obs.ContinuityScore,
		InstitutionalMemoryDepth: obs.InstitutionalMemoryDepth,
	})
	return err
}

// applyAssignment maintains both views of a formal role: the assignment list
// on the entity and the has_formal_authority_over edge in the graph.
func (p *Processor) applyAssignment(ctx context.Context, batch *ObservationBatch, ev AssignmentEvent) error {
	if err := ev.validate(); err != nil {
		return err
	}

	entity, err := p.entities.GetByNaturalKey(ctx, ev.EntityKey)
	if err != nil {
		return err
	}
	target, err := p.entities.GetByNaturalKey(ctx, ev.TargetKey)
	if err != nil {
		return err
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if ev.Action == "assigned" {
		err := p.entities.AddAssignment(ctx, entity.ID, graph.Assignment{
			AssignmentType: ev.AssignmentType,
			TargetEntityID: target.ID,
			Role:           ev.Role,
			AssignedAt:     ts,
		})
		// A replayed assignment is already current; the edge activation
		// below is idempotent on its own event id
		if err != nil && !errors.IsDuplicate(err) {
			return err
		}

		return p.evolver.Apply(ctx, evolve.Event{
			Kind:     evolve.KindActivation,
			From:     entity.ID,
			To:       target.ID,
			EdgeType: graph.EdgeHasFormalAuthorityOver,
			Weights: graph.WeightUpdate{
				ProceduralPower:     ev.ProceduralPower,
				InstitutionalMemory: ev.InstitutionalMemory,
			},
			LegislativeState: batch.LegislativeState,
			EventID:          ev.EventID,
			Cause:            fmt.Sprintf("%s assignment: %s", ev.AssignmentType, ev.Role),
			OccurredAt:       ts,
		})
	}

	err = p.entities.EndAssignment(ctx, entity.ID, graph.AssignmentKey{
		AssignmentType: ev.AssignmentType,
		TargetEntityID: target.ID,
	}, ts)
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	return p.evolver.Apply(ctx, evolve.Event{
		Kind:       evolve.KindDeactivation,
		From:       entity.ID,
		To:         target.ID,
		EdgeType:   graph.EdgeHasFormalAuthorityOver,
		EventID:    ev.EventID,
		Cause:      fmt.Sprintf("%s assignment ended", ev.AssignmentType),
		OccurredAt: ts,
	})
}

func (p *Processor) applyEdgeEvent(ctx context.Context, batch *ObservationBatch, ev EdgeEvent) error {
	if err := ev.validate(); err != nil {
		return err
	}

	from, err := p.entities.GetByNaturalKey(ctx, ev.FromKey)
	if err != nil {
		return err
	}
	to, err := p.entities.GetByNaturalKey(ctx, ev.ToKey)
	if err != nil {
		return err
	}

	state := ev.LegislativeState
	if state == "" {
		state = batch.LegislativeState
	}

	return p.evolver.Apply(ctx, evolve.Event{
		Kind:             evolve.Kind(ev.Kind),
		From:             from.ID,
		To:               to.ID,
		EdgeType:         graph.EdgeType(ev.EdgeType),
		Weights:          ev.Weights,
		LegislativeState: state,
		EventID:          ev.EventID,
		Cause:            ev.Cause,
		OccurredAt:       ev.OccurredAt,
	})
}

func (p *Processor) applyTransfer(ctx context.Context, batch *ObservationBatch, obs TransferObservation) error {
	if err := obs.validate(); err != nil {
		return err
	}

	state := obs.LegislativeState
	if state == "" {
		state = batch.LegislativeState
	}

	_, err := p.ledger.Record(ctx, &graph.TransferEvent{
		FromEntityID:     p.resolveKey(ctx, obs.FromKey),
		ToEntityID:       p.resolveKey(ctx, obs.ToKey),
		Mechanism:        obs.Mechanism,
		Weights:          obs.Weights,
		LegislativeState: state,
		TransferredAt:    obs.TransferredAt,
	})
	return err
}

// resolveKey maps a natural key to its entity id when one exists; unknown
// keys pass through verbatim as unvalidated claims.
func (p *Processor) resolveKey(ctx context.Context, key string) string {
	if e, err := p.entities.GetByNaturalKey(ctx, key); err == nil {
		return e.ID
	}
	return key
}
