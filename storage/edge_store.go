package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
)

const (
	edgeSelectColumns = `id, schema_version, from_entity_id, to_entity_id, edge_type, status,
		procedural_power, institutional_memory, extra_weights, legislative_state,
		activation_events, decay_triggers, created_at, updated_at`

	edgeInsertQuery = `
		INSERT INTO edges (id, schema_version, from_entity_id, to_entity_id, edge_type, status,
			procedural_power, institutional_memory, extra_weights, legislative_state,
			activation_events, decay_triggers, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// SQLEdgeStore implements graph.EdgeStore with a SQLite backend.
type SQLEdgeStore struct {
	db     *DB
	logger *zap.SugaredLogger
}

// NewEdgeStore creates a SQL-based edge store.
func NewEdgeStore(db *DB, logger *zap.SugaredLogger) *SQLEdgeStore {
	return &SQLEdgeStore{db: db, logger: logger}
}

// Observe upserts the unique ACTIVE edge for the observation's triple. A
// repeated observation merges weights last-observed-wins into the existing
// ACTIVE edge; it never creates a duplicate. Observations referencing
// unknown entities are rejected here, before any engine sees the edge.
func (s *SQLEdgeStore) Observe(ctx context.Context, obs graph.EdgeObservation) (string, error) {
	if err := validateObservation(obs); err != nil {
		return "", err
	}

	s.db.Lock()
	defer s.db.Unlock()

	if err := s.requireEntities(ctx, obs.From, obs.To); err != nil {
		return "", err
	}

	observedAt := obs.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	existing, err := s.findActive(ctx, obs.From, obs.To, obs.Type)
	if err != nil && !errors.IsNotFound(err) {
		return "", err
	}

	if existing != nil {
		// Replayed event: already merged, nothing to apply
		if existing.HasHistoryEvent(obs.EventID) {
			return existing.ID, nil
		}

		existing.Weights.Apply(obs.Weights)
		existing.ActivationEvents = append(existing.ActivationEvents, graph.EdgeHistoryEvent{
			Event:     "observed",
			EventID:   obs.EventID,
			Cause:     obs.Cause,
			Timestamp: observedAt,
		})
		if err := s.save(ctx, existing); err != nil {
			return "", err
		}
		if s.logger != nil {
			s.logger.Debugw("Edge observation merged",
				"edge_id", existing.ID,
				"edge_type", string(obs.Type),
				"procedural_power", existing.Weights.ProceduralPower,
			)
		}
		return existing.ID, nil
	}

	e := &graph.Edge{
		ID:               uuid.NewString(),
		SchemaVersion:    graph.SchemaVersion,
		FromEntityID:     obs.From,
		ToEntityID:       obs.To,
		Type:             obs.Type,
		Status:           graph.EdgeActive,
		Weights:          obs.Weights.ToVector(),
		LegislativeState: obs.LegislativeState,
		ActivationEvents: []graph.EdgeHistoryEvent{{
			Event:     "activated",
			EventID:   obs.EventID,
			Cause:     obs.Cause,
			Timestamp: observedAt,
		}},
		CreatedAt: observedAt,
		UpdatedAt: observedAt,
	}

	docs, err := marshalEdgeDocs(e)
	if err != nil {
		return "", err
	}

	_, err = s.db.SQL().ExecContext(ctx, edgeInsertQuery,
		e.ID, e.SchemaVersion, e.FromEntityID, e.ToEntityID, string(e.Type), string(e.Status),
		e.Weights.ProceduralPower, e.Weights.InstitutionalMemory, docs.ExtraWeightsJSON,
		nullableString(e.LegislativeState), docs.ActivationsJSON, docs.DecaysJSON,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert edge")
	}

	if s.logger != nil {
		s.logger.Debugw("Edge activated",
			"edge_id", e.ID,
			"edge_type", string(e.Type),
			"from", e.FromEntityID,
			"to", e.ToEntityID,
		)
	}
	return e.ID, nil
}

// Get returns the edge or a NotFound error.
func (s *SQLEdgeStore) Get(ctx context.Context, edgeID string) (*graph.Edge, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		"SELECT "+edgeSelectColumns+" FROM edges WHERE id = ?", edgeID)

	e, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("edge %q", edgeID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query edge")
	}
	return e, nil
}

// FindActive returns the ACTIVE edge for the triple, or NotFound.
func (s *SQLEdgeStore) FindActive(ctx context.Context, from, to string, t graph.EdgeType) (*graph.Edge, error) {
	return s.findActive(ctx, from, to, t)
}

func (s *SQLEdgeStore) findActive(ctx context.Context, from, to string, t graph.EdgeType) (*graph.Edge, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		"SELECT "+edgeSelectColumns+` FROM edges
		 WHERE from_entity_id = ? AND to_entity_id = ? AND edge_type = ? AND status = 'ACTIVE'`,
		from, to, string(t))

	e, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("active edge %s -> %s (%s)", from, to, t)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query active edge")
	}
	return e, nil
}

// ActiveEdgesFrom returns ACTIVE edges out of an entity in scope for the
// given legislative state: state-agnostic edges always match, state-scoped
// edges match their own state or an unscoped query.
func (s *SQLEdgeStore) ActiveEdgesFrom(ctx context.Context, entityID string, atState string) ([]*graph.Edge, error) {
	query := "SELECT " + edgeSelectColumns + ` FROM edges
		WHERE from_entity_id = ? AND status = 'ACTIVE'`
	args := []interface{}{entityID}

	if atState != "" {
		query += " AND (legislative_state IS NULL OR legislative_state = ?)"
		args = append(args, atState)
	}
	query += " ORDER BY to_entity_id, edge_type, id"

	return s.listEdges(ctx, query, args...)
}

// ListActive returns every ACTIVE edge, in deterministic order.
func (s *SQLEdgeStore) ListActive(ctx context.Context) ([]*graph.Edge, error) {
	return s.listEdges(ctx, "SELECT "+edgeSelectColumns+` FROM edges
		WHERE status = 'ACTIVE' ORDER BY from_entity_id, to_entity_id, edge_type, id`)
}

func (s *SQLEdgeStore) listEdges(ctx context.Context, query string, args ...interface{}) ([]*graph.Edge, error) {
	rows, err := s.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list edges")
	}
	defer rows.Close()

	var edges []*graph.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan edge")
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// UpdateWeights replaces the edge's weight vector and records hist in the
// activation history. Archived edges are rejected with ErrArchived.
func (s *SQLEdgeStore) UpdateWeights(ctx context.Context, edgeID string, w graph.WeightVector, hist graph.EdgeHistoryEvent) error {
	if err := w.Validate(); err != nil {
		return err
	}

	s.db.Lock()
	defer s.db.Unlock()

	e, err := s.Get(ctx, edgeID)
	if err != nil {
		return err
	}
	if e.Status == graph.EdgeArchived {
		return errors.Wrapf(errors.ErrArchived, "edge %s", edgeID)
	}

	if hist.Timestamp.IsZero() {
		hist.Timestamp = time.Now().UTC()
	}
	e.Weights = w
	e.ActivationEvents = append(e.ActivationEvents, hist)

	return s.save(ctx, e)
}

// ApplyDecay replaces the edge's weight vector and records hist in the decay
// triggers. Archived edges are rejected with ErrArchived.
func (s *SQLEdgeStore) ApplyDecay(ctx context.Context, edgeID string, w graph.WeightVector, hist graph.EdgeHistoryEvent) error {
	if err := w.Validate(); err != nil {
		return err
	}

	s.db.Lock()
	defer s.db.Unlock()

	e, err := s.Get(ctx, edgeID)
	if err != nil {
		return err
	}
	if e.Status == graph.EdgeArchived {
		return errors.Wrapf(errors.ErrArchived, "edge %s", edgeID)
	}

	if hist.Timestamp.IsZero() {
		hist.Timestamp = time.Now().UTC()
	}
	e.Weights = w
	e.DecayTriggers = append(e.DecayTriggers, hist)

	return s.save(ctx, e)
}

// Archive sets the edge ARCHIVED and appends a decay trigger. Re-archiving
// an archived edge is a no-op.
func (s *SQLEdgeStore) Archive(ctx context.Context, edgeID, cause, eventID string) error {
	s.db.Lock()
	defer s.db.Unlock()

	e, err := s.Get(ctx, edgeID)
	if err != nil {
		return err
	}
	if e.Status == graph.EdgeArchived {
		return nil
	}

	e.Status = graph.EdgeArchived
	e.DecayTriggers = append(e.DecayTriggers, graph.EdgeHistoryEvent{
		Event:     "archived",
		EventID:   eventID,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	})

	if err := s.save(ctx, e); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Infow("Edge archived",
			"edge_id", e.ID,
			"edge_type", string(e.Type),
			"cause", cause,
		)
	}
	return nil
}

func (s *SQLEdgeStore) save(ctx context.Context, e *graph.Edge) error {
	docs, err := marshalEdgeDocs(e)
	if err != nil {
		return err
	}

	e.UpdatedAt = time.Now().UTC()
	_, err = s.db.SQL().ExecContext(ctx, `
		UPDATE edges SET status = ?, procedural_power = ?, institutional_memory = ?,
			extra_weights = ?, activation_events = ?, decay_triggers = ?, updated_at = ?
		WHERE id = ?`,
		string(e.Status), e.Weights.ProceduralPower, e.Weights.InstitutionalMemory,
		docs.ExtraWeightsJSON, docs.ActivationsJSON, docs.DecaysJSON, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save edge")
	}
	return nil
}

func (s *SQLEdgeStore) requireEntities(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		var exists bool
		err := s.db.SQL().QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM entities WHERE id = ?)", id).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "failed to check entity existence")
		}
		if !exists {
			return errors.NewNotFound("entity %q referenced by edge", id)
		}
	}
	return nil
}

func validateObservation(obs graph.EdgeObservation) error {
	if obs.From == "" || obs.To == "" {
		return errors.NewMalformed("edge observation requires from and to entity ids")
	}
	if obs.From == obs.To {
		return errors.NewMalformed("self-edges are not allowed: %s", obs.From)
	}
	if !obs.Type.Valid() {
		return errors.NewMalformed("unknown edge type %q", obs.Type)
	}
	return obs.Weights.Validate()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanEdge(row rowScanner) (*graph.Edge, error) {
	var e graph.Edge
	var edgeType, status, extraJSON, activationsJSON, decaysJSON string
	var legislativeState sql.NullString

	err := row.Scan(&e.ID, &e.SchemaVersion, &e.FromEntityID, &e.ToEntityID, &edgeType, &status,
		&e.Weights.ProceduralPower, &e.Weights.InstitutionalMemory, &extraJSON, &legislativeState,
		&activationsJSON, &decaysJSON, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.Type = graph.EdgeType(edgeType)
	e.Status = graph.EdgeStatus(status)
	if legislativeState.Valid {
		e.LegislativeState = legislativeState.String
	}
	if err := json.Unmarshal([]byte(extraJSON), &e.Weights.Extra); err != nil {
		return nil, errors.Wrap(err, "unmarshal extra weights")
	}
	if len(e.Weights.Extra) == 0 {
		e.Weights.Extra = nil
	}
	if err := json.Unmarshal([]byte(activationsJSON), &e.ActivationEvents); err != nil {
		return nil, errors.Wrap(err, "unmarshal activation events")
	}
	if err := json.Unmarshal([]byte(decaysJSON), &e.DecayTriggers); err != nil {
		return nil, errors.Wrap(err, "unmarshal decay triggers")
	}
	return &e, nil
}
