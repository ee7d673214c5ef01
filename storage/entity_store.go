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
	entitySelectColumns = `id, schema_version, natural_key, entity_type, entity_class, name, active,
		continuity_score, network_span, institutional_memory_depth,
		current_assignments, historical_assignments, assignment_timeline,
		created_at, updated_at`

	entityInsertQuery = `
		INSERT INTO entities (id, schema_version, natural_key, entity_type, entity_class, name, active,
			continuity_score, network_span, institutional_memory_depth,
			current_assignments, historical_assignments, assignment_timeline, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	entityNetworkSpanQuery = `
		SELECT COUNT(*) FROM (
			SELECT to_entity_id AS other FROM edges WHERE from_entity_id = ? AND status = 'ACTIVE'
			UNION
			SELECT from_entity_id AS other FROM edges WHERE to_entity_id = ? AND status = 'ACTIVE'
		)`
)

// SQLEntityStore implements graph.EntityStore with a SQLite backend.
type SQLEntityStore struct {
	db     *DB
	logger *zap.SugaredLogger
}

// NewEntityStore creates a SQL-based entity store.
func NewEntityStore(db *DB, logger *zap.SugaredLogger) *SQLEntityStore {
	return &SQLEntityStore{db: db, logger: logger}
}

// Upsert creates or updates an entity, resolving by id when supplied and by
// natural key otherwise. Duplicate natural keys always resolve to the same
// entity id.
func (s *SQLEntityStore) Upsert(ctx context.Context, rec graph.EntityRecord) (string, error) {
	if err := validateEntityRecord(rec); err != nil {
		return "", err
	}

	s.db.Lock()
	defer s.db.Unlock()

	existing, err := s.resolve(ctx, rec)
	if err != nil && !errors.IsNotFound(err) {
		return "", err
	}

	if existing == nil {
		return s.insert(ctx, rec)
	}
	return existing.ID, s.update(ctx, existing, rec)
}

func (s *SQLEntityStore) resolve(ctx context.Context, rec graph.EntityRecord) (*graph.Entity, error) {
	if rec.ID != "" {
		return s.get(ctx, "id", rec.ID)
	}
	return s.get(ctx, "natural_key", rec.NaturalKey)
}

func (s *SQLEntityStore) insert(ctx context.Context, rec graph.EntityRecord) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	naturalKey := rec.NaturalKey
	if naturalKey == "" {
		naturalKey = id
	}

	now := time.Now().UTC()
	e := &graph.Entity{
		ID:            id,
		SchemaVersion: graph.SchemaVersion,
		NaturalKey:    naturalKey,
		EntityType:    rec.EntityType,
		EntityClass:   rec.EntityClass,
		Name:          rec.Name,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if rec.Active != nil {
		e.Active = *rec.Active
	}
	if rec.ContinuityScore != nil {
		e.ContinuityScore = *rec.ContinuityScore
	}
	if rec.InstitutionalMemoryDepth != nil {
		e.InstitutionalMemoryDepth = *rec.InstitutionalMemoryDepth
	}

	docs, err := marshalEntityDocs(e)
	if err != nil {
		return "", err
	}

	_, err = s.db.SQL().ExecContext(ctx, entityInsertQuery,
		e.ID, e.SchemaVersion, e.NaturalKey, string(e.EntityType), e.EntityClass, e.Name, e.Active,
		e.ContinuityScore, e.NetworkSpan, e.InstitutionalMemoryDepth,
		docs.CurrentJSON, docs.HistoricalJSON, docs.TimelineJSON, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert entity")
	}

	if s.logger != nil {
		s.logger.Debugw("Entity created",
			"entity_id", e.ID,
			"entity_class", e.EntityClass,
			"natural_key", e.NaturalKey,
		)
	}
	return e.ID, nil
}

func (s *SQLEntityStore) update(ctx context.Context, existing *graph.Entity, rec graph.EntityRecord) error {
	if rec.EntityType != "" {
		existing.EntityType = rec.EntityType
	}
	if rec.EntityClass != "" {
		existing.EntityClass = rec.EntityClass
	}
	if rec.Name != "" {
		existing.Name = rec.Name
	}
	if rec.Active != nil {
		existing.Active = *rec.Active
	}
	if rec.ContinuityScore != nil {
		existing.ContinuityScore = *rec.ContinuityScore
	}
	if rec.InstitutionalMemoryDepth != nil {
		existing.InstitutionalMemoryDepth = *rec.InstitutionalMemoryDepth
	}
	existing.UpdatedAt = time.Now().UTC()

	_, err := s.db.SQL().ExecContext(ctx, `
		UPDATE entities SET entity_type = ?, entity_class = ?, name = ?, active = ?,
			continuity_score = ?, institutional_memory_depth = ?, updated_at = ?
		WHERE id = ?`,
		string(existing.EntityType), existing.EntityClass, existing.Name, existing.Active,
		existing.ContinuityScore, existing.InstitutionalMemoryDepth, existing.UpdatedAt,
		existing.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update entity")
	}
	return nil
}

// Get returns the entity or a NotFound error.
func (s *SQLEntityStore) Get(ctx context.Context, entityID string) (*graph.Entity, error) {
	return s.get(ctx, "id", entityID)
}

// GetByNaturalKey returns the entity with the given natural key.
func (s *SQLEntityStore) GetByNaturalKey(ctx context.Context, naturalKey string) (*graph.Entity, error) {
	return s.get(ctx, "natural_key", naturalKey)
}

func (s *SQLEntityStore) get(ctx context.Context, column, value string) (*graph.Entity, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		"SELECT "+entitySelectColumns+" FROM entities WHERE "+column+" = ?", value)

	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("entity with %s %q", column, value)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query entity")
	}
	return e, nil
}

// ListByClass returns all entities of the given entity class, ordered by name.
func (s *SQLEntityStore) ListByClass(ctx context.Context, entityClass string) ([]*graph.Entity, error) {
	return s.list(ctx,
		"SELECT "+entitySelectColumns+" FROM entities WHERE entity_class = ? ORDER BY name", entityClass)
}

// ListAll returns every entity in the store, ordered by name.
func (s *SQLEntityStore) ListAll(ctx context.Context) ([]*graph.Entity, error) {
	return s.list(ctx, "SELECT "+entitySelectColumns+" FROM entities ORDER BY name")
}

func (s *SQLEntityStore) list(ctx context.Context, query string, args ...interface{}) ([]*graph.Entity, error) {
	rows, err := s.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list entities")
	}
	defer rows.Close()

	var entities []*graph.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan entity")
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// AddAssignment appends to the entity's current assignments and timeline.
// A duplicate (assignment_type, target) pair is a Duplicate error.
func (s *SQLEntityStore) AddAssignment(ctx context.Context, entityID string, a graph.Assignment) error {
	if a.AssignmentType == "" || a.TargetEntityID == "" {
		return errors.NewMalformed("assignment requires assignment_type and target_entity_id")
	}

	s.db.Lock()
	defer s.db.Unlock()

	e, err := s.get(ctx, "id", entityID)
	if err != nil {
		return err
	}

	if e.HasCurrentAssignment(a.Key()) {
		return errors.Wrapf(errors.ErrDuplicate,
			"assignment %s -> %s already current for entity %s", a.AssignmentType, a.TargetEntityID, entityID)
	}

	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	e.CurrentAssignments = append(e.CurrentAssignments, a)
	e.AssignmentTimeline = append(e.AssignmentTimeline, graph.TimelineEvent{
		Event:          "assigned",
		AssignmentType: a.AssignmentType,
		TargetEntityID: a.TargetEntityID,
		Role:           a.Role,
		Timestamp:      a.AssignedAt,
	})

	return s.saveAssignments(ctx, e)
}

// EndAssignment moves the assignment to history and appends a timeline event.
// A missing assignment reports NotFound; the entity is left untouched.
func (s *SQLEntityStore) EndAssignment(ctx context.Context, entityID string, key graph.AssignmentKey, endedAt time.Time) error {
	s.db.Lock()
	defer s.db.Unlock()

	e, err := s.get(ctx, "id", entityID)
	if err != nil {
		return err
	}

	idx := -1
	for i, a := range e.CurrentAssignments {
		if a.Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.NewNotFound("no current assignment %s -> %s for entity %s",
			key.AssignmentType, key.TargetEntityID, entityID)
	}

	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}

	ended := e.CurrentAssignments[idx]
	ended.EndedAt = &endedAt
	e.CurrentAssignments = append(e.CurrentAssignments[:idx], e.CurrentAssignments[idx+1:]...)
	e.HistoricalAssignments = append(e.HistoricalAssignments, ended)
	e.AssignmentTimeline = append(e.AssignmentTimeline, graph.TimelineEvent{
		Event:          "ended",
		AssignmentType: key.AssignmentType,
		TargetEntityID: key.TargetEntityID,
		Role:           ended.Role,
		Timestamp:      endedAt,
	})

	return s.saveAssignments(ctx, e)
}

func (s *SQLEntityStore) saveAssignments(ctx context.Context, e *graph.Entity) error {
	docs, err := marshalEntityDocs(e)
	if err != nil {
		return err
	}

	_, err = s.db.SQL().ExecContext(ctx, `
		UPDATE entities SET current_assignments = ?, historical_assignments = ?,
			assignment_timeline = ?, updated_at = ?
		WHERE id = ?`,
		docs.CurrentJSON, docs.HistoricalJSON, docs.TimelineJSON, time.Now().UTC(), e.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save assignments")
	}
	return nil
}

// RefreshNetworkSpan recomputes network_span from distinct ACTIVE edge
// counterparties in either direction.
func (s *SQLEntityStore) RefreshNetworkSpan(ctx context.Context, entityID string) (int, error) {
	s.db.Lock()
	defer s.db.Unlock()

	if _, err := s.get(ctx, "id", entityID); err != nil {
		return 0, err
	}

	var span int
	if err := s.db.SQL().QueryRowContext(ctx, entityNetworkSpanQuery, entityID, entityID).Scan(&span); err != nil {
		return 0, errors.Wrap(err, "failed to compute network span")
	}

	if _, err := s.db.SQL().ExecContext(ctx,
		"UPDATE entities SET network_span = ?, updated_at = ? WHERE id = ?",
		span, time.Now().UTC(), entityID); err != nil {
		return 0, errors.Wrap(err, "failed to update network span")
	}
	return span, nil
}

func validateEntityRecord(rec graph.EntityRecord) error {
	if rec.ID == "" && rec.NaturalKey == "" {
		return errors.NewMalformed("entity record requires an id or a natural key")
	}
	if rec.ContinuityScore != nil && (*rec.ContinuityScore < 0 || *rec.ContinuityScore > 1) {
		return errors.NewMalformed("continuity_score %v outside [0,1]", *rec.ContinuityScore)
	}
	if rec.InstitutionalMemoryDepth != nil && (*rec.InstitutionalMemoryDepth < 0 || *rec.InstitutionalMemoryDepth > 1) {
		return errors.NewMalformed("institutional_memory_depth %v outside [0,1]", *rec.InstitutionalMemoryDepth)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (*graph.Entity, error) {
	var e graph.Entity
	var entityType, currentJSON, historicalJSON, timelineJSON string

	err := row.Scan(&e.ID, &e.SchemaVersion, &e.NaturalKey, &entityType, &e.EntityClass, &e.Name, &e.Active,
		&e.ContinuityScore, &e.NetworkSpan, &e.InstitutionalMemoryDepth,
		&currentJSON, &historicalJSON, &timelineJSON, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.EntityType = graph.EntityType(entityType)
	if err := json.Unmarshal([]byte(currentJSON), &e.CurrentAssignments); err != nil {
		return nil, errors.Wrap(err, "unmarshal current assignments")
	}
	if err := json.Unmarshal([]byte(historicalJSON), &e.HistoricalAssignments); err != nil {
		return nil, errors.Wrap(err, "unmarshal historical assignments")
	}
	if err := json.Unmarshal([]byte(timelineJSON), &e.AssignmentTimeline); err != nil {
		return nil, errors.Wrap(err, "unmarshal assignment timeline")
	}
	return &e, nil
}
