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
	classificationSelectColumns = `id, schema_version, entity_id, control_type,
		bill_id, policy_area, legislative_state, committee_id, evidence,
		overrides_classification_id, effective_from, effective_until, created_at`

	classificationCurrentQuery = `
		SELECT ` + classificationSelectColumns + ` FROM classifications
		WHERE entity_id = ? AND effective_until IS NULL
			AND bill_id IS ? AND policy_area IS ? AND legislative_state IS ? AND committee_id IS ?`
)

// SQLClassificationStore persists classifications and their supersession
// chain with a SQLite backend.
type SQLClassificationStore struct {
	db     *DB
	logger *zap.SugaredLogger
}

// NewClassificationStore creates a SQL-based classification store.
func NewClassificationStore(db *DB, logger *zap.SugaredLogger) *SQLClassificationStore {
	return &SQLClassificationStore{db: db, logger: logger}
}

// Insert persists a new classification. Records are immutable once written;
// the one mutation allowed is closing the superseded record's
// effective_until, which happens here in the same transaction.
func (s *SQLClassificationStore) Insert(ctx context.Context, c *graph.Classification) error {
	if c.EntityID == "" {
		return errors.NewMalformed("classification requires an entity_id")
	}
	switch c.ControlType {
	case graph.ControlPrimary, graph.ControlSecondary, graph.ControlShadow:
	default:
		return errors.NewMalformed("unknown control type %q", c.ControlType)
	}

	s.db.Lock()
	defer s.db.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.SchemaVersion = graph.SchemaVersion
	now := time.Now().UTC()
	if c.EffectiveFrom.IsZero() {
		c.EffectiveFrom = now
	}
	c.CreatedAt = now

	prev, err := s.current(ctx, c.EntityID, c.Context)
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	evidenceJSON, err := json.Marshal(c.Evidence)
	if err != nil {
		return errors.Wrap(err, "marshal evidence")
	}

	tx, err := s.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin classification tx")
	}

	if prev != nil {
		c.OverridesClassificationID = prev.ID
		if _, err := tx.ExecContext(ctx,
			"UPDATE classifications SET effective_until = ? WHERE id = ?",
			c.EffectiveFrom, prev.ID); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "close superseded classification")
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO classifications (id, schema_version, entity_id, control_type,
			bill_id, policy_area, legislative_state, committee_id, evidence,
			overrides_classification_id, effective_from, effective_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		c.ID, c.SchemaVersion, c.EntityID, string(c.ControlType),
		nullableString(c.Context.BillID), nullableString(c.Context.PolicyArea),
		nullableString(c.Context.LegislativeState), nullableString(c.Context.CommitteeID),
		string(evidenceJSON), nullableString(c.OverridesClassificationID),
		c.EffectiveFrom, c.CreatedAt,
	)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "insert classification")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit classification tx")
	}

	if s.logger != nil {
		s.logger.Debugw("Classification recorded",
			"entity_id", c.EntityID,
			"control_type", string(c.ControlType),
			"supersedes", c.OverridesClassificationID,
		)
	}
	return nil
}

// Current returns the open classification for (entity, context), or NotFound.
func (s *SQLClassificationStore) Current(ctx context.Context, entityID string, cctx graph.ClassificationContext) (*graph.Classification, error) {
	return s.current(ctx, entityID, cctx)
}

func (s *SQLClassificationStore) current(ctx context.Context, entityID string, cctx graph.ClassificationContext) (*graph.Classification, error) {
	row := s.db.SQL().QueryRowContext(ctx, classificationCurrentQuery,
		entityID,
		nullableString(cctx.BillID), nullableString(cctx.PolicyArea),
		nullableString(cctx.LegislativeState), nullableString(cctx.CommitteeID),
	)

	c, err := scanClassification(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("current classification for entity %q", entityID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query current classification")
	}
	return c, nil
}

// History returns all classifications for an entity, oldest first.
func (s *SQLClassificationStore) History(ctx context.Context, entityID string) ([]*graph.Classification, error) {
	rows, err := s.db.SQL().QueryContext(ctx,
		"SELECT "+classificationSelectColumns+` FROM classifications
		 WHERE entity_id = ? ORDER BY effective_from, created_at, id`, entityID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query classification history")
	}
	defer rows.Close()

	var history []*graph.Classification
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan classification")
		}
		history = append(history, c)
	}
	return history, rows.Err()
}

func scanClassification(row rowScanner) (*graph.Classification, error) {
	var c graph.Classification
	var controlType, evidenceJSON string
	var billID, policyArea, legislativeState, committeeID, overrides sql.NullString
	var effectiveUntil sql.NullTime

	err := row.Scan(&c.ID, &c.SchemaVersion, &c.EntityID, &controlType,
		&billID, &policyArea, &legislativeState, &committeeID, &evidenceJSON,
		&overrides, &c.EffectiveFrom, &effectiveUntil, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	c.ControlType = graph.ControlType(controlType)
	c.Context = graph.ClassificationContext{
		BillID:           billID.String,
		PolicyArea:       policyArea.String,
		LegislativeState: legislativeState.String,
		CommitteeID:      committeeID.String,
	}
	c.OverridesClassificationID = overrides.String
	if effectiveUntil.Valid {
		t := effectiveUntil.Time
		c.EffectiveUntil = &t
	}
	if err := json.Unmarshal([]byte(evidenceJSON), &c.Evidence); err != nil {
		return nil, errors.Wrap(err, "unmarshal evidence")
	}
	return &c, nil
}
