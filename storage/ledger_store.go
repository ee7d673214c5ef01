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
	transferSelectColumns = `seq, id, schema_version, from_entity_id, to_entity_id,
		transfer_mechanism, procedural_power, institutional_memory, extra_weights,
		legislative_state, transferred_at, created_at`

	transferInsertQuery = `
		INSERT INTO transfers (id, schema_version, from_entity_id, to_entity_id,
			transfer_mechanism, procedural_power, institutional_memory, extra_weights,
			legislative_state, transferred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// SQLLedger implements graph.Ledger with a SQLite backend. The transfers
// table is append-only: rows are never updated or deleted, and seq (the
// rowid) records append order.
type SQLLedger struct {
	db     *DB
	logger *zap.SugaredLogger
}

// NewLedger creates a SQL-based transfer ledger.
func NewLedger(db *DB, logger *zap.SugaredLogger) *SQLLedger {
	return &SQLLedger{db: db, logger: logger}
}

// Record appends a transfer event and returns its id. The ledger records
// claims, not validated authority: entity references are not checked, only
// well-formedness.
func (l *SQLLedger) Record(ctx context.Context, t *graph.TransferEvent) (string, error) {
	if t.FromEntityID == "" || t.ToEntityID == "" {
		return "", errors.NewMalformed("transfer requires from and to entity ids")
	}
	if t.Mechanism == "" {
		return "", errors.NewMalformed("transfer requires a mechanism")
	}
	if err := t.Weights.Validate(); err != nil {
		return "", err
	}

	l.db.Lock()
	defer l.db.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.SchemaVersion = graph.SchemaVersion
	now := time.Now().UTC()
	if t.TransferredAt.IsZero() {
		t.TransferredAt = now
	}
	t.CreatedAt = now

	extra := t.Weights.Extra
	if extra == nil {
		extra = map[string]float64{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return "", errors.Wrap(err, "marshal extra weights")
	}

	res, err := l.db.SQL().ExecContext(ctx, transferInsertQuery,
		t.ID, t.SchemaVersion, t.FromEntityID, t.ToEntityID,
		t.Mechanism, t.Weights.ProceduralPower, t.Weights.InstitutionalMemory, string(extraJSON),
		nullableString(t.LegislativeState), t.TransferredAt, t.CreatedAt,
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to append transfer")
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return "", errors.Wrap(err, "failed to read transfer seq")
	}
	t.Seq = seq

	if l.logger != nil {
		l.logger.Debugw("Transfer recorded",
			"transfer_id", t.ID,
			"from", t.FromEntityID,
			"to", t.ToEntityID,
			"mechanism", t.Mechanism,
		)
	}
	return t.ID, nil
}

// Since returns a lazy iterator over transfers with TransferredAt >= since
// and Seq > afterSeq, in append order. Restartable: a consumer resumes by
// passing the last Seq it consumed.
func (l *SQLLedger) Since(ctx context.Context, since time.Time, afterSeq int64) (graph.TransferIter, error) {
	rows, err := l.db.SQL().QueryContext(ctx,
		"SELECT "+transferSelectColumns+` FROM transfers
		 WHERE transferred_at >= ? AND seq > ? ORDER BY seq`,
		since, afterSeq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query transfers")
	}
	return &transferIter{rows: rows}, nil
}

type transferIter struct {
	rows    *sql.Rows
	current *graph.TransferEvent
	err     error
}

func (it *transferIter) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	t, err := scanTransfer(it.rows)
	if err != nil {
		it.err = errors.Wrap(err, "failed to scan transfer")
		return false
	}
	it.current = t
	return true
}

func (it *transferIter) Event() *graph.TransferEvent { return it.current }

func (it *transferIter) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

func (it *transferIter) Close() error { return it.rows.Close() }

func scanTransfer(row rowScanner) (*graph.TransferEvent, error) {
	var t graph.TransferEvent
	var extraJSON string
	var legislativeState sql.NullString

	err := row.Scan(&t.Seq, &t.ID, &t.SchemaVersion, &t.FromEntityID, &t.ToEntityID,
		&t.Mechanism, &t.Weights.ProceduralPower, &t.Weights.InstitutionalMemory, &extraJSON,
		&legislativeState, &t.TransferredAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	if legislativeState.Valid {
		t.LegislativeState = legislativeState.String
	}
	if err := json.Unmarshal([]byte(extraJSON), &t.Weights.Extra); err != nil {
		return nil, errors.Wrap(err, "unmarshal extra weights")
	}
	if len(t.Weights.Extra) == 0 {
		t.Weights.Extra = nil
	}
	return &t, nil
}
