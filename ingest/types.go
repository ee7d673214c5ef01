// Package ingest accepts observation batches from upstream collaborators
// (committee-roster agents, staff-directory agents) and applies them to the
// graph stores. Records are validated at this boundary: a malformed record is
// rejected and logged, never partially applied, and never aborts the rest of
// its batch.
package ingest

import (
	"time"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
	"github.com/hillwire/powergraph/graph/evolve"
)

// ObservationBatch is the JSON document upstream agents deliver. Entities
// are applied first, then assignments, then edge events, then transfers, so
// a batch can introduce an entity and reference it later in the same file.
type ObservationBatch struct {
	// Source names the upstream agent, for the audit trail.
	Source string `json:"source"`

	// LegislativeState is the default state context for the batch; a record
	// carrying its own state wins.
	LegislativeState string `json:"legislative_state,omitempty"`

	Entities    []EntityObservation   `json:"entities,omitempty"`
	Assignments []AssignmentEvent     `json:"assignments,omitempty"`
	Edges       []EdgeEvent           `json:"edges,omitempty"`
	Transfers   []TransferObservation `json:"transfers,omitempty"`
}

// EntityObservation upserts one entity by natural key.
type EntityObservation struct {
	NaturalKey  string `json:"natural_key"`
	EntityType  string `json:"entity_type"`
	EntityClass string `json:"entity_class"`
	Name        string `json:"name"`

	Active                   *bool    `json:"active,omitempty"`
	ContinuityScore          *float64 `json:"continuity_score,omitempty"`
	InstitutionalMemoryDepth *float64 `json:"institutional_memory_depth,omitempty"`
}

func (o EntityObservation) validate() error {
	if o.NaturalKey == "" {
		return errors.NewMalformed("entity observation requires a natural_key")
	}
	switch graph.EntityType(o.EntityType) {
	case graph.EntityStaff, graph.EntityMember, graph.EntityCommittee:
		return nil
	default:
		return errors.NewMalformed("unknown entity_type %q", o.EntityType)
	}
}

// AssignmentEvent adds or ends an assignment, identified by natural keys.
// An "assigned" action also activates the matching formal-authority edge
// from the entity to the target; an "ended" action deactivates it.
type AssignmentEvent struct {
	// Action is "assigned" or "ended".
	Action string `json:"action"`

	EntityKey      string    `json:"entity_key"`
	AssignmentType string    `json:"assignment_type"`
	TargetKey      string    `json:"target_key"`
	Role           string    `json:"role,omitempty"`
	EventID        string    `json:"event_id,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`

	// ProceduralPower seeds the activated edge; nil leaves it to the edge
	// store's defaults on a fresh edge.
	ProceduralPower     *float64 `json:"procedural_power,omitempty"`
	InstitutionalMemory *float64 `json:"institutional_memory,omitempty"`
}

func (a AssignmentEvent) validate() error {
	if a.Action != "assigned" && a.Action != "ended" {
		return errors.NewMalformed("unknown assignment action %q", a.Action)
	}
	if a.EntityKey == "" || a.TargetKey == "" {
		return errors.NewMalformed("assignment event requires entity_key and target_key")
	}
	if a.AssignmentType == "" {
		return errors.NewMalformed("assignment event requires an assignment_type")
	}
	return nil
}

// EdgeEvent is one edge lifecycle event, identified by natural keys.
type EdgeEvent struct {
	// Kind is one of activation, strengthen, decay, deactivation.
	Kind string `json:"kind"`

	FromKey  string `json:"from_key"`
	ToKey    string `json:"to_key"`
	EdgeType string `json:"edge_type"`

	Weights          graph.WeightUpdate `json:"weights,omitempty"`
	LegislativeState string             `json:"legislative_state,omitempty"`
	EventID          string             `json:"event_id,omitempty"`
	Cause            string             `json:"cause,omitempty"`
	OccurredAt       time.Time          `json:"occurred_at,omitempty"`
}

func (e EdgeEvent) validate() error {
	switch evolve.Kind(e.Kind) {
	case evolve.KindActivation, evolve.KindStrengthen, evolve.KindDecay, evolve.KindDeactivation:
	default:
		return errors.NewMalformed("unknown edge event kind %q", e.Kind)
	}
	if e.FromKey == "" || e.ToKey == "" {
		return errors.NewMalformed("edge event requires from_key and to_key")
	}
	if !graph.EdgeType(e.EdgeType).Valid() {
		return errors.NewMalformed("unknown edge type %q", e.EdgeType)
	}
	return nil
}

// TransferObservation appends one power-transfer claim to the ledger.
// Natural keys that resolve to known entities are recorded by id; unknown
// keys are recorded verbatim, since the ledger records claims, not validated
// authority.
type TransferObservation struct {
	FromKey   string `json:"from_key"`
	ToKey     string `json:"to_key"`
	Mechanism string `json:"transfer_mechanism"`

	Weights          graph.WeightVector `json:"weights,omitempty"`
	LegislativeState string             `json:"legislative_state,omitempty"`
	TransferredAt    time.Time          `json:"transferred_at,omitempty"`
}

func (t TransferObservation) validate() error {
	if t.FromKey == "" || t.ToKey == "" {
		return errors.NewMalformed("transfer requires from_key and to_key")
	}
	if t.Mechanism == "" {
		return errors.NewMalformed("transfer requires a transfer_mechanism")
	}
	return nil
}
