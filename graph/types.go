// Package graph defines the temporal influence-graph domain model: political
// entities, the directed weighted edges between them, derived control
// classifications, power-transfer ledger entries, and point-in-time snapshots.
//
// The package holds types and store contracts only; persistence lives in the
// storage package and derivation in graph/classify and graph/evolve.
package graph

import (
	"time"
)

// SchemaVersion is stamped on every persisted record for forward compatibility.
const SchemaVersion = 1

// EntityType is the coarse kind of a political actor or body.
type EntityType string

const (
	EntityStaff     EntityType = "staff"
	EntityMember    EntityType = "member"
	EntityCommittee EntityType = "committee"
)

// Entity classes refine EntityType. The vocabulary is open; these are the
// classes the upstream roster agents emit today.
const (
	ClassCommitteeStaff      = "committee_staff"
	ClassPersonalOfficeStaff = "personal_office_staff"
	ClassLeadershipStaff     = "leadership_staff"
	ClassMember              = "member"
	ClassCommittee           = "committee"
)

// EdgeType is the closed vocabulary of influence relationships.
type EdgeType string

const (
	EdgeCanBlock               EdgeType = "can_block"
	EdgeHasFormalAuthorityOver EdgeType = "has_formal_authority_over"
	EdgeControlsAgendaOf       EdgeType = "controls_agenda_of"
	EdgeCanDelay               EdgeType = "can_delay"
	EdgeRoutesAround           EdgeType = "routes_around"
)

// KnownEdgeTypes lists every edge type currently in the vocabulary.
// Additional types are reserved for extension; observations carrying an
// unknown type are rejected at the store boundary.
var KnownEdgeTypes = []EdgeType{
	EdgeCanBlock,
	EdgeHasFormalAuthorityOver,
	EdgeControlsAgendaOf,
	EdgeCanDelay,
	EdgeRoutesAround,
}

// Valid reports whether t is in the known vocabulary.
func (t EdgeType) Valid() bool {
	for _, known := range KnownEdgeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// EdgeStatus is an edge's lifecycle state. ARCHIVED is terminal: an edge
// never returns to ACTIVE once archived; a new edge is created instead.
type EdgeStatus string

const (
	EdgeActive   EdgeStatus = "ACTIVE"
	EdgeArchived EdgeStatus = "ARCHIVED"
)

// ControlType is the discrete power classification derived for an entity.
type ControlType string

const (
	ControlPrimary   ControlType = "PRIMARY"
	ControlSecondary ControlType = "SECONDARY"
	ControlShadow    ControlType = "SHADOW"
)

// Assignment links an entity to a target (typically a committee or office)
// in a given role. EndedAt is set when the assignment moves to history.
type Assignment struct {
	AssignmentType string     `json:"assignment_type"`
	TargetEntityID string     `json:"target_entity_id"`
	Role           string     `json:"role"`
	AssignedAt     time.Time  `json:"assigned_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Key returns the uniqueness key for the assignment: an entity's current
// assignments never contain two entries with the same key.
func (a Assignment) Key() AssignmentKey {
	return AssignmentKey{AssignmentType: a.AssignmentType, TargetEntityID: a.TargetEntityID}
}

// AssignmentKey identifies an assignment within an entity's current list.
type AssignmentKey struct {
	AssignmentType string `json:"assignment_type"`
	TargetEntityID string `json:"target_entity_id"`
}

// TimelineEvent is one entry in an entity's append-only assignment timeline.
type TimelineEvent struct {
	Event          string    `json:"event"` // "assigned" or "ended"
	AssignmentType string    `json:"assignment_type"`
	TargetEntityID string    `json:"target_entity_id"`
	Role           string    `json:"role,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Entity is a political actor or body tracked by the graph. Entities are
// never hard-deleted; Active=false marks retirement.
type Entity struct {
	ID            string     `json:"id"`
	SchemaVersion int        `json:"schema_version"`
	NaturalKey    string     `json:"natural_key"`
	EntityType    EntityType `json:"entity_type"`
	EntityClass   string     `json:"entity_class"`
	Name          string     `json:"name"`
	Active        bool       `json:"active"`

	// Derived scores. ContinuityScore and InstitutionalMemoryDepth are in
	// [0,1]; NetworkSpan counts distinct linked entities.
	ContinuityScore          float64 `json:"continuity_score"`
	NetworkSpan              int     `json:"network_span"`
	InstitutionalMemoryDepth float64 `json:"institutional_memory_depth"`

	CurrentAssignments    []Assignment    `json:"current_assignments"`
	HistoricalAssignments []Assignment    `json:"historical_assignments"`
	AssignmentTimeline    []TimelineEvent `json:"assignment_timeline"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCurrentAssignment reports whether key is already present in the
// entity's current assignments.
func (e *Entity) HasCurrentAssignment(key AssignmentKey) bool {
	for _, a := range e.CurrentAssignments {
		if a.Key() == key {
			return true
		}
	}
	return false
}

// EdgeHistoryEvent is one entry in an edge's activation or decay history.
// EventID carries the upstream event's idempotency key when one exists.
type EdgeHistoryEvent struct {
	Event     string    `json:"event"`
	EventID   string    `json:"event_id,omitempty"`
	Cause     string    `json:"cause,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Edge is a directed, typed, weighted influence relationship. At most one
// ACTIVE edge exists per (from, to, edge_type) triple.
type Edge struct {
	ID            string     `json:"id"`
	SchemaVersion int        `json:"schema_version"`
	FromEntityID  string     `json:"from_entity_id"`
	ToEntityID    string     `json:"to_entity_id"`
	Type          EdgeType   `json:"edge_type"`
	Status        EdgeStatus `json:"edge_status"`

	Weights WeightVector `json:"weights"`

	// LegislativeState scopes the edge to one phase of the legislative
	// process; empty means the edge applies in every phase.
	LegislativeState string `json:"legislative_state,omitempty"`

	ActivationEvents []EdgeHistoryEvent `json:"activation_events"`
	DecayTriggers    []EdgeHistoryEvent `json:"decay_triggers"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliesAt reports whether the edge is in scope for a query at the given
// legislative state. State-agnostic edges always match; state-scoped edges
// match their own state or an unscoped ("") query.
func (e *Edge) AppliesAt(state string) bool {
	return e.LegislativeState == "" || state == "" || e.LegislativeState == state
}

// HasHistoryEvent reports whether eventID already appears in either history
// list. Used for idempotent event replay.
func (e *Edge) HasHistoryEvent(eventID string) bool {
	if eventID == "" {
		return false
	}
	for _, ev := range e.ActivationEvents {
		if ev.EventID == eventID {
			return true
		}
	}
	for _, ev := range e.DecayTriggers {
		if ev.EventID == eventID {
			return true
		}
	}
	return false
}

// ClassificationContext scopes a classification to a deliberative context.
// All fields are optional.
type ClassificationContext struct {
	BillID           string `json:"bill_id,omitempty"`
	PolicyArea       string `json:"policy_area,omitempty"`
	LegislativeState string `json:"legislative_state,omitempty"`
	CommitteeID      string `json:"committee_id,omitempty"`
}

// Classification is an immutable derived power classification. Re-derivation
// creates a new record with OverridesClassificationID pointing at the one it
// supersedes.
type Classification struct {
	ID            string      `json:"id"`
	SchemaVersion int         `json:"schema_version"`
	EntityID      string      `json:"entity_id"`
	ControlType   ControlType `json:"control_type"`

	Context ClassificationContext `json:"context"`

	// Evidence is an ordered list of human-readable justification strings
	// citing the edges and weights used. Reproducible from the same edge set.
	Evidence []string `json:"evidence"`

	OverridesClassificationID string     `json:"overrides_classification_id,omitempty"`
	EffectiveFrom             time.Time  `json:"effective_from"`
	EffectiveUntil            *time.Time `json:"effective_until,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
}

// TransferEvent is an immutable ledger entry recording that influence moved
// from one entity to another. Seq records append order and is assigned by
// the ledger on write.
type TransferEvent struct {
	Seq           int64  `json:"seq"`
	ID            string `json:"id"`
	SchemaVersion int    `json:"schema_version"`

	FromEntityID string       `json:"from_entity_id"`
	ToEntityID   string       `json:"to_entity_id"`
	Mechanism    string       `json:"transfer_mechanism"`
	Weights      WeightVector `json:"weights"`

	LegislativeState string    `json:"legislative_state,omitempty"`
	TransferredAt    time.Time `json:"transferred_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// Snapshot is an immutable point-in-time capture of the graph: all entities,
// all ACTIVE edges, and the classifications valid at that instant.
type Snapshot struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schema_version"`
	SnapshotAt    time.Time `json:"snapshot_at"`

	LegislativeState string `json:"legislative_state"`

	Entities        []Entity         `json:"entities"`
	Edges           []Edge           `json:"edges"`
	Classifications []Classification `json:"classifications"`

	CreatedAt time.Time `json:"created_at"`
}
