package logger

// Standard field names for consistent structured logging across powergraph.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Graph identities
	FieldEntityID   = "entity_id"
	FieldEdgeID     = "edge_id"
	FieldEdgeType   = "edge_type"
	FieldSnapshotID = "snapshot_id"
	FieldTransferID = "transfer_id"

	// Context
	FieldLegislativeState = "legislative_state"
	FieldComponent        = "component"
	FieldOperation        = "operation"
	FieldCause            = "cause"

	// Counters and timing
	FieldCount      = "count"
	FieldDurationMS = "duration_ms"
)
