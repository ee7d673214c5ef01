package ingest_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillwire/powergraph/graph"
	"github.com/hillwire/powergraph/graph/classify"
	"github.com/hillwire/powergraph/graph/evolve"
	"github.com/hillwire/powergraph/ingest"
	"github.com/hillwire/powergraph/snapshot"
	"github.com/hillwire/powergraph/storage"
	"github.com/hillwire/powergraph/storage/testutil"
)

func f64(v float64) *float64 { return &v }

type fixture struct {
	processor *ingest.Processor
	entities  *storage.SQLEntityStore
	edges     *storage.SQLEdgeStore
	ledger    *storage.SQLLedger
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)

	entities := storage.NewEntityStore(db, nil)
	edges := storage.NewEdgeStore(db, nil)
	ledger := storage.NewLedger(db, nil)
	evolver := evolve.New(edges, evolve.Config{StrengthenIncrement: 0.1, DecayStep: 0.2}, nil)

	return &fixture{
		processor: ingest.NewProcessor(entities, edges, ledger, evolver, nil),
		entities:  entities,
		edges:     edges,
		ledger:    ledger,
	}
}

func rosterBatch() *ingest.ObservationBatch {
	return &ingest.ObservationBatch{
		Source:           "committee-roster-agent",
		LegislativeState: "committee_markup",
		Entities: []ingest.EntityObservation{
			{NaturalKey: "senate-judiciary", EntityType: "committee",
				EntityClass: graph.ClassCommittee, Name: "Senate Judiciary"},
			{NaturalKey: "dana-whitfield", EntityType: "staff",
				EntityClass: graph.ClassCommitteeStaff, Name: "Dana Whitfield"},
		},
		Assignments: []ingest.AssignmentEvent{
			{Action: "assigned", EntityKey: "dana-whitfield", TargetKey: "senate-judiciary",
				AssignmentType: "committee_staff", Role: "chief counsel",
				EventID: "roster-2025-07-14-001", ProceduralPower: f64(0.6)},
		},
	}
}

func TestProcessRosterBatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	result, err := f.processor.Process(ctx, rosterBatch())
	require.NoError(t, err)
	assert.Equal(t, 2, result.EntitiesUpserted)
	assert.Equal(t, 1, result.AssignmentsApplied)
	assert.Empty(t, result.Rejected)

	staff, err := f.entities.GetByNaturalKey(ctx, "dana-whitfield")
	require.NoError(t, err)
	require.Len(t, staff.CurrentAssignments, 1)
	assert.Equal(t, "chief counsel", staff.CurrentAssignments[0].Role)

	// The assignment also activated the formal-authority edge
	committee, err := f.entities.GetByNaturalKey(ctx, "senate-judiciary")
	require.NoError(t, err)

	edge, err := f.edges.FindActive(ctx, staff.ID, committee.ID, graph.EdgeHasFormalAuthorityOver)
	require.NoError(t, err)
	assert.Equal(t, 0.6, edge.Weights.ProceduralPower)
	assert.Equal(t, "committee_markup", edge.LegislativeState)
}

func TestProcessBatchIsReplayable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.processor.Process(ctx, rosterBatch())
	require.NoError(t, err)

	// The same file delivered twice must not duplicate anything
	result, err := f.processor.Process(ctx, rosterBatch())
	require.NoError(t, err)
	assert.Empty(t, result.Rejected)

	staff, err := f.entities.GetByNaturalKey(ctx, "dana-whitfield")
	require.NoError(t, err)
	assert.Len(t, staff.CurrentAssignments, 1)

	active, err := f.edges.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestProcessEndedAssignmentArchivesEdge(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.processor.Process(ctx, rosterBatch())
	require.NoError(t, err)

	result, err := f.processor.Process(ctx, &ingest.ObservationBatch{
		Source: "committee-roster-agent",
		Assignments: []ingest.AssignmentEvent{
			{Action: "ended", EntityKey: "dana-whitfield", TargetKey: "senate-judiciary",
				AssignmentType: "committee_staff", EventID: "roster-2025-09-01-007"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AssignmentsApplied)

	staff, err := f.entities.GetByNaturalKey(ctx, "dana-whitfield")
	require.NoError(t, err)
	assert.Empty(t, staff.CurrentAssignments)
	assert.Len(t, staff.HistoricalAssignments, 1)

	active, err := f.edges.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "ending the assignment archives the authority edge")
}

func TestProcessRejectsBadRecordsKeepsGoodOnes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	result, err := f.processor.Process(ctx, &ingest.ObservationBatch{
		Source: "staff-directory-agent",
		Entities: []ingest.EntityObservation{
			{NaturalKey: "", EntityType: "staff", Name: "No Key"},
			{NaturalKey: "ok-staffer", EntityType: "staff",
				EntityClass: graph.ClassPersonalOfficeStaff, Name: "OK Staffer"},
			{NaturalKey: "bad-type", EntityType: "lobbyist", Name: "Bad Type"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.EntitiesUpserted)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, "entity", result.Rejected[0].Kind)
	assert.Equal(t, 0, result.Rejected[0].Index)
	assert.Equal(t, 2, result.Rejected[1].Index)

	// The rejected records were not partially applied
	all, err := f.entities.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProcessEdgeEventsThroughEvolution(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.processor.Process(ctx, rosterBatch())
	require.NoError(t, err)

	result, err := f.processor.Process(ctx, &ingest.ObservationBatch{
		Source: "influence-observer",
		Edges: []ingest.EdgeEvent{
			{Kind: "activation", FromKey: "dana-whitfield", ToKey: "senate-judiciary",
				EdgeType: "can_block",
				Weights:  graph.WeightUpdate{ProceduralPower: f64(0.5)}},
			{Kind: "strengthen", FromKey: "dana-whitfield", ToKey: "senate-judiciary",
				EdgeType: "can_block", EventID: "obs-1", Cause: "blocked markup"},
			{Kind: "strengthen", FromKey: "ghost-staffer", ToKey: "senate-judiciary",
				EdgeType: "can_block"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.EdgeEventsApplied)
	require.Len(t, result.Rejected, 1, "unknown natural key is rejected per record")

	staff, err := f.entities.GetByNaturalKey(ctx, "dana-whitfield")
	require.NoError(t, err)
	committee, err := f.entities.GetByNaturalKey(ctx, "senate-judiciary")
	require.NoError(t, err)

	edge, err := f.edges.FindActive(ctx, staff.ID, committee.ID, graph.EdgeCanBlock)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, edge.Weights.ProceduralPower, 1e-9)
}

func TestProcessTransfersResolveKnownKeys(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.processor.Process(ctx, rosterBatch())
	require.NoError(t, err)

	result, err := f.processor.Process(ctx, &ingest.ObservationBatch{
		Source: "succession-observer",
		Transfers: []ingest.TransferObservation{
			{FromKey: "dana-whitfield", ToKey: "unknown-successor",
				Mechanism: "staff_succession",
				Weights:   graph.WeightVector{InstitutionalMemory: 0.8}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransfersRecorded)

	staff, err := f.entities.GetByNaturalKey(ctx, "dana-whitfield")
	require.NoError(t, err)

	iter, err := f.ledger.Since(ctx, staff.CreatedAt.AddDate(0, 0, -1), 0)
	require.NoError(t, err)
	defer iter.Close()

	require.True(t, iter.Next())
	ev := iter.Event()
	assert.Equal(t, staff.ID, ev.FromEntityID, "known key resolves to the entity id")
	assert.Equal(t, "unknown-successor", ev.ToEntityID, "unknown key passes through as a claim")
}

func TestProcessBatchTakesSnapshot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	entities := storage.NewEntityStore(db, nil)
	edges := storage.NewEdgeStore(db, nil)
	ledger := storage.NewLedger(db, nil)
	snaps := storage.NewSnapshotStore(db, nil)
	evolver := evolve.New(edges, evolve.Config{StrengthenIncrement: 0.1, DecayStep: 0.2}, nil)
	classifier := classify.New(classify.Thresholds{Primary: 0.7, Secondary: 0.5}, nil)
	manager := snapshot.New(entities, edges, snaps, classifier, db, nil)

	processor := ingest.NewProcessor(entities, edges, ledger, evolver, nil).
		WithSnapshots(manager)

	result, err := processor.Process(ctx, rosterBatch())
	require.NoError(t, err)
	require.NotEmpty(t, result.SnapshotID)

	snap, err := snaps.Get(ctx, result.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, "committee_markup", snap.LegislativeState)
	assert.Len(t, snap.Entities, 2)
	assert.Len(t, snap.Edges, 1)

	// Replaying the batch leaves the state unchanged, so no second snapshot
	result, err = processor.Process(ctx, rosterBatch())
	require.NoError(t, err)
	assert.Empty(t, result.SnapshotID)

	all, err := snaps.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProcessFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "roster.json")
	data, err := json.Marshal(rosterBatch())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	result, err := f.processor.ProcessFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.EntitiesUpserted)

	// A file that is not a batch document is rejected whole
	badPath := filepath.Join(dir, "junk.json")
	require.NoError(t, os.WriteFile(badPath, []byte("not json"), 0o644))
	_, err = f.processor.ProcessFile(ctx, badPath)
	require.Error(t, err)
}
