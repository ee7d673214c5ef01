package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
	"github.com/hillwire/powergraph/storage"
	"github.com/hillwire/powergraph/storage/testutil"
)

func f64(v float64) *float64 { return &v }

func TestEntityStoreUpsertIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewEntityStore(db, nil)
	ctx := context.Background()

	id1, err := store.Upsert(ctx, graph.EntityRecord{
		NaturalKey:  "senate-judiciary-chief-counsel",
		EntityType:  graph.EntityStaff,
		EntityClass: graph.ClassCommitteeStaff,
		Name:        "Dana Whitfield",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	// Same natural key resolves to the same entity, not a duplicate
	id2, err := store.Upsert(ctx, graph.EntityRecord{
		NaturalKey:  "senate-judiciary-chief-counsel",
		EntityType:  graph.EntityStaff,
		EntityClass: graph.ClassCommitteeStaff,
		Name:        "Dana Whitfield-Ortega",
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	e, err := store.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Dana Whitfield-Ortega", e.Name, "upsert should apply the newer name")
	assert.True(t, e.Active)
	assert.Equal(t, graph.SchemaVersion, e.SchemaVersion)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEntityStoreUpsertValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewEntityStore(db, nil)
	ctx := context.Background()

	_, err := store.Upsert(ctx, graph.EntityRecord{EntityType: graph.EntityStaff})
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err), "record without id or natural key is malformed")

	_, err = store.Upsert(ctx, graph.EntityRecord{
		NaturalKey:      "bad-score",
		EntityType:      graph.EntityStaff,
		ContinuityScore: f64(1.5),
	})
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))
}

func TestEntityStoreUpsertPartialUpdate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewEntityStore(db, nil)
	ctx := context.Background()

	id, err := store.Upsert(ctx, graph.EntityRecord{
		NaturalKey:               "house-approps-clerk",
		EntityType:               graph.EntityStaff,
		EntityClass:              graph.ClassCommitteeStaff,
		Name:                     "Priya Raman",
		ContinuityScore:          f64(0.6),
		InstitutionalMemoryDepth: f64(0.8),
	})
	require.NoError(t, err)

	// Nil fields leave the stored values untouched
	_, err = store.Upsert(ctx, graph.EntityRecord{
		NaturalKey: "house-approps-clerk",
		Active:     f64Bool(false),
	})
	require.NoError(t, err)

	e, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, e.Active)
	assert.Equal(t, 0.6, e.ContinuityScore)
	assert.Equal(t, 0.8, e.InstitutionalMemoryDepth)
	assert.Equal(t, "Priya Raman", e.Name)
}

func f64Bool(v bool) *bool { return &v }

func TestEntityStoreGetNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewEntityStore(db, nil)

	_, err := store.Get(context.Background(), "no-such-entity")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = store.GetByNaturalKey(context.Background(), "no-such-key")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestEntityStoreListByClass(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewEntityStore(db, nil)
	ctx := context.Background()

	for _, rec := range []graph.EntityRecord{
		{NaturalKey: "s1", EntityType: graph.EntityStaff, EntityClass: graph.ClassCommitteeStaff, Name: "Alice"},
		{NaturalKey: "s2", EntityType: graph.EntityStaff, EntityClass: graph.ClassLeadershipStaff, Name: "Bob"},
		{NaturalKey: "c1", EntityType: graph.EntityCommittee, EntityClass: graph.ClassCommittee, Name: "Judiciary"},
	} {
		_, err := store.Upsert(ctx, rec)
		require.NoError(t, err)
	}

	staff, err := store.ListByClass(ctx, graph.ClassCommitteeStaff)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "Alice", staff[0].Name)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEntityStoreAssignmentLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewEntityStore(db, nil)
	ctx := context.Background()

	committeeID, err := store.Upsert(ctx, graph.EntityRecord{
		NaturalKey: "senate-judiciary", EntityType: graph.EntityCommittee,
		EntityClass: graph.ClassCommittee, Name: "Senate Judiciary",
	})
	require.NoError(t, err)

	staffID, err := store.Upsert(ctx, graph.EntityRecord{
		NaturalKey: "jordan-lee", EntityType: graph.EntityStaff,
		EntityClass: graph.ClassCommitteeStaff, Name: "Jordan Lee",
	})
	require.NoError(t, err)

	assignedAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	a := graph.Assignment{
		AssignmentType: "committee_staff",
		TargetEntityID: committeeID,
		Role:           "chief counsel",
		AssignedAt:     assignedAt,
	}
	require.NoError(t, store.AddAssignment(ctx, staffID, a))

	// Duplicate (type, target) pair is rejected
	err = store.AddAssignment(ctx, staffID, a)
	require.Error(t, err)
	assert.True(t, errors.IsDuplicate(err))

	e, err := store.Get(ctx, staffID)
	require.NoError(t, err)
	require.Len(t, e.CurrentAssignments, 1)
	require.Len(t, e.AssignmentTimeline, 1)
	assert.Equal(t, "assigned", e.AssignmentTimeline[0].Event)

	endedAt := time.Date(2025, 6, 30, 17, 0, 0, 0, time.UTC)
	require.NoError(t, store.EndAssignment(ctx, staffID, a.Key(), endedAt))

	e, err = store.Get(ctx, staffID)
	require.NoError(t, err)
	assert.Empty(t, e.CurrentAssignments)
	require.Len(t, e.HistoricalAssignments, 1)
	require.NotNil(t, e.HistoricalAssignments[0].EndedAt)
	assert.Equal(t, endedAt, e.HistoricalAssignments[0].EndedAt.UTC())

	// Timeline is append-only: both events remain
	require.Len(t, e.AssignmentTimeline, 2)
	assert.Equal(t, "ended", e.AssignmentTimeline[1].Event)

	// Ending a missing assignment reports NotFound and changes nothing
	err = store.EndAssignment(ctx, staffID, a.Key(), endedAt)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestEntityStoreRefreshNetworkSpan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	entities := storage.NewEntityStore(db, nil)
	edges := storage.NewEdgeStore(db, nil)
	ctx := context.Background()

	ids := make([]string, 3)
	for i, key := range []string{"hub", "peer-a", "peer-b"} {
		id, err := entities.Upsert(ctx, graph.EntityRecord{
			NaturalKey: key, EntityType: graph.EntityStaff,
			EntityClass: graph.ClassCommitteeStaff, Name: key,
		})
		require.NoError(t, err)
		ids[i] = id
	}

	_, err := edges.Observe(ctx, graph.EdgeObservation{
		From: ids[0], To: ids[1], Type: graph.EdgeCanBlock,
		Weights: graph.WeightUpdate{ProceduralPower: f64(0.5)},
	})
	require.NoError(t, err)
	_, err = edges.Observe(ctx, graph.EdgeObservation{
		From: ids[2], To: ids[0], Type: graph.EdgeCanDelay,
		Weights: graph.WeightUpdate{ProceduralPower: f64(0.3)},
	})
	require.NoError(t, err)

	// Both directions count toward span
	span, err := entities.RefreshNetworkSpan(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 2, span)

	e, err := entities.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 2, e.NetworkSpan)

	// Archived edges fall out of span
	edge, err := edges.FindActive(ctx, ids[0], ids[1], graph.EdgeCanBlock)
	require.NoError(t, err)
	require.NoError(t, edges.Archive(ctx, edge.ID, "staffer departed", ""))

	span, err = entities.RefreshNetworkSpan(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 1, span)
}
