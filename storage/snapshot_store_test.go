package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
	"github.com/hillwire/powergraph/storage"
	"github.com/hillwire/powergraph/storage/testutil"
)

func TestSnapshotStoreLatestEmptyIsNil(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewSnapshotStore(db, nil)

	snap, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap, "empty store returns nil, not an error")
}

func TestSnapshotStoreLatestOrdersBySnapshotAt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewSnapshotStore(db, nil)
	ctx := context.Background()

	// Inserted out of order, as happens when restoring from a backup:
	// insertion order must not decide which snapshot is "latest".
	newer := &graph.Snapshot{
		ID:               uuid.NewString(),
		SnapshotAt:       time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		LegislativeState: "floor_vote",
	}
	older := &graph.Snapshot{
		ID:               uuid.NewString(),
		SnapshotAt:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		LegislativeState: "committee_markup",
	}
	require.NoError(t, store.Insert(ctx, newer))
	require.NoError(t, store.Insert(ctx, older))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, "floor_vote", latest.LegislativeState)
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewSnapshotStore(db, nil)
	ctx := context.Background()

	snap := &graph.Snapshot{
		ID:               uuid.NewString(),
		SnapshotAt:       time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC),
		LegislativeState: "committee_markup",
		Entities: []graph.Entity{
			{ID: "staff-1", Name: "Dana Whitfield", EntityType: graph.EntityStaff, Active: true},
		},
		Edges: []graph.Edge{
			{ID: "edge-1", FromEntityID: "staff-1", ToEntityID: "committee-1",
				Type: graph.EdgeCanBlock, Status: graph.EdgeActive,
				Weights: graph.WeightVector{ProceduralPower: 0.9}},
		},
		Classifications: []graph.Classification{
			{ID: "cls-1", EntityID: "staff-1", ControlType: graph.ControlPrimary,
				Evidence: []string{"can_block edge to committee-1 with procedural_power=0.90"}},
		},
	}
	require.NoError(t, store.Insert(ctx, snap))
	assert.Equal(t, graph.SchemaVersion, snap.SchemaVersion)

	got, err := store.Get(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, got.Entities, 1)
	require.Len(t, got.Edges, 1)
	require.Len(t, got.Classifications, 1)
	assert.Equal(t, "Dana Whitfield", got.Entities[0].Name)
	assert.Equal(t, 0.9, got.Edges[0].Weights.ProceduralPower)
	assert.Equal(t, graph.ControlPrimary, got.Classifications[0].ControlType)
}

func TestSnapshotStoreGetNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewSnapshotStore(db, nil)

	_, err := store.Get(context.Background(), "no-such-snapshot")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestSnapshotStoreInsertValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewSnapshotStore(db, nil)
	ctx := context.Background()

	err := store.Insert(ctx, &graph.Snapshot{
		SnapshotAt: time.Now(), LegislativeState: "floor_vote",
	})
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err), "missing id")

	err = store.Insert(ctx, &graph.Snapshot{
		ID: uuid.NewString(), SnapshotAt: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err), "missing legislative state")
}

func TestSnapshotStoreListNewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.NewSnapshotStore(db, nil)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Insert(ctx, &graph.Snapshot{
			ID:               uuid.NewString(),
			SnapshotAt:       base.AddDate(0, i, 0),
			LegislativeState: "committee_markup",
		}))
	}

	snaps, err := store.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.True(t, snaps[0].SnapshotAt.After(snaps[1].SnapshotAt))
	assert.True(t, snaps[1].SnapshotAt.After(snaps[2].SnapshotAt))
}
