package evolve_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
	"github.com/hillwire/powergraph/graph/evolve"
	"github.com/hillwire/powergraph/storage"
	"github.com/hillwire/powergraph/storage/testutil"
)

func f64(v float64) *float64 { return &v }

func setupEngine(t *testing.T) (*evolve.Engine, *storage.SQLEdgeStore, string, string) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	entities := storage.NewEntityStore(db, nil)
	edges := storage.NewEdgeStore(db, nil)
	ctx := context.Background()

	from, err := entities.Upsert(ctx, graph.EntityRecord{
		NaturalKey: "staff-counsel", EntityType: graph.EntityStaff,
		EntityClass: graph.ClassCommitteeStaff, Name: "Counsel",
	})
	require.NoError(t, err)

	to, err := entities.Upsert(ctx, graph.EntityRecord{
		NaturalKey: "judiciary", EntityType: graph.EntityCommittee,
		EntityClass: graph.ClassCommittee, Name: "Judiciary",
	})
	require.NoError(t, err)

	engine := evolve.New(edges, evolve.Config{StrengthenIncrement: 0.1, DecayStep: 0.2}, nil)
	return engine, edges, from, to
}

func TestEvolveActivationCreatesEdge(t *testing.T) {
	engine, edges, from, to := setupEngine(t)
	ctx := context.Background()

	err := engine.Apply(ctx, evolve.Event{
		Kind: evolve.KindActivation,
		From: from, To: to, EdgeType: graph.EdgeHasFormalAuthorityOver,
		Weights: graph.WeightUpdate{ProceduralPower: f64(0.6), InstitutionalMemory: f64(0.5)},
		Cause:   "appointed chief counsel",
	})
	require.NoError(t, err)

	e, err := edges.FindActive(ctx, from, to, graph.EdgeHasFormalAuthorityOver)
	require.NoError(t, err)
	assert.Equal(t, 0.6, e.Weights.ProceduralPower)
}

func TestEvolveStrengthenIsBoundedAndIdempotent(t *testing.T) {
	engine, edges, from, to := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, evolve.Event{
		Kind: evolve.KindActivation,
		From: from, To: to, EdgeType: graph.EdgeCanBlock,
		Weights: graph.WeightUpdate{ProceduralPower: f64(0.95)},
	}))

	ev := evolve.Event{
		Kind: evolve.KindStrengthen,
		From: from, To: to, EdgeType: graph.EdgeCanBlock,
		EventID: "evt-win-1",
		Cause:   "blocked floor amendment",
	}
	require.NoError(t, engine.Apply(ctx, ev))

	e, err := edges.FindActive(ctx, from, to, graph.EdgeCanBlock)
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.Weights.ProceduralPower, "strengthening is bounded at 1.0")

	// Replaying the same event must not strengthen again
	require.NoError(t, engine.Apply(ctx, ev))
	e, err = edges.FindActive(ctx, from, to, graph.EdgeCanBlock)
	require.NoError(t, err)
	assert.Len(t, e.ActivationEvents, 2, "one activation plus one strengthen")

	// A distinct event strengthens again
	ev.EventID = "evt-win-2"
	require.NoError(t, engine.Apply(ctx, ev))
	e, err = edges.FindActive(ctx, from, to, graph.EdgeCanBlock)
	require.NoError(t, err)
	assert.Len(t, e.ActivationEvents, 3)
}

func TestEvolveDecayIsMonotonicAndBounded(t *testing.T) {
	engine, edges, from, to := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, evolve.Event{
		Kind: evolve.KindActivation,
		From: from, To: to, EdgeType: graph.EdgeHasFormalAuthorityOver,
		Weights: graph.WeightUpdate{InstitutionalMemory: f64(0.3)},
	}))

	decay := func(eventID string) {
		require.NoError(t, engine.Apply(ctx, evolve.Event{
			Kind: evolve.KindDecay,
			From: from, To: to, EdgeType: graph.EdgeHasFormalAuthorityOver,
			EventID: eventID,
			Cause:   "deputy departed",
		}))
	}

	decay("evt-depart-1")
	e, err := edges.FindActive(ctx, from, to, graph.EdgeHasFormalAuthorityOver)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, e.Weights.InstitutionalMemory, 1e-9)
	require.Len(t, e.DecayTriggers, 1)
	assert.Equal(t, "decayed", e.DecayTriggers[0].Event)

	// Replay: no double decay
	decay("evt-depart-1")
	e, err = edges.FindActive(ctx, from, to, graph.EdgeHasFormalAuthorityOver)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, e.Weights.InstitutionalMemory, 1e-9)
	assert.Len(t, e.DecayTriggers, 1)

	// Decay is bounded at 0.0
	decay("evt-depart-2")
	e, err = edges.FindActive(ctx, from, to, graph.EdgeHasFormalAuthorityOver)
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.Weights.InstitutionalMemory)
}

func TestEvolveDeactivationArchivesAndReplays(t *testing.T) {
	engine, edges, from, to := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, evolve.Event{
		Kind: evolve.KindActivation,
		From: from, To: to, EdgeType: graph.EdgeHasFormalAuthorityOver,
		Weights: graph.WeightUpdate{ProceduralPower: f64(0.8)},
	}))

	e, err := edges.FindActive(ctx, from, to, graph.EdgeHasFormalAuthorityOver)
	require.NoError(t, err)
	edgeID := e.ID

	deactivate := evolve.Event{
		Kind: evolve.KindDeactivation,
		From: from, To: to, EdgeType: graph.EdgeHasFormalAuthorityOver,
		EventID: "evt-removal-1",
		Cause:   "lost committee membership",
	}
	require.NoError(t, engine.Apply(ctx, deactivate))

	archived, err := edges.Get(ctx, edgeID)
	require.NoError(t, err)
	assert.Equal(t, graph.EdgeArchived, archived.Status)

	// Replaying deactivation is a no-op, not an error
	require.NoError(t, engine.Apply(ctx, deactivate))
	archived, err = edges.Get(ctx, edgeID)
	require.NoError(t, err)
	assert.Len(t, archived.DecayTriggers, 1)
}

func TestEvolveRejectsMalformedEvents(t *testing.T) {
	engine, _, from, to := setupEngine(t)
	ctx := context.Background()

	err := engine.Apply(ctx, evolve.Event{
		Kind: evolve.KindActivation, From: from, EdgeType: graph.EdgeCanBlock,
	})
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))

	err = engine.Apply(ctx, evolve.Event{
		Kind: evolve.KindActivation, From: from, To: to, EdgeType: "patron_of",
	})
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))

	err = engine.Apply(ctx, evolve.Event{
		Kind: "merge", From: from, To: to, EdgeType: graph.EdgeCanBlock,
	})
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))
}

func TestEvolveStrengthenMissingEdgeReportsNotFound(t *testing.T) {
	engine, _, from, to := setupEngine(t)

	err := engine.Apply(context.Background(), evolve.Event{
		Kind: evolve.KindStrengthen,
		From: from, To: to, EdgeType: graph.EdgeCanBlock,
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
