// Package evolve applies externally observed lifecycle events to influence
// edges: activation, strengthening, decay, and deactivation. The engine owns
// the transition policies; the edge store owns persistence and uniqueness.
package evolve

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
)

// Kind is the lifecycle transition an event requests.
type Kind string

const (
	// KindActivation creates or re-observes the edge for the event's triple.
	KindActivation Kind = "activation"

	// KindStrengthen raises procedural power by the configured increment,
	// bounded at 1.0.
	KindStrengthen Kind = "strengthen"

	// KindDecay lowers institutional memory by the configured step, bounded
	// at 0.0.
	KindDecay Kind = "decay"

	// KindDeactivation archives the edge. Terminal.
	KindDeactivation Kind = "deactivation"
)

// Event is one externally observed edge lifecycle event. EventID is the
// upstream idempotency key: replaying an event with an EventID the edge has
// already recorded is a no-op.
type Event struct {
	Kind Kind

	From     string
	To       string
	EdgeType graph.EdgeType

	// Weights apply to activation events only; the other kinds derive their
	// weight changes from the configured policies.
	Weights graph.WeightUpdate

	LegislativeState string
	EventID          string
	Cause            string
	OccurredAt       time.Time
}

// Config holds the evolution policy constants.
type Config struct {
	// StrengthenIncrement is added to procedural power per successful
	// influence observation.
	StrengthenIncrement float64

	// DecayStep is subtracted from institutional memory per decay trigger.
	DecayStep float64
}

// Engine applies lifecycle events to the edge store.
type Engine struct {
	edges  graph.EdgeStore
	cfg    Config
	logger *zap.SugaredLogger
}

// New creates an evolution engine over the given edge store.
func New(edges graph.EdgeStore, cfg Config, logger *zap.SugaredLogger) *Engine {
	return &Engine{edges: edges, cfg: cfg, logger: logger}
}

// Apply dispatches the event to its transition. Idempotent: the same event
// applied twice never double-applies a weight change or re-archives an edge.
func (e *Engine) Apply(ctx context.Context, ev Event) error {
	if ev.From == "" || ev.To == "" {
		return errors.NewMalformed("edge event requires from and to entity ids")
	}
	if !ev.EdgeType.Valid() {
		return errors.NewMalformed("unknown edge type %q", ev.EdgeType)
	}

	switch ev.Kind {
	case KindActivation:
		return e.activate(ctx, ev)
	case KindStrengthen:
		return e.strengthen(ctx, ev)
	case KindDecay:
		return e.decay(ctx, ev)
	case KindDeactivation:
		return e.deactivate(ctx, ev)
	default:
		return errors.NewMalformed("unknown event kind %q", ev.Kind)
	}
}

func (e *Engine) activate(ctx context.Context, ev Event) error {
	_, err := e.edges.Observe(ctx, graph.EdgeObservation{
		From:             ev.From,
		To:               ev.To,
		Type:             ev.EdgeType,
		Weights:          ev.Weights,
		LegislativeState: ev.LegislativeState,
		EventID:          ev.EventID,
		Cause:            ev.Cause,
		ObservedAt:       ev.OccurredAt,
	})
	return err
}

func (e *Engine) strengthen(ctx context.Context, ev Event) error {
	edge, err := e.edges.FindActive(ctx, ev.From, ev.To, ev.EdgeType)
	if err != nil {
		return err
	}
	if edge.HasHistoryEvent(ev.EventID) {
		return nil
	}

	w := edge.Weights
	w.Strengthen(e.cfg.StrengthenIncrement)

	err = e.edges.UpdateWeights(ctx, edge.ID, w, graph.EdgeHistoryEvent{
		Event:     "strengthened",
		EventID:   ev.EventID,
		Cause:     ev.Cause,
		Timestamp: ev.OccurredAt,
	})
	if err != nil {
		return err
	}

	if e.logger != nil {
		e.logger.Debugw("Edge strengthened",
			"edge_id", edge.ID,
			"procedural_power", w.ProceduralPower,
			"cause", ev.Cause,
		)
	}
	return nil
}

func (e *Engine) decay(ctx context.Context, ev Event) error {
	edge, err := e.edges.FindActive(ctx, ev.From, ev.To, ev.EdgeType)
	if err != nil {
		return err
	}
	if edge.HasHistoryEvent(ev.EventID) {
		return nil
	}

	w := edge.Weights
	w.DecayMemory(e.cfg.DecayStep)

	err = e.edges.ApplyDecay(ctx, edge.ID, w, graph.EdgeHistoryEvent{
		Event:     "decayed",
		EventID:   ev.EventID,
		Cause:     ev.Cause,
		Timestamp: ev.OccurredAt,
	})
	if err != nil {
		return err
	}

	if e.logger != nil {
		e.logger.Debugw("Edge memory decayed",
			"edge_id", edge.ID,
			"institutional_memory", w.InstitutionalMemory,
			"cause", ev.Cause,
		)
	}
	return nil
}

// deactivate archives the edge for the event's triple. No ACTIVE edge is a
// no-op: the relationship is already gone, which is what the event asserts.
func (e *Engine) deactivate(ctx context.Context, ev Event) error {
	edge, err := e.edges.FindActive(ctx, ev.From, ev.To, ev.EdgeType)
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return e.edges.Archive(ctx, edge.ID, ev.Cause, ev.EventID)
}
