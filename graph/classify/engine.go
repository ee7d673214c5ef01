// Package classify derives discrete control classifications from an entity's
// active influence edges. The engine is pure: it takes edges in and returns a
// classification out, with no storage access, so the same edge set always
// produces the same result and the same evidence strings.
package classify

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hillwire/powergraph/graph"
)

// Thresholds are the procedural-power cut points between control tiers.
type Thresholds struct {
	// Primary is the power above which blocking or formal authority makes an
	// entity PRIMARY.
	Primary float64

	// Secondary is the power above which raw influence alone (with no tier
	// defining edge type) still places an entity in SECONDARY.
	Secondary float64
}

// Engine classifies entities from their outgoing active edges.
type Engine struct {
	thresholds Thresholds
	logger     *zap.SugaredLogger
}

// New creates a classification engine with the given thresholds.
func New(t Thresholds, logger *zap.SugaredLogger) *Engine {
	return &Engine{thresholds: t, logger: logger}
}

// Classify derives a classification for the entity from its active edges at
// the given context. Returns nil when the entity has no edges: absence of
// evidence, not evidence of SHADOW status.
//
// The tiers are checked in priority order, first match wins. PRIMARY: any
// can_block edge, or a has_formal_authority_over edge whose procedural power
// exceeds the primary threshold. SECONDARY: any controls_agenda_of or
// can_delay edge, or a maximum procedural power in (secondary, primary].
// Everything else is SHADOW: influence edges exist but neither authority nor
// the power threshold is met.
func (e *Engine) Classify(entityID string, edges []*graph.Edge, cctx graph.ClassificationContext) *graph.Classification {
	if len(edges) == 0 {
		return nil
	}

	sorted := make([]*graph.Edge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type < sorted[j].Type
		}
		if sorted[i].ToEntityID != sorted[j].ToEntityID {
			return sorted[i].ToEntityID < sorted[j].ToEntityID
		}
		return sorted[i].ID < sorted[j].ID
	})

	controlType, evidence := e.decide(sorted)

	if e.logger != nil {
		e.logger.Debugw("Entity classified",
			"entity_id", entityID,
			"control_type", string(controlType),
			"edges", len(sorted),
		)
	}

	return &graph.Classification{
		EntityID:      entityID,
		SchemaVersion: graph.SchemaVersion,
		ControlType:   controlType,
		Context:       cctx,
		Evidence:      evidence,
		EffectiveFrom: time.Now().UTC(),
	}
}

func (e *Engine) decide(edges []*graph.Edge) (graph.ControlType, []string) {
	// PRIMARY: can_block edges qualify unconditionally; formal authority
	// qualifies only above the primary threshold. Evidence cites the highest
	// powered qualifying edge.
	var qualifying []*graph.Edge
	for _, edge := range edges {
		switch edge.Type {
		case graph.EdgeCanBlock:
			qualifying = append(qualifying, edge)
		case graph.EdgeHasFormalAuthorityOver:
			if edge.Weights.ProceduralPower > e.thresholds.Primary {
				qualifying = append(qualifying, edge)
			}
		}
	}
	if len(qualifying) > 0 {
		top := qualifying[0]
		for _, edge := range qualifying[1:] {
			if edge.Weights.ProceduralPower > top.Weights.ProceduralPower {
				top = edge
			}
		}
		evidence := []string{edgeEvidence(top)}
		if top.Type == graph.EdgeCanBlock {
			evidence = append(evidence, "can_block edges grant primary control unconditionally")
		} else {
			evidence = append(evidence, fmt.Sprintf(
				"procedural_power %.2f exceeds primary threshold %.2f",
				top.Weights.ProceduralPower, e.thresholds.Primary))
		}
		return graph.ControlPrimary, evidence
	}

	for _, edge := range edges {
		if edge.Type == graph.EdgeControlsAgendaOf || edge.Type == graph.EdgeCanDelay {
			return graph.ControlSecondary, []string{
				edgeEvidence(edge),
				fmt.Sprintf("%s edges place the entity in the secondary tier", edge.Type),
			}
		}
	}

	if max := maxPower(edges); max > e.thresholds.Secondary && max <= e.thresholds.Primary {
		return graph.ControlSecondary, []string{
			fmt.Sprintf("maximum procedural_power %.2f lies in (%.2f, %.2f] with no tier-defining edge type",
				max, e.thresholds.Secondary, e.thresholds.Primary),
		}
	}

	return graph.ControlShadow, shadowEvidence(edges)
}

// shadowEvidence always states whether routes_around edges are present:
// their presence or absence is the difference between informal influence and
// simple weakness.
func shadowEvidence(edges []*graph.Edge) []string {
	evidence := []string{
		fmt.Sprintf("no authority edge qualifies; maximum procedural_power %.2f", maxPower(edges)),
	}

	var routes []*graph.Edge
	for _, edge := range edges {
		if edge.Type == graph.EdgeRoutesAround {
			routes = append(routes, edge)
		}
	}

	if len(routes) == 0 {
		evidence = append(evidence, "no routes_around edges observed")
		return evidence
	}
	for _, edge := range routes {
		evidence = append(evidence, edgeEvidence(edge))
	}
	evidence = append(evidence, "routes_around edges indicate influence outside formal procedure")
	return evidence
}

func edgeEvidence(e *graph.Edge) string {
	return fmt.Sprintf("%s edge to %s with procedural_power=%.2f",
		e.Type, e.ToEntityID, e.Weights.ProceduralPower)
}

func maxPower(edges []*graph.Edge) float64 {
	max := 0.0
	for _, e := range edges {
		if e.Weights.ProceduralPower > max {
			max = e.Weights.ProceduralPower
		}
	}
	return max
}
