package storage

import (
	"encoding/json"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
)

// entityDocs holds the marshaled JSON documents embedded in an entity row.
type entityDocs struct {
	CurrentJSON    string
	HistoricalJSON string
	TimelineJSON   string
}

func marshalEntityDocs(e *graph.Entity) (*entityDocs, error) {
	current, err := json.Marshal(emptyAsList(e.CurrentAssignments))
	if err != nil {
		return nil, errors.Wrap(err, "marshal current assignments")
	}
	historical, err := json.Marshal(emptyAsList(e.HistoricalAssignments))
	if err != nil {
		return nil, errors.Wrap(err, "marshal historical assignments")
	}
	timeline, err := json.Marshal(emptyTimelineAsList(e.AssignmentTimeline))
	if err != nil {
		return nil, errors.Wrap(err, "marshal assignment timeline")
	}
	return &entityDocs{
		CurrentJSON:    string(current),
		HistoricalJSON: string(historical),
		TimelineJSON:   string(timeline),
	}, nil
}

// edgeDocs holds the marshaled JSON documents embedded in an edge row.
type edgeDocs struct {
	ExtraWeightsJSON string
	ActivationsJSON  string
	DecaysJSON       string
}

func marshalEdgeDocs(e *graph.Edge) (*edgeDocs, error) {
	extra := e.Weights.Extra
	if extra == nil {
		extra = map[string]float64{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return nil, errors.Wrap(err, "marshal extra weights")
	}
	activations, err := json.Marshal(emptyEventsAsList(e.ActivationEvents))
	if err != nil {
		return nil, errors.Wrap(err, "marshal activation events")
	}
	decays, err := json.Marshal(emptyEventsAsList(e.DecayTriggers))
	if err != nil {
		return nil, errors.Wrap(err, "marshal decay triggers")
	}
	return &edgeDocs{
		ExtraWeightsJSON: string(extraJSON),
		ActivationsJSON:  string(activations),
		DecaysJSON:       string(decays),
	}, nil
}

// JSON columns default to '[]'; marshal nil slices the same way so reads and
// writes round-trip.
func emptyAsList(a []graph.Assignment) []graph.Assignment {
	if a == nil {
		return []graph.Assignment{}
	}
	return a
}

func emptyTimelineAsList(a []graph.TimelineEvent) []graph.TimelineEvent {
	if a == nil {
		return []graph.TimelineEvent{}
	}
	return a
}

func emptyEventsAsList(a []graph.EdgeHistoryEvent) []graph.EdgeHistoryEvent {
	if a == nil {
		return []graph.EdgeHistoryEvent{}
	}
	return a
}
