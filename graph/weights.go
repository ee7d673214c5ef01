package graph

import (
	"math"
	"sort"

	"github.com/hillwire/powergraph/errors"
)

// WeightVector is a named vector of influence weights. ProceduralPower and
// InstitutionalMemory are the fields classification depends on; Extra holds
// experimental weights that never participate in classification unless
// explicitly wired in.
type WeightVector struct {
	ProceduralPower     float64            `json:"procedural_power"`
	InstitutionalMemory float64            `json:"institutional_memory"`
	Extra               map[string]float64 `json:"extra,omitempty"`
}

// Validate checks every weight lies in [0,1].
func (w WeightVector) Validate() error {
	if !inUnitRange(w.ProceduralPower) {
		return errors.NewMalformed("procedural_power %v outside [0,1]", w.ProceduralPower)
	}
	if !inUnitRange(w.InstitutionalMemory) {
		return errors.NewMalformed("institutional_memory %v outside [0,1]", w.InstitutionalMemory)
	}
	for name, v := range w.Extra {
		if !inUnitRange(v) {
			return errors.NewMalformed("extra weight %q %v outside [0,1]", name, v)
		}
	}
	return nil
}

// ExtraNames returns the extension weight names in sorted order, for
// deterministic iteration.
func (w WeightVector) ExtraNames() []string {
	names := make([]string, 0, len(w.Extra))
	for name := range w.Extra {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WeightUpdate is a partial weight observation: nil fields were not observed
// and leave the stored value untouched. Supplied fields win over stored
// values (last-observed-wins merge policy).
type WeightUpdate struct {
	ProceduralPower     *float64           `json:"procedural_power,omitempty"`
	InstitutionalMemory *float64           `json:"institutional_memory,omitempty"`
	Extra               map[string]float64 `json:"extra,omitempty"`
}

// Validate checks every supplied weight lies in [0,1].
func (u WeightUpdate) Validate() error {
	if u.ProceduralPower != nil && !inUnitRange(*u.ProceduralPower) {
		return errors.NewMalformed("procedural_power %v outside [0,1]", *u.ProceduralPower)
	}
	if u.InstitutionalMemory != nil && !inUnitRange(*u.InstitutionalMemory) {
		return errors.NewMalformed("institutional_memory %v outside [0,1]", *u.InstitutionalMemory)
	}
	for name, v := range u.Extra {
		if !inUnitRange(v) {
			return errors.NewMalformed("extra weight %q %v outside [0,1]", name, v)
		}
	}
	return nil
}

// ToVector materializes the update as a full vector, with unsupplied named
// weights at zero.
func (u WeightUpdate) ToVector() WeightVector {
	var w WeightVector
	w.Apply(u)
	return w
}

// Apply merges the update into the vector: supplied fields overwrite, absent
// fields are preserved, extra weights merge key by key.
func (w *WeightVector) Apply(u WeightUpdate) {
	if u.ProceduralPower != nil {
		w.ProceduralPower = *u.ProceduralPower
	}
	if u.InstitutionalMemory != nil {
		w.InstitutionalMemory = *u.InstitutionalMemory
	}
	if len(u.Extra) > 0 {
		if w.Extra == nil {
			w.Extra = make(map[string]float64, len(u.Extra))
		}
		for name, v := range u.Extra {
			w.Extra[name] = v
		}
	}
}

// Strengthen raises procedural power by increment, bounded at 1.0.
func (w *WeightVector) Strengthen(increment float64) {
	w.ProceduralPower = math.Min(1.0, w.ProceduralPower+increment)
}

// DecayMemory lowers institutional memory by step, bounded at 0.0. Decay is
// monotonic: it never raises a weight.
func (w *WeightVector) DecayMemory(step float64) {
	w.InstitutionalMemory = math.Max(0.0, w.InstitutionalMemory-step)
}

func inUnitRange(v float64) bool {
	return v >= 0.0 && v <= 1.0 && !math.IsNaN(v)
}
