package hint

import (
	"sort"

	"github.com/oneconcern/dagsync/pkg/model"
)

// Table holds the generation hints collected for one DAG
type Table struct {
	hints map[model.NodeID]model.GenerationHint
}

// NewTable builds an empty hint table
func NewTable() *Table {
	return &Table{hints: make(map[model.NodeID]model.GenerationHint)}
}

// Set the hint for a node
func (t *Table) Set(id model.NodeID, h model.GenerationHint) {
	t.hints[id] = h
}

// Get the hint for a node. Unknown ids yield an untrusted hint.
func (t *Table) Get(id model.NodeID) model.GenerationHint {
	return t.hints[id]
}

// Len is the number of hints in the table
func (t *Table) Len() int {
	return len(t.hints)
}

// IDs yields the ids in the table, sorted
func (t *Table) IDs() model.NodeIDs {
	ids := make(model.NodeIDs, 0, len(t.hints))
	for id := range t.hints {
		ids = append(ids, id)
	}
	sort.Sort(ids)
	return ids
}

// HasUntrusted tells if some hint in the table is untrusted
func (t *Table) HasUntrusted() bool {
	for _, h := range t.hints {
		if h.IsUntrusted() {
			return true
		}
	}
	return false
}

// Lowest yields the lowest known generation in the table
func (t *Table) Lowest() (model.GenerationHint, bool) {
	var (
		lowest int64
		found  bool
	)
	for _, h := range t.hints {
		g, ok := h.Generation()
		if !ok {
			continue
		}
		if !found || g < lowest {
			lowest, found = g, true
		}
	}
	if !found {
		return model.UntrustedGeneration(), false
	}
	return model.KnownGeneration(lowest), true
}

// Bound combines all hints of the DAG into a single bound for a source leaf.
//
// A single untrusted hint, or an empty table, falls back to Unbounded for the whole DAG.
// Otherwise the bound is estimated against the lowest known generation, so that every
// receiver leaf is covered.
func (t *Table) Bound(e *Estimator, sourceGeneration int64) Bound {
	if len(t.hints) == 0 || t.HasUntrusted() {
		return Unbounded
	}
	lowest, _ := t.Lowest()
	return e.Estimate(sourceGeneration, lowest)
}
