package dag

import (
	"fmt"
	"strings"

	"github.com/oneconcern/dagsync/pkg/dag/status"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/model"
)

// SparseGraphError is returned when storing a node would leave a dangling parent reference
type SparseGraphError struct {
	DagNum  model.DagNum
	NodeID  model.NodeID
	Missing model.NodeIDs
}

func (e *SparseGraphError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		missing[i] = id.Short()
	}
	return fmt.Sprintf("%v: dag %s: node %s has missing parents [%s]",
		status.ErrSparseGraph, e.DagNum, e.NodeID.Short(), strings.Join(missing, ","))
}

// Unwrap to the sentinel error
func (e *SparseGraphError) Unwrap() error {
	return status.ErrSparseGraph
}

// NotFoundError is returned when a node is absent from a store
type NotFoundError struct {
	DagNum model.DagNum
	NodeID model.NodeID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: dag %s: node %s", status.ErrNotFound, e.DagNum, e.NodeID.Short())
}

// Unwrap to the sentinel error
func (e *NotFoundError) Unwrap() error {
	return status.ErrNotFound
}

// InconsistentDagError is returned by the consistency checker
type InconsistentDagError struct {
	DagNum model.DagNum
	NodeID model.NodeID
	Reason string
}

func (e *InconsistentDagError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("%v: dag %s: %s", status.ErrInconsistentDag, e.DagNum, e.Reason)
	}
	return fmt.Sprintf("%v: dag %s: node %s: %s", status.ErrInconsistentDag, e.DagNum, e.NodeID.Short(), e.Reason)
}

// Unwrap to the sentinel error
func (e *InconsistentDagError) Unwrap() error {
	return status.ErrInconsistentDag
}

// IsNotFound tells if an error reports an absent node
func IsNotFound(err error) bool {
	return errors.Is(err, status.ErrNotFound)
}

// IsSparseGraph tells if an error reports a missing parent
func IsSparseGraph(err error) bool {
	return errors.Is(err, status.ErrSparseGraph)
}
