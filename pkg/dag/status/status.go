// Package status declares error constants returned by node stores and the consistency checker.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/dag and one
// of its implementations.
package status

import "github.com/oneconcern/dagsync/pkg/errors"

var (
	// ErrSparseGraph indicates an attempt to store a node with some parent absent from the store
	ErrSparseGraph = errors.New("sparse graph")

	// ErrInconsistentDag indicates that the verification of a DAG failed
	ErrInconsistentDag = errors.New("inconsistent dag")

	// ErrNotFound indicates that a node is absent from the store
	ErrNotFound = errors.New("node not found")

	// ErrAmbiguous indicates that a node id prefix matches several nodes
	ErrAmbiguous = errors.New("ambiguous node id prefix")

	// ErrInvalidNode indicates that a node was rejected by the store
	ErrInvalidNode = errors.New("invalid node")

	// ErrStore indicates a failure of the underlying database
	ErrStore = errors.New("node store error")
)
