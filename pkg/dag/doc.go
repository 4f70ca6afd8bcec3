// Package dag defines the node store and the consistency checker for history DAGs.
//
// A node store hosts the nodes of a single DAG. It never stores a node unless all its parents are
// already present, and maintains the set of leaves along with each insertion.
package dag
