package dag

import (
	"context"
	"fmt"

	"github.com/oneconcern/dagsync/pkg/model"
)

// VerifyReport summarizes a successful verification
type VerifyReport struct {
	DagNum        model.DagNum
	Nodes         int
	Leaves        int
	Roots         int
	MaxGeneration int64
}

type verifiedNode struct {
	generation int64
	parents    []model.NodeID
}

// Verify walks the DAG from every leaf back to the roots and checks that:
//   - every node matches its id
//   - every parent is present, with a generation consistent with its children
//   - the leaf set is exactly the set of nodes without children
//   - every stored node is reachable from some leaf
//
// Verify never repairs anything. It returns an *InconsistentDagError on the first violation found.
func Verify(ctx context.Context, r Reader) (VerifyReport, error) {
	dagnum := r.DagNum()
	report := VerifyReport{DagNum: dagnum}
	fail := func(id model.NodeID, format string, args ...interface{}) (VerifyReport, error) {
		return report, &InconsistentDagError{DagNum: dagnum, NodeID: id, Reason: fmt.Sprintf(format, args...)}
	}

	leaves, err := r.Leaves(ctx)
	if err != nil {
		return report, err
	}
	report.Leaves = len(leaves)

	visited := make(map[model.NodeID]verifiedNode)
	hasChildren := make(map[model.NodeID]struct{})
	stack := make([]model.NodeID, 0, len(leaves))
	stack = append(stack, leaves...)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[id]; ok {
			continue
		}

		node, err := r.Fetch(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				return fail(id, "referenced node is missing")
			}
			return report, err
		}
		if node.ID != id {
			return fail(id, "store returned node %s", node.ID.Short())
		}
		if err := node.Verify(); err != nil {
			return fail(id, "%v", err)
		}

		visited[id] = verifiedNode{generation: node.Generation, parents: node.Parents}
		if node.IsRoot() {
			report.Roots++
		}
		if node.Generation > report.MaxGeneration {
			report.MaxGeneration = node.Generation
		}
		for _, p := range node.Parents {
			hasChildren[p] = struct{}{}
			if _, ok := visited[p]; !ok {
				stack = append(stack, p)
			}
		}
	}

	for id, node := range visited {
		var maxParent int64
		for _, p := range node.parents {
			parent := visited[p]
			if parent.generation >= node.generation {
				return fail(id, "generation %d is not greater than parent %s generation %d", node.generation, p.Short(), parent.generation)
			}
			if parent.generation > maxParent {
				maxParent = parent.generation
			}
		}
		if node.generation != maxParent+1 {
			return fail(id, "generation %d does not follow its parents", node.generation)
		}
	}

	for _, leaf := range leaves {
		if _, ok := hasChildren[leaf]; ok {
			return fail(leaf, "node is indexed as a leaf but has children")
		}
	}
	if childless := len(visited) - len(hasChildren); childless != len(leaves) {
		return fail("", "leaf index has %d entries, but %d nodes have no children", len(leaves), childless)
	}

	count, err := r.Count(ctx)
	if err != nil {
		return report, err
	}
	if count != len(visited) {
		return fail("", "%d nodes stored, but only %d are reachable from the leaves", count, len(visited))
	}
	report.Nodes = count

	return report, nil
}
