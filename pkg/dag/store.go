package dag

import (
	"context"
	"sort"

	"github.com/oneconcern/dagsync/pkg/model"
)

// Reader is the read side of a node store
type Reader interface {
	DagNum() model.DagNum

	// Fetch a node. Returns a *NotFoundError when absent.
	Fetch(context.Context, model.NodeID) (*model.Node, error)
	Has(context.Context, model.NodeID) (bool, error)

	// Leaves yields the ids of nodes that are not parent of any other node, sorted
	Leaves(context.Context) (model.NodeIDs, error)
	Count(context.Context) (int, error)

	// Resolve finds the unique node with an id starting with prefix
	Resolve(context.Context, string) (model.NodeID, error)
}

// Store is an append-only store of frozen nodes, for a single DAG
type Store interface {
	Reader

	// Store a node. Returns a *SparseGraphError if some parent is absent.
	// Storing a node which is already present is a no-op.
	Store(context.Context, *model.Node) error
}

// StoreAncestorFirst stores a batch of nodes, ancestors before descendants, and yields the
// number of nodes that were not already present.
//
// The input slice is left untouched.
func StoreAncestorFirst(ctx context.Context, s Store, nodes []*model.Node) (int, error) {
	sorted := make(model.Nodes, len(nodes))
	copy(sorted, nodes)
	sort.Stable(sorted)

	added := 0
	for _, node := range sorted {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		has, err := s.Has(ctx, node.ID)
		if err != nil {
			return added, err
		}
		if has {
			continue
		}
		if err := s.Store(ctx, node); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// Generations fetches the generation of each node in the store. Ids absent from the store are
// not reported.
func Generations(ctx context.Context, r Reader, ids []model.NodeID) (map[model.NodeID]int64, error) {
	res := make(map[model.NodeID]int64, len(ids))
	for _, id := range ids {
		node, err := r.Fetch(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		res[id] = node.Generation
	}
	return res, nil
}
