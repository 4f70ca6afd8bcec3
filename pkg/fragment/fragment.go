// Package fragment implements a connected, possibly truncated slice of a DAG.
//
// A fragment holds members, i.e. fetched nodes, and a fringe, i.e. the ids of nodes referenced as
// parents by some member but not fetched. Every parent of a member is either a member or in
// the fringe.
package fragment

import (
	"context"
	"sort"

	"github.com/oneconcern/dagsync/pkg/dag"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/hint"
	"github.com/oneconcern/dagsync/pkg/model"
)

var (
	// ErrDangling indicates that some member of a fragment has a parent which is neither a member nor in the fringe
	ErrDangling = errors.New("dangling parent in fragment")

	// ErrWrongDag indicates an attempt to mix fragments or nodes of different DAGs
	ErrWrongDag = errors.New("fragment belongs to another dag")
)

// State of an id with respect to a fragment
type State uint8

// Query states
const (
	Unknown State = iota
	StartMember
	InteriorMember
	EndFringe
)

func (s State) String() string {
	switch s {
	case StartMember:
		return "start-member"
	case InteriorMember:
		return "interior-member"
	case EndFringe:
		return "end-fringe"
	default:
		return "unknown"
	}
}

// IsMember tells if the state is that of a fetched node
func (s State) IsMember() bool {
	return s == StartMember || s == InteriorMember
}

type member struct {
	node   *model.Node
	start  bool
	budget int64
}

// Fragment of a DAG. A fragment is not safe for concurrent use.
type Fragment struct {
	dagnum  model.DagNum
	repoID  string
	adminID string
	members map[model.NodeID]*member
	fringe  map[model.NodeID]int64 // generation, or 0 when not known
}

// New allocates an empty fragment for a DAG
func New(dagnum model.DagNum, repoID, adminID string) *Fragment {
	return &Fragment{
		dagnum:  dagnum,
		repoID:  repoID,
		adminID: adminID,
		members: make(map[model.NodeID]*member),
		fringe:  make(map[model.NodeID]int64),
	}
}

// DagNum of the fragment
func (f *Fragment) DagNum() model.DagNum { return f.dagnum }

// RepoID of the repository this fragment was extracted from
func (f *Fragment) RepoID() string { return f.repoID }

// AdminID of the repository this fragment was extracted from
func (f *Fragment) AdminID() string { return f.adminID }

// IsRelated tells if the fragment may share history with some repository
func (f *Fragment) IsRelated(repoID, adminID string) bool {
	return f.repoID == repoID && f.adminID == adminID
}

// Len is the number of members
func (f *Fragment) Len() int {
	return len(f.members)
}

type workItem struct {
	node      *model.Node
	remaining int64
}

// Grow the fragment by walking back from the seeds, fetching nodes from the store.
//
// Each seed carries its own budget, derived from the bound: a node is fetched as long as the
// distance in generations to the seed is less than the budget. Parents beyond the budget are
// recorded as fringe. A node reached from several seeds keeps the largest remaining budget, so
// growing again with the same or a smaller bound is a no-op while a larger bound pushes the
// fringe further back.
//
// Seeds must be present in the store. Seeds in the fringe graduate to members.
func (f *Fragment) Grow(ctx context.Context, store dag.Reader, seeds []model.NodeID, bound hint.Bound) error {
	if store.DagNum() != f.dagnum {
		return ErrWrongDag.WrapMessage("fragment for dag %s, store for dag %s", f.dagnum, store.DagNum())
	}
	budget := bound.Budget()
	if budget < 1 {
		return nil
	}

	work := make([]workItem, 0, len(seeds))
	for _, id := range seeds {
		if m, ok := f.members[id]; ok {
			if m.budget < budget {
				work = append(work, workItem{node: m.node, remaining: budget})
			}
			continue
		}
		node, err := store.Fetch(ctx, id)
		if err != nil {
			return err
		}
		_, wasFringe := f.fringe[id]
		f.admit(node, !wasFringe, 0)
		work = append(work, workItem{node: node, remaining: budget})
	}

	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := work[len(work)-1]
		work = work[:len(work)-1]

		m := f.members[item.node.ID]
		if m.budget >= item.remaining {
			// already expanded from some seed with a larger budget
			continue
		}
		m.budget = item.remaining

		for _, p := range item.node.Parents {
			if pm, ok := f.members[p]; ok {
				remaining := item.remaining - (item.node.Generation - pm.node.Generation)
				if remaining > 0 && pm.budget < remaining {
					work = append(work, workItem{node: pm.node, remaining: remaining})
				}
				continue
			}

			parent, err := store.Fetch(ctx, p)
			if err != nil {
				return err
			}
			remaining := item.remaining - (item.node.Generation - parent.Generation)
			if remaining <= 0 {
				f.fringe[p] = parent.Generation
				continue
			}
			f.admit(parent, false, 0)
			work = append(work, workItem{node: parent, remaining: remaining})
		}
	}

	return nil
}

// admit a node as a member, with parents not yet known recorded as fringe
func (f *Fragment) admit(node *model.Node, start bool, budget int64) {
	delete(f.fringe, node.ID)
	f.members[node.ID] = &member{node: node, start: start, budget: budget}
	for _, p := range node.Parents {
		if _, ok := f.members[p]; ok {
			continue
		}
		if _, ok := f.fringe[p]; !ok {
			f.fringe[p] = 0
		}
	}
}

// AddNode inserts an already fetched node as a member. Parents which are not members become fringe.
// A node taken from the fringe becomes an interior member, otherwise a start member.
//
// Adding a member again is a no-op.
func (f *Fragment) AddNode(node *model.Node) error {
	if !node.IsFrozen() {
		return model.ErrNotFrozen
	}
	if _, ok := f.members[node.ID]; ok {
		return nil
	}
	_, wasFringe := f.fringe[node.ID]
	f.admit(node.Clone(), !wasFringe, 1)
	return nil
}

// Absorb rebuilds a fragment from members and fringe ids received from some peer.
//
// Members are verified against their ids, and the result must not dangle.
func (f *Fragment) Absorb(members []*model.Node, fringe []model.NodeID) error {
	sorted := make(model.Nodes, len(members))
	copy(sorted, members)
	sort.Sort(sort.Reverse(sorted))

	// descendants first, so that members reached from others are interior
	for _, node := range sorted {
		if err := node.Verify(); err != nil {
			return err
		}
		if err := f.AddNode(node); err != nil {
			return err
		}
	}
	for _, id := range fringe {
		if _, ok := f.members[id]; ok {
			continue
		}
		if _, ok := f.fringe[id]; !ok {
			f.fringe[id] = 0
		}
	}
	return f.Validate()
}

// Query the state of an id. The generation is 0 when not known; the node is nil unless a member.
func (f *Fragment) Query(id model.NodeID) (State, int64, *model.Node) {
	if m, ok := f.members[id]; ok {
		if m.start {
			return StartMember, m.node.Generation, m.node
		}
		return InteriorMember, m.node.Generation, m.node
	}
	if g, ok := f.fringe[id]; ok {
		return EndFringe, g, nil
	}
	return Unknown, 0, nil
}

// Members yields the member nodes in ancestor-first order
func (f *Fragment) Members() model.Nodes {
	nodes := make(model.Nodes, 0, len(f.members))
	for _, m := range f.members {
		nodes = append(nodes, m.node)
	}
	sort.Sort(nodes)
	return nodes
}

// Fringe yields the fringe ids, sorted
func (f *Fragment) Fringe() model.NodeIDs {
	ids := make(model.NodeIDs, 0, len(f.fringe))
	for id := range f.fringe {
		ids = append(ids, id)
	}
	sort.Sort(ids)
	return ids
}

// MembersIncludingFringe yields all ids known to the fragment, in a stable order: by generation,
// then by id. Fringe ids with an unknown generation come first.
func (f *Fragment) MembersIncludingFringe() model.NodeIDs {
	type entry struct {
		id  model.NodeID
		gen int64
	}
	entries := make([]entry, 0, len(f.members)+len(f.fringe))
	for id, m := range f.members {
		entries = append(entries, entry{id: id, gen: m.node.Generation})
	}
	for id, g := range f.fringe {
		entries = append(entries, entry{id: id, gen: g})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].gen != entries[j].gen {
			return entries[i].gen < entries[j].gen
		}
		return entries[i].id < entries[j].id
	})
	ids := make(model.NodeIDs, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// Validate that no member has a dangling parent
func (f *Fragment) Validate() error {
	for id, m := range f.members {
		if _, ok := f.fringe[id]; ok {
			return ErrDangling.WrapMessage("node %s is both a member and in the fringe", id.Short())
		}
		for _, p := range m.node.Parents {
			_, isMember := f.members[p]
			_, inFringe := f.fringe[p]
			if !isMember && !inFringe {
				return ErrDangling.WrapMessage("node %s has parent %s outside the fragment", id.Short(), p.Short())
			}
		}
	}
	return nil
}
