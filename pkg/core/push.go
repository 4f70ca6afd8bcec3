package core

import (
	"context"

	"github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/dag"
	"github.com/oneconcern/dagsync/pkg/fragment"
	"github.com/oneconcern/dagsync/pkg/hint"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/wire"
	"go.uber.org/zap"
)

// push sends a dag to the remote peer.
//
// The fragment is grown locally, bounded by hints derived from the leaves of the receiver, then
// probed against the receiver: missing fringe nodes deepen the fragment. Nodes the receiver lacks
// are then sent in ancestor-first order, after the blobs they reference.
func (s *Session) push(ctx context.Context, t *target, stats *Stats) error {
	x := s.exchange(t.dagnum)
	l := s.l.With(zap.Stringer("dagnum", t.dagnum))

	src, err := s.local.Store(t.dagnum)
	if err != nil {
		return x.fail("open", err)
	}
	seeds := t.seeds
	if len(seeds) == 0 {
		if seeds, err = leavesWithGenerations(ctx, src); err != nil {
			return x.fail("leaves", err)
		}
	}
	if len(seeds) == 0 {
		l.Debug("empty dag, nothing to push")
		stats.DagNodesTouched[t.dagnum] = 0
		return nil
	}

	leaves, err := s.peer.Leaves(ctx, &wire.RequestLeaves{DagNum: t.dagnum})
	if err != nil {
		return x.fail("leaves", err)
	}

	// receiver leaves unknown here cannot be trusted
	hints := hint.NewTable()
	for _, leaf := range leaves.Leaves {
		has, err := src.Has(ctx, leaf.ID)
		if err != nil {
			return x.fail("hints", err)
		}
		if has {
			hints.Set(leaf.ID, model.KnownGeneration(leaf.Generation))
		} else {
			hints.Set(leaf.ID, model.UntrustedGeneration())
		}
	}

	desc := s.local.Descriptor()
	f := fragment.New(t.dagnum, desc.RepoID, desc.AdminID)
	var bound hint.Bound
	for _, seed := range seeds {
		b := hints.Bound(s.estimator, seed.Generation)
		if err := f.Grow(ctx, src, []model.NodeID{seed.ID}, b); err != nil {
			return x.fail("fragment", err)
		}
		bound = widest(bound, b)
	}
	l.Debug("fragment built", zap.Stringer("bound", bound), zap.Int("members", f.Len()))

	present := make(map[model.NodeID]bool)
	probed := make(map[model.NodeID]bool)
	for attempt := 1; ; attempt++ {
		var ids []model.NodeID
		for _, id := range f.MembersIncludingFringe() {
			if !probed[id] {
				ids = append(ids, id)
				probed[id] = true
			}
		}
		reply, err := s.peer.ProbeFragment(ctx, &wire.RequestFragmentProbe{DagNum: t.dagnum, IDs: ids})
		if err != nil {
			return x.fail("check fringe", err)
		}
		for _, id := range reply.Present {
			present[id] = true
		}

		var missing []model.NodeID
		for _, id := range f.Fringe() {
			if !present[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			break
		}
		if bound.IsUnbounded() {
			return x.fail("check fringe", status.ErrProtocol.WrapMessage("unbounded fragment has a missing fringe"))
		}

		bound = hint.Widen(bound, attempt)
		stats.Deepenings++
		s.settings.metrics.deepening()
		l.Debug("deepening fragment", zap.Int("missing", len(missing)), zap.Stringer("bound", bound))
		if err := f.Grow(ctx, src, missing, bound); err != nil {
			return x.fail("fragment", err)
		}
	}

	stats.DagNodesTouched[t.dagnum] = f.Len()
	var nodes model.Nodes
	for _, node := range f.Members() {
		if !present[node.ID] {
			nodes = append(nodes, node)
		}
	}
	if len(nodes) == 0 {
		l.Debug("receiver is up to date")
		return nil
	}

	// the receiver holds the blobs before any node referencing them
	if err := s.pushBlobs(ctx, nodes, stats); err != nil {
		return x.fail("send blobs", err)
	}

	reply, err := s.peer.SendNodes(ctx, &wire.SendNodes{DagNum: t.dagnum, Nodes: nodes})
	if err != nil {
		return x.fail("send nodes", err)
	}
	stats.NodesTransferred += reply.Stored
	l.Debug("nodes sent", zap.Int("stored", reply.Stored), zap.Int("count", reply.Count))
	return nil
}

func leavesWithGenerations(ctx context.Context, r dag.Reader) ([]wire.NodeGeneration, error) {
	leaves, err := r.Leaves(ctx)
	if err != nil {
		return nil, err
	}
	gens, err := dag.Generations(ctx, r, leaves)
	if err != nil {
		return nil, err
	}
	res := make([]wire.NodeGeneration, len(leaves))
	for i, id := range leaves {
		res[i] = wire.NodeGeneration{ID: id, Generation: gens[id]}
	}
	return res, nil
}

// widest of two bounds, with the zero bound standing for no bound yet
func widest(a, b hint.Bound) hint.Bound {
	if a.IsUnbounded() || b.IsUnbounded() {
		return hint.Unbounded
	}
	if b > a {
		return b
	}
	return a
}
