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

// pull receives a dag from the remote peer.
//
// The remote grows the fragment, bounded by the generations it reports for the local leaves.
// The fringe of the fragment is checked locally: missing fringe nodes are requested with a deeper
// fragment. The blobs referenced by the missing nodes are fetched, then the nodes are stored
// ancestors first and the dag is verified.
func (s *Session) pull(ctx context.Context, t *target, stats *Stats) error {
	x := s.exchange(t.dagnum)
	l := s.l.With(zap.Stringer("dagnum", t.dagnum))

	dst, err := s.local.Store(t.dagnum)
	if err != nil {
		return x.fail("open", err)
	}

	seeds := t.seeds
	if len(seeds) == 0 {
		reply, err := s.peer.Leaves(ctx, &wire.RequestLeaves{DagNum: t.dagnum})
		if err != nil {
			return x.fail("leaves", err)
		}
		seeds = reply.Leaves
	}
	stats.DagNodesTouched[t.dagnum] = 0

	var (
		wanted     []model.NodeID
		generation int64
	)
	for _, seed := range seeds {
		has, err := dst.Has(ctx, seed.ID)
		if err != nil {
			return x.fail("leaves", err)
		}
		if has {
			continue
		}
		wanted = append(wanted, seed.ID)
		if seed.Generation > generation {
			generation = seed.Generation
		}
	}
	if len(wanted) == 0 {
		l.Debug("local dag is up to date")
		return nil
	}

	local, err := dst.Leaves(ctx)
	if err != nil {
		return x.fail("hints", err)
	}
	hints := hint.NewTable()
	if len(local) > 0 {
		reply, err := s.peer.ProbeGenerations(ctx, &wire.RequestGenerationProbe{DagNum: t.dagnum, IDs: local})
		if err != nil {
			return x.fail("hints", err)
		}
		for _, h := range reply.Hints {
			hints.Set(h.ID, h.GenerationHint())
		}
	}

	bound := hints.Bound(s.estimator, generation)
	f, err := s.requestFragment(ctx, t.dagnum, wanted, bound, nil)
	if err != nil {
		return x.fail("fragment", err)
	}

	for attempt := 1; ; attempt++ {
		missing, err := missingLocally(ctx, dst, f.Fringe())
		if err != nil {
			return x.fail("fringe", err)
		}
		if len(missing) == 0 {
			break
		}
		if bound.IsUnbounded() {
			return x.fail("fringe", status.ErrProtocol.WrapMessage("unbounded fragment has a fringe missing locally"))
		}

		bound = hint.Widen(bound, attempt)
		stats.Deepenings++
		s.settings.metrics.deepening()
		l.Debug("deepening fragment", zap.Int("missing", len(missing)), zap.Stringer("bound", bound))
		if _, err = s.requestFragment(ctx, t.dagnum, missing, bound, f); err != nil {
			return x.fail("fragment", err)
		}
	}
	stats.DagNodesTouched[t.dagnum] = f.Len()

	var nodes model.Nodes
	for _, node := range f.Members() {
		has, err := dst.Has(ctx, node.ID)
		if err != nil {
			return x.fail("store", err)
		}
		if !has {
			nodes = append(nodes, node)
		}
	}

	// blobs land first: a node is never stored without the blobs it references
	if err := s.pullBlobs(ctx, nodes, stats); err != nil {
		return x.fail("fetch blobs", err)
	}

	if err := ctx.Err(); err != nil {
		return x.fail("store", err)
	}
	// storage is not interrupted by a cancellation
	storeCtx := context.WithoutCancel(ctx)
	unlock := s.local.Lock(t.dagnum)
	stored, err := dag.StoreAncestorFirst(storeCtx, dst, nodes)
	stats.NodesTransferred += stored
	if err == nil {
		_, err = dag.Verify(storeCtx, dst)
	}
	unlock()
	if err != nil {
		return x.fail("store", err)
	}
	l.Debug("nodes stored", zap.Int("stored", stored))
	return nil
}

// requestFragment asks the remote to grow a fragment and absorbs the reply. A nil fragment
// starts a new one.
func (s *Session) requestFragment(ctx context.Context, dagnum model.DagNum, seeds []model.NodeID, bound hint.Bound, f *fragment.Fragment) (*fragment.Fragment, error) {
	reply, err := s.peer.Fragment(ctx, &wire.RequestFragment{DagNum: dagnum, Seeds: seeds, Bound: int64(bound)})
	if err != nil {
		return nil, err
	}
	if reply.DagNum != dagnum {
		return nil, status.ErrProtocol.WrapMessage("requested a fragment of dag %s, got dag %s", dagnum, reply.DagNum)
	}
	desc := s.local.Descriptor()
	if f == nil {
		f = fragment.New(dagnum, reply.RepoID, reply.AdminID)
	}
	if !f.IsRelated(desc.RepoID, desc.AdminID) || reply.RepoID != f.RepoID() || reply.AdminID != f.AdminID() {
		return nil, status.ErrUnrelatedRepo.WrapMessage("fragment from repository %s", reply.RepoID)
	}
	if err := f.Absorb(reply.Members, reply.Fringe); err != nil {
		return nil, status.ErrProtocol.Wrap(err)
	}
	return f, nil
}

func missingLocally(ctx context.Context, r dag.Reader, ids model.NodeIDs) ([]model.NodeID, error) {
	var missing []model.NodeID
	for _, id := range ids {
		has, err := r.Has(ctx, id)
		if err != nil {
			return nil, err
		}
		if !has {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
