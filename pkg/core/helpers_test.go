package core

import (
	"context"
	"testing"

	"github.com/oneconcern/dagsync/internal/dagtest"
	"github.com/oneconcern/dagsync/pkg/dag"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/repo"
	"github.com/oneconcern/dagsync/pkg/wire"
	"github.com/stretchr/testify/require"
)

// testRepos creates an in-memory origin and an empty related instance of it
func testRepos(t testing.TB) (*repo.Repository, *repo.Repository) {
	t.Helper()

	origin, err := repo.Init("origin", "origin", repo.InMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = origin.Close() })

	desc := origin.Descriptor()
	instance, err := repo.Init("instance", "instance", repo.InMemory(), repo.Identity(desc.RepoID, desc.AdminID))
	require.NoError(t, err)
	t.Cleanup(func() { _ = instance.Close() })

	return origin, instance
}

// load stores nodes of a graph in a repository, with the blobs they reference
func load(t testing.TB, r *repo.Repository, dagnum model.DagNum, g *dagtest.Graph, nodes []*model.Node) {
	t.Helper()
	ctx := context.Background()

	s, err := r.Store(dagnum)
	require.NoError(t, err)
	for _, node := range nodes {
		for _, id := range node.Blobs {
			require.NoError(t, r.Blobs().Put(ctx, id, g.Blobs[id]))
		}
	}
	_, err = dag.StoreAncestorFirst(ctx, s, nodes)
	require.NoError(t, err)
}

func count(t testing.TB, r *repo.Repository, dagnum model.DagNum) int {
	t.Helper()

	s, err := r.Store(dagnum)
	require.NoError(t, err)
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	return n
}

func leaves(t testing.TB, r *repo.Repository, dagnum model.DagNum) model.NodeIDs {
	t.Helper()

	s, err := r.Store(dagnum)
	require.NoError(t, err)
	ids, err := s.Leaves(context.Background())
	require.NoError(t, err)
	return ids
}

// requireSameDag checks that two repositories hold the same consistent dag, with the blobs its nodes reference
func requireSameDag(t testing.TB, a, b *repo.Repository, dagnum model.DagNum) {
	t.Helper()
	ctx := context.Background()

	reportA, err := a.Verify(ctx, dagnum)
	require.NoError(t, err)
	reportB, err := b.Verify(ctx, dagnum)
	require.NoError(t, err)
	require.Equal(t, reportA.Nodes, reportB.Nodes)
	require.Equal(t, leaves(t, a, dagnum), leaves(t, b, dagnum))

	for _, id := range referencedBlobs(dagNodes(t, a, dagnum)) {
		has, err := b.Blobs().Has(ctx, id)
		require.NoError(t, err)
		require.Truef(t, has, "blob %s is missing", id.Short())
	}
}

// dagNodes walks a dag down from its leaves
func dagNodes(t testing.TB, r *repo.Repository, dagnum model.DagNum) model.Nodes {
	t.Helper()
	ctx := context.Background()

	s, err := r.Store(dagnum)
	require.NoError(t, err)
	ids, err := s.Leaves(ctx)
	require.NoError(t, err)

	seen := make(map[model.NodeID]struct{}, len(ids))
	var all model.Nodes
	for len(ids) > 0 {
		id := ids[len(ids)-1]
		ids = ids[:len(ids)-1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		node, err := s.Fetch(ctx, id)
		require.NoError(t, err)
		all = append(all, node)
		ids = append(ids, node.Parents...)
	}
	return all
}

// perturbingPeer shifts the generations reported by a peer about the receiver, to simulate stale hints
type perturbingPeer struct {
	wire.Peer
	direction Direction
	delta     int64
}

// Leaves hints a pushing sender
func (p *perturbingPeer) Leaves(ctx context.Context, req *wire.RequestLeaves) (*wire.ReplyLeaves, error) {
	reply, err := p.Peer.Leaves(ctx, req)
	if err != nil || p.direction != DirectionPush {
		return reply, err
	}
	for i := range reply.Leaves {
		reply.Leaves[i].Generation += p.delta
	}
	return reply, nil
}

// ProbeGenerations hints a pulling receiver
func (p *perturbingPeer) ProbeGenerations(ctx context.Context, req *wire.RequestGenerationProbe) (*wire.ReplyGenerationProbe, error) {
	reply, err := p.Peer.ProbeGenerations(ctx, req)
	if err != nil || p.direction != DirectionPull {
		return reply, err
	}
	for i := range reply.Hints {
		if !reply.Hints[i].Untrusted {
			reply.Hints[i].Generation += p.delta
		}
	}
	return reply, nil
}

// hookPeer runs a hook before forwarding some requests
type hookPeer struct {
	wire.Peer
	beforeLeaves    func()
	beforeSendNodes func() error
}

func (p *hookPeer) Leaves(ctx context.Context, req *wire.RequestLeaves) (*wire.ReplyLeaves, error) {
	if p.beforeLeaves != nil {
		p.beforeLeaves()
	}
	return p.Peer.Leaves(ctx, req)
}

func (p *hookPeer) SendNodes(ctx context.Context, req *wire.SendNodes) (*wire.ReplySendNodes, error) {
	if p.beforeSendNodes != nil {
		if err := p.beforeSendNodes(); err != nil {
			return nil, err
		}
	}
	return p.Peer.SendNodes(ctx, req)
}

var errFlaky = errors.New("blob transfer interrupted")

// flakyBlobPeer fails the first blob transfer in either direction
type flakyBlobPeer struct {
	wire.Peer
	failed bool
}

func (p *flakyBlobPeer) fail() error {
	if p.failed {
		return nil
	}
	p.failed = true
	return errFlaky
}

func (p *flakyBlobPeer) SendBlobs(ctx context.Context, req *wire.SendBlobs) (*wire.ReplySendBlobs, error) {
	if err := p.fail(); err != nil {
		return nil, err
	}
	return p.Peer.SendBlobs(ctx, req)
}

func (p *flakyBlobPeer) FetchBlobs(ctx context.Context, req *wire.RequestFetchBlobs) (*wire.ReplyFetchBlobs, error) {
	if err := p.fail(); err != nil {
		return nil, err
	}
	return p.Peer.FetchBlobs(ctx, req)
}
