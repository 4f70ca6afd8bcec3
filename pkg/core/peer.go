package core

import (
	"context"

	"github.com/oneconcern/dagsync/pkg/wire"
)

const (
	phaseDag  = "dag"
	phaseBlob = "blob"
)

// countingPeer decorates a remote peer to count round trips.
//
// Describe and Resolve are exchanged when opening a session and are not counted.
type countingPeer struct {
	wire.Peer
	metrics *Metrics
	dag     int
	blob    int
}

func (c *countingPeer) dagTrip() {
	c.dag++
	c.metrics.roundTrip(phaseDag)
}

func (c *countingPeer) blobTrip() {
	c.blob++
	c.metrics.roundTrip(phaseBlob)
}

func (c *countingPeer) Leaves(ctx context.Context, req *wire.RequestLeaves) (*wire.ReplyLeaves, error) {
	c.dagTrip()
	return c.Peer.Leaves(ctx, req)
}

func (c *countingPeer) ProbeGenerations(ctx context.Context, req *wire.RequestGenerationProbe) (*wire.ReplyGenerationProbe, error) {
	c.dagTrip()
	return c.Peer.ProbeGenerations(ctx, req)
}

func (c *countingPeer) Fragment(ctx context.Context, req *wire.RequestFragment) (*wire.ReplyFragment, error) {
	c.dagTrip()
	return c.Peer.Fragment(ctx, req)
}

func (c *countingPeer) ProbeFragment(ctx context.Context, req *wire.RequestFragmentProbe) (*wire.ReplyFragmentProbe, error) {
	c.dagTrip()
	return c.Peer.ProbeFragment(ctx, req)
}

func (c *countingPeer) SendNodes(ctx context.Context, req *wire.SendNodes) (*wire.ReplySendNodes, error) {
	c.dagTrip()
	return c.Peer.SendNodes(ctx, req)
}

func (c *countingPeer) BlobPresence(ctx context.Context, req *wire.RequestBlobPresence) (*wire.ReplyBlobPresence, error) {
	c.blobTrip()
	return c.Peer.BlobPresence(ctx, req)
}

func (c *countingPeer) SendBlobs(ctx context.Context, req *wire.SendBlobs) (*wire.ReplySendBlobs, error) {
	c.blobTrip()
	return c.Peer.SendBlobs(ctx, req)
}

func (c *countingPeer) FetchBlobs(ctx context.Context, req *wire.RequestFetchBlobs) (*wire.ReplyFetchBlobs, error) {
	c.blobTrip()
	return c.Peer.FetchBlobs(ctx, req)
}
