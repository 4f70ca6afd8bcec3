package core

import (
	"context"

	"github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/dag"
	"github.com/oneconcern/dagsync/pkg/dlogger"
	"github.com/oneconcern/dagsync/pkg/fragment"
	"github.com/oneconcern/dagsync/pkg/hint"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/repo"
	"github.com/oneconcern/dagsync/pkg/wire"
	"go.uber.org/zap"
)

var _ wire.Peer = &Responder{}

// Responder serves the requests of a remote sync session over a local repository
type Responder struct {
	repo    *repo.Repository
	l       *zap.Logger
	metrics *Metrics
}

// ResponderOption configures a Responder
type ResponderOption func(*Responder)

// ResponderLogger sets the logger of the responder
func ResponderLogger(l *zap.Logger) ResponderOption {
	return func(r *Responder) {
		r.l = dlogger.OrNop(l)
	}
}

// ResponderMetrics collects metrics about served requests
func ResponderMetrics(m *Metrics) ResponderOption {
	return func(r *Responder) {
		r.metrics = m
	}
}

// NewResponder serves a repository
func NewResponder(r *repo.Repository, opts ...ResponderOption) *Responder {
	res := &Responder{
		repo: r,
		l:    r.Logger(),
	}
	for _, apply := range opts {
		apply(res)
	}
	return res
}

// Describe presents the repository. A request with no identity is accepted, for clones.
func (r *Responder) Describe(ctx context.Context, req *wire.RequestDescribe) (res *wire.ReplyDescribe, err error) {
	defer func() { r.metrics.request("describe", err) }()

	desc := r.repo.Descriptor()
	if req.Version != wire.ProtocolVersion {
		return nil, status.ErrProtocol.WrapMessage("unsupported protocol version %q", req.Version)
	}
	if (req.RepoID != "" || req.AdminID != "") && (req.RepoID != desc.RepoID || req.AdminID != desc.AdminID) {
		return nil, status.ErrUnrelatedRepo.WrapMessage("repository %s does not serve %s", desc.RepoID, req.RepoID)
	}
	dagnums, err := r.repo.ListDagNums(ctx)
	if err != nil {
		return nil, err
	}
	return &wire.ReplyDescribe{
		Name:       desc.Name,
		RepoID:     desc.RepoID,
		AdminID:    desc.AdminID,
		InstanceID: desc.InstanceID,
		Version:    wire.ProtocolVersion,
		DagNums:    dagnums.Syncable(),
	}, nil
}

// Resolve an id prefix
func (r *Responder) Resolve(ctx context.Context, req *wire.RequestResolve) (res *wire.ReplyResolve, err error) {
	defer func() { r.metrics.request("resolve", err) }()

	store, err := r.store(req.DagNum)
	if err != nil {
		return nil, err
	}
	id, err := store.Resolve(ctx, req.Prefix)
	if err != nil {
		return nil, err
	}
	node, err := store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return &wire.ReplyResolve{DagNum: req.DagNum, ID: node.ID, Generation: node.Generation}, nil
}

// Leaves of a dag, with their generations
func (r *Responder) Leaves(ctx context.Context, req *wire.RequestLeaves) (res *wire.ReplyLeaves, err error) {
	defer func() { r.metrics.request("leaves", err) }()

	store, err := r.store(req.DagNum)
	if err != nil {
		return nil, err
	}
	leaves, err := leavesWithGenerations(ctx, store)
	if err != nil {
		return nil, err
	}
	return &wire.ReplyLeaves{DagNum: req.DagNum, Leaves: leaves}, nil
}

// ProbeGenerations reports the generation of nodes, or an untrusted hint for unknown nodes
func (r *Responder) ProbeGenerations(ctx context.Context, req *wire.RequestGenerationProbe) (res *wire.ReplyGenerationProbe, err error) {
	defer func() { r.metrics.request("probe-generations", err) }()

	store, err := r.store(req.DagNum)
	if err != nil {
		return nil, err
	}
	gens, err := dag.Generations(ctx, store, req.IDs)
	if err != nil {
		return nil, err
	}
	res = &wire.ReplyGenerationProbe{DagNum: req.DagNum, Hints: make([]wire.Hint, 0, len(req.IDs))}
	for _, id := range req.IDs {
		h := model.UntrustedGeneration()
		if g, ok := gens[id]; ok {
			h = model.KnownGeneration(g)
		}
		res.Hints = append(res.Hints, wire.NewHint(id, h))
	}
	return res, nil
}

// Fragment grows a fragment from seeds, within a bound
func (r *Responder) Fragment(ctx context.Context, req *wire.RequestFragment) (res *wire.ReplyFragment, err error) {
	defer func() { r.metrics.request("fragment", err) }()

	store, err := r.store(req.DagNum)
	if err != nil {
		return nil, err
	}
	bound := hint.Bound(req.Bound)
	if bound < 1 && !bound.IsUnbounded() {
		return nil, status.ErrProtocol.WrapMessage("invalid fragment bound %d", req.Bound)
	}

	desc := r.repo.Descriptor()
	f := fragment.New(req.DagNum, desc.RepoID, desc.AdminID)
	if err := f.Grow(ctx, store, req.Seeds, bound); err != nil {
		return nil, err
	}
	r.l.Debug("fragment served",
		zap.Stringer("dagnum", req.DagNum),
		zap.Int("seeds", len(req.Seeds)),
		zap.Stringer("bound", bound),
		zap.Int("members", f.Len()),
	)
	return &wire.ReplyFragment{
		DagNum:  req.DagNum,
		RepoID:  desc.RepoID,
		AdminID: desc.AdminID,
		Members: f.Members(),
		Fringe:  f.Fringe(),
	}, nil
}

// ProbeFragment reports which nodes are present
func (r *Responder) ProbeFragment(ctx context.Context, req *wire.RequestFragmentProbe) (res *wire.ReplyFragmentProbe, err error) {
	defer func() { r.metrics.request("probe-fragment", err) }()

	store, err := r.store(req.DagNum)
	if err != nil {
		return nil, err
	}
	res = &wire.ReplyFragmentProbe{DagNum: req.DagNum}
	for _, id := range req.IDs {
		has, err := store.Has(ctx, id)
		if err != nil {
			return nil, err
		}
		if has {
			res.Present = append(res.Present, id)
		}
	}
	return res, nil
}

// SendNodes stores nodes ancestors first, then verifies the dag.
//
// Storage is not interrupted when the request is cancelled. Concurrent requests on the same dag
// are serialized.
func (r *Responder) SendNodes(ctx context.Context, req *wire.SendNodes) (res *wire.ReplySendNodes, err error) {
	defer func() { r.metrics.request("send-nodes", err) }()

	store, err := r.store(req.DagNum)
	if err != nil {
		return nil, err
	}
	for _, node := range req.Nodes {
		if err := node.Verify(); err != nil {
			return nil, err
		}
	}

	storeCtx := context.WithoutCancel(ctx)
	unlock := r.repo.Lock(req.DagNum)
	defer unlock()

	stored, err := dag.StoreAncestorFirst(storeCtx, store, req.Nodes)
	if err != nil {
		return nil, err
	}
	report, err := dag.Verify(storeCtx, store)
	if err != nil {
		return nil, err
	}
	r.l.Debug("nodes received", zap.Stringer("dagnum", req.DagNum), zap.Int("stored", stored), zap.Int("count", report.Nodes))
	return &wire.ReplySendNodes{DagNum: req.DagNum, Stored: stored, Count: report.Nodes}, nil
}

// BlobPresence reports which blobs are present
func (r *Responder) BlobPresence(ctx context.Context, req *wire.RequestBlobPresence) (res *wire.ReplyBlobPresence, err error) {
	defer func() { r.metrics.request("blob-presence", err) }()

	presence, err := r.repo.Blobs().Presence(ctx, req.IDs)
	if err != nil {
		return nil, err
	}
	res = &wire.ReplyBlobPresence{}
	for _, id := range req.IDs {
		if presence[id] {
			res.Present = append(res.Present, id)
		}
	}
	return res, nil
}

// SendBlobs stores blobs. Blobs not matching their id are rejected.
func (r *Responder) SendBlobs(ctx context.Context, req *wire.SendBlobs) (res *wire.ReplySendBlobs, err error) {
	defer func() { r.metrics.request("send-blobs", err) }()

	blobs := make(map[model.BlobID][]byte, len(req.Blobs))
	for _, b := range req.Blobs {
		blobs[b.ID] = b.Data
	}
	if err := r.repo.Blobs().PutMany(ctx, blobs); err != nil {
		return nil, err
	}
	return &wire.ReplySendBlobs{Stored: len(blobs)}, nil
}

// FetchBlobs reads blobs
func (r *Responder) FetchBlobs(ctx context.Context, req *wire.RequestFetchBlobs) (res *wire.ReplyFetchBlobs, err error) {
	defer func() { r.metrics.request("fetch-blobs", err) }()

	data, err := r.repo.Blobs().GetMany(ctx, req.IDs)
	if err != nil {
		return nil, err
	}
	res = &wire.ReplyFetchBlobs{Blobs: make([]wire.Blob, 0, len(req.IDs))}
	for _, id := range req.IDs {
		res.Blobs = append(res.Blobs, wire.Blob{ID: id, Data: data[id]})
	}
	return res, nil
}

func (r *Responder) store(dagnum model.DagNum) (dag.Store, error) {
	if err := checkSyncable(dagnum); err != nil {
		return nil, err
	}
	return r.repo.Store(dagnum)
}
