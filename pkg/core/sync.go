package core

import (
	"context"

	"github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/repo"
	"github.com/oneconcern/dagsync/pkg/wire"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Push all available dags of the local repository to the remote
func Push(ctx context.Context, local *repo.Repository, remote wire.Peer, opts ...Option) (*Stats, error) {
	return syncAll(ctx, local, remote, DirectionPush, opts)
}

// Pull all available dags of the remote into the local repository
func Pull(ctx context.Context, local *repo.Repository, remote wire.Peer, opts ...Option) (*Stats, error) {
	return syncAll(ctx, local, remote, DirectionPull, opts)
}

func syncAll(ctx context.Context, local *repo.Repository, remote wire.Peer, direction Direction, opts []Option) (*Stats, error) {
	session, err := Begin(ctx, local, remote, direction, opts...)
	if err != nil {
		return nil, err
	}
	for _, dagnum := range session.Available() {
		if err := session.Add(dagnum); err != nil {
			return nil, multierr.Append(err, session.Abort())
		}
	}
	return session.Commit(ctx)
}

// Clone the remote into a new repository at path, with the identity of the remote.
//
// On failure, the new repository is closed and left as is: its dags only hold complete ancestries.
func Clone(ctx context.Context, remote wire.Peer, path string, repoOpts []repo.Option, opts ...Option) (*repo.Repository, *Stats, error) {
	reply, err := remote.Describe(ctx, &wire.RequestDescribe{Version: wire.ProtocolVersion})
	if err != nil {
		return nil, nil, err
	}
	if reply.Version != wire.ProtocolVersion {
		return nil, nil, status.ErrProtocol.WrapMessage("remote speaks %q, expected %q", reply.Version, wire.ProtocolVersion)
	}

	options := append([]repo.Option{repo.Identity(reply.RepoID, reply.AdminID)}, repoOpts...)
	local, err := repo.Init(path, reply.Name, options...)
	if err != nil {
		return nil, nil, err
	}
	local.Logger().Info("cloning repository",
		zap.String("name", reply.Name),
		zap.String("repoID", reply.RepoID),
		zap.String("location", path),
	)

	stats, err := Pull(ctx, local, remote, opts...)
	if err != nil {
		return nil, nil, multierr.Append(err, local.Close())
	}
	return local, stats, nil
}
