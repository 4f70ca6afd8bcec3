package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oneconcern/dagsync/internal/dagtest"
	"github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	origin, instance := testRepos(t)

	g := dagtest.New()
	load(t, origin, model.DagNumVersionControl, g, g.Chain(t, 4, nil))

	t.Run("commit with no dag", func(t *testing.T) {
		session, err := Begin(ctx, instance, NewResponder(origin), DirectionPull)
		require.NoError(t, err)
		assert.Equal(t, StateBegun, session.State())

		stats, err := session.Commit(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.RoundTrips)
		assert.Equal(t, StateCommitted, session.State())

		_, err = session.Commit(ctx)
		require.ErrorIs(t, err, status.ErrSessionClosed)
		require.ErrorIs(t, session.Abort(), status.ErrSessionClosed)
		require.ErrorIs(t, session.Add(model.DagNumVersionControl), status.ErrSessionClosed)
	})

	t.Run("abort before commit", func(t *testing.T) {
		session, err := Begin(ctx, instance, NewResponder(origin), DirectionPull)
		require.NoError(t, err)
		require.NoError(t, session.Add(model.DagNumVersionControl))
		assert.Equal(t, StateAdded, session.State())

		require.NoError(t, session.Abort())
		assert.Equal(t, StateAborted, session.State())

		_, err = session.Commit(ctx)
		require.ErrorIs(t, err, status.ErrSessionClosed)
		assert.Zero(t, count(t, instance, model.DagNumVersionControl))
	})

	t.Run("abort during commit", func(t *testing.T) {
		var session *Session
		remote := &hookPeer{
			Peer: NewResponder(origin),
			beforeLeaves: func() {
				require.NoError(t, session.Abort())
			},
		}
		var err error
		session, err = Begin(ctx, instance, remote, DirectionPull)
		require.NoError(t, err)
		require.NoError(t, session.Add(model.DagNumVersionControl))

		_, err = session.Commit(ctx)
		require.ErrorIs(t, err, status.ErrInterrupted)
		assert.Equal(t, StateAborted, session.State())
		assert.Zero(t, count(t, instance, model.DagNumVersionControl))
	})

	t.Run("failure reports dag and round trip", func(t *testing.T) {
		boom := errors.New("connection reset")
		remote := &hookPeer{
			Peer:            NewResponder(instance),
			beforeSendNodes: func() error { return boom },
		}
		session, err := Begin(ctx, origin, remote, DirectionPush)
		require.NoError(t, err)
		require.NoError(t, session.Add(model.DagNumVersionControl))

		_, err = session.Commit(ctx)
		require.ErrorIs(t, err, boom)
		var syncErr *SyncError
		require.ErrorAs(t, err, &syncErr)
		assert.Equal(t, model.DagNumVersionControl, syncErr.DagNum)
		assert.Equal(t, MinRoundTrips, syncErr.Round)
		assert.Equal(t, "send nodes", syncErr.Step)
		assert.Equal(t, StateAborted, session.State())
		assert.Zero(t, count(t, instance, model.DagNumVersionControl))
	})
}

func TestUnrelatedRepositories(t *testing.T) {
	ctx := context.Background()
	origin, _ := testRepos(t)
	stranger, err := repo.Init("stranger", "stranger", repo.InMemory())
	require.NoError(t, err)
	defer func() { _ = stranger.Close() }()

	for _, direction := range []Direction{DirectionPull, DirectionPush} {
		_, err = Begin(ctx, stranger, NewResponder(origin), direction)
		require.ErrorIs(t, err, status.ErrUnrelatedRepo)
	}

	_, err = Begin(ctx, origin, NewResponder(origin), Direction(0))
	require.ErrorIs(t, err, status.ErrProtocol)
}

func TestAddRev(t *testing.T) {
	ctx := context.Background()
	origin, instance := testRepos(t)

	g := dagtest.New()
	chain := g.Chain(t, 10, nil)
	branch := g.Chain(t, 2, chain[3])
	load(t, origin, model.DagNumVersionControl, g, chain)
	load(t, origin, model.DagNumVersionControl, g, branch)

	t.Run("pull a revision", func(t *testing.T) {
		session, err := Begin(ctx, instance, NewResponder(origin), DirectionPull)
		require.NoError(t, err)
		require.NoError(t, session.AddRev(ctx, string(chain[6].ID[:10])))

		stats, err := session.Commit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, stats.NodesTransferred)
		assert.Equal(t, model.NodeIDs{chain[6].ID}, leaves(t, instance, model.DagNumVersionControl))
	})

	t.Run("push a revision", func(t *testing.T) {
		session, err := Begin(ctx, origin, NewResponder(instance), DirectionPush)
		require.NoError(t, err)
		rev := model.DagNumVersionControl.String() + ":" + string(branch[1].ID[:8])
		require.NoError(t, session.AddRev(ctx, rev))

		stats, err := session.Commit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.NodesTransferred)
		assert.ElementsMatch(t, model.NodeIDs{chain[6].ID, branch[1].ID}, leaves(t, instance, model.DagNumVersionControl))
	})

	t.Run("unknown revision", func(t *testing.T) {
		session, err := Begin(ctx, instance, NewResponder(origin), DirectionPull)
		require.NoError(t, err)
		err = session.AddRev(ctx, "0123456789abcdef")
		require.Error(t, err)
		assert.Equal(t, StateBegun, session.State())
	})

	t.Run("whole dag supersedes revisions", func(t *testing.T) {
		session, err := Begin(ctx, instance, NewResponder(origin), DirectionPull)
		require.NoError(t, err)
		require.NoError(t, session.AddRev(ctx, string(chain[7].ID)))
		require.NoError(t, session.Add(model.DagNumVersionControl))
		require.NoError(t, session.AddRev(ctx, string(chain[8].ID)))

		_, err = session.Commit(ctx)
		require.NoError(t, err)
		requireSameDag(t, origin, instance, model.DagNumVersionControl)
	})
}

func TestParseRevSpec(t *testing.T) {
	template := model.NewDagNum(model.DagTypeVersionControl, 1, model.FlagHardwiredTemplate)

	for _, toPin := range []struct {
		Name   string
		Spec   string
		DagNum model.DagNum
		Prefix string
		Err    error
	}{
		{Name: "prefix only", Spec: "ABCDEF01", DagNum: model.DagNumVersionControl, Prefix: "abcdef01"},
		{Name: "dagnum and prefix", Spec: model.DagNumTesting.String() + ":0a1b", DagNum: model.DagNumTesting, Prefix: "0a1b"},
		{Name: "template dagnum parses", Spec: template.String() + ":0a1b", DagNum: template, Prefix: "0a1b"},
		{Name: "short prefix", Spec: "abc", Err: status.ErrInvalidRevSpec},
		{Name: "not hex", Spec: "zzzzzz", Err: status.ErrInvalidRevSpec},
		{Name: "empty", Spec: "", Err: status.ErrInvalidRevSpec},
		{Name: "bad dagnum", Spec: "xyz:abcd", Err: status.ErrInvalidRevSpec},
		{Name: "unknown dag type", Spec: "000000000000000f:abcd", Err: status.ErrInvalidRevSpec},
	} {
		testCase := toPin
		t.Run(testCase.Name, func(t *testing.T) {
			dagnum, prefix, err := ParseRevSpec(testCase.Spec)
			if testCase.Err != nil {
				require.ErrorIs(t, err, testCase.Err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.DagNum, dagnum)
			assert.Equal(t, testCase.Prefix, prefix)
		})
	}
}

func TestClone(t *testing.T) {
	ctx := context.Background()
	origin, _ := testRepos(t)

	g := dagtest.New()
	load(t, origin, model.DagNumVersionControl, g, g.Chain(t, 5, nil))
	load(t, origin, model.NewDagNum(model.DagTypeTesting, 0, model.FlagHardwiredTemplate), g, g.Chain(t, 2, nil))

	path := filepath.Join(t.TempDir(), "clone")
	clone, stats, err := Clone(ctx, NewResponder(origin), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.NodesTransferred)
	assert.True(t, origin.Descriptor().IsRelated(clone.Descriptor()))
	require.NoError(t, clone.Close())

	reopened, err := repo.Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	requireSameDag(t, origin, reopened, model.DagNumVersionControl)

	dagnums, err := reopened.ListDagNums(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DagNums{model.DagNumVersionControl}, dagnums)

	_, _, err = Clone(ctx, NewResponder(origin), path, nil)
	require.ErrorIs(t, err, repo.ErrRepoExists)
}
