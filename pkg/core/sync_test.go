package core

import (
	"context"
	"testing"

	"github.com/oneconcern/dagsync/internal/dagtest"
	"github.com/oneconcern/dagsync/internal/rand"
	"github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/repo"
	"github.com/oneconcern/dagsync/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sides yields the local repository and the remote peer of a session in some direction,
// for a transfer from source to destination
func sides(direction Direction, source, destination *repo.Repository) (*repo.Repository, *Responder) {
	if direction == DirectionPush {
		return source, NewResponder(destination)
	}
	return destination, NewResponder(source)
}

func TestSyncConvergence(t *testing.T) {
	for _, toPin := range []struct {
		Name      string
		Direction Direction
		Seed      int64
	}{
		{Name: "pull", Direction: DirectionPull, Seed: 1},
		{Name: "push", Direction: DirectionPush, Seed: 2},
		{Name: "pull, other graph", Direction: DirectionPull, Seed: 3},
		{Name: "push, other graph", Direction: DirectionPush, Seed: 4},
	} {
		testCase := toPin
		t.Run(testCase.Name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			origin, instance := testRepos(t)

			g := dagtest.New()
			g.Random(t, rand.New(testCase.Seed), 80, 3)
			load(t, origin, model.DagNumVersionControl, g, g.Nodes)
			load(t, instance, model.DagNumVersionControl, g, g.Nodes[:30])

			local, remote := sides(testCase.Direction, origin, instance)
			stats, err := syncAll(ctx, local, remote, testCase.Direction, nil)
			require.NoError(t, err)
			requireSameDag(t, origin, instance, model.DagNumVersionControl)

			assert.Equal(t, 50, stats.NodesTransferred)
			assert.GreaterOrEqual(t, stats.RoundTrips, MinRoundTrips)
			assert.Equal(t, stats.BlobsReferenced, stats.BlobsTransferred+stats.BlobsPresent)
			assert.Equal(t, 50, stats.BlobsTransferred)

			// synchronizing again is a no-op
			stats, err = syncAll(ctx, local, remote, testCase.Direction, nil)
			require.NoError(t, err)
			assert.Zero(t, stats.NodesTransferred)
			assert.Zero(t, stats.BlobsTransferred)
		})
	}
}

func TestSyncDivergedHistories(t *testing.T) {
	ctx := context.Background()
	origin, instance := testRepos(t)

	g := dagtest.New()
	base := g.Chain(t, 6, nil)
	load(t, origin, model.DagNumVersionControl, g, base)
	load(t, instance, model.DagNumVersionControl, g, base)

	ours := g.Chain(t, 4, base[5])
	theirs := g.Chain(t, 3, base[3])
	load(t, origin, model.DagNumVersionControl, g, ours)
	load(t, instance, model.DagNumVersionControl, g, theirs)

	_, err := Pull(ctx, instance, NewResponder(origin))
	require.NoError(t, err)
	_, err = Push(ctx, instance, NewResponder(origin))
	require.NoError(t, err)

	requireSameDag(t, origin, instance, model.DagNumVersionControl)
	assert.Equal(t, 13, count(t, origin, model.DagNumVersionControl))
	assert.ElementsMatch(t, model.NodeIDs{ours[3].ID, theirs[2].ID}, leaves(t, origin, model.DagNumVersionControl))
}

func TestHintAccuracy(t *testing.T) {
	type scenario struct {
		Name       string
		Margin     int64
		Delta      int64
		Untrusted  bool
		RoundTrips int
		Touched    int
		Deepenings int
	}

	scenarios := []scenario{
		{Name: "accurate hint", Margin: 0, RoundTrips: MinRoundTrips, Touched: 5},
		{Name: "accurate hint with margin", Margin: 1, RoundTrips: MinRoundTrips, Touched: 6},
		{Name: "off by one beyond margin", Margin: 0, Delta: 1, RoundTrips: MinRoundTrips + 1, Deepenings: 1},
		{Name: "off by one within margin", Margin: 1, Delta: 1, RoundTrips: MinRoundTrips, Touched: 5},
		{Name: "untrusted hint", Margin: 1, Untrusted: true, RoundTrips: MinRoundTrips, Touched: 10},
	}

	for _, direction := range []Direction{DirectionPull, DirectionPush} {
		for _, toPin := range scenarios {
			testCase := toPin
			dir := direction
			t.Run(dir.String()+"/"+testCase.Name, func(t *testing.T) {
				t.Parallel()
				ctx := context.Background()
				origin, instance := testRepos(t)

				g := dagtest.New()
				chain := g.Chain(t, 10, nil)
				load(t, origin, model.DagNumVersionControl, g, chain)
				load(t, instance, model.DagNumVersionControl, g, chain[:5])
				if testCase.Untrusted {
					// a node the source never heard about
					extra := g.Add(t, chain[4])
					load(t, instance, model.DagNumVersionControl, g, []*model.Node{extra})
				}

				local, responder := sides(dir, origin, instance)
				var remote wire.Peer = responder
				if testCase.Delta != 0 {
					remote = &perturbingPeer{Peer: responder, direction: dir, delta: testCase.Delta}
				}

				stats, err := syncAll(ctx, local, remote, dir, []Option{WithGenerationMargin(testCase.Margin)})
				require.NoError(t, err)

				assert.Equal(t, testCase.RoundTrips, stats.RoundTrips)
				assert.Equal(t, testCase.RoundTrips, stats.DagRoundTrips[model.DagNumVersionControl])
				assert.Equal(t, testCase.Deepenings, stats.Deepenings)
				if testCase.Touched > 0 {
					assert.Equal(t, testCase.Touched, stats.DagNodesTouched[model.DagNumVersionControl])
				}
				assert.Equal(t, 5, stats.NodesTransferred)

				_, err = instance.Verify(ctx, model.DagNumVersionControl)
				require.NoError(t, err)
				assert.Contains(t, leaves(t, instance, model.DagNumVersionControl), chain[9].ID)
			})
		}
	}
}

func TestPullFiveOnFive(t *testing.T) {
	ctx := context.Background()
	origin, instance := testRepos(t)

	g := dagtest.New()
	chain := g.Chain(t, 10, nil)
	load(t, origin, model.DagNumVersionControl, g, chain)
	load(t, instance, model.DagNumVersionControl, g, chain[:5])

	stats, err := Pull(ctx, instance, NewResponder(origin))
	require.NoError(t, err)

	assert.Equal(t, MinRoundTrips, stats.RoundTrips)
	assert.Equal(t, 6, stats.DagNodesTouched[model.DagNumVersionControl])
	assert.Equal(t, 5, stats.NodesTransferred)
	assert.Equal(t, 5, stats.BlobsReferenced)
	assert.Equal(t, 5, stats.BlobsTransferred)
	assert.Zero(t, stats.BlobsPresent)
	assert.Zero(t, stats.Deepenings)

	requireSameDag(t, origin, instance, model.DagNumVersionControl)
	assert.Equal(t, model.NodeIDs{chain[9].ID}, leaves(t, instance, model.DagNumVersionControl))
}

func TestHardwiredTemplateExclusion(t *testing.T) {
	ctx := context.Background()
	origin, instance := testRepos(t)
	template := model.NewDagNum(model.DagTypeVersionControl, 7, model.FlagHardwiredTemplate)

	g := dagtest.New()
	load(t, origin, model.DagNumVersionControl, g, g.Chain(t, 3, nil))
	load(t, origin, template, g, g.Chain(t, 2, nil))
	load(t, origin, model.DagNumTesting, g, g.Chain(t, 2, nil))

	for _, direction := range []Direction{DirectionPull, DirectionPush} {
		local, remote := sides(direction, origin, instance)
		session, err := Begin(ctx, local, remote, direction)
		require.NoError(t, err)
		assert.Equal(t, model.DagNums{model.DagNumVersionControl, model.DagNumTesting}, session.Available())

		err = session.Add(template)
		require.ErrorIs(t, err, status.ErrUnsupportedDag)
		var unsupported *UnsupportedDagError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, template, unsupported.DagNum)
		require.NoError(t, session.Abort())
	}

	_, err := Pull(ctx, instance, NewResponder(origin))
	require.NoError(t, err)
	dagnums, err := instance.ListDagNums(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DagNums{model.DagNumVersionControl, model.DagNumTesting}, dagnums)

	// the responder refuses templates too
	_, err = NewResponder(origin).Leaves(ctx, &wire.RequestLeaves{DagNum: template})
	require.ErrorIs(t, err, status.ErrUnsupportedDag)
}

func TestDagNumFilter(t *testing.T) {
	ctx := context.Background()
	origin, instance := testRepos(t)

	g := dagtest.New()
	load(t, origin, model.DagNumVersionControl, g, g.Chain(t, 3, nil))
	load(t, origin, model.DagNumTesting, g, g.Chain(t, 2, nil))

	stats, err := Pull(ctx, instance, NewResponder(origin), WithDagNumFilter(model.DagNumTesting))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NodesTransferred)
	assert.Len(t, stats.DagNodesTouched, 1)

	dagnums, err := instance.ListDagNums(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DagNums{model.DagNumTesting}, dagnums)

	session, err := Begin(ctx, instance, NewResponder(origin), DirectionPull, WithDagNumFilter(model.DagNumTesting))
	require.NoError(t, err)
	var unsupported *UnsupportedDagError
	require.ErrorAs(t, session.Add(model.DagNumVersionControl), &unsupported)
}

func TestSyncRetriesInterruptedBlobTransfer(t *testing.T) {
	for _, toPin := range []struct {
		Name      string
		Direction Direction
	}{
		{Name: "pull", Direction: DirectionPull},
		{Name: "push", Direction: DirectionPush},
	} {
		testCase := toPin
		t.Run(testCase.Name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			origin, instance := testRepos(t)

			g := dagtest.New()
			load(t, origin, model.DagNumVersionControl, g, g.Chain(t, 5, nil))

			local, responder := sides(testCase.Direction, origin, instance)
			remote := &flakyBlobPeer{Peer: responder}

			_, err := syncAll(ctx, local, remote, testCase.Direction, nil)
			require.ErrorIs(t, err, errFlaky)
			assert.Zero(t, count(t, instance, model.DagNumVersionControl))

			stats, err := syncAll(ctx, local, remote, testCase.Direction, nil)
			require.NoError(t, err)
			assert.Equal(t, 5, stats.NodesTransferred)
			requireSameDag(t, origin, instance, model.DagNumVersionControl)
		})
	}
}
