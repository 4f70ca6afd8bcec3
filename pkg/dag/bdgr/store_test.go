package bdgr

import (
	"context"
	"sync"
	"testing"

	"github.com/oneconcern/dagsync/internal/dagtest"
	"github.com/oneconcern/dagsync/internal/rand"
	"github.com/oneconcern/dagsync/pkg/dag"
	"github.com/oneconcern/dagsync/pkg/dag/status"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t testing.TB) *DB {
	db, err := Open("", InMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStoreAndLeaves(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s, err := db.Store(model.DagNumVersionControl)
	require.NoError(t, err)

	g := dagtest.New()
	root := g.Add(t)
	left := g.Add(t, root)
	right := g.Add(t, root)

	leaves, err := s.Leaves(ctx)
	require.NoError(t, err)
	assert.Empty(t, leaves)

	for _, n := range g.Nodes {
		require.NoError(t, s.Store(ctx, n))
	}
	leaves, err = s.Leaves(ctx)
	require.NoError(t, err)
	expected := model.NodeIDs{left.ID, right.ID}
	if expected[0] > expected[1] {
		expected[0], expected[1] = expected[1], expected[0]
	}
	assert.Equal(t, expected, leaves)

	merge := g.Add(t, left, right)
	require.NoError(t, s.Store(ctx, merge))
	leaves, err = s.Leaves(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.NodeIDs{merge.ID}, leaves)

	// idempotent
	require.NoError(t, s.Store(ctx, merge))
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	fetched, err := s.Fetch(ctx, merge.ID)
	require.NoError(t, err)
	assert.True(t, merge.Equal(fetched))

	has, err := s.Has(ctx, merge.ID)
	require.NoError(t, err)
	assert.True(t, has)

	report, err := dag.Verify(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, dag.VerifyReport{DagNum: model.DagNumVersionControl, Nodes: 4, Leaves: 1, Roots: 1, MaxGeneration: 3}, report)
}

func TestStoreRejectsSparseGraph(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s, err := db.Store(model.DagNumVersionControl)
	require.NoError(t, err)

	g := dagtest.New()
	chain := g.Chain(t, 3, nil)

	err = s.Store(ctx, chain[1])
	require.Error(t, err)
	require.ErrorIs(t, err, status.ErrSparseGraph)
	var sparse *dag.SparseGraphError
	require.ErrorAs(t, err, &sparse)
	assert.Equal(t, model.NodeIDs{chain[0].ID}, sparse.Missing)
	assert.Equal(t, chain[1].ID, sparse.NodeID)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = s.Fetch(ctx, chain[1].ID)
	require.ErrorIs(t, err, status.ErrNotFound)
	var notFound *dag.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.True(t, dag.IsNotFound(err))
}

func TestStoreRejectsInvalidNodes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s, err := db.Store(model.DagNumVersionControl)
	require.NoError(t, err)

	unfrozen, err := model.NewNode()
	require.NoError(t, err)
	require.ErrorIs(t, s.Store(ctx, unfrozen), status.ErrInvalidNode)

	g := dagtest.New()
	chain := g.Chain(t, 2, nil)
	require.NoError(t, s.Store(ctx, chain[0]))

	// a forged node claiming a generation gap, with a correct id
	forged, err := model.NewNode(chain[0])
	require.NoError(t, err)
	forged.Generation = 5
	require.NoError(t, forged.Freeze())
	require.ErrorIs(t, s.Store(ctx, forged), status.ErrInvalidNode)
}

func TestDagsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	vc, err := db.Store(model.DagNumVersionControl)
	require.NoError(t, err)
	testing1, err := db.Store(model.DagNumTesting)
	require.NoError(t, err)
	template := model.NewDagNum(model.DagTypeTesting, 7, model.FlagHardwiredTemplate)
	require.NoError(t, db.CreateDag(ctx, template))

	g := dagtest.New()
	chain := g.Chain(t, 2, nil)
	require.NoError(t, vc.Store(ctx, chain[0]))
	require.NoError(t, vc.Store(ctx, chain[1]))

	has, err := testing1.Has(ctx, chain[0].ID)
	require.NoError(t, err)
	assert.False(t, has)
	require.ErrorIs(t, testing1.Store(ctx, chain[1]), status.ErrSparseGraph)

	dagnums, err := db.ListDagNums(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, model.DagNums{model.DagNumVersionControl, template}, dagnums)

	_, err = db.Store(model.DagNum(0x9))
	require.ErrorIs(t, err, model.ErrUnsupportedDag)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s, err := db.Store(model.DagNumVersionControl)
	require.NoError(t, err)

	g := dagtest.New()
	g.Random(t, rand.New(1), 40, 2)
	_, err = dag.StoreAncestorFirst(ctx, s, g.Nodes)
	require.NoError(t, err)

	target := g.Nodes[17]
	id, err := s.Resolve(ctx, string(target.ID))
	require.NoError(t, err)
	assert.Equal(t, target.ID, id)

	id, err = s.Resolve(ctx, string(target.ID[:model.ShortIDSize]))
	require.NoError(t, err)
	assert.Equal(t, target.ID, id)

	// with 40 nodes, some single hex digit is necessarily shared
	prefixes := make(map[byte]int)
	for _, n := range g.Nodes {
		prefixes[n.ID[0]]++
	}
	for p, c := range prefixes {
		if c > 1 {
			_, err = s.Resolve(ctx, string(p))
			require.ErrorIs(t, err, status.ErrAmbiguous)
			break
		}
	}

	_, err = s.Resolve(ctx, "")
	require.ErrorIs(t, err, status.ErrNotFound)
}

func TestConcurrentStores(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s, err := db.Store(model.DagNumVersionControl)
	require.NoError(t, err)

	g := dagtest.New()
	root := g.Add(t)
	require.NoError(t, s.Store(ctx, root))

	children := make([]*model.Node, 20)
	for i := range children {
		children[i] = g.Add(t, root)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(children))
	for _, child := range children {
		wg.Add(1)
		go func(n *model.Node) {
			defer wg.Done()
			errs <- s.Store(ctx, n)
		}(child)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 21, count)

	leaves, err := s.Leaves(ctx)
	require.NoError(t, err)
	assert.Len(t, leaves, 20)

	_, err = dag.Verify(ctx, s)
	require.NoError(t, err)
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	g := dagtest.New()
	chain := g.Chain(t, 5, nil)

	db, err := Open(dir)
	require.NoError(t, err)
	s, err := db.Store(model.DagNumVersionControl)
	require.NoError(t, err)
	_, err = dag.StoreAncestorFirst(ctx, s, chain)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	s, err = db.Store(model.DagNumVersionControl)
	require.NoError(t, err)

	leaves, err := s.Leaves(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.NodeIDs{chain[4].ID}, leaves)
	_, err = dag.Verify(ctx, s)
	require.NoError(t, err)
}
