// Package dagtest builds DAG fixtures for tests
package dagtest

import (
	"fmt"
	mrand "math/rand"
	"testing"

	"github.com/oneconcern/dagsync/internal/rand"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/stretchr/testify/require"
)

// Graph accumulates frozen nodes, in ancestor-first order, along with the content of the blobs they reference
type Graph struct {
	Nodes []*model.Node
	Blobs map[model.BlobID][]byte
}

// New empty graph
func New() *Graph {
	return &Graph{Blobs: make(map[model.BlobID][]byte)}
}

// Add a node with a fresh random blob
func (g *Graph) Add(t testing.TB, parents ...*model.Node) *model.Node {
	t.Helper()

	node, err := model.NewNode(parents...)
	require.NoError(t, err)

	payload := []byte(fmt.Sprintf("changeset %d: %s", len(g.Nodes), rand.LetterString(16)))
	id := model.NewBlobID(payload)
	g.Blobs[id] = payload
	require.NoError(t, node.AddBlob(id))
	require.NoError(t, node.Freeze())

	g.Nodes = append(g.Nodes, node)
	return node
}

// Chain appends a linear chain of n nodes on top of from (nil for a new root) and returns the chain
func (g *Graph) Chain(t testing.TB, n int, from *model.Node) []*model.Node {
	t.Helper()

	chain := make([]*model.Node, 0, n)
	tip := from
	for i := 0; i < n; i++ {
		if tip == nil {
			tip = g.Add(t)
		} else {
			tip = g.Add(t, tip)
		}
		chain = append(chain, tip)
	}
	return chain
}

// Random appends n nodes with random parents drawn among existing nodes, with at most maxParents
// parents each. The first node is a root if the graph is empty.
func (g *Graph) Random(t testing.TB, rng *mrand.Rand, n, maxParents int) {
	t.Helper()

	for i := 0; i < n; i++ {
		if len(g.Nodes) == 0 || rng.Intn(20) == 0 {
			g.Add(t)
			continue
		}
		k := 1 + rng.Intn(maxParents)
		parents := make([]*model.Node, 0, k)
		for j := 0; j < k; j++ {
			// favor recent nodes to grow deep histories
			window := len(g.Nodes)
			if window > 8 && rng.Intn(4) != 0 {
				window = 8
			}
			parents = append(parents, g.Nodes[len(g.Nodes)-1-rng.Intn(window)])
		}
		g.Add(t, parents...)
	}
}

// Tips yields the nodes of the graph which are not parent of any other node
func (g *Graph) Tips() []*model.Node {
	referenced := make(map[model.NodeID]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		for _, p := range n.Parents {
			referenced[p] = struct{}{}
		}
	}
	var tips []*model.Node
	for _, n := range g.Nodes {
		if _, ok := referenced[n.ID]; !ok {
			tips = append(tips, n)
		}
	}
	return tips
}

// Index yields the nodes by id
func (g *Graph) Index() map[model.NodeID]*model.Node {
	idx := make(map[model.NodeID]*model.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		idx[n.ID] = n
	}
	return idx
}
