package model

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	blake2b "github.com/minio/blake2b-simd"
)

const (
	// digestSize is the size in bytes of a blake2b-256 digest
	digestSize = 32

	// IDSize is the length of the hex representation of a node or blob id (blake2b-256)
	IDSize = 2 * digestSize

	// ShortIDSize is the length of the abbreviated form of an id, for display
	ShortIDSize = 12

	nodeEncodingVersion = "dagnode/1"
)

// NodeID is the content hash of a frozen DAG node, in lowercase hex
type NodeID string

func (id NodeID) String() string {
	return string(id)
}

// Short yields an abbreviated form of the id
func (id NodeID) Short() string {
	if len(id) <= ShortIDSize {
		return string(id)
	}
	return string(id[:ShortIDSize])
}

// IsZero tells if the id is unset
func (id NodeID) IsZero() bool {
	return id == ""
}

// Validate the format of a node id
func (id NodeID) Validate() error {
	if !isHexID(string(id)) {
		return ErrInvalidID.WrapMessage("node id %q", string(id))
	}
	return nil
}

// ParseNodeID parses the hex representation of a node id
func ParseNodeID(s string) (NodeID, error) {
	id := NodeID(strings.ToLower(strings.TrimSpace(s)))
	return id, id.Validate()
}

// NodeIDs is a sortable slice of node ids
type NodeIDs []NodeID

func (n NodeIDs) Len() int           { return len(n) }
func (n NodeIDs) Less(i, j int) bool { return n[i] < n[j] }
func (n NodeIDs) Swap(i, j int)      { n[i], n[j] = n[j], n[i] }

// Strings yields the ids as a slice of strings
func (n NodeIDs) Strings() []string {
	res := make([]string, len(n))
	for i, id := range n {
		res[i] = string(id)
	}
	return res
}

// Node is an immutable vertex in a history DAG.
//
// A node is built with its parents assigned, then frozen: freezing computes the id, after which
// the node must not be altered. The generation of a root is 1, otherwise it is one more than the
// highest generation among its parents.
type Node struct {
	ID         NodeID   `json:"id" yaml:"id" msgpack:"id"`
	Generation int64    `json:"generation" yaml:"generation" msgpack:"gen"`
	Parents    []NodeID `json:"parents,omitempty" yaml:"parents,omitempty" msgpack:"parents,omitempty"`
	Blobs      []BlobID `json:"blobs,omitempty" yaml:"blobs,omitempty" msgpack:"blobs,omitempty"`
}

// NewNode builds an unfrozen node from its parents, which must all be frozen.
//
// Duplicate parents are collapsed.
func NewNode(parents ...*Node) (*Node, error) {
	n := &Node{Generation: 1}
	seen := make(map[NodeID]struct{}, len(parents))
	for _, p := range parents {
		if p == nil || !p.IsFrozen() {
			return nil, ErrNotFrozen.WrapMessage("parent must be frozen before use")
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		n.Parents = append(n.Parents, p.ID)
		if p.Generation+1 > n.Generation {
			n.Generation = p.Generation + 1
		}
	}
	return n, nil
}

// AddBlob adds a reference to a blob on some unfrozen node
func (n *Node) AddBlob(blobs ...BlobID) error {
	if n.IsFrozen() {
		return ErrFrozen.WrapMessage("cannot reference blob on node %s", n.ID.Short())
	}
	for _, b := range blobs {
		if err := b.Validate(); err != nil {
			return err
		}
		if !n.HasBlob(b) {
			n.Blobs = append(n.Blobs, b)
		}
	}
	return nil
}

// Freeze computes the id of the node. A frozen node cannot be frozen again.
func (n *Node) Freeze() error {
	if n.IsFrozen() {
		return ErrFrozen.WrapMessage("node %s", n.ID.Short())
	}
	sort.Sort(NodeIDs(n.Parents))
	sort.Sort(BlobIDs(n.Blobs))
	n.ID = n.computeID()
	return nil
}

// IsFrozen tells if the node id has been computed
func (n *Node) IsFrozen() bool {
	return n != nil && !n.ID.IsZero()
}

// IsRoot tells if the node has no parent
func (n *Node) IsRoot() bool {
	return len(n.Parents) == 0
}

// HasParent tells if id is among the parents of this node
func (n *Node) HasParent(id NodeID) bool {
	for _, p := range n.Parents {
		if p == id {
			return true
		}
	}
	return false
}

// HasBlob tells if this node references the blob
func (n *Node) HasBlob(id BlobID) bool {
	for _, b := range n.Blobs {
		if b == id {
			return true
		}
	}
	return false
}

// Clone yields an independent copy of the node
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		ID:         n.ID,
		Generation: n.Generation,
	}
	if len(n.Parents) > 0 {
		c.Parents = append(make([]NodeID, 0, len(n.Parents)), n.Parents...)
	}
	if len(n.Blobs) > 0 {
		c.Blobs = append(make([]BlobID, 0, len(n.Blobs)), n.Blobs...)
	}
	return c
}

// Equal tells if two nodes carry the same content
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.ID != other.ID || n.Generation != other.Generation ||
		len(n.Parents) != len(other.Parents) || len(n.Blobs) != len(other.Blobs) {
		return false
	}
	for i := range n.Parents {
		if n.Parents[i] != other.Parents[i] {
			return false
		}
	}
	for i := range n.Blobs {
		if n.Blobs[i] != other.Blobs[i] {
			return false
		}
	}
	return true
}

// Verify the intrinsic consistency of a frozen node: the id matches its content, parents are
// unique and the generation is compatible with the presence of parents.
//
// Verify does not check the generation against the parents' generations: this requires the store.
func (n *Node) Verify() error {
	if !n.IsFrozen() {
		return ErrNotFrozen
	}
	if err := n.ID.Validate(); err != nil {
		return err
	}
	if n.Generation < 1 {
		return ErrInvalidNode.WrapMessage("node %s has invalid generation %d", n.ID.Short(), n.Generation)
	}
	if n.IsRoot() != (n.Generation == 1) {
		return ErrInvalidNode.WrapMessage("node %s: generation %d does not match %d parents", n.ID.Short(), n.Generation, len(n.Parents))
	}
	if !sort.IsSorted(NodeIDs(n.Parents)) || !sort.IsSorted(BlobIDs(n.Blobs)) {
		return ErrInvalidNode.WrapMessage("node %s is not in canonical form", n.ID.Short())
	}
	for i, p := range n.Parents {
		if err := p.Validate(); err != nil {
			return err
		}
		if p == n.ID || (i > 0 && n.Parents[i-1] == p) {
			return ErrInvalidNode.WrapMessage("node %s has duplicate or self parent", n.ID.Short())
		}
	}
	for i, b := range n.Blobs {
		if err := b.Validate(); err != nil {
			return ErrInvalidNode.WrapMessage("node %s references an invalid blob: %v", n.ID.Short(), err)
		}
		if i > 0 && n.Blobs[i-1] == b {
			return ErrInvalidNode.WrapMessage("node %s references blob %s twice", n.ID.Short(), b.Short())
		}
	}
	if n.computeID() != n.ID {
		return ErrInvalidNode.WrapMessage("node %s does not match its content", n.ID.Short())
	}
	return nil
}

func (n *Node) String() string {
	return n.ID.Short() + "@" + strconv.FormatInt(n.Generation, 10)
}

func (n *Node) computeID() NodeID {
	var b strings.Builder
	b.WriteString(nodeEncodingVersion)
	b.WriteString("\ng:")
	b.WriteString(strconv.FormatInt(n.Generation, 10))
	for _, p := range n.Parents {
		b.WriteString("\np:")
		b.WriteString(string(p))
	}
	for _, blob := range n.Blobs {
		b.WriteString("\nb:")
		b.WriteString(string(blob))
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return NodeID(hex.EncodeToString(sum[:]))
}

// Nodes is a slice of nodes that sorts in ancestor-first order: by generation, then by id
type Nodes []*Node

func (n Nodes) Len() int      { return len(n) }
func (n Nodes) Swap(i, j int) { n[i], n[j] = n[j], n[i] }
func (n Nodes) Less(i, j int) bool {
	if n[i].Generation != n[j].Generation {
		return n[i].Generation < n[j].Generation
	}
	return n[i].ID < n[j].ID
}

// IDs yields the ids of the nodes, in the same order
func (n Nodes) IDs() NodeIDs {
	res := make(NodeIDs, len(n))
	for i, node := range n {
		res[i] = node.ID
	}
	return res
}

func isHexID(s string) bool {
	if len(s) != IDSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
