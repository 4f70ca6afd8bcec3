package wire

import "github.com/oneconcern/dagsync/pkg/model"

// ProtocolVersion is exchanged during the handshake
const ProtocolVersion = "dagsync/1"

// RequestDescribe opens a conversation: the caller presents the identity of its repository
type RequestDescribe struct {
	RepoID  string `msgpack:"repoID"`
	AdminID string `msgpack:"adminID"`
	Version string `msgpack:"version"`
}

// ReplyDescribe presents the responding repository and its DAGs, excluding hardwired templates
type ReplyDescribe struct {
	Name       string        `msgpack:"name"`
	RepoID     string        `msgpack:"repoID"`
	AdminID    string        `msgpack:"adminID"`
	InstanceID string        `msgpack:"instanceID"`
	Version    string        `msgpack:"version"`
	DagNums    model.DagNums `msgpack:"dagnums"`
}

// NodeGeneration pairs a node id with its generation
type NodeGeneration struct {
	ID         model.NodeID `msgpack:"id"`
	Generation int64        `msgpack:"gen"`
}

// RequestLeaves asks for the leaves of a DAG
type RequestLeaves struct {
	DagNum model.DagNum `msgpack:"dagnum"`
}

// ReplyLeaves lists the leaves of a DAG, with their generations
type ReplyLeaves struct {
	DagNum model.DagNum     `msgpack:"dagnum"`
	Leaves []NodeGeneration `msgpack:"leaves"`
}

// RequestGenerationProbe asks for the generations of a set of nodes
type RequestGenerationProbe struct {
	DagNum model.DagNum   `msgpack:"dagnum"`
	IDs    []model.NodeID `msgpack:"ids"`
}

// Hint is the wire form of a generation hint
type Hint struct {
	ID         model.NodeID `msgpack:"id"`
	Generation int64        `msgpack:"gen,omitempty"`
	Untrusted  bool         `msgpack:"untrusted,omitempty"`
}

// NewHint converts a generation hint to its wire form
func NewHint(id model.NodeID, h model.GenerationHint) Hint {
	g, ok := h.Generation()
	return Hint{ID: id, Generation: g, Untrusted: !ok}
}

// GenerationHint converts back from the wire form
func (h Hint) GenerationHint() model.GenerationHint {
	if h.Untrusted {
		return model.UntrustedGeneration()
	}
	return model.KnownGeneration(h.Generation)
}

// ReplyGenerationProbe answers a generation probe. Ids unknown to the responder are untrusted.
type ReplyGenerationProbe struct {
	DagNum model.DagNum `msgpack:"dagnum"`
	Hints  []Hint       `msgpack:"hints"`
}

// RequestFragment asks the responder to grow a fragment from seeds, with a bound (-1 for unbounded)
type RequestFragment struct {
	DagNum model.DagNum   `msgpack:"dagnum"`
	Seeds  []model.NodeID `msgpack:"seeds"`
	Bound  int64          `msgpack:"bound"`
}

// ReplyFragment carries a fragment: member nodes in ancestor-first order and fringe ids
type ReplyFragment struct {
	DagNum  model.DagNum   `msgpack:"dagnum"`
	RepoID  string         `msgpack:"repoID"`
	AdminID string         `msgpack:"adminID"`
	Members []*model.Node  `msgpack:"members"`
	Fringe  []model.NodeID `msgpack:"fringe"`
}

// RequestFragmentProbe asks which of a set of nodes are present
type RequestFragmentProbe struct {
	DagNum model.DagNum   `msgpack:"dagnum"`
	IDs    []model.NodeID `msgpack:"ids"`
}

// ReplyFragmentProbe lists the ids which are present, out of the probed ones
type ReplyFragmentProbe struct {
	DagNum  model.DagNum   `msgpack:"dagnum"`
	Present []model.NodeID `msgpack:"present"`
}

// SendNodes ships node bodies, in ancestor-first order
type SendNodes struct {
	DagNum model.DagNum  `msgpack:"dagnum"`
	Nodes  []*model.Node `msgpack:"nodes"`
}

// ReplySendNodes acknowledges stored nodes, after verification of the DAG
type ReplySendNodes struct {
	DagNum model.DagNum `msgpack:"dagnum"`
	Stored int          `msgpack:"stored"`
	Count  int          `msgpack:"count"`
}

// RequestBlobPresence asks which of a set of blobs are present
type RequestBlobPresence struct {
	IDs []model.BlobID `msgpack:"ids"`
}

// ReplyBlobPresence lists the blobs which are present, out of the probed ones
type ReplyBlobPresence struct {
	Present []model.BlobID `msgpack:"present"`
}

// Blob carries the content of a blob
type Blob struct {
	ID   model.BlobID `msgpack:"id"`
	Data []byte       `msgpack:"data"`
}

// SendBlobs ships blob contents
type SendBlobs struct {
	Blobs []Blob `msgpack:"blobs"`
}

// ReplySendBlobs acknowledges stored blobs
type ReplySendBlobs struct {
	Stored int `msgpack:"stored"`
}

// RequestFetchBlobs asks for blob contents
type RequestFetchBlobs struct {
	IDs []model.BlobID `msgpack:"ids"`
}

// ReplyFetchBlobs carries the requested blobs
type ReplyFetchBlobs struct {
	Blobs []Blob `msgpack:"blobs"`
}

// RequestResolve asks the responder to resolve a node id prefix
type RequestResolve struct {
	DagNum model.DagNum `msgpack:"dagnum"`
	Prefix string       `msgpack:"prefix"`
}

// ReplyResolve carries the resolved node id
type ReplyResolve struct {
	DagNum     model.DagNum `msgpack:"dagnum"`
	ID         model.NodeID `msgpack:"id"`
	Generation int64        `msgpack:"gen"`
}
