// Package wire defines the messages exchanged by synchronizing repositories, and the Peer interface
// serving them.
//
// Every Peer method is one round trip. Messages are encoded with msgpack.
// Describe and Resolve happen when a session is opened and are not part of the DAG exchange.
package wire

import (
	"context"

	"github.com/vmihailenco/msgpack/v5"
)

// Peer is the remote side of a sync session
type Peer interface {
	Describe(context.Context, *RequestDescribe) (*ReplyDescribe, error)
	Resolve(context.Context, *RequestResolve) (*ReplyResolve, error)
	Leaves(context.Context, *RequestLeaves) (*ReplyLeaves, error)
	ProbeGenerations(context.Context, *RequestGenerationProbe) (*ReplyGenerationProbe, error)
	Fragment(context.Context, *RequestFragment) (*ReplyFragment, error)
	ProbeFragment(context.Context, *RequestFragmentProbe) (*ReplyFragmentProbe, error)
	SendNodes(context.Context, *SendNodes) (*ReplySendNodes, error)
	BlobPresence(context.Context, *RequestBlobPresence) (*ReplyBlobPresence, error)
	SendBlobs(context.Context, *SendBlobs) (*ReplySendBlobs, error)
	FetchBlobs(context.Context, *RequestFetchBlobs) (*ReplyFetchBlobs, error)
}

// ContentType of encoded messages
const ContentType = "application/msgpack"

// Encode a message
func Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode a message
func Decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
