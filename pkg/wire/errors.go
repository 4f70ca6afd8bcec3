package wire

import (
	"github.com/oneconcern/dagsync/pkg/blob"
	corestatus "github.com/oneconcern/dagsync/pkg/core/status"
	dagstatus "github.com/oneconcern/dagsync/pkg/dag/status"
	"github.com/oneconcern/dagsync/pkg/errors"
)

// Error codes
const (
	CodeSparseGraph     = "sparse-graph"
	CodeInconsistentDag = "inconsistent-dag"
	CodeNotFound        = "not-found"
	CodeAmbiguous       = "ambiguous"
	CodeInvalidNode     = "invalid-node"
	CodeUnsupportedDag  = "unsupported-dag"
	CodeUnrelatedRepo   = "unrelated-repo"
	CodeBlobNotFound    = "blob-not-found"
	CodeCorruptBlob     = "corrupt-blob"
	CodeProtocol        = "protocol"
	CodeInternal        = "internal"
)

// ErrRemote wraps errors reported by a peer without a known code
var ErrRemote = errors.New("remote error")

var codes = []struct {
	code     string
	sentinel *errors.Error
}{
	{CodeSparseGraph, dagstatus.ErrSparseGraph},
	{CodeInconsistentDag, dagstatus.ErrInconsistentDag},
	{CodeNotFound, dagstatus.ErrNotFound},
	{CodeAmbiguous, dagstatus.ErrAmbiguous},
	{CodeInvalidNode, dagstatus.ErrInvalidNode},
	{CodeUnsupportedDag, corestatus.ErrUnsupportedDag},
	{CodeUnrelatedRepo, corestatus.ErrUnrelatedRepo},
	{CodeBlobNotFound, blob.ErrNotFound},
	{CodeCorruptBlob, blob.ErrCorrupt},
	{CodeProtocol, corestatus.ErrProtocol},
}

// Error is the wire form of an error
type Error struct {
	Code    string `msgpack:"code" json:"code"`
	Message string `msgpack:"message" json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError converts an error to its wire form
func NewError(err error) *Error {
	var wireErr *Error
	if errors.As(err, &wireErr) {
		return wireErr
	}
	for _, c := range codes {
		if errors.Is(err, c.sentinel) {
			return &Error{Code: c.code, Message: err.Error()}
		}
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// Err converts a wire error back to an error wrapping the matching sentinel
func (e *Error) Err() error {
	for _, c := range codes {
		if c.code == e.Code {
			return c.sentinel.Wrap(ErrRemote.WrapMessage("%s", e.Message))
		}
	}
	return ErrRemote.WrapMessage("%s", e.Message)
}
