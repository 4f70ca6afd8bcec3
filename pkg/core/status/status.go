// Package status exports errors produced by the core package.
package status

import (
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/model"
)

var (
	// ErrSessionClosed indicates an operation on a session which is already committed or aborted
	ErrSessionClosed = errors.New("sync session is closed")

	// ErrUnrelatedRepo indicates that two repositories do not share an identity and cannot be synchronized
	ErrUnrelatedRepo = errors.New("unrelated repository")

	// ErrUnsupportedDag indicates a dagnum which cannot be synchronized: unknown to the peer, or a hardwired template
	ErrUnsupportedDag = model.ErrUnsupportedDag

	// ErrInvalidRevSpec indicates a malformed revision spec
	ErrInvalidRevSpec = errors.New("invalid revision spec")

	// ErrProtocol indicates that a peer replied with something inconsistent with the request
	ErrProtocol = errors.New("sync protocol violation")

	// ErrInterrupted indicates that a sync session was interrupted
	ErrInterrupted = errors.New("sync session interrupted")
)
