package model

import "github.com/oneconcern/dagsync/pkg/errors"

var (
	// ErrInvalidID is returned when a node or blob id is malformed
	ErrInvalidID = errors.New("invalid id")

	// ErrInvalidNode is returned when a node is not consistent with its own content
	ErrInvalidNode = errors.New("invalid node")

	// ErrFrozen is returned when attempting to modify a frozen node
	ErrFrozen = errors.New("node is frozen")

	// ErrNotFrozen is returned when a node is used before its id is computed
	ErrNotFrozen = errors.New("node is not frozen")

	// ErrUnsupportedDag is returned for a dagnum with an unknown type or unknown flags
	ErrUnsupportedDag = errors.New("unsupported dag")

	// ErrInvalidDescriptor is returned when a repository descriptor fails validation
	ErrInvalidDescriptor = errors.New("invalid repository descriptor")
)
