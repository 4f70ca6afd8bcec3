// Package core synchronizes the DAGs of related repositories.
//
// A sync session runs between a local repository and a remote peer, in one direction: push or
// pull. For each dag, the sender bounds the part of the dag worth transferring with hints on the
// generations the receiver already holds, so that a synchronization normally completes in
// MinRoundTrips exchanges. A stale hint costs extra exchanges, never correctness: missing
// ancestors are detected on the fringe of the transferred fragment and fetched before storage.
//
// The Responder serves the other side of a session, in-process or behind a transport.
package core
