// Package model describes the base objects manipulated by dagsync.
//
// The object model for dagsync is composed of:
//
//	Repos:
//	  A repository instance holds a set of history DAGs, each identified by a dagnum, and the blobs
//	  referenced by their nodes. Instances of the same repository share a repo id and an admin id.
//
//	DAGs:
//	  A dagnum identifies a DAG by its type (version control, work items, testing) and flags.
//	  Some DAGs are hardwired templates, which are never synchronized.
//
//	Nodes:
//	  A node is an immutable, content-addressed vertex. Its generation is one more than the
//	  highest generation among its parents.
//
//	Blobs:
//	  Content-addressed payloads referenced by nodes.
package model
