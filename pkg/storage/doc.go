// Copyright © 2018 One Concern

// Package storage provides interface to handle backend storage objects.
//
// Repositories keep their descriptor and blobs on a storage backend. This package
// supports the local file system, or any afero file system (e.g. in memory).
package storage
