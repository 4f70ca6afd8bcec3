package model

import (
	"path"
	"strings"
)

const (
	repoDescriptorFile = "repo.yaml"
	blobsPrefix        = "blobs"
	dagDir             = "dag"
	blobFanout         = 2
)

// GetPathToRepoDescriptor yields the storage key of the repository descriptor
func GetPathToRepoDescriptor() string {
	return repoDescriptorFile
}

// GetPathToDagDB yields the directory holding the node database, relative to the repository root
func GetPathToDagDB() string {
	return dagDir
}

// GetPathPrefixToBlobs yields the storage prefix under which blobs are kept
func GetPathPrefixToBlobs() string {
	return blobsPrefix + "/"
}

// GetPathToBlob yields the storage key of a blob, fanned out on the first hex digits of its id
func GetPathToBlob(id BlobID) string {
	s := string(id)
	if len(s) <= blobFanout {
		return path.Join(blobsPrefix, s)
	}
	return path.Join(blobsPrefix, s[:blobFanout], s[blobFanout:])
}

// GetBlobIDFromPath is the inverse of GetPathToBlob
func GetBlobIDFromPath(key string) (BlobID, error) {
	rel := strings.TrimPrefix(key, GetPathPrefixToBlobs())
	return ParseBlobID(strings.ReplaceAll(rel, "/", ""))
}
