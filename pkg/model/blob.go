package model

import (
	"encoding/hex"
	"strings"

	blake2b "github.com/minio/blake2b-simd"
)

// BlobID is the content hash of a blob, in lowercase hex
type BlobID string

// NewBlobID computes the id of some content
func NewBlobID(data []byte) BlobID {
	sum := blake2b.Sum256(data)
	return BlobID(hex.EncodeToString(sum[:]))
}

// ParseBlobID parses the hex representation of a blob id
func ParseBlobID(s string) (BlobID, error) {
	id := BlobID(strings.ToLower(strings.TrimSpace(s)))
	return id, id.Validate()
}

func (id BlobID) String() string {
	return string(id)
}

// Short yields an abbreviated form of the id
func (id BlobID) Short() string {
	if len(id) <= ShortIDSize {
		return string(id)
	}
	return string(id[:ShortIDSize])
}

// Validate the format of a blob id
func (id BlobID) Validate() error {
	if !isHexID(string(id)) {
		return ErrInvalidID.WrapMessage("blob id %q", string(id))
	}
	return nil
}

// Matches tells if some content hashes to this id
func (id BlobID) Matches(data []byte) bool {
	return NewBlobID(data) == id
}

// BlobIDs is a sortable slice of blob ids
type BlobIDs []BlobID

func (b BlobIDs) Len() int           { return len(b) }
func (b BlobIDs) Less(i, j int) bool { return b[i] < b[j] }
func (b BlobIDs) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
