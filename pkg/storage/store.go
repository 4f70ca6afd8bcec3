// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/oneconcern/dagsync/pkg/storage/status"
)

// MaxObjectSizeInMemory is the largest object ReadAll accepts to load in memory
const MaxObjectSizeInMemory = 2 * 1024 * 1024 * 1024 // 2 gigs

// Flags for Put
const (
	OverWrite   = false
	NoOverWrite = true
)

// Store implementations know how to write entries to a K/V model.
//
// Typically this is something file system-like.
// Implementations of this interface are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader, bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	KeysPrefix(context.Context, string) ([]string, error)
	Clear(context.Context) error
}

// ReadAll fetches an object and loads it in memory
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	reader, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(reader, MaxObjectSizeInMemory+1))
	if err != nil {
		return nil, err
	}
	if n > MaxObjectSizeInMemory {
		return nil, status.ErrObjectTooBig.WrapMessage("key %s", key)
	}
	return buf.Bytes(), nil
}

// PutBytes stores an in-memory object
func PutBytes(ctx context.Context, s Store, key string, data []byte, exclusive bool) error {
	return s.Put(ctx, key, bytes.NewReader(data), exclusive)
}
