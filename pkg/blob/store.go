// Package blob implements a content-addressed blob store on top of a storage backend.
//
// Blobs are keyed by the blake2b-256 digest of their content, and compressed at rest.
package blob

import (
	"context"
	"sort"
	"sync"

	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/storage"
	"github.com/oneconcern/dagsync/pkg/storage/status"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFound is returned when a blob is absent
	ErrNotFound = errors.New("blob not found")

	// ErrCorrupt is returned when some content does not hash to its blob id
	ErrCorrupt = errors.New("blob content does not match its id")
)

// Reader knows how to retrieve blobs
type Reader interface {
	Has(context.Context, model.BlobID) (bool, error)
	Get(context.Context, model.BlobID) ([]byte, error)
}

// Writer knows how to add blobs
type Writer interface {
	Put(context.Context, model.BlobID, []byte) error
}

// Store is a content-addressed blob store
type Store struct {
	store       storage.Store
	codec       *codec
	concurrency int
	l           *zap.Logger
}

// New blob store over a storage backend
func New(backend storage.Store, opts ...Option) (*Store, error) {
	s := &Store{
		store:       backend,
		concurrency: defaultConcurrency,
		l:           zap.NewNop(),
	}
	settings := defaultSettings()
	for _, apply := range opts {
		apply(s, &settings)
	}
	c, err := newCodec(settings)
	if err != nil {
		return nil, err
	}
	s.codec = c
	return s, nil
}

func (s *Store) String() string {
	return "blob@" + s.store.String()
}

// Close releases the resources held by the compression codec
func (s *Store) Close() error {
	s.codec.close()
	return nil
}

// Has tells if a blob is present
func (s *Store) Has(ctx context.Context, id model.BlobID) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}
	return s.store.Has(ctx, model.GetPathToBlob(id))
}

// Get the content of a blob. The content is checked against the id.
func (s *Store) Get(ctx context.Context, id model.BlobID) ([]byte, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	raw, err := storage.ReadAll(ctx, s.store, model.GetPathToBlob(id))
	if err != nil {
		if errors.Is(err, status.ErrNotExists) {
			return nil, ErrNotFound.WrapMessage("blob %s", id.Short())
		}
		return nil, err
	}
	data, err := s.codec.decode(raw)
	if err != nil {
		return nil, ErrCorrupt.Wrap(err)
	}
	if !id.Matches(data) {
		return nil, ErrCorrupt.WrapMessage("blob %s", id.Short())
	}
	return data, nil
}

// Put a blob. Adding a blob which is already present is a no-op.
func (s *Store) Put(ctx context.Context, id model.BlobID, data []byte) error {
	if !id.Matches(data) {
		return ErrCorrupt.WrapMessage("blob %s", id.Short())
	}
	err := storage.PutBytes(ctx, s.store, model.GetPathToBlob(id), s.codec.encode(data), storage.NoOverWrite)
	if err != nil && !errors.Is(err, status.ErrExists) {
		return err
	}
	return nil
}

// Add computes the id of some content and stores it
func (s *Store) Add(ctx context.Context, data []byte) (model.BlobID, error) {
	id := model.NewBlobID(data)
	return id, s.Put(ctx, id, data)
}

// Keys lists all blobs, sorted
func (s *Store) Keys(ctx context.Context) ([]model.BlobID, error) {
	keys, err := s.store.KeysPrefix(ctx, model.GetPathPrefixToBlobs())
	if err != nil {
		return nil, err
	}
	res := make([]model.BlobID, 0, len(keys))
	for _, key := range keys {
		id, err := model.GetBlobIDFromPath(key)
		if err != nil {
			s.l.Warn("skipping unexpected key in blob store", zap.String("key", key))
			continue
		}
		res = append(res, id)
	}
	sort.Sort(model.BlobIDs(res))
	return res, nil
}

// Presence checks a batch of blobs
func (s *Store) Presence(ctx context.Context, ids []model.BlobID) (map[model.BlobID]bool, error) {
	var mx sync.Mutex
	res := make(map[model.BlobID]bool, len(ids))
	err := s.fanOut(ctx, ids, func(ctx context.Context, id model.BlobID) error {
		has, err := s.Has(ctx, id)
		if err != nil {
			return err
		}
		mx.Lock()
		res[id] = has
		mx.Unlock()
		return nil
	})
	return res, err
}

// GetMany reads a batch of blobs concurrently
func (s *Store) GetMany(ctx context.Context, ids []model.BlobID) (map[model.BlobID][]byte, error) {
	var mx sync.Mutex
	res := make(map[model.BlobID][]byte, len(ids))
	err := s.fanOut(ctx, ids, func(ctx context.Context, id model.BlobID) error {
		data, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		mx.Lock()
		res[id] = data
		mx.Unlock()
		return nil
	})
	return res, err
}

// PutMany stores a batch of blobs concurrently
func (s *Store) PutMany(ctx context.Context, blobs map[model.BlobID][]byte) error {
	ids := make([]model.BlobID, 0, len(blobs))
	for id := range blobs {
		ids = append(ids, id)
	}
	return s.fanOut(ctx, ids, func(ctx context.Context, id model.BlobID) error {
		return s.Put(ctx, id, blobs[id])
	})
}

func (s *Store) fanOut(ctx context.Context, ids []model.BlobID, fn func(context.Context, model.BlobID) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return fn(gctx, id)
		})
	}
	return g.Wait()
}
