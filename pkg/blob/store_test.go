package blob

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/storage"
	"github.com/oneconcern/dagsync/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t testing.TB, opts ...Option) (*Store, storage.Store) {
	backend := localfs.New(afero.NewMemMapFs())
	s, err := New(backend, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, backend
}

func TestBlobStore(t *testing.T) {
	for _, compress := range []bool{true, false} {
		compress := compress
		t.Run(fmt.Sprintf("compression=%t", compress), func(t *testing.T) {
			ctx := context.Background()
			s, backend := newTestStore(t, Compression(compress), Concurrency(2))

			small := []byte("small")
			large := bytes.Repeat([]byte("compressible content "), 100)

			smallID, err := s.Add(ctx, small)
			require.NoError(t, err)
			largeID, err := s.Add(ctx, large)
			require.NoError(t, err)

			// idempotent
			require.NoError(t, s.Put(ctx, largeID, large))

			raw, err := storage.ReadAll(ctx, backend, model.GetPathToBlob(largeID))
			require.NoError(t, err)
			if compress {
				assert.Less(t, len(raw), len(large))
			} else {
				assert.Len(t, raw, len(large)+1)
			}

			got, err := s.Get(ctx, largeID)
			require.NoError(t, err)
			assert.Equal(t, large, got)

			missing := model.NewBlobID([]byte("missing"))
			_, err = s.Get(ctx, missing)
			require.ErrorIs(t, err, ErrNotFound)

			presence, err := s.Presence(ctx, []model.BlobID{smallID, largeID, missing})
			require.NoError(t, err)
			assert.Equal(t, map[model.BlobID]bool{smallID: true, largeID: true, missing: false}, presence)

			many, err := s.GetMany(ctx, []model.BlobID{smallID, largeID})
			require.NoError(t, err)
			assert.Equal(t, small, many[smallID])

			_, err = s.GetMany(ctx, []model.BlobID{smallID, missing})
			require.ErrorIs(t, err, ErrNotFound)

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []model.BlobID{smallID, largeID}, keys)
		})
	}
}

func TestBlobStoreRejectsCorruption(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)

	id := model.NewBlobID([]byte("genuine"))
	require.ErrorIs(t, s.Put(ctx, id, []byte("forged")), ErrCorrupt)

	// tamper with the object at rest
	require.NoError(t, storage.PutBytes(ctx, backend, model.GetPathToBlob(id), append([]byte{frameRaw}, "forged"...), storage.OverWrite))
	_, err := s.Get(ctx, id)
	require.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, storage.PutBytes(ctx, backend, model.GetPathToBlob(id), []byte{0x7f}, storage.OverWrite))
	_, err = s.Get(ctx, id)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestPutMany(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	batch := make(map[model.BlobID][]byte, 20)
	for i := 0; i < 20; i++ {
		data := []byte(fmt.Sprintf("blob-%d", i))
		batch[model.NewBlobID(data)] = data
	}
	require.NoError(t, s.PutMany(ctx, batch))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 20)
}
