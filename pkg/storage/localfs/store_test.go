// Copyright © 2018 One Concern

package localfs

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"testing"

	"github.com/oneconcern/dagsync/pkg/storage"
	"github.com/oneconcern/dagsync/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeBuilder func(testing.TB, afero.Fs) storage.Store

func builders() map[string]storeBuilder {
	return map[string]storeBuilder{
		"localfs": func(_ testing.TB, fs afero.Fs) storage.Store { return New(fs) },
		"localfs-atomic": func(t testing.TB, fs afero.Fs) storage.Store {
			s, err := NewAtomic(fs)
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore(t *testing.T) {
	for name, build := range builders() {
		build := build
		t.Run(name, func(t *testing.T) {
			t.Run("has", func(t *testing.T) {
				bs := setupStore(t, build)

				has, err := bs.Has(context.Background(), "sixteentons")
				require.NoError(t, err)
				require.True(t, has)

				has, err = bs.Has(context.Background(), "fifteentons")
				require.NoError(t, err)
				require.False(t, has)
			})

			t.Run("get", func(t *testing.T) {
				bs := setupStore(t, build)

				b, err := storage.ReadAll(context.Background(), bs, "seventeentons")
				require.NoError(t, err)
				assert.Equal(t, "this is the text for another thing", string(b))

				_, err = bs.Get(context.Background(), "fifteentons")
				require.ErrorIs(t, err, status.ErrNotExists)
			})

			t.Run("put", func(t *testing.T) {
				bs := setupStore(t, build)

				content := bytes.NewBufferString("here we go once again")
				require.NoError(t, bs.Put(context.Background(), "deep/eighteentons", content, storage.NoOverWrite))

				rdr, err := bs.Get(context.Background(), "deep/eighteentons")
				require.NoError(t, err)
				b, err := io.ReadAll(rdr)
				require.NoError(t, err)
				require.NoError(t, rdr.Close())
				assert.Equal(t, "here we go once again", string(b))

				err = storage.PutBytes(context.Background(), bs, "deep/eighteentons", []byte("again"), storage.NoOverWrite)
				require.ErrorIs(t, err, status.ErrExists)

				require.NoError(t, storage.PutBytes(context.Background(), bs, "deep/eighteentons", []byte("again"), storage.OverWrite))
				b, err = storage.ReadAll(context.Background(), bs, "deep/eighteentons")
				require.NoError(t, err)
				assert.Equal(t, "again", string(b))

				k, err := bs.Keys(context.Background())
				require.NoError(t, err)
				assert.Len(t, k, 3)
			})

			t.Run("delete and clear", func(t *testing.T) {
				bs := setupStore(t, build)

				require.NoError(t, bs.Delete(context.Background(), "seventeentons"))
				require.NoError(t, bs.Delete(context.Background(), "seventeentons"))
				k, _ := bs.Keys(context.Background())
				assert.Len(t, k, 1)

				require.NoError(t, bs.Clear(context.Background()))
				k, _ = bs.Keys(context.Background())
				require.Empty(t, k)
			})

			t.Run("keys prefix", func(t *testing.T) {
				fs := afero.NewMemMapFs()
				bs := build(t, fs)
				for i := 0; i < 10; i++ {
					require.NoError(t, storage.PutBytes(context.Background(), bs, "a/b/c/e"+strconv.Itoa(i), []byte("x"), storage.NoOverWrite))
					require.NoError(t, storage.PutBytes(context.Background(), bs, "a/d/f"+strconv.Itoa(i), []byte("x"), storage.NoOverWrite))
				}

				keys, err := bs.KeysPrefix(context.Background(), "a/d/")
				require.NoError(t, err)
				assert.Len(t, keys, 10)
				assert.Equal(t, "a/d/f0", keys[0])

				keys, err = bs.KeysPrefix(context.Background(), "a")
				require.NoError(t, err)
				assert.Len(t, keys, 20)

				keys, err = bs.KeysPrefix(context.Background(), "z")
				require.NoError(t, err)
				assert.Empty(t, keys)
			})
		})
	}
}

func TestAtomicRejectsStagingKeys(t *testing.T) {
	bs, err := NewAtomic(afero.NewMemMapFs())
	require.NoError(t, err)

	err = storage.PutBytes(context.Background(), bs, nestedPutStageName+"/x", []byte("x"), storage.OverWrite)
	require.ErrorIs(t, err, status.ErrInvalidResource)
}

func setupStore(t testing.TB, build storeBuilder) storage.Store {
	t.Helper()

	fs := afero.NewMemMapFs()
	fakeFile(t, fs, "sixteentons", "this is the text")
	fakeFile(t, fs, "seventeentons", "this is the text for another thing")

	return build(t, fs)
}

func fakeFile(t testing.TB, fs afero.Fs, file, content string) {
	f, err := fs.Create(file)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
