package repo

import (
	"path/filepath"

	"github.com/oneconcern/dagsync/pkg/blob"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/storage"
	"github.com/oneconcern/dagsync/pkg/storage/localfs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type options struct {
	path           string
	l              *zap.Logger
	fs             afero.Fs
	inMemory       bool
	blobOpts       []blob.Option
	descriptorOpts []model.RepoOption
}

// Option for opening or initializing a repository
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.l = l
		}
	}
}

// InMemory keeps the whole repository in memory, e.g. for tests. The path is only used to name the repository.
func InMemory() Option {
	return func(o *options) {
		o.inMemory = true
		o.fs = afero.NewMemMapFs()
	}
}

// WithBlobOptions tunes the blob store
func WithBlobOptions(opts ...blob.Option) Option {
	return func(o *options) {
		o.blobOpts = append(o.blobOpts, opts...)
	}
}

// Identity makes a new repository an instance of an existing one
func Identity(repoID, adminID string) Option {
	return func(o *options) {
		o.descriptorOpts = append(o.descriptorOpts, model.RepoIdentity(repoID, adminID))
	}
}

// Description of a new repository
func Description(d string) Option {
	return func(o *options) {
		o.descriptorOpts = append(o.descriptorOpts, model.RepoDescription(d))
	}
}

func defaultOptions(path string, opts []Option) *options {
	o := &options{
		path: path,
		l:    zap.NewNop(),
	}
	for _, apply := range opts {
		apply(o)
	}
	if o.fs == nil {
		o.fs = afero.NewBasePathFs(afero.NewOsFs(), path)
	}
	return o
}

func (o *options) metaStore() (storage.Store, error) {
	if !o.inMemory {
		if err := afero.NewOsFs().MkdirAll(o.path, 0700); err != nil {
			return nil, err
		}
	}
	return localfs.NewAtomic(o.fs)
}

func (o *options) location() string {
	if o.inMemory {
		return "memory:" + o.path
	}
	abs, err := filepath.Abs(o.path)
	if err != nil {
		return o.path
	}
	return abs
}
