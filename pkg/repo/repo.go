// Package repo exposes a repository instance: its descriptor, the node stores of its DAGs and its blobs.
package repo

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/oneconcern/dagsync/pkg/blob"
	"github.com/oneconcern/dagsync/pkg/dag"
	"github.com/oneconcern/dagsync/pkg/dag/bdgr"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/storage"
	"github.com/oneconcern/dagsync/pkg/storage/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

var (
	// ErrRepoExists is returned when initializing a repository over an existing one
	ErrRepoExists = errors.New("repository already exists")

	// ErrRepoNotFound is returned when opening a location with no repository
	ErrRepoNotFound = errors.New("repository not found")
)

// Repository is an open repository instance. It is safe for concurrent use.
type Repository struct {
	descriptor model.RepoDescriptor
	meta       storage.Store
	db         *bdgr.DB
	blobs      *blob.Store
	l          *zap.Logger
	location   string

	mx    sync.Mutex
	locks map[model.DagNum]*sync.Mutex
}

// Init creates a new repository at path. The repository gets fresh identifiers, unless
// Identity is provided.
func Init(path, name string, opts ...Option) (*Repository, error) {
	o := defaultOptions(path, opts)

	desc := model.NewRepoDescriptor(name, o.descriptorOpts...)
	if err := model.ValidateRepo(*desc); err != nil {
		return nil, err
	}

	meta, err := o.metaStore()
	if err != nil {
		return nil, err
	}
	asYaml, err := yaml.Marshal(desc)
	if err != nil {
		return nil, err
	}
	err = storage.PutBytes(context.Background(), meta, model.GetPathToRepoDescriptor(), asYaml, storage.NoOverWrite)
	if err != nil {
		if errors.Is(err, status.ErrExists) {
			return nil, ErrRepoExists.WrapMessage("at %s", path)
		}
		return nil, err
	}
	o.l.Info("initialized repository",
		zap.String("name", desc.Name),
		zap.String("repoID", desc.RepoID),
		zap.String("location", o.location()))

	return open(o, meta, *desc)
}

// Open an existing repository at path
func Open(path string, opts ...Option) (*Repository, error) {
	o := defaultOptions(path, opts)
	if !o.inMemory {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, ErrRepoNotFound.WrapMessage("at %s", path)
		}
	}
	meta, err := o.metaStore()
	if err != nil {
		return nil, err
	}

	asYaml, err := storage.ReadAll(context.Background(), meta, model.GetPathToRepoDescriptor())
	if err != nil {
		if errors.Is(err, status.ErrNotExists) {
			return nil, ErrRepoNotFound.WrapMessage("at %s", path)
		}
		return nil, err
	}
	var desc model.RepoDescriptor
	if err := yaml.Unmarshal(asYaml, &desc); err != nil {
		return nil, ErrRepoNotFound.Wrap(err)
	}
	if err := model.ValidateRepo(desc); err != nil {
		return nil, err
	}

	return open(o, meta, desc)
}

func open(o *options, meta storage.Store, desc model.RepoDescriptor) (*Repository, error) {
	dbOpts := []bdgr.Option{bdgr.Logger(o.l)}
	dbDir := ""
	if o.inMemory {
		dbOpts = append(dbOpts, bdgr.InMemory())
	} else {
		dbDir = filepath.Join(o.path, model.GetPathToDagDB())
	}
	db, err := bdgr.Open(dbDir, dbOpts...)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.New(meta, append([]blob.Option{blob.Logger(o.l)}, o.blobOpts...)...)
	if err != nil {
		return nil, multierr.Append(err, db.Close())
	}

	return &Repository{
		descriptor: desc,
		meta:       meta,
		db:         db,
		blobs:      blobs,
		l:          o.l.With(zap.String("repo", desc.Name)),
		location:   o.location(),
		locks:      make(map[model.DagNum]*sync.Mutex),
	}, nil
}

// Close the repository
func (r *Repository) Close() error {
	return multierr.Combine(r.blobs.Close(), r.db.Close())
}

func (r *Repository) String() string {
	return r.descriptor.Name + "@" + r.location
}

// Descriptor of this repository instance
func (r *Repository) Descriptor() model.RepoDescriptor {
	return r.descriptor
}

// Logger used by this repository
func (r *Repository) Logger() *zap.Logger {
	return r.l
}

// Blobs store of this repository
func (r *Repository) Blobs() *blob.Store {
	return r.blobs
}

// Store yields the node store for a DAG
func (r *Repository) Store(dagnum model.DagNum) (dag.Store, error) {
	return r.db.Store(dagnum)
}

// CreateDag registers a DAG, even before it holds any node
func (r *Repository) CreateDag(ctx context.Context, dagnum model.DagNum) error {
	return r.db.CreateDag(ctx, dagnum)
}

// ListDagNums lists all the DAGs of this repository, including hardwired templates
func (r *Repository) ListDagNums(ctx context.Context) (model.DagNums, error) {
	return r.db.ListDagNums(ctx)
}

// Lock the DAG for writing. The returned function releases the lock.
func (r *Repository) Lock(dagnum model.DagNum) func() {
	r.mx.Lock()
	lock, ok := r.locks[dagnum]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[dagnum] = lock
	}
	r.mx.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Verify the consistency of a DAG
func (r *Repository) Verify(ctx context.Context, dagnum model.DagNum) (dag.VerifyReport, error) {
	s, err := r.Store(dagnum)
	if err != nil {
		return dag.VerifyReport{}, err
	}
	return dag.Verify(ctx, s)
}

// AddNode stores some payloads as blobs, then builds, freezes and stores a node referencing them on top of the
// given parents. The DAG is verified once the node is stored.
func (r *Repository) AddNode(ctx context.Context, dagnum model.DagNum, parents []model.NodeID, payloads ...[]byte) (*model.Node, error) {
	s, err := r.Store(dagnum)
	if err != nil {
		return nil, err
	}

	parentNodes := make([]*model.Node, 0, len(parents))
	for _, id := range parents {
		p, err := s.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		parentNodes = append(parentNodes, p)
	}
	node, err := model.NewNode(parentNodes...)
	if err != nil {
		return nil, err
	}
	for _, payload := range payloads {
		id, err := r.blobs.Add(ctx, payload)
		if err != nil {
			return nil, err
		}
		if err := node.AddBlob(id); err != nil {
			return nil, err
		}
	}
	if err := node.Freeze(); err != nil {
		return nil, err
	}

	unlock := r.Lock(dagnum)
	defer unlock()
	if err := s.Store(ctx, node); err != nil {
		return nil, err
	}
	report, err := dag.Verify(ctx, s)
	if err != nil {
		r.l.Error("dag is inconsistent after adding a node", zap.Stringer("dagnum", dagnum), zap.Stringer("node", node), zap.Error(err))
		return nil, err
	}
	r.l.Debug("added node", zap.Stringer("dagnum", dagnum), zap.Stringer("node", node), zap.Int("nodes", report.Nodes))
	return node, nil
}
