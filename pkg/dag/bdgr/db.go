// Package bdgr implements node stores on a badger key-value database.
//
// A single database hosts all the DAGs of a repository: keys are prefixed by the dagnum.
package bdgr

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/oneconcern/dagsync/pkg/dag/status"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/model"
	"go.uber.org/zap"
)

const (
	nodePrefix  = "n:"
	leafPrefix  = "l:"
	countPrefix = "c:"
	dagPrefix   = "d:"
	keySep      = ':'

	inMemoryTableSize = 8 << 20
	inMemoryCacheSize = 16 << 20

	defaultRetryInterval = 10 * time.Millisecond
	defaultMaxRetries    = 100
)

// DB is a badger database holding the nodes of several DAGs
type DB struct {
	db         *badger.DB
	l          *zap.Logger
	dir        string
	inMemory   bool
	maxRetries uint64
}

// Option for the node database
type Option func(*DB)

// InMemory runs the database without persistence, e.g. for tests
func InMemory() Option {
	return func(d *DB) {
		d.inMemory = true
	}
}

// Logger for the node database
func Logger(l *zap.Logger) Option {
	return func(d *DB) {
		if l != nil {
			d.l = l
		}
	}
}

// MaxRetries sets the number of attempts to commit a transaction in case of conflicts
func MaxRetries(n uint64) Option {
	return func(d *DB) {
		d.maxRetries = n
	}
}

// Open a node database in dir
func Open(dir string, opts ...Option) (*DB, error) {
	d := &DB{
		dir:        dir,
		l:          zap.NewNop(),
		maxRetries: defaultMaxRetries,
	}
	for _, apply := range opts {
		apply(d)
	}

	var bopts badger.Options
	if d.inMemory {
		bopts = badger.DefaultOptions("").
			WithInMemory(true).
			WithMemTableSize(inMemoryTableSize).
			WithBlockCacheSize(inMemoryCacheSize)
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, status.ErrStore.WrapMessage("mkdir %s: %v", dir, err)
		}
		bopts = badger.DefaultOptions(dir)
	}
	bopts = bopts.
		WithLogger(newBadgerLogger(d.l)).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, status.ErrStore.Wrap(err)
	}
	d.db = db

	return d, nil
}

// Close the database
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return status.ErrStore.Wrap(err)
	}
	return nil
}

func (d *DB) String() string {
	if d.inMemory {
		return "badger@memory"
	}
	return "badger@" + d.dir
}

// Store yields the node store for a DAG
func (d *DB) Store(dagnum model.DagNum) (*Store, error) {
	if err := dagnum.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		db:     d,
		dagnum: dagnum,
		prefix: dagnum.String(),
	}, nil
}

// CreateDag registers a DAG, even when it holds no node yet
func (d *DB) CreateDag(_ context.Context, dagnum model.DagNum) error {
	if err := dagnum.Validate(); err != nil {
		return err
	}
	return d.update(func(txn *badger.Txn) error {
		return txn.Set(dagKey(dagnum), nil)
	})
}

// ListDagNums lists all the DAGs registered in this database, including hardwired templates
func (d *DB) ListDagNums(_ context.Context) (model.DagNums, error) {
	var res model.DagNums
	prefix := []byte(dagPrefix)
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			dagnum, err := model.ParseDagNum(string(key[len(prefix):]))
			if err != nil {
				d.l.Warn("skipping unsupported dag", zap.ByteString("key", key), zap.Error(err))
				continue
			}
			res = append(res, dagnum)
		}
		return nil
	})
	if err != nil {
		return nil, status.ErrStore.Wrap(err)
	}
	return res, nil
}

// update runs a read-write transaction, retried on conflicts.
//
// Errors other than conflicts are returned without retry.
func (d *DB) update(fn func(*badger.Txn) error) error {
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(defaultRetryInterval), d.maxRetries)

	return backoff.Retry(func() error {
		err := d.db.Update(fn)
		if err != nil {
			if errors.Is(err, badger.ErrConflict) {
				d.l.Debug("retrying transaction on conflict")
				return err // retry
			}

			return backoff.Permanent(err)
		}

		return nil
	}, policy)
}

func dagKey(dagnum model.DagNum) []byte {
	return []byte(dagPrefix + dagnum.String())
}

func scopedKey(prefix, dag string, id string) []byte {
	var b bytes.Buffer
	b.Grow(len(prefix) + len(dag) + 1 + len(id))
	b.WriteString(prefix)
	b.WriteString(dag)
	b.WriteByte(keySep)
	b.WriteString(id)
	return b.Bytes()
}

func encodeCount(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}

func decodeCount(val []byte) uint64 {
	if len(val) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(val)
}
