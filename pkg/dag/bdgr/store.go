package bdgr

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/json-iterator/go"
	"github.com/oneconcern/dagsync/pkg/dag"
	"github.com/oneconcern/dagsync/pkg/dag/status"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/model"
	"go.uber.org/zap"
)

var _ dag.Store = &Store{}

// Store is the node store of a single DAG
type Store struct {
	db     *DB
	dagnum model.DagNum
	prefix string
}

// DagNum of this store
func (s *Store) DagNum() model.DagNum {
	return s.dagnum
}

func (s *Store) String() string {
	return s.db.String() + "/" + s.prefix
}

func (s *Store) nodeKey(id model.NodeID) []byte {
	return scopedKey(nodePrefix, s.prefix, string(id))
}

func (s *Store) leafKey(id model.NodeID) []byte {
	return scopedKey(leafPrefix, s.prefix, string(id))
}

func (s *Store) countKey() []byte {
	return []byte(countPrefix + s.prefix)
}

// Store a frozen node.
//
// The node, the leaf index, the node count and the dag registry are updated in a single transaction.
func (s *Store) Store(ctx context.Context, node *model.Node) error {
	if err := node.Verify(); err != nil {
		return status.ErrInvalidNode.Wrap(err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := jsoniter.Marshal(node)
	if err != nil {
		return status.ErrStore.WrapMessage("json marshal failed: %v", err)
	}

	var added bool
	err = s.db.update(func(txn *badger.Txn) error {
		added = false
		_, err := txn.Get(s.nodeKey(node.ID))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		var (
			missing    model.NodeIDs
			maxParents int64
		)
		for _, p := range node.Parents {
			parent, err := s.get(txn, p)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					missing = append(missing, p)
					continue
				}
				return err
			}
			if parent.Generation > maxParents {
				maxParents = parent.Generation
			}
		}
		if len(missing) > 0 {
			return &dag.SparseGraphError{DagNum: s.dagnum, NodeID: node.ID, Missing: missing}
		}
		if node.Generation != maxParents+1 {
			return status.ErrInvalidNode.WrapMessage(
				"dag %s: node %s has generation %d, expected %d", s.dagnum, node.ID.Short(), node.Generation, maxParents+1)
		}

		if err := txn.Set(s.nodeKey(node.ID), value); err != nil {
			return err
		}
		for _, p := range node.Parents {
			if err := txn.Delete(s.leafKey(p)); err != nil {
				return err
			}
		}
		if err := txn.Set(s.leafKey(node.ID), nil); err != nil {
			return err
		}

		count, err := s.count(txn)
		if err != nil {
			return err
		}
		if err := txn.Set(s.countKey(), encodeCount(count+1)); err != nil {
			return err
		}
		if count == 0 {
			if err := txn.Set(dagKey(s.dagnum), nil); err != nil {
				return err
			}
		}
		added = true
		return nil
	})
	if err != nil {
		var sparse *dag.SparseGraphError
		if errors.As(err, &sparse) || errors.Is(err, status.ErrInvalidNode) {
			return err
		}
		return status.ErrStore.Wrap(err)
	}
	if added {
		s.db.l.Debug("stored node", zap.Stringer("dagnum", s.dagnum), zap.Stringer("node", node))
	}
	return nil
}

// Fetch a node
func (s *Store) Fetch(_ context.Context, id model.NodeID) (*model.Node, error) {
	var node *model.Node
	err := s.db.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = s.get(txn, id)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, &dag.NotFoundError{DagNum: s.dagnum, NodeID: id}
		}
		return nil, status.ErrStore.Wrap(err)
	}
	return node, nil
}

// Has tells if a node is present
func (s *Store) Has(_ context.Context, id model.NodeID) (bool, error) {
	err := s.db.db.View(func(txn *badger.Txn) error {
		_, e := txn.Get(s.nodeKey(id))
		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, status.ErrStore.Wrap(err)
	}
	return true, nil
}

// Leaves yields the sorted ids of the leaves of this DAG
func (s *Store) Leaves(_ context.Context) (model.NodeIDs, error) {
	prefix := scopedKey(leafPrefix, s.prefix, "")
	res := model.NodeIDs{}
	err := s.db.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			res = append(res, model.NodeID(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, status.ErrStore.Wrap(err)
	}
	return res, nil
}

// Count the nodes in this DAG
func (s *Store) Count(_ context.Context) (int, error) {
	var count uint64
	err := s.db.db.View(func(txn *badger.Txn) error {
		var err error
		count, err = s.count(txn)
		return err
	})
	if err != nil {
		return 0, status.ErrStore.Wrap(err)
	}
	return int(count), nil
}

// Resolve a node id prefix
func (s *Store) Resolve(_ context.Context, idPrefix string) (model.NodeID, error) {
	idPrefix = strings.ToLower(strings.TrimSpace(idPrefix))
	if idPrefix == "" || len(idPrefix) > model.IDSize {
		return "", &dag.NotFoundError{DagNum: s.dagnum, NodeID: model.NodeID(idPrefix)}
	}

	prefix := scopedKey(nodePrefix, s.prefix, idPrefix)
	var matches model.NodeIDs
	err := s.db.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		keyStart := len(scopedKey(nodePrefix, s.prefix, ""))
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(matches) < 2; it.Next() {
			matches = append(matches, model.NodeID(it.Item().Key()[keyStart:]))
		}
		return nil
	})
	if err != nil {
		return "", status.ErrStore.Wrap(err)
	}

	switch len(matches) {
	case 0:
		return "", &dag.NotFoundError{DagNum: s.dagnum, NodeID: model.NodeID(idPrefix)}
	case 1:
		return matches[0], nil
	default:
		return "", status.ErrAmbiguous.WrapMessage("dag %s: prefix %q", s.dagnum, idPrefix)
	}
}

func (s *Store) get(txn *badger.Txn, id model.NodeID) (*model.Node, error) {
	item, err := txn.Get(s.nodeKey(id))
	if err != nil {
		return nil, err
	}
	var node model.Node
	err = item.Value(func(val []byte) error {
		return jsoniter.Unmarshal(val, &node)
	})
	if err != nil {
		return nil, status.ErrStore.WrapMessage("json unmarshal failed: %v", err)
	}
	return &node, nil
}

func (s *Store) count(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(s.countKey())
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var count uint64
	err = item.Value(func(val []byte) error {
		count = decodeCount(val)
		return nil
	})
	return count, err
}
