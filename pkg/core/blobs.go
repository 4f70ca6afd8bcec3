package core

import (
	"context"
	"sort"

	"github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/oneconcern/dagsync/pkg/wire"
)

// referencedBlobs collects the unique blob ids referenced by nodes, sorted
func referencedBlobs(nodes model.Nodes) model.BlobIDs {
	seen := make(map[model.BlobID]struct{})
	var ids model.BlobIDs
	for _, node := range nodes {
		for _, id := range node.Blobs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Sort(ids)
	return ids
}

// batches splits ids in chunks of at most size ids
func batches(ids model.BlobIDs, size int) []model.BlobIDs {
	var res []model.BlobIDs
	for len(ids) > size {
		res = append(res, ids[:size:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		res = append(res, ids)
	}
	return res
}

// sizedBatches splits blobs in chunks of at most size cumulated bytes. A blob larger than size
// makes a chunk on its own.
func sizedBatches(ids model.BlobIDs, data map[model.BlobID][]byte, size int) [][]wire.Blob {
	var (
		res     [][]wire.Blob
		current []wire.Blob
		total   int
	)
	for _, id := range ids {
		b := data[id]
		if len(current) > 0 && total+len(b) > size {
			res = append(res, current)
			current, total = nil, 0
		}
		current = append(current, wire.Blob{ID: id, Data: b})
		total += len(b)
	}
	if len(current) > 0 {
		res = append(res, current)
	}
	return res
}

// pushBlobs ships the blobs referenced by nodes which the receiver lacks
func (s *Session) pushBlobs(ctx context.Context, nodes model.Nodes, stats *Stats) error {
	ids := referencedBlobs(nodes)
	stats.BlobsReferenced += len(ids)

	for _, batch := range batches(ids, s.settings.blobBatchCount) {
		reply, err := s.peer.BlobPresence(ctx, &wire.RequestBlobPresence{IDs: batch})
		if err != nil {
			return err
		}
		present := make(map[model.BlobID]bool, len(reply.Present))
		for _, id := range reply.Present {
			present[id] = true
		}
		stats.BlobsPresent += len(present)

		var missing model.BlobIDs
		for _, id := range batch {
			if !present[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			continue
		}

		data, err := s.local.Blobs().GetMany(ctx, missing)
		if err != nil {
			return err
		}
		for _, chunk := range sizedBatches(missing, data, s.settings.blobBatchSize) {
			sent, err := s.peer.SendBlobs(ctx, &wire.SendBlobs{Blobs: chunk})
			if err != nil {
				return err
			}
			stats.BlobsTransferred += sent.Stored
		}
	}
	return nil
}

// pullBlobs fetches the blobs referenced by nodes which are missing locally
func (s *Session) pullBlobs(ctx context.Context, nodes model.Nodes, stats *Stats) error {
	ids := referencedBlobs(nodes)
	stats.BlobsReferenced += len(ids)
	if len(ids) == 0 {
		return nil
	}

	presence, err := s.local.Blobs().Presence(ctx, ids)
	if err != nil {
		return err
	}
	var missing model.BlobIDs
	for _, id := range ids {
		if presence[id] {
			stats.BlobsPresent++
			continue
		}
		missing = append(missing, id)
	}

	for _, batch := range batches(missing, s.settings.blobBatchCount) {
		reply, err := s.peer.FetchBlobs(ctx, &wire.RequestFetchBlobs{IDs: batch})
		if err != nil {
			return err
		}
		received := make(map[model.BlobID][]byte, len(reply.Blobs))
		for _, b := range reply.Blobs {
			received[b.ID] = b.Data
		}
		for _, id := range batch {
			if _, ok := received[id]; !ok {
				return status.ErrProtocol.WrapMessage("blob %s was not sent", id.Short())
			}
		}
		if err := s.local.Blobs().PutMany(ctx, received); err != nil {
			return err
		}
		stats.BlobsTransferred += len(batch)
	}
	return nil
}
