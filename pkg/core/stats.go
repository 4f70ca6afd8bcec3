package core

import (
	"time"

	"github.com/oneconcern/dagsync/pkg/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MinRoundTrips is the number of round trips needed to synchronize a dag, when hints are accurate
const MinRoundTrips = 3

// Stats reports on a committed sync session
type Stats struct {
	// DagNodesTouched counts the nodes included in the fragment of each dag
	DagNodesTouched map[model.DagNum]int

	// RoundTrips counts the remote exchanges of the dag phase, over all dags
	RoundTrips int

	// DagRoundTrips counts the remote exchanges of the dag phase, per dag
	DagRoundTrips map[model.DagNum]int

	// BlobRoundTrips counts the remote exchanges of the blob phase
	BlobRoundTrips int

	Deepenings       int
	BlobsReferenced  int
	BlobsPresent     int
	NodesTransferred int
	BlobsTransferred int
	Duration         time.Duration
}

func newStats() *Stats {
	return &Stats{
		DagNodesTouched: make(map[model.DagNum]int),
		DagRoundTrips:   make(map[model.DagNum]int),
	}
}

// MarshalLogObject renders stats as zap fields
func (s *Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	touched := 0
	for _, n := range s.DagNodesTouched {
		touched += n
	}
	enc.AddInt("dags", len(s.DagNodesTouched))
	enc.AddInt("nodesTouched", touched)
	enc.AddInt("roundTrips", s.RoundTrips)
	enc.AddInt("blobRoundTrips", s.BlobRoundTrips)
	enc.AddInt("deepenings", s.Deepenings)
	enc.AddInt("blobsReferenced", s.BlobsReferenced)
	enc.AddInt("blobsPresent", s.BlobsPresent)
	enc.AddInt("nodesTransferred", s.NodesTransferred)
	enc.AddInt("blobsTransferred", s.BlobsTransferred)
	enc.AddDuration("duration", s.Duration)
	return nil
}

var _ zapcore.ObjectMarshaler = &Stats{}

func statsField(s *Stats) zap.Field {
	return zap.Object("stats", s)
}
