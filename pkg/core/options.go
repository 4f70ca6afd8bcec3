package core

import (
	"github.com/oneconcern/dagsync/pkg/dlogger"
	"github.com/oneconcern/dagsync/pkg/hint"
	"github.com/oneconcern/dagsync/pkg/model"
	"go.uber.org/zap"
)

// Option sets options for a sync session
type Option func(*Settings)

// Settings defines the settings of a sync session
type Settings struct {
	l              *zap.Logger
	margin         int64
	blobBatchSize  int
	blobBatchCount int
	dagnums        map[model.DagNum]struct{}
	metrics        *Metrics
}

const (
	// DefaultBlobBatchSize is the maximum cumulated size of blobs sent or fetched in one exchange
	DefaultBlobBatchSize = 16 * 1024 * 1024

	// DefaultBlobBatchCount is the maximum number of blob ids in one presence or fetch request
	DefaultBlobBatchCount = 256
)

// Logger sets a logger for the session. It defaults to a no-op logger.
func Logger(l *zap.Logger) Option {
	return func(s *Settings) {
		s.l = dlogger.OrNop(l)
	}
}

// WithGenerationMargin sets the safety margin added to generation hints when bounding fragments.
// It defaults to hint.DefaultMargin.
func WithGenerationMargin(margin int64) Option {
	return func(s *Settings) {
		if margin < 0 {
			margin = 0
		}
		s.margin = margin
	}
}

// WithBlobBatchSize sets the maximum cumulated size in bytes of a batch of blobs
func WithBlobBatchSize(size int) Option {
	return func(s *Settings) {
		if size <= 0 {
			s.blobBatchSize = DefaultBlobBatchSize
			return
		}
		s.blobBatchSize = size
	}
}

// WithBlobBatchCount sets the maximum number of blob ids in a single request
func WithBlobBatchCount(count int) Option {
	return func(s *Settings) {
		if count <= 0 {
			s.blobBatchCount = DefaultBlobBatchCount
			return
		}
		s.blobBatchCount = count
	}
}

// WithDagNumFilter restricts a session to some dagnums
func WithDagNumFilter(dagnums ...model.DagNum) Option {
	return func(s *Settings) {
		if len(dagnums) == 0 {
			s.dagnums = nil
			return
		}
		s.dagnums = make(map[model.DagNum]struct{}, len(dagnums))
		for _, d := range dagnums {
			s.dagnums[d] = struct{}{}
		}
	}
}

// WithMetrics collects session metrics. Metrics are not collected by default.
func WithMetrics(m *Metrics) Option {
	return func(s *Settings) {
		s.metrics = m
	}
}

func defaultSettings(opts []Option) Settings {
	s := Settings{
		l:              zap.NewNop(),
		margin:         hint.DefaultMargin,
		blobBatchSize:  DefaultBlobBatchSize,
		blobBatchCount: DefaultBlobBatchCount,
	}
	for _, apply := range opts {
		apply(&s)
	}
	return s
}

func (s Settings) accepts(dagnum model.DagNum) bool {
	if s.dagnums == nil {
		return true
	}
	_, ok := s.dagnums[dagnum]
	return ok
}
