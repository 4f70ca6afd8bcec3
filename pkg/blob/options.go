package blob

import (
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const defaultConcurrency = 8

type settings struct {
	compress bool
	level    zstd.EncoderLevel
}

func defaultSettings() settings {
	return settings{
		compress: true,
		level:    zstd.SpeedDefault,
	}
}

// Option for the blob store
type Option func(*Store, *settings)

// Concurrency sets the maximum number of concurrent reads or writes in batch operations
func Concurrency(n int) Option {
	return func(s *Store, _ *settings) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Logger for the blob store
func Logger(l *zap.Logger) Option {
	return func(s *Store, _ *settings) {
		if l != nil {
			s.l = l
		}
	}
}

// Compression enables or disables zstd compression of blobs at rest. It is enabled by default.
func Compression(enabled bool) Option {
	return func(_ *Store, o *settings) {
		o.compress = enabled
	}
}

// CompressionLevel sets the zstd encoder level
func CompressionLevel(level zstd.EncoderLevel) Option {
	return func(_ *Store, o *settings) {
		o.level = level
	}
}
