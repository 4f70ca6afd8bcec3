package blob

import (
	"github.com/klauspost/compress/zstd"
	"github.com/oneconcern/dagsync/pkg/errors"
)

const (
	frameRaw  byte = 0x00
	frameZstd byte = 0x01

	minCompressSize = 128
)

var errUnknownFrame = errors.New("unknown blob frame")

// codec frames blobs at rest: one header byte, then either raw or zstd content
type codec struct {
	enabled bool
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec(o settings) (*codec, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	c := &codec{enabled: o.compress, decoder: decoder}
	if !o.compress {
		return c, nil
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(o.level))
	if err != nil {
		decoder.Close()
		return nil, err
	}
	c.encoder = encoder
	return c, nil
}

func (c *codec) encode(data []byte) []byte {
	if c.enabled && len(data) >= minCompressSize {
		compressed := c.encoder.EncodeAll(data, []byte{frameZstd})
		if len(compressed) < len(data)+1 {
			return compressed
		}
	}
	framed := make([]byte, 0, len(data)+1)
	framed = append(framed, frameRaw)
	return append(framed, data...)
}

func (c *codec) decode(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, errUnknownFrame.WrapMessage("empty object")
	}
	switch framed[0] {
	case frameRaw:
		return framed[1:], nil
	case frameZstd:
		return c.decoder.DecodeAll(framed[1:], nil)
	default:
		return nil, errUnknownFrame.WrapMessage("header %x", framed[0])
	}
}

func (c *codec) close() {
	if c.encoder != nil {
		_ = c.encoder.Close()
	}
	c.decoder.Close()
}
