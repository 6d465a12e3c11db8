package journal

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	// compressionThreshold is the minimum payload size before
	// compression is attempted; zstd overhead is not worth it below.
	compressionThreshold = 512

	encodingIdentity byte = 0
	encodingZstd     byte = 1
)

// codec frames journal values as a one-byte encoding marker followed
// by the (possibly compressed) JSON payload. Encoder and decoder are
// pooled and reused for the life of the journal.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &codec{encoder: enc, decoder: dec}, nil
}

func (c *codec) close() {
	if c.encoder != nil {
		c.encoder.Close()
		c.encoder = nil
	}
	if c.decoder != nil {
		c.decoder.Close()
		c.decoder = nil
	}
}

func (c *codec) encode(data []byte) []byte {
	if len(data) < compressionThreshold {
		return append([]byte{encodingIdentity}, data...)
	}
	compressed := c.encoder.EncodeAll(data, []byte{encodingZstd})
	if len(compressed) >= len(data)+1 {
		return append([]byte{encodingIdentity}, data...)
	}
	return compressed
}

func (c *codec) decode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	switch payload[0] {
	case encodingIdentity:
		return payload[1:], nil
	case encodingZstd:
		return c.decoder.DecodeAll(payload[1:], nil)
	default:
		return nil, fmt.Errorf("unsupported encoding marker: %d", payload[0])
	}
}
