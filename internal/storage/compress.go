package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4"
)

const (
	frameRaw byte = 0
	frameLZ4 byte = 1
)

// maxDecodedSize bounds the length a frame header may declare.
const maxDecodedSize = 64 << 20

// lz4 cannot expand a block by more than this factor.
const maxBlockRatio = 255

var errCorruptFrame = errors.New("storage: corrupt compressed frame")

// Compressed stores values as lz4 blocks. Values that do not shrink are kept raw,
// so every stored value carries a one byte frame marker.
type Compressed struct {
	inner KV
}

// NewCompressed wraps inner with lz4 value compression.
func NewCompressed(inner KV) *Compressed {
	return &Compressed{inner: inner}
}

// Load decodes the stored frame.
func (c *Compressed) Load(ctx context.Context, key []byte) ([]byte, error) {
	value, err := c.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeFrame(value)
}

// Save encodes value before writing.
func (c *Compressed) Save(ctx context.Context, key, value []byte) error {
	frame, err := encodeFrame(value)
	if err != nil {
		return err
	}
	return c.inner.Save(ctx, key, frame)
}

// RangeScan decodes every returned value.
func (c *Compressed) RangeScan(ctx context.Context, prefix []byte, order Order) ([]Entry, error) {
	entries, err := c.inner.RangeScan(ctx, prefix, order)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		decoded, decodeErr := decodeFrame(entries[i].Value)
		if decodeErr != nil {
			return nil, fmt.Errorf("decode %q: %w", entries[i].Key, decodeErr)
		}
		entries[i].Value = decoded
	}
	return entries, nil
}

// Batch encodes put values before delegating.
func (c *Compressed) Batch(ctx context.Context, ops []Op) error {
	encoded := make([]Op, len(ops))
	for i, op := range ops {
		encoded[i] = op
		if op.Type != OpPut {
			continue
		}
		frame, err := encodeFrame(op.Value)
		if err != nil {
			return err
		}
		encoded[i].Value = frame
	}
	return c.inner.Batch(ctx, encoded)
}

// Close closes the inner backend.
func (c *Compressed) Close() error {
	return c.inner.Close()
}

func encodeFrame(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return []byte{frameRaw}, nil
	}

	header := make([]byte, 1+binary.MaxVarintLen64)
	header[0] = frameLZ4
	n := binary.PutUvarint(header[1:], uint64(len(value)))
	header = header[:1+n]

	compressed := make([]byte, lz4.CompressBlockBound(len(value)))
	size, err := lz4.CompressBlock(value, compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if size == 0 || size+len(header) >= len(value)+1 {
		// incompressible
		return append([]byte{frameRaw}, value...), nil
	}
	return append(header, compressed[:size]...), nil
}

func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, errCorruptFrame
	}
	switch frame[0] {
	case frameRaw:
		return cloneBytes(frame[1:]), nil
	case frameLZ4:
		size, n := binary.Uvarint(frame[1:])
		if n <= 0 {
			return nil, errCorruptFrame
		}
		block := frame[1+n:]
		if size > maxDecodedSize || size > uint64(len(block))*maxBlockRatio {
			return nil, fmt.Errorf("%w: declared size %d", errCorruptFrame, size)
		}
		out := make([]byte, size)
		written, err := lz4.UncompressBlock(block, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		if uint64(written) != size {
			return nil, errCorruptFrame
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: marker %d", errCorruptFrame, frame[0])
	}
}

var _ KV = (*Compressed)(nil)
