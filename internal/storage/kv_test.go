package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, string(e.Key))
	}
	return out
}

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv KV) {
	ctx := context.Background()

	_, err := kv.Load(ctx, []byte("latest/missing"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Save(ctx, []byte("latest/b"), []byte("2")))
	require.NoError(t, kv.Batch(ctx, []Op{
		Put([]byte("latest/a"), []byte("1")),
		Put([]byte("latest/c"), []byte("3")),
		Put([]byte("history/a"), []byte("h")),
		Put([]byte("latestz"), []byte("outside")),
	}))

	got, err := kv.Load(ctx, []byte("latest/a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	asc, err := kv.RangeScan(ctx, []byte("latest/"), Ascending)
	require.NoError(t, err)
	assert.Equal(t, []string{"latest/a", "latest/b", "latest/c"}, keysOf(asc))
	assert.Equal(t, []byte("3"), asc[2].Value)

	desc, err := kv.RangeScan(ctx, []byte("latest/"), Descending)
	require.NoError(t, err)
	assert.Equal(t, []string{"latest/c", "latest/b", "latest/a"}, keysOf(desc))

	require.NoError(t, kv.Batch(ctx, []Op{
		Delete([]byte("latest/b")),
		Put([]byte("latest/a"), []byte("11")),
	}))
	_, err = kv.Load(ctx, []byte("latest/b"))
	require.ErrorIs(t, err, ErrKeyNotFound)
	got, err = kv.Load(ctx, []byte("latest/a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("11"), got)

	err = kv.Batch(ctx, []Op{
		Put([]byte("latest/x"), []byte("x")),
		{Type: OpType(42), Key: []byte("latest/y")},
	})
	require.Error(t, err)
	_, err = kv.Load(ctx, []byte("latest/x"))
	require.ErrorIs(t, err, ErrKeyNotFound, "a rejected batch must not apply any op")
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemory()
	exerciseKV(t, kv)

	require.NoError(t, kv.Close())
	_, err := kv.Load(context.Background(), []byte("latest/a"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPebbleKV(t *testing.T) {
	dir := t.TempDir()
	kv, err := OpenPebble(dir)
	require.NoError(t, err)
	exerciseKV(t, kv)
	require.NoError(t, kv.Close())

	reopened, err := OpenPebble(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(context.Background(), []byte("latest/c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
}

func TestOpenPebbleRequiresPath(t *testing.T) {
	_, err := OpenPebble("")
	assert.Error(t, err)
}

func TestCompressedKV(t *testing.T) {
	inner := NewMemory()
	kv := NewCompressed(inner)
	exerciseKV(t, kv)

	ctx := context.Background()
	big := []byte(strings.Repeat(`{"key":"k","value":"1.000000000000000000","metric_type":"redemption_rate"}`, 50))
	require.NoError(t, kv.Save(ctx, []byte("history/k"), big))

	raw, err := inner.Load(ctx, []byte("history/k"))
	require.NoError(t, err)
	assert.Equal(t, frameLZ4, raw[0])
	assert.Less(t, len(raw), len(big))

	got, err := kv.Load(ctx, []byte("history/k"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(big, got))

	require.NoError(t, kv.Save(ctx, []byte("empty"), nil))
	got, err = kv.Load(ctx, []byte("empty"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, err := decodeFrame(nil)
	assert.ErrorIs(t, err, errCorruptFrame)

	_, err = decodeFrame([]byte{9, 1, 2})
	assert.ErrorIs(t, err, errCorruptFrame)

	huge := binary.AppendUvarint([]byte{frameLZ4}, 1<<40)
	_, err = decodeFrame(append(huge, 0x10, 'a'))
	assert.ErrorIs(t, err, errCorruptFrame)

	inflated := binary.AppendUvarint([]byte{frameLZ4}, 4096)
	_, err = decodeFrame(append(inflated, 0x10, 'a'))
	assert.ErrorIs(t, err, errCorruptFrame)
}

type countingKV struct {
	*Memory
	loads int
	fail  bool
}

func (c *countingKV) Load(ctx context.Context, key []byte) ([]byte, error) {
	c.loads++
	return c.Memory.Load(ctx, key)
}

func (c *countingKV) Batch(ctx context.Context, ops []Op) error {
	if c.fail {
		return errors.New("batch failed")
	}
	return c.Memory.Batch(ctx, ops)
}

func TestCachedKV(t *testing.T) {
	exerciseKV(t, mustCached(t, NewMemory()))

	ctx := context.Background()
	inner := &countingKV{Memory: NewMemory()}
	kv := mustCached(t, inner)

	require.NoError(t, kv.Batch(ctx, []Op{Put([]byte("k"), []byte("v1"))}))
	for i := 0; i < 3; i++ {
		got, err := kv.Load(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)
	}
	assert.Equal(t, 0, inner.loads, "batched values are served from cache")

	inner.fail = true
	require.Error(t, kv.Batch(ctx, []Op{Put([]byte("k"), []byte("v2"))}))
	inner.fail = false

	got, err := kv.Load(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got, "a failed batch must not leak into the cache")
	assert.Equal(t, 1, inner.loads)

	hits, misses := kv.Stats()
	assert.Equal(t, uint64(3), hits)
	assert.Equal(t, uint64(1), misses)
}

func mustCached(t *testing.T, inner KV) *Cached {
	t.Helper()
	kv, err := NewCached(inner, 8)
	require.NoError(t, err)
	return kv
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("latest0"), PrefixEnd([]byte("latest/")))
	assert.Equal(t, []byte{0x02}, PrefixEnd([]byte{0x01, 0xff}))
	assert.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
	assert.Nil(t, PrefixEnd(nil))
}
