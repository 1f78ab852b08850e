package storage

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned by Load when the key does not exist.
	ErrKeyNotFound = errors.New("storage: key not found")
	// ErrClosed is returned when operating on a closed backend.
	ErrClosed = errors.New("storage: backend closed")
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// KV is the key-value backend the oracle tables are persisted in.
// Point operations are individually atomic; Batch applies all ops or none.
type KV interface {
	Load(ctx context.Context, key []byte) ([]byte, error)
	Save(ctx context.Context, key, value []byte) error
	RangeScan(ctx context.Context, prefix []byte, order Order) ([]Entry, error)
	Batch(ctx context.Context, ops []Op) error
	Close() error
}

// PrefixEnd returns the smallest key greater than every key carrying prefix,
// or nil when no such bound exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func reverseEntries(entries []Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}
