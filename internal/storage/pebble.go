package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// Pebble persists oracle tables in a local pebble database.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble database under dir.
func OpenPebble(dir string) (*Pebble, error) {
	if dir == "" {
		return nil, errors.New("storage.path is required for the pebble driver")
	}
	db, err := pebble.Open(filepath.Join(dir, "oracle.db"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Pebble{db: db}, nil
}

// Load reads a single key.
func (p *Pebble) Load(ctx context.Context, key []byte) ([]byte, error) {
	if p.db == nil {
		return nil, ErrClosed
	}
	val, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()
	return cloneBytes(val), nil
}

// Save writes a single key with fsync.
func (p *Pebble) Save(ctx context.Context, key, value []byte) error {
	if p.db == nil {
		return ErrClosed
	}
	return p.db.Set(key, value, pebble.Sync)
}

// RangeScan iterates every key carrying prefix.
func (p *Pebble) RangeScan(ctx context.Context, prefix []byte, order Order) ([]Entry, error) {
	if p.db == nil {
		return nil, ErrClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: PrefixEnd(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("pebble iterator: %w", err)
	}
	defer iter.Close()

	entries := make([]Entry, 0)
	if order == Descending {
		for valid := iter.Last(); valid; valid = iter.Prev() {
			entries = append(entries, Entry{Key: cloneBytes(iter.Key()), Value: cloneBytes(iter.Value())})
		}
	} else {
		for valid := iter.First(); valid; valid = iter.Next() {
			entries = append(entries, Entry{Key: cloneBytes(iter.Key()), Value: cloneBytes(iter.Value())})
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("pebble iterate: %w", err)
	}
	return entries, nil
}

// Batch commits all ops in one pebble batch.
func (p *Pebble) Batch(ctx context.Context, ops []Op) error {
	if p.db == nil {
		return ErrClosed
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Type {
		case OpPut:
			if err := batch.Set(op.Key, op.Value, nil); err != nil {
				return err
			}
		case OpDelete:
			if err := batch.Delete(op.Key, nil); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
	}

	return batch.Commit(pebble.Sync)
}

// Close flushes and closes the database.
func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

var _ KV = (*Pebble)(nil)
