package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"metric-oracle/internal/storage"
)

// writeSet buffers the writes of one call. Reads see the buffered values, and
// nothing reaches the backend until commit hands every write to a single Batch.
type writeSet struct {
	kv      storage.KV
	pending map[string][]byte
	order   []string
}

func newWriteSet(kv storage.KV) *writeSet {
	return &writeSet{kv: kv, pending: make(map[string][]byte)}
}

func (w *writeSet) load(ctx context.Context, key []byte) ([]byte, error) {
	if value, ok := w.pending[string(key)]; ok {
		return value, nil
	}
	return w.kv.Load(ctx, key)
}

func (w *writeSet) loadJSON(ctx context.Context, key []byte, out any) (bool, error) {
	raw, err := w.load(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (w *writeSet) put(key, value []byte) {
	k := string(key)
	if _, ok := w.pending[k]; !ok {
		w.order = append(w.order, k)
	}
	w.pending[k] = value
}

func (w *writeSet) putJSON(key []byte, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	w.put(key, raw)
	return nil
}

func (w *writeSet) ops() []storage.Op {
	ops := make([]storage.Op, 0, len(w.order))
	for _, k := range w.order {
		ops = append(ops, storage.Put([]byte(k), w.pending[k]))
	}
	return ops
}

func (w *writeSet) empty() bool {
	return len(w.order) == 0
}

func (w *writeSet) commit(ctx context.Context) error {
	if w.empty() {
		return nil
	}
	if err := w.kv.Batch(ctx, w.ops()); err != nil {
		return fmt.Errorf("commit writes: %w", err)
	}
	return nil
}
