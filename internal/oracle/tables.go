package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"metric-oracle/internal/storage"
)

// Keyspace layout. Each logical table owns a prefix in one KV backend.
var (
	configKey     = []byte("config")
	latestPrefix  = []byte("latest/")
	historyPrefix = []byte("history/")
	pricePrefix   = []byte("price/")
)

func prefixed(prefix []byte, id string) []byte {
	key := make([]byte, 0, len(prefix)+len(id))
	key = append(key, prefix...)
	return append(key, id...)
}

func latestKey(metricKey string) []byte  { return prefixed(latestPrefix, metricKey) }
func historyKey(metricKey string) []byte { return prefixed(historyPrefix, metricKey) }
func priceKey(composite string) []byte   { return prefixed(pricePrefix, composite) }

func loadJSON(ctx context.Context, kv storage.KV, key []byte, out any) (bool, error) {
	raw, err := kv.Load(ctx, key)
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

func scanJSON[T any](ctx context.Context, kv storage.KV, prefix []byte) ([]T, error) {
	entries, err := kv.RangeScan(ctx, prefix, storage.Ascending)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, entry := range entries {
		if !bytes.HasPrefix(entry.Key, prefix) {
			continue
		}
		var item T
		if err := json.Unmarshal(entry.Value, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", entry.Key, err)
		}
		out = append(out, item)
	}
	return out, nil
}
