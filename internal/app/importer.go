package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"metric-oracle/internal/oracle"
	"metric-oracle/internal/storage"
)

var importColumns = []string{"key", "value", "metric_type", "update_time", "block_height", "attributes"}

// ImportSummary counts the outcome of an import.
type ImportSummary struct {
	Applied  int
	Rejected int
}

// Import replays a CSV of metrics through PostMetric in file order. A dry run
// replays into a scratch in-memory oracle so validation still applies.
func (a *App) Import(ctx context.Context, opts ImportOptions) (ImportSummary, error) {
	sender := opts.Sender
	if sender == "" {
		sender = a.Config.Oracle.AdminAddress
	}
	if sender == "" {
		return ImportSummary{}, errors.New("sender not set; pass --sender or configure oracle.admin_address")
	}

	file, err := os.Open(opts.Path)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	var (
		target *oracle.Oracle
		closer func()
	)
	if opts.DryRun {
		a.Logger.Warn().Msg("import dry-run: nothing is written to storage")
		target, err = oracle.Open(ctx, storage.NewMemory(), oracle.Options{HistoryCapacity: a.Config.Oracle.HistoryCapacity}, a.Logger)
		if err != nil {
			return ImportSummary{}, err
		}
		if err := target.Instantiate(ctx, sender); err != nil {
			return ImportSummary{}, err
		}
		closer = func() {}
	} else {
		target, closer, err = a.openOracle(ctx)
		if err != nil {
			return ImportSummary{}, err
		}
	}
	defer closer()

	summary, err := a.replay(ctx, target, sender, file)
	a.Logger.Info().Int("applied", summary.Applied).Int("rejected", summary.Rejected).Msg("import finished")
	return summary, err
}

func (a *App) replay(ctx context.Context, o *oracle.Oracle, sender string, r io.Reader) (ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return ImportSummary{}, fmt.Errorf("read header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return ImportSummary{}, err
	}

	var summary ImportSummary
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("read line %d: %w", line, err)
		}

		metric, err := parseRecord(record, index)
		if err != nil {
			summary.Rejected++
			a.Logger.Error().Err(err).Int("line", line).Msg("skip unparseable row")
			continue
		}

		if _, err := o.PostMetric(ctx, sender, metric); err != nil {
			if isRejection(err) {
				summary.Rejected++
				a.Logger.Error().Err(err).Int("line", line).Str("key", metric.Key).Msg("metric rejected")
				continue
			}
			return summary, fmt.Errorf("line %d: %w", line, err)
		}
		summary.Applied++
	}

	if summary.Rejected > 0 {
		return summary, fmt.Errorf("%d rows rejected, check the log", summary.Rejected)
	}
	return summary, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range importColumns[:4] {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("import header missing column %q", required)
		}
	}
	return index, nil
}

func field(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func parseRecord(record []string, index map[string]int) (oracle.Metric, error) {
	updateTime, err := parseUpdateTime(field(record, index, "update_time"))
	if err != nil {
		return oracle.Metric{}, err
	}

	var blockHeight uint64
	if raw := strings.TrimSpace(field(record, index, "block_height")); raw != "" {
		blockHeight, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return oracle.Metric{}, fmt.Errorf("parse block_height: %w", err)
		}
	}

	metric := oracle.Metric{
		Key:      field(record, index, "key"),
		Value:    field(record, index, "value"),
		Category: field(record, index, "metric_type"),
		Metadata: oracle.Metadata{UpdateTime: updateTime, BlockHeight: blockHeight},
	}
	if attrs := field(record, index, "attributes"); attrs != "" {
		metric.Metadata.Attributes = &attrs
	}
	return metric, nil
}

// parseUpdateTime accepts unix seconds or an RFC3339 timestamp.
func parseUpdateTime(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("update_time is required")
	}
	if ts, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return ts, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, fmt.Errorf("parse update_time %q: %w", raw, err)
	}
	if t.Before(time.Unix(0, 0)) {
		return 0, fmt.Errorf("update_time %q predates the unix epoch", raw)
	}
	return uint64(t.Unix()), nil
}

func isRejection(err error) bool {
	for _, target := range []error{
		oracle.ErrUnauthorized,
		oracle.ErrInvalidMetricAttributes,
		oracle.ErrInvalidDenom,
		oracle.ErrMalformedValue,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
