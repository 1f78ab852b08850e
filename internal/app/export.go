package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"metric-oracle/internal/oracle"
	"metric-oracle/internal/service"
)

// point is one exported bucket: the key's value and, when a comparison key
// is given, the value that key held at the same update time.
type point struct {
	Metric    oracle.Metric
	Value     decimal.Decimal
	Compare   *decimal.Decimal
	Deviation *decimal.Decimal
}

// Export renders one key's history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Key == "" {
		return errors.New("--key must be provided")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	o, closeOracle, err := a.openOracle(ctx)
	if err != nil {
		return err
	}
	defer closeOracle()

	history, err := o.HistoricalMetrics(ctx, opts.Key)
	if err != nil {
		return err
	}

	var compare map[uint64]decimal.Decimal
	if opts.CompareKey != "" {
		other, err := o.HistoricalMetrics(ctx, opts.CompareKey)
		if err != nil {
			return err
		}
		compare = indexValues(other.Metrics)
	}

	points := a.buildPoints(filterWindow(history.Metrics, opts.From, opts.To), compare)
	if len(points) == 0 {
		a.Logger.Info().Str("key", opts.Key).Msg("no metrics found for export window")
		return nil
	}

	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting metrics")

	if opts.CSVPath != "" {
		if err := writePointsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePointsPNG(opts.PNGPath, opts, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func filterWindow(metrics []oracle.Metric, from, to *time.Time) []oracle.Metric {
	out := make([]oracle.Metric, 0, len(metrics))
	for _, m := range metrics {
		ts := time.Unix(int64(m.Metadata.UpdateTime), 0)
		if from != nil && ts.Before(*from) {
			continue
		}
		if to != nil && !ts.Before(*to) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func indexValues(metrics []oracle.Metric) map[uint64]decimal.Decimal {
	out := make(map[uint64]decimal.Decimal, len(metrics))
	for _, m := range metrics {
		v, err := decimal.NewFromString(m.Value)
		if err != nil {
			continue
		}
		out[m.Metadata.UpdateTime] = v
	}
	return out
}

func (a *App) buildPoints(metrics []oracle.Metric, compare map[uint64]decimal.Decimal) []point {
	points := make([]point, 0, len(metrics))
	for _, m := range metrics {
		v, err := decimal.NewFromString(m.Value)
		if err != nil {
			a.Logger.Warn().Str("key", m.Key).Uint64("update_time", m.Metadata.UpdateTime).Msg("skip non-decimal value")
			continue
		}
		p := point{Metric: m, Value: v}
		if other, ok := compare[m.Metadata.UpdateTime]; ok {
			dev := service.Deviation(v, other)
			p.Compare = &other
			p.Deviation = &dev
		}
		points = append(points, p)
	}
	return points
}

func downsamplePoints(points []point, max int) []point {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[len(points)-1:]
	}

	result := make([]point, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writePointsCSV(path string, points []point) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"update_time", "update_time_unix", "block_height", "key", "metric_type", "value", "compare_value", "deviation_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		compare, deviation := "", ""
		if p.Compare != nil {
			compare = p.Compare.String()
			deviation = p.Deviation.StringFixed(6)
		}
		record := []string{
			formatUnix(p.Metric.Metadata.UpdateTime),
			strconv.FormatUint(p.Metric.Metadata.UpdateTime, 10),
			strconv.FormatUint(p.Metric.Metadata.BlockHeight, 10),
			p.Metric.Key,
			p.Metric.Category,
			p.Metric.Value,
			compare,
			deviation,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writePointsPNG(path string, opts ExportOptions, points []point) error {
	if len(points) < 2 {
		return errors.New("at least two points are required to render a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	var (
		x          = make([]time.Time, 0, len(points))
		values     = make([]float64, 0, len(points))
		cx         []time.Time
		compared   []float64
		deviations []float64
	)
	for _, p := range points {
		ts := time.Unix(int64(p.Metric.Metadata.UpdateTime), 0).UTC()
		x = append(x, ts)
		values = append(values, p.Value.InexactFloat64())
		if p.Compare != nil {
			cx = append(cx, ts)
			compared = append(compared, p.Compare.InexactFloat64())
			deviations = append(deviations, p.Deviation.InexactFloat64())
		}
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.6f")
	}
	series := []chart.Series{
		chart.TimeSeries{Name: opts.Key, XValues: x, YValues: values},
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Value",
			ValueFormatter: rateFormatter,
		},
	}
	if len(cx) >= 2 {
		series = append(series,
			chart.TimeSeries{Name: opts.CompareKey, XValues: cx, YValues: compared},
			chart.TimeSeries{Name: "Deviation %", XValues: cx, YValues: deviations, YAxis: chart.YAxisSecondary},
		)
		graph.YAxisSecondary = chart.YAxis{
			Name:           "Deviation (%)",
			ValueFormatter: rateFormatter,
		}
	}
	graph.Series = series
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
