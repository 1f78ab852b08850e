package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"metric-oracle/internal/oracle"
)

// Show prints the latest metric of every key and every derived price. With a
// key it prints that key's most recent history instead.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	o, closeOracle, err := a.openOracle(ctx)
	if err != nil {
		return err
	}
	defer closeOracle()

	if opts.Key != "" {
		recent, err := o.RecentMetrics(ctx, opts.Key, opts.Limit)
		if err != nil {
			return err
		}
		return a.writeMetrics(recent.Metrics)
	}

	latest, err := o.AllLatestMetrics(ctx)
	if err != nil {
		return err
	}
	if len(latest.Metrics) == 0 {
		fmt.Fprintln(a.Out, "no metrics found")
	} else if err := a.writeMetrics(latest.Metrics); err != nil {
		return err
	}

	prices, err := o.AllPrices(ctx)
	if err != nil {
		return err
	}
	if len(prices) == 0 {
		return nil
	}

	fmt.Fprintln(a.Out)
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Denom\tBase\tExchange Rate\tLast Updated (UTC)")
	for _, price := range prices {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			price.Denom,
			price.BaseDenom,
			price.ExchangeRate.String(),
			formatUnix(price.LastUpdated),
		)
	}
	return writer.Flush()
}

func (a *App) writeMetrics(metrics []oracle.Metric) error {
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Key\tValue\tType\tUpdated (UTC)\tBlock\tAttributes")
	for _, m := range metrics {
		attrs := ""
		if m.Metadata.Attributes != nil {
			attrs = sanitizeInline(*m.Metadata.Attributes)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\t%s\n",
			m.Key,
			m.Value,
			m.Category,
			formatUnix(m.Metadata.UpdateTime),
			m.Metadata.BlockHeight,
			attrs,
		)
	}
	return writer.Flush()
}

func formatUnix(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
