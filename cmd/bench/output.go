package main

import (
	"fmt"
	"io"
	"time"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/benchmark"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func printSummary(w io.Writer, sums []benchmark.Summary) {
	if len(sums) == 0 {
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Backend", "Variant", "Mode", "Order", "Runs", "Mean (s)", "Std (s)", "Mismatches"})
	for _, s := range sums {
		t.AppendRow(table.Row{
			s.Backend, s.Variant, s.Mode, s.OrderBy, s.Count,
			fmt.Sprintf("%.6f", s.Mean), fmt.Sprintf("%.6f", s.StdDev), s.Mismatches,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()
}

// printResult renders records with their field names as the header.
func printResult(w io.Writer, res aggregate.Result) {
	records := res.Records()
	if len(records) == 0 {
		fmt.Fprintf(w, "no rows (mode %s)\n", res.Mode)
		return
	}
	t := newTable(w)
	var header table.Row
	for _, f := range records[0].Fields() {
		header = append(header, f.Name)
	}
	t.AppendHeader(header)
	for _, r := range records {
		var row table.Row
		for _, f := range r.Fields() {
			row = append(row, cell(f.Value))
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d rows", len(records))})
	t.Render()
}

func cell(v any) any {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case *string:
		if x == nil {
			return "NULL"
		}
		return *x
	case float64:
		return fmt.Sprintf("%.2f", x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return v
}
