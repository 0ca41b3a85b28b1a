package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/metriq/internal/runner"
	"github.com/leapstack-labs/metriq/pkg/types"
)

// renderResponse prints a query response in the requested format.
func renderResponse(w io.Writer, resp *runner.Response, format string, raw bool) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "csv":
		return renderCSV(w, resp, raw)
	default:
		return renderTable(w, resp, raw)
	}
}

func cellText(v types.ResultValue, raw bool) string {
	if raw {
		if v.Raw == nil {
			return ""
		}
		return fmt.Sprintf("%v", v.Raw)
	}
	return v.Formatted
}

func renderTable(w io.Writer, resp *runner.Response, raw bool) error {
	if len(resp.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(resp.ColumnOrder))
	for i, id := range resp.ColumnOrder {
		label := id
		if d, ok := resp.Fields[id]; ok && d.Label != "" {
			label = d.Label
		}
		header[i] = label
	}
	t.AppendHeader(header)

	for _, row := range resp.Rows {
		cells := make(table.Row, len(resp.ColumnOrder))
		for i, id := range resp.ColumnOrder {
			cells[i] = cellText(row[id], raw)
		}
		t.AppendRow(cells)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(resp.Rows))
	return nil
}

func renderCSV(w io.Writer, resp *runner.Response, raw bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resp.ColumnOrder); err != nil {
		return err
	}
	for _, row := range resp.Rows {
		record := make([]string, len(resp.ColumnOrder))
		for i, id := range resp.ColumnOrder {
			record[i] = cellText(row[id], raw)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
