package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/edvin/dbaas/internal/resource"
)

// Printer renders command results as either tables or JSON, per the output
// flag. Results go to stdout; diagnostics never do.
type Printer struct {
	out  io.Writer
	json bool
}

func NewPrinter(out io.Writer, jsonOutput bool) *Printer {
	return &Printer{out: out, json: jsonOutput}
}

// Record renders a single resource as a two-column property table.
func (p *Printer) Record(rec resource.Record) error {
	if p.json {
		return p.writeJSON(rec)
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(p.out)
	table.SetHeader([]string{"Property", "Value"})
	table.SetAutoWrapText(false)
	for _, k := range keys {
		table.Append([]string{k, cellValue(rec[k])})
	}
	table.Render()
	return nil
}

// List renders records with the given columns, one row each.
func (p *Printer) List(columns []string, records []resource.Record) error {
	if p.json {
		return p.writeJSON(records)
	}

	table := tablewriter.NewWriter(p.out)
	table.SetHeader(columns)
	table.SetAutoWrapText(false)
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			if col == "id" {
				row[i] = rec.ID()
				continue
			}
			row[i] = cellValue(rec[col])
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

// Rows renders pre-built rows, for results that are not resource records.
func (p *Printer) Rows(columns []string, rows [][]string) error {
	if p.json {
		out := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			m := map[string]string{}
			for i, col := range columns {
				if i < len(row) {
					m[col] = row[i]
				}
			}
			out = append(out, m)
		}
		return p.writeJSON(out)
	}

	table := tablewriter.NewWriter(p.out)
	table.SetHeader(columns)
	table.SetAutoWrapText(false)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	return nil
}

// Confirm prints the short confirmation line of a mutating operation that
// returned no body.
func (p *Printer) Confirm(format string, args ...any) {
	if p.json {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cellValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return fmt.Sprintf("%t", t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
