// Package report builds the canonical result envelope every catalog entry and
// safe query funnels through. Build is pure: identical inputs always produce
// identical envelopes.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format is a per-column presentation hint.
type Format string

const (
	// FormatCurrency coerces the value to a float rounded to 2 decimals.
	FormatCurrency Format = "currency"
	// FormatNumber coerces the value to an integer.
	FormatNumber Format = "number"
)

// Record maps column name to cell value for one row.
type Record map[string]any

// Envelope is the structured response unit shared by all reports.
type Envelope struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
	Data        []Record `json:"data"`
	Markdown    string   `json:"markdown"`
	Summary     string   `json:"summary,omitempty"`
}

type buildConfig struct {
	summary string
	formats map[int]Format
}

// Option customises Build.
type Option func(*buildConfig)

// WithSummary appends an analysis section to the rendered markdown and sets
// the envelope summary.
func WithSummary(s string) Option {
	return func(c *buildConfig) { c.summary = s }
}

// WithFormats applies per-column-index format hints. Unknown format kinds and
// unmapped columns pass values through unmodified.
func WithFormats(f map[int]Format) Option {
	return func(c *buildConfig) { c.formats = f }
}

// Build converts raw (columns, rows) into an Envelope. Row and column order
// are preserved; every record has exactly one entry per column.
func Build(title, description string, columns []string, rows [][]any, opts ...Option) *Envelope {
	var cfg buildConfig
	for _, o := range opts {
		o(&cfg)
	}

	data := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(columns))
		for i, col := range columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if f, ok := cfg.formats[i]; ok {
				v = applyFormat(f, v)
			}
			rec[col] = v
		}
		data = append(data, rec)
	}

	var md strings.Builder
	fmt.Fprintf(&md, "## %s\n\n*%s*\n\n", title, description)
	md.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	md.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")
	for _, rec := range data {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = stringify(rec[col])
		}
		md.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if cfg.summary != "" {
		fmt.Fprintf(&md, "\n### Analysis\n%s\n", cfg.summary)
	}

	return &Envelope{
		Title:       title,
		Description: description,
		Columns:     columns,
		Data:        data,
		Markdown:    md.String(),
		Summary:     cfg.summary,
	}
}

func applyFormat(f Format, v any) any {
	switch f {
	case FormatCurrency:
		if n, ok := toFloat(v); ok {
			return math.Round(n*100) / 100
		}
	case FormatNumber:
		if n, ok := toFloat(v); ok {
			return int64(n)
		}
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
