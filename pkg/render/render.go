// Package render writes result sets as a terminal table, CSV or JSON.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Format is an output encoding
type Format int

const (
	FormatTable Format = iota
	FormatCSV
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "table"
	}
}

// ParseFormat parses "table", "csv" or "json"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatTable, fmt.Errorf("unknown output format %q (want table, csv or json)", s)
	}
}

// Renderer writes result sets to w in one format
type Renderer struct {
	w      io.Writer
	format Format
}

// New creates a renderer
func New(w io.Writer, format Format) *Renderer {
	return &Renderer{w: w, format: format}
}

// Format returns the renderer's output format
func (r *Renderer) Format() Format {
	return r.format
}

// grid is a result set in both tabular and JSON form
type grid struct {
	headers []string
	rows    [][]string
	numeric map[int]bool // right-aligned columns in table output
	value   any          // JSON document
}

func (r *Renderer) write(g grid) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(g.value); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	case FormatCSV:
		cw := csv.NewWriter(r.w)
		if err := cw.Write(g.headers); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		if err := cw.WriteAll(g.rows); err != nil {
			return fmt.Errorf("failed to write CSV rows: %w", err)
		}
		return nil
	default:
		_, err := fmt.Fprintln(r.w, r.table(g).Render())
		return err
	}
}

var (
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numericStyle = cellStyle.Align(lipgloss.Right)
	headerStyle  = cellStyle.Bold(true)
)

func (r *Renderer) table(g grid) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(g.headers...).
		Rows(g.rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case g.numeric[col]:
				return numericStyle
			default:
				return cellStyle
			}
		})
}

// nullText is shown for undefined values in table output; CSV leaves the cell empty
func (r *Renderer) nullText() string {
	if r.format == FormatTable {
		return "n/a"
	}
	return ""
}

func (r *Renderer) optional(s *string) string {
	if s == nil {
		return r.nullText()
	}
	return *s
}

func columns(idx ...int) map[int]bool {
	m := make(map[int]bool, len(idx))
	for _, i := range idx {
		m[i] = true
	}
	return m
}
