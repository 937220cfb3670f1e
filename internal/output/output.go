// Package output renders command results for the terminal.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Formats lists what --output accepts.
var Formats = []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown}

func ValidFormat(f string) bool {
	for _, ok := range Formats {
		if f == ok {
			return true
		}
	}
	return false
}

func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes aligned columns. Short rows are padded with empty cells.
func Table(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(pad(r, len(headers)), "\t"))
	}
	return tw.Flush()
}

func CSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(pad(r, len(headers))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Markdown writes a GitHub-style pipe table.
func Markdown(w io.Writer, headers []string, rows [][]string) error {
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	lines := []string{mdRow(headers), mdRow(sep)}
	for _, r := range rows {
		lines = append(lines, mdRow(pad(r, len(headers))))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func mdRow(cells []string) string {
	esc := make([]string, len(cells))
	for i, c := range cells {
		esc[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return "| " + strings.Join(esc, " | ") + " |"
}

// Render writes v as JSON, or headers and rows in the tabular format.
func Render(w io.Writer, format string, v any, headers []string, rows [][]string) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, v)
	case FormatCSV:
		return CSV(w, headers, rows)
	case FormatMarkdown:
		return Markdown(w, headers, rows)
	case FormatTable, "":
		return Table(w, headers, rows)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func pad(r []string, n int) []string {
	if len(r) >= n {
		return r
	}
	out := make([]string, n)
	copy(out, r)
	return out
}
