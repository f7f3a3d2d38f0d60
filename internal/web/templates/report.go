// Package templates renders the HTML views of the web server.
package templates

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

const styles = `body{font-family:sans-serif;margin:2rem;color:#1f2937}
table{border-collapse:collapse;margin-bottom:1.5rem}
th,td{border:1px solid #d1d5db;padding:.25rem .75rem;text-align:left}
th{background:#eff6ff}
.error{color:#b91c1c}.warning{color:#b45309}.ok{color:#047857}`

// ReportParams is the data shown on a document report page.
type ReportParams struct {
	ID       string
	Document *cdm.Document
	Report   *cdm.Report
}

// ReportPage renders a stored document with its validation report.
func ReportPage(p ReportParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.open("Document " + p.ID)
		h.tag("h1", "Document "+p.ID)

		if p.Report != nil {
			h.reportSection(p.Report)
		}
		if doc := p.Document; doc != nil {
			h.tag("h2", "Fields")
			h.table([]string{"field", "value"}, fieldRows(doc.Doc))

			h.tag("h2", "Line items")
			cols, rows := lineRows(doc.Lines)
			h.table(cols, rows)

			h.tag("h2", "Totals")
			h.table([]string{"total", "amount"}, totalRows(doc.Totals))

			if len(doc.Metadata.UnmappedFields) > 0 {
				h.tag("h2", "Unmapped fields")
				var rows [][]string
				for _, u := range doc.Metadata.UnmappedFields {
					rows = append(rows, []string{u.Field, u.ValuePreview, u.Source})
				}
				h.table([]string{"field", "value", "source"}, rows)
			}
		}
		h.close()
		return h.err
	})
}

// ErrorPage renders a user-facing error.
func ErrorPage(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.open("Error")
		h.raw(`<div class="error" role="alert">`)
		h.tag("p", message)
		if action != "" {
			h.tag("p", action)
		}
		h.tag("small", "Code: "+code)
		h.raw("</div>")
		h.close()
		return h.err
	})
}

// html writes escaped markup and keeps the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *html) tag(name, text string) {
	h.raw("<" + name + ">" + templ.EscapeString(text) + "</" + name + ">")
}

func (h *html) open(title string) {
	h.raw(`<!DOCTYPE html><html lang="ja"><head><meta charset="utf-8"><title>`)
	h.raw(templ.EscapeString(title))
	h.raw("</title><style>" + styles + "</style></head><body>")
}

func (h *html) close() { h.raw("</body></html>") }

func (h *html) table(header []string, rows [][]string) {
	h.raw("<table><thead><tr>")
	for _, c := range header {
		h.tag("th", c)
	}
	h.raw("</tr></thead><tbody>")
	for _, row := range rows {
		h.raw("<tr>")
		for _, cell := range row {
			h.tag("td", cell)
		}
		h.raw("</tr>")
	}
	h.raw("</tbody></table>")
}

func (h *html) reportSection(r *cdm.Report) {
	h.tag("h2", "Validation")
	if r.OK() {
		h.raw(`<p class="ok">No validation errors</p>`)
	}
	list := func(class string, items []string) {
		if len(items) == 0 {
			return
		}
		h.raw(`<ul class="` + class + `">`)
		for _, it := range items {
			h.tag("li", it)
		}
		h.raw("</ul>")
	}
	list("error", r.Errors)
	list("warning", r.Warnings)
}

func fieldRows(doc map[string]any) [][]string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, display(doc[k])})
	}
	return rows
}

func lineRows(lines []cdm.Line) ([]string, [][]string) {
	seen := map[string]bool{}
	var cols []string
	for _, line := range lines {
		for k := range line {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = display(line[c])
		}
		rows = append(rows, row)
	}
	return cols, rows
}

func totalRows(totals cdm.Totals) [][]string {
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.FormatFloat(totals[k], 'f', -1, 64)})
	}
	return rows
}

func display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + display(t[k])
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}
