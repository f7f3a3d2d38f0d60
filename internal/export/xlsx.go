// Package export renders canonical documents for people to review.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

// Sheet names in workbook order.
const (
	SheetDocument = "Document"
	SheetLines    = "Lines"
	SheetTotals   = "Totals"
	SheetUnmapped = "Unmapped"
	SheetReport   = "Report"
)

// Leading columns and rows; anything else follows in name order.
var (
	lineColumnOrder = []string{"description", "qty", "unit_price", "amount", "tax_rate"}
	totalOrder      = []string{"subtotal", "tax", "grand_total"}
	docFieldOrder   = []string{"type", "document_no", "vendor", "issue_date", "due_date", "currency"}
)

// Workbook builds an xlsx workbook for doc and report. Either may be nil;
// the matching sheets are then left with headers only.
func Workbook(doc *cdm.Document, report *cdm.Report) (*excelize.File, error) {
	wb := excelize.NewFile()
	if err := wb.SetSheetName(wb.GetSheetName(0), SheetDocument); err != nil {
		wb.Close()
		return nil, err
	}
	for _, name := range []string{SheetLines, SheetTotals, SheetUnmapped, SheetReport} {
		if _, err := wb.NewSheet(name); err != nil {
			wb.Close()
			return nil, err
		}
	}

	header, err := wb.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		wb.Close()
		return nil, err
	}

	w := &sheetWriter{wb: wb, header: header}
	w.documentSheet(doc)
	w.linesSheet(doc)
	w.totalsSheet(doc)
	w.unmappedSheet(doc)
	w.reportSheet(report)
	if w.err != nil {
		wb.Close()
		return nil, w.err
	}
	return wb, nil
}

// WriteXLSX writes the workbook for doc and report to out.
func WriteXLSX(out io.Writer, doc *cdm.Document, report *cdm.Report) error {
	wb, err := Workbook(doc, report)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer wb.Close()

	if err := wb.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetWriter appends rows and keeps the first error.
type sheetWriter struct {
	wb     *excelize.File
	header int
	err    error
}

func (w *sheetWriter) row(sheet string, rowNum int, values []any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.wb.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) headerRow(sheet string, titles ...string) {
	values := make([]any, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	w.row(sheet, 1, values)
	if w.err != nil || len(titles) == 0 {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(titles), 1)
	if err != nil {
		w.err = err
		return
	}
	if w.err = w.wb.SetCellStyle(sheet, "A1", last, w.header); w.err != nil {
		return
	}
	lastCol, _ := excelize.ColumnNumberToName(len(titles))
	w.err = w.wb.SetColWidth(sheet, "A", lastCol, 18)
}

func (w *sheetWriter) documentSheet(doc *cdm.Document) {
	w.headerRow(SheetDocument, "field", "value")
	if doc == nil {
		return
	}
	for i, key := range ordered(keysOf(doc.Doc), docFieldOrder) {
		w.row(SheetDocument, i+2, []any{key, cellValue(doc.Doc[key])})
	}
}

func (w *sheetWriter) linesSheet(doc *cdm.Document) {
	var columns []string
	if doc != nil {
		seen := map[string]bool{}
		var keys []string
		for _, line := range doc.Lines {
			for k := range line {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
		columns = ordered(keys, lineColumnOrder)
	}
	w.headerRow(SheetLines, append([]string{"#"}, columns...)...)
	if doc == nil {
		return
	}
	for i, line := range doc.Lines {
		values := []any{i + 1}
		for _, c := range columns {
			values = append(values, cellValue(line[c]))
		}
		w.row(SheetLines, i+2, values)
	}
}

func (w *sheetWriter) totalsSheet(doc *cdm.Document) {
	w.headerRow(SheetTotals, "total", "amount")
	if doc == nil {
		return
	}
	keys := make([]string, 0, len(doc.Totals))
	for k := range doc.Totals {
		keys = append(keys, k)
	}
	for i, key := range ordered(keys, totalOrder) {
		w.row(SheetTotals, i+2, []any{key, doc.Totals[key]})
	}
}

func (w *sheetWriter) unmappedSheet(doc *cdm.Document) {
	w.headerRow(SheetUnmapped, "field", "value_preview", "source")
	if doc == nil {
		return
	}
	for i, u := range doc.Metadata.UnmappedFields {
		w.row(SheetUnmapped, i+2, []any{u.Field, u.ValuePreview, u.Source})
	}
}

func (w *sheetWriter) reportSheet(report *cdm.Report) {
	w.headerRow(SheetReport, "level", "message")
	if report == nil {
		return
	}
	n := 2
	add := func(level, msg string) {
		w.row(SheetReport, n, []any{level, msg})
		n++
	}
	for _, e := range report.Errors {
		add("error", e)
	}
	for _, e := range report.Warnings {
		add("warning", e)
	}
	for _, info := range report.Info {
		add("info", jsonText(info))
	}
}

// ordered returns keys with the names in first leading, in that order,
// followed by the rest sorted.
func ordered(keys, first []string) []string {
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}
	out := make([]string, 0, len(keys))
	for _, k := range first {
		if present[k] {
			out = append(out, k)
			delete(present, k)
		}
	}
	rest := make([]string, 0, len(present))
	for k := range present {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// cellValue keeps scalars typed and renders composite values as JSON.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string, bool, float64, float32, int, int64:
		return t
	}
	return jsonText(v)
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
