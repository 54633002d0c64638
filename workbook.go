package templatesheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	// MaxSheetNameLength is the spreadsheet limit on sheet names, in characters.
	MaxSheetNameLength = excelize.MaxSheetNameLength
	// MaxCellLength is the spreadsheet limit on the text of one cell, in characters.
	MaxCellLength = excelize.TotalCellChars

	headerFill  = "366EF7"
	headerColor = "FFFFFF"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	csvContentType  = "text/csv;charset=utf-8"
)

// Blob is a serialized export ready to be persisted.
type Blob struct {
	Data        []byte
	Extension   string
	ContentType string
}

// FileName suggests a file name for the blob.
func (b *Blob) FileName(base string) string { return base + "." + b.Extension }

// BuildWorkbook serializes batches, one sheet per batch. CSV output carries only the
// first batch.
func BuildWorkbook(batches []Batch, cfg ExportConfig) (*Blob, error) {
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = XLSX
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkNotEmpty(batches); err != nil {
		return nil, err
	}
	switch {
	case cfg.OutputFormat == CSV:
		return writeCSV(batches[0])
	case len(cfg.Layout) > 0:
		return renderLayout(bytes.NewReader(cfg.Layout), batches, cfg.logger(), cfg.TemplateStyle == StyleDetailed)
	default:
		return writeXLSX(batches, cfg)
	}
}

func checkNotEmpty(batches []Batch) error {
	if len(batches) == 0 {
		return fmt.Errorf("%w: no batches", ErrEmptyExport)
	}
	for _, b := range batches {
		if len(b.Records) > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: all %d batches are empty", ErrEmptyExport, len(batches))
}

func writeCSV(b Batch) (*Blob, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(b.Kind.Header()); err != nil {
		return nil, err
	}
	for _, row := range b.Rows() {
		if err := w.Write(truncateRow(row)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return &Blob{Data: buf.Bytes(), Extension: string(CSV), ContentType: csvContentType}, nil
}

func writeXLSX(batches []Batch, cfg ExportConfig) (*Blob, error) {
	f := excelize.NewFile()
	defer f.Close()

	style, err := headerStyle(f)
	if err != nil {
		return nil, err
	}
	a := newAssembler(f, f.GetSheetName(0), cfg.logger())

	for i, b := range batches {
		header, widths, rows := b.Kind.Header(), b.Kind.Widths(), b.Rows()
		fill := func(sheet string) error { return writeTable(f, sheet, header, widths, rows, style) }
		if _, err := a.place(b.Title, b.Kind.SheetPrefix(), i+1, fill); err != nil {
			return nil, err
		}
	}

	if cfg.TemplateStyle == StyleDetailed {
		if err := addSummary(f, a, batches, style); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return &Blob{Data: buf.Bytes(), Extension: string(XLSX), ContentType: xlsxContentType}, nil
}

func headerStyle(f *excelize.File) (int, error) {
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: headerColor},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return 0, fmt.Errorf("header style: %w", err)
	}
	return style, nil
}

// addSummary appends the Summary sheet listing every placed batch. It must run after
// all batches are placed, so that a.names lines up with batches.
func addSummary(f *excelize.File, a *assembler, batches []Batch, style int) error {
	rows := make([][]string, len(batches))
	for i, b := range batches {
		rows[i] = []string{a.names[i], b.Title, string(b.Kind), strconv.Itoa(len(b.Records))}
	}
	fill := func(sheet string) error {
		return writeTable(f, sheet, []string{"Sheet", "Source", "Kind", "Rows"}, []float64{31, 40, 10, 10}, rows, style)
	}
	_, err := a.place("Summary", "Summary", 1, fill)
	return err
}

// writeTable writes a styled header and the rows below it.
func writeTable(f *excelize.File, sheet string, header []string, widths []float64, rows [][]string, style int) error {
	if err := f.SetSheetRow(sheet, "A1", rowValues(header)); err != nil {
		return err
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, rowValues(row)); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func rowValues(row []string) *[]interface{} {
	vals := make([]interface{}, len(row))
	for i, c := range truncateRow(row) {
		vals[i] = c
	}
	return &vals
}

// truncateRow cuts every cell to MaxCellLength characters.
func truncateRow(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = truncateCell(c)
	}
	return out
}

func truncateCell(s string) string {
	if len(s) <= MaxCellLength {
		return s
	}
	r := []rune(s)
	if len(r) <= MaxCellLength {
		return s
	}
	return string(r[:MaxCellLength])
}

// assembler places sheets into a workbook, resolving names.
type assembler struct {
	f      *excelize.File
	blank  string // unused default sheet, renamed by the first placement
	used   map[string]struct{}
	names  []string
	logger *log.Logger
}

func newAssembler(f *excelize.File, blank string, logger *log.Logger) *assembler {
	return &assembler{f: f, blank: blank, used: map[string]struct{}{}, logger: logger}
}

// place creates a sheet for title and fills it. Names are tried in order: the first
// MaxSheetNameLength characters of title, the last ones, then prefix_n for n counting
// up from ordinal. A failed attempt is undone before the next one.
func (a *assembler) place(title, prefix string, ordinal int, fill func(sheet string) error) (string, error) {
	var lastErr error
	for _, name := range titleCandidates(title) {
		if err := a.try(name, fill); err != nil {
			a.logger.Printf("sheet %q: %v", name, err)
			lastErr = err
			continue
		}
		return name, nil
	}
	for n := ordinal; n <= ordinal+len(a.used); n++ {
		name := prefix + "_" + strconv.Itoa(n)
		if err := a.try(name, fill); err != nil {
			lastErr = err
			continue
		}
		a.logger.Printf("sheet %q: using fallback name %q", title, name)
		return name, nil
	}
	return "", fmt.Errorf("%w for %q: %v", ErrSheetNaming, title, lastErr)
}

func (a *assembler) try(name string, fill func(sheet string) error) error {
	key := strings.ToLower(name)
	if _, taken := a.used[key]; taken {
		return fmt.Errorf("name %q already used", name)
	}
	blank := a.blank
	if blank != "" {
		if err := a.f.SetSheetName(blank, name); err != nil {
			return err
		}
	} else if _, err := a.f.NewSheet(name); err != nil {
		return err
	}
	if err := fill(name); err != nil {
		if blank != "" {
			_ = a.f.SetSheetName(name, blank)
		} else {
			_ = a.f.DeleteSheet(name)
		}
		return err
	}
	a.blank = ""
	a.used[key] = struct{}{}
	a.names = append(a.names, name)
	return nil
}

// reserve marks a name as taken without creating a sheet.
func (a *assembler) reserve(name string) { a.used[strings.ToLower(name)] = struct{}{} }

// titleCandidates returns the head and tail of title cut to MaxSheetNameLength
// characters, without duplicates. Control characters are dropped first; the sheet XML
// cannot carry them.
func titleCandidates(title string) []string {
	title = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, title)
	r := []rune(title)
	if len(r) <= MaxSheetNameLength {
		return []string{title}
	}
	head := string(r[:MaxSheetNameLength])
	tail := string(r[len(r)-MaxSheetNameLength:])
	if head == tail {
		return []string{head}
	}
	return []string{head, tail}
}
