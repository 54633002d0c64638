package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nikitaxru/templatesheet"
)

// previewCellWidth caps a preview column; longer cells end in "...".
const previewCellWidth = 40

func newPreviewCmd(root *rootOptions) *cobra.Command {
	var page, size int

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Print one page of a template file's rows as a table",
		Long: `Print a page of rows as an aligned table. Forms get an extra Category
column with the field type's icon and color.

Example:
  templatesheet preview --kind forms acme_Intake.json --page 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := root.parseKind()
			if err != nil {
				return err
			}
			file, err := readFile(args[0])
			if err != nil {
				return err
			}
			b, err := templatesheet.FlattenFile(kind, file)
			if err != nil {
				return &templatesheet.DocumentError{File: file.Name, Err: err}
			}
			return writePreview(cmd.OutOrStdout(), b, page, size)
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().IntVarP(&size, "size", "n", templatesheet.DefaultPageSize, "Rows per page")
	return cmd
}

func writePreview(w io.Writer, b templatesheet.Batch, page, size int) error {
	info := templatesheet.Paginate(len(b.Records), page, size)
	header := b.Kind.Header()
	if b.Kind == templatesheet.Forms {
		header = append(header, "Category")
	}
	rows := make([][]string, 0, info.End-info.Start)
	for _, r := range b.Records[info.Start:info.End] {
		row := r.Cells()
		if fr, ok := r.(templatesheet.FormRecord); ok {
			row = append(row, fmt.Sprintf("%s (%s)",
				templatesheet.CategoryIcon(fr.FieldTypeCode), templatesheet.CategoryColor(fr.FieldTypeCode).Class()))
		}
		rows = append(rows, row)
	}

	if _, err := fmt.Fprintf(w, "%s\n\n", b.Title); err != nil {
		return err
	}
	if _, err := io.WriteString(w, renderTable(header, rows)); err != nil {
		return err
	}
	first := info.Start + 1
	if info.Total == 0 {
		first = 0
	}
	_, err := fmt.Fprintf(w, "\nShowing %d to %d of %d rows (page %d of %d)\n",
		first, info.End, info.Total, info.Page, info.Pages)
	return err
}

func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if w := runewidth.StringWidth(clipCell(cell)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i, width := range widths {
			cell := ""
			if i < len(cells) {
				cell = clipCell(cells[i])
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(widths)-1 {
				sb.WriteString(cell)
				continue
			}
			sb.WriteString(runewidth.FillRight(cell, width))
		}
		sb.WriteString("\n")
	}
	writeRow(header)
	rule := make([]string, len(widths))
	for i, width := range widths {
		rule[i] = strings.Repeat("-", width)
	}
	writeRow(rule)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

// clipCell keeps a cell on one line within previewCellWidth.
func clipCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.Truncate(s, previewCellWidth, "...")
}
