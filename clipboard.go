package templatesheet

import "strings"

// FormatTSV renders records as tab-separated values under the header of kind, one line
// per record, lines joined by "\n" with no trailing newline. Cells are not quoted.
func FormatTSV[R Record](kind Kind, records []R) string {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(kind.Header(), "\t"))
	for _, r := range records {
		lines = append(lines, strings.Join(r.Cells(), "\t"))
	}
	return strings.Join(lines, "\n")
}

// TSV renders the batch with FormatTSV.
func (b Batch) TSV() string { return FormatTSV(b.Kind, b.Records) }

// DefaultPageSize is the number of rows shown per preview page.
const DefaultPageSize = 10

// PageInfo locates one preview page. Start and End index into the records, End
// exclusive; Page is clamped to [1, Pages].
type PageInfo struct {
	Page  int
	Start int
	End   int
	Total int
	Pages int
}

// Paginate computes the bounds of page within total rows.
func Paginate(total, page, size int) PageInfo {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	return PageInfo{Page: page, Start: start, End: end, Total: total, Pages: pages}
}
