package templatesheet

import (
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/xuri/excelize/v2"
)

// Layout workbooks describe a custom sheet design. The first sheet is the prototype:
// every batch gets a copy of it rendered with these markers, one per cell:
//   - {{#each rows as r}} ... {{/each}}, optionally {{#each rows as r i}}
//   - {{#if expr}} ... {{else}} ... {{/if}}
//   - {{= expr}} anywhere inside a cell's text
//
// Expressions are expr-lang over title, kind, total, header, rows and the loop
// variables. Marker rows are dropped; every other row keeps its styles, height and
// single-row merges, and column widths are copied from the prototype.

var (
	rxLayoutEach    = regexp.MustCompile(`^\{\{#each\s+(.+?)\s+as\s+([A-Za-z_]\w*)(?:\s+([A-Za-z_]\w*))?\s*\}\}$`)
	rxLayoutEndEach = regexp.MustCompile(`^\{\{/each\}\}$`)
	rxLayoutIf      = regexp.MustCompile(`^\{\{#if\s+(.+?)\}\}$`)
	rxLayoutElse    = regexp.MustCompile(`^\{\{else\}\}$`)
	rxLayoutEndIf   = regexp.MustCompile(`^\{\{/if\}\}$`)
	rxLayoutExpr    = regexp.MustCompile(`\{\{=\s*([\s\S]+?)\s*\}\}`)
)

// layoutScanCols bounds the style scan of a prototype row.
const layoutScanCols = 100

type layoutNode interface{}

type layoutRow struct {
	row   int // 1-based, in the prototype
	cells []layoutCell
}

type layoutCell struct {
	col    int
	tokens []layoutToken
}

type layoutToken struct {
	text string
	expr string // set for {{= }} tokens
}

type layoutEach struct {
	source   string
	itemVar  string
	indexVar string
	children []layoutNode
}

type layoutIf struct {
	cond      string
	thenNodes []layoutNode
	elseNodes []layoutNode
}

type layoutMerge struct{ startCol, endCol int }

type layout struct {
	f        *excelize.File
	sheet    string
	nodes    []layoutNode
	styles   map[int]map[int]int
	heights  map[int]float64
	merges   map[int][]layoutMerge
	widths   map[int]float64
	programs map[string]*vm.Program
}

type renderedRow struct {
	tpl    int
	values map[int]string
}

// RenderLayout renders every batch into a copy of the layout workbook's first sheet.
// Other sheets of the layout are kept as they are.
func RenderLayout(r io.Reader, batches []Batch, logger *log.Logger) (*Blob, error) {
	return renderLayout(r, batches, logger, false)
}

// renderLayout is RenderLayout, followed by the Summary sheet when summary is set.
func renderLayout(r io.Reader, batches []Batch, logger *log.Logger, summary bool) (*Blob, error) {
	if err := checkNotEmpty(batches); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrInvalidLayout)
	}
	l, err := parseLayout(f, sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %s: %v", ErrInvalidLayout, sheets[0], err)
	}

	a := newAssembler(f, "", logger)
	for _, s := range sheets {
		a.reserve(s)
	}
	for i, b := range batches {
		rows, err := l.render(b)
		if err != nil {
			return nil, fmt.Errorf("layout for %q: %w", b.Title, err)
		}
		fill := func(sheet string) error { return l.write(sheet, rows) }
		if _, err := a.place(b.Title, b.Kind.SheetPrefix(), i+1, fill); err != nil {
			return nil, err
		}
	}
	if summary {
		style, err := headerStyle(f)
		if err != nil {
			return nil, err
		}
		if err := addSummary(f, a, batches, style); err != nil {
			return nil, err
		}
	}
	if err := f.DeleteSheet(l.sheet); err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex(a.names[0]); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return &Blob{Data: buf.Bytes(), Extension: string(XLSX), ContentType: xlsxContentType}, nil
}

func parseLayout(f *excelize.File, sheet string) (*layout, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	type frame struct {
		each   *layoutEach
		cond   *layoutIf
		target *[]layoutNode
	}
	var nodes []layoutNode
	var stack []*frame
	appendNode := func(n layoutNode) {
		if len(stack) == 0 {
			nodes = append(nodes, n)
			return
		}
		top := stack[len(stack)-1]
		*top.target = append(*top.target, n)
	}

	l := &layout{
		f:        f,
		sheet:    sheet,
		styles:   map[int]map[int]int{},
		heights:  map[int]float64{},
		merges:   map[int][]layoutMerge{},
		widths:   map[int]float64{},
		programs: map[string]*vm.Program{},
	}
	if err := l.collectMerges(); err != nil {
		return nil, err
	}
	maxCol := 1
	for i, row := range rows {
		rowNum := i + 1
		if len(row) > maxCol {
			maxCol = len(row)
		}
		marker := firstNonEmpty(row)
		switch {
		case rxLayoutEach.MatchString(marker):
			m := rxLayoutEach.FindStringSubmatch(marker)
			each := &layoutEach{source: m[1], itemVar: m[2], indexVar: m[3]}
			stack = append(stack, &frame{each: each, target: &each.children})
		case rxLayoutIf.MatchString(marker):
			cond := &layoutIf{cond: rxLayoutIf.FindStringSubmatch(marker)[1]}
			stack = append(stack, &frame{cond: cond, target: &cond.thenNodes})
		case rxLayoutElse.MatchString(marker):
			if len(stack) == 0 || stack[len(stack)-1].cond == nil {
				return nil, fmt.Errorf("unexpected {{else}} on row %d", rowNum)
			}
			top := stack[len(stack)-1]
			top.target = &top.cond.elseNodes
		case rxLayoutEndEach.MatchString(marker):
			if len(stack) == 0 || stack[len(stack)-1].each == nil {
				return nil, fmt.Errorf("unexpected {{/each}} on row %d", rowNum)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			appendNode(top.each)
		case rxLayoutEndIf.MatchString(marker):
			if len(stack) == 0 || stack[len(stack)-1].cond == nil {
				return nil, fmt.Errorf("unexpected {{/if}} on row %d", rowNum)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			appendNode(top.cond)
		default:
			lr := &layoutRow{row: rowNum}
			for c, raw := range row {
				if raw == "" {
					continue
				}
				lr.cells = append(lr.cells, layoutCell{col: c + 1, tokens: parseLayoutTokens(raw)})
			}
			appendNode(lr)
			l.collectStyles(rowNum)
		}
	}
	if len(stack) != 0 {
		return nil, errors.New("unbalanced each/if blocks")
	}
	l.nodes = nodes
	for c := 1; c <= maxCol; c++ {
		name, _ := excelize.ColumnNumberToName(c)
		if w, err := f.GetColWidth(sheet, name); err == nil {
			l.widths[c] = w
		}
	}
	return l, nil
}

func (l *layout) collectStyles(row int) {
	styles := map[int]int{}
	for col := 1; col <= layoutScanCols; col++ {
		addr, _ := excelize.CoordinatesToCellName(col, row)
		if sid, err := l.f.GetCellStyle(l.sheet, addr); err == nil && sid != 0 {
			styles[col] = sid
		}
	}
	l.styles[row] = styles
	if h, err := l.f.GetRowHeight(l.sheet, row); err == nil {
		l.heights[row] = h
	}
}

// collectMerges records merges spanning a single prototype row. Taller merges would
// overlap the rendered rows and are ignored.
func (l *layout) collectMerges() error {
	merges, err := l.f.GetMergeCells(l.sheet)
	if err != nil {
		return err
	}
	for _, m := range merges {
		c1, r1, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			continue
		}
		c2, r2, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil || r1 != r2 {
			continue
		}
		l.merges[r1] = append(l.merges[r1], layoutMerge{startCol: c1, endCol: c2})
	}
	return nil
}

func firstNonEmpty(row []string) string {
	for _, c := range row {
		if t := strings.TrimSpace(c); t != "" {
			return t
		}
	}
	return ""
}

func parseLayoutTokens(s string) []layoutToken {
	ms := rxLayoutExpr.FindAllStringSubmatchIndex(s, -1)
	if len(ms) == 0 {
		return []layoutToken{{text: s}}
	}
	var toks []layoutToken
	last := 0
	for _, m := range ms {
		if m[0] > last {
			toks = append(toks, layoutToken{text: s[last:m[0]]})
		}
		toks = append(toks, layoutToken{expr: strings.TrimSpace(s[m[2]:m[3]])})
		last = m[1]
	}
	if last < len(s) {
		toks = append(toks, layoutToken{text: s[last:]})
	}
	return toks
}

func layoutEnv(b Batch) map[string]any {
	rows := make([]any, len(b.Records))
	for i, r := range b.Records {
		rows[i] = r.Fields()
	}
	header := make([]any, 0)
	for _, h := range b.Kind.Header() {
		header = append(header, h)
	}
	return map[string]any{
		"title":  b.Title,
		"kind":   string(b.Kind),
		"total":  len(b.Records),
		"header": header,
		"rows":   rows,
	}
}

func (l *layout) render(b Batch) ([]renderedRow, error) {
	var out []renderedRow
	var walk func([]layoutNode, map[string]any) error
	walk = func(nodes []layoutNode, env map[string]any) error {
		for _, n := range nodes {
			switch nn := n.(type) {
			case *layoutRow:
				vals := make(map[int]string, len(nn.cells))
				for _, c := range nn.cells {
					var sb strings.Builder
					for _, tk := range c.tokens {
						if tk.expr == "" {
							sb.WriteString(tk.text)
							continue
						}
						v, err := l.eval(tk.expr, env)
						if err != nil {
							return fmt.Errorf("row %d: %w", nn.row, err)
						}
						sb.WriteString(layoutText(v))
					}
					vals[c.col] = sb.String()
				}
				out = append(out, renderedRow{tpl: nn.row, values: vals})
			case *layoutEach:
				v, err := l.eval(nn.source, env)
				if err != nil {
					return err
				}
				items, _ := v.([]any)
				for i, item := range items {
					scope := make(map[string]any, len(env)+2)
					for k, v := range env {
						scope[k] = v
					}
					scope[nn.itemVar] = item
					if nn.indexVar != "" {
						scope[nn.indexVar] = i
					}
					if err := walk(nn.children, scope); err != nil {
						return err
					}
				}
			case *layoutIf:
				v, err := l.eval(nn.cond, env)
				if err != nil {
					return err
				}
				branch := nn.elseNodes
				if layoutTruthy(v) {
					branch = nn.thenNodes
				}
				if err := walk(branch, env); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(l.nodes, layoutEnv(b)); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *layout) eval(src string, env map[string]any) (any, error) {
	program, ok := l.programs[src]
	if !ok {
		var err error
		if program, err = expr.Compile(src); err != nil {
			return nil, fmt.Errorf("compile %q: %w", src, err)
		}
		l.programs[src] = program
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", src, err)
	}
	return out, nil
}

func (l *layout) write(sheet string, rows []renderedRow) error {
	for i, rr := range rows {
		dst := i + 1
		for col, sid := range l.styles[rr.tpl] {
			addr, _ := excelize.CoordinatesToCellName(col, dst)
			if err := l.f.SetCellStyle(sheet, addr, addr, sid); err != nil {
				return err
			}
		}
		for col, val := range rr.values {
			if val == "" {
				continue
			}
			addr, _ := excelize.CoordinatesToCellName(col, dst)
			if err := l.f.SetCellValue(sheet, addr, truncateCell(val)); err != nil {
				return err
			}
		}
		if h, ok := l.heights[rr.tpl]; ok {
			if err := l.f.SetRowHeight(sheet, dst, h); err != nil {
				return err
			}
		}
		for _, mg := range l.merges[rr.tpl] {
			c1, _ := excelize.CoordinatesToCellName(mg.startCol, dst)
			c2, _ := excelize.CoordinatesToCellName(mg.endCol, dst)
			if err := l.f.MergeCell(sheet, c1, c2); err != nil {
				return err
			}
		}
	}
	for col, w := range l.widths {
		name, _ := excelize.ColumnNumberToName(col)
		if err := l.f.SetColWidth(sheet, name, name, w); err != nil {
			return err
		}
	}
	return nil
}

// layoutText formats an expression result for a cell. String slices are joined with
// ", "; other collections are shown as Go values.
func layoutText(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case int:
		return strconv.Itoa(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case []any:
		strs := make([]string, len(vv))
		for i, it := range vv {
			s, ok := it.(string)
			if !ok {
				return fmt.Sprintf("%v", vv)
			}
			strs[i] = s
		}
		return strings.Join(strs, ", ")
	default:
		return fmt.Sprintf("%v", vv)
	}
}

func layoutTruthy(v any) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case bool:
		return vv
	case string:
		return vv != ""
	case int:
		return vv != 0
	case float64:
		return vv != 0
	case []any:
		return len(vv) > 0
	case map[string]any:
		return len(vv) > 0
	default:
		return true
	}
}
