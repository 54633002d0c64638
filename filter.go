package templatesheet

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type conditionalRecord interface {
	isConditional() bool
}

func (r FormRecord) isConditional() bool { return r.Conditional }

// rowFilter decides which records reach the workbook.
type rowFilter struct {
	excludeConditional bool
	program            *vm.Program
}

func newRowFilter(cfg ExportConfig) (*rowFilter, error) {
	rf := &rowFilter{excludeConditional: cfg.ExcludeConditionalFields}
	if src := strings.TrimSpace(cfg.Filter); src != "" {
		program, err := expr.Compile(src, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		rf.program = program
	}
	return rf, nil
}

func (rf *rowFilter) active() bool { return rf.excludeConditional || rf.program != nil }

func (rf *rowFilter) keep(r Record) (bool, error) {
	if c, ok := r.(conditionalRecord); ok && rf.excludeConditional && c.isConditional() {
		return false, nil
	}
	if rf.program == nil {
		return true, nil
	}
	out, err := expr.Run(rf.program, r.Fields())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("%w: got %T, want bool", ErrInvalidFilter, out)
	}
	return ok, nil
}

// SelectRecords applies the conditional-field exclusion and the row filter of cfg.
// Batches are copied; the input is not modified.
func SelectRecords(batches []Batch, cfg ExportConfig) ([]Batch, error) {
	rf, err := newRowFilter(cfg)
	if err != nil {
		return nil, err
	}
	if !rf.active() {
		return batches, nil
	}
	out := make([]Batch, len(batches))
	for i, b := range batches {
		kept := make([]Record, 0, len(b.Records))
		for _, r := range b.Records {
			ok, err := rf.keep(r)
			if err != nil {
				return nil, fmt.Errorf("batch %q: %w", b.Title, err)
			}
			if ok {
				kept = append(kept, r)
			}
		}
		out[i] = Batch{Title: b.Title, Kind: b.Kind, Records: kept}
	}
	return out, nil
}
