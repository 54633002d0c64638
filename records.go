package templatesheet

import (
	"fmt"
	"strings"
)

// Kind selects the flattener and the sheet layout for a batch.
type Kind string

const (
	Forms Kind = "forms"
	Views Kind = "views"
	Roles Kind = "roles"
)

var kinds = []Kind{Forms, Views, Roles}

// ParseKind parses a resource kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if string(k) == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string { return string(k) }

type kindLayout struct {
	header []string
	widths []float64
	prefix string
}

var layouts = map[Kind]kindLayout{
	Forms: {
		header: []string{"Form Name", "Page", "Section", "Field Name", "Field Type", "Required", "Description / Options"},
		widths: []float64{25, 20, 20, 30, 15, 10, 40},
		prefix: "Form",
	},
	Views: {
		header: []string{"View Name", "Column", "Value Definition", "Data Type", "Description / Options"},
		widths: []float64{25, 25, 50, 15, 40},
		prefix: "View",
	},
	Roles: {
		header: []string{"Role", "Web Modules", "Mobile Modules"},
		widths: []float64{25, 50, 50},
		prefix: "Role",
	},
}

// Header returns a copy of the column names for the kind.
func (k Kind) Header() []string { return append([]string(nil), layouts[k].header...) }

// Widths returns a copy of the column width hints, in characters.
func (k Kind) Widths() []float64 { return append([]float64(nil), layouts[k].widths...) }

// SheetPrefix is the stem of ordinal fallback sheet names.
func (k Kind) SheetPrefix() string {
	if p := layouts[k].prefix; p != "" {
		return p
	}
	return "Sheet"
}

// Record is one flattened output row.
type Record interface {
	Kind() Kind
	// Cells returns the row in header order.
	Cells() []string
	// Fields returns the row keyed by field name, for filters and layouts.
	Fields() map[string]any
}

// FormRecord is one form field.
type FormRecord struct {
	FormTitle     string
	PageTitle     string
	SectionTitle  string
	FieldName     string
	FieldType     string
	FieldTypeCode string
	IsRequired    bool
	Description   string
	Conditional   bool
}

func (FormRecord) Kind() Kind { return Forms }

func (r FormRecord) Cells() []string {
	return []string{r.FormTitle, r.PageTitle, r.SectionTitle, r.FieldName, r.FieldType, yesNo(r.IsRequired), r.Description}
}

func (r FormRecord) Fields() map[string]any {
	return map[string]any{
		"formTitle":     r.FormTitle,
		"pageTitle":     r.PageTitle,
		"sectionTitle":  r.SectionTitle,
		"fieldName":     r.FieldName,
		"fieldType":     r.FieldType,
		"fieldTypeCode": r.FieldTypeCode,
		"isRequired":    r.IsRequired,
		"description":   r.Description,
		"conditional":   r.Conditional,
	}
}

// ViewRecord is one view column.
type ViewRecord struct {
	ViewTitle       string
	ColumnTitle     string
	DataType        string
	ValueDefinition string
	Description     string
}

func (ViewRecord) Kind() Kind { return Views }

func (r ViewRecord) Cells() []string {
	return []string{r.ViewTitle, r.ColumnTitle, r.ValueDefinition, r.DataType, r.Description}
}

func (r ViewRecord) Fields() map[string]any {
	return map[string]any{
		"viewTitle":       r.ViewTitle,
		"columnTitle":     r.ColumnTitle,
		"dataType":        r.DataType,
		"valueDefinition": r.ValueDefinition,
		"description":     r.Description,
	}
}

// RoleRecord is one role with its module lists already joined.
type RoleRecord struct {
	RoleTitle     string
	WebModules    string
	MobileModules string
}

func (RoleRecord) Kind() Kind { return Roles }

func (r RoleRecord) Cells() []string { return []string{r.RoleTitle, r.WebModules, r.MobileModules} }

func (r RoleRecord) Fields() map[string]any {
	return map[string]any{
		"roleTitle":     r.RoleTitle,
		"webModules":    r.WebModules,
		"mobileModules": r.MobileModules,
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Batch holds the records of one uploaded document, destined for one sheet.
type Batch struct {
	Title   string
	Kind    Kind
	Records []Record
}

// NewBatch wraps typed records into a batch.
func NewBatch[R Record](title string, kind Kind, records []R) Batch {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r
	}
	return Batch{Title: title, Kind: kind, Records: out}
}

// Rows returns the cell matrix of the batch without the header.
func (b Batch) Rows() [][]string {
	rows := make([][]string, len(b.Records))
	for i, r := range b.Records {
		rows[i] = r.Cells()
	}
	return rows
}
