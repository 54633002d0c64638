package templatesheet

import (
	"encoding/json"
	"strings"
)

const (
	noneTitle       = "None"
	defaultDataType = "Text"
	moduleSeparator = ", "
)

// FlattenForm emits one record per field in page, section, field order.
func FlattenForm(doc *FormTemplate) []FormRecord {
	if doc == nil {
		return nil
	}
	formTitle := doc.Title.Or(noneTitle)
	var out []FormRecord
	for _, page := range doc.Pages {
		if page == nil {
			continue
		}
		for _, section := range page.Sections {
			if section == nil {
				continue
			}
			for _, field := range section.Fields {
				if field == nil {
					continue
				}
				out = append(out, FormRecord{
					FormTitle:     formTitle,
					PageTitle:     page.Title.Or(noneTitle),
					SectionTitle:  section.Title.Or(noneTitle),
					FieldName:     field.Title.Or(string(field.ID)),
					FieldType:     DisplayLabel(string(field.FieldType)),
					FieldTypeCode: string(field.FieldType),
					IsRequired:    field.Required.True(),
					Description:   describeField(field),
					Conditional:   truthy(field.DisplayWhen) || truthy(field.EditableWhen) || truthy(field.RequiredWhen),
				})
			}
		}
	}
	return out
}

// describeField lists the behaviour markers of a field in a fixed order. Only the
// displayWhen payload is inlined. A field is not editable only for a literal
// "editable": false.
func describeField(f *Field) string {
	var parts []string
	if truthy(f.AutoUpdate) {
		parts = append(parts, "autoUpdate: "+compactJSON(f.AutoUpdate))
	}
	if f.Editable.LiteralFalse() {
		parts = append(parts, "* Not Editable")
	}
	if truthy(f.DisplayWhen) {
		parts = append(parts, "* Conditionally displayed *; displayWhen: "+compactJSON(f.DisplayWhen))
	}
	if truthy(f.EditableWhen) {
		parts = append(parts, "* Conditionally editable *")
	}
	if truthy(f.RequiredWhen) {
		parts = append(parts, "* Conditionally required *")
	}
	return strings.Join(parts, ";")
}

// FlattenView emits one record per column in document order.
func FlattenView(doc *ViewTemplate) []ViewRecord {
	if doc == nil {
		return nil
	}
	viewTitle := ViewTitle(doc)
	var out []ViewRecord
	for _, col := range doc.Columns {
		if col == nil {
			continue
		}
		out = append(out, ViewRecord{
			ViewTitle:       viewTitle,
			ColumnTitle:     col.Title.Or(noneTitle),
			DataType:        col.DataType.Or(defaultDataType),
			ValueDefinition: StringifyJSON(col.Value),
		})
	}
	return out
}

// ViewTitle names a view: the part of its id after the organization prefix, else the
// text of its title expression, else "None".
func ViewTitle(doc *ViewTemplate) string {
	if _, name, ok := strings.Cut(string(doc.ID), "_"); ok {
		if name, _, _ = strings.Cut(name, "_"); name != "" {
			return name
		}
	}
	if t, ok := objectOf(doc.Title)["title"]; ok {
		var s string
		switch e := ParseExpr(t).(type) {
		case Display:
			s = e.Text
		default:
			s = Stringify(e)
		}
		if s != "" {
			return s
		}
	}
	if s := leafText(doc.Title); s != "" && doc.Title[0] == '"' {
		return s
	}
	return noneTitle
}

// FlattenRole emits exactly one record for the role.
func FlattenRole(doc *RoleTemplate) []RoleRecord {
	if doc == nil {
		return nil
	}
	mobile := doc.MobileModules
	if len(mobile) == 0 || isNull(mobile) {
		mobile = doc.Modules
	}
	return []RoleRecord{{
		RoleTitle:     doc.Title.Or(doc.ID.Or(noneTitle)),
		WebModules:    joinModules(doc.WebModules),
		MobileModules: joinModules(mobile),
	}}
}

// joinModules renders a module list as one delimited string. Objects are named by
// their title, name, id or key, in that order.
func joinModules(data json.RawMessage) string {
	if !truthy(data) {
		return ""
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return leafText(data)
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		if name := moduleName(it); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, moduleSeparator)
}

func moduleName(data json.RawMessage) string {
	m := objectOf(data)
	if m == nil {
		return leafText(data)
	}
	for _, key := range []string{"title", "name", "id", "key"} {
		if v, ok := m[key]; ok && truthy(v) {
			return leafText(v)
		}
	}
	return compactJSON(data)
}
