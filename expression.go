package templatesheet

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Expr is a view column value expression. The set of variants is closed: ParseExpr
// produces one of the types below, with Raw catching every shape it does not recognise.
type Expr interface {
	expr()
}

type (
	// Fetch references a value by path.
	Fetch struct{ Ref string }
	// Display is a literal shown as-is.
	Display struct{ Text string }
	// Concat joins nested expressions in order.
	Concat struct{ Parts []Expr }
	// Evaluate carries an expression string, or the raw payload when it has none.
	Evaluate struct {
		Expression string
		Raw        json.RawMessage
	}
	// Count counts the target expression.
	Count struct{ Target Expr }
	// If renders its condition verbatim. Else is nil when absent.
	If struct {
		Condition json.RawMessage
		Then      Expr
		Else      Expr
	}
	// Map applies Operation to every element of Array.
	Map struct{ Array, Operation Expr }
	// FetchEntityType reads a property of an entity type.
	FetchEntityType struct{ EntityType, Property string }
	// LoadAttachment loads the attachment held in a property.
	LoadAttachment struct{ AttachmentProperty string }
	// Literal is a bare scalar used as an expression.
	Literal struct{ Text string }
	// Raw is any object that matches no known tag.
	Raw struct{ JSON json.RawMessage }
)

func (Fetch) expr()           {}
func (Display) expr()         {}
func (Concat) expr()          {}
func (Evaluate) expr()        {}
func (Count) expr()           {}
func (If) expr()              {}
func (Map) expr()             {}
func (FetchEntityType) expr() {}
func (LoadAttachment) expr()  {}
func (Literal) expr()         {}
func (Raw) expr()             {}

type exprTag struct {
	name  string
	parse func(json.RawMessage) (Expr, bool)
}

// exprTags is filled in init since the nested parsers call back into ParseExpr. Tag
// order is the precedence order when several tags share one object.
var exprTags []exprTag

func init() {
	exprTags = []exprTag{
		{"fetch", func(v json.RawMessage) (Expr, bool) { return Fetch{Ref: leafText(v)}, true }},
		{"display", func(v json.RawMessage) (Expr, bool) { return Display{Text: leafText(v)}, true }},
		{"concat", parseConcat},
		{"evaluate", parseEvaluate},
		{"count", parseCount},
		{"if", parseIf},
		{"map", parseMap},
		{"fetchEntityType", func(v json.RawMessage) (Expr, bool) {
			m := objectOf(v)
			return FetchEntityType{EntityType: leafText(m["entityType"]), Property: leafText(m["property"])}, true
		}},
		{"loadAttachment", func(v json.RawMessage) (Expr, bool) {
			return LoadAttachment{AttachmentProperty: leafText(objectOf(v)["attachmentProperty"])}, true
		}},
	}
}

// ParseExpr turns raw JSON into an Expr. It never fails: null yields nil, scalars yield
// Literal and unknown shapes yield Raw.
func ParseExpr(data json.RawMessage) Expr {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || isNull(data) {
		return nil
	}
	switch data[0] {
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return Raw{JSON: data}
		}
		for _, tag := range exprTags {
			v, ok := m[tag.name]
			if !ok || !truthy(v) {
				continue
			}
			if e, ok := tag.parse(v); ok {
				return e
			}
		}
		return Raw{JSON: data}
	case '[':
		return Raw{JSON: data}
	default:
		return Literal{Text: leafText(data)}
	}
}

func parseConcat(v json.RawMessage) (Expr, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, false
	}
	parts := make([]Expr, 0, len(items))
	for _, it := range items {
		parts = append(parts, ParseExpr(it))
	}
	return Concat{Parts: parts}, true
}

func parseEvaluate(v json.RawMessage) (Expr, bool) {
	if e, ok := objectOf(v)["expression"]; ok && truthy(e) {
		return Evaluate{Expression: leafText(e)}, true
	}
	return Evaluate{Raw: v}, true
}

func parseCount(v json.RawMessage) (Expr, bool) {
	target := v
	if of, ok := objectOf(v)["of"]; ok && truthy(of) {
		target = of
	}
	return Count{Target: ParseExpr(target)}, true
}

func parseIf(v json.RawMessage) (Expr, bool) {
	m := objectOf(v)
	out := If{Condition: m["condition"], Then: ParseExpr(m["then"])}
	if e, ok := m["else"]; ok && truthy(e) {
		out.Else = ParseExpr(e)
	}
	return out, true
}

func parseMap(v json.RawMessage) (Expr, bool) {
	m := objectOf(v)
	return Map{Array: ParseExpr(m["array"]), Operation: ParseExpr(m["operation"])}, true
}

// Stringify renders an expression in its canonical text form. A nil expression renders
// as the empty string.
func Stringify(e Expr) string {
	switch v := e.(type) {
	case nil:
		return ""
	case Fetch:
		return "fetch: " + v.Ref
	case Display:
		return `display: "` + v.Text + `"`
	case Concat:
		parts := make([]string, len(v.Parts))
		for i, p := range v.Parts {
			parts[i] = Stringify(p)
		}
		return "concat: [" + strings.Join(parts, ", ") + "]"
	case Evaluate:
		if v.Expression != "" {
			return "evaluate: " + v.Expression
		}
		return "evaluate: " + compactJSON(v.Raw)
	case Count:
		return "count: " + Stringify(v.Target)
	case If:
		s := "if: " + compactJSON(v.Condition) + " then " + Stringify(v.Then)
		if v.Else != nil {
			s += " else " + Stringify(v.Else)
		}
		return s
	case Map:
		return "map: " + Stringify(v.Array) + " with " + Stringify(v.Operation)
	case FetchEntityType:
		return "fetchEntityType: " + v.EntityType + "." + v.Property
	case LoadAttachment:
		return "loadAttachment: " + v.AttachmentProperty
	case Literal:
		return v.Text
	case Raw:
		return compactJSON(v.JSON)
	default:
		return ""
	}
}

// StringifyJSON parses and renders a raw value expression in one step.
func StringifyJSON(data json.RawMessage) string { return Stringify(ParseExpr(data)) }
