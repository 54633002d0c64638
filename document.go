package templatesheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FormTemplate is a form definition: pages of sections of fields.
type FormTemplate struct {
	ID           Text    `json:"id"`
	Organization Text    `json:"organization"`
	Title        Text    `json:"title"`
	Pages        []*Page `json:"pages"`
}

type Page struct {
	Title    Text       `json:"title"`
	Sections []*Section `json:"sections"`
}

type Section struct {
	Title  Text     `json:"title"`
	Fields []*Field `json:"fields"`
}

// Field is one form input. The *When markers and AutoUpdate are kept raw: only their
// presence and their JSON text matter here.
type Field struct {
	ID           Text            `json:"id"`
	Title        Text            `json:"title"`
	FieldType    Text            `json:"fieldType"`
	Required     Flag            `json:"required"`
	Editable     Flag            `json:"editable"`
	DisplayWhen  json.RawMessage `json:"displayWhen"`
	EditableWhen json.RawMessage `json:"editableWhen"`
	RequiredWhen json.RawMessage `json:"requiredWhen"`
	AutoUpdate   json.RawMessage `json:"autoUpdate"`
}

// ViewTemplate is a report definition. Title is an object holding a value expression.
type ViewTemplate struct {
	ID           Text            `json:"id"`
	Organization Text            `json:"organization"`
	Title        json.RawMessage `json:"title"`
	Columns      []*Column       `json:"columns"`
}

type Column struct {
	Title    Text            `json:"title"`
	DataType Text            `json:"dataType"`
	Value    json.RawMessage `json:"value"`
}

// RoleTemplate lists the web and mobile modules granted to a role. Mobile modules are
// read from "mobileModules" or, failing that, "modules".
type RoleTemplate struct {
	ID            Text            `json:"id"`
	Organization  Text            `json:"organization"`
	Title         Text            `json:"title"`
	WebModules    json.RawMessage `json:"webModules"`
	MobileModules json.RawMessage `json:"mobileModules"`
	Modules       json.RawMessage `json:"modules"`
}

// ParseForm decodes a form template document.
func ParseForm(data []byte) (*FormTemplate, error) {
	var doc FormTemplate
	if err := decodeDocument(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseView decodes a view template document.
func ParseView(data []byte) (*ViewTemplate, error) {
	var doc ViewTemplate
	if err := decodeDocument(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseRole decodes a role template document.
func ParseRole(data []byte) (*RoleTemplate, error) {
	var doc RoleTemplate
	if err := decodeDocument(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func decodeDocument(data []byte, v any) error {
	src := bytes.TrimSpace([]byte(sanitizeJSONBlock(string(data))))
	if len(src) == 0 {
		return fmt.Errorf("%w: empty content", ErrMalformedDocument)
	}
	if src[0] != '{' {
		return fmt.Errorf("%w: top-level value is not an object", ErrMalformedDocument)
	}
	if err := json.Unmarshal(src, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return nil
}

// fenceRx matches JSON pasted inside a ``` block.
var fenceRx = regexp.MustCompile("(?s)```[a-zA-Z]*\\n(.*?)```")

func sanitizeJSONBlock(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	if m := fenceRx.FindStringSubmatch(s); len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// Text is a string that also accepts numbers, booleans and null from loosely typed
// documents. Objects and arrays keep their compact JSON text.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text(leafText(data))
	return nil
}

func (t Text) String() string { return string(t) }

// Or returns t, or fallback when t is empty.
func (t Text) Or(fallback string) string {
	if t == "" {
		return fallback
	}
	return string(t)
}

// Flag is an optional boolean that remembers whether it was set. Strings "true"/"false"
// and numbers are accepted; anything else leaves it unset. Literal records a real JSON
// boolean.
type Flag struct {
	Set     bool
	Value   bool
	Literal bool
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	*f = Flag{}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch vv := v.(type) {
	case bool:
		*f = Flag{Set: true, Value: vv, Literal: true}
	case float64:
		*f = Flag{Set: true, Value: vv != 0}
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(vv)); err == nil {
			*f = Flag{Set: true, Value: b}
		}
	}
	return nil
}

// True reports whether the flag was set to true.
func (f Flag) True() bool { return f.Set && f.Value }

// False reports whether the flag was explicitly set to false.
func (f Flag) False() bool { return f.Set && !f.Value }

// LiteralFalse reports whether the flag was the JSON boolean false.
func (f Flag) LiteralFalse() bool { return f.Literal && !f.Value }

func isNull(data []byte) bool { return string(bytes.TrimSpace(data)) == "null" }

// truthy reports whether an optional value is present. Absent, null, false, "" and 0
// count as missing.
func truthy(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return false
	}
	switch string(data) {
	case "null", "false", `""`:
		return false
	}
	if c := data[0]; c == '-' || (c >= '0' && c <= '9') {
		if f, err := strconv.ParseFloat(string(data), 64); err == nil && f == 0 {
			return false
		}
	}
	return true
}

// leafText renders a JSON leaf: strings unquoted, null/absent empty, everything else as
// compact JSON.
func leafText(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || isNull(data) {
		return ""
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return s
		}
	}
	return compactJSON(data)
}

// compactJSON keeps key order as written, which re-marshalling a map would not.
func compactJSON(data json.RawMessage) string {
	if len(bytes.TrimSpace(data)) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return string(data)
	}
	return buf.String()
}

// objectOf returns the members of a JSON object, or nil for any other value.
func objectOf(data json.RawMessage) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
