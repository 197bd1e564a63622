package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind enumerates the JSON shapes a field value can take.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueNumber
	ValueString
	ValueLink
	ValueArray
	ValueObject
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBool:
		return "bool"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	case ValueLink:
		return "link"
	case ValueArray:
		return "array"
	case ValueObject:
		return "object"
	default:
		return "unknown"
	}
}

// Link is a reference from one node to another. TargetID may be empty when
// the backend stored an incomplete reference.
type Link struct {
	Kind     Kind
	TargetID string
}

// Complete reports whether the link names a resolvable target.
func (l Link) Complete() bool {
	return l.Kind.Valid() && strings.TrimSpace(l.TargetID) != ""
}

// Value is a single field value as stored in the graph: null, a scalar, a
// link, an array, or a free-form object. The zero value is null.
type Value struct {
	kind ValueKind
	b    bool
	num  float64
	str  string
	link Link
	arr  []Value
	obj  map[string]any
}

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps a string scalar.
func String(s string) Value { return Value{kind: ValueString, str: s} }

// Number wraps a numeric scalar.
func Number(f float64) Value { return Value{kind: ValueNumber, num: f} }

// Bool wraps a boolean scalar.
func Bool(b bool) Value { return Value{kind: ValueBool, b: b} }

// LinkValue wraps a reference to another node.
func LinkValue(link Link) Value { return Value{kind: ValueLink, link: link} }

// EntryLink is shorthand for a link to an entry.
func EntryLink(targetID string) Value {
	return LinkValue(Link{Kind: KindEntry, TargetID: targetID})
}

// AssetLink is shorthand for a link to an asset.
func AssetLink(targetID string) Value {
	return LinkValue(Link{Kind: KindAsset, TargetID: targetID})
}

// Array wraps an ordered list of values.
func Array(items ...Value) Value {
	return Value{kind: ValueArray, arr: items}
}

// Object wraps a free-form JSON object that is not a link.
func Object(fields map[string]any) Value {
	return Value{kind: ValueObject, obj: fields}
}

// Kind reports the JSON shape of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is JSON null or missing.
func (v Value) IsNull() bool { return v.kind == ValueNull }

// AsString returns the string scalar when the value holds one.
func (v Value) AsString() (string, bool) {
	if v.kind != ValueString {
		return "", false
	}
	return v.str, true
}

// AsNumber returns the numeric scalar when the value holds one.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != ValueNumber {
		return 0, false
	}
	return v.num, true
}

// AsBool returns the boolean scalar when the value holds one.
func (v Value) AsBool() (bool, bool) {
	if v.kind != ValueBool {
		return false, false
	}
	return v.b, true
}

// AsLink returns the link when the value holds one.
func (v Value) AsLink() (Link, bool) {
	if v.kind != ValueLink {
		return Link{}, false
	}
	return v.link, true
}

// Items returns the array elements when the value holds an array.
func (v Value) Items() []Value {
	if v.kind != ValueArray {
		return nil
	}
	return v.arr
}

// AsObject returns the object payload when the value holds one.
func (v Value) AsObject() (map[string]any, bool) {
	if v.kind != ValueObject {
		return nil, false
	}
	return v.obj, true
}

// AsTime parses the value as a timestamp. Strings are accepted in RFC 3339
// or date-only form.
func (v Value) AsTime() (time.Time, bool) {
	s, ok := v.AsString()
	if !ok {
		return time.Time{}, false
	}
	return ParseTime(s)
}

// Text renders scalars for comparison purposes. Null renders as the empty
// string; composite values render via their JSON encoding.
func (v Value) Text() string {
	switch v.kind {
	case ValueNull:
		return ""
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueLink:
		return v.link.TargetID
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// IsEmpty reports whether the value counts as empty for rule evaluation:
// null, a blank string, an empty array, or an empty object.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case ValueNull:
		return true
	case ValueString:
		return strings.TrimSpace(v.str) == ""
	case ValueArray:
		return len(v.arr) == 0
	case ValueObject:
		return len(v.obj) == 0
	default:
		return false
	}
}

// HasData reports whether the value carries meaningful content. Links with
// no resolvable target count as empty when treatIncompleteLinks is set.
func (v Value) HasData(treatIncompleteLinks bool) bool {
	switch v.kind {
	case ValueNull:
		return false
	case ValueString:
		return strings.TrimSpace(v.str) != ""
	case ValueNumber, ValueBool:
		return true
	case ValueLink:
		if treatIncompleteLinks && !v.link.Complete() {
			return false
		}
		return true
	case ValueArray:
		for _, item := range v.arr {
			if item.HasData(treatIncompleteLinks) {
				return true
			}
		}
		return false
	case ValueObject:
		return len(v.obj) > 0
	default:
		return false
	}
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	cloned := v
	if len(v.arr) > 0 {
		cloned.arr = make([]Value, len(v.arr))
		for i, item := range v.arr {
			cloned.arr[i] = item.Clone()
		}
	}
	if len(v.obj) > 0 {
		cloned.obj = make(map[string]any, len(v.obj))
		for key, val := range v.obj {
			cloned.obj[key] = val
		}
	}
	return cloned
}

type linkEnvelope struct {
	Sys linkSys `json:"sys"`
}

type linkSys struct {
	Type     string `json:"type"`
	LinkType string `json:"linkType"`
	ID       string `json:"id,omitempty"`
}

// MarshalJSON renders the value in the wire shape the graph backend uses,
// including the sys envelope for links.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueNull:
		return []byte("null"), nil
	case ValueBool:
		return json.Marshal(v.b)
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueString:
		return json.Marshal(v.str)
	case ValueLink:
		return json.Marshal(linkEnvelope{Sys: linkSys{
			Type:     "Link",
			LinkType: string(v.link.Kind),
			ID:       v.link.TargetID,
		}})
	case ValueArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case ValueObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.obj)
	default:
		return nil, fmt.Errorf("graph: cannot marshal value kind %d", v.kind)
	}
}

// UnmarshalJSON parses a wire value, recognising the link envelope shape
// and falling back to a plain object for everything else.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*v = Null()
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]Value, len(raw))
		for i, elem := range raw {
			if err := items[i].UnmarshalJSON(elem); err != nil {
				return err
			}
		}
		*v = Array(items...)
		return nil
	case '{':
		if link, ok := decodeLink(data); ok {
			*v = LinkValue(link)
			return nil
		}
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*v = Object(obj)
		return nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
		return nil
	}
}

func decodeLink(data []byte) (Link, bool) {
	var envelope linkEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Link{}, false
	}
	if envelope.Sys.Type != "Link" {
		return Link{}, false
	}
	kind := Kind(envelope.Sys.LinkType)
	if !kind.Valid() {
		return Link{}, false
	}
	return Link{Kind: kind, TargetID: envelope.Sys.ID}, true
}

// ParseTime accepts the timestamp formats the backend and rule documents
// use: RFC 3339 with or without fractional seconds, or a bare date.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
