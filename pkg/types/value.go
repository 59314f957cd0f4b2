package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind enumerates the JSON-like kinds a Value can hold.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns a human-readable kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the JSON data model. Tool results and
// invocation parameters are carried as Values so that downstream path
// extraction never has to reflect over arbitrary interface{} payloads.
//
// The zero Value is null.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int wraps an integer as a number.
func Int(n int) Value { return Number(float64(n)) }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps a list of Values.
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: items}
}

// Object wraps a map of Values.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

// FromGo converts a decoded-JSON Go value (the shapes produced by
// encoding/json into interface{}) into a Value. Unsupported types
// become null.
func FromGo(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case int:
		return Int(t)
	case int64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null()
		}
		return Number(f)
	case string:
		return String(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, it := range t {
			items = append(items, FromGo(it))
		}
		return Array(items...)
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, it := range t {
			fields[k] = FromGo(it)
		}
		return Object(fields)
	case Value:
		return t
	default:
		return Null()
	}
}

// ToGo converts a Value back to the encoding/json interface{} shapes.
func (v Value) ToGo() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, 0, len(v.arr))
		for _, it := range v.arr {
			out = append(out, it.ToGo())
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, it := range v.obj {
			out[k] = it.ToGo()
		}
		return out
	default:
		return nil
	}
}

// Kind returns the kind tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Len returns the element count for arrays and objects, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// Index returns the i-th element of an array value.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Null(), false
	}
	return v.arr[i], true
}

// Field returns the named field of an object value.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	val, ok := v.obj[name]
	return val, ok
}

// Text renders the value as a plain string for prompts and summaries.
// Strings are unquoted; composites are compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToGo())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromGo(raw)
	return nil
}

// Keys returns the sorted field names of an object value.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// At evaluates a dotted extraction path against the value and returns
// the value at that location. Paths support field access and
// single-level array indexing per segment:
//
//	"result.urls[0]"
//	"results[0].url"
//	"answer"
//
// Evaluation is fallible, never panics, and returns ok=false when any
// segment does not resolve.
func (v Value) At(path string) (Value, bool) {
	if strings.TrimSpace(path) == "" {
		return v, true
	}
	current := v
	for _, seg := range strings.Split(path, ".") {
		name, index, hasIndex, err := splitSegment(seg)
		if err != nil {
			return Null(), false
		}
		if name != "" {
			next, ok := current.Field(name)
			if !ok {
				return Null(), false
			}
			current = next
		}
		if hasIndex {
			next, ok := current.Index(index)
			if !ok {
				return Null(), false
			}
			current = next
		}
	}
	return current, true
}

// splitSegment parses one path segment of the form "name", "name[3]"
// or "[3]".
func splitSegment(seg string) (name string, index int, hasIndex bool, err error) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		if seg == "" {
			return "", 0, false, fmt.Errorf("empty path segment")
		}
		return seg, 0, false, nil
	}
	if !strings.HasSuffix(seg, "]") {
		return "", 0, false, fmt.Errorf("malformed segment %q", seg)
	}
	name = seg[:open]
	idxStr := seg[open+1 : len(seg)-1]
	index, convErr := strconv.Atoi(idxStr)
	if convErr != nil || index < 0 {
		return "", 0, false, fmt.Errorf("bad array index %q", idxStr)
	}
	return name, index, true, nil
}
