package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformed is matched by every *MalformedError.
var ErrMalformed = errors.New("malformed Mailpit response")

// MalformedError reports a response body that is not valid JSON or does not
// have the shape an operation expects.
type MalformedError struct {
	// Context names what was being fetched, e.g. "message 1234".
	Context string
	Reason  string
	Err     error
}

func (e *MalformedError) Error() string {
	msg := fmt.Sprintf("invalid Mailpit JSON response while fetching %s", e.Context)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformed.
func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// DecodeJSON parses body as a JSON object. context is included in the error
// returned for invalid JSON or a top level that is not an object.
func DecodeJSON(body []byte, context string) (*Object, error) {
	v, err := decodeDocument(bytes.NewReader(body))
	if err != nil {
		return nil, &MalformedError{Context: context, Err: err}
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, &MalformedError{Context: context, Reason: fmt.Sprintf("top level is %s, not an object", kind(v))}
	}
	return obj, nil
}

// StringKeyed returns value as an object. Anything that is not an object,
// including lists, yields an empty object.
func StringKeyed(value any) *Object {
	obj, ok := value.(*Object)
	if !ok || obj == nil {
		return NewObject()
	}
	return obj.Clone()
}

// ObjectList keeps the object items of a list. Items that are empty objects
// are dropped. Anything that is not a list yields nil.
func ObjectList(value any) []*Object {
	list, ok := value.([]any)
	if !ok {
		return nil
	}

	var out []*Object
	for _, item := range list {
		if _, ok := item.(*Object); !ok {
			continue
		}
		obj := StringKeyed(item)
		if obj.Len() == 0 {
			continue
		}
		out = append(out, obj)
	}
	return out
}

// HeaderMap keeps the entries of value whose value is a list, filtered down
// to its string elements as a []string. Entries left with no strings are
// dropped.
func HeaderMap(value any) *Object {
	out := NewObject()
	obj, ok := value.(*Object)
	if !ok {
		return out
	}

	for _, name := range obj.Keys() {
		raw, _ := obj.Get(name)
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		var values []string
		for _, item := range list {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
		if len(values) > 0 {
			out.Set(name, values)
		}
	}
	return out
}

// String returns obj[key] if it is a string, otherwise def.
func String(obj *Object, key, def string) string {
	v, ok := obj.Get(key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// Int returns obj[key] as an integer. Numbers and numeric strings are
// accepted; anything else is 0.
func Int(obj *Object, key string) int {
	v, _ := obj.Get(key)
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	case int:
		return n
	}
	return 0
}

// Scalar renders a string or integer-valued JSON number as a string. ok is
// false for any other value.
func Scalar(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		if i, err := s.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
	case int:
		return strconv.Itoa(s), true
	}
	return "", false
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "a list"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
