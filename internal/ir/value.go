package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is the sealed JSON value tree programs are encoded through.
// Only Null, String, Int, Bool, Array and Object implement it; there is
// no float variant so that encodings hash deterministically.
type Value interface {
	irValue()
}

// Null is a JSON null. Optional IR slots (a missing else branch, a
// missing result annotation) encode as Null.
type Null struct{}

func (Null) irValue() {}

// String is a JSON string.
type String string

func (String) irValue() {}

// Int is a JSON integer.
type Int int64

func (Int) irValue() {}

// Bool is a JSON boolean.
type Bool bool

func (Bool) irValue() {}

// Array is a JSON array.
type Array []Value

func (Array) irValue() {}

// Object is a JSON object. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units, which is
// not the byte order sort.Strings uses).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}

// ParseValue decodes JSON into a Value. Numbers with a fraction or
// exponent are rejected.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return convertToValue(raw)
}

func convertToValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are not allowed in IR: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := convertToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := convertToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// Accessors used by the decoder. Each reports a path-qualified error when
// the value has the wrong shape.

func (obj Object) str(key string) (string, error) {
	v, ok := obj[key].(String)
	if !ok {
		return "", fmt.Errorf("%q: want string, got %T", key, obj[key])
	}
	return string(v), nil
}

func (obj Object) int(key string) (int, error) {
	v, ok := obj[key].(Int)
	if !ok {
		return 0, fmt.Errorf("%q: want integer, got %T", key, obj[key])
	}
	return int(v), nil
}

func (obj Object) arr(key string) (Array, error) {
	switch v := obj[key].(type) {
	case Array:
		return v, nil
	case Null, nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%q: want array, got %T", key, v)
	}
}

func (obj Object) obj(key string) (Object, error) {
	v, ok := obj[key].(Object)
	if !ok {
		return nil, fmt.Errorf("%q: want object, got %T", key, obj[key])
	}
	return v, nil
}
