package plugin

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"
	"time"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

// Variants of the settings value tree.
const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

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
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Value is one node of an immutable settings tree. The zero Value is null.
// Lists and maps are only reachable through accessors that never expose the
// backing storage, so a Value can be shared between goroutines and plugin
// invocations without copying.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	list []Value
	m    map[string]Value
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Number returns the numeric payload.
func (v Value) Number() (float64, bool) { return v.n, v.kind == KindNumber }

// Str returns the string payload.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Len returns the number of list elements or map entries.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.m)
	}
	return 0
}

// Index returns the i-th list element, or null when out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Value{}
	}
	return v.list[i]
}

// Get returns the map entry for key, or null when absent.
func (v Value) Get(key string) Value {
	if v.kind != KindMap {
		return Value{}
	}
	return v.m[key]
}

// Has reports whether the map carries key.
func (v Value) Has(key string) bool {
	_, ok := v.m[key]
	return v.kind == KindMap && ok
}

// Keys returns the map keys in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interface returns a freshly allocated plain-Go copy (nil, bool, float64, string,
// []any, map[string]any). Mutating the result never affects v.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// MarshalJSON encodes the tree; map keys come out sorted.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindList:
		return slices.EqualFunc(v.list, o.list, Value.Equal)
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, item := range v.m {
			other, ok := o.m[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
	}
	return true
}

// Freeze converts a plain Go value (as produced by YAML, TOML, or JSON decoders)
// into an immutable Value, copying every container on the way.
func Freeze(in any) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return x, nil
	case Settings:
		return x.root, nil
	case bool:
		return Value{kind: KindBool, b: x}, nil
	case string:
		return Value{kind: KindString, s: x}, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", x, err)
		}
		return Value{kind: KindNumber, n: f}, nil
	case time.Time:
		return Value{kind: KindString, s: x.Format(time.RFC3339Nano)}, nil
	case fmt.Stringer:
		if rv := reflect.ValueOf(in); rv.Kind() == reflect.Struct {
			return Value{kind: KindString, s: x.String()}, nil
		}
	}

	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Value{kind: KindNumber, n: float64(rv.Int())}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Value{kind: KindNumber, n: float64(rv.Uint())}, nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("non-finite number %v", f)
		}
		return Value{kind: KindNumber, n: f}, nil
	case reflect.Bool:
		return Value{kind: KindBool, b: rv.Bool()}, nil
	case reflect.String:
		return Value{kind: KindString, s: rv.String()}, nil
	case reflect.Slice, reflect.Array:
		list := make([]Value, rv.Len())
		for i := range list {
			item, err := Freeze(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = item
		}
		return Value{kind: KindList, list: list}, nil
	case reflect.Map:
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			item, err := Freeze(iter.Value().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", key, err)
			}
			m[key] = item
		}
		return Value{kind: KindMap, m: m}, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Value{}, nil
		}
		return Freeze(rv.Elem().Interface())
	}
	return Value{}, fmt.Errorf("unsupported settings value of type %T", in)
}

// Settings is the frozen key/value configuration handed to a plugin. The zero
// Settings is an empty map.
type Settings struct {
	root Value
}

// FreezeSettings deep-copies m into an immutable Settings.
func FreezeSettings(m map[string]any) (Settings, error) {
	if m == nil {
		return Settings{root: Value{kind: KindMap, m: map[string]Value{}}}, nil
	}
	v, err := Freeze(m)
	if err != nil {
		return Settings{}, err
	}
	return Settings{root: v}, nil
}

// MustSettings is FreezeSettings that panics on error.
func MustSettings(m map[string]any) Settings {
	s, err := FreezeSettings(m)
	if err != nil {
		panic(err)
	}
	return s
}

// Root returns the settings as a map Value.
func (s Settings) Root() Value {
	if s.root.kind != KindMap {
		return Value{kind: KindMap, m: map[string]Value{}}
	}
	return s.root
}

// Get returns the value stored under key, or null.
func (s Settings) Get(key string) Value { return s.root.Get(key) }

// Has reports whether key is present.
func (s Settings) Has(key string) bool { return s.root.Has(key) }

// Keys returns the top-level keys in sorted order.
func (s Settings) Keys() []string { return s.root.Keys() }

// Len returns the number of top-level keys.
func (s Settings) Len() int { return s.root.Len() }

// String returns the string stored under key, or def.
func (s Settings) String(key, def string) string {
	if v, ok := s.Get(key).Str(); ok {
		return v
	}
	return def
}

// Float returns the number stored under key, or def.
func (s Settings) Float(key string, def float64) float64 {
	if v, ok := s.Get(key).Number(); ok {
		return v
	}
	return def
}

// Int returns the number stored under key truncated to an int, or def.
func (s Settings) Int(key string, def int) int {
	if v, ok := s.Get(key).Number(); ok {
		return int(v)
	}
	return def
}

// Bool returns the boolean stored under key, or def.
func (s Settings) Bool(key string, def bool) bool {
	if v, ok := s.Get(key).Bool(); ok {
		return v
	}
	return def
}

// StringList returns the string elements of the list stored under key.
// Non-string elements are skipped.
func (s Settings) StringList(key string) []string {
	v := s.Get(key)
	out := make([]string, 0, v.Len())
	for i := range v.Len() {
		if str, ok := v.Index(i).Str(); ok {
			out = append(out, str)
		}
	}
	return out
}

// Map returns a plain-Go deep copy of the settings.
func (s Settings) Map() map[string]any {
	m, _ := s.Root().Interface().(map[string]any)
	return m
}

// Equal reports deep equality.
func (s Settings) Equal(o Settings) bool { return s.Root().Equal(o.Root()) }

// MarshalJSON encodes the settings as a JSON object with sorted keys.
func (s Settings) MarshalJSON() ([]byte, error) { return s.Root().MarshalJSON() }
