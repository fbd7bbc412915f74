// Package record holds closed, ordered field schemas and the records and
// tables built over them. Each entity kind declares its own field type, so a
// field of one kind cannot be set on a record of another.
package record

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var (
	ErrUndeclaredField = errors.New("field not declared in schema")
	ErrUnsupportedType = errors.New("unsupported field value type")
)

type Schema[F ~string] struct {
	name   string
	fields []F
	index  map[F]int
}

// NewSchema panics on duplicate fields; schemas are declared once at package
// init.
func NewSchema[F ~string](name string, fields ...F) *Schema[F] {
	s := &Schema[F]{name: name, fields: append([]F(nil), fields...), index: make(map[F]int, len(fields))}
	for i, f := range fields {
		if _, dup := s.index[f]; dup {
			panic(fmt.Sprintf("schema %s: duplicate field %q", name, f))
		}
		s.index[f] = i
	}
	return s
}

// Extend returns a new schema with extra fields appended.
func (s *Schema[F]) Extend(name string, fields ...F) *Schema[F] {
	all := append(append([]F(nil), s.fields...), fields...)
	return NewSchema(name, all...)
}

func (s *Schema[F]) Name() string { return s.name }
func (s *Schema[F]) Len() int     { return len(s.fields) }
func (s *Schema[F]) Fields() []F  { return append([]F(nil), s.fields...) }

func (s *Schema[F]) Has(f F) bool {
	_, ok := s.index[f]
	return ok
}

func (s *Schema[F]) Columns() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = string(f)
	}
	return out
}

// Record stores one value per schema field. Values are strings, integers,
// floats or bools; an unset field is nil until Empty fills it with "".
type Record[F ~string] struct {
	schema *Schema[F]
	values []any
}

func New[F ~string](schema *Schema[F]) *Record[F] {
	return &Record[F]{schema: schema, values: make([]any, schema.Len())}
}

// Empty returns a record whose every field holds the empty sentinel "".
func Empty[F ~string](schema *Schema[F]) *Record[F] {
	r := New(schema)
	for i := range r.values {
		r.values[i] = ""
	}
	return r
}

func (r *Record[F]) Schema() *Schema[F] { return r.schema }

func (r *Record[F]) Set(f F, v any) error {
	i, ok := r.schema.index[f]
	if !ok {
		return fmt.Errorf("%s.%s: %w", r.schema.name, f, ErrUndeclaredField)
	}
	switch v.(type) {
	case nil, string, int, int64, float64, bool:
	default:
		return fmt.Errorf("%s.%s (%T): %w", r.schema.name, f, v, ErrUnsupportedType)
	}
	r.values[i] = v
	return nil
}

// Update sets every entry of m, stopping at the first error.
func (r *Record[F]) Update(m map[F]any) error {
	keys := make([]F, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		if err := r.Set(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// Assign is Update for field names that come from outside the type system,
// such as table headers or another record's Prefixed output.
func (r *Record[F]) Assign(m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := r.Set(F(k), m[k]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Record[F]) Get(f F) (any, bool) {
	i, ok := r.schema.index[f]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// String renders the field value; undeclared and unset fields render "".
func (r *Record[F]) String(f F) string {
	v, _ := r.Get(f)
	return Format(v)
}

func (r *Record[F]) Fields() []F { return r.schema.Fields() }

func (r *Record[F]) Values() []any { return append([]any(nil), r.values...) }

// Prefixed renders the record as prefix+field -> value.
func (r *Record[F]) Prefixed(prefix string) map[string]any {
	out := make(map[string]any, len(r.values))
	for i, f := range r.schema.fields {
		out[prefix+string(f)] = r.values[i]
	}
	return out
}

func (r *Record[F]) Strings() []string {
	out := make([]string, len(r.values))
	for i, v := range r.values {
		out[i] = Format(v)
	}
	return out
}

func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(x)
	}
}
