// Package profile reads generation profiles: nested YAML (or JSON) maps
// holding probabilities, distributions and the legit/fraud branches used by
// the MeF generator.
package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/taxgen/internal/sampling"
)

//go:embed default.yaml
var defaultProfile []byte

var ErrMissingKey = errors.New("missing key")

// ConfigError reports a missing or malformed profile entry by its dotted path.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("profile %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type Tree struct {
	path string
	m    map[string]any
}

func Parse(data []byte) (*Tree, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ConfigError{Path: "<root>", Err: err}
	}
	if m == nil {
		m = map[string]any{}
	}
	return &Tree{m: m}, nil
}

// Default is the profile compiled into the binary.
func Default() *Tree {
	t, err := Parse(defaultProfile)
	if err != nil {
		panic(err)
	}
	return t
}

func DefaultBytes() []byte { return append([]byte(nil), defaultProfile...) }

func FromMap(m map[string]any) *Tree { return &Tree{m: m} }

func (t *Tree) Path() string { return t.path }

func (t *Tree) Raw() map[string]any { return t.m }

func (t *Tree) Keys() []string {
	out := make([]string, 0, len(t.m))
	for k := range t.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *Tree) full(key string) string {
	if t.path == "" {
		return key
	}
	return t.path + "." + key
}

// lookup walks a dotted key.
func (t *Tree) lookup(key string) (any, error) {
	var cur any = t.m
	for _, part := range strings.Split(key, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, &ConfigError{Path: t.full(key), Err: errors.New("not a section")}
		}
		v, ok := m[part]
		if !ok {
			return nil, &ConfigError{Path: t.full(key), Err: ErrMissingKey}
		}
		cur = v
	}
	return cur, nil
}

func (t *Tree) Has(key string) bool {
	_, err := t.lookup(key)
	return err == nil
}

func (t *Tree) Sub(key string) (*Tree, error) {
	v, err := t.lookup(key)
	if err != nil {
		return nil, err
	}
	m, ok := asMap(v)
	if !ok {
		return nil, &ConfigError{Path: t.full(key), Err: fmt.Errorf("want section, got %T", v)}
	}
	return &Tree{path: t.full(key), m: m}, nil
}

func (t *Tree) Float(key string) (float64, error) {
	v, err := t.lookup(key)
	if err != nil {
		return 0, err
	}
	f, ok := sampling.ToFloat(v)
	if !ok {
		return 0, &ConfigError{Path: t.full(key), Err: fmt.Errorf("want number, got %T", v)}
	}
	return f, nil
}

// Prob is Float restricted to [0, 1].
func (t *Tree) Prob(key string) (float64, error) {
	p, err := t.Float(key)
	if err != nil {
		return 0, err
	}
	if p < 0 || p > 1 {
		return 0, &ConfigError{Path: t.full(key), Err: fmt.Errorf("probability %v outside [0,1]", p)}
	}
	return p, nil
}

func (t *Tree) Int(key string) (int, error) {
	f, err := t.Float(key)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, &ConfigError{Path: t.full(key), Err: fmt.Errorf("want integer, got %v", f)}
	}
	return int(f), nil
}

func (t *Tree) String(key string) (string, error) {
	v, err := t.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &ConfigError{Path: t.full(key), Err: fmt.Errorf("want string, got %T", v)}
	}
	return s, nil
}

// Dist builds the distribution described by a "_type" keyed section.
func (t *Tree) Dist(key string) (sampling.Distribution, error) {
	sub, err := t.Sub(key)
	if err != nil {
		return nil, err
	}
	d, err := sampling.DistSpec(sub.m).Build()
	if err != nil {
		return nil, &ConfigError{Path: sub.path, Err: err}
	}
	return d, nil
}

// Categorical reads a label -> weight section. Labels come back sorted so
// draws are reproducible.
func (t *Tree) Categorical(key string) ([]string, []float64, error) {
	sub, err := t.Sub(key)
	if err != nil {
		return nil, nil, err
	}
	labels := sub.Keys()
	if len(labels) == 0 {
		return nil, nil, &ConfigError{Path: sub.path, Err: errors.New("no categories")}
	}
	weights := make([]float64, len(labels))
	total := 0.0
	for i, l := range labels {
		w, err := sub.Float(l)
		if err != nil {
			return nil, nil, err
		}
		if w < 0 {
			return nil, nil, &ConfigError{Path: sub.full(l), Err: fmt.Errorf("negative weight %v", w)}
		}
		weights[i] = w
		total += w
	}
	if total == 0 {
		return nil, nil, &ConfigError{Path: sub.path, Err: sampling.ErrZeroWeight}
	}
	return labels, weights, nil
}

// Split reads the weights of the named parts of a categorical section, in
// the order given. Every part must be present.
func (t *Tree) Split(key string, parts ...string) ([]float64, error) {
	sub, err := t.Sub(key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		w, err := sub.Float(p)
		if err != nil {
			return nil, err
		}
		if w < 0 {
			return nil, &ConfigError{Path: sub.full(p), Err: fmt.Errorf("negative weight %v", w)}
		}
		out[i] = w
	}
	return out, nil
}

func (t *Tree) Marshal() ([]byte, error) {
	return yaml.Marshal(t.m)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
