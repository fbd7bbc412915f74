// Package sampling draws rows from weighted reference tables or values from
// parametric distributions. Every Source owns its *rand.Rand; nothing here is
// safe for concurrent use.
package sampling

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/mmrzaf/taxgen/internal/refdata"
)

var (
	ErrEmptyRestriction = errors.New("restriction matched no rows")
	ErrZeroWeight       = errors.New("total weight is zero")
	ErrNegativeWeight   = errors.New("negative weight")
	ErrNoData           = errors.New("source has neither table, weights nor distribution")
)

const driftTolerance = 1e-9

// Restriction keeps only rows whose Column equals Value, ignoring case.
type Restriction struct {
	Column string
	Value  string
}

// Query overrides the source's own table and weights for a single draw.
// Weights must align with Table when both are set.
type Query struct {
	Weights  []float64
	Table    *refdata.Table
	Restrict *Restriction
}

// Draw is the outcome of one Sample call. Row is valid only for table-backed
// draws and Value is set only for distribution draws.
type Draw struct {
	Row   refdata.Row
	Index int
	Value float64
}

type Source struct {
	table       *refdata.Table
	weights     []float64
	dist        Distribution
	constraints []Constraint
	rng         *rand.Rand
}

// NewTableSource weights rows by weightColumn. An empty weightColumn means
// every row is equally likely.
func NewTableSource(table *refdata.Table, weightColumn string, rng *rand.Rand) (*Source, error) {
	if table == nil {
		return nil, errors.New("table source requires a table")
	}
	var weights []float64
	if weightColumn == "" {
		weights = uniform(table.Len())
	} else {
		w, err := table.Floats(weightColumn)
		if err != nil {
			return nil, err
		}
		weights = w
	}
	if err := checkWeights(weights); err != nil {
		return nil, fmt.Errorf("table %s: %w", table.Name(), err)
	}
	return &Source{table: table, weights: weights, rng: rng}, nil
}

// NewWeightSource draws indexes into an explicit relative weight vector.
func NewWeightSource(weights []float64, rng *rand.Rand) (*Source, error) {
	if err := checkWeights(weights); err != nil {
		return nil, err
	}
	return &Source{weights: append([]float64(nil), weights...), rng: rng}, nil
}

// NewDistributionSource draws from dist and applies constraints in order.
func NewDistributionSource(dist Distribution, rng *rand.Rand, constraints ...Constraint) *Source {
	return &Source{dist: dist, constraints: constraints, rng: rng}
}

func (s *Source) Table() *refdata.Table { return s.table }

func (s *Source) Weights() []float64 { return append([]float64(nil), s.weights...) }

func (s *Source) Rand() *rand.Rand { return s.rng }

func (s *Source) Sample(q Query) (Draw, error) {
	table := s.table
	weights := s.weights
	if q.Table != nil {
		table = q.Table
		weights = nil
	}
	if q.Weights != nil {
		weights = q.Weights
	}
	if table != nil && weights == nil {
		weights = uniform(table.Len())
	}

	if table == nil && weights == nil {
		if s.dist == nil {
			return Draw{}, ErrNoData
		}
		v := s.dist.Sample(s.rng)
		for _, c := range s.constraints {
			v = c(v)
		}
		return Draw{Index: -1, Value: v}, nil
	}

	if table != nil && len(weights) != table.Len() {
		return Draw{}, fmt.Errorf("table %s: %d weights for %d rows", table.Name(), len(weights), table.Len())
	}

	if q.Restrict != nil {
		if table == nil {
			return Draw{}, errors.New("restriction requires a table")
		}
		masked, err := restrict(table, weights, *q.Restrict)
		if err != nil {
			return Draw{}, err
		}
		weights = masked
	}

	idx, err := PickIndex(s.rng, weights)
	if err != nil {
		if table != nil {
			return Draw{}, fmt.Errorf("table %s: %w", table.Name(), err)
		}
		return Draw{}, err
	}
	d := Draw{Index: idx}
	if table != nil {
		d.Row = table.Row(idx)
	}
	return d, nil
}

func restrict(table *refdata.Table, weights []float64, r Restriction) ([]float64, error) {
	if !table.HasColumn(r.Column) {
		return nil, fmt.Errorf("table %s: %w %q", table.Name(), refdata.ErrUnknownColumn, r.Column)
	}
	want := strings.TrimSpace(r.Value)
	out := make([]float64, len(weights))
	matched := 0
	for i := range weights {
		if strings.EqualFold(table.Row(i).String(r.Column), want) {
			out[i] = weights[i]
			matched++
		}
	}
	if matched == 0 {
		return nil, fmt.Errorf("table %s: %s=%q: %w", table.Name(), r.Column, r.Value, ErrEmptyRestriction)
	}
	return out, nil
}

// PickIndex draws an index with probability proportional to its weight.
func PickIndex(rng *rand.Rand, weights []float64) (int, error) {
	if err := checkWeights(weights); err != nil {
		return 0, err
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return 0, ErrZeroWeight
	}

	probs := make([]float64, len(weights))
	for i, w := range weights {
		probs[i] = w / total
	}
	return pickNormalized(rng.Float64(), probs), nil
}

// pickNormalized maps u in [0,1) onto probs. When float drift leaves the
// probabilities off 1 it falls back to a single multinomial trial scaled by
// the actual sum.
func pickNormalized(u float64, probs []float64) int {
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1) > driftTolerance {
		u *= sum
	}

	cum := 0.0
	last := -1
	for i, p := range probs {
		if p <= 0 {
			continue
		}
		last = i
		cum += p
		if u < cum {
			return i
		}
	}
	return last
}

func checkWeights(weights []float64) error {
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w at %d: %v", ErrNegativeWeight, i, w)
		}
	}
	return nil
}

func uniform(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}
