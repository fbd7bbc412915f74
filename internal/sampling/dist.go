package sampling

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrUnsupportedDistribution = errors.New("unsupported distribution")
	ErrDistributionParam       = errors.New("invalid distribution parameter")
)

type Distribution interface {
	Sample(rng *rand.Rand) float64
}

// Constraint post-processes a distribution draw.
type Constraint func(float64) float64

func NonNegative(v float64) float64 { return math.Max(0, v) }

func Round(v float64) float64 { return math.Round(v) }

func Clip(lo, hi float64) Constraint {
	return func(v float64) float64 { return math.Min(hi, math.Max(lo, v)) }
}

// The continuous distributions delegate to gonum's distuv, drawing from the
// caller's generator so every draw stays on the owned seeded stream.

type Normal struct{ Mean, Std float64 }

func (d Normal) Sample(rng *rand.Rand) float64 {
	return distuv.Normal{Mu: d.Mean, Sigma: d.Std, Src: rng}.Rand()
}

// LogNormal is parameterised by the mean and sigma of the underlying normal.
type LogNormal struct{ Mu, Sigma float64 }

func (d LogNormal) Sample(rng *rand.Rand) float64 {
	return distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma, Src: rng}.Rand()
}

// Uniform draws from [Low, High).
type Uniform struct{ Low, High float64 }

func (d Uniform) Sample(rng *rand.Rand) float64 {
	return distuv.Uniform{Min: d.Low, Max: d.High, Src: rng}.Rand()
}

// Exponential is parameterised by its mean.
type Exponential struct{ Scale float64 }

func (d Exponential) Sample(rng *rand.Rand) float64 {
	if d.Scale <= 0 {
		return 0
	}
	return distuv.Exponential{Rate: 1 / d.Scale, Src: rng}.Rand()
}

type Beta struct{ Alpha, Beta float64 }

// Sample returns 0 when the draw is NaN.
func (d Beta) Sample(rng *rand.Rand) float64 {
	v := distuv.Beta{Alpha: d.Alpha, Beta: d.Beta, Src: rng}.Rand()
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Choice picks one of Values, weighted by Weights when given.
type Choice struct {
	Values  []float64
	Weights []float64
}

func (d Choice) Sample(rng *rand.Rand) float64 {
	if len(d.Values) == 0 {
		return 0
	}
	if len(d.Weights) != len(d.Values) {
		return d.Values[rng.Intn(len(d.Values))]
	}
	i, err := PickIndex(rng, d.Weights)
	if err != nil {
		return d.Values[rng.Intn(len(d.Values))]
	}
	return d.Values[i]
}

// DistSpec is the map form of a distribution found in profiles, keyed by
// "_type" (normal, lognormal, uniform, exponential, beta, choice).
type DistSpec map[string]any

func (s DistSpec) Type() string {
	t, _ := s["_type"].(string)
	return strings.ToLower(strings.TrimSpace(t))
}

func (s DistSpec) Build() (Distribution, error) {
	switch s.Type() {
	case "normal", "gaussian":
		mean, err := s.float("loc", "mean")
		if err != nil {
			return nil, err
		}
		std, err := s.float("scale", "std")
		if err != nil {
			return nil, err
		}
		if std < 0 {
			return nil, fmt.Errorf("%w: normal scale %v < 0", ErrDistributionParam, std)
		}
		return Normal{Mean: mean, Std: std}, nil
	case "lognormal":
		mu, err := s.float("mean", "mu")
		if err != nil {
			return nil, err
		}
		sigma, err := s.float("sigma")
		if err != nil {
			return nil, err
		}
		return LogNormal{Mu: mu, Sigma: sigma}, nil
	case "uniform":
		lo, err := s.float("low", "min")
		if err != nil {
			return nil, err
		}
		hi, err := s.float("high", "max")
		if err != nil {
			return nil, err
		}
		if hi < lo {
			return nil, fmt.Errorf("%w: uniform high %v < low %v", ErrDistributionParam, hi, lo)
		}
		return Uniform{Low: lo, High: hi}, nil
	case "exponential":
		scale, err := s.float("scale")
		if err != nil {
			return nil, err
		}
		return Exponential{Scale: scale}, nil
	case "beta":
		a, err := s.float("a", "alpha")
		if err != nil {
			return nil, err
		}
		b, err := s.float("b", "beta")
		if err != nil {
			return nil, err
		}
		if a <= 0 || b <= 0 {
			return nil, fmt.Errorf("%w: beta shapes must be > 0", ErrDistributionParam)
		}
		return Beta{Alpha: a, Beta: b}, nil
	case "choice":
		values, err := s.floats("values", "a")
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: choice needs values", ErrDistributionParam)
		}
		var weights []float64
		if _, ok := s.lookup("p", "weights"); ok {
			weights, err = s.floats("p", "weights")
			if err != nil {
				return nil, err
			}
			if len(weights) != len(values) {
				return nil, fmt.Errorf("%w: choice has %d weights for %d values", ErrDistributionParam, len(weights), len(values))
			}
			if err := checkWeights(weights); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDistributionParam, err)
			}
		}
		return Choice{Values: values, Weights: weights}, nil
	case "":
		return nil, fmt.Errorf("%w: missing _type", ErrUnsupportedDistribution)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedDistribution, s.Type())
	}
}

// SupportedDistributions lists the accepted _type values.
func SupportedDistributions() []string {
	out := []string{"normal", "gaussian", "lognormal", "uniform", "exponential", "beta", "choice"}
	sort.Strings(out)
	return out
}

func (s DistSpec) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := s[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s DistSpec) float(keys ...string) (float64, error) {
	v, ok := s.lookup(keys...)
	if !ok {
		return 0, fmt.Errorf("%w: %s requires %q", ErrDistributionParam, s.Type(), keys[0])
	}
	f, ok := ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s %q is not a number: %v", ErrDistributionParam, s.Type(), keys[0], v)
	}
	return f, nil
}

func (s DistSpec) floats(keys ...string) ([]float64, error) {
	v, ok := s.lookup(keys...)
	if !ok {
		return nil, fmt.Errorf("%w: %s requires %q", ErrDistributionParam, s.Type(), keys[0])
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q must be a list", ErrDistributionParam, s.Type(), keys[0])
	}
	out := make([]float64, len(raw))
	for i, e := range raw {
		f, ok := ToFloat(e)
		if !ok {
			return nil, fmt.Errorf("%w: %s %q[%d] is not a number: %v", ErrDistributionParam, s.Type(), keys[0], i, e)
		}
		out[i] = f
	}
	return out, nil
}

// ToFloat accepts the numeric types produced by yaml and json decoding.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
