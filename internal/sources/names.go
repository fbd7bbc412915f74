package sources

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sampling"
)

type Ethnicity string

const (
	White    Ethnicity = "White"
	Black    Ethnicity = "Black"
	API      Ethnicity = "API"
	AIAN     Ethnicity = "AIAN"
	TwoPlus  Ethnicity = "TwoPlus"
	Hispanic Ethnicity = "Hispanic"
)

var Ethnicities = []Ethnicity{White, Black, API, AIAN, TwoPlus, Hispanic}

func (e Ethnicity) column() string { return "Pct" + string(e) }

const (
	Male   = "M"
	Female = "F"
)

const DefaultPLastAsMiddle = 0.1

// NameQuery conditions a name draw. Empty fields leave the weights alone.
type NameQuery struct {
	Gender    string
	Ethnicity Ethnicity
}

type Name struct {
	Value     string
	Gender    string
	Ethnicity Ethnicity
}

type nameTable struct {
	src     *sampling.Source
	base    []float64
	genders []string
	pct     map[Ethnicity][]float64
}

// NameSource draws first, middle and last names. Gender zeroes rows of the
// other gender; ethnicity scales each row by its Pct<Ethnicity> share.
type NameSource struct {
	rng           *rand.Rand
	first         nameTable
	last          nameTable
	PLastAsMiddle float64
}

func NewNameSource(first, last *refdata.Table, rng *rand.Rand) (*NameSource, error) {
	f, err := newNameTable(first, "Freq", rng)
	if err != nil {
		return nil, err
	}
	l, err := newNameTable(last, "Count", rng)
	if err != nil {
		return nil, err
	}
	return &NameSource{rng: rng, first: f, last: l, PLastAsMiddle: DefaultPLastAsMiddle}, nil
}

func newNameTable(t *refdata.Table, weightCol string, rng *rand.Rand) (nameTable, error) {
	src, err := sampling.NewTableSource(t, weightCol, rng)
	if err != nil {
		return nameTable{}, err
	}
	nt := nameTable{src: src, base: src.Weights(), pct: make(map[Ethnicity][]float64)}
	if t.HasColumn("Gender") {
		g, err := t.Strings("Gender")
		if err != nil {
			return nameTable{}, err
		}
		nt.genders = g
	}
	for _, e := range Ethnicities {
		if !t.HasColumn(e.column()) {
			continue
		}
		p, err := t.Floats(e.column())
		if err != nil {
			return nameTable{}, err
		}
		nt.pct[e] = p
	}
	return nt, nil
}

func (nt nameTable) weights(q NameQuery) []float64 {
	w := append([]float64(nil), nt.base...)
	if q.Gender != "" && nt.genders != nil {
		for i, g := range nt.genders {
			if !strings.EqualFold(strings.TrimSpace(g), q.Gender) {
				w[i] = 0
			}
		}
	}
	if q.Ethnicity != "" {
		if pct, ok := nt.pct[q.Ethnicity]; ok {
			for i := range w {
				w[i] *= pct[i]
			}
		}
	}
	return w
}

func (nt nameTable) draw(q NameQuery) (refdata.Row, error) {
	d, err := nt.src.Sample(sampling.Query{Weights: nt.weights(q)})
	if err != nil {
		return refdata.Row{}, fmt.Errorf("name (gender=%q ethnicity=%q): %w", q.Gender, q.Ethnicity, err)
	}
	return d.Row, nil
}

// First returns the drawn name with the gender recorded on its row.
func (s *NameSource) First(q NameQuery) (Name, error) {
	row, err := s.first.draw(q)
	if err != nil {
		return Name{}, err
	}
	return Name{Value: row.String("Name"), Gender: strings.ToUpper(row.String("Gender")), Ethnicity: q.Ethnicity}, nil
}

// Last returns the drawn surname and an ethnicity picked from the row's
// normalized Pct columns.
func (s *NameSource) Last(q NameQuery) (Name, error) {
	row, err := s.last.draw(q)
	if err != nil {
		return Name{}, err
	}
	eth, err := s.ethnicityOf(row)
	if err != nil {
		return Name{}, err
	}
	return Name{Value: row.String("Name"), Gender: q.Gender, Ethnicity: eth}, nil
}

// Middle substitutes a last name with probability PLastAsMiddle.
func (s *NameSource) Middle(q NameQuery) (Name, error) {
	if sampling.Bernoulli(s.rng, s.PLastAsMiddle) {
		n, err := s.Last(NameQuery{Ethnicity: q.Ethnicity})
		if err != nil {
			return Name{}, err
		}
		n.Gender = q.Gender
		n.Ethnicity = q.Ethnicity
		return n, nil
	}
	return s.First(q)
}

func (s *NameSource) ethnicityOf(row refdata.Row) (Ethnicity, error) {
	avail := make([]Ethnicity, 0, len(Ethnicities))
	weights := make([]float64, 0, len(Ethnicities))
	for _, e := range Ethnicities {
		pct, ok := s.last.pct[e]
		if !ok {
			continue
		}
		avail = append(avail, e)
		weights = append(weights, pct[row.Index()])
	}
	if len(avail) == 0 {
		return "", nil
	}
	i, err := sampling.PickIndex(s.rng, weights)
	if err != nil {
		return "", fmt.Errorf("ethnicity for %q: %w", row.String("Name"), err)
	}
	return avail[i], nil
}
