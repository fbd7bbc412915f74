package sources

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sampling"
)

var ErrNoZip = errors.New("city has no zip codes")

type Place struct {
	City  string
	State string
	Zip   string
}

// CitySource draws a city by population and one of its zip codes.
type CitySource struct {
	rng *rand.Rand
	src *sampling.Source
}

func NewCitySource(cities *refdata.Table, rng *rand.Rand) (*CitySource, error) {
	src, err := sampling.NewTableSource(cities, "Population", rng)
	if err != nil {
		return nil, err
	}
	return &CitySource{rng: rng, src: src}, nil
}

// Sample restricts to state when it is non-empty.
func (s *CitySource) Sample(state string) (Place, error) {
	q := sampling.Query{}
	if state != "" {
		q.Restrict = &sampling.Restriction{Column: "State", Value: state}
	}
	d, err := s.src.Sample(q)
	if err != nil {
		return Place{}, fmt.Errorf("city: %w", err)
	}
	zips := d.Row.List("ZipCodes")
	if len(zips) == 0 {
		return Place{}, fmt.Errorf("%s: %w", d.Row.String("City"), ErrNoZip)
	}
	return Place{
		City:  d.Row.String("City"),
		State: strings.ToUpper(d.Row.String("State")),
		Zip:   zips[s.rng.Intn(len(zips))],
	}, nil
}

// ZipSource answers area-code lookups by zip, then by city, then from the
// whole pool.
type ZipSource struct {
	rng    *rand.Rand
	byZip  map[string][]string
	byCity map[string][]string
	pool   []string
}

func NewZipSource(zips *refdata.Table, rng *rand.Rand) (*ZipSource, error) {
	for _, col := range []string{"Zip", "AreaCodes", "CommonCities"} {
		if !zips.HasColumn(col) {
			return nil, fmt.Errorf("table %s: %w %q", zips.Name(), refdata.ErrUnknownColumn, col)
		}
	}
	s := &ZipSource{rng: rng, byZip: map[string][]string{}, byCity: map[string][]string{}}
	seen := map[string]bool{}
	for i := 0; i < zips.Len(); i++ {
		r := zips.Row(i)
		codes := r.List("AreaCodes")
		if len(codes) == 0 {
			continue
		}
		s.byZip[r.String("Zip")] = codes
		for _, c := range r.List("CommonCities") {
			key := strings.ToLower(c)
			s.byCity[key] = appendNew(s.byCity[key], codes...)
		}
		for _, c := range codes {
			if !seen[c] {
				seen[c] = true
				s.pool = append(s.pool, c)
			}
		}
	}
	if len(s.pool) == 0 {
		return nil, fmt.Errorf("table %s: no area codes", zips.Name())
	}
	return s, nil
}

func (s *ZipSource) AreaCode(zip, city string) string {
	if codes, ok := s.byZip[strings.TrimSpace(zip)]; ok {
		return codes[s.rng.Intn(len(codes))]
	}
	if codes, ok := s.byCity[strings.ToLower(strings.TrimSpace(city))]; ok {
		return codes[s.rng.Intn(len(codes))]
	}
	return s.pool[s.rng.Intn(len(s.pool))]
}

func appendNew(dst []string, vals ...string) []string {
	for _, v := range vals {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
