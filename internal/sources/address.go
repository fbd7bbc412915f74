package sources

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sampling"
)

const (
	DefaultPApartment  = 0.12
	DefaultPUnitLetter = 0.04
	maxStreetDigits    = 5
)

// StreetNumberSource picks a digit count from a Beta(2,5) shape, so short
// house numbers dominate.
type StreetNumberSource struct {
	rng    *rand.Rand
	digits sampling.Distribution
}

func NewStreetNumberSource(rng *rand.Rand) *StreetNumberSource {
	return &StreetNumberSource{rng: rng, digits: sampling.Beta{Alpha: 2, Beta: 5}}
}

func (s *StreetNumberSource) Sample() string {
	n := 1 + int(math.Floor(s.digits.Sample(s.rng)*maxStreetDigits))
	if n > maxStreetDigits {
		n = maxStreetDigits
	}
	return sampling.Digits(s.rng, n, true)
}

type Address struct {
	Number    string
	Street    string
	Apartment string
}

func (a Address) Line1() string {
	return a.Number + " " + a.Street
}

type AddressSource struct {
	rng         *rand.Rand
	streets     *sampling.Source
	numbers     *StreetNumberSource
	PApartment  float64
	PUnitLetter float64
}

func NewAddressSource(streets *refdata.Table, rng *rand.Rand) (*AddressSource, error) {
	src, err := sampling.NewTableSource(streets, "Freq", rng)
	if err != nil {
		return nil, err
	}
	return &AddressSource{
		rng:         rng,
		streets:     src,
		numbers:     NewStreetNumberSource(rng),
		PApartment:  DefaultPApartment,
		PUnitLetter: DefaultPUnitLetter,
	}, nil
}

// Sample prefers streets listed for city and falls back to the whole table.
func (s *AddressSource) Sample(city string) (Address, error) {
	d, err := s.streets.Sample(sampling.Query{Restrict: &sampling.Restriction{Column: "City", Value: city}})
	if errors.Is(err, sampling.ErrEmptyRestriction) || errors.Is(err, sampling.ErrZeroWeight) {
		d, err = s.streets.Sample(sampling.Query{})
	}
	if err != nil {
		return Address{}, fmt.Errorf("street: %w", err)
	}

	a := Address{Number: s.numbers.Sample(), Street: d.Row.String("Street")}
	u := s.rng.Float64()
	switch {
	case u < s.PApartment:
		a.Apartment = "Apt " + sampling.Digits(s.rng, 1+s.rng.Intn(3), true)
	case u < s.PApartment+s.PUnitLetter:
		a.Apartment = "Unit " + string(rune('A'+s.rng.Intn(6)))
	}
	return a, nil
}
