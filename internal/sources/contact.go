package sources

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sampling"
)

const (
	DefaultEmailAttempts = 5
	phoneAttempts        = 50
	eduMaxAge            = 29
)

var ErrPhoneExhausted = errors.New("could not draw a phone number without 911")

// EmailPattern selects how the local part is built from the holder's name.
type EmailPattern int

const (
	FirstDotLast EmailPattern = iota // first.last
	FirstYY                          // first_YY
	LastYY                           // last_YY
	FLast                            // flast
	FirstLastNN                      // firstlastNN
	numEmailPatterns
)

type EmailQuery struct {
	First     string
	Last      string
	BirthYear int
	Age       int
}

// ContactInfoSource draws phone numbers and session-unique email addresses.
type ContactInfoSource struct {
	rng        *rand.Rand
	domains    *sampling.Source
	general    []float64
	all        []float64
	ledger     *Ledger
	policy     RetryPolicy
	collisions int
}

func NewContactInfoSource(domains *refdata.Table, rng *rand.Rand, ledger *Ledger) (*ContactInfoSource, error) {
	src, err := sampling.NewTableSource(domains, "Freq", rng)
	if err != nil {
		return nil, err
	}
	all := src.Weights()
	general := append([]float64(nil), all...)
	if domains.HasColumn("Kind") {
		for i := range general {
			if strings.EqualFold(domains.Row(i).String("Kind"), "edu") {
				general[i] = 0
			}
		}
	}
	return &ContactInfoSource{
		rng:     rng,
		domains: src,
		general: general,
		all:     all,
		ledger:  ledger,
		policy:  RetryPolicy{Attempts: DefaultEmailAttempts, OnExhaust: BestEffort},
	}, nil
}

func (s *ContactInfoSource) SetRetryPolicy(p RetryPolicy) { s.policy = p }

func (s *ContactInfoSource) Collisions() int { return s.collisions }

// Phone formats AAA-EEE-NNNN and redraws while the digits contain 911.
func (s *ContactInfoSource) Phone(areaCode string) (string, error) {
	for i := 0; i < phoneAttempts; i++ {
		exchange := sampling.Digits(s.rng, 1, false)
		for exchange == "0" || exchange == "1" {
			exchange = sampling.Digits(s.rng, 1, false)
		}
		exchange += sampling.Digits(s.rng, 2, false)
		line := sampling.Digits(s.rng, 4, false)
		if strings.Contains(areaCode+exchange+line, "911") {
			continue
		}
		return areaCode + "-" + exchange + "-" + line, nil
	}
	return "", fmt.Errorf("area code %s: %w", areaCode, ErrPhoneExhausted)
}

// Email offers edu domains only to holders younger than 29.
func (s *ContactInfoSource) Email(q EmailQuery) (string, error) {
	first := foldASCII(q.First)
	last := foldASCII(q.Last)
	if first == "" && last == "" {
		return "", errors.New("email: empty name")
	}
	weights := s.general
	if q.Age < eduMaxAge {
		weights = s.all
	}

	v, collided, err := uniqueDraw(s.ledger, s.policy, func() (string, error) {
		d, err := s.domains.Sample(sampling.Query{Weights: weights})
		if err != nil {
			return "", fmt.Errorf("email domain: %w", err)
		}
		local := localPart(EmailPattern(s.rng.Intn(int(numEmailPatterns))), first, last, q.BirthYear, s.rng)
		return local + "@" + d.Row.String("Domain"), nil
	})
	if collided {
		s.collisions++
	}
	return v, err
}

func localPart(p EmailPattern, first, last string, birthYear int, rng *rand.Rand) string {
	yy := fmt.Sprintf("%02d", ((birthYear%100)+100)%100)
	switch {
	case first == "":
		first = last
	case last == "":
		last = first
	}
	switch p {
	case FirstDotLast:
		return first + "." + last
	case FirstYY:
		return first + "_" + yy
	case LastYY:
		return last + "_" + yy
	case FLast:
		return first[:1] + last
	default:
		return first + last + fmt.Sprintf("%02d", rng.Intn(100))
	}
}

// foldASCII lowercases s, strips diacritics and drops anything that is not
// a letter or digit.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
