package sources

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sampling"
)

type Age struct {
	Years     int
	Birthdate time.Time
	MinAge    int
	MaxAge    int
}

func (a Age) MDY() (time.Month, int, int) {
	return a.Birthdate.Month(), a.Birthdate.Day(), a.Birthdate.Year()
}

// AgeSource draws a bracket by population and a birthdate uniformly inside
// the window of dates that put the holder in that bracket at Now.
type AgeSource struct {
	rng *rand.Rand
	src *sampling.Source
	now time.Time
}

func NewAgeSource(ages *refdata.Table, rng *rand.Rand, now time.Time) (*AgeSource, error) {
	src, err := sampling.NewTableSource(ages, "Population", rng)
	if err != nil {
		return nil, err
	}
	return &AgeSource{rng: rng, src: src, now: Day(now)}, nil
}

func (s *AgeSource) Now() time.Time { return s.now }

func (s *AgeSource) Sample() (Age, error) {
	d, err := s.src.Sample(sampling.Query{})
	if err != nil {
		return Age{}, fmt.Errorf("age: %w", err)
	}
	lo, err := d.Row.Int("MinAge")
	if err != nil {
		return Age{}, fmt.Errorf("age: %w", err)
	}
	hi, err := d.Row.Int("MaxAge")
	if err != nil {
		return Age{}, fmt.Errorf("age: %w", err)
	}
	if hi < lo {
		return Age{}, fmt.Errorf("age: bracket %d-%d is inverted", lo, hi)
	}

	earliest, latest := birthWindow(s.now, lo, hi)
	days := int(latest.Sub(earliest).Hours() / 24)
	b := earliest.AddDate(0, 0, s.rng.Intn(days+1))
	return Age{Years: AgeAt(b, s.now), Birthdate: b, MinAge: lo, MaxAge: hi}, nil
}

// birthWindow returns the first and last birthdates aged lo..hi at now.
func birthWindow(now time.Time, lo, hi int) (time.Time, time.Time) {
	latest := now.AddDate(-lo, 0, 0)
	for AgeAt(latest, now) < lo {
		latest = latest.AddDate(0, 0, -1)
	}
	earliest := now.AddDate(-(hi + 1), 0, 1)
	for AgeAt(earliest, now) > hi {
		earliest = earliest.AddDate(0, 0, 1)
	}
	return earliest, latest
}

// AgeAt is the number of completed years between birth and now.
func AgeAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
