package sources

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

const (
	Numeric      = "0123456789"
	Alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	LowerAlnum   = "0123456789abcdefghijklmnopqrstuvwxyz"
	Hex          = "0123456789abcdef"
)

const DefaultIDAttempts = 10

type IDOption func(*IDSource)

// WithLedger turns on uniqueness checks against l.
func WithLedger(l *Ledger) IDOption {
	return func(s *IDSource) { s.ledger = l }
}

func WithRetryPolicy(p RetryPolicy) IDOption {
	return func(s *IDSource) { s.policy = p }
}

// IDSource draws fixed-length identifiers over a charset. Composite forms
// (MAC, IPv6, IPv4, Segments) are checked against the ledger as a whole.
type IDSource struct {
	rng        *rand.Rand
	length     int
	charset    string
	ledger     *Ledger
	policy     RetryPolicy
	collisions int
}

func NewIDSource(rng *rand.Rand, length int, charset string, opts ...IDOption) (*IDSource, error) {
	if length <= 0 {
		return nil, fmt.Errorf("id length must be > 0, got %d", length)
	}
	if charset == "" {
		return nil, fmt.Errorf("id charset is empty")
	}
	s := &IDSource{
		rng:     rng,
		length:  length,
		charset: charset,
		policy:  RetryPolicy{Attempts: DefaultIDAttempts, OnExhaust: BestEffort},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Collisions counts best-effort draws that repeated an issued value.
func (s *IDSource) Collisions() int { return s.collisions }

func (s *IDSource) Ledger() *Ledger { return s.ledger }

func (s *IDSource) Sample() (string, error) {
	return s.unique(func() string { return s.raw(s.length, s.charset) })
}

// SampleLen draws an id of n characters instead of the configured length.
func (s *IDSource) SampleLen(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("id length must be > 0, got %d", n)
	}
	return s.unique(func() string { return s.raw(n, s.charset) })
}

// Segments joins n draws of segLen characters with sep.
func (s *IDSource) Segments(n, segLen int, sep string) (string, error) {
	return s.unique(func() string { return s.segments(n, segLen, sep, s.charset) })
}

func (s *IDSource) MAC() (string, error) {
	return s.unique(func() string { return s.segments(6, 2, ":", Hex) })
}

func (s *IDSource) IPv6() (string, error) {
	return s.unique(func() string { return s.segments(8, 4, ":", Hex) })
}

func (s *IDSource) IPv4() (string, error) {
	return s.unique(func() string {
		parts := make([]string, 4)
		for i := range parts {
			parts[i] = fmt.Sprint(1 + s.rng.Intn(254))
		}
		return strings.Join(parts, ".")
	})
}

// TaxpayerID draws nine digits following SSN area rules: area 001-899
// except 666, group 01-99, serial 0001-9999.
func (s *IDSource) TaxpayerID() (string, error) {
	return s.unique(func() string {
		area := 1 + s.rng.Intn(899)
		if area == 666 {
			area = 667
		}
		group := 1 + s.rng.Intn(99)
		serial := 1 + s.rng.Intn(9999)
		return fmt.Sprintf("%03d%02d%04d", area, group, serial)
	})
}

// UUID builds a version 4 UUID from the owned generator, so it is
// reproducible under a fixed seed.
func (s *IDSource) UUID() (string, error) {
	return s.unique(func() string {
		b := make([]byte, 16)
		s.rng.Read(b)
		b[6] = (b[6] & 0x0f) | 0x40
		b[8] = (b[8] & 0x3f) | 0x80
		u, err := uuid.FromBytes(b)
		if err != nil {
			return ""
		}
		return u.String()
	})
}

func (s *IDSource) unique(draw func() string) (string, error) {
	v, collided, err := uniqueDraw(s.ledger, s.policy, func() (string, error) { return draw(), nil })
	if collided {
		s.collisions++
	}
	return v, err
}

func (s *IDSource) raw(n int, charset string) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[s.rng.Intn(len(charset))]
	}
	return string(b)
}

func (s *IDSource) segments(n, segLen int, sep, charset string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.raw(segLen, charset)
	}
	return strings.Join(parts, sep)
}
