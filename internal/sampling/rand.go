package sampling

import "math/rand"

// Seeder hands out child seeds in construction order, so a fixed top-level
// seed reproduces every source below it.
type Seeder struct {
	rng *rand.Rand
}

func NewSeeder(seed int64) *Seeder {
	return &Seeder{rng: rand.New(rand.NewSource(seed))}
}

func (s *Seeder) Next() int64 { return s.rng.Int63() }

// Rand returns a new generator seeded with Next().
func (s *Seeder) Rand() *rand.Rand {
	return rand.New(rand.NewSource(s.Next()))
}

func Bernoulli(rng *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float64() < p
}

// Digits returns n random decimal digits; the first is non-zero when
// leadingNonZero is set.
func Digits(rng *rand.Rand, n int, leadingNonZero bool) string {
	b := make([]byte, n)
	for i := range b {
		if i == 0 && leadingNonZero {
			b[i] = byte('1' + rng.Intn(9))
			continue
		}
		b[i] = byte('0' + rng.Intn(10))
	}
	return string(b)
}
