// Package sources adapts weighted sampling to identity fields: names,
// places, ages, ids, street addresses and contact details.
package sources

import (
	"errors"
	"fmt"
)

var ErrLedgerExhausted = errors.New("no unique value within retry budget")

// Ledger remembers values issued during one generation session. It only
// grows until Reset and must not be shared between sessions.
type Ledger struct {
	seen map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Add records v and reports whether it was new.
func (l *Ledger) Add(v string) bool {
	if _, ok := l.seen[v]; ok {
		return false
	}
	l.seen[v] = struct{}{}
	return true
}

func (l *Ledger) Contains(v string) bool {
	_, ok := l.seen[v]
	return ok
}

func (l *Ledger) Len() int { return len(l.seen) }

func (l *Ledger) Reset() { l.seen = make(map[string]struct{}) }

type ExhaustionPolicy int

const (
	// BestEffort returns the last draw even if it repeats an issued value.
	BestEffort ExhaustionPolicy = iota
	// Strict fails with ErrLedgerExhausted.
	Strict
)

func (p ExhaustionPolicy) String() string {
	if p == Strict {
		return "strict"
	}
	return "best_effort"
}

func ParseExhaustionPolicy(s string) (ExhaustionPolicy, error) {
	switch s {
	case "", "best_effort", "best-effort":
		return BestEffort, nil
	case "strict":
		return Strict, nil
	default:
		return BestEffort, fmt.Errorf("unknown exhaustion policy %q", s)
	}
}

type RetryPolicy struct {
	Attempts  int
	OnExhaust ExhaustionPolicy
}

// uniqueDraw calls draw until the ledger accepts a value or the attempts run
// out. A nil ledger accepts the first draw.
func uniqueDraw(ledger *Ledger, p RetryPolicy, draw func() (string, error)) (string, bool, error) {
	if ledger == nil {
		v, err := draw()
		return v, false, err
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last string
	for i := 0; i < attempts; i++ {
		v, err := draw()
		if err != nil {
			return "", false, err
		}
		if ledger.Add(v) {
			return v, false, nil
		}
		last = v
	}
	if p.OnExhaust == Strict {
		return "", true, fmt.Errorf("%w (%d attempts)", ErrLedgerExhausted, attempts)
	}
	return last, true, nil
}
