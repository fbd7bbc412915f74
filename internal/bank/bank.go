// Package bank draws financial account records for filers.
package bank

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mmrzaf/taxgen/internal/record"
	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sampling"
	"github.com/mmrzaf/taxgen/internal/sources"
)

type Field string

const (
	HolderName    Field = "HolderName"
	BankName      Field = "BankName"
	RoutingNumber Field = "RoutingNumber"
	AccountNumber Field = "AccountNumber"
	Checking      Field = "Checking"
	Savings       Field = "Savings"
	InUS          Field = "InUS"
)

var AccountSchema = record.NewSchema("fin_account",
	HolderName, BankName, RoutingNumber, AccountNumber, Checking, Savings, InUS)

type FinAccountRecord = record.Record[Field]

const (
	DefaultPInUS     = 0.98
	DefaultPChecking = 0.65
	minAccountDigits = 8
	maxAccountDigits = 12
)

var ErrInvalidRouting = errors.New("routing number fails ABA checksum")

type Options struct {
	PInUS     float64
	PChecking float64
	Ledger    *sources.Ledger
}

type Generator struct {
	rng      *rand.Rand
	banks    *sampling.Source
	accounts *sources.IDSource
	opts     Options
}

// New rejects bank tables that carry an invalid routing number.
func New(banks *refdata.Table, rng *rand.Rand, opts Options) (*Generator, error) {
	for i := 0; i < banks.Len(); i++ {
		r := banks.Row(i)
		if !ValidRouting(r.String("RoutingNumber")) {
			return nil, fmt.Errorf("bank %q routing %q: %w", r.String("Bank"), r.String("RoutingNumber"), ErrInvalidRouting)
		}
	}
	src, err := sampling.NewTableSource(banks, "Freq", rng)
	if err != nil {
		return nil, err
	}
	if opts.Ledger == nil {
		opts.Ledger = sources.NewLedger()
	}
	accounts, err := sources.NewIDSource(rng, maxAccountDigits, sources.Numeric, sources.WithLedger(opts.Ledger))
	if err != nil {
		return nil, err
	}
	return &Generator{rng: rng, banks: src, accounts: accounts, opts: opts}, nil
}

func (g *Generator) Collisions() int { return g.accounts.Collisions() }

func (g *Generator) GetRecord(holderName string) (*FinAccountRecord, error) {
	d, err := g.banks.Sample(sampling.Query{})
	if err != nil {
		return nil, fmt.Errorf("bank: %w", err)
	}
	n := minAccountDigits + g.rng.Intn(maxAccountDigits-minAccountDigits+1)
	acct, err := g.accounts.SampleLen(n)
	if err != nil {
		return nil, fmt.Errorf("account number: %w", err)
	}

	checking, savings := "0", "1"
	if sampling.Bernoulli(g.rng, g.opts.PChecking) {
		checking, savings = "1", "0"
	}
	inUS := "0"
	if sampling.Bernoulli(g.rng, g.opts.PInUS) {
		inUS = "1"
	}

	r := record.New(AccountSchema)
	if err := r.Update(map[Field]any{
		HolderName:    holderName,
		BankName:      d.Row.String("Bank"),
		RoutingNumber: d.Row.String("RoutingNumber"),
		AccountNumber: acct,
		Checking:      checking,
		Savings:       savings,
		InUS:          inUS,
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// ValidRouting checks the nine-digit ABA checksum
// 3(d1+d4+d7) + 7(d2+d5+d8) + (d3+d6+d9) = 0 mod 10.
func ValidRouting(s string) bool {
	if len(s) != 9 {
		return false
	}
	weights := [3]int{3, 7, 1}
	sum := 0
	for i := 0; i < 9; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += weights[i%3] * int(c-'0')
	}
	return sum%10 == 0
}
