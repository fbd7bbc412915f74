package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/mmrzaf/taxgen/internal/logging"
	"github.com/mmrzaf/taxgen/internal/mef"
	"github.com/mmrzaf/taxgen/internal/profile"
	"github.com/mmrzaf/taxgen/internal/record"
	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sampling"
)

const progressThreshold = 30

type MefOptions struct {
	Now time.Time
	// PFraud overrides the profile's p_fraud when set.
	PFraud *float64
	Logger *logging.Logger
}

// MefGenerator mixes legit and fraud filings. Both branches share one set of
// uniqueness ledgers so ids never repeat across them.
type MefGenerator struct {
	legit   *mef.Generator
	fraud   *mef.Generator
	rng     *rand.Rand
	pFraud  float64
	triples []mef.Triple
	log     *logging.Logger
}

func NewMef(cat *refdata.Catalog, tree *profile.Tree, seed int64, opts MefOptions) (*MefGenerator, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	var pFraud float64
	if opts.PFraud != nil {
		pFraud = *opts.PFraud
		if pFraud < 0 || pFraud > 1 {
			return nil, &profile.ConfigError{Path: "p_fraud", Err: fmt.Errorf("probability %v outside [0,1]", pFraud)}
		}
	} else {
		p, err := tree.Prob("p_fraud")
		if err != nil {
			return nil, err
		}
		pFraud = p
	}

	seeder := sampling.NewSeeder(seed)
	mo := mef.Options{Now: opts.Now, Ledgers: mef.NewLedgers(), Logger: opts.Logger}
	legit, err := mef.New(cat, tree, mef.KeyLegit, seeder.Next(), mo)
	if err != nil {
		return nil, fmt.Errorf("legit generator: %w", err)
	}
	fraud, err := mef.NewFraud(cat, tree, seeder.Next(), mo)
	if err != nil {
		return nil, fmt.Errorf("fraud generator: %w", err)
	}
	return &MefGenerator{
		legit:  legit,
		fraud:  fraud,
		rng:    seeder.Rand(),
		pFraud: pFraud,
		log:    opts.Logger.WithComponent("dataset.mef"),
	}, nil
}

func (g *MefGenerator) Kind() string { return KindMef }

func (g *MefGenerator) PFraud() float64 { return g.pFraud }

func (g *MefGenerator) Collisions() int {
	return g.legit.Collisions() + g.fraud.Collisions()
}

// GenRecords draws num filings and keeps them for Tables and ExportCSV.
func (g *MefGenerator) GenRecords(num int) ([]mef.Triple, error) {
	if num < 1 {
		return nil, fmt.Errorf("num must be > 0, got %d", num)
	}
	progress := num > progressThreshold && g.log.DebugEnabled()
	step := max(num/10, 1)

	out := make([]mef.Triple, 0, num)
	frauds := 0
	for i := 0; i < num; i++ {
		gen := g.legit
		if sampling.Bernoulli(g.rng, g.pFraud) {
			gen = g.fraud
			frauds++
		}
		tr, err := gen.GetRecord()
		if err != nil {
			return nil, fmt.Errorf("filing %d (%s): %w", i, gen.Key(), err)
		}
		out = append(out, tr)
		if progress && ((i+1)%step == 0 || i+1 == num) {
			g.log.Debugw("mef.progress", map[string]any{"done": i + 1, "total": num, "fraud": frauds})
		}
	}
	g.triples = out
	return out, nil
}

// Tables materializes the last GenRecords result as the three MeF tables.
func (g *MefGenerator) Tables() []NamedTable {
	auth := make([]*mef.AuthRecord, len(g.triples))
	ret := make([]*mef.ReturnRecord, len(g.triples))
	fin := make([]*mef.FinRecord, len(g.triples))
	for i, tr := range g.triples {
		auth[i], ret[i], fin[i] = tr.Auth, tr.Return, tr.Financial
	}
	return []NamedTable{
		{Name: mef.AuthSchema.Name(), Table: record.AsTable(mef.AuthSchema, auth)},
		{Name: mef.ReturnSchema.Name(), Table: record.AsTable(mef.ReturnSchema, ret)},
		{Name: mef.FinSchema.Name(), Table: record.AsTable(mef.FinSchema, fin)},
	}
}

func (g *MefGenerator) ExportCSV(ctx context.Context, dir string) ([]string, error) {
	return ExportCSV(ctx, dir, g.Tables())
}

func (g *MefGenerator) Generate(num int) ([]NamedTable, error) {
	if _, err := g.GenRecords(num); err != nil {
		return nil, err
	}
	return g.Tables(), nil
}
