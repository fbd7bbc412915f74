package dataset

import (
	"github.com/mmrzaf/taxgen/internal/generator"
	"github.com/mmrzaf/taxgen/internal/refdata"
)

const IdentitiesTable = "identities"

type IdentityGenerator struct {
	gen *generator.RecordGenerator
}

func NewIdentity(cat *refdata.Catalog, seed int64, opts ...generator.Option) (*IdentityGenerator, error) {
	gen, err := generator.New(cat, seed, opts...)
	if err != nil {
		return nil, err
	}
	return &IdentityGenerator{gen: gen}, nil
}

func (g *IdentityGenerator) Kind() string { return KindIdentities }

func (g *IdentityGenerator) Records() *generator.RecordGenerator { return g.gen }

func (g *IdentityGenerator) Collisions() int { return g.gen.Collisions() }

func (g *IdentityGenerator) Generate(num int) ([]NamedTable, error) {
	t, err := g.gen.GenTable(num)
	if err != nil {
		return nil, err
	}
	return []NamedTable{{Name: IdentitiesTable, Table: t}}, nil
}
