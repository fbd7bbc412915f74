package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmrzaf/taxgen/internal/dataset"
	"github.com/mmrzaf/taxgen/internal/generator"
	"github.com/mmrzaf/taxgen/internal/logging"
	"github.com/mmrzaf/taxgen/internal/profile"
	"github.com/mmrzaf/taxgen/internal/refdata"
)

// Params carries every knob a dataset factory may read. Factories ignore
// the ones that do not apply to their kind.
type Params struct {
	Catalog     *refdata.Catalog
	Profile     *profile.Tree
	Seed        int64
	Now         time.Time
	State       string
	UniqueLabel bool
	PFraud      *float64
	Logger      *logging.Logger
}

type Factory func(Params) (dataset.Dataset, error)

type DatasetRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewDatasetRegistry() *DatasetRegistry {
	return &DatasetRegistry{
		factories: make(map[string]Factory),
	}
}

func (r *DatasetRegistry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

func (r *DatasetRegistry) Get(kind string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("dataset not found: %s", kind)
	}
	return f, nil
}

func (r *DatasetRegistry) Has(kind string) bool {
	_, err := r.Get(kind)
	return err == nil
}

func (r *DatasetRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *DatasetRegistry) Build(kind string, p Params) (dataset.Dataset, error) {
	f, err := r.Get(kind)
	if err != nil {
		return nil, err
	}
	if p.Catalog == nil {
		return nil, fmt.Errorf("dataset %s: reference catalog is required", kind)
	}
	return f(p)
}

func DefaultDatasetRegistry() *DatasetRegistry {
	r := NewDatasetRegistry()
	r.Register(dataset.KindIdentities, newIdentities)
	r.Register(dataset.KindMef, newMef)
	return r
}

func newIdentities(p Params) (dataset.Dataset, error) {
	opts := []generator.Option{generator.WithState(p.State)}
	if !p.Now.IsZero() {
		opts = append(opts, generator.WithNow(p.Now))
	}
	if p.UniqueLabel {
		opts = append(opts, generator.WithUniqueLabel())
	}
	if p.Logger != nil {
		opts = append(opts, generator.WithLogger(p.Logger))
	}
	return dataset.NewIdentity(p.Catalog, p.Seed, opts...)
}

func newMef(p Params) (dataset.Dataset, error) {
	tree := p.Profile
	if tree == nil {
		tree = profile.Default()
	}
	return dataset.NewMef(p.Catalog, tree, p.Seed, dataset.MefOptions{
		Now:    p.Now,
		PFraud: p.PFraud,
		Logger: p.Logger,
	})
}
