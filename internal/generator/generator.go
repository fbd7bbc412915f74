// Package generator composes the identity sources into taxpayer records.
package generator

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmrzaf/taxgen/internal/logging"
	"github.com/mmrzaf/taxgen/internal/record"
	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sampling"
	"github.com/mmrzaf/taxgen/internal/sources"
)

const (
	MinFilerAge        = 18
	DefaultAgeAttempts = 100
	progressThreshold  = 30
)

var ErrUnderage = errors.New("no adult age drawn within retry budget")

type Options struct {
	Now         time.Time
	State       string
	UniqueLabel bool
	AgeAttempts int
	IDPolicy    sources.RetryPolicy
	EmailPolicy sources.RetryPolicy
	IDLedger    *sources.Ledger
	EmailLedger *sources.Ledger
	Logger      *logging.Logger
}

type Option func(*Options)

func WithNow(now time.Time) Option { return func(o *Options) { o.Now = now } }

// WithState limits cities to one state.
func WithState(state string) Option { return func(o *Options) { o.State = state } }

// WithUniqueLabel adds a UniqueLabel uuid column.
func WithUniqueLabel() Option { return func(o *Options) { o.UniqueLabel = true } }

func WithLogger(l *logging.Logger) Option { return func(o *Options) { o.Logger = l } }

func WithAgeAttempts(n int) Option { return func(o *Options) { o.AgeAttempts = n } }

// WithLedgers shares uniqueness ledgers with other generators of the same
// session.
func WithLedgers(ids, emails *sources.Ledger) Option {
	return func(o *Options) {
		o.IDLedger = ids
		o.EmailLedger = emails
	}
}

func WithRetryPolicies(ids, emails sources.RetryPolicy) Option {
	return func(o *Options) {
		o.IDPolicy = ids
		o.EmailPolicy = emails
	}
}

type RecordGenerator struct {
	opts   Options
	schema *record.Schema[Field]
	log    *logging.Logger

	ages      *sources.AgeSource
	names     *sources.NameSource
	cities    *sources.CitySource
	zips      *sources.ZipSource
	addresses *sources.AddressSource
	ids       *sources.IDSource
	contact   *sources.ContactInfoSource
	labels    *sources.IDSource
}

// New builds every source from its own child seed, in a fixed order, so the
// same seed and catalog reproduce the same records.
func New(cat *refdata.Catalog, seed int64, opts ...Option) (*RecordGenerator, error) {
	o := Options{
		Now:         time.Now(),
		AgeAttempts: DefaultAgeAttempts,
		IDPolicy:    sources.RetryPolicy{Attempts: sources.DefaultIDAttempts},
		EmailPolicy: sources.RetryPolicy{Attempts: sources.DefaultEmailAttempts},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.IDLedger == nil {
		o.IDLedger = sources.NewLedger()
	}
	if o.EmailLedger == nil {
		o.EmailLedger = sources.NewLedger()
	}
	if o.AgeAttempts < 1 {
		return nil, fmt.Errorf("age attempts must be > 0, got %d", o.AgeAttempts)
	}

	seeder := sampling.NewSeeder(seed)
	g := &RecordGenerator{opts: o, schema: IdentitySchema, log: o.Logger.WithComponent("generator")}
	if o.UniqueLabel {
		g.schema = LabeledIdentitySchema
	}

	var err error
	if g.ages, err = sources.NewAgeSource(cat.MustTable(refdata.Ages), seeder.Rand(), o.Now); err != nil {
		return nil, err
	}
	if g.names, err = sources.NewNameSource(cat.MustTable(refdata.FirstNames), cat.MustTable(refdata.LastNames), seeder.Rand()); err != nil {
		return nil, err
	}
	if g.cities, err = sources.NewCitySource(cat.MustTable(refdata.Cities), seeder.Rand()); err != nil {
		return nil, err
	}
	if g.zips, err = sources.NewZipSource(cat.MustTable(refdata.Zips), seeder.Rand()); err != nil {
		return nil, err
	}
	if g.addresses, err = sources.NewAddressSource(cat.MustTable(refdata.Streets), seeder.Rand()); err != nil {
		return nil, err
	}
	if g.ids, err = sources.NewIDSource(seeder.Rand(), 9, sources.Numeric,
		sources.WithLedger(o.IDLedger), sources.WithRetryPolicy(o.IDPolicy)); err != nil {
		return nil, err
	}
	if g.contact, err = sources.NewContactInfoSource(cat.MustTable(refdata.EmailDomains), seeder.Rand(), o.EmailLedger); err != nil {
		return nil, err
	}
	g.contact.SetRetryPolicy(o.EmailPolicy)
	if g.labels, err = sources.NewIDSource(seeder.Rand(), 32, sources.Hex); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *RecordGenerator) Schema() *record.Schema[Field] { return g.schema }

func (g *RecordGenerator) Now() time.Time { return g.ages.Now() }

// Collisions counts best-effort ids and emails that repeated a value.
func (g *RecordGenerator) Collisions() int {
	return g.ids.Collisions() + g.contact.Collisions()
}

// Phone draws a number in areaCode under the same rules as record phones.
func (g *RecordGenerator) Phone(areaCode string) (string, error) {
	return g.contact.Phone(areaCode)
}

func (g *RecordGenerator) adultAge() (sources.Age, error) {
	for i := 0; i < g.opts.AgeAttempts; i++ {
		a, err := g.ages.Sample()
		if err != nil {
			return sources.Age{}, err
		}
		if a.Years >= MinFilerAge {
			return a, nil
		}
	}
	return sources.Age{}, fmt.Errorf("%w (%d attempts)", ErrUnderage, g.opts.AgeAttempts)
}

func (g *RecordGenerator) GetRecord() (*Record, error) {
	trace := map[string]any{}
	fail := func(step string, err error) (*Record, error) {
		trace["step"] = step
		trace["error"] = err
		g.log.Errorw("record.assembly_failed", trace)
		return nil, fmt.Errorf("identity %s: %w", step, err)
	}

	age, err := g.adultAge()
	if err != nil {
		return fail("age", err)
	}
	trace["age"] = age.Years
	trace["birthdate"] = age.Birthdate.Format(time.DateOnly)

	first, err := g.names.First(sources.NameQuery{})
	if err != nil {
		return fail("first_name", err)
	}
	trace["first_name"] = first.Value
	trace["gender"] = first.Gender

	last, err := g.names.Last(sources.NameQuery{})
	if err != nil {
		return fail("last_name", err)
	}
	trace["last_name"] = last.Value
	trace["ethnicity"] = string(last.Ethnicity)

	maiden := ""
	if first.Gender == sources.Female {
		m, err := g.names.Last(sources.NameQuery{Ethnicity: last.Ethnicity})
		if err != nil {
			return fail("maiden_name", err)
		}
		maiden = m.Value
		trace["maiden_name"] = maiden
	}

	middle, err := g.names.Middle(sources.NameQuery{Gender: first.Gender, Ethnicity: last.Ethnicity})
	if err != nil {
		return fail("middle_name", err)
	}
	trace["middle_name"] = middle.Value

	place, err := g.cities.Sample(g.opts.State)
	if err != nil {
		return fail("city", err)
	}
	trace["city"] = place.City
	trace["state"] = place.State
	trace["zip"] = place.Zip

	area := g.zips.AreaCode(place.Zip, place.City)
	trace["area_code"] = area

	addr, err := g.addresses.Sample(place.City)
	if err != nil {
		return fail("address", err)
	}
	trace["street"] = addr.Line1()

	tin, err := g.ids.TaxpayerID()
	if err != nil {
		return fail("taxpayer_id", err)
	}

	phone, err := g.contact.Phone(area)
	if err != nil {
		return fail("phone", err)
	}
	trace["phone"] = phone

	email, err := g.contact.Email(sources.EmailQuery{
		First:     first.Value,
		Last:      last.Value,
		BirthYear: age.Birthdate.Year(),
		Age:       age.Years,
	})
	if err != nil {
		return fail("email", err)
	}
	trace["email"] = email

	month, day, year := age.MDY()
	rec := record.New(g.schema)
	fields := map[Field]any{
		TaxpayerID:   tin,
		FirstName:    first.Value,
		MiddleName:   middle.Value,
		LastName:     last.Value,
		MaidenName:   maiden,
		Gender:       first.Gender,
		Ethnicity:    string(last.Ethnicity),
		Age:          age.Years,
		BirthMonth:   int(month),
		BirthDay:     day,
		BirthYear:    year,
		StreetNumber: addr.Number,
		StreetName:   addr.Street,
		Apartment:    addr.Apartment,
		City:         place.City,
		State:        place.State,
		Zip:          place.Zip,
		AreaCode:     area,
		Phone:        phone,
		Email:        email,
	}
	if g.opts.UniqueLabel {
		label, err := g.labels.UUID()
		if err != nil {
			return fail("unique_label", err)
		}
		fields[UniqueLabel] = label
	}
	if err := rec.Update(fields); err != nil {
		return fail("assemble", err)
	}
	return rec, nil
}

// GenRecords logs progress at debug level for runs longer than 30 records.
func (g *RecordGenerator) GenRecords(num int) ([]*Record, error) {
	if num < 1 {
		return nil, fmt.Errorf("num must be > 0, got %d", num)
	}
	progress := num > progressThreshold && g.log.DebugEnabled()
	step := max(num/10, 1)

	out := make([]*Record, 0, num)
	for i := 0; i < num; i++ {
		r, err := g.GetRecord()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, r)
		if progress && ((i+1)%step == 0 || i+1 == num) {
			g.log.Debugw("records.progress", map[string]any{"done": i + 1, "total": num})
		}
	}
	return out, nil
}

func (g *RecordGenerator) GenTable(num int) (record.Table, error) {
	recs, err := g.GenRecords(num)
	if err != nil {
		return record.Table{}, err
	}
	return record.AsTable(g.schema, recs), nil
}
