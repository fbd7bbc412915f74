package generator

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/taxgen/internal/logging"
	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sources"
)

var testNow = time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC)

func newGen(t *testing.T, seed int64, opts ...Option) *RecordGenerator {
	t.Helper()
	cat, err := refdata.EmbeddedCatalog()
	require.NoError(t, err)
	g, err := New(cat, seed, append([]Option{WithNow(testNow)}, opts...)...)
	require.NoError(t, err)
	return g
}

func TestGetRecord_AdultWithConsistentBirthdate(t *testing.T) {
	g := newGen(t, 1)
	recs, err := g.GenRecords(200)
	require.NoError(t, err)

	for _, r := range recs {
		ageV, _ := r.Get(Age)
		age := ageV.(int)
		require.GreaterOrEqual(t, age, MinFilerAge)

		m, _ := r.Get(BirthMonth)
		d, _ := r.Get(BirthDay)
		y, _ := r.Get(BirthYear)
		birth := time.Date(y.(int), time.Month(m.(int)), d.(int), 0, 0, 0, 0, time.UTC)
		require.Equal(t, age, sources.AgeAt(birth, g.Now()))
	}
}

func TestGetRecord_FieldConsistency(t *testing.T) {
	g := newGen(t, 2)
	cat, err := refdata.EmbeddedCatalog()
	require.NoError(t, err)
	cities := cat.MustTable(refdata.Cities)

	recs, err := g.GenRecords(100)
	require.NoError(t, err)
	for _, r := range recs {
		assert.Regexp(t, `^\d{9}$`, r.String(TaxpayerID))
		assert.Contains(t, []string{sources.Male, sources.Female}, r.String(Gender))
		if r.String(Gender) == sources.Male {
			assert.Empty(t, r.String(MaidenName))
		} else {
			assert.NotEmpty(t, r.String(MaidenName))
		}
		assert.True(t, strings.HasPrefix(r.String(Phone), r.String(AreaCode)+"-"))
		assert.Contains(t, r.String(Email), "@")

		city, err := cities.Filter("City", r.String(City))
		require.NoError(t, err)
		require.Positive(t, city.Len())
		assert.Contains(t, city.Row(0).List("ZipCodes"), r.String(Zip))
	}
}

func TestGenRecords_UniqueIDsAndEmails(t *testing.T) {
	g := newGen(t, 3)
	recs, err := g.GenRecords(300)
	require.NoError(t, err)

	tins := map[string]bool{}
	emails := map[string]bool{}
	for _, r := range recs {
		require.False(t, tins[r.String(TaxpayerID)])
		tins[r.String(TaxpayerID)] = true
		emails[r.String(Email)] = true
	}
	assert.Equal(t, len(recs)-g.contact.Collisions(), len(emails))
}

func TestGenTable_DeterministicUnderSeed(t *testing.T) {
	a, err := newGen(t, 42).GenTable(10)
	require.NoError(t, err)
	b, err := newGen(t, 42).GenTable(10)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("seed 42 runs differ (-a +b):\n%s", diff)
	}
	assert.Equal(t, IdentitySchema.Columns(), a.Columns)
	assert.Equal(t, 10, a.Len())

	c, err := newGen(t, 43).GenTable(10)
	require.NoError(t, err)
	assert.NotEqual(t, a.Rows, c.Rows)
}

func TestWithState(t *testing.T) {
	g := newGen(t, 4, WithState("TX"))
	recs, err := g.GenRecords(40)
	require.NoError(t, err)
	for _, r := range recs {
		assert.Equal(t, "TX", r.String(State))
	}

	bad := newGen(t, 4, WithState("WY"))
	_, err = bad.GetRecord()
	require.Error(t, err)
}

func TestWithUniqueLabel(t *testing.T) {
	g := newGen(t, 5, WithUniqueLabel())
	tbl, err := g.GenTable(5)
	require.NoError(t, err)
	labels, err := tbl.Column(string(UniqueLabel))
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, l := range labels {
		assert.Len(t, l, 36)
		assert.False(t, seen[l])
		seen[l] = true
	}
}

func TestGetRecord_UnderageIsBoundedAndLogged(t *testing.T) {
	d := t.TempDir()
	kids := "MinAge,MaxAge,Population\n0,9,100\n"
	require.NoError(t, writeFile(d, "ages.csv", kids))
	youngCat, err := refdata.LoadCatalog(d)
	require.NoError(t, err)

	var buf bytes.Buffer
	g, err := New(youngCat, 6, WithNow(testNow), WithAgeAttempts(5),
		WithLogger(logging.NewLoggerWithWriter("error", &buf)))
	require.NoError(t, err)

	_, err = g.GetRecord()
	assert.True(t, errors.Is(err, ErrUnderage))
	assert.Contains(t, buf.String(), "record.assembly_failed")
	assert.Contains(t, buf.String(), `"step":"age"`)
}

func TestGenRecords_ProgressOnlyAtDebugAboveThreshold(t *testing.T) {
	var buf bytes.Buffer
	g := newGen(t, 7, WithLogger(logging.NewLoggerWithWriter("debug", &buf)))
	_, err := g.GenRecords(30)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "records.progress")

	_, err = g.GenRecords(31)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "records.progress")

	buf.Reset()
	quiet := newGen(t, 7, WithLogger(logging.NewLoggerWithWriter("info", &buf)))
	_, err = quiet.GenRecords(50)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestGenRecords_RejectsNonPositive(t *testing.T) {
	_, err := newGen(t, 8).GenRecords(0)
	require.Error(t, err)
}
