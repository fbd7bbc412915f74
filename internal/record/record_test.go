package record

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type personField string

const (
	pFirst personField = "FirstName"
	pLast  personField = "LastName"
	pAge   personField = "Age"
)

var personSchema = NewSchema("person", pFirst, pLast, pAge)

func TestSet_RejectsUndeclaredField(t *testing.T) {
	r := New(personSchema)
	require.NoError(t, r.Set(pFirst, "Jane"))
	err := r.Set("Nickname", "JJ")
	assert.True(t, errors.Is(err, ErrUndeclaredField))

	err = r.Assign(map[string]any{"FirstName": "Ann", "Shoe": 9})
	assert.True(t, errors.Is(err, ErrUndeclaredField))
}

func TestSet_RejectsUnsupportedValues(t *testing.T) {
	r := New(personSchema)
	err := r.Set(pAge, []int{1})
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestUpdateAndGet(t *testing.T) {
	r := New(personSchema)
	require.NoError(t, r.Update(map[personField]any{pFirst: "Jane", pLast: "Doe", pAge: 41}))

	v, ok := r.Get(pAge)
	require.True(t, ok)
	assert.Equal(t, 41, v)
	assert.Equal(t, []string{"Jane", "Doe", "41"}, r.Strings())

	_, ok = r.Get("Nope")
	assert.False(t, ok)
}

func TestEmpty(t *testing.T) {
	r := Empty(personSchema)
	assert.Equal(t, []any{"", "", ""}, r.Values())
}

func TestPrefixed(t *testing.T) {
	r := Empty(personSchema)
	require.NoError(t, r.Set(pFirst, "Jane"))
	assert.Equal(t, map[string]any{
		"PrimaryFirstName": "Jane",
		"PrimaryLastName":  "",
		"PrimaryAge":       "",
	}, r.Prefixed("Primary"))
}

func TestTableRoundTrip(t *testing.T) {
	in := Table{
		Columns: []string{"LastName", "Extra", "FirstName", "Age"},
		Rows: [][]string{
			{"Doe", "x", "Jane", "41"},
			{"Roe", "y", "Rick", "19"},
		},
	}
	recs, err := FromTable(personSchema, in)
	require.NoError(t, err)

	got := AsTable(personSchema, recs)
	want := Table{
		Columns: []string{"FirstName", "LastName", "Age"},
		Rows: [][]string{
			{"Jane", "Doe", "41"},
			{"Rick", "Roe", "19"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	again, err := FromTable(personSchema, got)
	require.NoError(t, err)
	if diff := cmp.Diff(got, AsTable(personSchema, again)); diff != "" {
		t.Fatalf("second round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromTable_MissingColumnsStayEmpty(t *testing.T) {
	recs, err := FromTable(personSchema, Table{Columns: []string{"FirstName"}, Rows: [][]string{{"Ann"}}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"Ann", "", ""}, recs[0].Strings())
}

func TestFromTable_RaggedRow(t *testing.T) {
	_, err := FromTable(personSchema, Table{Columns: []string{"FirstName", "Age"}, Rows: [][]string{{"Ann"}}})
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "12.5", Format(12.5))
	assert.Equal(t, "7", Format(int64(7)))
	assert.Equal(t, "1", Format(true))
}

func TestNewSchema_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() { NewSchema("dup", pFirst, pFirst) })
}

func TestColumn(t *testing.T) {
	tbl := Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "2"}, {"3", "4"}}}
	col, err := tbl.Column("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, col)
	_, err = tbl.Column("z")
	assert.Error(t, err)
}
