package csvdir

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/taxgen/internal/domain"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVTarget_Lifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	tgt := NewCSVTarget(dir)
	require.NoError(t, tgt.Connect())

	spec := &domain.TableSpec{Name: "identities", Columns: []string{"TaxpayerID", "City"}}
	require.NoError(t, tgt.CreateTableIfNotExists(spec))
	require.NoError(t, tgt.InsertBatch(spec.Name, spec.Columns, [][]string{{"1", "Gallup"}}))
	require.NoError(t, tgt.InsertBatch(spec.Name, spec.Columns, [][]string{{"2", "Buffalo, NY"}}))
	require.NoError(t, tgt.CreateTableIfNotExists(spec))

	path := filepath.Join(dir, "identities.csv")
	assert.Equal(t, [][]string{
		{"TaxpayerID", "City"},
		{"1", "Gallup"},
		{"2", "Buffalo, NY"},
	}, readAll(t, path))

	require.NoError(t, tgt.TruncateTable(spec.Name))
	assert.Equal(t, [][]string{{"TaxpayerID", "City"}}, readAll(t, path))
}

func TestCSVTarget_AppendStartsMissingFile(t *testing.T) {
	dir := t.TempDir()
	tgt := NewCSVTarget(dir)
	require.NoError(t, tgt.Connect())
	require.NoError(t, tgt.InsertBatch("t", []string{"a"}, [][]string{{"x"}}))
	assert.Equal(t, [][]string{{"a"}, {"x"}}, readAll(t, filepath.Join(dir, "t.csv")))
}

func TestCSVTarget_HeaderMismatch(t *testing.T) {
	dir := t.TempDir()
	tgt := NewCSVTarget(dir)
	require.NoError(t, tgt.Connect())
	require.NoError(t, tgt.CreateTableIfNotExists(&domain.TableSpec{Name: "t", Columns: []string{"a", "b"}}))

	err := tgt.CreateTableIfNotExists(&domain.TableSpec{Name: "t", Columns: []string{"a"}})
	require.ErrorIs(t, err, ErrHeaderMismatch)
	err = tgt.InsertBatch("t", []string{"b", "a"}, [][]string{{"1", "2"}})
	require.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestCSVTarget_TruncateMissingTable(t *testing.T) {
	tgt := NewCSVTarget(t.TempDir())
	require.NoError(t, tgt.Connect())
	require.ErrorIs(t, tgt.TruncateTable("nope"), os.ErrNotExist)
}
