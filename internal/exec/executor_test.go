package exec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/taxgen/internal/dataset"
	"github.com/mmrzaf/taxgen/internal/domain"
	"github.com/mmrzaf/taxgen/internal/record"
)

type memTarget struct {
	calls     []string
	batches   map[string][]int
	rows      map[string][][]string
	failOn    string
	connected bool
	closed    bool
}

func newMemTarget() *memTarget {
	return &memTarget{batches: map[string][]int{}, rows: map[string][][]string{}}
}

func (m *memTarget) Connect() error {
	m.connected = true
	return nil
}

func (m *memTarget) Close() error {
	m.closed = true
	return nil
}

func (m *memTarget) CreateTableIfNotExists(spec *domain.TableSpec) error {
	m.calls = append(m.calls, "create:"+spec.Name)
	return nil
}

func (m *memTarget) TruncateTable(name string) error {
	m.calls = append(m.calls, "truncate:"+name)
	m.rows[name] = nil
	return nil
}

func (m *memTarget) InsertBatch(name string, _ []string, rows [][]string) error {
	if name == m.failOn {
		return errors.New("disk full")
	}
	m.calls = append(m.calls, "insert:"+name)
	m.batches[name] = append(m.batches[name], len(rows))
	m.rows[name] = append(m.rows[name], rows...)
	return nil
}

func table(name string, n int) dataset.NamedTable {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{name, "x"}
	}
	return dataset.NamedTable{Name: name, Table: record.Table{Columns: []string{"a", "b"}, Rows: rows}}
}

func TestWrite_BatchesRows(t *testing.T) {
	tgt := newMemTarget()
	stats, err := NewExecutor(3, nil).Write(context.Background(), []dataset.NamedTable{table("t1", 7)}, tgt, domain.TableModeCreate)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 1}, tgt.batches["t1"])
	assert.Len(t, tgt.rows["t1"], 7)
	assert.Equal(t, int64(7), stats.TotalRows)
	assert.Equal(t, 1, stats.TablesWritten)
	assert.True(t, tgt.connected)
	assert.True(t, tgt.closed)
}

func TestWrite_Modes(t *testing.T) {
	cases := []struct {
		mode string
		want []string
	}{
		{"", []string{"create:t", "insert:t"}},
		{domain.TableModeCreate, []string{"create:t", "insert:t"}},
		{domain.TableModeTruncate, []string{"create:t", "truncate:t", "insert:t"}},
		{domain.TableModeAppend, []string{"insert:t"}},
	}
	for _, tc := range cases {
		tgt := newMemTarget()
		_, err := NewExecutor(10, nil).Write(context.Background(), []dataset.NamedTable{table("t", 2)}, tgt, tc.mode)
		require.NoError(t, err, tc.mode)
		assert.Equal(t, tc.want, tgt.calls, tc.mode)
	}
}

func TestWrite_UnknownMode(t *testing.T) {
	tgt := newMemTarget()
	_, err := NewExecutor(10, nil).Write(context.Background(), nil, tgt, "replace")
	require.Error(t, err)
	assert.False(t, tgt.connected)
}

func TestWrite_InsertFailureNamesTable(t *testing.T) {
	tgt := newMemTarget()
	tgt.failOn = "bad"
	_, err := NewExecutor(10, nil).Write(context.Background(),
		[]dataset.NamedTable{table("good", 1), table("bad", 1)}, tgt, domain.TableModeCreate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'bad'")
	assert.True(t, tgt.closed)
}

func TestWrite_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExecutor(10, nil).Write(ctx, []dataset.NamedTable{table("t", 1)}, newMemTarget(), "")
	require.ErrorIs(t, err, context.Canceled)
}
