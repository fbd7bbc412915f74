package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/taxgen/internal/domain"
	"github.com/mmrzaf/taxgen/internal/infra/targets/csvdir"
	esTarget "github.com/mmrzaf/taxgen/internal/infra/targets/elasticsearch"
	pgTarget "github.com/mmrzaf/taxgen/internal/infra/targets/postgres"
	sqliteTarget "github.com/mmrzaf/taxgen/internal/infra/targets/sqlite"
)

func TestNewTarget_Kinds(t *testing.T) {
	cases := map[string]any{
		domain.TargetKindCSV:           &csvdir.CSVTarget{},
		domain.TargetKindSQLite:        &sqliteTarget.SQLiteTarget{},
		domain.TargetKindPostgres:      &pgTarget.PostgresTarget{},
		domain.TargetKindElasticsearch: &esTarget.ElasticsearchTarget{},
	}
	for kind, want := range cases {
		tgt, err := NewTarget(&domain.TargetConfig{
			Kind:    kind,
			DSN:     "x",
			Options: map[string]string{OptionIDColumn: "submission_id"},
		})
		require.NoError(t, err, kind)
		assert.IsType(t, want, tgt, kind)
	}

	_, err := NewTarget(&domain.TargetConfig{Kind: "oracle"})
	require.Error(t, err)
}

func TestIsPath(t *testing.T) {
	assert.True(t, isPath("profiles/fraud-heavy.yaml"))
	assert.True(t, isPath("fraud.yml"))
	assert.False(t, isPath("fraud-heavy"))
}
