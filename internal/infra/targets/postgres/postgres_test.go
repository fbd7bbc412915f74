package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInsert(t *testing.T) {
	q, args, err := buildInsert(`"public"."t"`, []string{"Id", "Name"}, [][]string{{"1", "a"}, {"2", "b"}})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "public"."t" ("Id", "Name") VALUES ($1, $2), ($3, $4)`, q)
	assert.Equal(t, []any{"1", "a", "2", "b"}, args)
}

func TestBuildInsert_RaggedRow(t *testing.T) {
	_, _, err := buildInsert(`"t"`, []string{"a", "b"}, [][]string{{"1"}})
	require.Error(t, err)
}

func TestQualifiedQuotesIdentifiers(t *testing.T) {
	tgt := NewPostgresTarget("postgres://localhost/db", "")
	assert.Equal(t, `"public"."mef_return_header"`, tgt.qualified("mef_return_header"))

	tgt = NewPostgresTarget("postgres://localhost/db", "Tax")
	assert.Equal(t, `"Tax"."a""b"`, tgt.qualified(`a"b`))
}
