package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMefFlags_AcceptUnderscoreSpellings(t *testing.T) {
	cmd := mefCmd()
	cmd.SetGlobalNormalizationFunc(dashedFlagNames)
	require.NoError(t, cmd.ParseFlags([]string{"--n_samples=5", "--p_fraud=0.2", "--export_csv=out", "--write-to-db=local"}))

	n, err := cmd.Flags().GetInt("n-samples")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	p, err := cmd.Flags().GetFloat64("p-fraud")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, p, 1e-12)
	assert.True(t, cmd.Flags().Changed("p-fraud"))

	dir, err := cmd.Flags().GetString("export-csv")
	require.NoError(t, err)
	assert.Equal(t, "out", dir)
}

func TestLooksLikePath(t *testing.T) {
	assert.True(t, looksLikePath("targets/local.yaml"))
	assert.True(t, looksLikePath("local.json"))
	assert.False(t, looksLikePath("local"))
}
