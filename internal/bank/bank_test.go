package bank

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sources"
)

func newBank(t *testing.T, seed int64, opts Options) *Generator {
	t.Helper()
	cat, err := refdata.EmbeddedCatalog()
	require.NoError(t, err)
	g, err := New(cat.MustTable(refdata.Banks), rand.New(rand.NewSource(seed)), opts)
	require.NoError(t, err)
	return g
}

func TestGetRecord_JaneDoeHasExactlyOneAccountType(t *testing.T) {
	g := newBank(t, 1, Options{PInUS: DefaultPInUS, PChecking: DefaultPChecking})
	for i := 0; i < 200; i++ {
		r, err := g.GetRecord("Jane Doe")
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", r.String(HolderName))

		c, s := r.String(Checking), r.String(Savings)
		assert.ElementsMatch(t, []string{"0", "1"}, []string{c, s})
	}
}

func TestGetRecord_RoutingAndAccount(t *testing.T) {
	ledger := sources.NewLedger()
	g := newBank(t, 2, Options{PInUS: 1, PChecking: 0.5, Ledger: ledger})
	seen := map[string]bool{}
	for i := 0; i < 300; i++ {
		r, err := g.GetRecord("John Roe")
		require.NoError(t, err)
		assert.True(t, ValidRouting(r.String(RoutingNumber)))
		acct := r.String(AccountNumber)
		assert.Regexp(t, `^\d{8,12}$`, acct)
		assert.False(t, seen[acct])
		seen[acct] = true
		assert.Equal(t, "1", r.String(InUS))
	}
	assert.Equal(t, 300, ledger.Len())
}

func TestGetRecord_InUSFollowsProbability(t *testing.T) {
	g := newBank(t, 3, Options{PInUS: 0, PChecking: 1})
	r, err := g.GetRecord("A B")
	require.NoError(t, err)
	assert.Equal(t, "0", r.String(InUS))
	assert.Equal(t, "1", r.String(Checking))
}

func TestValidRouting(t *testing.T) {
	assert.True(t, ValidRouting("021000021"))
	assert.True(t, ValidRouting("122000661"))
	assert.False(t, ValidRouting("021000022"))
	assert.False(t, ValidRouting("02100002"))
	assert.False(t, ValidRouting("02100002x"))
}

func TestNew_RejectsBadRouting(t *testing.T) {
	tbl, err := refdata.NewTable("banks", []string{"Bank", "RoutingNumber", "Freq"}, [][]string{{"Bad", "123456789", "1"}})
	require.NoError(t, err)
	_, err = New(tbl, rand.New(rand.NewSource(1)), Options{})
	assert.True(t, errors.Is(err, ErrInvalidRouting))
}
