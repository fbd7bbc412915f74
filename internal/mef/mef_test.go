package mef

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/taxgen/internal/bank"
	"github.com/mmrzaf/taxgen/internal/generator"
	"github.com/mmrzaf/taxgen/internal/profile"
	"github.com/mmrzaf/taxgen/internal/refdata"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newMef(t *testing.T, key string, seed int64) *Generator {
	t.Helper()
	cat, err := refdata.EmbeddedCatalog()
	require.NoError(t, err)
	g, err := New(cat, profile.Default(), key, seed, Options{Now: testNow})
	require.NoError(t, err)
	return g
}

func TestGetRecord_LegitTripleShape(t *testing.T) {
	g := newMef(t, KeyLegit, 1)
	for i := 0; i < 60; i++ {
		tr, err := g.GetRecord()
		require.NoError(t, err)
		assert.False(t, tr.IsFraud())
		assert.Equal(t, "0", tr.Return.String(RetIsFraud))
		assert.Equal(t, "0", tr.Financial.String(FinIsFraud))

		sub := tr.Auth.String(AuthSubmissionID)
		assert.Regexp(t, `^[1-9]\d{5}\d{4}\d{3}[0-9a-z]{7}$`, sub)
		assert.Equal(t, sub, tr.Return.String(RetSubmissionID))
		assert.Equal(t, sub, tr.Financial.String(FinSubmissionID))
		assert.Equal(t, tr.Auth.String(AuthPrimaryTaxpayerID), tr.Return.String(PrimaryPrefix+"TaxpayerID"))
	}
}

func TestGetRecord_TimelineWithinFilingWindow(t *testing.T) {
	g := newMef(t, KeyFraud, 2)
	for i := 0; i < 60; i++ {
		tr, err := g.GetRecord()
		require.NoError(t, err)

		year, ok := tr.Auth.Get(AuthTaxYear)
		require.True(t, ok)
		fy := year.(int) + 1

		open, err := time.Parse(tsLayout, tr.Auth.String(AuthSessionOpenTs))
		require.NoError(t, err)
		submit, err := time.Parse(tsLayout, tr.Auth.String(AuthSubmissionTs))
		require.NoError(t, err)

		assert.False(t, open.Before(time.Date(fy, 1, 20, 0, 0, 0, 0, time.UTC)))
		assert.True(t, open.Before(time.Date(fy, 4, 15, 0, 0, 0, 0, time.UTC)))
		assert.False(t, submit.Before(open))
		assert.False(t, submit.After(time.Date(fy, 4, 15, 23, 59, 59, 0, time.UTC)))
		assert.Equal(t, fy, mustAtoi(t, tr.Auth.String(AuthSubmissionID)[6:10]))
	}
}

func TestGetRecord_PreparerAndSecondarySentinels(t *testing.T) {
	g := newMef(t, KeyLegit, 3)
	sawJoint, sawSingle, sawPreparer, sawNoPreparer := false, false, false, false
	for i := 0; i < 120; i++ {
		tr, err := g.GetRecord()
		require.NoError(t, err)
		r := tr.Return

		if r.String(RetPreparerFirmName) == "" {
			sawNoPreparer = true
			assert.Empty(t, r.String(RetPreparerEIN))
			assert.Empty(t, r.String(RetPreparerPTIN))
			assert.Empty(t, r.String(RetPreparerPhone))
		} else {
			sawPreparer = true
			assert.Regexp(t, `^\d{2}-\d{7}$`, r.String(RetPreparerEIN))
			assert.Regexp(t, `^P\d{8}$`, r.String(RetPreparerPTIN))
			assert.Regexp(t, `^\d{3}-\d{3}-\d{4}$`, r.String(RetPreparerPhone))
		}

		if r.String(RetIsJoint) == "1" {
			sawJoint = true
			assert.Equal(t, statusJoint, r.String(RetFilingStatus))
			assert.NotEmpty(t, r.String(SecondaryPrefix+"FirstName"))
		} else {
			sawSingle = true
			assert.NotEqual(t, statusJoint, r.String(RetFilingStatus))
			for _, f := range generator.IdentitySchema.Fields() {
				assert.Empty(t, r.String(ReturnField(SecondaryPrefix+string(f))))
			}
			assert.NotEqual(t, ownerSecondary, tr.Financial.String(FinRefundOwner))
			assert.Equal(t, ownerPrimary, tr.Financial.String(FinStatePaymentOwner))
			assert.Equal(t, ownerPrimary, tr.Financial.String(FinEstimatedPaymentOwner))
		}
	}
	assert.True(t, sawJoint && sawSingle && sawPreparer && sawNoPreparer)
}

func TestGetRecord_FinancialLegsUseOwnersAccount(t *testing.T) {
	g := newMef(t, KeyLegit, 4)
	for i := 0; i < 60; i++ {
		tr, err := g.GetRecord()
		require.NoError(t, err)
		f, r := tr.Financial, tr.Return

		state := f.String(FinField(StatePaymentPrefix + string(bank.HolderName)))
		switch f.String(FinStatePaymentOwner) {
		case ownerPrimary:
			assert.Equal(t, r.String(PrimaryPrefix+"FirstName")+" "+r.String(PrimaryPrefix+"LastName"), state)
		case ownerSecondary:
			assert.Equal(t, r.String(SecondaryPrefix+"FirstName")+" "+r.String(SecondaryPrefix+"LastName"), state)
		default:
			t.Fatalf("unexpected state payment owner %q", f.String(FinStatePaymentOwner))
		}

		for _, prefix := range []string{StatePaymentPrefix, RefundPrefix, EstimatedPaymentPrefix} {
			assert.True(t, bank.ValidRouting(f.String(FinField(prefix+string(bank.RoutingNumber)))))
			c := f.String(FinField(prefix + string(bank.Checking)))
			s := f.String(FinField(prefix + string(bank.Savings)))
			assert.ElementsMatch(t, []string{"0", "1"}, []string{c, s})
		}
		assert.Regexp(t, `^\d+\.\d{2}$`, f.String(FinRefundAmount))
	}
}

func TestFraudProfile_RefundsMostlyToFraudAccount(t *testing.T) {
	g := newMef(t, KeyFraud, 5)
	fraudRefunds := 0
	const n = 200
	for i := 0; i < n; i++ {
		tr, err := g.GetRecord()
		require.NoError(t, err)
		assert.True(t, tr.IsFraud())
		if tr.Financial.String(FinRefundOwner) == ownerFraud {
			fraudRefunds++
		}
	}
	assert.Greater(t, fraudRefunds, n*7/10)
}

func TestGetRecord_Deterministic(t *testing.T) {
	run := func() [][]string {
		g := newMef(t, KeyLegit, 6)
		var rows [][]string
		for i := 0; i < 5; i++ {
			tr, err := g.GetRecord()
			require.NoError(t, err)
			rows = append(rows, tr.Auth.Strings(), tr.Return.Strings(), tr.Financial.Strings())
		}
		return rows
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Fatalf("same seed produced different triples (-a +b):\n%s", diff)
	}
}

func TestNew_MissingKeyIsConfigError(t *testing.T) {
	tree, err := profile.Parse(profile.DefaultBytes())
	require.NoError(t, err)
	fraud := tree.Raw()["ReturnHeader"].(map[string]any)["fraud"].(map[string]any)
	delete(fraud, "p_joint")

	cat, err := refdata.EmbeddedCatalog()
	require.NoError(t, err)

	_, err = NewFraud(cat, tree, 1, Options{Now: testNow})
	var ce *profile.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "ReturnHeader.fraud.p_joint", ce.Path)

	_, err = New(cat, tree, KeyLegit, 1, Options{Now: testNow})
	assert.NoError(t, err)
}

func TestNew_UnknownKey(t *testing.T) {
	cat, err := refdata.EmbeddedCatalog()
	require.NoError(t, err)
	_, err = New(cat, profile.Default(), "suspicious", 1, Options{})
	assert.True(t, errors.Is(err, ErrUnknownKey))
}

func TestGenMoney_ClipsAndRoundsToCents(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := Money{Mean: 100, Std: 1000, Min: 10, Max: 200}
	for i := 0; i < 500; i++ {
		c := GenMoney(rng, m)
		assert.GreaterOrEqual(t, c, int64(1000))
		assert.LessOrEqual(t, c, int64(20000))
	}
	assert.Equal(t, "12.05", FormatCents(1205))
}

func TestSchemas_StableColumns(t *testing.T) {
	assert.Equal(t, "SubmissionId", AuthSchema.Columns()[0])
	assert.Equal(t, "IsFraud", AuthSchema.Columns()[AuthSchema.Len()-1])
	assert.True(t, ReturnSchema.Has(ReturnField(PrimaryPrefix+string(generator.Email))))
	assert.True(t, FinSchema.Has(FinField(RefundPrefix+string(bank.AccountNumber))))
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		require.True(t, c >= '0' && c <= '9', s)
		n = n*10 + int(c-'0')
	}
	return n
}
