package mef

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmrzaf/taxgen/internal/profile"
	"github.com/mmrzaf/taxgen/internal/sampling"
)

const (
	KeyLegit = "legit"
	KeyFraud = "fraud"
)

var ErrUnknownKey = errors.New("config key must be legit or fraud")

// Money is a Gaussian clipped to [Min, Max], in dollars.
type Money struct {
	Mean, Std, Min, Max float64
}

type monthDay struct {
	month time.Month
	day   int
}

func (md monthDay) in(year int) time.Time {
	return time.Date(year, md.month, md.day, 0, 0, 0, 0, time.UTC)
}

type authConfig struct {
	pSameDevice   float64
	pSameIP       float64
	pSameMAC      float64
	pIPv6         float64
	elapsed       sampling.Distribution
	oob           sampling.Distribution
	deviceTypes   []string
	deviceWeights []float64
}

type returnConfig struct {
	pPreparer     float64
	pJoint        float64
	statusLabels  []string
	statusWeights []float64
}

type finConfig struct {
	pStatePrimary     float64
	pEstimatedPrimary float64
	refundSplit       []float64
	refund            Money
	statePayment      Money
	estimated         Money
}

// Config is one resolved legit or fraud branch of a profile. Every key is
// read up front so a missing entry fails construction, not generation.
type Config struct {
	Key       string
	taxYear   sampling.Distribution
	minDate   monthDay
	maxDate   monthDay
	deadline  monthDay
	pInUS     float64
	pChecking float64
	auth      authConfig
	ret       returnConfig
	fin       finConfig
}

func LoadConfig(t *profile.Tree, key string) (*Config, error) {
	if key != KeyLegit && key != KeyFraud {
		return nil, fmt.Errorf("%w, got %q", ErrUnknownKey, key)
	}
	c := &Config{Key: key}
	var err error

	if c.taxYear, err = t.Dist("tax_year"); err != nil {
		return nil, err
	}
	if c.minDate, err = readMonthDay(t, "min_date_requests"); err != nil {
		return nil, err
	}
	if c.maxDate, err = readMonthDay(t, "max_date_requests"); err != nil {
		return nil, err
	}
	if c.deadline, err = readMonthDay(t, "filing_deadline"); err != nil {
		return nil, err
	}
	if !c.minDate.in(2001).Before(c.maxDate.in(2001)) {
		return nil, &profile.ConfigError{Path: "min_date_requests", Err: errors.New("must be before max_date_requests")}
	}
	if c.deadline.in(2001).Before(c.maxDate.in(2001)) {
		return nil, &profile.ConfigError{Path: "filing_deadline", Err: errors.New("must not be before max_date_requests")}
	}
	if c.pInUS, err = t.Prob("p_bank_account_in_us"); err != nil {
		return nil, err
	}
	if c.pChecking, err = t.Prob("p_checking_account"); err != nil {
		return nil, err
	}

	auth, err := t.Sub("AuthenticationHeader." + key)
	if err != nil {
		return nil, err
	}
	if err := c.auth.load(auth); err != nil {
		return nil, err
	}
	ret, err := t.Sub("ReturnHeader." + key)
	if err != nil {
		return nil, err
	}
	if err := c.ret.load(ret); err != nil {
		return nil, err
	}
	fin, err := t.Sub("FinancialTransactions." + key)
	if err != nil {
		return nil, err
	}
	if err := c.fin.load(fin); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *authConfig) load(t *profile.Tree) error {
	var err error
	for key, dst := range map[string]*float64{
		"p_same_device": &a.pSameDevice,
		"p_same_ip":     &a.pSameIP,
		"p_same_mac":    &a.pSameMAC,
		"p_ipv6":        &a.pIPv6,
	} {
		if *dst, err = t.Prob(key); err != nil {
			return err
		}
	}
	if a.elapsed, err = t.Dist("elapsed_minutes"); err != nil {
		return err
	}
	if a.oob, err = t.Dist("oob_verification_code"); err != nil {
		return err
	}
	a.deviceTypes, a.deviceWeights, err = t.Categorical("device_type")
	return err
}

func (r *returnConfig) load(t *profile.Tree) error {
	var err error
	if r.pPreparer, err = t.Prob("p_preparer"); err != nil {
		return err
	}
	if r.pJoint, err = t.Prob("p_joint"); err != nil {
		return err
	}
	r.statusLabels, r.statusWeights, err = t.Categorical("filing_status")
	return err
}

func (f *finConfig) load(t *profile.Tree) error {
	var err error
	if f.pStatePrimary, err = t.Prob("p_state_payment_primary"); err != nil {
		return err
	}
	if f.pEstimatedPrimary, err = t.Prob("p_estimated_payment_primary"); err != nil {
		return err
	}
	if f.refundSplit, err = t.Split("refund_account_split", ownerPrimary, ownerSecondary, ownerFraud); err != nil {
		return err
	}
	if f.refund, err = readMoney(t, "refund_amount"); err != nil {
		return err
	}
	if f.statePayment, err = readMoney(t, "state_payment_amount"); err != nil {
		return err
	}
	f.estimated, err = readMoney(t, "estimated_payment_amount")
	return err
}

func readMonthDay(t *profile.Tree, key string) (monthDay, error) {
	s, err := t.String(key)
	if err != nil {
		return monthDay{}, err
	}
	d, err := time.Parse("01-02", s)
	if err != nil {
		return monthDay{}, &profile.ConfigError{Path: key, Err: fmt.Errorf("want MM-DD: %w", err)}
	}
	return monthDay{month: d.Month(), day: d.Day()}, nil
}

func readMoney(t *profile.Tree, key string) (Money, error) {
	sub, err := t.Sub(key)
	if err != nil {
		return Money{}, err
	}
	var m Money
	for k, dst := range map[string]*float64{"mean": &m.Mean, "std": &m.Std, "min": &m.Min, "max": &m.Max} {
		if *dst, err = sub.Float(k); err != nil {
			return Money{}, err
		}
	}
	if m.Max < m.Min || m.Std < 0 {
		return Money{}, &profile.ConfigError{Path: sub.Path(), Err: errors.New("need min <= max and std >= 0")}
	}
	return m, nil
}
