// Package mef simulates Modernized e-File submissions. Each draw yields three
// linked records (authentication header, return header and financial
// transactions) shaped by the legit or fraud branch of a profile.
package mef

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/go-faker/faker/v4"

	"github.com/mmrzaf/taxgen/internal/bank"
	"github.com/mmrzaf/taxgen/internal/generator"
	"github.com/mmrzaf/taxgen/internal/logging"
	"github.com/mmrzaf/taxgen/internal/profile"
	"github.com/mmrzaf/taxgen/internal/record"
	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/sampling"
	"github.com/mmrzaf/taxgen/internal/sources"
)

const (
	ownerPrimary   = "primary"
	ownerSecondary = "secondary"
	ownerFraud     = "fraud"

	statusJoint = "MarriedFilingJointly"
	tsLayout    = "2006-01-02 15:04:05"
)

var firmSuffixes = []string{"Tax Service", "& Associates", "CPA Group", "Accounting", "Tax Pros", "Financial"}

// Ledgers are the uniqueness ledgers of one session. Generators that share
// a session (the legit and fraud generators of a dataset) share them.
type Ledgers struct {
	IDs         *sources.Ledger
	Emails      *sources.Ledger
	Accounts    *sources.Ledger
	Submissions *sources.Ledger
}

func NewLedgers() Ledgers {
	return Ledgers{
		IDs:         sources.NewLedger(),
		Emails:      sources.NewLedger(),
		Accounts:    sources.NewLedger(),
		Submissions: sources.NewLedger(),
	}
}

type Options struct {
	Now     time.Time
	Ledgers Ledgers
	Logger  *logging.Logger
}

// Generator owns a record generator for filer identities and a bank
// generator for their accounts.
type Generator struct {
	cfg         *Config
	records     *generator.RecordGenerator
	banks       *bank.Generator
	rng         *rand.Rand
	devices     *sources.IDSource
	network     *sources.IDSource
	submissions *sources.IDSource
	firms       *rand.Rand
	log         *logging.Logger
}

// faker keeps one package-level source; fakerMu serialises reseeding it
// with the draw that follows.
var fakerMu sync.Mutex

func New(cat *refdata.Catalog, tree *profile.Tree, key string, seed int64, opts Options) (*Generator, error) {
	cfg, err := LoadConfig(tree, key)
	if err != nil {
		return nil, err
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Ledgers.IDs == nil {
		opts.Ledgers = NewLedgers()
	}

	seeder := sampling.NewSeeder(seed)
	records, err := generator.New(cat, seeder.Next(),
		generator.WithNow(opts.Now),
		generator.WithLogger(opts.Logger),
		generator.WithLedgers(opts.Ledgers.IDs, opts.Ledgers.Emails),
	)
	if err != nil {
		return nil, err
	}
	banks, err := bank.New(cat.MustTable(refdata.Banks), seeder.Rand(), bank.Options{
		PInUS:     cfg.pInUS,
		PChecking: cfg.pChecking,
		Ledger:    opts.Ledgers.Accounts,
	})
	if err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:     cfg,
		records: records,
		banks:   banks,
		rng:     seeder.Rand(),
		log:     opts.Logger.WithComponent("mef." + key),
	}
	if g.devices, err = sources.NewIDSource(seeder.Rand(), 32, sources.Hex); err != nil {
		return nil, err
	}
	if g.network, err = sources.NewIDSource(seeder.Rand(), 12, sources.Hex); err != nil {
		return nil, err
	}
	if g.submissions, err = sources.NewIDSource(seeder.Rand(), 7, sources.LowerAlnum,
		sources.WithLedger(opts.Ledgers.Submissions),
		sources.WithRetryPolicy(sources.RetryPolicy{Attempts: sources.DefaultIDAttempts, OnExhaust: sources.Strict})); err != nil {
		return nil, err
	}
	g.firms = rand.New(rand.NewSource(seeder.Next()))
	return g, nil
}

// firmSurname reseeds faker from the generator's own stream before drawing,
// so the name depends only on this generator's seed.
func (g *Generator) firmSurname() string {
	fakerMu.Lock()
	defer fakerMu.Unlock()
	faker.SetRandomSource(faker.NewSafeSource(rand.NewSource(g.firms.Int63())))
	return faker.LastName()
}

// NewFraud is New with the fraud branch of the profile.
func NewFraud(cat *refdata.Catalog, tree *profile.Tree, seed int64, opts Options) (*Generator, error) {
	return New(cat, tree, KeyFraud, seed, opts)
}

func (g *Generator) Key() string { return g.cfg.Key }

// Collisions counts best-effort draws that repeated a ledger value.
func (g *Generator) Collisions() int {
	return g.records.Collisions() + g.banks.Collisions()
}

func (g *Generator) isFraud() int {
	if g.cfg.Key == KeyFraud {
		return 1
	}
	return 0
}

type timeline struct {
	open    time.Time
	submit  time.Time
	elapsed float64
}

// timeline opens the session uniformly in [min_date_requests,
// max_date_requests) of the filing year and clips submission to the
// deadline.
func (g *Generator) timeline(filingYear int) timeline {
	lo := g.cfg.minDate.in(filingYear)
	hi := g.cfg.maxDate.in(filingYear)
	deadline := g.cfg.deadline.in(filingYear).Add(24*time.Hour - time.Second)

	span := int64(hi.Sub(lo) / time.Second)
	open := lo.Add(time.Duration(g.rng.Int63n(span)) * time.Second)

	minutes := math.Max(1, g.cfg.auth.elapsed.Sample(g.rng))
	submit := open.Add(time.Duration(minutes * float64(time.Minute))).Truncate(time.Second)
	if submit.After(deadline) {
		submit = deadline
	}
	return timeline{open: open, submit: submit, elapsed: math.Round(submit.Sub(open).Minutes()*100) / 100}
}

// submissionID is EFIN(6) + year + julian day + 7 lowercase alphanumerics.
func (g *Generator) submissionID(submit time.Time) (string, error) {
	efin := sampling.Digits(g.rng, 6, true)
	suffix, err := g.submissions.Sample()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d%03d%s", efin, submit.Year(), submit.YearDay(), suffix), nil
}

func (g *Generator) ip() (string, error) {
	if sampling.Bernoulli(g.rng, g.cfg.auth.pIPv6) {
		return g.network.IPv6()
	}
	return g.network.IPv4()
}

// leg draws an initial value and keeps it for the submission leg with
// probability pSame.
func (g *Generator) leg(pSame float64, draw func() (string, error)) (string, string, error) {
	initial, err := draw()
	if err != nil {
		return "", "", err
	}
	if sampling.Bernoulli(g.rng, pSame) {
		return initial, initial, nil
	}
	next, err := draw()
	return initial, next, err
}

func (g *Generator) GetRecord() (Triple, error) {
	year := int(math.Round(g.cfg.taxYear.Sample(g.rng)))
	tl := g.timeline(year + 1)
	subID, err := g.submissionID(tl.submit)
	if err != nil {
		return Triple{}, fmt.Errorf("mef submission id: %w", err)
	}

	devIn, devOut, err := g.leg(g.cfg.auth.pSameDevice, g.devices.UUID)
	if err != nil {
		return Triple{}, fmt.Errorf("mef device: %w", err)
	}
	ipIn, ipOut, err := g.leg(g.cfg.auth.pSameIP, g.ip)
	if err != nil {
		return Triple{}, fmt.Errorf("mef ip: %w", err)
	}
	macIn, macOut, err := g.leg(g.cfg.auth.pSameMAC, g.network.MAC)
	if err != nil {
		return Triple{}, fmt.Errorf("mef mac: %w", err)
	}
	devIdx, err := sampling.PickIndex(g.rng, g.cfg.auth.deviceWeights)
	if err != nil {
		return Triple{}, fmt.Errorf("mef device type: %w", err)
	}
	oob := int(math.Round(math.Max(0, g.cfg.auth.oob.Sample(g.rng))))

	hasPreparer := sampling.Bernoulli(g.rng, g.cfg.ret.pPreparer)
	preparer := map[ReturnField]any{
		RetPreparerFirmName: "",
		RetPreparerEIN:      "",
		RetPreparerPTIN:     "",
		RetPreparerPhone:    "",
	}
	if hasPreparer {
		preparer[RetPreparerFirmName] = g.firmSurname() + " " + firmSuffixes[g.rng.Intn(len(firmSuffixes))]
		preparer[RetPreparerEIN] = sampling.Digits(g.rng, 2, true) + "-" + sampling.Digits(g.rng, 7, false)
		preparer[RetPreparerPTIN] = "P" + sampling.Digits(g.rng, 8, false)
	}

	primary, err := g.records.GetRecord()
	if err != nil {
		return Triple{}, fmt.Errorf("mef primary filer: %w", err)
	}
	joint := sampling.Bernoulli(g.rng, g.cfg.ret.pJoint)
	secondary := record.Empty(generator.IdentitySchema)
	if joint {
		if secondary, err = g.records.GetRecord(); err != nil {
			return Triple{}, fmt.Errorf("mef secondary filer: %w", err)
		}
	}
	fraudID, err := g.records.GetRecord()
	if err != nil {
		return Triple{}, fmt.Errorf("mef fraud-pattern identity: %w", err)
	}

	if hasPreparer {
		phone, err := g.records.Phone(primary.String(generator.AreaCode))
		if err != nil {
			return Triple{}, fmt.Errorf("mef preparer phone: %w", err)
		}
		preparer[RetPreparerPhone] = phone
	}
	status := statusJoint
	if !joint {
		i, err := sampling.PickIndex(g.rng, g.cfg.ret.statusWeights)
		if err != nil {
			return Triple{}, fmt.Errorf("mef filing status: %w", err)
		}
		status = g.cfg.ret.statusLabels[i]
	}

	fin, err := g.financial(subID, year, joint, primary, secondary, fraudID)
	if err != nil {
		return Triple{}, err
	}

	auth := record.New(AuthSchema)
	if err := auth.Update(map[AuthField]any{
		AuthSubmissionID:       subID,
		AuthTaxYear:            year,
		AuthPrimaryTaxpayerID:  primary.String(generator.TaxpayerID),
		AuthSessionOpenTs:      tl.open.Format(tsLayout),
		AuthSubmissionTs:       tl.submit.Format(tsLayout),
		AuthElapsedMinutes:     tl.elapsed,
		AuthDeviceType:         g.cfg.auth.deviceTypes[devIdx],
		AuthInitialDeviceID:    devIn,
		AuthSubmissionDeviceID: devOut,
		AuthInitialIP:          ipIn,
		AuthSubmissionIP:       ipOut,
		AuthInitialMAC:         macIn,
		AuthSubmissionMAC:      macOut,
		AuthOOBCode:            oob,
		AuthIsFraud:            g.isFraud(),
	}); err != nil {
		return Triple{}, fmt.Errorf("mef authentication header: %w", err)
	}

	ret := record.New(ReturnSchema)
	core := map[ReturnField]any{
		RetSubmissionID: subID,
		RetTaxYear:      year,
		RetFilingStatus: status,
		RetIsJoint:      joint,
		RetIsFraud:      g.isFraud(),
	}
	for k, v := range preparer {
		core[k] = v
	}
	if err := ret.Update(core); err != nil {
		return Triple{}, fmt.Errorf("mef return header: %w", err)
	}
	if err := ret.Assign(primary.Prefixed(PrimaryPrefix)); err != nil {
		return Triple{}, fmt.Errorf("mef return header: %w", err)
	}
	if err := ret.Assign(secondary.Prefixed(SecondaryPrefix)); err != nil {
		return Triple{}, fmt.Errorf("mef return header: %w", err)
	}

	return Triple{Auth: auth, Return: ret, Financial: fin}, nil
}

func (g *Generator) financial(subID string, year int, joint bool, primary, secondary, fraudID *generator.Record) (*FinRecord, error) {
	primaryAcct, err := g.banks.GetRecord(fullName(primary))
	if err != nil {
		return nil, fmt.Errorf("mef primary account: %w", err)
	}
	secondaryAcct := record.Empty(bank.AccountSchema)
	if joint {
		if secondaryAcct, err = g.banks.GetRecord(fullName(secondary)); err != nil {
			return nil, fmt.Errorf("mef secondary account: %w", err)
		}
	}
	fraudAcct, err := g.banks.GetRecord(fullName(fraudID))
	if err != nil {
		return nil, fmt.Errorf("mef fraud-pattern account: %w", err)
	}
	accounts := map[string]*bank.FinAccountRecord{
		ownerPrimary:   primaryAcct,
		ownerSecondary: secondaryAcct,
		ownerFraud:     fraudAcct,
	}

	stateOwner := g.pairOwner(g.cfg.fin.pStatePrimary, joint)
	stateAmount := GenMoney(g.rng, g.cfg.fin.statePayment)

	split := append([]float64(nil), g.cfg.fin.refundSplit...)
	if !joint {
		split[0] += split[1]
		split[1] = 0
	}
	ri, err := sampling.PickIndex(g.rng, split)
	if err != nil {
		return nil, fmt.Errorf("mef refund_account_split: %w", err)
	}
	refundOwner := []string{ownerPrimary, ownerSecondary, ownerFraud}[ri]
	refundAmount := GenMoney(g.rng, g.cfg.fin.refund)

	estOwner := g.pairOwner(g.cfg.fin.pEstimatedPrimary, joint)
	estAmount := GenMoney(g.rng, g.cfg.fin.estimated)

	fin := record.New(FinSchema)
	if err := fin.Update(map[FinField]any{
		FinSubmissionID:           subID,
		FinTaxYear:                year,
		FinStatePaymentOwner:      stateOwner,
		FinStatePaymentAmount:     FormatCents(stateAmount),
		FinRefundOwner:            refundOwner,
		FinRefundAmount:           FormatCents(refundAmount),
		FinEstimatedPaymentOwner:  estOwner,
		FinEstimatedPaymentAmount: FormatCents(estAmount),
		FinIsFraud:                g.isFraud(),
	}); err != nil {
		return nil, fmt.Errorf("mef financial transactions: %w", err)
	}
	for prefix, owner := range map[string]string{
		StatePaymentPrefix:     stateOwner,
		RefundPrefix:           refundOwner,
		EstimatedPaymentPrefix: estOwner,
	} {
		if err := fin.Assign(accounts[owner].Prefixed(prefix)); err != nil {
			return nil, fmt.Errorf("mef financial transactions: %w", err)
		}
	}
	return fin, nil
}

// pairOwner picks the primary with probability pPrimary; single filers
// always use the primary.
func (g *Generator) pairOwner(pPrimary float64, joint bool) string {
	if !joint || sampling.Bernoulli(g.rng, pPrimary) {
		return ownerPrimary
	}
	return ownerSecondary
}

func fullName(r *generator.Record) string {
	return r.String(generator.FirstName) + " " + r.String(generator.LastName)
}

// GenMoney draws a clipped Gaussian amount and returns it in cents.
func GenMoney(rng *rand.Rand, m Money) int64 {
	v := sampling.Normal{Mean: m.Mean, Std: m.Std}.Sample(rng)
	v = math.Min(m.Max, math.Max(m.Min, v))
	return int64(math.Round(v * 100))
}

func FormatCents(c int64) string {
	return fmt.Sprintf("%.2f", float64(c)/100)
}
