package mef

import (
	"github.com/mmrzaf/taxgen/internal/bank"
	"github.com/mmrzaf/taxgen/internal/generator"
	"github.com/mmrzaf/taxgen/internal/record"
)

type AuthField string

const (
	AuthSubmissionID       AuthField = "SubmissionId"
	AuthTaxYear            AuthField = "TaxYear"
	AuthPrimaryTaxpayerID  AuthField = "PrimaryTaxpayerID"
	AuthSessionOpenTs      AuthField = "SessionOpenTs"
	AuthSubmissionTs       AuthField = "SubmissionTs"
	AuthElapsedMinutes     AuthField = "ElapsedMinutes"
	AuthDeviceType         AuthField = "DeviceType"
	AuthInitialDeviceID    AuthField = "InitialDeviceId"
	AuthSubmissionDeviceID AuthField = "SubmissionDeviceId"
	AuthInitialIP          AuthField = "InitialIP"
	AuthSubmissionIP       AuthField = "SubmissionIP"
	AuthInitialMAC         AuthField = "InitialMAC"
	AuthSubmissionMAC      AuthField = "SubmissionMAC"
	AuthOOBCode            AuthField = "OOBVerificationCode"
	AuthIsFraud            AuthField = "IsFraud"
)

var AuthSchema = record.NewSchema("mef_authentication_header",
	AuthSubmissionID, AuthTaxYear, AuthPrimaryTaxpayerID,
	AuthSessionOpenTs, AuthSubmissionTs, AuthElapsedMinutes,
	AuthDeviceType, AuthInitialDeviceID, AuthSubmissionDeviceID,
	AuthInitialIP, AuthSubmissionIP, AuthInitialMAC, AuthSubmissionMAC,
	AuthOOBCode, AuthIsFraud,
)

type ReturnField string

const (
	RetSubmissionID     ReturnField = "SubmissionId"
	RetTaxYear          ReturnField = "TaxYear"
	RetFilingStatus     ReturnField = "FilingStatus"
	RetIsJoint          ReturnField = "IsJoint"
	RetPreparerFirmName ReturnField = "PreparerFirmName"
	RetPreparerEIN      ReturnField = "PreparerEIN"
	RetPreparerPTIN     ReturnField = "PreparerPTIN"
	RetPreparerPhone    ReturnField = "PreparerPhone"
	RetIsFraud          ReturnField = "IsFraud"
)

const (
	PrimaryPrefix   = "Primary"
	SecondaryPrefix = "Secondary"
)

var ReturnSchema = record.NewSchema("mef_return_header", concat(
	[]ReturnField{RetSubmissionID, RetTaxYear, RetFilingStatus, RetIsJoint,
		RetPreparerFirmName, RetPreparerEIN, RetPreparerPTIN, RetPreparerPhone},
	prefixed[ReturnField](PrimaryPrefix, generator.IdentitySchema),
	prefixed[ReturnField](SecondaryPrefix, generator.IdentitySchema),
	[]ReturnField{RetIsFraud},
)...)

type FinField string

const (
	FinSubmissionID           FinField = "SubmissionId"
	FinTaxYear                FinField = "TaxYear"
	FinStatePaymentOwner      FinField = "StatePaymentOwner"
	FinStatePaymentAmount     FinField = "StatePaymentAmount"
	FinRefundOwner            FinField = "RefundOwner"
	FinRefundAmount           FinField = "RefundAmount"
	FinEstimatedPaymentOwner  FinField = "EstimatedPaymentOwner"
	FinEstimatedPaymentAmount FinField = "EstimatedPaymentAmount"
	FinIsFraud                FinField = "IsFraud"
)

const (
	StatePaymentPrefix     = "StatePayment"
	RefundPrefix           = "Refund"
	EstimatedPaymentPrefix = "EstimatedPayment"
)

var FinSchema = record.NewSchema("mef_financial_transactions", concat(
	[]FinField{FinSubmissionID, FinTaxYear},
	[]FinField{FinStatePaymentOwner, FinStatePaymentAmount},
	prefixed[FinField](StatePaymentPrefix, bank.AccountSchema),
	[]FinField{FinRefundOwner, FinRefundAmount},
	prefixed[FinField](RefundPrefix, bank.AccountSchema),
	[]FinField{FinEstimatedPaymentOwner, FinEstimatedPaymentAmount},
	prefixed[FinField](EstimatedPaymentPrefix, bank.AccountSchema),
	[]FinField{FinIsFraud},
)...)

type (
	AuthRecord   = record.Record[AuthField]
	ReturnRecord = record.Record[ReturnField]
	FinRecord    = record.Record[FinField]
)

// Triple is one simulated filing across the three MeF files.
type Triple struct {
	Auth      *AuthRecord
	Return    *ReturnRecord
	Financial *FinRecord
}

func (t Triple) IsFraud() bool {
	v, _ := t.Auth.Get(AuthIsFraud)
	return v == 1
}

func prefixed[F ~string, G ~string](prefix string, s *record.Schema[G]) []F {
	out := make([]F, 0, s.Len())
	for _, f := range s.Fields() {
		out = append(out, F(prefix+string(f)))
	}
	return out
}

func concat[F any](parts ...[]F) []F {
	var out []F
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
