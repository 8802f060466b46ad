// Package models defines the data structures for the mortgage scenario engine.
package models

import (
	"errors"
	"fmt"
)

// Input validation errors. These are surfaced to the caller before the rule
// pipeline runs: a scenario that fails validation is malformed, as opposed to
// a well-formed scenario a guideline merely disqualifies.
var (
	ErrInvalidCreditScore     = errors.New("credit score must be between 300 and 850")
	ErrInvalidIncome          = errors.New("gross monthly income must be positive")
	ErrInvalidLoanAmount      = errors.New("loan amount must be positive")
	ErrInvalidAppraisedValue  = errors.New("appraised value must be positive")
	ErrInvalidPurchasePrice   = errors.New("purchase price must be positive when provided")
	ErrInvalidNoteRate        = errors.New("note rate must be between 0 and 25 percent")
	ErrInvalidTerm            = errors.New("loan term must be between 1 and 480 months")
	ErrInvalidUnits           = errors.New("unit count must be at least 1")
	ErrInvalidOccupancy       = errors.New("unknown occupancy type")
	ErrInvalidPropertyType    = errors.New("unknown property type")
	ErrInvalidLoanPurpose     = errors.New("unknown loan purpose")
	ErrInvalidProductType     = errors.New("unknown product type")
	ErrInvalidCondition       = errors.New("unknown condition rating")
	ErrInvalidFinancedCount   = errors.New("financed property count must be at least 1")
	ErrNegativeLiquidAssets   = errors.New("liquid assets after closing cannot be negative")
	ErrNegativeMonthlyDebt    = errors.New("monthly debt amounts cannot be negative")
	ErrInvalidMICoverage      = errors.New("mi coverage percent must be between 0 and 1")
	ErrNegativeLienBalance    = errors.New("subordinate lien balances cannot be negative")
	ErrProductChannelMismatch = errors.New("arm flag does not match product type")
)

// GuidelineGapError reports a guideline table missing an entry for a
// combination that should exist. This is a configuration defect, not a
// business outcome: it is fatal and never silently defaulted, since a default
// would mask a real table gap.
type GuidelineGapError struct {
	Table string
	Key   string
}

func (e *GuidelineGapError) Error() string {
	return fmt.Sprintf("guideline table %q has no entry for %s", e.Table, e.Key)
}

// NewGuidelineGap constructs a GuidelineGapError for the given table and key.
func NewGuidelineGap(table, key string) *GuidelineGapError {
	return &GuidelineGapError{Table: table, Key: key}
}

// ValidateScenario checks a scenario for malformed input before evaluation.
// Business-rule violations (excess ratios, disallowed combinations) are not
// checked here; the pipeline reports those as ineligible outcomes.
func ValidateScenario(s *Scenario) error {
	b := &s.Borrower

	if b.CreditScore < 300 || b.CreditScore > 850 {
		return ErrInvalidCreditScore
	}
	if b.GrossMonthlyIncome <= 0 {
		return ErrInvalidIncome
	}
	if b.NumFinancedProperties < 1 {
		return ErrInvalidFinancedCount
	}
	if b.LiquidAssets < 0 {
		return ErrNegativeLiquidAssets
	}
	for _, amount := range b.MonthlyDebts {
		if amount < 0 {
			return ErrNegativeMonthlyDebt
		}
	}

	p := &s.Property
	if p.AppraisedValue <= 0 {
		return ErrInvalidAppraisedValue
	}
	if p.PurchasePrice != nil && *p.PurchasePrice <= 0 {
		return ErrInvalidPurchasePrice
	}
	if p.Units < 1 {
		return ErrInvalidUnits
	}
	if !p.Occupancy.IsValid() {
		return ErrInvalidOccupancy
	}
	if !p.PropertyType.IsValid() {
		return ErrInvalidPropertyType
	}
	if !p.ConditionRating.IsValid() {
		return ErrInvalidCondition
	}

	l := &s.Loan
	if l.LoanAmount <= 0 {
		return ErrInvalidLoanAmount
	}
	if l.NoteRate <= 0 || l.NoteRate > 25 {
		return ErrInvalidNoteRate
	}
	if l.TermMonths < 1 || l.TermMonths > 480 {
		return ErrInvalidTerm
	}
	if !l.Purpose.IsValid() {
		return ErrInvalidLoanPurpose
	}
	if !l.ProductType.IsValid() {
		return ErrInvalidProductType
	}
	if l.ARM != (l.ProductType == ProductTypeARM) {
		return ErrProductChannelMismatch
	}

	f := &s.Financing
	if f.MICoveragePct != nil && (*f.MICoveragePct < 0 || *f.MICoveragePct > 1) {
		return ErrInvalidMICoverage
	}
	for _, lien := range f.SubordinateLiens {
		if lien.CurrentBalance < 0 || lien.CreditLimit < 0 {
			return ErrNegativeLienBalance
		}
	}

	return nil
}
