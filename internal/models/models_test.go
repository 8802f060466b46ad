package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func validScenario() *Scenario {
	return &Scenario{
		Borrower: Borrower{
			CreditScore:           740,
			GrossMonthlyIncome:    9500,
			MonthlyDebts:          map[string]float64{"auto": 400},
			NumFinancedProperties: 1,
			OwnsPropertyLast3Yrs:  true,
			LiquidAssets:          40000,
			DocType:               DocTypeFull,
		},
		Property: Property{
			Occupancy:       OccupancyPrimary,
			PropertyType:    PropertyTypeSFR,
			Units:           1,
			AppraisedValue:  350000,
			ConditionRating: ConditionC3,
		},
		Loan: LoanTerms{
			LoanAmount:  250000,
			NoteRate:    6.75,
			TermMonths:  360,
			Purpose:     PurposeRateTermRefi,
			ProductType: ProductTypeFixed,
		},
	}
}

func TestValidateScenario(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr error
	}{
		{"valid scenario", func(*Scenario) {}, nil},
		{"credit score too low", func(s *Scenario) { s.Borrower.CreditScore = 299 }, ErrInvalidCreditScore},
		{"credit score too high", func(s *Scenario) { s.Borrower.CreditScore = 851 }, ErrInvalidCreditScore},
		{"zero income", func(s *Scenario) { s.Borrower.GrossMonthlyIncome = 0 }, ErrInvalidIncome},
		{"zero financed properties", func(s *Scenario) { s.Borrower.NumFinancedProperties = 0 }, ErrInvalidFinancedCount},
		{"negative liquid assets", func(s *Scenario) { s.Borrower.LiquidAssets = -1 }, ErrNegativeLiquidAssets},
		{"negative monthly debt", func(s *Scenario) { s.Borrower.MonthlyDebts["auto"] = -50 }, ErrNegativeMonthlyDebt},
		{"zero appraised value", func(s *Scenario) { s.Property.AppraisedValue = 0 }, ErrInvalidAppraisedValue},
		{"zero purchase price when set", func(s *Scenario) { s.Property.PurchasePrice = ptr(0) }, ErrInvalidPurchasePrice},
		{"zero units", func(s *Scenario) { s.Property.Units = 0 }, ErrInvalidUnits},
		{"unknown occupancy", func(s *Scenario) { s.Property.Occupancy = "vacation" }, ErrInvalidOccupancy},
		{"unknown property type", func(s *Scenario) { s.Property.PropertyType = "houseboat" }, ErrInvalidPropertyType},
		{"unknown condition", func(s *Scenario) { s.Property.ConditionRating = "C9" }, ErrInvalidCondition},
		{"zero loan amount", func(s *Scenario) { s.Loan.LoanAmount = 0 }, ErrInvalidLoanAmount},
		{"negative note rate", func(s *Scenario) { s.Loan.NoteRate = -1 }, ErrInvalidNoteRate},
		{"note rate above cap", func(s *Scenario) { s.Loan.NoteRate = 26 }, ErrInvalidNoteRate},
		{"zero term", func(s *Scenario) { s.Loan.TermMonths = 0 }, ErrInvalidTerm},
		{"term above cap", func(s *Scenario) { s.Loan.TermMonths = 481 }, ErrInvalidTerm},
		{"unknown purpose", func(s *Scenario) { s.Loan.Purpose = "bridge" }, ErrInvalidLoanPurpose},
		{"unknown product type", func(s *Scenario) { s.Loan.ProductType = "balloon" }, ErrInvalidProductType},
		{"arm flag without arm product", func(s *Scenario) { s.Loan.ARM = true }, ErrProductChannelMismatch},
		{"arm product without arm flag", func(s *Scenario) { s.Loan.ProductType = ProductTypeARM }, ErrProductChannelMismatch},
		{"mi coverage above one", func(s *Scenario) {
			s.Financing.MIType = MITypeBorrowerPaidMonthly
			s.Financing.MICoveragePct = ptr(1.5)
		}, ErrInvalidMICoverage},
		{"negative lien balance", func(s *Scenario) {
			s.Financing.SubordinateLiens = []SubordinateLien{{Type: LienTypeClosedEnd, CurrentBalance: -100}}
		}, ErrNegativeLienBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScenario()
			tt.mutate(s)
			err := ValidateScenario(s)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValuationBase(t *testing.T) {
	s := validScenario()

	// Refinance ignores purchase price even if present
	s.Property.PurchasePrice = ptr(300000)
	assert.InDelta(t, 350000, s.ValuationBase(), 1e-9)

	// Purchase uses the lower of price and appraisal
	s.Loan.Purpose = PurposePurchase
	assert.InDelta(t, 300000, s.ValuationBase(), 1e-9)

	s.Property.PurchasePrice = ptr(400000)
	assert.InDelta(t, 350000, s.ValuationBase(), 1e-9)

	s.Property.PurchasePrice = nil
	assert.InDelta(t, 350000, s.ValuationBase(), 1e-9)
}

func TestOtherMonthlyDebts(t *testing.T) {
	b := Borrower{MonthlyDebts: map[string]float64{"auto": 400, "cards": 150, "student": 250}}
	assert.InDelta(t, 800, b.OtherMonthlyDebts(), 1e-9)

	empty := Borrower{}
	assert.Zero(t, empty.OtherMonthlyDebts())
}

func TestFinalRate(t *testing.T) {
	p := PricingResult{BaseRate: 6.50, LLPATotalBps: 4.25}
	assert.InDelta(t, 6.5425, p.FinalRate(), 1e-9)

	credit := PricingResult{BaseRate: 6.50, LLPATotalBps: -0.125}
	assert.InDelta(t, 6.49875, credit.FinalRate(), 1e-9)
}

func TestFailedRules(t *testing.T) {
	r := EvaluationResult{
		RuleResults: []RuleOutcome{
			{RuleName: RuleCreditScore, Eligible: true},
			{RuleName: RuleDTI, Eligible: false},
			{RuleName: RuleReserves, Eligible: false},
		},
	}

	failed := r.FailedRules()
	require.Len(t, failed, 2)
	assert.Equal(t, RuleDTI, failed[0].RuleName)
	assert.Equal(t, RuleReserves, failed[1].RuleName)

	// Audit records store the names, in pipeline order
	rec := EvaluationRecord{FailedRules: r.FailedRuleNames()}
	assert.Equal(t, []string{RuleDTI, RuleReserves}, rec.FailedRules)
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, OccupancyPrimary.IsValid())
	assert.True(t, OccupancyInvestment.IsValid())
	assert.False(t, Occupancy("vacation").IsValid())

	assert.True(t, PropertyTypeCondo.IsValid())
	assert.False(t, PropertyType("houseboat").IsValid())

	assert.True(t, PurposeCashOutRefi.IsValid())
	assert.False(t, LoanPurpose("bridge").IsValid())

	assert.True(t, ConditionC1.IsValid())
	assert.True(t, ConditionC6.IsValid())
	assert.False(t, ConditionRating("C0").IsValid())
}

func TestHasMI(t *testing.T) {
	f := Financing{}
	assert.False(t, f.HasMI())

	f.MIType = MITypeLenderPaid
	assert.True(t, f.HasMI())
}
