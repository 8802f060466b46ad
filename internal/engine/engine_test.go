package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgage-scenario-engine/internal/models"
)

func float64Ptr(v float64) *float64 { return &v }

// purchaseScenario builds a clean 1-unit primary purchase that passes every
// rule. Tests mutate it to exercise specific behavior.
func purchaseScenario() *models.Scenario {
	return &models.Scenario{
		Borrower: models.Borrower{
			CreditScore:           760,
			GrossMonthlyIncome:    12000,
			MonthlyDebts:          map[string]float64{"auto": 450, "cards": 200},
			NumFinancedProperties: 1,
			OwnsPropertyLast3Yrs:  true,
			LiquidAssets:          90000,
			DocType:               models.DocTypeFull,
		},
		Property: models.Property{
			Occupancy:       models.OccupancyPrimary,
			PropertyType:    models.PropertyTypeSFR,
			Units:           1,
			PurchasePrice:   float64Ptr(400000),
			AppraisedValue:  400000,
			ConditionRating: models.ConditionC3,
		},
		Loan: models.LoanTerms{
			LoanAmount:  300000,
			NoteRate:    6.50,
			TermMonths:  360,
			Purpose:     models.PurposePurchase,
			ProductType: models.ProductTypeFixed,
		},
	}
}

func TestEvaluate_StrongScenario(t *testing.T) {
	eng := New(nil)
	result, err := eng.Evaluate(purchaseScenario())
	require.NoError(t, err)

	assert.True(t, result.EligibilityOverall)
	assert.Empty(t, result.FailedRules())

	assert.InDelta(t, 0.75, result.CalculatedMetrics["LTV"], 1e-9)
	assert.Equal(t, "conforming", result.CalculatedMetrics["channel"])

	require.NotNil(t, result.Pricing)
	assert.InDelta(t, 0.50, result.Pricing.LLPATotalBps, 1e-9)
	assert.InDelta(t, 101.000, result.Pricing.BasePrice, 1e-9)
	assert.InDelta(t, 100.995, result.Pricing.NetPrice, 1e-9)
	assert.InDelta(t, 6.505, result.Pricing.FinalRate(), 1e-9)

	require.Len(t, result.Pricing.Components, 1)
	assert.Equal(t, "base_grid", result.Pricing.Components[0].Name)

	assert.False(t, result.Flags["HOEPA"])
	assert.False(t, result.Flags["MI_Required"])
	assert.False(t, result.Flags["CashOut"])
}

func TestEvaluate_HighLTVScenario(t *testing.T) {
	s := purchaseScenario()
	s.Borrower.CreditScore = 680
	s.Property.PurchasePrice = float64Ptr(300000)
	s.Property.AppraisedValue = 300000
	s.Loan.LoanAmount = 270000
	s.Financing.MIType = models.MITypeBorrowerPaidMonthly
	s.Financing.MICoveragePct = float64Ptr(0.25)

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.True(t, result.EligibilityOverall)
	assert.InDelta(t, 0.90, result.CalculatedMetrics["LTV"], 1e-9)

	require.NotNil(t, result.Pricing)
	assert.InDelta(t, 4.25, result.Pricing.LLPATotalBps, 1e-9)
	assert.InDelta(t, 6.5425, result.Pricing.FinalRate(), 1e-9)
	assert.InDelta(t, 101.000-0.0425, result.Pricing.NetPrice, 1e-9)

	assert.True(t, result.Flags["MI_Required"])

	fedti := result.CalculatedMetrics["FEDTI"].(float64)
	dti := result.CalculatedMetrics["DTI"].(float64)
	assert.LessOrEqual(t, fedti, dti)
}

func TestEvaluate_WorstConditionSingleFailure(t *testing.T) {
	s := purchaseScenario()
	s.Property.ConditionRating = models.ConditionC6

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.False(t, result.EligibilityOverall)

	failed := result.FailedRules()
	require.Len(t, failed, 1)
	assert.Equal(t, models.RulePropertyCondition, failed[0].RuleName)

	// Pricing is still computed for ineligible scenarios
	require.NotNil(t, result.Pricing)
	assert.InDelta(t, 101.000, result.Pricing.BasePrice, 1e-9)
}

func TestEvaluate_HOEPAForcesIneligible(t *testing.T) {
	s := purchaseScenario()
	s.Loan.APR = float64Ptr(13.0)

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.False(t, result.EligibilityOverall)
	assert.True(t, result.Flags["HOEPA"])
	require.NotNil(t, result.Pricing)

	failed := result.FailedRules()
	require.Len(t, failed, 1)
	assert.Equal(t, models.RuleHighCostHPML, failed[0].RuleName)
}

func TestEvaluate_HPMLAdvisoryOnly(t *testing.T) {
	s := purchaseScenario()
	s.Loan.APR = float64Ptr(7.5)

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.True(t, result.EligibilityOverall)
	assert.True(t, result.Flags["HPML"])
	assert.Contains(t, result.Pricing.Notes, "HPML: escrow account and appraisal requirements apply")
}

func TestEvaluate_Idempotent(t *testing.T) {
	eng := New(nil)

	first, err := eng.Evaluate(purchaseScenario())
	require.NoError(t, err)
	second, err := eng.Evaluate(purchaseScenario())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEvaluate_RuleOrder(t *testing.T) {
	eng := New(nil)
	result, err := eng.Evaluate(purchaseScenario())
	require.NoError(t, err)

	expected := []string{
		models.RuleLTVFamily,
		models.RuleCreditScore,
		models.RuleDTI,
		models.RulePropertyType,
		models.RuleOccupancy,
		models.RuleLoanPurpose,
		models.RuleLoanAmountLimits,
		models.RulePropertyCondition,
		models.RuleIncomeDocs,
		models.RuleMortgageInsurance,
		models.RuleReserves,
		models.RuleFinancedProperties,
		models.RuleAUSManualUW,
		models.RuleFirstTimeBuyer,
		models.RuleHighCostHPML,
		models.RuleLLPA,
	}

	require.Len(t, result.RuleResults, len(expected))
	for i, outcome := range result.RuleResults {
		assert.Equal(t, expected[i], outcome.RuleName)
	}
	assert.Equal(t, len(expected), RuleCount())
}

func TestEvaluate_FlagKeys(t *testing.T) {
	eng := New(nil)
	result, err := eng.Evaluate(purchaseScenario())
	require.NoError(t, err)

	// The flag keys are a stable contract for downstream consumers.
	for _, key := range []string{
		"HPML", "HOEPA", "DU_Required", "ManualUWOnly", "FirstTimeHomebuyer",
		"InvestorLoan", "CashOut", "MI_Required", "EducationRequired",
	} {
		_, ok := result.Flags[key]
		assert.True(t, ok, "missing flag %s", key)
	}

	// Low DTI, no DU requirement: manual underwriting remains available
	assert.True(t, result.Flags["ManualUWOnly"])
}

func TestEvaluate_ManualUWExcludedWhenDURequired(t *testing.T) {
	s := purchaseScenario()
	s.Borrower.NumFinancedProperties = 7
	s.Borrower.CreditScore = 780
	s.Borrower.OtherFinancedBalances = 600000
	s.Borrower.LiquidAssets = 500000

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.True(t, result.Flags["DU_Required"])
	assert.False(t, result.Flags["ManualUWOnly"])
}

func TestEvaluate_ValidationRejectsMalformedInput(t *testing.T) {
	s := purchaseScenario()
	s.Borrower.CreditScore = 200

	eng := New(nil)
	result, err := eng.Evaluate(s)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrInvalidCreditScore)
}

func TestEvaluate_UnknownOccupancyIsValidationError(t *testing.T) {
	s := purchaseScenario()
	s.Property.Occupancy = models.Occupancy("vacation")

	eng := New(nil)
	result, err := eng.Evaluate(s)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrInvalidOccupancy)
}

func TestEvaluate_GuidelineGapIsFatal(t *testing.T) {
	// Second homes only carry 1-unit LTV limits; a 2-unit second home has
	// no table entry, which is a configuration gap, not a business failure.
	s := purchaseScenario()
	s.Property.Occupancy = models.OccupancySecondHome
	s.Property.Units = 2

	eng := New(nil)
	result, err := eng.Evaluate(s)
	assert.Nil(t, result)

	var gap *models.GuidelineGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "ltv_limits", gap.Table)
}

func TestEvaluate_MIMissingWhenRequired(t *testing.T) {
	s := purchaseScenario()
	s.Property.PurchasePrice = float64Ptr(300000)
	s.Property.AppraisedValue = 300000
	s.Loan.LoanAmount = 270000

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.False(t, result.EligibilityOverall)
	failed := result.FailedRules()
	require.Len(t, failed, 1)
	assert.Equal(t, models.RuleMortgageInsurance, failed[0].RuleName)
}

func TestEvaluate_MIBelowMinimumIneligible(t *testing.T) {
	s := purchaseScenario()
	s.Property.PurchasePrice = float64Ptr(300000)
	s.Property.AppraisedValue = 300000
	s.Loan.LoanAmount = 270000
	s.Financing.MIType = models.MITypeBorrowerPaidMonthly
	s.Financing.MICoveragePct = float64Ptr(0.05)

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.False(t, result.EligibilityOverall)
	failed := result.FailedRules()
	require.Len(t, failed, 1)
	assert.Equal(t, models.RuleMortgageInsurance, failed[0].RuleName)
}

func TestEvaluate_ReducedMICoverageAddsAdjustment(t *testing.T) {
	// 90% LTV band: standard 25%, minimum 12%. Coverage in between is
	// eligible but priced.
	s := purchaseScenario()
	s.Property.PurchasePrice = float64Ptr(300000)
	s.Property.AppraisedValue = 300000
	s.Loan.LoanAmount = 270000
	s.Financing.MIType = models.MITypeBorrowerPaidMonthly
	s.Financing.MICoveragePct = float64Ptr(0.15)

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.True(t, result.EligibilityOverall)

	var found bool
	for _, c := range result.Pricing.Components {
		if c.Name == "minimum_mi" {
			found = true
			assert.InDelta(t, 0.75, c.ValueBps, 1e-9)
		}
	}
	assert.True(t, found, "expected minimum_mi component")
}

func TestEvaluate_FTHBWaiverZeroesAdjustments(t *testing.T) {
	s := purchaseScenario()
	s.Borrower.CreditScore = 680
	s.Borrower.FirstTimeHomebuyer = true
	s.Borrower.OwnsPropertyLast3Yrs = false
	s.Borrower.AMIRatio = float64Ptr(0.80)
	s.Property.PropertyType = models.PropertyTypeCondo
	s.Property.PurchasePrice = float64Ptr(300000)
	s.Property.AppraisedValue = 300000
	s.Loan.LoanAmount = 270000
	s.Financing.MIType = models.MITypeBorrowerPaidMonthly
	s.Financing.MICoveragePct = float64Ptr(0.25)

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.True(t, result.EligibilityOverall)
	assert.InDelta(t, 0, result.Pricing.LLPATotalBps, 1e-9)
	assert.Contains(t, result.Pricing.WaiversApplied, "fthb_ami_waiver")
	assert.InDelta(t, result.Pricing.BasePrice, result.Pricing.NetPrice, 1e-9)
}

func TestEvaluate_WaiverRequiresAMIRatio(t *testing.T) {
	s := purchaseScenario()
	s.Borrower.CreditScore = 680
	s.Borrower.FirstTimeHomebuyer = true
	s.Borrower.OwnsPropertyLast3Yrs = false
	s.Property.PurchasePrice = float64Ptr(300000)
	s.Property.AppraisedValue = 300000
	s.Loan.LoanAmount = 270000
	s.Financing.MIType = models.MITypeBorrowerPaidMonthly
	s.Financing.MICoveragePct = float64Ptr(0.25)

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.Empty(t, result.Pricing.WaiversApplied)
	assert.InDelta(t, 4.25, result.Pricing.LLPATotalBps, 1e-9)
}

func TestEvaluate_CounselingCreditIndependentOfWaiver(t *testing.T) {
	s := purchaseScenario()
	s.Borrower.CounselingCompleted = true

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	// 0.50 base grid minus the 0.125 counseling credit
	assert.InDelta(t, 0.375, result.Pricing.LLPATotalBps, 1e-9)
	assert.Empty(t, result.Pricing.WaiversApplied)
}

func TestEvaluate_CashOutAdjustments(t *testing.T) {
	s := purchaseScenario()
	s.Property.PurchasePrice = nil
	s.Loan.Purpose = models.PurposeCashOutRefi
	s.Loan.LoanAmount = 280000

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.True(t, result.EligibilityOverall)
	assert.True(t, result.Flags["CashOut"])

	// 70% LTV cell 0.25 plus the cash-out add-on 1.25
	assert.InDelta(t, 1.50, result.Pricing.LLPATotalBps, 1e-9)
}

func TestEvaluate_JumboAmountOutOfProgram(t *testing.T) {
	s := purchaseScenario()
	s.Property.PurchasePrice = float64Ptr(2000000)
	s.Property.AppraisedValue = 2000000
	s.Loan.LoanAmount = 1200000
	s.Borrower.GrossMonthlyIncome = 40000
	s.Borrower.LiquidAssets = 500000

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.False(t, result.EligibilityOverall)
	failed := result.FailedRules()
	require.Len(t, failed, 1)
	assert.Equal(t, models.RuleLoanAmountLimits, failed[0].RuleName)
}

func TestEvaluate_HighBalanceChannel(t *testing.T) {
	s := purchaseScenario()
	s.Borrower.CreditScore = 720
	s.Borrower.GrossMonthlyIncome = 30000
	s.Borrower.LiquidAssets = 300000
	s.Property.IsHighCostArea = true
	s.Property.PurchasePrice = float64Ptr(1400000)
	s.Property.AppraisedValue = 1400000
	s.Loan.LoanAmount = 980000

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.True(t, result.EligibilityOverall)
	assert.Equal(t, "high_balance", result.CalculatedMetrics["channel"])

	var foundHB bool
	for _, c := range result.Pricing.Components {
		if c.Name == "high_balance" {
			foundHB = true
			assert.InDelta(t, 0.25, c.ValueBps, 1e-9)
		}
	}
	assert.True(t, foundHB, "expected high_balance component")

	// High balance sheets carry a 0.375 price concession
	assert.InDelta(t, 100.625, result.Pricing.BasePrice, 1e-9)
}

func TestEvaluate_InsufficientReserves(t *testing.T) {
	s := purchaseScenario()
	s.Property.Occupancy = models.OccupancyInvestment
	s.Property.PurchasePrice = float64Ptr(400000)
	s.Property.AppraisedValue = 400000
	s.Loan.LoanAmount = 300000
	s.Borrower.CreditScore = 740
	s.Borrower.LiquidAssets = 1000

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.False(t, result.EligibilityOverall)

	var reservesFailed bool
	for _, outcome := range result.FailedRules() {
		if outcome.RuleName == models.RuleReserves {
			reservesFailed = true
		}
	}
	assert.True(t, reservesFailed, "expected reserves rule to fail")
}

func TestEvaluate_ExtendedPortfolioCreditFloor(t *testing.T) {
	s := purchaseScenario()
	s.Borrower.NumFinancedProperties = 8
	s.Borrower.CreditScore = 700
	s.Borrower.LiquidAssets = 500000
	s.Borrower.OtherFinancedBalances = 1000000

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.False(t, result.EligibilityOverall)

	var failedNames []string
	for _, outcome := range result.FailedRules() {
		failedNames = append(failedNames, outcome.RuleName)
	}
	assert.Contains(t, failedNames, models.RuleCreditScore)
	assert.Contains(t, failedNames, models.RuleFinancedProperties)
	assert.True(t, result.Flags["DU_Required"])
}

func TestEvaluate_TooManyFinancedProperties(t *testing.T) {
	s := purchaseScenario()
	s.Borrower.NumFinancedProperties = 11
	s.Borrower.CreditScore = 780
	s.Borrower.LiquidAssets = 5000000

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.False(t, result.EligibilityOverall)
}

func TestEvaluate_NonFullDocIneligible(t *testing.T) {
	s := purchaseScenario()
	s.Borrower.DocType = models.DocTypeNonQM

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.False(t, result.EligibilityOverall)
	failed := result.FailedRules()
	require.Len(t, failed, 1)
	assert.Equal(t, models.RuleIncomeDocs, failed[0].RuleName)
}

func TestEvaluate_MissingRateSheetKey(t *testing.T) {
	s := purchaseScenario()
	s.Financing.RateSheetID = "nonexistent"

	eng := New(nil)
	result, err := eng.Evaluate(s)
	assert.Nil(t, result)

	var gap *models.GuidelineGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "rate_sheets", gap.Table)
}

func TestEvaluate_SubordinateFinancingRatios(t *testing.T) {
	s := purchaseScenario()
	s.Financing.SubordinateLiens = []models.SubordinateLien{
		{Type: models.LienTypeHELOC, CurrentBalance: 20000, CreditLimit: 60000},
	}

	eng := New(nil)
	result, err := eng.Evaluate(s)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, result.CalculatedMetrics["LTV"], 1e-9)
	assert.InDelta(t, 0.80, result.CalculatedMetrics["CLTV"], 1e-9)
	assert.InDelta(t, 0.90, result.CalculatedMetrics["HCLTV"], 1e-9)
}

func TestEvaluate_ErrorsDoNotPanic(t *testing.T) {
	eng := New(nil)
	_, err := eng.Evaluate(&models.Scenario{})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, nil))
}
