package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgage-scenario-engine/internal/models"
)

const validCSV = `credit_score,monthly_income,loan_amount,note_rate,term_months,appraised_value,occupancy,property_type,units,purpose
760,12000,300000,6.50,360,400000,primary,sfr,1,purchase
680,9000,270000,6.75,360,300000,primary,condo,1,rate_term_refi
`

func TestParseScenarios(t *testing.T) {
	parser := NewCSVParser()
	scenarios, errs := parser.ParseScenarios(validCSV)

	assert.Empty(t, errs)
	require.Len(t, scenarios, 2)

	first := scenarios[0]
	assert.Equal(t, 760, first.Borrower.CreditScore)
	assert.InDelta(t, 12000, first.Borrower.GrossMonthlyIncome, 1e-9)
	assert.InDelta(t, 300000, first.Loan.LoanAmount, 1e-9)
	assert.Equal(t, models.OccupancyPrimary, first.Property.Occupancy)
	assert.Equal(t, models.PurposePurchase, first.Loan.Purpose)
	assert.Equal(t, models.ProductTypeFixed, first.Loan.ProductType)

	// Defaults for absent optional columns
	assert.Equal(t, 1, first.Borrower.NumFinancedProperties)
	assert.True(t, first.Borrower.OwnsPropertyLast3Yrs)
	assert.Equal(t, models.DocTypeFull, first.Borrower.DocType)
	assert.Equal(t, models.ConditionC3, first.Property.ConditionRating)

	second := scenarios[1]
	assert.Equal(t, models.PropertyTypeCondo, second.Property.PropertyType)
	assert.Equal(t, models.PurposeRateTermRefi, second.Loan.Purpose)
}

func TestParseScenarios_ColumnAliases(t *testing.T) {
	content := `fico,annual_income,amount,rate,term,value,occupancy,type,units,loan_purpose
740,"144,000","$250,000",6.25,360,350000,PRIMARY,SFR,1,purchase
`
	parser := NewCSVParser()
	scenarios, errs := parser.ParseScenarios(content)

	assert.Empty(t, errs)
	require.Len(t, scenarios, 1)

	s := scenarios[0]
	assert.Equal(t, 740, s.Borrower.CreditScore)
	// annual income is converted to monthly
	assert.InDelta(t, 12000, s.Borrower.GrossMonthlyIncome, 1e-9)
	assert.InDelta(t, 250000, s.Loan.LoanAmount, 1e-9)
	assert.Equal(t, models.OccupancyPrimary, s.Property.Occupancy)
	assert.Equal(t, models.PropertyTypeSFR, s.Property.PropertyType)
}

func TestParseScenarios_OptionalColumns(t *testing.T) {
	content := `credit_score,monthly_income,loan_amount,note_rate,term_months,appraised_value,occupancy,property_type,units,purpose,purchase_price,monthly_debts,liquid_assets,first_time_homebuyer,counseling_completed,mi_type,mi_coverage_pct,arm
680,8000,285000,6.75,360,305000,primary,condo,1,purchase,300000,450,35000,yes,true,borrower_paid_monthly,30,1
`
	parser := NewCSVParser()
	scenarios, errs := parser.ParseScenarios(content)

	assert.Empty(t, errs)
	require.Len(t, scenarios, 1)

	s := scenarios[0]
	require.NotNil(t, s.Property.PurchasePrice)
	assert.InDelta(t, 300000, *s.Property.PurchasePrice, 1e-9)
	assert.InDelta(t, 450, s.Borrower.OtherMonthlyDebts(), 1e-9)
	assert.InDelta(t, 35000, s.Borrower.LiquidAssets, 1e-9)
	assert.True(t, s.Borrower.FirstTimeHomebuyer)
	assert.True(t, s.Borrower.CounselingCompleted)
	assert.Equal(t, models.MITypeBorrowerPaidMonthly, s.Financing.MIType)

	// A percent figure is normalized to a fraction
	require.NotNil(t, s.Financing.MICoveragePct)
	assert.InDelta(t, 0.30, *s.Financing.MICoveragePct, 1e-9)

	assert.True(t, s.Loan.ARM)
	assert.Equal(t, models.ProductTypeARM, s.Loan.ProductType)
}

func TestParseScenarios_FirstTimeBuyerDerivation(t *testing.T) {
	header := "credit_score,monthly_income,loan_amount,note_rate,term_months,appraised_value,occupancy,property_type,units,purpose"
	row := "720,9000,250000,6.50,360,350000,primary,sfr,1,purchase"

	tests := []struct {
		name      string
		extraCols string
		extraVals string
		wantFTHB  bool
		wantOwns  bool
	}{
		{"no fthb column", "", "", false, true},
		{"explicit fthb false", ",first_time_homebuyer", ",false", false, true},
		{"explicit fthb true", ",first_time_homebuyer", ",true", true, false},
		{"ownership column overrides", ",first_time_homebuyer,owns_property_last_3yrs", ",false,false", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := header + tt.extraCols + "\n" + row + tt.extraVals + "\n"
			parser := NewCSVParser()
			scenarios, errs := parser.ParseScenarios(content)

			require.Empty(t, errs)
			require.Len(t, scenarios, 1)

			b := scenarios[0].Borrower
			assert.Equal(t, tt.wantFTHB, b.FirstTimeHomebuyer)
			assert.Equal(t, tt.wantOwns, b.OwnsPropertyLast3Yrs)

			// Derived first-time status must follow the declared columns
			assert.Equal(t, tt.wantFTHB || !tt.wantOwns, b.FirstTimeHomebuyer || !b.OwnsPropertyLast3Yrs)
		})
	}
}

func TestParseScenarios_MissingColumns(t *testing.T) {
	content := `credit_score,loan_amount
760,300000
`
	parser := NewCSVParser()
	scenarios, errs := parser.ParseScenarios(content)

	assert.Nil(t, scenarios)
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], ErrMissingColumns)
}

func TestParseScenarios_EmptyContent(t *testing.T) {
	parser := NewCSVParser()
	scenarios, errs := parser.ParseScenarios("   \n  ")

	assert.Nil(t, scenarios)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrEmptyCSV)
}

func TestParseScenarios_BadRowsReported(t *testing.T) {
	content := `credit_score,monthly_income,loan_amount,note_rate,term_months,appraised_value,occupancy,property_type,units,purpose
760,12000,300000,6.50,360,400000,primary,sfr,1,purchase
not_a_number,12000,300000,6.50,360,400000,primary,sfr,1,purchase
200,12000,300000,6.50,360,400000,primary,sfr,1,purchase
`
	parser := NewCSVParser()
	scenarios, errs := parser.ParseScenarios(content)

	// One good row survives, two errors carry line numbers
	require.Len(t, scenarios, 1)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "line 3")
	assert.ErrorIs(t, errs[1], models.ErrInvalidCreditScore)
}

func TestValidateCSVStructure(t *testing.T) {
	result, err := ValidateCSVStructure(validCSV)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.RowCount)
	assert.Empty(t, result.MissingColumns)
}

func TestValidateCSVStructure_Missing(t *testing.T) {
	result, err := ValidateCSVStructure("credit_score,units\n760,1\n")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.MissingColumns, "monthly_income")
	assert.Contains(t, result.MissingColumns, "purpose")
}
