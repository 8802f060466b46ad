// Package utils provides utility functions for the mortgage scenario engine.
package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mortgage-scenario-engine/internal/models"
)

// CSVParser errors
var (
	ErrEmptyCSV       = errors.New("CSV content is empty")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoDataRows     = errors.New("CSV file contains no data rows")
)

// RequiredColumns defines the columns that must be present in the CSV.
var RequiredColumns = []string{
	"credit_score",
	"monthly_income",
	"loan_amount",
	"note_rate",
	"term_months",
	"appraised_value",
	"occupancy",
	"property_type",
	"units",
	"purpose",
}

// ColumnAliases maps alternative column names to standard names.
var ColumnAliases = map[string]string{
	// credit_score aliases
	"creditscore":  "credit_score",
	"credit score": "credit_score",
	"fico":         "credit_score",
	"score":        "credit_score",

	// income aliases
	"income":         "monthly_income",
	"monthlyincome":  "monthly_income",
	"monthly income": "monthly_income",
	"annual_income":  "monthly_income", // Will divide by 12
	"annualincome":   "monthly_income",
	"annual income":  "monthly_income",

	// loan aliases
	"loanamount":  "loan_amount",
	"loan amount": "loan_amount",
	"amount":      "loan_amount",
	"rate":        "note_rate",
	"noterate":    "note_rate",
	"note rate":   "note_rate",
	"term":        "term_months",
	"loan_term":   "term_months",

	// value aliases
	"appraisedvalue":  "appraised_value",
	"appraised value": "appraised_value",
	"value":           "appraised_value",
	"purchaseprice":   "purchase_price",
	"purchase price":  "purchase_price",
	"price":           "purchase_price",

	// property aliases
	"propertytype":  "property_type",
	"property type": "property_type",
	"type":          "property_type",
	"num_units":     "units",
	"unit_count":    "units",
	"loan_purpose":  "purpose",
	"condition":     "condition_rating",

	// borrower aliases
	"assets":       "liquid_assets",
	"reserves":     "liquid_assets",
	"debts":        "monthly_debts",
	"monthlydebts": "monthly_debts",
	"fthb":         "first_time_homebuyer",
	"mi_coverage":  "mi_coverage_pct",
}

// CSVParser handles parsing of scenario CSV files.
type CSVParser struct {
	columnMapping   map[string]int
	originalHeaders map[string]string // Maps normalized column name to original header
}

// NewCSVParser creates a new CSV parser instance.
func NewCSVParser() *CSVParser {
	return &CSVParser{
		columnMapping:   make(map[string]int),
		originalHeaders: make(map[string]string),
	}
}

// ParseScenarios parses CSV content and returns a slice of scenarios.
func (p *CSVParser) ParseScenarios(content string) ([]*models.Scenario, []error) {
	if strings.TrimSpace(content) == "" {
		return nil, []error{ErrEmptyCSV}
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read header: %w", err)}
	}

	// Build column mapping
	if err := p.buildColumnMapping(header); err != nil {
		return nil, []error{err}
	}

	// Parse data rows
	var scenarios []*models.Scenario
	var parseErrors []error
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		scenario, err := p.parseRow(record)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		if err := models.ValidateScenario(scenario); err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		scenarios = append(scenarios, scenario)
	}

	if len(scenarios) == 0 && len(parseErrors) > 0 {
		return nil, append([]error{ErrNoDataRows}, parseErrors...)
	}

	return scenarios, parseErrors
}

// buildColumnMapping creates a mapping of standard column names to their indices.
func (p *CSVParser) buildColumnMapping(header []string) error {
	p.columnMapping = make(map[string]int)
	p.originalHeaders = make(map[string]string)

	for i, col := range header {
		// Normalize column name
		normalized := strings.ToLower(strings.TrimSpace(col))
		original := normalized

		// Apply alias if exists
		if alias, ok := ColumnAliases[normalized]; ok {
			normalized = alias
		}

		p.columnMapping[normalized] = i
		p.originalHeaders[normalized] = original // Store original header name
	}

	// Check for required columns
	var missing []string
	for _, required := range RequiredColumns {
		if _, ok := p.columnMapping[required]; !ok {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return nil
}

// parseRow parses a single CSV row into a scenario.
func (p *CSVParser) parseRow(record []string) (*models.Scenario, error) {
	getValue := func(column string) string {
		idx, ok := p.columnMapping[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	requireFloat := func(column string) (float64, error) {
		v := getValue(column)
		f, err := parseFloat(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", column, err)
		}
		return f, nil
	}
	requireInt := func(column string) (int, error) {
		v := getValue(column)
		n, err := parseInt(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", column, err)
		}
		return n, nil
	}

	creditScore, err := requireInt("credit_score")
	if err != nil {
		return nil, err
	}

	income, err := requireFloat("monthly_income")
	if err != nil {
		return nil, err
	}
	// The original column may have been annual income
	if originalHeader, ok := p.originalHeaders["monthly_income"]; ok {
		if strings.Contains(originalHeader, "annual") {
			income = income / 12.0
		}
	}

	loanAmount, err := requireFloat("loan_amount")
	if err != nil {
		return nil, err
	}
	noteRate, err := requireFloat("note_rate")
	if err != nil {
		return nil, err
	}
	termMonths, err := requireInt("term_months")
	if err != nil {
		return nil, err
	}
	appraisedValue, err := requireFloat("appraised_value")
	if err != nil {
		return nil, err
	}
	units, err := requireInt("units")
	if err != nil {
		return nil, err
	}

	s := &models.Scenario{
		Borrower: models.Borrower{
			CreditScore:        creditScore,
			GrossMonthlyIncome: income,
		},
		Property: models.Property{
			Occupancy:       models.Occupancy(strings.ToLower(getValue("occupancy"))),
			PropertyType:    normalizePropertyType(getValue("property_type")),
			Units:           units,
			AppraisedValue:  appraisedValue,
			ConditionRating: models.ConditionRating(strings.ToUpper(getValue("condition_rating"))),
		},
		Loan: models.LoanTerms{
			LoanAmount: loanAmount,
			NoteRate:   noteRate,
			TermMonths: termMonths,
			Purpose:    models.LoanPurpose(strings.ToLower(getValue("purpose"))),
		},
	}

	// Optional columns
	if v := getValue("purchase_price"); v != "" {
		price, err := parseFloat(v)
		if err != nil {
			return nil, fmt.Errorf("invalid purchase_price: %w", err)
		}
		s.Property.PurchasePrice = &price
	}
	if v := getValue("monthly_debts"); v != "" {
		debts, err := parseFloat(v)
		if err != nil {
			return nil, fmt.Errorf("invalid monthly_debts: %w", err)
		}
		s.Borrower.MonthlyDebts = map[string]float64{"other": debts}
	}
	if v := getValue("liquid_assets"); v != "" {
		assets, err := parseFloat(v)
		if err != nil {
			return nil, fmt.Errorf("invalid liquid_assets: %w", err)
		}
		s.Borrower.LiquidAssets = assets
	}
	if v := getValue("num_financed_properties"); v != "" {
		count, err := parseInt(v)
		if err != nil {
			return nil, fmt.Errorf("invalid num_financed_properties: %w", err)
		}
		s.Borrower.NumFinancedProperties = count
	} else {
		s.Borrower.NumFinancedProperties = 1
	}
	// Without an ownership history column, first-time status is exactly what
	// the fthb column says (absent both, the borrower is a repeat buyer).
	s.Borrower.OwnsPropertyLast3Yrs = true
	if v := getValue("first_time_homebuyer"); v != "" {
		s.Borrower.FirstTimeHomebuyer = parseBool(v)
		s.Borrower.OwnsPropertyLast3Yrs = !s.Borrower.FirstTimeHomebuyer
	}
	if v := getValue("owns_property_last_3yrs"); v != "" {
		s.Borrower.OwnsPropertyLast3Yrs = parseBool(v)
	}
	if v := getValue("counseling_completed"); v != "" {
		s.Borrower.CounselingCompleted = parseBool(v)
	}
	if v := getValue("arm"); v != "" {
		s.Loan.ARM = parseBool(v)
	}
	if s.Loan.ARM {
		s.Loan.ProductType = models.ProductTypeARM
	} else {
		s.Loan.ProductType = models.ProductTypeFixed
	}
	if v := getValue("doc_type"); v != "" {
		s.Borrower.DocType = models.DocType(strings.ToLower(v))
	}
	if v := getValue("mi_type"); v != "" {
		s.Financing.MIType = models.MIType(strings.ToLower(v))
	}
	if v := getValue("mi_coverage_pct"); v != "" {
		pct, err := parseFloat(v)
		if err != nil {
			return nil, fmt.Errorf("invalid mi_coverage_pct: %w", err)
		}
		// Accept either a fraction or a percent figure
		if pct > 1 {
			pct = pct / 100.0
		}
		s.Financing.MICoveragePct = &pct
	}
	if v := getValue("is_high_cost_area"); v != "" {
		s.Property.IsHighCostArea = parseBool(v)
	}
	if s.Borrower.DocType == "" {
		s.Borrower.DocType = models.DocTypeFull
	}
	if s.Property.ConditionRating == "" {
		s.Property.ConditionRating = models.ConditionC3
	}

	return s, nil
}

// normalizePropertyType matches a CSV cell against the recognized property
// types case-insensitively. Unrecognized values pass through for validation
// to reject with a line number.
func normalizePropertyType(v string) models.PropertyType {
	for _, pt := range models.ValidPropertyTypes() {
		if strings.EqualFold(v, string(pt)) {
			return pt
		}
	}
	return models.PropertyType(v)
}

// parseFloat parses a string to float64, handling common formats.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}

	// Remove commas and currency symbols
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)

	return strconv.ParseFloat(s, 64)
}

// parseInt parses a string to int, handling common formats.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}

	// Remove commas
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	// Handle float strings (e.g., "750.0")
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return int(f), nil
	}

	return strconv.Atoi(s)
}

// parseBool parses truthy CSV cell values.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "t":
		return true
	}
	return false
}

// ValidateCSVStructure performs a quick validation of CSV structure without full parsing.
func ValidateCSVStructure(content string) (*CSVValidationResult, error) {
	result := &CSVValidationResult{
		Valid:          false,
		RowCount:       0,
		Columns:        []string{},
		MissingColumns: []string{},
		Errors:         []string{},
	}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, "empty file")
		return result, nil
	}

	reader := csv.NewReader(strings.NewReader(content))

	// Read header
	header, err := reader.Read()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read header: %v", err))
		return result, nil
	}

	// Normalize and check columns
	normalizedColumns := make(map[string]bool)
	for _, col := range header {
		normalized := strings.ToLower(strings.TrimSpace(col))
		if alias, ok := ColumnAliases[normalized]; ok {
			normalized = alias
		}
		normalizedColumns[normalized] = true
		result.Columns = append(result.Columns, col)
	}

	// Check for required columns
	for _, required := range RequiredColumns {
		if !normalizedColumns[required] {
			result.MissingColumns = append(result.MissingColumns, required)
		}
	}

	// Count rows
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row error: %v", err))
			continue
		}
		result.RowCount++
	}

	result.Valid = len(result.MissingColumns) == 0 && result.RowCount > 0

	return result, nil
}

// CSVValidationResult contains the results of CSV validation.
type CSVValidationResult struct {
	Valid          bool     `json:"valid"`
	RowCount       int      `json:"row_count"`
	Columns        []string `json:"columns"`
	MissingColumns []string `json:"missing_columns"`
	Errors         []string `json:"errors"`
}
