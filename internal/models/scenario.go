// Package models defines the data structures for the mortgage scenario engine.
package models

// Occupancy represents how the subject property will be occupied.
type Occupancy string

const (
	OccupancyPrimary    Occupancy = "primary"
	OccupancySecondHome Occupancy = "second_home"
	OccupancyInvestment Occupancy = "investment"
)

// ValidOccupancies returns all valid occupancy values.
func ValidOccupancies() []Occupancy {
	return []Occupancy{OccupancyPrimary, OccupancySecondHome, OccupancyInvestment}
}

// IsValid checks if the occupancy is valid.
func (o Occupancy) IsValid() bool {
	for _, valid := range ValidOccupancies() {
		if o == valid {
			return true
		}
	}
	return false
}

// PropertyType represents the physical property category.
type PropertyType string

const (
	PropertyTypeSFR          PropertyType = "SFR"
	PropertyTypeCondo        PropertyType = "Condo"
	PropertyTypeCoop         PropertyType = "Coop"
	PropertyTypeManufactured PropertyType = "Manufactured"
	PropertyTypePUD          PropertyType = "PUD"
	PropertyTypeMixedUse     PropertyType = "MixedUse"
)

// ValidPropertyTypes returns all recognized property type values. Whether a
// recognized type is allowed for a given scenario is a guideline decision,
// not a validation one.
func ValidPropertyTypes() []PropertyType {
	return []PropertyType{
		PropertyTypeSFR,
		PropertyTypeCondo,
		PropertyTypeCoop,
		PropertyTypeManufactured,
		PropertyTypePUD,
		PropertyTypeMixedUse,
	}
}

// IsValid checks if the property type is recognized.
func (p PropertyType) IsValid() bool {
	for _, valid := range ValidPropertyTypes() {
		if p == valid {
			return true
		}
	}
	return false
}

// LoanPurpose represents the purpose of the loan.
type LoanPurpose string

const (
	PurposePurchase     LoanPurpose = "purchase"
	PurposeRateTermRefi LoanPurpose = "rate_term_refi"
	PurposeCashOutRefi  LoanPurpose = "cash_out_refi"
)

// ValidLoanPurposes returns all valid loan purpose values.
func ValidLoanPurposes() []LoanPurpose {
	return []LoanPurpose{PurposePurchase, PurposeRateTermRefi, PurposeCashOutRefi}
}

// IsValid checks if the loan purpose is valid.
func (p LoanPurpose) IsValid() bool {
	for _, valid := range ValidLoanPurposes() {
		if p == valid {
			return true
		}
	}
	return false
}

// ProductType distinguishes fixed-rate from adjustable-rate products.
type ProductType string

const (
	ProductTypeFixed ProductType = "fixed"
	ProductTypeARM   ProductType = "arm"
)

// IsValid checks if the product type is valid.
func (p ProductType) IsValid() bool {
	return p == ProductTypeFixed || p == ProductTypeARM
}

// Channel represents the delivery channel classification.
type Channel string

const (
	ChannelConforming  Channel = "conforming"
	ChannelHighBalance Channel = "high_balance"
	ChannelJumbo       Channel = "jumbo"
)

// DocType represents the income documentation level.
type DocType string

const (
	DocTypeFull  DocType = "full"
	DocTypeNonQM DocType = "non_qm"
)

// ConditionRating is the appraisal condition grade (C1 best, C6 worst).
type ConditionRating string

const (
	ConditionC1 ConditionRating = "C1"
	ConditionC2 ConditionRating = "C2"
	ConditionC3 ConditionRating = "C3"
	ConditionC4 ConditionRating = "C4"
	ConditionC5 ConditionRating = "C5"
	ConditionC6 ConditionRating = "C6"
)

// IsValid checks if the condition rating is a recognized grade.
func (c ConditionRating) IsValid() bool {
	switch c {
	case ConditionC1, ConditionC2, ConditionC3, ConditionC4, ConditionC5, ConditionC6:
		return true
	}
	return false
}

// LienType distinguishes closed-end subordinate liens from HELOCs.
type LienType string

const (
	LienTypeClosedEnd LienType = "closed_end"
	LienTypeHELOC     LienType = "heloc"
)

// MIType represents the mortgage insurance premium structure.
type MIType string

const (
	MITypeBorrowerPaidMonthly MIType = "borrower_paid_monthly"
	MITypeLenderPaid          MIType = "lender_paid"
	MITypeSinglePremium       MIType = "single"
)

// Borrower holds the borrower's financial profile.
type Borrower struct {
	CreditScore           int                `json:"credit_score"`
	GrossMonthlyIncome    float64            `json:"gross_monthly_income"`
	MonthlyDebts          map[string]float64 `json:"monthly_debts,omitempty"`
	NumFinancedProperties int                `json:"num_financed_properties"`
	FirstTimeHomebuyer    bool               `json:"first_time_homebuyer"`
	OwnsPropertyLast3Yrs  bool               `json:"owns_property_last_3yrs"`
	LiquidAssets          float64            `json:"liquid_assets_after_closing"`
	DocType               DocType            `json:"doc_type"`
	AMIRatio              *float64           `json:"ami_ratio,omitempty"`
	CounselingCompleted   bool               `json:"counseling_completed"`
	// OtherFinancedBalances is the total outstanding balance on the
	// borrower's other financed properties. Zero means unknown; the
	// reserve rules then estimate it from the property count.
	OtherFinancedBalances float64 `json:"other_financed_balances,omitempty"`
}

// OtherMonthlyDebts sums all recurring obligations other than the new housing
// payment.
func (b *Borrower) OtherMonthlyDebts() float64 {
	var total float64
	for _, amount := range b.MonthlyDebts {
		total += amount
	}
	return total
}

// Property holds the subject property characteristics.
type Property struct {
	PurchasePrice   *float64        `json:"purchase_price,omitempty"`
	AppraisedValue  float64         `json:"appraised_value"`
	Units           int             `json:"units"`
	PropertyType    PropertyType    `json:"property_type"`
	Occupancy       Occupancy       `json:"occupancy"`
	ConditionRating ConditionRating `json:"condition_rating"`
	State           string          `json:"state,omitempty"`
	County          string          `json:"county,omitempty"`
	IsHighCostArea  bool            `json:"is_high_cost_area"`
	ProjectType     string          `json:"project_type,omitempty"`
}

// LoanTerms holds the loan structure and terms.
type LoanTerms struct {
	LoanAmount  float64     `json:"loan_amount"`
	NoteRate    float64     `json:"note_rate"`
	TermMonths  int         `json:"term_months"`
	ARM         bool        `json:"arm"`
	Purpose     LoanPurpose `json:"purpose"`
	ProductType ProductType `json:"product_type"`
	Channel     Channel     `json:"channel"`
	// APR and PointsAndFeesPct feed the high-priced/high-cost checks.
	// Both are percentages. When absent they are approximated from the
	// note rate and the configured points estimate.
	APR              *float64 `json:"apr,omitempty"`
	PointsAndFeesPct *float64 `json:"points_and_fees_pct,omitempty"`
}

// SubordinateLien represents one piece of subordinate financing.
type SubordinateLien struct {
	Type           LienType `json:"type"`
	CurrentBalance float64  `json:"current_balance"`
	CreditLimit    float64  `json:"credit_limit,omitempty"`
}

// Financing holds subordinate debt, MI, and rate sheet selection.
type Financing struct {
	SubordinateLiens []SubordinateLien `json:"subordinate_liens,omitempty"`
	MIType           MIType            `json:"mi_type,omitempty"`
	MICoveragePct    *float64          `json:"mi_coverage_pct,omitempty"`
	RateSheetID      string            `json:"base_rate_sheet_id,omitempty"`
}

// HasMI reports whether any mortgage insurance is in place.
func (f *Financing) HasMI() bool {
	return f.MIType != ""
}

// Scenario is the complete, immutable input aggregate for one evaluation.
// The caller owns it; the pipeline never mutates it.
type Scenario struct {
	Borrower  Borrower  `json:"borrower"`
	Property  Property  `json:"property"`
	Loan      LoanTerms `json:"loan"`
	Financing Financing `json:"financing"`
}

// ValuationBase returns the value the LTV family is computed against:
// min(purchase price, appraised value) for purchases, appraised value
// otherwise.
func (s *Scenario) ValuationBase() float64 {
	if s.Loan.Purpose == PurposePurchase && s.Property.PurchasePrice != nil {
		if *s.Property.PurchasePrice < s.Property.AppraisedValue {
			return *s.Property.PurchasePrice
		}
	}
	return s.Property.AppraisedValue
}
