// Package engine implements the eligibility rule pipeline and pricing engine
// for a single mortgage scenario.
package engine

import (
	"encoding/json"
	"fmt"

	"mortgage-scenario-engine/internal/models"
)

// Unit band keys used by the LTV limit and reserve tables.
const (
	UnitBand1    = "1_unit"
	UnitBand2    = "2_unit"
	UnitBand24   = "2_4_unit"
	UnitBand34   = "3_4_unit"
	UnitBand3    = "3_unit"
	UnitBand4    = "4_unit"
	ReserveCash  = "cash_out"
	ReserveOther = "standard"
)

// LTVLimits holds the maximum allowed ratios for one occupancy/units/purpose
// combination.
type LTVLimits struct {
	MaxLTV   float64 `json:"max_ltv"`
	MaxCLTV  float64 `json:"max_cltv"`
	MaxHCLTV float64 `json:"max_hcltv"`
}

// CreditScoreMins holds representative-score floors by loan characteristic.
// The effective minimum for a scenario is the max of every applicable floor.
type CreditScoreMins struct {
	Base              int `json:"base"`
	ARM               int `json:"arm"`
	HighBalance       int `json:"high_balance"`
	MultiUnit         int `json:"2_4_unit"`
	Investment        int `json:"investment"`
	CashOut           int `json:"cash_out"`
	ExtendedPortfolio int `json:"7_plus_properties"`
	// ManualUWMin is the floor below which automated approval is required.
	ManualUWMin int `json:"manual_uw_min"`
}

// DTILimits holds the three back-end ratio ceilings and the escrow estimate
// folded into the housing payment.
type DTILimits struct {
	MaxDU                 float64 `json:"max_dti_du"`
	MaxManualBase         float64 `json:"max_dti_manual_base"`
	MaxManualCompensating float64 `json:"max_dti_manual_compensating"`
	// EscrowAnnualPct estimates taxes, insurance, and association dues as
	// an annual fraction of property value.
	EscrowAnnualPct float64 `json:"escrow_annual_pct"`
}

// DTI tier labels recorded for the automated-vs-manual rule.
const (
	DTITierManualBase   = "manual_base"
	DTITierCompensating = "manual_compensating"
	DTITierDUOnly       = "du_only"
)

// PropertyTypeRules constrains property types beyond the recognized enum.
type PropertyTypeRules struct {
	AllowedTypes       []models.PropertyType `json:"allowed_types"`
	CoopNoInvestment   bool                  `json:"coop_no_investment"`
	ManufacturedMaxLTV float64               `json:"manufactured_max_ltv"`
	ManufacturedDUOnly bool                  `json:"manufactured_du_only"`
}

// LoanLimits holds the program limit tables keyed by unit count band.
type LoanLimits struct {
	Baseline map[string]float64 `json:"baseline"`
	HighCost map[string]float64 `json:"high_cost"`
}

// MICoverageBand maps an LTV range to required coverage percentages. Standard
// coverage is the normal requirement; Minimum is the reduced-coverage option
// that remains eligible but triggers a price adjustment. Short-term values
// apply to terms of 20 years or less.
type MICoverageBand struct {
	LTVMin            float64 `json:"ltv_min"`
	LTVMax            float64 `json:"ltv_max"`
	Standard          float64 `json:"standard"`
	Minimum           float64 `json:"minimum"`
	StandardShortTerm float64 `json:"standard_short_term"`
	MinimumShortTerm  float64 `json:"minimum_short_term"`
}

// MIRules holds mortgage insurance requirements.
type MIRules struct {
	RequiredAboveLTV float64          `json:"required_above_ltv"`
	ShortTermMonths  int              `json:"short_term_months"`
	CoverageBands    []MICoverageBand `json:"coverage_bands"`
	// PremiumFactor approximates the annual MI premium rate as a multiple
	// of the coverage percentage.
	PremiumFactor float64 `json:"premium_factor"`
}

// ReserveRules holds reserve month requirements and the surcharge applied for
// additional financed properties.
type ReserveRules struct {
	// Months is keyed occupancy -> unit band (1_unit / 2_4_unit) ->
	// cash-out status (standard / cash_out).
	Months map[models.Occupancy]map[string]map[string]float64 `json:"months"`
	// AdditionalPropertyPct is the percentage of outstanding balances on
	// other financed properties added to required reserves, by count band.
	AdditionalPropertyPct struct {
		UpTo4    float64 `json:"1_to_4_properties"`
		FiveSix  float64 `json:"5_to_6_properties"`
		Extended float64 `json:"7_plus_properties"`
	} `json:"additional_property_pct"`
	// AssumedPropertyUPB estimates outstanding balance per additional
	// property when the scenario does not supply actual balances.
	AssumedPropertyUPB float64 `json:"assumed_property_upb"`
}

// FinancedPropertyRules bands the financed-property count.
type FinancedPropertyRules struct {
	MaxAllowed        int  `json:"max_allowed"`
	StandardMax       int  `json:"standard_max"`
	ExtendedMinCredit int  `json:"extended_min_credit"`
	ExtendedDUOnly    bool `json:"extended_du_only"`
}

// ConditionRules lists acceptable and unacceptable appraisal grades.
type ConditionRules struct {
	Unacceptable []models.ConditionRating `json:"unacceptable_ratings"`
}

// FTHBRules holds first-time homebuyer thresholds and waiver cutoffs.
type FTHBRules struct {
	MaxLTVNonFTHB           float64 `json:"max_ltv_non_fthb"`
	EducationRequiredLTV    float64 `json:"education_required_ltv"`
	AMIWaiverThreshold      float64 `json:"ami_waiver_threshold"`
	AMIWaiverHighCostCutoff float64 `json:"ami_waiver_high_cost_threshold"`
}

// HPMLRules holds the high-priced / high-cost classification margins.
type HPMLRules struct {
	HPMLMarginFirstLien      float64 `json:"hpml_margin_first_lien"`
	HOEPAMargin              float64 `json:"hoepa_margin"`
	HOEPAPointsFeesThreshold float64 `json:"hoepa_points_fees_threshold"`
	// IndexRate is the benchmark (APOR proxy) both margins are measured
	// against, as a decimal.
	IndexRate float64 `json:"index_rate"`
	// EstimatedPointsPct approximates points and fees when the scenario
	// does not supply an actual figure, as a percent of loan amount.
	EstimatedPointsPct float64 `json:"estimated_points_pct"`
}

// LLPAGridEntry is one cell of the credit-score-band x LTV-bucket base grid.
type LLPAGridEntry struct {
	CreditMin int     `json:"credit_min"`
	CreditMax int     `json:"credit_max"`
	LTVMin    float64 `json:"ltv_min"`
	LTVMax    float64 `json:"ltv_max"`
	Bps       float64 `json:"bps"`
}

// LLPATables holds every price adjustment table and the waiver rules.
type LLPATables struct {
	BaseGrid           []LLPAGridEntry                 `json:"base_grid"`
	AdjustOccupancy    map[models.Occupancy]float64    `json:"adjust_occupancy"`
	AdjustPropertyType map[models.PropertyType]float64 `json:"adjust_property_type"`
	AdjustHighBalance  float64                         `json:"adjust_high_balance"`
	AdjustUnits        map[int]float64                 `json:"adjust_units"`
	AdjustMinMI        float64                         `json:"adjust_min_mi"`
	AdjustCashOut      float64                         `json:"adjust_cash_out"`
	WaiverFTHBEnabled  bool                            `json:"waiver_fthb_enabled"`
	CounselingCredit   float64                         `json:"counseling_credit"`
}

// RatePoint is a single (note rate, price) entry on a rate sheet.
type RatePoint struct {
	Rate  float64 `json:"rate"`
	Price float64 `json:"price"`
}

// RateSheet maps a product key (channel x product type) to its listed rate
// points. Points must be sorted ascending by rate.
type RateSheet map[string][]RatePoint

// ProductKey returns the rate sheet key for a channel and product type.
func ProductKey(channel models.Channel, product models.ProductType) string {
	return fmt.Sprintf("%s_%s", channel, product)
}

// Guidelines is the complete read-only configuration for the pipeline. It is
// loaded once and shared across any number of concurrent evaluations; runtime
// mutation is a correctness bug. Replacing these tables is the sole supported
// retuning mechanism.
type Guidelines struct {
	LTVLimits         map[models.Occupancy]map[string]map[models.LoanPurpose]LTVLimits `json:"ltv_limits"`
	CreditScoreMin    CreditScoreMins                                                  `json:"credit_score_min"`
	DTILimits         DTILimits                                                        `json:"dti_limits"`
	PropertyTypeRules PropertyTypeRules                                                `json:"property_type_rules"`
	LoanLimits        LoanLimits                                                       `json:"loan_limits"`
	MIRules           MIRules                                                          `json:"mi_rules"`
	ReserveRules      ReserveRules                                                     `json:"reserve_rules"`
	FinancedProperty  FinancedPropertyRules                                            `json:"financed_property_rules"`
	ConditionRules    ConditionRules                                                   `json:"property_condition_rules"`
	FTHBRules         FTHBRules                                                        `json:"fthb_rules"`
	HPMLRules         HPMLRules                                                        `json:"hpml_hoepa"`
	LLPA              LLPATables                                                       `json:"llpa"`
	// HighBalanceLTVCap further caps the primary-lien ratio on the
	// elevated-balance channel. Zero means no cap.
	HighBalanceLTVCap float64              `json:"high_balance_ltv_cap"`
	RateSheets        map[string]RateSheet `json:"rate_sheets"`
}

// ParseGuidelines decodes a guidelines document from JSON, the format used
// for retuning overrides.
func ParseGuidelines(data []byte) (*Guidelines, error) {
	var g Guidelines
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse guidelines document: %w", err)
	}
	return &g, nil
}

// baseGridBand builds the eight LTV-bucket entries for one credit band.
func baseGridBand(creditMin, creditMax int, bps [8]float64) []LLPAGridEntry {
	buckets := [8][2]float64{
		{0.0001, 0.6000},
		{0.6001, 0.7000},
		{0.7001, 0.7500},
		{0.7501, 0.8000},
		{0.8001, 0.8500},
		{0.8501, 0.9000},
		{0.9001, 0.9500},
		{0.9501, 0.9700},
	}
	entries := make([]LLPAGridEntry, 0, len(buckets))
	for i, b := range buckets {
		entries = append(entries, LLPAGridEntry{
			CreditMin: creditMin,
			CreditMax: creditMax,
			LTVMin:    b[0],
			LTVMax:    b[1],
			Bps:       bps[i],
		})
	}
	return entries
}

// DefaultGuidelines returns the built-in guideline tables. Values approximate
// conforming investor guidelines and are intended to be replaced with current
// data via a guidelines override document.
func DefaultGuidelines() *Guidelines {
	g := &Guidelines{
		LTVLimits: map[models.Occupancy]map[string]map[models.LoanPurpose]LTVLimits{
			models.OccupancyPrimary: {
				UnitBand1: {
					models.PurposePurchase:     {MaxLTV: 0.97, MaxCLTV: 0.97, MaxHCLTV: 0.97},
					models.PurposeRateTermRefi: {MaxLTV: 0.97, MaxCLTV: 0.97, MaxHCLTV: 0.97},
					models.PurposeCashOutRefi:  {MaxLTV: 0.80, MaxCLTV: 0.80, MaxHCLTV: 0.90},
				},
				UnitBand2: {
					models.PurposePurchase:     {MaxLTV: 0.85, MaxCLTV: 0.85, MaxHCLTV: 0.85},
					models.PurposeRateTermRefi: {MaxLTV: 0.85, MaxCLTV: 0.85, MaxHCLTV: 0.85},
					models.PurposeCashOutRefi:  {MaxLTV: 0.75, MaxCLTV: 0.75, MaxHCLTV: 0.85},
				},
				UnitBand34: {
					models.PurposePurchase:     {MaxLTV: 0.80, MaxCLTV: 0.80, MaxHCLTV: 0.80},
					models.PurposeRateTermRefi: {MaxLTV: 0.80, MaxCLTV: 0.80, MaxHCLTV: 0.80},
					models.PurposeCashOutRefi:  {MaxLTV: 0.75, MaxCLTV: 0.75, MaxHCLTV: 0.85},
				},
			},
			models.OccupancySecondHome: {
				UnitBand1: {
					models.PurposePurchase:     {MaxLTV: 0.90, MaxCLTV: 0.90, MaxHCLTV: 0.90},
					models.PurposeRateTermRefi: {MaxLTV: 0.90, MaxCLTV: 0.90, MaxHCLTV: 0.90},
					models.PurposeCashOutRefi:  {MaxLTV: 0.75, MaxCLTV: 0.75, MaxHCLTV: 0.85},
				},
			},
			models.OccupancyInvestment: {
				UnitBand1: {
					models.PurposePurchase:     {MaxLTV: 0.85, MaxCLTV: 0.85, MaxHCLTV: 0.85},
					models.PurposeRateTermRefi: {MaxLTV: 0.75, MaxCLTV: 0.75, MaxHCLTV: 0.85},
					models.PurposeCashOutRefi:  {MaxLTV: 0.75, MaxCLTV: 0.75, MaxHCLTV: 0.85},
				},
				UnitBand2: {
					models.PurposePurchase:     {MaxLTV: 0.75, MaxCLTV: 0.75, MaxHCLTV: 0.75},
					models.PurposeRateTermRefi: {MaxLTV: 0.70, MaxCLTV: 0.70, MaxHCLTV: 0.75},
					models.PurposeCashOutRefi:  {MaxLTV: 0.70, MaxCLTV: 0.70, MaxHCLTV: 0.75},
				},
				UnitBand34: {
					models.PurposePurchase:     {MaxLTV: 0.75, MaxCLTV: 0.75, MaxHCLTV: 0.75},
					models.PurposeRateTermRefi: {MaxLTV: 0.70, MaxCLTV: 0.70, MaxHCLTV: 0.75},
					models.PurposeCashOutRefi:  {MaxLTV: 0.70, MaxCLTV: 0.70, MaxHCLTV: 0.75},
				},
			},
		},
		CreditScoreMin: CreditScoreMins{
			Base:              620,
			ARM:               640,
			HighBalance:       680,
			MultiUnit:         680,
			Investment:        680,
			CashOut:           620,
			ExtendedPortfolio: 720,
			ManualUWMin:       680,
		},
		DTILimits: DTILimits{
			MaxDU:                 0.50,
			MaxManualBase:         0.36,
			MaxManualCompensating: 0.45,
			EscrowAnnualPct:       0.005,
		},
		PropertyTypeRules: PropertyTypeRules{
			AllowedTypes: []models.PropertyType{
				models.PropertyTypeSFR,
				models.PropertyTypeCondo,
				models.PropertyTypeCoop,
				models.PropertyTypeManufactured,
				models.PropertyTypePUD,
			},
			CoopNoInvestment:   true,
			ManufacturedMaxLTV: 0.95,
			ManufacturedDUOnly: true,
		},
		LoanLimits: LoanLimits{
			Baseline: map[string]float64{
				UnitBand1: 766550,
				UnitBand2: 981500,
				UnitBand3: 1186350,
				UnitBand4: 1474400,
			},
			HighCost: map[string]float64{
				UnitBand1: 1149825,
				UnitBand2: 1472250,
				UnitBand3: 1779525,
				UnitBand4: 2211600,
			},
		},
		MIRules: MIRules{
			RequiredAboveLTV: 0.80,
			ShortTermMonths:  240,
			CoverageBands: []MICoverageBand{
				{LTVMin: 0.8001, LTVMax: 0.85, Standard: 0.12, Minimum: 0.06, StandardShortTerm: 0.06, MinimumShortTerm: 0.06},
				{LTVMin: 0.8501, LTVMax: 0.90, Standard: 0.25, Minimum: 0.12, StandardShortTerm: 0.12, MinimumShortTerm: 0.12},
				{LTVMin: 0.9001, LTVMax: 0.95, Standard: 0.30, Minimum: 0.16, StandardShortTerm: 0.25, MinimumShortTerm: 0.16},
				{LTVMin: 0.9501, LTVMax: 0.97, Standard: 0.35, Minimum: 0.18, StandardShortTerm: 0.25, MinimumShortTerm: 0.18},
			},
			PremiumFactor: 0.02,
		},
		ReserveRules: ReserveRules{
			Months: map[models.Occupancy]map[string]map[string]float64{
				models.OccupancyPrimary: {
					UnitBand1:  {ReserveOther: 0, ReserveCash: 2},
					UnitBand24: {ReserveOther: 6, ReserveCash: 6},
				},
				models.OccupancySecondHome: {
					UnitBand1:  {ReserveOther: 2, ReserveCash: 6},
					UnitBand24: {ReserveOther: 6, ReserveCash: 6},
				},
				models.OccupancyInvestment: {
					UnitBand1:  {ReserveOther: 6, ReserveCash: 6},
					UnitBand24: {ReserveOther: 6, ReserveCash: 6},
				},
			},
			AssumedPropertyUPB: 300000,
		},
		FinancedProperty: FinancedPropertyRules{
			MaxAllowed:        10,
			StandardMax:       6,
			ExtendedMinCredit: 720,
			ExtendedDUOnly:    true,
		},
		ConditionRules: ConditionRules{
			Unacceptable: []models.ConditionRating{models.ConditionC5, models.ConditionC6},
		},
		FTHBRules: FTHBRules{
			MaxLTVNonFTHB:           0.95,
			EducationRequiredLTV:    0.95,
			AMIWaiverThreshold:      1.0,
			AMIWaiverHighCostCutoff: 1.2,
		},
		HPMLRules: HPMLRules{
			HPMLMarginFirstLien:      0.015,
			HOEPAMargin:              0.065,
			HOEPAPointsFeesThreshold: 0.05,
			IndexRate:                0.055,
			EstimatedPointsPct:       1.0,
		},
		LLPA: LLPATables{
			AdjustOccupancy: map[models.Occupancy]float64{
				models.OccupancyPrimary:    0.00,
				models.OccupancySecondHome: 2.00,
				models.OccupancyInvestment: 2.75,
			},
			AdjustPropertyType: map[models.PropertyType]float64{
				models.PropertyTypeSFR:          0.00,
				models.PropertyTypePUD:          0.00,
				models.PropertyTypeCondo:        0.75,
				models.PropertyTypeCoop:         1.00,
				models.PropertyTypeManufactured: 1.50,
			},
			AdjustHighBalance: 0.25,
			AdjustUnits: map[int]float64{
				1: 0.00,
				2: 0.50,
				3: 0.75,
				4: 0.75,
			},
			AdjustMinMI:       0.75,
			AdjustCashOut:     1.25,
			WaiverFTHBEnabled: true,
			CounselingCredit:  0.125,
		},
		HighBalanceLTVCap: 0.95,
		RateSheets: map[string]RateSheet{
			"standard": {
				ProductKey(models.ChannelConforming, models.ProductTypeFixed): {
					{Rate: 6.00, Price: 100.00},
					{Rate: 6.25, Price: 100.50},
					{Rate: 6.50, Price: 101.00},
					{Rate: 6.75, Price: 101.50},
					{Rate: 7.00, Price: 102.00},
				},
				ProductKey(models.ChannelHighBalance, models.ProductTypeFixed): {
					{Rate: 6.00, Price: 99.625},
					{Rate: 6.25, Price: 100.125},
					{Rate: 6.50, Price: 100.625},
					{Rate: 6.75, Price: 101.125},
					{Rate: 7.00, Price: 101.625},
				},
				ProductKey(models.ChannelConforming, models.ProductTypeARM): {
					{Rate: 5.75, Price: 100.00},
					{Rate: 6.00, Price: 100.50},
					{Rate: 6.25, Price: 101.00},
					{Rate: 6.50, Price: 101.50},
				},
				ProductKey(models.ChannelHighBalance, models.ProductTypeARM): {
					{Rate: 5.75, Price: 99.625},
					{Rate: 6.00, Price: 100.125},
					{Rate: 6.25, Price: 100.625},
					{Rate: 6.50, Price: 101.125},
				},
			},
		},
	}

	g.ReserveRules.AdditionalPropertyPct.UpTo4 = 0.02
	g.ReserveRules.AdditionalPropertyPct.FiveSix = 0.04
	g.ReserveRules.AdditionalPropertyPct.Extended = 0.06

	grid := make([]LLPAGridEntry, 0, 64)
	grid = append(grid, baseGridBand(760, 850, [8]float64{0.00, 0.25, 0.50, 0.75, 1.00, 1.25, 1.50, 1.75})...)
	grid = append(grid, baseGridBand(740, 759, [8]float64{0.25, 0.50, 0.75, 1.00, 1.50, 1.75, 2.25, 2.75})...)
	grid = append(grid, baseGridBand(720, 739, [8]float64{0.50, 0.75, 1.25, 1.50, 2.25, 2.75, 3.25, 3.75})...)
	grid = append(grid, baseGridBand(700, 719, [8]float64{1.00, 1.50, 2.00, 2.50, 3.00, 3.50, 4.25, 4.75})...)
	grid = append(grid, baseGridBand(680, 699, [8]float64{1.50, 2.00, 2.75, 3.25, 3.75, 4.25, 5.00, 5.50})...)
	grid = append(grid, baseGridBand(660, 679, [8]float64{2.00, 2.50, 3.25, 4.00, 4.75, 5.25, 6.00, 6.50})...)
	grid = append(grid, baseGridBand(640, 659, [8]float64{2.50, 3.00, 3.75, 4.50, 5.50, 6.00, 7.00, 7.50})...)
	grid = append(grid, baseGridBand(620, 639, [8]float64{3.00, 3.50, 4.50, 5.25, 6.25, 7.00, 8.00, 8.50})...)
	g.LLPA.BaseGrid = grid

	return g
}
