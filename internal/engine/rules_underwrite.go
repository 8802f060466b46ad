package engine

import (
	"fmt"

	"mortgage-scenario-engine/internal/models"
)

// ruleMortgageInsurance determines whether MI is required and validates the
// provided coverage against the band for the scenario's LTV and term.
func ruleMortgageInsurance(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	ltv := ctx.Float(CtxLTV)
	rules := g.MIRules

	if ltv <= rules.RequiredAboveLTV {
		ctx.Set(CtxMIRequired, false)
		return models.RuleOutcome{
			RuleName: models.RuleMortgageInsurance,
			Eligible: true,
			Messages: []string{fmt.Sprintf("No MI required (LTV <= %.0f%%)", rules.RequiredAboveLTV*100)},
			Metrics:  map[string]interface{}{"mi_required": false, "LTV": ltv},
		}, nil
	}

	var band *MICoverageBand
	for i := range rules.CoverageBands {
		b := &rules.CoverageBands[i]
		if b.LTVMin < ltv && ltv <= b.LTVMax {
			band = b
			break
		}
	}
	if band == nil {
		if n := len(rules.CoverageBands); n > 0 && ltv > rules.CoverageBands[n-1].LTVMax {
			// LTV past the top of the table: the LTV rule has already
			// failed the scenario, but coverage is still assessed at
			// the highest band for diagnostics.
			band = &rules.CoverageBands[n-1]
		} else {
			return models.RuleOutcome{}, models.NewGuidelineGap("mi_rules.coverage_bands", fmt.Sprintf("LTV %.2f%%", ltv*100))
		}
	}

	required := band.Standard
	minimum := band.Minimum
	if rules.ShortTermMonths > 0 && s.Loan.TermMonths <= rules.ShortTermMonths {
		required = band.StandardShortTerm
		minimum = band.MinimumShortTerm
	}

	provided := 0.0
	if s.Financing.HasMI() && s.Financing.MICoveragePct != nil {
		provided = *s.Financing.MICoveragePct
	}

	ctx.Set(CtxMIRequired, true)
	ctx.Set(CtxMICoverageRequired, required)
	ctx.Set(CtxMICoverageProvided, provided)

	var messages []string
	eligible := true

	switch {
	case !s.Financing.HasMI():
		eligible = false
		messages = append(messages, fmt.Sprintf("MI required for LTV %.2f%% (min %.0f%% coverage)", ltv*100, required*100))
	case provided < minimum:
		eligible = false
		messages = append(messages, fmt.Sprintf("MI coverage %.0f%% below minimum %.0f%%", provided*100, minimum*100))
	case provided < required:
		ctx.Mark(CtxMIBelowStandard)
		messages = append(messages, fmt.Sprintf("MI coverage %.0f%% below standard %.0f%% (price adjustment applies)", provided*100, required*100))
	default:
		messages = append(messages, fmt.Sprintf("MI %.0f%% coverage meets requirement", provided*100))
	}

	return models.RuleOutcome{
		RuleName: models.RuleMortgageInsurance,
		Eligible: eligible,
		Messages: messages,
		Metrics: map[string]interface{}{
			"mi_required":       true,
			"required_coverage": required,
			"minimum_coverage":  minimum,
			"provided_coverage": provided,
			"LTV":               ltv,
		},
	}, nil
}

// otherFinancedUPB returns the outstanding balance on the borrower's other
// financed properties, estimating from the count when no actual figure was
// supplied.
func otherFinancedUPB(s *models.Scenario, g *Guidelines) float64 {
	if s.Borrower.OtherFinancedBalances > 0 {
		return s.Borrower.OtherFinancedBalances
	}
	if s.Borrower.NumFinancedProperties > 1 {
		return float64(s.Borrower.NumFinancedProperties-1) * g.ReserveRules.AssumedPropertyUPB
	}
	return 0
}

// additionalReservePct returns the reserve surcharge rate for the financed
// property count band.
func additionalReservePct(count int, g *Guidelines) float64 {
	pct := g.ReserveRules.AdditionalPropertyPct
	switch {
	case count >= 7:
		return pct.Extended
	case count >= 5:
		return pct.FiveSix
	case count >= 2:
		return pct.UpTo4
	default:
		return 0
	}
}

// unitBandReserves buckets a unit count for the reserve tables.
func unitBandReserves(units int) string {
	if units == 1 {
		return UnitBand1
	}
	return UnitBand24
}

// ruleReserves computes required liquid reserves from the occupancy, unit
// count, and cash-out keyed month table plus the financed-property surcharge,
// and compares against available assets after closing.
func ruleReserves(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	pitia := ctx.Float(CtxMonthlyPITIA)

	band := unitBandReserves(s.Property.Units)
	cashKey := ReserveOther
	if ctx.Bool(CtxIsCashOut) {
		cashKey = ReserveCash
	}

	months, ok := g.ReserveRules.Months[s.Property.Occupancy][band][cashKey]
	if !ok {
		return models.RuleOutcome{}, models.NewGuidelineGap("reserve_rules.months",
			fmt.Sprintf("%s/%s/%s", s.Property.Occupancy, band, cashKey))
	}

	count := s.Borrower.NumFinancedProperties
	additional := otherFinancedUPB(s, g) * additionalReservePct(count, g)
	required := months*pitia + additional
	available := s.Borrower.LiquidAssets

	ctx.Set(CtxReservesRequired, required)
	ctx.Set(CtxReservesMonths, months)
	ctx.Set(CtxReservesAvailable, available)

	eligible := available >= required
	var messages []string
	if eligible {
		messages = append(messages, fmt.Sprintf("Sufficient reserves: $%.0f available vs $%.0f required (%.0f months + $%.0f for %d properties)",
			available, required, months, additional, count))
	} else {
		messages = append(messages, fmt.Sprintf("Insufficient reserves: $%.0f available vs $%.0f required (%.0f months PITIA + $%.0f for %d properties), shortage $%.0f",
			available, required, months, additional, count, required-available))
	}

	return models.RuleOutcome{
		RuleName: models.RuleReserves,
		Eligible: eligible,
		Messages: messages,
		Metrics: map[string]interface{}{
			"required_dollars":  required,
			"required_months":   months,
			"available_dollars": available,
		},
	}, nil
}

// ruleFinancedProperties bands the financed-property count. The extended band
// carries an elevated credit floor and a reserve surcharge of its own; past
// the maximum the scenario is out of program.
func ruleFinancedProperties(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	count := s.Borrower.NumFinancedProperties
	rules := g.FinancedProperty

	if count > rules.MaxAllowed {
		return models.RuleOutcome{
			RuleName: models.RuleFinancedProperties,
			Eligible: false,
			Messages: []string{fmt.Sprintf("Too many financed properties: %d (max %d)", count, rules.MaxAllowed)},
			Metrics:  map[string]interface{}{"num_financed_properties": count, "band": "disqualifying"},
		}, nil
	}

	if count <= rules.StandardMax {
		return models.RuleOutcome{
			RuleName: models.RuleFinancedProperties,
			Eligible: true,
			Messages: []string{fmt.Sprintf("Standard portfolio: %d properties", count)},
			Metrics:  map[string]interface{}{"num_financed_properties": count, "band": "standard"},
		}, nil
	}

	var messages []string
	eligible := true

	if s.Borrower.CreditScore < rules.ExtendedMinCredit {
		eligible = false
		messages = append(messages, fmt.Sprintf("%d financed properties requires min credit score %d, got %d",
			count, rules.ExtendedMinCredit, s.Borrower.CreditScore))
	}

	surcharge := otherFinancedUPB(s, g) * g.ReserveRules.AdditionalPropertyPct.Extended
	if s.Borrower.LiquidAssets < surcharge {
		eligible = false
		messages = append(messages, fmt.Sprintf("Extended portfolio reserve surcharge $%.0f exceeds available assets $%.0f",
			surcharge, s.Borrower.LiquidAssets))
	}

	if rules.ExtendedDUOnly {
		ctx.Mark(CtxRequiresDU)
		messages = append(messages, fmt.Sprintf("%d financed properties requires automated approval", count))
	}
	messages = append(messages, fmt.Sprintf("Extended portfolio: %d properties (%d-%d range)", count, rules.StandardMax+1, rules.MaxAllowed))

	return models.RuleOutcome{
		RuleName: models.RuleFinancedProperties,
		Eligible: eligible,
		Messages: messages,
		Metrics: map[string]interface{}{
			"num_financed_properties": count,
			"band":                    "extended",
			"reserve_surcharge":       surcharge,
		},
	}, nil
}

// ruleAUSManualUW classifies the scenario into the automated or manual
// underwriting path. It never fails a scenario.
func ruleAUSManualUW(_ *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	requiresDU := ctx.Bool(CtxRequiresDU)
	dti := ctx.Float(CtxDTI)

	manualEligible := dti <= g.DTILimits.MaxManualCompensating && !requiresDU
	ctx.Set(CtxManualUWEligible, manualEligible)

	var messages []string
	switch {
	case requiresDU:
		messages = append(messages, "Automated approval required (credit floor, extended portfolio, high DTI, or manufactured home)")
	case manualEligible:
		messages = append(messages, "Eligible for manual underwriting")
	default:
		messages = append(messages, "Loan characteristics suggest automated path preferred")
	}

	return models.RuleOutcome{
		RuleName: models.RuleAUSManualUW,
		Eligible: true,
		Messages: messages,
		Metrics: map[string]interface{}{
			"requires_du":     requiresDU,
			"manual_eligible": manualEligible,
			"dti_tier":        ctx.String(CtxDTITier),
		},
	}, nil
}

// ruleFirstTimeBuyer derives first-time status, gates near-maximum financing
// on it, and decides price-adjustment waiver eligibility for the LLPA rule.
func ruleFirstTimeBuyer(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	b := &s.Borrower
	ltv := ctx.Float(CtxLTV)
	rules := g.FTHBRules

	isFTHB := b.FirstTimeHomebuyer || !b.OwnsPropertyLast3Yrs
	ctx.Set(CtxIsFTHB, isFTHB)

	var messages []string
	eligible := true

	if ltv > rules.MaxLTVNonFTHB && !isFTHB {
		eligible = false
		messages = append(messages, fmt.Sprintf("LTV %.2f%% > %.2f%% requires first-time homebuyer status", ltv*100, rules.MaxLTVNonFTHB*100))
	}

	if isFTHB && ltv > rules.EducationRequiredLTV {
		ctx.Mark(CtxEducationRequired)
		messages = append(messages, fmt.Sprintf("Homeownership education required for first-time buyer with LTV > %.0f%%", rules.EducationRequiredLTV*100))
	}

	threshold := rules.AMIWaiverThreshold
	if s.Property.IsHighCostArea {
		threshold = rules.AMIWaiverHighCostCutoff
	}

	waiverEligible := false
	if isFTHB && b.AMIRatio != nil && *b.AMIRatio <= threshold {
		waiverEligible = true
		ctx.Mark(CtxLLPAWaiverEligible)
		messages = append(messages, fmt.Sprintf("Eligible for first-time buyer price adjustment waiver (AMI ratio %.0f%% <= %.0f%%)", *b.AMIRatio*100, threshold*100))
	}

	if len(messages) == 0 {
		messages = append(messages, fmt.Sprintf("First-time homebuyer status: %t", isFTHB))
	}

	metrics := map[string]interface{}{
		"is_fthb":              isFTHB,
		"llpa_waiver_eligible": waiverEligible,
	}
	if b.AMIRatio != nil {
		metrics["ami_ratio"] = *b.AMIRatio
	}

	return models.RuleOutcome{
		RuleName: models.RuleFirstTimeBuyer,
		Eligible: eligible,
		Messages: messages,
		Metrics:  metrics,
	}, nil
}

// ruleHighCostHPML flags high-priced and high-cost status from the rate
// spread and points-and-fees ratio. The high-cost flag is disqualifying; the
// high-priced flag is advisory only.
func ruleHighCostHPML(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	loan := &s.Loan
	rules := g.HPMLRules

	pointsPct := rules.EstimatedPointsPct
	if loan.PointsAndFeesPct != nil {
		pointsPct = *loan.PointsAndFeesPct
	}
	pointsRatio := pointsPct / 100.0

	termYears := float64(loan.TermMonths) / 12.0
	apr := loan.NoteRate + pointsPct/termYears
	if loan.APR != nil {
		apr = *loan.APR
	}

	isHPML := apr/100.0 >= rules.IndexRate+rules.HPMLMarginFirstLien
	isHOEPA := apr/100.0 >= rules.IndexRate+rules.HOEPAMargin || pointsRatio >= rules.HOEPAPointsFeesThreshold

	ctx.Set(CtxIsHPML, isHPML)
	ctx.Set(CtxIsHOEPA, isHOEPA)
	ctx.Set(CtxAPR, apr)

	var messages []string
	eligible := true
	switch {
	case isHOEPA:
		eligible = false
		messages = append(messages, fmt.Sprintf("High-cost loan: APR %.3f%% or points %.2f%% exceeds HOEPA thresholds", apr, pointsPct))
	case isHPML:
		messages = append(messages, fmt.Sprintf("HPML flagged: APR %.3f%% >= index %.3f%% + %.3f%% (ensure HPML requirements met)",
			apr, rules.IndexRate*100, rules.HPMLMarginFirstLien*100))
	default:
		messages = append(messages, "Not HPML or HOEPA")
	}

	return models.RuleOutcome{
		RuleName: models.RuleHighCostHPML,
		Eligible: eligible,
		Messages: messages,
		Metrics: map[string]interface{}{
			"is_hpml":    isHPML,
			"is_hoepa":   isHOEPA,
			"apr":        apr,
			"index_rate": rules.IndexRate,
		},
	}, nil
}
