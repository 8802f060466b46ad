package engine

import (
	"fmt"

	"mortgage-scenario-engine/internal/models"
)

// ruleProperty validates the property type against the allowed set and
// enforces type-specific constraints.
func ruleProperty(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	prop := &s.Property
	rules := g.PropertyTypeRules

	allowed := false
	for _, t := range rules.AllowedTypes {
		if prop.PropertyType == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.RuleOutcome{
			RuleName: models.RulePropertyType,
			Eligible: false,
			Messages: []string{fmt.Sprintf("Property type %s not allowed", prop.PropertyType)},
			Metrics:  map[string]interface{}{"property_type": string(prop.PropertyType)},
		}, nil
	}

	var messages []string
	eligible := true

	if prop.PropertyType == models.PropertyTypeCoop && prop.Occupancy == models.OccupancyInvestment && rules.CoopNoInvestment {
		eligible = false
		messages = append(messages, "Co-op investment properties not allowed")
	}

	if prop.PropertyType == models.PropertyTypeManufactured {
		ltv := ctx.Float(CtxLTV)
		if rules.ManufacturedMaxLTV > 0 && ltv > rules.ManufacturedMaxLTV {
			eligible = false
			messages = append(messages, fmt.Sprintf("Manufactured home LTV %.2f%% exceeds max %.2f%%", ltv*100, rules.ManufacturedMaxLTV*100))
		}
		if rules.ManufacturedDUOnly {
			ctx.Mark(CtxRequiresDU)
			messages = append(messages, "Manufactured home requires automated approval")
		}
	}

	if prop.Units < 1 || prop.Units > 4 {
		eligible = false
		messages = append(messages, fmt.Sprintf("Property must be 1-4 units, got %d", prop.Units))
	}

	if len(messages) == 0 {
		messages = append(messages, fmt.Sprintf("Property type %s acceptable", prop.PropertyType))
	}

	return models.RuleOutcome{
		RuleName: models.RulePropertyType,
		Eligible: eligible,
		Messages: messages,
		Metrics: map[string]interface{}{
			"property_type": string(prop.PropertyType),
			"units":         prop.Units,
		},
	}, nil
}

// ruleOccupancy enforces occupancy-specific constraints.
func ruleOccupancy(s *models.Scenario, _ *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	prop := &s.Property

	var messages []string
	eligible := true

	if prop.Occupancy == models.OccupancySecondHome && prop.Units != 1 {
		eligible = false
		messages = append(messages, "Second homes must be 1-unit properties")
	}
	if prop.Occupancy == models.OccupancyInvestment {
		ctx.Mark(CtxIsInvestorLoan)
	}
	if len(messages) == 0 {
		messages = append(messages, fmt.Sprintf("Occupancy %s acceptable", prop.Occupancy))
	}

	return models.RuleOutcome{
		RuleName: models.RuleOccupancy,
		Eligible: eligible,
		Messages: messages,
		Metrics:  map[string]interface{}{"occupancy": string(prop.Occupancy)},
	}, nil
}

// rulePurpose classifies the loan purpose and flags cash-out treatment.
func rulePurpose(s *models.Scenario, _ *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	isCashOut := s.Loan.Purpose == models.PurposeCashOutRefi
	if isCashOut {
		ctx.Mark(CtxIsCashOut)
	} else {
		ctx.Set(CtxIsCashOut, false)
	}

	var messages []string
	if isCashOut {
		messages = append(messages, "Cash-out refinance: stricter LTV limits apply")
	} else {
		messages = append(messages, fmt.Sprintf("Purpose: %s", s.Loan.Purpose))
	}

	return models.RuleOutcome{
		RuleName: models.RuleLoanPurpose,
		Eligible: true,
		Messages: messages,
		Metrics: map[string]interface{}{
			"purpose":     string(s.Loan.Purpose),
			"is_cash_out": isCashOut,
		},
	}, nil
}

// ruleLoanAmount classifies the loan amount as conforming, high-balance, or
// out of program against the unit-count and area-cost keyed limit tables.
// Out-of-program amounts are ineligible for this pipeline entirely.
func ruleLoanAmount(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	loan := &s.Loan
	prop := &s.Property

	unitKey := fmt.Sprintf("%d_unit", prop.Units)
	if prop.Units > 4 {
		unitKey = UnitBand4
	}

	baseline, ok := g.LoanLimits.Baseline[unitKey]
	if !ok {
		return models.RuleOutcome{}, models.NewGuidelineGap("loan_limits.baseline", unitKey)
	}

	maxLimit := baseline
	channel := models.ChannelConforming
	if prop.IsHighCostArea {
		highCost, ok := g.LoanLimits.HighCost[unitKey]
		if !ok {
			return models.RuleOutcome{}, models.NewGuidelineGap("loan_limits.high_cost", unitKey)
		}
		maxLimit = highCost
		if loan.LoanAmount > baseline {
			channel = models.ChannelHighBalance
		}
	}

	if loan.LoanAmount > maxLimit {
		return models.RuleOutcome{
			RuleName: models.RuleLoanAmountLimits,
			Eligible: false,
			Messages: []string{fmt.Sprintf("Loan amount $%.0f exceeds %s limit $%.0f (out of program)", loan.LoanAmount, channel, maxLimit)},
			Metrics: map[string]interface{}{
				"loan_amount": loan.LoanAmount,
				"max_limit":   maxLimit,
				"channel":     string(models.ChannelJumbo),
			},
		}, nil
	}

	ctx.Set(CtxChannel, string(channel))
	ctx.Set(CtxLoanLimit, maxLimit)

	return models.RuleOutcome{
		RuleName: models.RuleLoanAmountLimits,
		Eligible: true,
		Messages: []string{fmt.Sprintf("Loan amount $%.0f within %s limits (max $%.0f)", loan.LoanAmount, channel, maxLimit)},
		Metrics: map[string]interface{}{
			"loan_amount": loan.LoanAmount,
			"max_limit":   maxLimit,
			"channel":     string(channel),
		},
	}, nil
}

// ruleCondition rejects the two worst appraisal condition grades outright.
func ruleCondition(s *models.Scenario, g *Guidelines, _ *EvalContext) (models.RuleOutcome, error) {
	condition := s.Property.ConditionRating

	for _, bad := range g.ConditionRules.Unacceptable {
		if condition == bad {
			return models.RuleOutcome{
				RuleName: models.RulePropertyCondition,
				Eligible: false,
				Messages: []string{fmt.Sprintf("Property condition %s unacceptable - requires repair to C4 or better", condition)},
				Metrics:  map[string]interface{}{"condition_rating": string(condition)},
			}, nil
		}
	}

	return models.RuleOutcome{
		RuleName: models.RulePropertyCondition,
		Eligible: true,
		Messages: []string{fmt.Sprintf("Property condition %s acceptable", condition)},
		Metrics:  map[string]interface{}{"condition_rating": string(condition)},
	}, nil
}

// ruleIncomeDocs enforces the full documentation requirement.
func ruleIncomeDocs(s *models.Scenario, _ *Guidelines, _ *EvalContext) (models.RuleOutcome, error) {
	docType := s.Borrower.DocType
	if docType == "" {
		docType = models.DocTypeFull
	}

	if docType != models.DocTypeFull {
		return models.RuleOutcome{
			RuleName: models.RuleIncomeDocs,
			Eligible: false,
			Messages: []string{fmt.Sprintf("Only full documentation allowed, got %q", docType)},
			Metrics:  map[string]interface{}{"doc_type": string(docType)},
		}, nil
	}

	return models.RuleOutcome{
		RuleName: models.RuleIncomeDocs,
		Eligible: true,
		Messages: []string{"Full documentation provided"},
		Metrics:  map[string]interface{}{"doc_type": string(docType)},
	}, nil
}
