// Package models defines the data structures for the mortgage scenario engine.
package models

// Rule name constants, in evaluation order.
const (
	RuleLTVFamily          = "LTV_CLTV_HCLTV"
	RuleCreditScore        = "CREDIT_SCORE"
	RuleDTI                = "DTI"
	RulePropertyType       = "PROPERTY_TYPE"
	RuleOccupancy          = "OCCUPANCY"
	RuleLoanPurpose        = "LOAN_PURPOSE"
	RuleLoanAmountLimits   = "LOAN_AMOUNT_LIMITS"
	RulePropertyCondition  = "PROPERTY_CONDITION"
	RuleIncomeDocs         = "INCOME_DOCUMENTATION"
	RuleMortgageInsurance  = "MORTGAGE_INSURANCE"
	RuleReserves           = "RESERVES"
	RuleFinancedProperties = "FINANCED_PROPERTIES"
	RuleAUSManualUW        = "AUS_MANUAL_UW"
	RuleFirstTimeBuyer     = "FIRST_TIME_HOMEBUYER"
	RuleHighCostHPML       = "HIGH_COST_HPML"
	RuleLLPA               = "LLPA"
)

// RuleOutcome is the result of one eligibility rule. It is produced exactly
// once per rule per evaluation and never mutated afterwards.
type RuleOutcome struct {
	RuleName string                 `json:"rule_name"`
	Eligible bool                   `json:"eligible"`
	Messages []string               `json:"messages"`
	Metrics  map[string]interface{} `json:"metrics,omitempty"`
}

// PricingComponent is one signed price adjustment, in basis points
// (100 bps = 1.00% of loan price).
type PricingComponent struct {
	Name     string  `json:"name"`
	ValueBps float64 `json:"value_bps"`
	Reason   string  `json:"reason"`
}

// PricingResult is the complete pricing breakdown for a scenario.
type PricingResult struct {
	BaseRate       float64            `json:"base_rate"`
	BasePrice      float64            `json:"base_price"`
	LLPATotalBps   float64            `json:"llpa_total_bps"`
	Components     []PricingComponent `json:"components"`
	WaiversApplied []string           `json:"waivers_applied"`
	NetPrice       float64            `json:"net_price"`
	Notes          []string           `json:"notes"`
}

// FinalRate returns the effective note rate when the LLPA total is taken as a
// rate adjustment instead of a price adjustment.
func (p *PricingResult) FinalRate() float64 {
	return p.BaseRate + p.LLPATotalBps/100.0
}

// EvaluationResult is the complete output of one evaluation. Constructed once
// at the end of the pipeline and immutable thereafter.
type EvaluationResult struct {
	EligibilityOverall bool                   `json:"eligibility_overall"`
	RuleResults        []RuleOutcome          `json:"rule_results"`
	Pricing            *PricingResult         `json:"pricing"`
	CalculatedMetrics  map[string]interface{} `json:"calculated_metrics"`
	Flags              map[string]bool        `json:"flags"`
}

// FailedRules returns the outcomes of every rule that found the scenario
// ineligible.
func (r *EvaluationResult) FailedRules() []RuleOutcome {
	var failed []RuleOutcome
	for _, outcome := range r.RuleResults {
		if !outcome.Eligible {
			failed = append(failed, outcome)
		}
	}
	return failed
}

// FailedRuleNames returns just the names of the failed rules, in pipeline
// order. This is what the audit store indexes on.
func (r *EvaluationResult) FailedRuleNames() []string {
	var names []string
	for _, outcome := range r.RuleResults {
		if !outcome.Eligible {
			names = append(names, outcome.RuleName)
		}
	}
	return names
}
