package engine

import (
	"fmt"

	"mortgage-scenario-engine/internal/models"
)

// Context keys written and read by the rules.
const (
	CtxLTV                = "LTV"
	CtxCLTV               = "CLTV"
	CtxHCLTV              = "HCLTV"
	CtxValue              = "value"
	CtxMaxLTV             = "max_ltv"
	CtxMinCreditScore     = "min_credit_score"
	CtxDTI                = "DTI"
	CtxFEDTI              = "FEDTI"
	CtxMonthlyPITIA       = "monthly_pitia"
	CtxDTITier            = "dti_tier"
	CtxChannel            = "channel"
	CtxLoanLimit          = "loan_limit"
	CtxRequiresDU         = "requires_du"
	CtxIsCashOut          = "is_cash_out"
	CtxIsInvestorLoan     = "is_investor_loan"
	CtxMIRequired         = "mi_required"
	CtxMICoverageRequired = "mi_coverage_required"
	CtxMICoverageProvided = "mi_coverage_provided"
	CtxMIBelowStandard    = "mi_below_standard"
	CtxReservesRequired   = "reserves_required_dollars"
	CtxReservesMonths     = "reserves_required_months"
	CtxReservesAvailable  = "reserves_available"
	CtxManualUWEligible   = "manual_uw_eligible"
	CtxIsFTHB             = "is_fthb"
	CtxEducationRequired  = "homeownership_education_required"
	CtxLLPAWaiverEligible = "fthb_llpa_waiver_eligible"
	CtxIsHPML             = "is_hpml"
	CtxIsHOEPA            = "is_hoepa"
	CtxAPR                = "apr"
	CtxLLPATotalBps       = "llpa_total_bps"
	CtxLLPAComponents     = "llpa_components"
	CtxLLPAWaivers        = "llpa_waivers_applied"
)

// EvalContext is the per-evaluation scratch space rules accumulate derived
// metrics in. It is exclusively owned by a single evaluation invocation and
// never shared across evaluations.
//
// Keys are write-once: a rule overwriting a key another rule already set is a
// programming error and panics. Monotone boolean flags that several rules may
// raise (e.g. requires_du) use Mark instead, which is idempotent.
type EvalContext struct {
	values map[string]interface{}
}

// NewEvalContext creates an empty evaluation context.
func NewEvalContext() *EvalContext {
	return &EvalContext{values: make(map[string]interface{})}
}

// Set records a value for a key that has not been written yet.
func (c *EvalContext) Set(key string, value interface{}) {
	if _, exists := c.values[key]; exists {
		panic(fmt.Sprintf("context key %q written twice", key))
	}
	c.values[key] = value
}

// Mark raises a boolean flag. Unlike Set it may be called repeatedly; the
// flag only ever transitions false -> true.
func (c *EvalContext) Mark(key string) {
	if existing, exists := c.values[key]; exists {
		if _, ok := existing.(bool); !ok {
			panic(fmt.Sprintf("context key %q is not a flag", key))
		}
	}
	c.values[key] = true
}

// Has reports whether a key has been written.
func (c *EvalContext) Has(key string) bool {
	_, exists := c.values[key]
	return exists
}

// Float returns the float value for a key, or 0 if unset.
func (c *EvalContext) Float(key string) float64 {
	if v, ok := c.values[key].(float64); ok {
		return v
	}
	return 0
}

// Bool returns the flag value for a key, or false if unset.
func (c *EvalContext) Bool(key string) bool {
	if v, ok := c.values[key].(bool); ok {
		return v
	}
	return false
}

// Components returns the pricing component slice for a key, or nil if unset.
func (c *EvalContext) Components(key string) []models.PricingComponent {
	if v, ok := c.values[key].([]models.PricingComponent); ok {
		return v
	}
	return nil
}

// Strings returns the string slice for a key, or nil if unset.
func (c *EvalContext) Strings(key string) []string {
	if v, ok := c.values[key].([]string); ok {
		return v
	}
	return nil
}

// String returns the string value for a key, or "" if unset.
func (c *EvalContext) String(key string) string {
	if v, ok := c.values[key].(string); ok {
		return v
	}
	return ""
}
