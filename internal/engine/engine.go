package engine

import (
	"fmt"

	"go.uber.org/zap"

	"mortgage-scenario-engine/internal/models"
	"mortgage-scenario-engine/internal/utils"
)

// ruleFunc is a single pipeline stage. It reads the scenario and guidelines,
// may read and write the evaluation context, and reports one outcome. A
// returned error is fatal (guideline gap or internal failure) and aborts the
// evaluation; a business failure is an outcome with Eligible false.
type ruleFunc func(*models.Scenario, *Guidelines, *EvalContext) (models.RuleOutcome, error)

// pipeline lists every rule in dependency order. Earlier rules write the
// context values later rules read; reordering breaks those dependencies.
var pipeline = []ruleFunc{
	ruleLTVFamily,
	ruleCreditScore,
	ruleDTI,
	ruleProperty,
	ruleOccupancy,
	rulePurpose,
	ruleLoanAmount,
	ruleCondition,
	ruleIncomeDocs,
	ruleMortgageInsurance,
	ruleReserves,
	ruleFinancedProperties,
	ruleAUSManualUW,
	ruleFirstTimeBuyer,
	ruleHighCostHPML,
	ruleLLPA,
}

// mandatoryRules are the rules whose outcomes gate overall eligibility. The
// price adjustment rule is informational and excluded.
func isMandatory(name string) bool {
	return name != models.RuleLLPA
}

// RuleCount reports how many rules the pipeline runs per scenario.
func RuleCount() int {
	return len(pipeline)
}

// Engine evaluates scenarios against a fixed set of guidelines.
type Engine struct {
	guidelines *Guidelines
}

// New creates an engine over the given guidelines. Passing nil uses the
// built-in default tables.
func New(g *Guidelines) *Engine {
	if g == nil {
		g = DefaultGuidelines()
	}
	return &Engine{guidelines: g}
}

// Guidelines exposes the engine's tables for inspection.
func (e *Engine) Guidelines() *Guidelines {
	return e.guidelines
}

// Evaluate runs the full rule pipeline and pricing for one scenario. The
// scenario is validated first; malformed input returns an error without any
// rule running. Rule failures do not stop the pipeline, so the result carries
// every failing rule, and pricing is computed even for ineligible scenarios.
func (e *Engine) Evaluate(s *models.Scenario) (*models.EvaluationResult, error) {
	if err := models.ValidateScenario(s); err != nil {
		return nil, err
	}

	ctx := NewEvalContext()
	result := &models.EvaluationResult{
		EligibilityOverall: true,
		RuleResults:        make([]models.RuleOutcome, 0, len(pipeline)),
		CalculatedMetrics:  make(map[string]interface{}),
		Flags:              make(map[string]bool),
	}

	for _, rule := range pipeline {
		outcome, err := rule(s, e.guidelines, ctx)
		if err != nil {
			return nil, fmt.Errorf("rule evaluation failed: %w", err)
		}
		result.RuleResults = append(result.RuleResults, outcome)
		if isMandatory(outcome.RuleName) && !outcome.Eligible {
			result.EligibilityOverall = false
		}
	}

	// A high-cost classification disqualifies regardless of every other
	// outcome.
	if ctx.Bool(CtxIsHOEPA) {
		result.EligibilityOverall = false
	}

	result.CalculatedMetrics["LTV"] = ctx.Float(CtxLTV)
	result.CalculatedMetrics["CLTV"] = ctx.Float(CtxCLTV)
	result.CalculatedMetrics["HCLTV"] = ctx.Float(CtxHCLTV)
	result.CalculatedMetrics["DTI"] = ctx.Float(CtxDTI)
	result.CalculatedMetrics["FEDTI"] = ctx.Float(CtxFEDTI)
	result.CalculatedMetrics["monthly_pitia"] = ctx.Float(CtxMonthlyPITIA)
	result.CalculatedMetrics["value"] = ctx.Float(CtxValue)
	result.CalculatedMetrics["channel"] = ctx.String(CtxChannel)
	result.CalculatedMetrics["reserves_required_dollars"] = ctx.Float(CtxReservesRequired)
	result.CalculatedMetrics["reserves_required_months"] = ctx.Float(CtxReservesMonths)
	if ctx.Has(CtxAPR) {
		result.CalculatedMetrics["apr"] = ctx.Float(CtxAPR)
	}

	result.Flags["HPML"] = ctx.Bool(CtxIsHPML)
	result.Flags["HOEPA"] = ctx.Bool(CtxIsHOEPA)
	result.Flags["DU_Required"] = ctx.Bool(CtxRequiresDU)
	result.Flags["ManualUWOnly"] = ctx.Bool(CtxManualUWEligible) && !ctx.Bool(CtxRequiresDU)
	result.Flags["FirstTimeHomebuyer"] = ctx.Bool(CtxIsFTHB)
	result.Flags["InvestorLoan"] = ctx.Bool(CtxIsInvestorLoan)
	result.Flags["CashOut"] = ctx.Bool(CtxIsCashOut)
	result.Flags["MI_Required"] = ctx.Bool(CtxMIRequired)
	result.Flags["EducationRequired"] = ctx.Bool(CtxEducationRequired)

	pricing, err := price(s, e.guidelines, ctx)
	if err != nil {
		return nil, fmt.Errorf("pricing failed: %w", err)
	}
	result.Pricing = pricing

	utils.GetLogger().Debug("Scenario evaluated",
		zap.Bool("eligible", result.EligibilityOverall),
		zap.Int("failed_rules", len(result.FailedRules())),
		zap.Float64("llpa_total_bps", pricing.LLPATotalBps),
		zap.Float64("net_price", pricing.NetPrice))

	return result, nil
}
