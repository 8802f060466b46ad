package engine

import (
	"fmt"

	"mortgage-scenario-engine/internal/models"
)

// ruleLLPA assembles the loan-level price adjustment stack: the credit/LTV
// base grid plus the additive tables, then the first-time buyer waiver and
// counseling credit. It is informational and never fails a scenario.
func ruleLLPA(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	ltv := ctx.Float(CtxLTV)
	credit := s.Borrower.CreditScore
	tables := &g.LLPA

	var components []models.PricingComponent
	addComponent := func(name string, bps float64, reason string) {
		if bps == 0 {
			return
		}
		components = append(components, models.PricingComponent{
			Name:     name,
			ValueBps: bps,
			Reason:   reason,
		})
	}

	var base *LLPAGridEntry
	for i := range tables.BaseGrid {
		e := &tables.BaseGrid[i]
		if e.CreditMin <= credit && credit <= e.CreditMax && e.LTVMin < ltv && ltv <= e.LTVMax {
			base = e
			break
		}
	}
	if base == nil {
		return models.RuleOutcome{}, models.NewGuidelineGap("llpa.base_grid",
			fmt.Sprintf("credit %d / LTV %.2f%%", credit, ltv*100))
	}
	addComponent("base_grid", base.Bps,
		fmt.Sprintf("Credit %d-%d x LTV %.2f-%.2f%%", base.CreditMin, base.CreditMax, base.LTVMin*100, base.LTVMax*100))

	occAdj, ok := tables.AdjustOccupancy[s.Property.Occupancy]
	if !ok {
		return models.RuleOutcome{}, models.NewGuidelineGap("llpa.adjust_occupancy", string(s.Property.Occupancy))
	}
	addComponent("occupancy", occAdj, fmt.Sprintf("Occupancy %s", s.Property.Occupancy))

	typeAdj, ok := tables.AdjustPropertyType[s.Property.PropertyType]
	if !ok {
		return models.RuleOutcome{}, models.NewGuidelineGap("llpa.adjust_property_type", string(s.Property.PropertyType))
	}
	addComponent("property_type", typeAdj, fmt.Sprintf("Property type %s", s.Property.PropertyType))

	if ctx.String(CtxChannel) == string(models.ChannelHighBalance) {
		addComponent("high_balance", tables.AdjustHighBalance, "High balance loan amount")
	}

	unitsAdj, ok := tables.AdjustUnits[s.Property.Units]
	if !ok {
		return models.RuleOutcome{}, models.NewGuidelineGap("llpa.adjust_units", fmt.Sprintf("%d units", s.Property.Units))
	}
	addComponent("units", unitsAdj, fmt.Sprintf("%d units", s.Property.Units))

	if ctx.Bool(CtxMIBelowStandard) {
		addComponent("minimum_mi", tables.AdjustMinMI, "MI coverage below standard requirement")
	}

	if ctx.Bool(CtxIsCashOut) {
		addComponent("cash_out", tables.AdjustCashOut, "Cash-out refinance")
	}

	total := 0.0
	for _, c := range components {
		total += c.ValueBps
	}

	var waivers []string
	var messages []string

	if tables.WaiverFTHBEnabled && ctx.Bool(CtxLLPAWaiverEligible) && total != 0 {
		addComponent("fthb_ami_waiver", -total, "First-time homebuyer income-based waiver of standard adjustments")
		waivers = append(waivers, "fthb_ami_waiver")
		messages = append(messages, fmt.Sprintf("First-time buyer waiver removes %.3f bps of standard adjustments", total))
		total = 0
	}

	if s.Borrower.CounselingCompleted && tables.CounselingCredit != 0 {
		addComponent("counseling_credit", -tables.CounselingCredit, "Homeownership counseling completed")
		total -= tables.CounselingCredit
		messages = append(messages, fmt.Sprintf("Counseling credit of %.3f bps applied", tables.CounselingCredit))
	}

	ctx.Set(CtxLLPATotalBps, total)
	ctx.Set(CtxLLPAComponents, components)
	if len(waivers) > 0 {
		ctx.Set(CtxLLPAWaivers, waivers)
	}

	messages = append(messages, fmt.Sprintf("Total price adjustment: %.3f bps", total))

	return models.RuleOutcome{
		RuleName: models.RuleLLPA,
		Eligible: true,
		Messages: messages,
		Metrics: map[string]interface{}{
			"total_bps":       total,
			"component_count": len(components),
		},
	}, nil
}
