package engine

import (
	"fmt"
	"math"

	"mortgage-scenario-engine/internal/models"
)

// roundRatioUp truncates a ratio, expressed as a percentage, to two decimal
// places and then rounds it up to the nearest whole percentage point. The
// truncate-then-ceil order is preserved from the published guideline tables;
// it means 80.004% counts as 80% while 80.01% counts as 81%.
func roundRatioUp(ratio float64) float64 {
	if ratio <= 0 {
		return 0
	}
	pct := ratio * 100
	truncated := math.Trunc(pct*100) / 100
	return math.Ceil(truncated) / 100
}

// unitBandLTV buckets a unit count for the LTV limit tables.
func unitBandLTV(units int) string {
	switch units {
	case 1:
		return UnitBand1
	case 2:
		return UnitBand2
	default:
		return UnitBand34
	}
}

// ruleLTVFamily computes LTV, CLTV, and HCLTV against the valuation base and
// validates each against the configured maxima. It seeds the context every
// later rule depends on.
func ruleLTVFamily(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	value := s.ValuationBase()

	var ltv, cltv, hcltv float64
	if value > 0 {
		subordinateBalance := 0.0
		helocLimits := 0.0
		for _, lien := range s.Financing.SubordinateLiens {
			subordinateBalance += lien.CurrentBalance
			if lien.Type == models.LienTypeHELOC {
				limit := lien.CreditLimit
				if limit == 0 {
					limit = lien.CurrentBalance
				}
				helocLimits += limit
			}
		}

		ltv = roundRatioUp(s.Loan.LoanAmount / value)
		cltv = roundRatioUp((s.Loan.LoanAmount + subordinateBalance) / value)
		hcltv = roundRatioUp((s.Loan.LoanAmount + helocLimits) / value)
	}

	ctx.Set(CtxLTV, ltv)
	ctx.Set(CtxCLTV, cltv)
	ctx.Set(CtxHCLTV, hcltv)
	ctx.Set(CtxValue, value)

	band := unitBandLTV(s.Property.Units)
	limits, ok := g.LTVLimits[s.Property.Occupancy][band][s.Loan.Purpose]
	if !ok {
		return models.RuleOutcome{}, models.NewGuidelineGap("ltv_limits",
			fmt.Sprintf("%s/%s/%s", s.Property.Occupancy, band, s.Loan.Purpose))
	}

	maxLTV := limits.MaxLTV
	if s.Loan.Channel == models.ChannelHighBalance && g.HighBalanceLTVCap > 0 && g.HighBalanceLTVCap < maxLTV {
		maxLTV = g.HighBalanceLTVCap
	}
	ctx.Set(CtxMaxLTV, maxLTV)

	var messages []string
	eligible := true

	if ltv > maxLTV {
		eligible = false
		messages = append(messages, fmt.Sprintf("LTV %.2f%% exceeds max %.2f%%", ltv*100, maxLTV*100))
	}
	if cltv > limits.MaxCLTV {
		eligible = false
		messages = append(messages, fmt.Sprintf("CLTV %.2f%% exceeds max %.2f%%", cltv*100, limits.MaxCLTV*100))
	}
	if hcltv > limits.MaxHCLTV {
		eligible = false
		messages = append(messages, fmt.Sprintf("HCLTV %.2f%% exceeds max %.2f%%", hcltv*100, limits.MaxHCLTV*100))
	}
	if len(messages) == 0 {
		messages = append(messages, "LTV/CLTV/HCLTV within limits")
	}

	return models.RuleOutcome{
		RuleName: models.RuleLTVFamily,
		Eligible: eligible,
		Messages: messages,
		Metrics: map[string]interface{}{
			"LTV":       ltv,
			"CLTV":      cltv,
			"HCLTV":     hcltv,
			"max_ltv":   maxLTV,
			"max_cltv":  limits.MaxCLTV,
			"max_hcltv": limits.MaxHCLTV,
			"value":     value,
		},
	}, nil
}

// ruleCreditScore validates the representative score against the highest
// applicable floor and records whether the scenario needs automated approval.
func ruleCreditScore(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	credit := s.Borrower.CreditScore
	mins := g.CreditScoreMin

	minRequired := mins.Base
	raise := func(floor int) {
		if floor > minRequired {
			minRequired = floor
		}
	}

	if s.Loan.ProductType == models.ProductTypeARM {
		raise(mins.ARM)
	}
	if s.Loan.Channel == models.ChannelHighBalance {
		raise(mins.HighBalance)
	}
	if s.Property.Units >= 2 {
		raise(mins.MultiUnit)
	}
	if s.Property.Occupancy == models.OccupancyInvestment {
		raise(mins.Investment)
	}
	if s.Loan.Purpose == models.PurposeCashOutRefi {
		raise(mins.CashOut)
	}
	if s.Borrower.NumFinancedProperties > g.FinancedProperty.StandardMax {
		raise(mins.ExtendedPortfolio)
	}

	ctx.Set(CtxMinCreditScore, minRequired)

	eligible := credit >= minRequired
	var messages []string
	if eligible {
		messages = append(messages, fmt.Sprintf("Credit score %d meets minimum %d", credit, minRequired))
	} else {
		messages = append(messages, fmt.Sprintf("Credit score %d below minimum %d", credit, minRequired))
	}

	if credit < mins.ManualUWMin {
		ctx.Mark(CtxRequiresDU)
		messages = append(messages, fmt.Sprintf("Credit score %d below manual underwriting floor %d, automated approval required", credit, mins.ManualUWMin))
	}

	return models.RuleOutcome{
		RuleName: models.RuleCreditScore,
		Eligible: eligible,
		Messages: messages,
		Metrics: map[string]interface{}{
			"credit_score": credit,
			"min_required": minRequired,
		},
	}, nil
}

// monthlyPITIA approximates the full housing payment: amortized principal and
// interest, an escrow estimate for taxes and insurance, and the MI premium
// when coverage is in place.
func monthlyPITIA(s *models.Scenario, g *Guidelines, value float64) float64 {
	loan := s.Loan
	monthlyRate := loan.NoteRate / 12.0 / 100.0
	n := float64(loan.TermMonths)

	var pi float64
	if monthlyRate > 0 {
		factor := math.Pow(1+monthlyRate, n)
		pi = loan.LoanAmount * monthlyRate * factor / (factor - 1)
	} else {
		pi = loan.LoanAmount / n
	}

	escrow := value * g.DTILimits.EscrowAnnualPct / 12

	var mi float64
	if s.Financing.HasMI() && s.Financing.MICoveragePct != nil {
		annualRate := *s.Financing.MICoveragePct * g.MIRules.PremiumFactor
		mi = loan.LoanAmount * annualRate / 12
	}

	return pi + escrow + mi
}

// ruleDTI computes the front-end and back-end ratios from a single shared
// housing payment, so the front-end can never exceed the back-end, and
// classifies the scenario into an underwriting tier.
func ruleDTI(s *models.Scenario, g *Guidelines, ctx *EvalContext) (models.RuleOutcome, error) {
	pitia := monthlyPITIA(s, g, ctx.Float(CtxValue))
	income := s.Borrower.GrossMonthlyIncome

	fedti := pitia / income
	dti := (pitia + s.Borrower.OtherMonthlyDebts()) / income

	ctx.Set(CtxFEDTI, fedti)
	ctx.Set(CtxDTI, dti)
	ctx.Set(CtxMonthlyPITIA, pitia)

	limits := g.DTILimits
	eligible := dti <= limits.MaxDU

	var tier string
	var messages []string
	switch {
	case dti > limits.MaxDU:
		tier = DTITierDUOnly
		messages = append(messages, fmt.Sprintf("DTI %.2f%% exceeds automated approval max %.2f%%", dti*100, limits.MaxDU*100))
	case dti > limits.MaxManualCompensating:
		tier = DTITierDUOnly
		ctx.Mark(CtxRequiresDU)
		messages = append(messages, fmt.Sprintf("DTI %.2f%% requires automated approval (exceeds manual %.2f%%)", dti*100, limits.MaxManualCompensating*100))
	case dti > limits.MaxManualBase:
		tier = DTITierCompensating
		messages = append(messages, fmt.Sprintf("DTI %.2f%% requires compensating factors or automated approval", dti*100))
	default:
		tier = DTITierManualBase
		messages = append(messages, fmt.Sprintf("DTI %.2f%% within standard limits", dti*100))
	}
	ctx.Set(CtxDTITier, tier)

	return models.RuleOutcome{
		RuleName: models.RuleDTI,
		Eligible: eligible,
		Messages: messages,
		Metrics: map[string]interface{}{
			"DTI":           dti,
			"FEDTI":         fedti,
			"monthly_pitia": pitia,
			"max_dti_du":    limits.MaxDU,
			"tier":          tier,
		},
	}, nil
}
