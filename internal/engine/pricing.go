package engine

import (
	"fmt"

	"mortgage-scenario-engine/internal/models"
)

// DefaultRateSheetID is the sheet used when a scenario does not name one.
const DefaultRateSheetID = "standard"

// basePrice looks up the listed price for a note rate on the sheet for the
// scenario's channel and product. Rates between listed points interpolate
// linearly; rates beyond either end clamp to the endpoint price.
func basePrice(g *Guidelines, sheetID string, channel models.Channel, product models.ProductType, noteRate float64) (float64, error) {
	sheet, ok := g.RateSheets[sheetID]
	if !ok {
		return 0, models.NewGuidelineGap("rate_sheets", sheetID)
	}
	key := ProductKey(channel, product)
	points, ok := sheet[key]
	if !ok || len(points) == 0 {
		return 0, models.NewGuidelineGap("rate_sheets."+sheetID, key)
	}

	if noteRate <= points[0].Rate {
		return points[0].Price, nil
	}
	last := points[len(points)-1]
	if noteRate >= last.Rate {
		return last.Price, nil
	}
	for i := 1; i < len(points); i++ {
		lo, hi := points[i-1], points[i]
		if noteRate == hi.Rate {
			return hi.Price, nil
		}
		if noteRate < hi.Rate {
			frac := (noteRate - lo.Rate) / (hi.Rate - lo.Rate)
			return lo.Price + frac*(hi.Price-lo.Price), nil
		}
	}
	return last.Price, nil
}

// price converts the adjustment stack into a final executable price. One
// basis point of adjustment moves the price by 0.01.
func price(s *models.Scenario, g *Guidelines, ctx *EvalContext) (*models.PricingResult, error) {
	channel := models.Channel(ctx.String(CtxChannel))
	if channel == "" {
		channel = s.Loan.Channel
	}
	if channel == "" || channel == models.ChannelJumbo {
		channel = models.ChannelConforming
	}

	sheetID := s.Financing.RateSheetID
	if sheetID == "" {
		sheetID = DefaultRateSheetID
	}

	base, err := basePrice(g, sheetID, channel, s.Loan.ProductType, s.Loan.NoteRate)
	if err != nil {
		return nil, err
	}

	totalBps := ctx.Float(CtxLLPATotalBps)
	result := &models.PricingResult{
		BaseRate:       s.Loan.NoteRate,
		BasePrice:      base,
		LLPATotalBps:   totalBps,
		Components:     ctx.Components(CtxLLPAComponents),
		WaiversApplied: ctx.Strings(CtxLLPAWaivers),
		NetPrice:       base - totalBps/100.0,
	}

	if ctx.Bool(CtxIsHPML) {
		result.Notes = append(result.Notes, "HPML: escrow account and appraisal requirements apply")
	}
	if ctx.Bool(CtxEducationRequired) {
		result.Notes = append(result.Notes, "Homeownership education required before closing")
	}
	if len(result.Components) > 0 {
		result.Notes = append(result.Notes, fmt.Sprintf("%d price adjustment components applied", len(result.Components)))
	}

	return result, nil
}
