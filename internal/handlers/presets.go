package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"mortgage-scenario-engine/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

// PresetScenarios returns the named example scenarios exposed by the API.
// They double as quick smoke inputs for local testing.
func PresetScenarios() map[string]*models.Scenario {
	return map[string]*models.Scenario{
		"strong_purchase": {
			Borrower: models.Borrower{
				CreditScore:           760,
				GrossMonthlyIncome:    12000,
				MonthlyDebts:          map[string]float64{"auto": 450, "cards": 200},
				NumFinancedProperties: 1,
				OwnsPropertyLast3Yrs:  true,
				LiquidAssets:          90000,
				DocType:               models.DocTypeFull,
			},
			Property: models.Property{
				Occupancy:       models.OccupancyPrimary,
				PropertyType:    models.PropertyTypeSFR,
				Units:           1,
				PurchasePrice:   floatPtr(400000),
				AppraisedValue:  405000,
				ConditionRating: models.ConditionC2,
			},
			Loan: models.LoanTerms{
				LoanAmount:  300000,
				NoteRate:    6.50,
				TermMonths:  360,
				Purpose:     models.PurposePurchase,
				ProductType: models.ProductTypeFixed,
			},
		},
		"high_ltv_first_time_buyer": {
			Borrower: models.Borrower{
				CreditScore:           680,
				GrossMonthlyIncome:    7500,
				MonthlyDebts:          map[string]float64{"student": 350},
				NumFinancedProperties: 1,
				FirstTimeHomebuyer:    true,
				LiquidAssets:          25000,
				DocType:               models.DocTypeFull,
				AMIRatio:              floatPtr(0.85),
				CounselingCompleted:   true,
			},
			Property: models.Property{
				Occupancy:       models.OccupancyPrimary,
				PropertyType:    models.PropertyTypeCondo,
				Units:           1,
				PurchasePrice:   floatPtr(300000),
				AppraisedValue:  300000,
				ConditionRating: models.ConditionC3,
			},
			Loan: models.LoanTerms{
				LoanAmount:  285000,
				NoteRate:    6.75,
				TermMonths:  360,
				Purpose:     models.PurposePurchase,
				ProductType: models.ProductTypeFixed,
			},
			Financing: models.Financing{
				MIType:        models.MITypeBorrowerPaidMonthly,
				MICoveragePct: floatPtr(0.30),
			},
		},
		"investor_cash_out": {
			Borrower: models.Borrower{
				CreditScore:           720,
				GrossMonthlyIncome:    15000,
				MonthlyDebts:          map[string]float64{"mortgages": 2800},
				NumFinancedProperties: 3,
				OwnsPropertyLast3Yrs:  true,
				OtherFinancedBalances: 550000,
				LiquidAssets:          140000,
				DocType:               models.DocTypeFull,
			},
			Property: models.Property{
				Occupancy:       models.OccupancyInvestment,
				PropertyType:    models.PropertyTypeSFR,
				Units:           1,
				AppraisedValue:  450000,
				ConditionRating: models.ConditionC3,
			},
			Loan: models.LoanTerms{
				LoanAmount:  315000,
				NoteRate:    7.00,
				TermMonths:  360,
				Purpose:     models.PurposeCashOutRefi,
				ProductType: models.ProductTypeFixed,
			},
		},
	}
}

// PresetsHandler serves the preset scenario catalog.
type PresetsHandler struct{}

// NewPresetsHandler creates a new presets handler.
func NewPresetsHandler() *PresetsHandler {
	return &PresetsHandler{}
}

// Handle processes preset catalog requests.
func (h *PresetsHandler) Handle(_ context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := map[string]string{
		"Access-Control-Allow-Origin": "*",
		"Content-Type":                "application/json",
	}

	if request.HTTPMethod == "OPTIONS" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, nil
	}

	body, _ := json.Marshal(PresetScenarios())

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       string(body),
	}, nil
}
