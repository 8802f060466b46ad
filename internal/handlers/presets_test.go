package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgage-scenario-engine/internal/engine"
	"mortgage-scenario-engine/internal/models"
)

func TestPresetScenarios_AllEvaluate(t *testing.T) {
	eng := engine.New(nil)

	for name, scenario := range PresetScenarios() {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, models.ValidateScenario(scenario))

			result, err := eng.Evaluate(scenario)
			require.NoError(t, err)
			require.NotNil(t, result.Pricing)
			assert.Len(t, result.RuleResults, 16)
		})
	}
}

func TestPresetScenarios_StrongPurchase(t *testing.T) {
	scenario, ok := PresetScenarios()["strong_purchase"]
	require.True(t, ok)

	result, err := engine.New(nil).Evaluate(scenario)
	require.NoError(t, err)

	assert.True(t, result.EligibilityOverall)
	assert.InDelta(t, 0.50, result.Pricing.LLPATotalBps, 1e-9)
	assert.InDelta(t, 100.995, result.Pricing.NetPrice, 1e-9)
}

func TestPresetScenarios_FirstTimeBuyerWaiver(t *testing.T) {
	scenario, ok := PresetScenarios()["high_ltv_first_time_buyer"]
	require.True(t, ok)

	result, err := engine.New(nil).Evaluate(scenario)
	require.NoError(t, err)

	assert.True(t, result.EligibilityOverall)
	assert.Contains(t, result.Pricing.WaiversApplied, "fthb_ami_waiver")
	// Waiver zeroes the stack, counseling credit still applies
	assert.InDelta(t, -0.125, result.Pricing.LLPATotalBps, 1e-9)
}

func TestPresetScenarios_InvestorCashOut(t *testing.T) {
	scenario, ok := PresetScenarios()["investor_cash_out"]
	require.True(t, ok)

	result, err := engine.New(nil).Evaluate(scenario)
	require.NoError(t, err)

	assert.True(t, result.Flags["CashOut"])
	assert.True(t, result.Flags["InvestorLoan"])
}
