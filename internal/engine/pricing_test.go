package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgage-scenario-engine/internal/models"
)

func TestBasePrice(t *testing.T) {
	g := DefaultGuidelines()

	tests := []struct {
		name     string
		noteRate float64
		want     float64
	}{
		{"exact match", 6.50, 101.00},
		{"interpolated between points", 6.60, 101.20},
		{"interpolated quarter", 6.375, 100.75},
		{"clamped below sheet", 5.00, 100.00},
		{"clamped above sheet", 8.00, 102.00},
		{"first point exact", 6.00, 100.00},
		{"last point exact", 7.00, 102.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := basePrice(g, DefaultRateSheetID, models.ChannelConforming, models.ProductTypeFixed, tt.noteRate)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestBasePrice_MissingSheet(t *testing.T) {
	g := DefaultGuidelines()

	_, err := basePrice(g, "nonexistent", models.ChannelConforming, models.ProductTypeFixed, 6.50)
	var gap *models.GuidelineGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "rate_sheets", gap.Table)
}

func TestBasePrice_MissingProductKey(t *testing.T) {
	g := DefaultGuidelines()

	_, err := basePrice(g, DefaultRateSheetID, models.ChannelJumbo, models.ProductTypeFixed, 6.50)
	var gap *models.GuidelineGapError
	require.ErrorAs(t, err, &gap)
}

func TestBasePrice_HighBalanceConcession(t *testing.T) {
	g := DefaultGuidelines()

	conf, err := basePrice(g, DefaultRateSheetID, models.ChannelConforming, models.ProductTypeFixed, 6.50)
	require.NoError(t, err)
	hb, err := basePrice(g, DefaultRateSheetID, models.ChannelHighBalance, models.ProductTypeFixed, 6.50)
	require.NoError(t, err)

	assert.InDelta(t, 0.375, conf-hb, 1e-9)
}

func TestProductKey(t *testing.T) {
	assert.Equal(t, "conforming_fixed", ProductKey(models.ChannelConforming, models.ProductTypeFixed))
	assert.Equal(t, "high_balance_arm", ProductKey(models.ChannelHighBalance, models.ProductTypeARM))
}
