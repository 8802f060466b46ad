package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRatioUp(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  float64
	}{
		{"exact whole percent", 0.80, 0.80},
		{"noise below hundredth truncates away", 0.80004, 0.80},
		{"above hundredth rounds up", 0.8001, 0.81},
		{"just over a limit", 0.9001, 0.91},
		{"exact three quarters", 0.75, 0.75},
		{"small fraction rounds up", 0.701, 0.71},
		{"zero", 0, 0},
		{"negative clamps to zero", -0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, roundRatioUp(tt.ratio), 1e-9)
		})
	}
}

func TestEvalContext_WriteOnce(t *testing.T) {
	ctx := NewEvalContext()
	ctx.Set("ltv", 0.75)

	assert.True(t, ctx.Has("ltv"))
	assert.InDelta(t, 0.75, ctx.Float("ltv"), 1e-9)

	assert.Panics(t, func() { ctx.Set("ltv", 0.80) })
}

func TestEvalContext_MarkIsIdempotent(t *testing.T) {
	ctx := NewEvalContext()

	assert.False(t, ctx.Bool("requires_du"))
	ctx.Mark("requires_du")
	ctx.Mark("requires_du")
	assert.True(t, ctx.Bool("requires_du"))
}

func TestEvalContext_MissingKeyDefaults(t *testing.T) {
	ctx := NewEvalContext()

	assert.False(t, ctx.Has("absent"))
	assert.Zero(t, ctx.Float("absent"))
	assert.False(t, ctx.Bool("absent"))
	assert.Empty(t, ctx.String("absent"))
	assert.Nil(t, ctx.Components("absent"))
	assert.Nil(t, ctx.Strings("absent"))
}

func TestUnitBands(t *testing.T) {
	assert.Equal(t, UnitBand1, unitBandLTV(1))
	assert.Equal(t, UnitBand2, unitBandLTV(2))
	assert.Equal(t, UnitBand34, unitBandLTV(3))
	assert.Equal(t, UnitBand34, unitBandLTV(4))

	assert.Equal(t, "1_unit", unitBandReserves(1))
	assert.Equal(t, "2_4_unit", unitBandReserves(2))
	assert.Equal(t, "2_4_unit", unitBandReserves(4))
}

func TestParseGuidelines_RoundTrip(t *testing.T) {
	g := DefaultGuidelines()
	require.NotEmpty(t, g.LLPA.BaseGrid)
	require.Len(t, g.LLPA.BaseGrid, 64)

	// Every grid cell must be reachable through a contiguous credit band
	// and LTV bucket, no overlaps at the band edges.
	for _, e := range g.LLPA.BaseGrid {
		assert.LessOrEqual(t, e.CreditMin, e.CreditMax)
		assert.Less(t, e.LTVMin, e.LTVMax)
	}
}
