package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
)

func TestSeededAdjuster_Deterministic(t *testing.T) {
	adjuster := NewSeededAdjuster()

	first := adjuster.Adjust("prop-3001", 25_000_000)
	second := adjuster.Adjust("prop-3001", 25_000_000)

	assert.Equal(t, first, second)
}

func TestSeededAdjuster_DeviationBounded(t *testing.T) {
	adjuster := NewSeededAdjuster()

	for i := 0; i < 200; i++ {
		propertyID := id.PropertyID("prop-" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26)))
		adjustment := adjuster.Adjust(propertyID, 10_000_000)

		assert.LessOrEqual(t, math.Abs(adjustment.DeviationPercent), maxDeviationPercent)
		assert.GreaterOrEqual(t, adjustment.LiquidityScore, minLiquidityScore)
		assert.LessOrEqual(t, adjustment.LiquidityScore, maxLiquidityScore)

		wantValue := 10_000_000 * (1 + adjustment.DeviationPercent/100)
		assert.InDelta(t, wantValue, adjustment.AdjustedValue, 1)
	}
}

func TestSeededAdjuster_FlagMatchesMagnitude(t *testing.T) {
	adjuster := NewSeededAdjuster()

	flagged, unflagged := 0, 0
	for i := 0; i < 200; i++ {
		propertyID := id.PropertyID("flag-" + string(rune('a'+i%26)) + string(rune('0'+(i/26)%10)))
		adjustment := adjuster.Adjust(propertyID, 10_000_000)

		if math.Abs(adjustment.DeviationPercent) > flagDeviationPercent {
			require.Contains(t, adjustment.Flags, FlagPriceDeviation)
			flagged++
		} else {
			require.Empty(t, adjustment.Flags)
			unflagged++
		}
	}
	// The seed spread covers both sides of the threshold.
	assert.Positive(t, flagged)
	assert.Positive(t, unflagged)
}

func TestSeededAdjuster_TrendIsValidEnum(t *testing.T) {
	adjuster := NewSeededAdjuster()

	valid := map[models.MarketTrend]bool{
		models.TrendRising: true, models.TrendStable: true, models.TrendDeclining: true,
	}
	for i := 0; i < 50; i++ {
		adjustment := adjuster.Adjust(id.PropertyID("trend-"+string(rune('a'+i%26))), 1_000_000)
		assert.True(t, valid[adjustment.Trend])
	}
}

func TestAdjustment_Analysis(t *testing.T) {
	adjustment := Adjustment{
		AdjustedValue:    9_460_000,
		DeviationPercent: -5.4,
		LiquidityScore:   61.2,
		Trend:            models.TrendDeclining,
	}

	analysis := adjustment.Analysis()
	assert.Equal(t, -5.4, analysis.PriceDeviationPercent)
	assert.Equal(t, 61.2, analysis.LiquidityScore)
	assert.Equal(t, models.TrendDeclining, analysis.MarketTrend)
}
