// Package market derives an adjusted valuation and market context from the
// declared property value.
package market

import (
	"hash/fnv"
	"math"

	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
)

// FlagPriceDeviation is raised when the market adjustment magnitude
// exceeds the deviation threshold.
const FlagPriceDeviation = "significant market price deviation detected"

// Adjustment bounds for the seeded default.
const (
	maxDeviationPercent  = 6.0
	flagDeviationPercent = 5.0
	minLiquidityScore    = 20.0
	maxLiquidityScore    = 95.0
)

// Adjustment is the outcome of one market evaluation.
type Adjustment struct {
	AdjustedValue    float64
	DeviationPercent float64
	LiquidityScore   float64
	Trend            models.MarketTrend
	Flags            []string
}

// Analysis converts the adjustment into the informational market block of
// the risk assessment.
func (a Adjustment) Analysis() models.MarketAnalysis {
	return models.MarketAnalysis{
		PriceDeviationPercent: a.DeviationPercent,
		LiquidityScore:        a.LiquidityScore,
		MarketTrend:           a.Trend,
	}
}

// Adjuster evaluates a declared value against the market. Implementations
// must be deterministic for a given (propertyID, declaredValue) pair.
type Adjuster interface {
	Adjust(propertyID id.PropertyID, declaredValue float64) Adjustment
}

// SeededAdjuster is the default Adjuster. Without a live market feed every
// figure derives from an FNV hash of the property id, so replays and tests
// see the same numbers.
type SeededAdjuster struct{}

// NewSeededAdjuster returns the default deterministic adjuster.
func NewSeededAdjuster() *SeededAdjuster {
	return &SeededAdjuster{}
}

func (s *SeededAdjuster) Adjust(propertyID id.PropertyID, declaredValue float64) Adjustment {
	seed := marketSeed(propertyID)

	deviation := spread(seed, maxDeviationPercent)
	adjustment := Adjustment{
		AdjustedValue:    declaredValue * (1 + deviation/100),
		DeviationPercent: deviation,
		LiquidityScore:   scale(seed>>16, minLiquidityScore, maxLiquidityScore),
		Trend:            trendFor(seed >> 32),
		Flags:            []string{},
	}
	if math.Abs(deviation) > flagDeviationPercent {
		adjustment.Flags = append(adjustment.Flags, FlagPriceDeviation)
	}
	return adjustment
}

func marketSeed(propertyID id.PropertyID) uint64 {
	h := fnv.New64a()
	h.Write([]byte("market"))
	h.Write([]byte{0})
	h.Write([]byte(propertyID))
	return h.Sum64()
}

// spread maps a seed into [-span, +span].
func spread(seed uint64, span float64) float64 {
	unit := float64(seed%10_000) / 9_999
	return unit*2*span - span
}

// scale maps a seed into [lo, hi].
func scale(seed uint64, lo, hi float64) float64 {
	unit := float64(seed%10_000) / 9_999
	return lo + unit*(hi-lo)
}

func trendFor(seed uint64) models.MarketTrend {
	switch seed % 3 {
	case 0:
		return models.TrendRising
	case 1:
		return models.TrendStable
	default:
		return models.TrendDeclining
	}
}
