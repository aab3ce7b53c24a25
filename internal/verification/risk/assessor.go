// Package risk computes the overall risk picture for an analyzed
// submission: tier, named factors, compliance battery, and market context.
package risk

import (
	"context"
	"fmt"

	"estateproof/internal/verification/config"
	"estateproof/internal/verification/market"
	"estateproof/internal/verification/models"
	dErrors "estateproof/pkg/domain-errors"
)

// Tier thresholds. Each bucket requires strictly greater confidence than
// its floor; ties resolve toward the higher-risk bucket.
const (
	lowConfidenceFloor    = 0.9
	mediumConfidenceFloor = 0.8
	highConfidenceFloor   = 0.7

	mediumMaxFlags = 2
	highMaxFlags   = 4
)

// Factor categories.
const (
	FactorDocumentation = "Documentation"
	FactorValue         = "Value"
)

// TierFor buckets a confidence/flag pair into a risk tier.
func TierFor(confidence float64, flagCount int) models.RiskTier {
	switch {
	case confidence > lowConfidenceFloor && flagCount == 0:
		return models.RiskLow
	case confidence > mediumConfidenceFloor && flagCount <= mediumMaxFlags:
		return models.RiskMedium
	case confidence > highConfidenceFloor && flagCount <= highMaxFlags:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

// Assessor assembles risk assessments from oracle output.
type Assessor struct {
	checker ComplianceChecker
	cfg     *config.Config
}

// New builds an assessor. The checker is required; a nil config takes
// defaults.
func New(checker ComplianceChecker, cfg *config.Config) (*Assessor, error) {
	if checker == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "assessor requires a compliance checker")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Assessor{checker: checker, cfg: cfg.Normalize()}, nil
}

// Assess derives the full risk assessment for one analyzed submission.
// The market adjustment is informational context; it never changes the
// tier on its own.
func (a *Assessor) Assess(ctx context.Context, oracle models.OracleResult, facts models.PropertyFacts, adjustment market.Adjustment) (*models.RiskAssessment, error) {
	checks, err := a.checker.Check(ctx, facts, oracle.DocumentAnalyses)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "compliance battery failed")
	}

	assessment := &models.RiskAssessment{
		OverallRisk:      TierFor(oracle.OverallConfidence, len(oracle.RiskFlags)),
		RiskFactors:      a.factors(oracle, facts),
		ComplianceChecks: checks,
		MarketAnalysis:   adjustment.Analysis(),
	}
	return assessment, nil
}

func (a *Assessor) factors(oracle models.OracleResult, facts models.PropertyFacts) []models.RiskFactor {
	factors := []models.RiskFactor{}
	if oracle.OverallConfidence < mediumConfidenceFloor {
		factors = append(factors, models.RiskFactor{
			Category: FactorDocumentation,
			Severity: models.SeverityHigh,
			Description: fmt.Sprintf("overall document confidence %.2f below %.2f",
				oracle.OverallConfidence, mediumConfidenceFloor),
		})
	}
	if facts.EstimatedValue > a.cfg.HighValueThreshold {
		factors = append(factors, models.RiskFactor{
			Category: FactorValue,
			Severity: models.SeverityMedium,
			Description: fmt.Sprintf("declared value %.0f above review threshold %.0f",
				facts.EstimatedValue, a.cfg.HighValueThreshold),
		})
	}
	return factors
}

// PriorityFor maps a declared value to a queue priority. Boundaries are
// exact: values at the urgent threshold queue as urgent, and only values
// strictly above the critical threshold queue as critical.
func (a *Assessor) PriorityFor(declaredValue float64) models.Priority {
	switch {
	case declaredValue > a.cfg.CriticalValueThreshold:
		return models.PriorityCritical
	case declaredValue >= a.cfg.UrgentValueThreshold:
		return models.PriorityUrgent
	default:
		return models.PriorityStandard
	}
}
