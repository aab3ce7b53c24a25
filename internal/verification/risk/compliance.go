package risk

import (
	"context"
	"fmt"

	"estateproof/internal/verification/models"
)

// Compliance check names, in the order they are always reported.
const (
	CheckKYC        = "KYC Verification"
	CheckLegalTitle = "Legal Title Verification"
	CheckRegulatory = "Regulatory Compliance"
)

// ComplianceChecker runs the fixed compliance battery for a submission.
// Implementations return exactly the three named checks in declared order.
type ComplianceChecker interface {
	Check(ctx context.Context, facts models.PropertyFacts, analyses []models.DocumentAnalysis) ([]models.ComplianceCheck, error)
}

// Verdict thresholds for the default checker.
const (
	titleConfidenceFloor = 0.7
	maxTotalIssues       = 3
)

// DocumentChecker is the default ComplianceChecker. Verdicts derive purely
// from the submitted facts and document analyses, so a replay produces the
// same battery.
//
// KYC passes when the declared owner is corroborated by at least one
// document. Legal title passes when a deed scored at or above the title
// confidence floor. Regulatory passes while the total issue count across
// all documents stays within tolerance.
type DocumentChecker struct{}

// NewDocumentChecker returns the default deterministic checker.
func NewDocumentChecker() *DocumentChecker {
	return &DocumentChecker{}
}

func (c *DocumentChecker) Check(_ context.Context, facts models.PropertyFacts, analyses []models.DocumentAnalysis) ([]models.ComplianceCheck, error) {
	return []models.ComplianceCheck{
		c.kyc(facts, analyses),
		c.legalTitle(analyses),
		c.regulatory(analyses),
	}, nil
}

func (c *DocumentChecker) kyc(facts models.PropertyFacts, analyses []models.DocumentAnalysis) models.ComplianceCheck {
	check := models.ComplianceCheck{Check: CheckKYC}
	if facts.OwnerName == "" {
		check.Details = "no owner declared"
		return check
	}
	for _, analysis := range analyses {
		if analysis.ExtractedData.OwnerName == facts.OwnerName {
			check.Passed = true
			check.Details = "owner corroborated by " + string(analysis.DocumentType)
			return check
		}
	}
	check.Details = "declared owner not found in any document"
	return check
}

func (c *DocumentChecker) legalTitle(analyses []models.DocumentAnalysis) models.ComplianceCheck {
	check := models.ComplianceCheck{Check: CheckLegalTitle}
	for _, analysis := range analyses {
		if analysis.DocumentType != models.DocumentDeed {
			continue
		}
		if analysis.Confidence >= titleConfidenceFloor {
			check.Passed = true
			check.Details = fmt.Sprintf("deed scored %.2f", analysis.Confidence)
			return check
		}
		check.Details = fmt.Sprintf("deed below title confidence floor (%.2f)", analysis.Confidence)
	}
	if check.Details == "" {
		check.Details = "no deed submitted"
	}
	return check
}

func (c *DocumentChecker) regulatory(analyses []models.DocumentAnalysis) models.ComplianceCheck {
	check := models.ComplianceCheck{Check: CheckRegulatory}
	total := 0
	for _, analysis := range analyses {
		total += len(analysis.Issues)
	}
	if total <= maxTotalIssues {
		check.Passed = true
	}
	check.Details = fmt.Sprintf("%d open issues across %d documents", total, len(analyses))
	return check
}
