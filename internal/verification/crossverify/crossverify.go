// Package crossverify aggregates per-document analyses into an overall
// confidence figure and the documentation-level risk flags.
package crossverify

import (
	"estateproof/internal/verification/models"
)

// Risk flags raised by cross-verification. Flags are additive within a
// run and never removed once raised.
const (
	FlagLowConfidence     = "low overall document confidence"
	FlagInsufficientDocs  = "insufficient documentation"
	FlagAddressIncomplete = "address verification incomplete"
)

// Thresholds for the documentation checks.
const (
	minMeanConfidence = 0.8
	minDocumentCount  = 3
	minAddressDocs    = 2
)

// Result is the aggregate outcome of one cross-verification pass.
type Result struct {
	OverallConfidence float64
	Flags             []string
}

// Verify computes the arithmetic mean of per-document confidences and
// checks the document set as a whole. Flag order is fixed so results are
// comparable across runs.
func Verify(analyses []models.DocumentAnalysis) Result {
	result := Result{Flags: []string{}}
	if len(analyses) == 0 {
		result.Flags = append(result.Flags, FlagLowConfidence, FlagInsufficientDocs, FlagAddressIncomplete)
		return result
	}

	var sum float64
	addressDocs := 0
	for _, analysis := range analyses {
		sum += analysis.Confidence
		if analysis.HasResolvableAddress() {
			addressDocs++
		}
	}
	result.OverallConfidence = sum / float64(len(analyses))

	if result.OverallConfidence < minMeanConfidence {
		result.Flags = append(result.Flags, FlagLowConfidence)
	}
	if len(analyses) < minDocumentCount {
		result.Flags = append(result.Flags, FlagInsufficientDocs)
	}
	if addressDocs < minAddressDocs {
		result.Flags = append(result.Flags, FlagAddressIncomplete)
	}
	return result
}
