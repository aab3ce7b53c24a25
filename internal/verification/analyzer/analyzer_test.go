package analyzer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
)

var fullFacts = models.PropertyFacts{
	Address:        "221B Linking Road, Khar West",
	OwnerName:      "A. Sharma",
	EstimatedValue: 18_000_000,
}

func TestHeuristicScorer_Deterministic(t *testing.T) {
	scorer := NewHeuristicScorer()
	ref := models.DocumentRef{Hash: "sha256:feedface", Type: models.DocumentDeed}

	first, err := scorer.Score(context.Background(), "prop-7001", ref, fullFacts)
	require.NoError(t, err)
	second, err := scorer.Score(context.Background(), "prop-7001", ref, fullFacts)
	require.NoError(t, err)

	assert.Equal(t, first, second, "replays must score identically")
}

func TestHeuristicScorer_DifferentPropertiesDiffer(t *testing.T) {
	scorer := NewHeuristicScorer()
	ref := models.DocumentRef{Hash: "sha256:feedface", Type: models.DocumentDeed}

	seen := make(map[float64]bool)
	for _, property := range []id.PropertyID{"prop-7001", "prop-7002", "prop-7003", "prop-7004", "prop-7005"} {
		analysis, err := scorer.Score(context.Background(), property, ref, fullFacts)
		require.NoError(t, err)
		seen[analysis.Confidence] = true
	}
	assert.Greater(t, len(seen), 1, "seed must incorporate property id")
}

func TestHeuristicScorer_ConfidenceBounds(t *testing.T) {
	scorer := NewHeuristicScorer()
	types := []models.DocumentType{
		models.DocumentDeed, models.DocumentPAN, models.DocumentAadhar,
		models.DocumentValuation, models.DocumentTaxReceipt, models.DocumentOther,
	}
	for _, docType := range types {
		for i := 0; i < 50; i++ {
			ref := models.DocumentRef{Hash: string(rune('a'+i%26)) + string(docType), Type: docType}
			analysis, err := scorer.Score(context.Background(), id.PropertyID("prop-bounds"), ref, fullFacts)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, analysis.Confidence, 0.0)
			assert.LessOrEqual(t, analysis.Confidence, 1.0)
		}
	}
}

func TestHeuristicScorer_HighConfidenceCarriesNoIssues(t *testing.T) {
	scorer := NewHeuristicScorer()
	for i := 0; i < 50; i++ {
		ref := models.DocumentRef{Hash: "deed-" + string(rune('a'+i%26)), Type: models.DocumentDeed}
		analysis, err := scorer.Score(context.Background(), "prop-issues", ref, fullFacts)
		require.NoError(t, err)
		if analysis.Confidence >= highConfidence {
			assert.Empty(t, analysis.Issues)
		} else {
			assert.NotEmpty(t, analysis.Issues, "low confidence must surface at least one issue")
		}
	}
}

func TestHeuristicScorer_OtherTypeAlwaysFlagsIssues(t *testing.T) {
	scorer := NewHeuristicScorer()
	ref := models.DocumentRef{Hash: "misc-001", Type: models.DocumentOther}

	analysis, err := scorer.Score(context.Background(), "prop-misc", ref, fullFacts)
	require.NoError(t, err)

	assert.Less(t, analysis.Confidence, highConfidence, "undeclared documents never reach high confidence")
	assert.NotEmpty(t, analysis.Issues)
}

func TestHeuristicScorer_CorroborationBonuses(t *testing.T) {
	scorer := NewHeuristicScorer()
	// PAN base plus bonuses and jitter stays below the 1.0 clamp, so the
	// bonus delta is exact.
	ref := models.DocumentRef{Hash: "pan-bonus", Type: models.DocumentPAN}
	bare := models.PropertyFacts{EstimatedValue: 5_000_000}

	with, err := scorer.Score(context.Background(), "prop-bonus", ref, fullFacts)
	require.NoError(t, err)
	without, err := scorer.Score(context.Background(), "prop-bonus", ref, bare)
	require.NoError(t, err)

	assert.InDelta(t, addressBonus+ownerBonus, with.Confidence-without.Confidence, 1e-9,
		"facts corroboration adds the documented bonuses")
}

func TestHeuristicScorer_AddressExtraction(t *testing.T) {
	scorer := NewHeuristicScorer()

	deed, err := scorer.Score(context.Background(), "prop-extract",
		models.DocumentRef{Hash: "d1", Type: models.DocumentDeed}, fullFacts)
	require.NoError(t, err)
	assert.Equal(t, fullFacts.Address, deed.ExtractedData.PropertyAddress)
	assert.Equal(t, fullFacts.OwnerName, deed.ExtractedData.OwnerName)
	assert.NotEmpty(t, deed.ExtractedData.RegistrationNumber)
	assert.True(t, deed.HasResolvableAddress())

	pan, err := scorer.Score(context.Background(), "prop-extract",
		models.DocumentRef{Hash: "p1", Type: models.DocumentPAN}, fullFacts)
	require.NoError(t, err)
	assert.Empty(t, pan.ExtractedData.PropertyAddress, "identity documents carry no property address")
	assert.Equal(t, fullFacts.OwnerName, pan.ExtractedData.OwnerName)
	assert.False(t, pan.HasResolvableAddress())

	valuation, err := scorer.Score(context.Background(), "prop-extract",
		models.DocumentRef{Hash: "v1", Type: models.DocumentValuation}, fullFacts)
	require.NoError(t, err)
	assert.InDelta(t, fullFacts.EstimatedValue, valuation.ExtractedData.PropertyValue,
		fullFacts.EstimatedValue*0.05, "valuer figure stays near the declaration")
}

type stubScorer struct {
	calls  atomic.Int32
	failOn string
}

func (s *stubScorer) Score(_ context.Context, _ id.PropertyID, ref models.DocumentRef, _ models.PropertyFacts) (models.DocumentAnalysis, error) {
	s.calls.Add(1)
	if s.failOn != "" && ref.Hash == s.failOn {
		return models.DocumentAnalysis{}, errors.New("verifier offline")
	}
	return models.DocumentAnalysis{DocumentType: ref.Type, Confidence: 0.9, Issues: []string{}}, nil
}

func TestAnalyze_PreservesSubmissionOrder(t *testing.T) {
	a, err := New(&stubScorer{}, 2)
	require.NoError(t, err)

	refs := []models.DocumentRef{
		{Hash: "h1", Type: models.DocumentDeed},
		{Hash: "h2", Type: models.DocumentPAN},
		{Hash: "h3", Type: models.DocumentValuation},
	}
	analyses, err := a.Analyze(context.Background(), "prop-order", refs, fullFacts)
	require.NoError(t, err)
	require.Len(t, analyses, 3)
	assert.Equal(t, models.DocumentDeed, analyses[0].DocumentType)
	assert.Equal(t, models.DocumentPAN, analyses[1].DocumentType)
	assert.Equal(t, models.DocumentValuation, analyses[2].DocumentType)
}

func TestAnalyze_ScorerFailurePropagates(t *testing.T) {
	a, err := New(&stubScorer{failOn: "h2"}, 1)
	require.NoError(t, err)

	refs := []models.DocumentRef{
		{Hash: "h1", Type: models.DocumentDeed},
		{Hash: "h2", Type: models.DocumentPAN},
	}
	_, err = a.Analyze(context.Background(), "prop-fail", refs, fullFacts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "h2")
}

func TestAnalyze_EmptyDocumentSetRejected(t *testing.T) {
	a, err := New(&stubScorer{}, 2)
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), "prop-empty", nil, fullFacts)
	require.Error(t, err)
}

func TestAnalyze_CancelledContextStopsWork(t *testing.T) {
	a, err := New(&stubScorer{}, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	refs := []models.DocumentRef{{Hash: "h1", Type: models.DocumentDeed}}
	_, err = a.Analyze(ctx, "prop-cancel", refs, fullFacts)
	require.Error(t, err)
}

func TestNew_RequiresScorer(t *testing.T) {
	_, err := New(nil, 2)
	require.Error(t, err)
}
