// Package analyzer scores submitted documents. It fans per-document work
// out to a bounded pool and aggregates results in submission order.
package analyzer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
	dErrors "estateproof/pkg/domain-errors"
)

const defaultParallelism = 3

// Analyzer runs one scoring pass over a document set.
type Analyzer struct {
	scorer      Scorer
	parallelism int
}

// New builds an analyzer around the given scorer. parallelism bounds the
// number of documents scored concurrently; values below one fall back to
// the default.
func New(scorer Scorer, parallelism int) (*Analyzer, error) {
	if scorer == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "analyzer requires a scorer")
	}
	if parallelism < 1 {
		parallelism = defaultParallelism
	}
	return &Analyzer{scorer: scorer, parallelism: parallelism}, nil
}

// Analyze scores every document and returns analyses in the order the
// documents were submitted. The first scorer failure cancels outstanding
// work and is returned to the caller.
func (a *Analyzer) Analyze(ctx context.Context, propertyID id.PropertyID, refs []models.DocumentRef, facts models.PropertyFacts) ([]models.DocumentAnalysis, error) {
	if len(refs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no documents to analyze")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)

	analyses := make([]models.DocumentAnalysis, len(refs))
	for i, ref := range refs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			analysis, err := a.scorer.Score(ctx, propertyID, ref, facts)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "scoring document "+ref.Hash)
			}
			analyses[i] = analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return analyses, nil
}
