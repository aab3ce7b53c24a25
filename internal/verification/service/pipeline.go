package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"estateproof/internal/verification/crossverify"
	"estateproof/internal/verification/market"
	"estateproof/internal/verification/models"
	"estateproof/internal/verification/queue"
	id "estateproof/pkg/domain"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/platform/audit"
	"estateproof/pkg/platform/sentinel"
	pstrings "estateproof/pkg/platform/strings"
)

// parkTimeout bounds the store writes that record a stage failure. The
// pipeline context may already be cancelled by then, so parking runs on its
// own deadline.
const parkTimeout = 5 * time.Second

// runPipeline drives one record through the automated stages. Stages are
// strictly sequential; the first failure parks the record and ends the run.
func (s *Service) runPipeline(ctx context.Context, propertyID id.PropertyID) {
	defer s.wg.Done()
	defer s.finishPipeline(propertyID)

	var adjustment market.Adjustment
	err := s.runStage(ctx, propertyID, models.PhaseOracleAnalysis, func(ctx context.Context) error {
		var err error
		adjustment, err = s.oracleStage(ctx, propertyID)
		return err
	})
	if err != nil {
		return
	}

	err = s.runStage(ctx, propertyID, models.PhaseRiskAssessment, func(ctx context.Context) error {
		return s.riskStage(ctx, propertyID, adjustment)
	})
	if err != nil {
		return
	}
}

// runStage wraps one stage with tracing, timing, the stage timeout, and the
// failure path. A failed stage marks the owning phase failed and leaves the
// record status at its last good value.
func (s *Service) runStage(ctx context.Context, propertyID id.PropertyID, stage models.PhaseName, fn func(ctx context.Context) error) error {
	s.track(ctx, audit.EventStageStarted, propertyID, string(stage))

	ctx, span := s.tracer.Start(ctx, "verification."+string(stage),
		trace.WithAttributes(attribute.String("property_id", propertyID.String())),
	)
	defer span.End()

	stageCtx, cancel := context.WithTimeout(ctx, s.config.StageTimeout)
	defer cancel()

	start := time.Now()
	err := s.recoverStage(stageCtx, fn)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage)+" failed")
		s.metrics.ObserveStage(string(stage), "failed", elapsed)
		s.parkRecord(propertyID, stage, err)
		s.track(ctx, audit.EventStageFailed, propertyID, string(stage))
		s.logger.ErrorContext(ctx, "verification stage failed",
			"property_id", propertyID,
			"stage", stage,
			"error", err,
		)
		return err
	}

	s.metrics.ObserveStage(string(stage), "completed", elapsed)
	s.track(ctx, audit.EventStageCompleted, propertyID, string(stage))
	return nil
}

// recoverStage turns a stage panic into an error so one record can never
// take down the orchestrator.
func (s *Service) recoverStage(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = dErrors.New(dErrors.CodeInternal, fmt.Sprintf("stage panicked: %v", r))
		}
	}()
	return fn(ctx)
}

// parkRecord marks the failed stage on the record. It runs on its own
// deadline because the pipeline context is typically already cancelled or
// expired when a stage fails.
func (s *Service) parkRecord(propertyID id.PropertyID, stage models.PhaseName, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), parkTimeout)
	defer cancel()

	unlock := s.locks.acquire(propertyID)
	defer unlock()

	record, err := s.store.Get(ctx, propertyID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load record for stage failure",
			"property_id", propertyID,
			"stage", stage,
			"error", err,
		)
		return
	}

	if err := record.FailPhase(stage, time.Now(), cause.Error()); err != nil {
		// Phase no longer in progress: a concurrent cancel already parked it.
		s.logger.DebugContext(ctx, "stage failure already recorded",
			"property_id", propertyID,
			"stage", stage,
		)
		return
	}
	record.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, record); err != nil {
		s.logger.WarnContext(ctx, "failed to persist stage failure",
			"property_id", propertyID,
			"stage", stage,
			"error", err,
		)
	}
}

// oracleStage analyzes the submitted documents, cross-verifies the set, and
// folds in the market adjustment. On success the record moves to risk
// assessment. The adjustment is returned for the risk stage so both stages
// describe the same market view.
func (s *Service) oracleStage(ctx context.Context, propertyID id.PropertyID) (market.Adjustment, error) {
	record, err := s.loadForStage(ctx, propertyID, models.StatusOracleAnalysis)
	if err != nil {
		return market.Adjustment{}, err
	}

	analyses, err := s.analyzer.Analyze(ctx, propertyID, record.DocumentRefs, record.Facts)
	if err != nil {
		return market.Adjustment{}, err
	}
	verified := crossverify.Verify(analyses)
	adjustment := s.adjuster.Adjust(propertyID, record.Facts.EstimatedValue)
	flags := pstrings.DedupeAndTrim(append(verified.Flags, adjustment.Flags...))

	oracle := &models.OracleResult{
		AnalysisID:          id.NewAnalysisID(),
		OverallConfidence:   verified.OverallConfidence,
		DocumentAnalyses:    analyses,
		EstimatedValue:      adjustment.AdjustedValue,
		RiskFlags:           flags,
		AutoApproveEligible: false,
		Timestamp:           time.Now(),
	}

	err = s.commitStage(ctx, propertyID, models.StatusOracleAnalysis, func(record *models.VerificationRecord, now time.Time) error {
		record.OracleResult = oracle
		if err := record.CompletePhase(models.PhaseOracleAnalysis, now,
			fmt.Sprintf("confidence %.2f across %d documents, %d risk flags",
				oracle.OverallConfidence, len(analyses), len(flags))); err != nil {
			return err
		}
		if err := record.BeginPhase(models.PhaseRiskAssessment, now); err != nil {
			return err
		}
		record.Status = models.StatusRiskAssessment
		return nil
	})
	if err != nil {
		return market.Adjustment{}, err
	}
	return adjustment, nil
}

// riskStage grades the analysis into a risk tier, runs compliance checks,
// and hands the record to the review queue with a priority derived from the
// declared value.
func (s *Service) riskStage(ctx context.Context, propertyID id.PropertyID, adjustment market.Adjustment) error {
	record, err := s.loadForStage(ctx, propertyID, models.StatusRiskAssessment)
	if err != nil {
		return err
	}
	if record.OracleResult == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "risk assessment requires an oracle result")
	}

	assessment, err := s.assessor.Assess(ctx, *record.OracleResult, record.Facts, adjustment)
	if err != nil {
		return err
	}
	priority := s.assessor.PriorityFor(record.Facts.EstimatedValue)

	var entry queue.Entry
	err = s.commitStage(ctx, propertyID, models.StatusRiskAssessment, func(record *models.VerificationRecord, now time.Time) error {
		record.RiskAssessment = assessment
		if err := record.CompletePhase(models.PhaseRiskAssessment, now,
			fmt.Sprintf("overall risk %s, priority %s", assessment.OverallRisk, priority)); err != nil {
			return err
		}
		if err := record.BeginPhase(models.PhaseManualReview, now); err != nil {
			return err
		}
		record.Status = models.StatusManualReview
		record.ManualReview = &models.ManualReview{
			ReviewID: id.NewReviewID(),
			Status:   models.ReviewPending,
		}
		record.ReviewerQueue = &models.QueueInfo{
			AssignedAt:             now,
			ExpectedCompletionTime: now.Add(s.config.ReviewSLA),
			Priority:               priority,
		}
		entry = queue.Entry{
			PropertyID:             propertyID,
			Priority:               priority,
			EnqueuedAt:             now,
			ExpectedCompletionTime: record.ReviewerQueue.ExpectedCompletionTime,
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.queue.Enqueue(entry)
	s.refreshQueueDepths()
	s.track(ctx, audit.EventVerificationQueued, propertyID, string(models.PhaseManualReview))
	s.logger.InfoContext(ctx, "verification queued for review",
		"property_id", propertyID,
		"priority", priority,
		"overall_risk", assessment.OverallRisk,
	)
	return nil
}

// loadForStage fetches the record and confirms it still awaits this stage.
func (s *Service) loadForStage(ctx context.Context, propertyID id.PropertyID, want models.Status) (*models.VerificationRecord, error) {
	record, err := s.store.Get(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("no verification found for property %s", propertyID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification record")
	}
	if record.Status != want {
		return nil, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("record is in status %s, stage expects %s", record.Status, want))
	}
	return record, nil
}

// commitStage re-loads the record under the per-property lock, re-validates
// the status, applies the mutation, and persists it. Re-validation catches a
// cancellation that landed between compute and commit.
func (s *Service) commitStage(ctx context.Context, propertyID id.PropertyID, want models.Status, mutate func(record *models.VerificationRecord, now time.Time) error) error {
	unlock := s.locks.acquire(propertyID)
	defer unlock()

	record, err := s.loadForStage(ctx, propertyID, want)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := mutate(record, now); err != nil {
		return err
	}
	record.UpdatedAt = now

	if err := s.store.Update(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist stage result")
	}
	return nil
}
