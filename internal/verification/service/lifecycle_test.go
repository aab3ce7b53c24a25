package service

import (
	"context"
	"time"

	"estateproof/internal/verification/config"
	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/platform/audit"
)

// seedQueuedRecord writes a record already awaiting review straight into the
// store, bypassing the pipeline. Used to model state left by a previous run.
func (s *ServiceSuite) seedQueuedRecord(propertyID string, priority models.Priority, at time.Time) *models.VerificationRecord {
	s.T().Helper()
	record := models.NewRecord(id.PropertyID(propertyID), stapleRefs(), fullFacts(9_000_000), at)
	for _, name := range []models.PhaseName{models.PhaseDocumentUpload, models.PhaseOracleAnalysis, models.PhaseRiskAssessment} {
		s.Require().NoError(record.BeginPhase(name, at))
		s.Require().NoError(record.CompletePhase(name, at, ""))
	}
	s.Require().NoError(record.BeginPhase(models.PhaseManualReview, at))
	record.Status = models.StatusManualReview
	record.ManualReview = &models.ManualReview{ReviewID: id.NewReviewID(), Status: models.ReviewPending}
	record.ReviewerQueue = &models.QueueInfo{
		AssignedAt:             at,
		ExpectedCompletionTime: at.Add(models.ReviewSLA),
		Priority:               priority,
	}
	record.UpdatedAt = at
	s.Require().NoError(s.store.Create(context.Background(), record))
	return record
}

// seedInFlightRecord writes a record stuck mid-analysis into the store, as a
// crash between stage start and commit would leave it.
func (s *ServiceSuite) seedInFlightRecord(propertyID string, at time.Time) *models.VerificationRecord {
	s.T().Helper()
	record := models.NewRecord(id.PropertyID(propertyID), stapleRefs(), fullFacts(9_000_000), at)
	s.Require().NoError(record.BeginPhase(models.PhaseDocumentUpload, at))
	s.Require().NoError(record.CompletePhase(models.PhaseDocumentUpload, at, ""))
	s.Require().NoError(record.BeginPhase(models.PhaseOracleAnalysis, at))
	record.Status = models.StatusOracleAnalysis
	record.UpdatedAt = at
	s.Require().NoError(s.store.Create(context.Background(), record))
	return record
}

// =============================================================================
// Cancel Tests
// =============================================================================

func (s *ServiceSuite) TestCancel_MidPipeline() {
	gate := newGateScorer()
	svc := s.newService(WithScorer(gate))
	defer func() {
		close(gate.release)
		svc.Close(context.Background())
	}()

	_, err := svc.Submit(context.Background(), "PROP-C-1", stapleRefs(), fullFacts(9_000_000))
	s.Require().NoError(err)
	<-gate.started

	s.Require().NoError(svc.Cancel(context.Background(), "PROP-C-1"))

	view, err := svc.GetStatus(context.Background(), "PROP-C-1")
	s.Require().NoError(err)
	s.Equal(models.StatusOracleAnalysis, view.Record.Status)
	phase := view.Record.Phase(models.PhaseOracleAnalysis)
	s.Equal(models.PhaseFailed, phase.Status)
	s.Equal("cancelled by submitter", phase.Details)
	s.Contains(s.compliance.actions(), string(audit.EventVerificationCancelled))

	_, err = svc.Decide(reviewerContext(id.NewReviewerID()), "PROP-C-1", Decision{Approved: true})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestCancel_QueuedRecordIsRefused() {
	s.submitAndQueue("PROP-C-2", 9_000_000)

	err := s.service.Cancel(context.Background(), "PROP-C-2")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	view, err := s.service.GetStatus(context.Background(), "PROP-C-2")
	s.Require().NoError(err)
	s.Equal(models.StatusManualReview, view.Record.Status)
}

func (s *ServiceSuite) TestCancel_DecidedRecordIsRefused() {
	s.submitAndQueue("PROP-C-3", 9_000_000)
	_, err := s.service.Decide(reviewerContext(id.NewReviewerID()), "PROP-C-3", Decision{Approved: true})
	s.Require().NoError(err)

	err = s.service.Cancel(context.Background(), "PROP-C-3")
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyDecided))
}

func (s *ServiceSuite) TestCancel_UnknownRecord() {
	err := s.service.Cancel(context.Background(), "PROP-C-MISSING")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =============================================================================
// Queue Listing Tests
// =============================================================================

func (s *ServiceSuite) TestListQueue_PriorityThenAge() {
	s.submitAndQueue("PROP-Q-STD", 2_000_000)
	s.submitAndQueue("PROP-Q-URG", 15_000_000)
	s.submitAndQueue("PROP-Q-CRIT", 60_000_000)

	entries := s.service.ListQueue(context.Background())
	s.Require().Len(entries, 3)
	s.Equal(id.PropertyID("PROP-Q-CRIT"), entries[0].PropertyID)
	s.Equal(models.PriorityCritical, entries[0].Priority)
	s.Equal(id.PropertyID("PROP-Q-URG"), entries[1].PropertyID)
	s.Equal(models.PriorityUrgent, entries[1].Priority)
	s.Equal(id.PropertyID("PROP-Q-STD"), entries[2].PropertyID)
	s.Equal(models.PriorityStandard, entries[2].Priority)
}

// =============================================================================
// Shutdown Tests
// =============================================================================

func (s *ServiceSuite) TestClose_DrainsPipelines() {
	ctx := context.Background()
	for _, propertyID := range []string{"PROP-X-1", "PROP-X-2", "PROP-X-3"} {
		_, err := s.service.Submit(ctx, propertyID, stapleRefs(), fullFacts(9_000_000))
		s.Require().NoError(err)
	}

	s.Require().NoError(s.service.Close(ctx))

	// Every pipeline finished before Close returned.
	for _, propertyID := range []string{"PROP-X-1", "PROP-X-2", "PROP-X-3"} {
		view, err := s.service.GetStatus(ctx, propertyID)
		s.Require().NoError(err)
		s.Equal(models.StatusManualReview, view.Record.Status)
	}

	_, err := s.service.Submit(ctx, "PROP-X-LATE", stapleRefs(), fullFacts(9_000_000))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestClose_CancelsStuckWorkAfterDrainTimeout() {
	gate := newGateScorer()
	svc := s.newService(
		WithScorer(gate),
		WithConfig(&config.Config{DrainTimeout: 50 * time.Millisecond}),
	)

	_, err := svc.Submit(context.Background(), "PROP-X-4", stapleRefs(), fullFacts(9_000_000))
	s.Require().NoError(err)
	<-gate.started

	// The gate never opens; Close must cut the stage loose instead.
	s.Require().NoError(svc.Close(context.Background()))

	parked := s.waitForPhaseStatus(svc, "PROP-X-4", models.PhaseOracleAnalysis, models.PhaseFailed)
	s.Equal(models.StatusOracleAnalysis, parked.Status)
	s.Contains(parked.Phase(models.PhaseOracleAnalysis).Details, "context canceled")
}

func (s *ServiceSuite) TestClose_IsIdempotent() {
	s.Require().NoError(s.service.Close(context.Background()))
	s.Require().NoError(s.service.Close(context.Background()))
}

// =============================================================================
// Rehydrate Tests
// =============================================================================

func (s *ServiceSuite) TestRehydrate() {
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	s.seedQueuedRecord("PROP-H-URG", models.PriorityUrgent, base)
	s.seedQueuedRecord("PROP-H-STD", models.PriorityStandard, base.Add(time.Minute))
	s.seedQueuedRecord("PROP-H-CRIT", models.PriorityCritical, base.Add(2*time.Minute))
	s.seedInFlightRecord("PROP-H-STUCK", base.Add(3*time.Minute))

	svc := s.newService()
	defer svc.Close(context.Background())
	s.Require().NoError(svc.Rehydrate(context.Background()))

	entries := svc.ListQueue(context.Background())
	s.Require().Len(entries, 3)
	s.Equal(id.PropertyID("PROP-H-CRIT"), entries[0].PropertyID)
	s.Equal(id.PropertyID("PROP-H-URG"), entries[1].PropertyID)
	s.Equal(id.PropertyID("PROP-H-STD"), entries[2].PropertyID)

	view, err := svc.GetStatus(context.Background(), "PROP-H-STUCK")
	s.Require().NoError(err)
	s.Equal(models.StatusOracleAnalysis, view.Record.Status)
	phase := view.Record.Phase(models.PhaseOracleAnalysis)
	s.Equal(models.PhaseFailed, phase.Status)
	s.Equal("interrupted by service restart", phase.Details)
}

func (s *ServiceSuite) TestRehydrate_EmptyStoreIsClean() {
	s.Require().NoError(s.service.Rehydrate(context.Background()))
	s.Empty(s.service.ListQueue(context.Background()))
}
