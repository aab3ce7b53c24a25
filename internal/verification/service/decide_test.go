package service

import (
	"context"
	"sync"
	"time"

	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/platform/audit"
	"estateproof/pkg/requestcontext"
)

// submitAndQueue drives a submission through the pipeline into manual review.
func (s *ServiceSuite) submitAndQueue(propertyID string, value float64) *models.VerificationRecord {
	s.T().Helper()
	_, err := s.service.Submit(context.Background(), propertyID, stapleRefs(), fullFacts(value))
	s.Require().NoError(err)
	return s.waitForStatus(s.service, propertyID, models.StatusManualReview)
}

// =============================================================================
// Decide Tests
// =============================================================================

func (s *ServiceSuite) TestDecide_Approve() {
	queued := s.submitAndQueue("PROP-D-1", 9_000_000)
	reviewer := id.NewReviewerID()

	decided, err := s.service.Decide(reviewerContext(reviewer), "PROP-D-1", Decision{
		Approved:   true,
		Notes:      "chain of title verified against registry extract",
		FinalValue: 9_250_000,
	})
	s.Require().NoError(err)

	s.Equal(models.StatusApproved, decided.Status)
	s.True(decided.FinalApproval)
	s.Equal(9_250_000.0, decided.FinalValue)
	s.Require().NotNil(decided.CompletedAt)

	review := decided.ManualReview
	s.Equal(models.ReviewApproved, review.Status)
	s.Equal(reviewer, review.ReviewerID)
	s.Equal("chain of title verified against registry extract", review.ReviewerNotes)
	s.Equal(9_250_000.0, review.FinalValue)
	s.Require().NotNil(review.ApprovalTimestamp)
	s.Empty(review.RejectionReason)

	for _, name := range models.PhaseNames() {
		s.Equal(models.PhaseCompleted, decided.Phase(name).Status, "phase %s", name)
	}
	s.Empty(s.service.ListQueue(context.Background()))

	actions := s.compliance.actions()
	s.Contains(actions, string(audit.EventReviewDecided))
	s.Contains(actions, string(audit.EventVerificationApproved))

	// The original ReviewID survives the decision.
	s.Equal(queued.ManualReview.ReviewID, review.ReviewID)
}

func (s *ServiceSuite) TestDecide_ApproveAdoptsOracleEstimateWhenValueOmitted() {
	queued := s.submitAndQueue("PROP-D-2", 9_000_000)

	decided, err := s.service.Decide(reviewerContext(id.NewReviewerID()), "PROP-D-2", Decision{
		Approved: true,
		Notes:    "documents in order",
	})
	s.Require().NoError(err)

	s.Equal(queued.OracleResult.EstimatedValue, decided.FinalValue)
	s.Equal(queued.OracleResult.EstimatedValue, decided.ManualReview.FinalValue)
}

func (s *ServiceSuite) TestDecide_Reject() {
	s.submitAndQueue("PROP-D-3", 9_000_000)

	decided, err := s.service.Decide(reviewerContext(id.NewReviewerID()), "PROP-D-3", Decision{
		Approved: false,
		Notes:    "owner name mismatch between deed and tax receipt",
	})
	s.Require().NoError(err)

	s.Equal(models.StatusRejected, decided.Status)
	s.False(decided.FinalApproval)
	s.Zero(decided.FinalValue)
	s.Nil(decided.CompletedAt)

	review := decided.ManualReview
	s.Equal(models.ReviewRejected, review.Status)
	s.Equal("owner name mismatch between deed and tax receipt", review.RejectionReason)
	s.Nil(review.ApprovalTimestamp)
	s.Zero(review.FinalValue)

	s.Equal(models.PhaseCompleted, decided.Phase(models.PhaseManualReview).Status)
	s.Equal(models.PhaseCompleted, decided.Phase(models.PhaseFinalDecision).Status)
	s.Contains(s.compliance.actions(), string(audit.EventVerificationRejected))
}

func (s *ServiceSuite) TestDecide_RepeatFailsWithoutMutation() {
	s.submitAndQueue("PROP-D-4", 9_000_000)
	first := reviewerContext(id.NewReviewerID())

	decided, err := s.service.Decide(first, "PROP-D-4", Decision{Approved: true, Notes: "first pass"})
	s.Require().NoError(err)

	_, err = s.service.Decide(reviewerContext(id.NewReviewerID()), "PROP-D-4", Decision{
		Approved: false,
		Notes:    "second opinion",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyDecided))

	view, err := s.service.GetStatus(context.Background(), "PROP-D-4")
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, view.Record.Status)
	s.Equal(decided.ManualReview.ReviewerID, view.Record.ManualReview.ReviewerID)
	s.Equal("first pass", view.Record.ManualReview.ReviewerNotes)
	s.Equal(decided.FinalValue, view.Record.FinalValue)
}

func (s *ServiceSuite) TestDecide_OutsideManualReviewIsInvalidState() {
	gate := newGateScorer()
	svc := s.newService(WithScorer(gate))
	defer func() {
		close(gate.release)
		svc.Close(context.Background())
	}()

	_, err := svc.Submit(context.Background(), "PROP-D-5", stapleRefs(), fullFacts(9_000_000))
	s.Require().NoError(err)
	<-gate.started

	_, err = svc.Decide(reviewerContext(id.NewReviewerID()), "PROP-D-5", Decision{Approved: true})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestDecide_Validation() {
	s.Run("unknown property returns not found", func() {
		_, err := s.service.Decide(reviewerContext(id.NewReviewerID()), "PROP-D-MISSING", Decision{Approved: true})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("negative final value is rejected", func() {
		_, err := s.service.Decide(reviewerContext(id.NewReviewerID()), "PROP-D-6", Decision{
			Approved:   true,
			FinalValue: -1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing reviewer identity is unauthorized", func() {
		_, err := s.service.Decide(context.Background(), "PROP-D-6", Decision{Approved: true})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestDecide_FailsClosedOnAuditFailure() {
	s.submitAndQueue("PROP-D-7", 9_000_000)

	s.compliance.setFail(true)
	_, err := s.service.Decide(reviewerContext(id.NewReviewerID()), "PROP-D-7", Decision{Approved: true})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	// The decision did not land; the record is still decidable.
	view, err := s.service.GetStatus(context.Background(), "PROP-D-7")
	s.Require().NoError(err)
	s.Equal(models.StatusManualReview, view.Record.Status)
	s.False(view.Record.ManualReview.Decided())

	s.compliance.setFail(false)
	decided, err := s.service.Decide(reviewerContext(id.NewReviewerID()), "PROP-D-7", Decision{Approved: true})
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, decided.Status)
}

func (s *ServiceSuite) TestDecide_ConcurrentDecisionsSerialize() {
	s.submitAndQueue("PROP-D-8", 9_000_000)

	var wg sync.WaitGroup
	results := make([]error, 2)
	verdicts := []Decision{
		{Approved: true, Notes: "looks clean"},
		{Approved: false, Notes: "second reviewer disagrees"},
	}
	for i := range verdicts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.service.Decide(reviewerContext(id.NewReviewerID()), "PROP-D-8", verdicts[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeAlreadyDecided))
		}
	}
	s.Equal(1, succeeded)

	view, err := s.service.GetStatus(context.Background(), "PROP-D-8")
	s.Require().NoError(err)
	s.True(view.Record.Status.Terminal())
	s.True(view.Record.ManualReview.Decided())
}

func (s *ServiceSuite) TestDecide_ReviewLatencyUsesRequestTime() {
	s.submitAndQueue("PROP-D-9", 9_000_000)

	// Decision carried out "later" via request time: approval timestamps
	// come from the request clock, not the wall clock.
	future := time.Now().Add(3 * time.Hour)
	ctx := requestcontext.WithTime(reviewerContext(id.NewReviewerID()), future)

	decided, err := s.service.Decide(ctx, "PROP-D-9", Decision{Approved: true})
	s.Require().NoError(err)
	s.Require().NotNil(decided.CompletedAt)
	s.WithinDuration(future, *decided.CompletedAt, time.Second)
}
