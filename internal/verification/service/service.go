// Package service orchestrates the property verification lifecycle: intake,
// background analysis, queued manual review, and the final decision.
//
// One pipeline goroutine runs per submission; stages are strictly sequential
// per record and fully parallel across records. All record mutations take a
// per-property sharded lock, so a decision racing a stage commit serializes
// and the loser observes the new state.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"estateproof/internal/verification/analyzer"
	"estateproof/internal/verification/config"
	"estateproof/internal/verification/market"
	"estateproof/internal/verification/metrics"
	"estateproof/internal/verification/models"
	"estateproof/internal/verification/ports"
	"estateproof/internal/verification/queue"
	"estateproof/internal/verification/risk"
	id "estateproof/pkg/domain"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/platform/audit"
	"estateproof/pkg/platform/middleware/device"
	"estateproof/pkg/platform/sentinel"
	"estateproof/pkg/platform/tx"
	"estateproof/pkg/requestcontext"
)

// Type aliases for interfaces from ports package.
// This allows external packages to use these types without importing ports directly.
type (
	RecordStore      = ports.RecordStore
	AuditPublisher   = ports.AuditPublisher
	StageTracker     = ports.StageTracker
	DocumentResolver = ports.DocumentResolver
)

// Decision carries the reviewer's verdict. FinalValue zero means the oracle
// estimate stands.
type Decision struct {
	Approved   bool
	Notes      string
	FinalValue float64
}

// StatusView pairs a record with conditions derived at read time.
type StatusView struct {
	Record     *models.VerificationRecord
	SLAExpired bool
}

type Service struct {
	store      RecordStore
	queue      *queue.Queue
	analyzer   *analyzer.Analyzer
	scorer     analyzer.Scorer
	adjuster   market.Adjuster
	assessor   *risk.Assessor
	checker    risk.ComplianceChecker
	resolver   DocumentResolver
	compliance AuditPublisher
	tracker    StageTracker
	txRunner   tx.Runner
	logger     *slog.Logger
	metrics    *metrics.Metrics
	config     *config.Config
	tracer     trace.Tracer

	locks propertyLocks

	mu        sync.Mutex
	pipelines map[id.PropertyID]context.CancelFunc

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
	closed     atomic.Bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCompliancePublisher wires the fail-closed audit publisher. When set,
// Submit, Decide, and Cancel fail if their audit event cannot be persisted.
func WithCompliancePublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.compliance = publisher
	}
}

// WithStageTracker wires best-effort operational telemetry for stage
// transitions and queue placements.
func WithStageTracker(tracker StageTracker) Option {
	return func(s *Service) {
		s.tracker = tracker
	}
}

// WithDocumentResolver makes Submit confirm each document ref against the
// document store before accepting the submission.
func WithDocumentResolver(resolver DocumentResolver) Option {
	return func(s *Service) {
		s.resolver = resolver
	}
}

// WithTxRunner sets the transactional boundary for mutations that pair a
// record write with a compliance audit write.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.txRunner = runner
	}
}

// WithScorer replaces the default deterministic document scorer.
func WithScorer(scorer analyzer.Scorer) Option {
	return func(s *Service) {
		s.scorer = scorer
	}
}

// WithMarketAdjuster replaces the default seeded market adjuster.
func WithMarketAdjuster(adjuster market.Adjuster) Option {
	return func(s *Service) {
		s.adjuster = adjuster
	}
}

// WithComplianceChecker replaces the default document-driven compliance checker.
func WithComplianceChecker(checker risk.ComplianceChecker) Option {
	return func(s *Service) {
		s.checker = checker
	}
}

func New(store RecordStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}

	svc := &Service{
		store:     store,
		queue:     queue.New(),
		config:    config.DefaultConfig(),
		txRunner:  tx.Passthrough{},
		pipelines: make(map[id.PropertyID]context.CancelFunc),
		tracer:    otel.Tracer("verification"),
	}

	for _, opt := range opts {
		opt(svc)
	}

	svc.config = svc.config.Normalize()
	if svc.logger == nil {
		svc.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if svc.scorer == nil {
		svc.scorer = analyzer.NewHeuristicScorer()
	}
	if svc.adjuster == nil {
		svc.adjuster = market.NewSeededAdjuster()
	}
	if svc.checker == nil {
		svc.checker = risk.NewDocumentChecker()
	}

	a, err := analyzer.New(svc.scorer, svc.config.OracleVerifiers)
	if err != nil {
		return nil, err
	}
	svc.analyzer = a

	assessor, err := risk.New(svc.checker, svc.config)
	if err != nil {
		return nil, err
	}
	svc.assessor = assessor

	svc.baseCtx, svc.cancelBase = context.WithCancel(context.Background())
	return svc, nil
}

// Submit validates a new property submission, persists the record with the
// upload phase completed, and schedules the analysis pipeline. It returns
// the freshly created record; analysis progresses in the background.
func (s *Service) Submit(ctx context.Context, rawPropertyID string, refs []models.DocumentRef, facts models.PropertyFacts) (*models.VerificationRecord, error) {
	if s.closed.Load() {
		return nil, dErrors.New(dErrors.CodeInternal, "service is shutting down")
	}

	propertyID, err := id.ParsePropertyID(rawPropertyID)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one document is required")
	}
	for _, ref := range refs {
		if err := ref.Validate(); err != nil {
			return nil, err
		}
	}
	if facts.EstimatedValue <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "declared property value must be positive")
	}

	if s.resolver != nil {
		for _, ref := range refs {
			known, err := s.resolver.Exists(ctx, ref.Hash)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "document store lookup failed")
			}
			if !known {
				return nil, dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("document %s not found in document store", ref.Hash))
			}
		}
	}

	now := requestcontext.Now(ctx)
	record := models.NewRecord(propertyID, refs, facts, now)
	if err := record.BeginPhase(models.PhaseDocumentUpload, now); err != nil {
		return nil, err
	}
	if err := record.CompletePhase(models.PhaseDocumentUpload, now,
		fmt.Sprintf("%d documents accepted", len(refs))); err != nil {
		return nil, err
	}
	if err := record.BeginPhase(models.PhaseOracleAnalysis, now); err != nil {
		return nil, err
	}
	record.Status = models.StatusOracleAnalysis
	record.UpdatedAt = now

	unlock := s.locks.acquire(propertyID)
	defer unlock()

	// Audit precedes the record write: under SQL both commit or neither, and
	// under the passthrough runner an audit failure leaves the store untouched.
	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Get(ctx, propertyID); err == nil {
			return dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("verification already exists for property %s", propertyID))
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for existing verification")
		}

		if err := s.emitCompliance(ctx, audit.ComplianceEvent{
			Timestamp: now,
			Subject:   propertyID.String(),
			Action:    string(audit.EventVerificationSubmitted),
			Reason:    fmt.Sprintf("%d documents, declared value %.2f", len(refs), facts.EstimatedValue),
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			return err
		}

		if err := s.store.Create(ctx, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict,
					fmt.Sprintf("verification already exists for property %s", propertyID))
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verification record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.startPipeline(propertyID)
	s.metrics.IncSubmissions()
	s.logger.InfoContext(ctx, "verification submitted",
		"property_id", propertyID,
		"documents", len(refs),
		"declared_value", facts.EstimatedValue,
	)
	return record, nil
}

// GetStatus returns the current record without blocking on in-flight work.
// The SLA flag is derived at read time and never changes stored state.
func (s *Service) GetStatus(ctx context.Context, rawPropertyID string) (*StatusView, error) {
	propertyID, err := id.ParsePropertyID(rawPropertyID)
	if err != nil {
		return nil, err
	}

	record, err := s.store.Get(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("no verification found for property %s", propertyID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification record")
	}

	now := requestcontext.Now(ctx)
	expired := record.SLAExpired(now)
	if expired {
		s.metrics.IncSLAExpired()
		s.track(ctx, audit.EventReviewSLABreached, propertyID, "")
	}
	s.track(ctx, audit.EventVerificationFetched, propertyID, "")

	return &StatusView{Record: record, SLAExpired: expired}, nil
}

// Decide consumes the one-shot manual review slot. It requires the record to
// be awaiting review, writes the decision exactly once, and removes the
// record from the queue. Repeat decisions fail with an already-decided error
// and never overwrite the first verdict.
func (s *Service) Decide(ctx context.Context, rawPropertyID string, d Decision) (*models.VerificationRecord, error) {
	propertyID, err := id.ParsePropertyID(rawPropertyID)
	if err != nil {
		return nil, err
	}
	if d.FinalValue < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "final value must be positive when provided")
	}
	reviewer := requestcontext.ReviewerID(ctx)
	if reviewer.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "reviewer identity required")
	}

	now := requestcontext.Now(ctx)
	unlock := s.locks.acquire(propertyID)
	defer unlock()

	var updated *models.VerificationRecord
	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		record, err := s.store.Get(ctx, propertyID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound,
					fmt.Sprintf("no verification found for property %s", propertyID))
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification record")
		}

		if record.ManualReview.Decided() {
			return dErrors.New(dErrors.CodeAlreadyDecided,
				fmt.Sprintf("verification for property %s is already decided", propertyID))
		}
		if record.Status != models.StatusManualReview {
			return dErrors.New(dErrors.CodeInvalidState,
				fmt.Sprintf("cannot decide a verification in status %s", record.Status))
		}
		if record.ManualReview == nil || record.OracleResult == nil {
			return dErrors.New(dErrors.CodeInvariantViolation,
				"record in manual review is missing analysis results")
		}

		outcome := "rejected"
		if d.Approved {
			outcome = "approved"
		}

		review := record.ManualReview
		review.ReviewerID = reviewer
		review.ReviewerNotes = d.Notes
		if d.Approved {
			finalValue := d.FinalValue
			if finalValue == 0 {
				finalValue = record.OracleResult.EstimatedValue
			}
			decidedAt := now
			review.Status = models.ReviewApproved
			review.FinalValue = finalValue
			review.ApprovalTimestamp = &decidedAt
			record.Status = models.StatusApproved
			record.FinalApproval = true
			record.FinalValue = finalValue
			record.CompletedAt = &decidedAt
		} else {
			review.Status = models.ReviewRejected
			review.RejectionReason = d.Notes
			record.Status = models.StatusRejected
		}

		if err := record.CompletePhase(models.PhaseManualReview, now,
			fmt.Sprintf("%s by reviewer %s", outcome, reviewer)); err != nil {
			return err
		}
		if err := record.BeginPhase(models.PhaseFinalDecision, now); err != nil {
			return err
		}
		if err := record.CompletePhase(models.PhaseFinalDecision, now,
			fmt.Sprintf("verification %s", outcome)); err != nil {
			return err
		}
		record.UpdatedAt = now

		requestID := requestcontext.RequestID(ctx)
		if err := s.emitCompliance(ctx, audit.ComplianceEvent{
			Timestamp:  now,
			ReviewerID: reviewer,
			Subject:    propertyID.String(),
			Action:     string(audit.EventReviewDecided),
			Decision:   outcome,
			Reason:     d.Notes,
			RequestID:  requestID,
		}); err != nil {
			return err
		}
		outcomeEvent := audit.EventVerificationRejected
		if d.Approved {
			outcomeEvent = audit.EventVerificationApproved
		}
		if err := s.emitCompliance(ctx, audit.ComplianceEvent{
			Timestamp:  now,
			ReviewerID: reviewer,
			Subject:    propertyID.String(),
			Action:     string(outcomeEvent),
			Decision:   outcome,
			Reason:     d.Notes,
			RequestID:  requestID,
		}); err != nil {
			return err
		}

		if err := s.store.Update(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist decision")
		}

		updated = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.queue.Remove(propertyID)
	s.refreshQueueDepths()

	outcome := "rejected"
	if d.Approved {
		outcome = "approved"
	}
	s.metrics.IncDecision(outcome)
	if updated.ReviewerQueue != nil {
		s.metrics.ObserveReviewLatency(now.Sub(updated.ReviewerQueue.AssignedAt))
	}
	s.logger.InfoContext(ctx, "verification decided",
		"property_id", propertyID,
		"outcome", outcome,
		"reviewer_id", reviewer,
		"final_value", updated.FinalValue,
	)
	return updated, nil
}

// Cancel stops pending background work for a record that has not reached
// manual review. The in-flight stage aborts at its next checkpoint and the
// owning phase is marked failed with a cancellation note.
func (s *Service) Cancel(ctx context.Context, rawPropertyID string) error {
	propertyID, err := id.ParsePropertyID(rawPropertyID)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	unlock := s.locks.acquire(propertyID)
	defer unlock()

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		record, err := s.store.Get(ctx, propertyID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound,
					fmt.Sprintf("no verification found for property %s", propertyID))
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification record")
		}

		if record.Terminal() {
			return dErrors.New(dErrors.CodeAlreadyDecided,
				fmt.Sprintf("verification for property %s is already decided", propertyID))
		}
		if record.Status == models.StatusManualReview {
			return dErrors.New(dErrors.CodeInvalidState,
				"verification is awaiting manual review and can only be decided")
		}

		for i := range record.Phases {
			if record.Phases[i].Status == models.PhaseInProgress {
				if err := record.FailPhase(record.Phases[i].Name, now, "cancelled by submitter"); err != nil {
					return err
				}
				break
			}
		}
		record.UpdatedAt = now

		if err := s.emitCompliance(ctx, audit.ComplianceEvent{
			Timestamp: now,
			Subject:   propertyID.String(),
			Action:    string(audit.EventVerificationCancelled),
			Reason:    "cancelled by submitter",
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			return err
		}
		if err := s.store.Update(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist cancellation")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	cancelPipeline, running := s.pipelines[propertyID]
	s.mu.Unlock()
	if running {
		cancelPipeline()
	}

	s.metrics.IncCancellations()
	s.logger.InfoContext(ctx, "verification cancelled", "property_id", propertyID)
	return nil
}

// ListQueue returns the review queue ordered by priority, then age.
func (s *Service) ListQueue(_ context.Context) []queue.Entry {
	return s.queue.List()
}

// Rehydrate rebuilds in-memory state from the store after a restart: queued
// records are re-enqueued for review and records interrupted mid-pipeline
// have their in-flight phase marked failed.
func (s *Service) Rehydrate(ctx context.Context) error {
	queued, err := s.store.ListByStatus(ctx, models.StatusManualReview)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list queued verifications")
	}
	for _, record := range queued {
		if record.ReviewerQueue == nil {
			continue
		}
		s.queue.Enqueue(queue.Entry{
			PropertyID:             record.PropertyID,
			Priority:               record.ReviewerQueue.Priority,
			EnqueuedAt:             record.ReviewerQueue.AssignedAt,
			ExpectedCompletionTime: record.ReviewerQueue.ExpectedCompletionTime,
		})
	}

	now := requestcontext.Now(ctx)
	interrupted := 0
	for _, status := range []models.Status{models.StatusUploading, models.StatusOracleAnalysis, models.StatusRiskAssessment} {
		records, err := s.store.ListByStatus(ctx, status)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list in-flight verifications")
		}
		for _, record := range records {
			changed := false
			for i := range record.Phases {
				if record.Phases[i].Status == models.PhaseInProgress {
					if err := record.FailPhase(record.Phases[i].Name, now, "interrupted by service restart"); err == nil {
						changed = true
					}
					break
				}
			}
			if !changed {
				continue
			}
			record.UpdatedAt = now
			if err := s.store.Update(ctx, record); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to park interrupted verification")
			}
			interrupted++
		}
	}

	s.refreshQueueDepths()
	s.logger.InfoContext(ctx, "verification state rehydrated",
		"queued", s.queue.Len(),
		"interrupted", interrupted,
	)
	return nil
}

// Close stops accepting submissions and waits for in-flight pipelines to
// drain. Past the drain timeout, remaining stages are cancelled and their
// records parked with a failed phase.
func (s *Service) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.config.DrainTimeout)
	defer timer.Stop()

	select {
	case <-done:
		s.cancelBase()
		return nil
	case <-timer.C:
		s.cancelBase()
	case <-ctx.Done():
		s.cancelBase()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) startPipeline(propertyID id.PropertyID) {
	pipelineCtx, cancel := context.WithCancel(s.baseCtx)
	s.mu.Lock()
	s.pipelines[propertyID] = cancel
	s.mu.Unlock()
	s.wg.Add(1)
	go s.runPipeline(pipelineCtx, propertyID)
}

func (s *Service) finishPipeline(propertyID id.PropertyID) {
	s.mu.Lock()
	cancel, ok := s.pipelines[propertyID]
	delete(s.pipelines, propertyID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// emitCompliance routes a fail-closed audit event. Without a publisher the
// event is logged; publish failures fail the surrounding operation.
func (s *Service) emitCompliance(ctx context.Context, event audit.ComplianceEvent) error {
	if event.Client == "" {
		event.Client = clientSummary(ctx)
	}
	if s.compliance == nil {
		s.logger.InfoContext(ctx, "audit event",
			"action", event.Action,
			"subject", event.Subject,
			"decision", event.Decision,
		)
		return nil
	}
	if err := s.compliance.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// clientSummary renders the calling client for compliance records: the IP
// plus a parsed device summary when a User-Agent was presented. Background
// pipeline contexts carry neither and summarize to "".
func clientSummary(ctx context.Context) string {
	client := requestcontext.ClientIP(ctx)
	ua := requestcontext.UserAgent(ctx)
	if ua == "" {
		return client
	}
	summary := device.ParseUserAgent(ua)
	if client == "" {
		return summary
	}
	return client + " (" + summary + ")"
}

func (s *Service) track(ctx context.Context, action audit.AuditEvent, propertyID id.PropertyID, stage string) {
	if s.tracker == nil {
		return
	}
	s.tracker.Track(ctx, audit.OpsEvent{
		Timestamp: requestcontext.Now(ctx),
		Subject:   propertyID.String(),
		Action:    string(action),
		Stage:     stage,
		RequestID: requestcontext.RequestID(ctx),
	})
}

func (s *Service) refreshQueueDepths() {
	for priority, depth := range s.queue.Depths() {
		s.metrics.SetQueueDepth(string(priority), depth)
	}
}
