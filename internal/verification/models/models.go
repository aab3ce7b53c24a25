// Package models defines the verification domain types shared across the
// orchestrator, its stage evaluators, stores, and the HTTP transport.
//
// A VerificationRecord is the single source of truth for one property
// submission. Stage evaluators produce immutable result payloads
// (OracleResult, RiskAssessment); the record tracks which lifecycle phase
// owns the work right now. Phase bookkeeping lives here so every caller
// advances the lifecycle through the same ordering checks.
package models

import (
	"time"

	id "estateproof/pkg/domain"
	dErrors "estateproof/pkg/domain-errors"
)

// Status is the coarse lifecycle state of a verification record.
type Status string

const (
	StatusUploading      Status = "uploading"
	StatusOracleAnalysis Status = "oracle_analysis"
	StatusRiskAssessment Status = "risk_assessment"
	StatusManualReview   Status = "manual_review"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusUploading, StatusOracleAnalysis, StatusRiskAssessment,
		StatusManualReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// PhaseName identifies one step of the fixed five-stage lifecycle.
type PhaseName string

const (
	PhaseDocumentUpload PhaseName = "document_upload"
	PhaseOracleAnalysis PhaseName = "oracle_analysis"
	PhaseRiskAssessment PhaseName = "risk_assessment"
	PhaseManualReview   PhaseName = "manual_review"
	PhaseFinalDecision  PhaseName = "final_decision"
)

// phaseOrder is the declared lifecycle order. Phases complete strictly in
// this order; BeginPhase enforces it.
var phaseOrder = []PhaseName{
	PhaseDocumentUpload,
	PhaseOracleAnalysis,
	PhaseRiskAssessment,
	PhaseManualReview,
	PhaseFinalDecision,
}

// PhaseNames returns the lifecycle phases in declared order.
func PhaseNames() []PhaseName {
	out := make([]PhaseName, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// PhaseStatus is the execution state of a single phase.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
)

// Phase is one timestamped step of the verification lifecycle.
type Phase struct {
	Name          PhaseName   `json:"name"`
	Status        PhaseStatus `json:"status"`
	StartTime     *time.Time  `json:"start_time,omitempty"`
	CompletedTime *time.Time  `json:"completed_time,omitempty"`
	Details       string      `json:"details,omitempty"`
}

// DocumentType classifies a submitted document.
type DocumentType string

const (
	DocumentDeed       DocumentType = "deed"
	DocumentPAN        DocumentType = "pan"
	DocumentAadhar     DocumentType = "aadhar"
	DocumentValuation  DocumentType = "valuation"
	DocumentTaxReceipt DocumentType = "tax_receipt"
	DocumentOther      DocumentType = "other"
)

// IsValid checks if the document type is one of the supported enum values.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentDeed, DocumentPAN, DocumentAadhar, DocumentValuation,
		DocumentTaxReceipt, DocumentOther:
		return true
	}
	return false
}

// ParseDocumentType normalizes a caller-declared document type. Empty
// declarations are rejected; unrecognized ones fall into the "other"
// bucket, which carries the lowest reliability weight during analysis.
func ParseDocumentType(s string) (DocumentType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "document type is required")
	}
	t := DocumentType(s)
	if !t.IsValid() {
		return DocumentOther, nil
	}
	return t, nil
}

// DocumentRef is a content-addressed handle to a submitted document.
// The service never sees document bytes, only the hash and declared type.
type DocumentRef struct {
	Hash string       `json:"hash"`
	Type DocumentType `json:"type"`
}

// Validate rejects refs that cannot address a stored document.
func (r DocumentRef) Validate() error {
	if r.Hash == "" {
		return dErrors.New(dErrors.CodeValidation, "document ref hash is required")
	}
	if !r.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "document ref type is invalid: "+string(r.Type))
	}
	return nil
}

// PropertyFacts are the caller-declared facts about the property under
// verification. They are inputs to analysis, never trusted conclusions.
type PropertyFacts struct {
	Address        string  `json:"address"`
	OwnerName      string  `json:"owner_name"`
	EstimatedValue float64 `json:"estimated_value"`
}

// ExtractedData holds fields an analyzer recovered from one document.
// All fields optional; presence is itself a signal (address resolvability
// feeds the cross-verifier).
type ExtractedData struct {
	PropertyAddress    string  `json:"property_address,omitempty"`
	OwnerName          string  `json:"owner_name,omitempty"`
	PropertyValue      float64 `json:"property_value,omitempty"`
	DocumentDate       string  `json:"document_date,omitempty"`
	RegistrationNumber string  `json:"registration_number,omitempty"`
}

// DocumentAnalysis is the per-document outcome of oracle analysis.
type DocumentAnalysis struct {
	DocumentType  DocumentType  `json:"document_type"`
	Confidence    float64       `json:"confidence"`
	Issues        []string      `json:"issues"`
	ExtractedData ExtractedData `json:"extracted_data"`
}

// HasResolvableAddress reports whether the analyzer recovered a property
// address from this document.
func (a DocumentAnalysis) HasResolvableAddress() bool {
	return a.ExtractedData.PropertyAddress != ""
}

// OracleResult is the aggregate outcome of the automated analysis stage.
// AutoApproveEligible is always false: every submission requires a human
// decision regardless of confidence.
type OracleResult struct {
	AnalysisID          id.AnalysisID      `json:"analysis_id"`
	OverallConfidence   float64            `json:"overall_confidence"`
	DocumentAnalyses    []DocumentAnalysis `json:"document_analyses"`
	EstimatedValue      float64            `json:"estimated_value"`
	RiskFlags           []string           `json:"risk_flags"`
	AutoApproveEligible bool               `json:"auto_approve_eligible"`
	Timestamp           time.Time          `json:"timestamp"`
}

// RiskTier is the coarse risk bucket derived from confidence and flags.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// FactorSeverity grades an individual risk factor.
type FactorSeverity string

const (
	SeverityLow    FactorSeverity = "low"
	SeverityMedium FactorSeverity = "medium"
	SeverityHigh   FactorSeverity = "high"
)

// RiskFactor is one named contributor to the overall risk picture.
type RiskFactor struct {
	Category    string         `json:"category"`
	Severity    FactorSeverity `json:"severity"`
	Description string         `json:"description"`
}

// ComplianceCheck is the pass/fail outcome of one regulatory check.
type ComplianceCheck struct {
	Check   string `json:"check"`
	Passed  bool   `json:"passed"`
	Details string `json:"details,omitempty"`
}

// MarketTrend summarizes the direction of the local market.
type MarketTrend string

const (
	TrendRising    MarketTrend = "rising"
	TrendStable    MarketTrend = "stable"
	TrendDeclining MarketTrend = "declining"
)

// MarketAnalysis is informational market context. It feeds queue priority
// and the reviewer's picture; it never gates the workflow.
type MarketAnalysis struct {
	PriceDeviationPercent float64     `json:"price_deviation_percent"`
	LiquidityScore        float64     `json:"liquidity_score"`
	MarketTrend           MarketTrend `json:"market_trend"`
}

// RiskAssessment is the aggregate outcome of the risk stage.
type RiskAssessment struct {
	OverallRisk      RiskTier          `json:"overall_risk"`
	RiskFactors      []RiskFactor      `json:"risk_factors"`
	ComplianceChecks []ComplianceCheck `json:"compliance_checks"`
	MarketAnalysis   MarketAnalysis    `json:"market_analysis"`
}

// ReviewStatus is the state of the manual review slot.
type ReviewStatus string

const (
	ReviewPending    ReviewStatus = "pending"
	ReviewInProgress ReviewStatus = "in_progress"
	ReviewApproved   ReviewStatus = "approved"
	ReviewRejected   ReviewStatus = "rejected"
)

// ManualReview is the one-shot human decision slot. It is created pending
// when the record enters manual review and written exactly once by Decide;
// ReviewerID stays zero until decision time.
type ManualReview struct {
	ReviewID          id.ReviewID   `json:"review_id"`
	ReviewerID        id.ReviewerID `json:"reviewer_id,omitempty"`
	Status            ReviewStatus  `json:"status"`
	ReviewerNotes     string        `json:"reviewer_notes,omitempty"`
	FinalValue        float64       `json:"final_value"`
	ApprovalTimestamp *time.Time    `json:"approval_timestamp,omitempty"`
	RejectionReason   string        `json:"rejection_reason,omitempty"`
}

// Decided reports whether the review slot has been consumed.
func (m *ManualReview) Decided() bool {
	if m == nil {
		return false
	}
	return m.Status == ReviewApproved || m.Status == ReviewRejected
}

// Priority is the queue urgency class derived from declared property value.
type Priority string

const (
	PriorityStandard Priority = "standard"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities for queue sorting; higher sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 2
	case PriorityUrgent:
		return 1
	default:
		return 0
	}
}

// IsValid checks if the priority is one of the supported enum values.
func (p Priority) IsValid() bool {
	return p == PriorityStandard || p == PriorityUrgent || p == PriorityCritical
}

// ReviewSLA is the window a queued record should be decided within.
const ReviewSLA = 24 * time.Hour

// QueueInfo captures when a record entered the review queue and the SLA
// window attached to it.
type QueueInfo struct {
	AssignedAt             time.Time `json:"assigned_at"`
	ExpectedCompletionTime time.Time `json:"expected_completion_time"`
	Priority               Priority  `json:"priority"`
}

// SLAExpired reports whether the review window has passed. Expiry is an
// observable condition, never a state transition.
func (q *QueueInfo) SLAExpired(now time.Time) bool {
	if q == nil {
		return false
	}
	return now.After(q.ExpectedCompletionTime)
}

// VerificationRecord is the full state of one property verification.
type VerificationRecord struct {
	PropertyID     id.PropertyID   `json:"property_id"`
	Status         Status          `json:"status"`
	Phases         []Phase         `json:"phases"`
	DocumentRefs   []DocumentRef   `json:"document_refs"`
	Facts          PropertyFacts   `json:"facts"`
	OracleResult   *OracleResult   `json:"oracle_result,omitempty"`
	RiskAssessment *RiskAssessment `json:"risk_assessment,omitempty"`
	ManualReview   *ManualReview   `json:"manual_review,omitempty"`
	ReviewerQueue  *QueueInfo      `json:"reviewer_queue,omitempty"`
	FinalApproval  bool            `json:"final_approval"`
	FinalValue     float64         `json:"final_value"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// NewRecord builds a fresh record with every lifecycle phase pending.
// The caller drives the first transition (document upload) explicitly.
func NewRecord(propertyID id.PropertyID, refs []DocumentRef, facts PropertyFacts, now time.Time) *VerificationRecord {
	phases := make([]Phase, 0, len(phaseOrder))
	for _, name := range phaseOrder {
		phases = append(phases, Phase{Name: name, Status: PhasePending})
	}
	return &VerificationRecord{
		PropertyID:   propertyID,
		Status:       StatusUploading,
		Phases:       phases,
		DocumentRefs: refs,
		Facts:        facts,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
}

// Phase returns a pointer into the record's phase slice, or nil for an
// unknown name. Callers mutate phases only through the transition helpers.
func (r *VerificationRecord) Phase(name PhaseName) *Phase {
	for i := range r.Phases {
		if r.Phases[i].Name == name {
			return &r.Phases[i]
		}
	}
	return nil
}

// BeginPhase marks a pending phase in progress. It fails unless every
// earlier phase has completed, which is what keeps the lifecycle strictly
// ordered no matter which goroutine drives it.
func (r *VerificationRecord) BeginPhase(name PhaseName, now time.Time) error {
	target := r.Phase(name)
	if target == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown phase: "+string(name))
	}
	if target.Status != PhasePending {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"phase "+string(name)+" cannot start from "+string(target.Status))
	}
	for i := range r.Phases {
		if r.Phases[i].Name == name {
			break
		}
		if r.Phases[i].Status != PhaseCompleted {
			return dErrors.New(dErrors.CodeInvariantViolation,
				"phase "+string(name)+" cannot start before "+string(r.Phases[i].Name)+" completes")
		}
	}
	start := now
	target.Status = PhaseInProgress
	target.StartTime = &start
	r.UpdatedAt = now
	return nil
}

// CompletePhase marks an in-progress phase completed.
func (r *VerificationRecord) CompletePhase(name PhaseName, now time.Time, details string) error {
	target := r.Phase(name)
	if target == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown phase: "+string(name))
	}
	if target.Status != PhaseInProgress {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"phase "+string(name)+" cannot complete from "+string(target.Status))
	}
	done := now
	target.Status = PhaseCompleted
	target.CompletedTime = &done
	target.Details = details
	r.UpdatedAt = now
	return nil
}

// FailPhase marks an in-progress phase failed and records why. The record's
// status is left untouched: a failed stage parks the record at its last good
// state rather than advancing or crashing.
func (r *VerificationRecord) FailPhase(name PhaseName, now time.Time, details string) error {
	target := r.Phase(name)
	if target == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown phase: "+string(name))
	}
	if target.Status != PhaseInProgress {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"phase "+string(name)+" cannot fail from "+string(target.Status))
	}
	failed := now
	target.Status = PhaseFailed
	target.CompletedTime = &failed
	target.Details = details
	r.UpdatedAt = now
	return nil
}

// Terminal reports whether the record has reached a final decision.
func (r *VerificationRecord) Terminal() bool {
	return r.Status.Terminal()
}

// SLAExpired reports whether a queued record has outlived its review window
// without a decision.
func (r *VerificationRecord) SLAExpired(now time.Time) bool {
	if r.Terminal() {
		return false
	}
	return r.ReviewerQueue.SLAExpired(now)
}

// Clone returns a deep copy so stores can hand out records without aliasing
// internal state.
func (r *VerificationRecord) Clone() *VerificationRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Phases = make([]Phase, len(r.Phases))
	copy(out.Phases, r.Phases)
	out.DocumentRefs = make([]DocumentRef, len(r.DocumentRefs))
	copy(out.DocumentRefs, r.DocumentRefs)
	if r.OracleResult != nil {
		oracle := *r.OracleResult
		oracle.DocumentAnalyses = make([]DocumentAnalysis, len(r.OracleResult.DocumentAnalyses))
		copy(oracle.DocumentAnalyses, r.OracleResult.DocumentAnalyses)
		for i := range oracle.DocumentAnalyses {
			issues := make([]string, len(oracle.DocumentAnalyses[i].Issues))
			copy(issues, oracle.DocumentAnalyses[i].Issues)
			oracle.DocumentAnalyses[i].Issues = issues
		}
		oracle.RiskFlags = make([]string, len(r.OracleResult.RiskFlags))
		copy(oracle.RiskFlags, r.OracleResult.RiskFlags)
		out.OracleResult = &oracle
	}
	if r.RiskAssessment != nil {
		risk := *r.RiskAssessment
		risk.RiskFactors = make([]RiskFactor, len(r.RiskAssessment.RiskFactors))
		copy(risk.RiskFactors, r.RiskAssessment.RiskFactors)
		risk.ComplianceChecks = make([]ComplianceCheck, len(r.RiskAssessment.ComplianceChecks))
		copy(risk.ComplianceChecks, r.RiskAssessment.ComplianceChecks)
		out.RiskAssessment = &risk
	}
	if r.ManualReview != nil {
		review := *r.ManualReview
		out.ManualReview = &review
	}
	if r.ReviewerQueue != nil {
		queue := *r.ReviewerQueue
		out.ReviewerQueue = &queue
	}
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}
