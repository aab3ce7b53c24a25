package audit

import (
	"time"

	id "estateproof/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 7 years).
	// Examples: verification submissions, review decisions, final outcomes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: failed reviewer logins, token revocations, rate limit hits.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: stage transitions, queue placements, reviewer logins.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	ReviewerID id.ReviewerID
	// Subject is the entity the event is about. For verification events this
	// is the property ID; for auth events it is the reviewer identifier.
	Subject  string
	Action   string
	Stage    string
	Decision string
	Reason   string
	// RequestID is the correlation ID from HTTP request context.
	RequestID string
	// Client records the calling client for forensics: the IP address,
	// optionally followed by a parsed device summary in parentheses.
	Client string
}

type AuditEvent string

const (
	// Verification lifecycle events
	EventVerificationSubmitted AuditEvent = "verification_submitted"
	EventVerificationApproved  AuditEvent = "verification_approved"
	EventVerificationRejected  AuditEvent = "verification_rejected"
	EventVerificationCancelled AuditEvent = "verification_cancelled"
	EventReviewDecided         AuditEvent = "review_decided"

	// Pipeline stage events
	EventStageStarted        AuditEvent = "stage_started"
	EventStageCompleted      AuditEvent = "stage_completed"
	EventStageFailed         AuditEvent = "stage_failed"
	EventVerificationQueued  AuditEvent = "verification_queued"
	EventReviewSLABreached   AuditEvent = "review_sla_breached"
	EventVerificationFetched AuditEvent = "verification_fetched"

	// Reviewer auth events
	EventReviewerLogin       AuditEvent = "reviewer_login"
	EventReviewerLoginFailed AuditEvent = "reviewer_login_failed"
	EventTokenRevoked        AuditEvent = "token_revoked"

	// Rate limit events
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - require tamper-proof storage
	EventVerificationSubmitted: CategoryCompliance,
	EventVerificationApproved:  CategoryCompliance,
	EventVerificationRejected:  CategoryCompliance,
	EventVerificationCancelled: CategoryCompliance,
	EventReviewDecided:         CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventReviewerLoginFailed: CategorySecurity,
	EventTokenRevoked:        CategorySecurity,
	EventRateLimitExceeded:   CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventStageStarted:        CategoryOperations,
	EventStageCompleted:      CategoryOperations,
	EventStageFailed:         CategoryOperations,
	EventVerificationQueued:  CategoryOperations,
	EventReviewSLABreached:   CategoryOperations,
	EventVerificationFetched: CategoryOperations,
	EventReviewerLogin:       CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// -----------------------------------------------------------------------------
// Right-sized event types for tri-publisher architecture
// -----------------------------------------------------------------------------

// ComplianceEvent captures regulatory-significant actions requiring guaranteed
// persistence. Verification outcomes and review decisions must survive audits
// years after the fact. Use with ComplianceAuditor for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp  time.Time     // When the event occurred (set automatically if zero)
	ReviewerID id.ReviewerID // The reviewer who acted (zero for system actions)
	Subject    string        // Property ID the event is about (required)
	Action     string        // The action taken (e.g., "review_decided")
	Decision   string        // Outcome of the action (e.g., "approved", "rejected")
	Reason     string        // Reviewer-supplied or system-generated rationale
	RequestID  string        // Correlation ID for request tracing
	Client     string        // Submitting client summary (IP plus parsed device)
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the common Event type for storage fan-out.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:   CategoryCompliance,
		Timestamp:  e.Timestamp,
		ReviewerID: e.ReviewerID,
		Subject:    e.Subject,
		Action:     e.Action,
		Decision:   e.Decision,
		Reason:     e.Reason,
		RequestID:  e.RequestID,
		Client:     e.Client,
	}
}

// SecurityEvent captures security-relevant actions for SIEM and alerting.
// Events are processed asynchronously with buffering and retry.
// Use with SecurityAuditor for non-blocking emission.
type SecurityEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved (reviewer key ID, property ID, IP)
	Action    string    // Security action (e.g., "reviewer_login_failed")
	Reason    string    // Why this happened (e.g., "unknown_key", "revoked_token")
	IP        string    // Client IP address (critical for security forensics)
	Device    string    // Parsed device summary, e.g. "Chrome on Mac OS X"
	RequestID string    // Correlation ID
	Severity  Severity  // "info", "warning", "critical" for SIEM routing
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category returns CategorySecurity (always).
func (e SecurityEvent) Category() EventCategory { return CategorySecurity }

// ToEvent converts to the common Event type for storage fan-out.
func (e SecurityEvent) ToEvent() Event {
	client := e.IP
	if e.Device != "" {
		client += " (" + e.Device + ")"
	}
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		Client:    client,
	}
}

// OpsEvent captures operational events with minimal overhead.
// Events are fire-and-forget with optional sampling.
// Use with OpsTracker for non-blocking, sampled emission.
type OpsEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Property ID the event is about
	Action    string    // Operational action (e.g., "stage_completed")
	Stage     string    // Pipeline stage name for stage transition events
	RequestID string    // Correlation ID
}

// Category returns CategoryOperations (always).
func (e OpsEvent) Category() EventCategory { return CategoryOperations }

// ToEvent converts to the common Event type for storage fan-out.
func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		Stage:     e.Stage,
		RequestID: e.RequestID,
	}
}
