// Package domain defines the typed identifiers shared across services.
//
// Internal identifiers are typed UUIDs so the compiler rejects cross-type
// assignment (a ReviewID can never be passed where a ReviewerID is expected).
// PropertyID is the one caller-supplied identity: an opaque string validated
// at the trust boundary but never generated here.
package domain

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "estateproof/pkg/domain-errors"
)

// ReviewerID identifies a human reviewer.
type ReviewerID uuid.UUID

// AnalysisID identifies one oracle analysis run.
type AnalysisID uuid.UUID

// ReviewID identifies one manual review decision.
type ReviewID uuid.UUID

// MaxPropertyIDLength bounds caller-supplied property identifiers.
const MaxPropertyIDLength = 128

// PropertyID is the caller-supplied identity key for a verification record.
// It is opaque: the service never derives meaning from its contents, only
// uniqueness.
type PropertyID string

func (id ReviewerID) String() string { return uuid.UUID(id).String() }
func (id AnalysisID) String() string { return uuid.UUID(id).String() }
func (id ReviewID) String() string   { return uuid.UUID(id).String() }
func (id PropertyID) String() string { return string(id) }

// IsNil reports whether the ID is the zero UUID.
func (id ReviewerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// IsNil reports whether the ID is the zero UUID.
func (id AnalysisID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// IsNil reports whether the ID is the zero UUID.
func (id ReviewID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the id as a canonical UUID string, or empty for the
// zero id so unassigned ids serialize cleanly.
func (id ReviewerID) MarshalText() ([]byte, error) { return idText(uuid.UUID(id)), nil }

// MarshalText implements encoding.TextMarshaler.
func (id AnalysisID) MarshalText() ([]byte, error) { return idText(uuid.UUID(id)), nil }

// MarshalText implements encoding.TextMarshaler.
func (id ReviewID) MarshalText() ([]byte, error) { return idText(uuid.UUID(id)), nil }

// UnmarshalText parses a UUID string; empty input yields the zero id.
func (id *ReviewerID) UnmarshalText(b []byte) error {
	parsed, err := idFromText(b)
	if err != nil {
		return err
	}
	*id = ReviewerID(parsed)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *AnalysisID) UnmarshalText(b []byte) error {
	parsed, err := idFromText(b)
	if err != nil {
		return err
	}
	*id = AnalysisID(parsed)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ReviewID) UnmarshalText(b []byte) error {
	parsed, err := idFromText(b)
	if err != nil {
		return err
	}
	*id = ReviewID(parsed)
	return nil
}

func idText(u uuid.UUID) []byte {
	if u == uuid.Nil {
		return []byte{}
	}
	return []byte(u.String())
}

func idFromText(b []byte) (uuid.UUID, error) {
	if len(b) == 0 {
		return uuid.Nil, nil
	}
	return uuid.Parse(string(b))
}

// NewAnalysisID generates a fresh analysis identifier.
func NewAnalysisID() AnalysisID { return AnalysisID(uuid.New()) }

// NewReviewID generates a fresh review identifier.
func NewReviewID() ReviewID { return ReviewID(uuid.New()) }

// NewReviewerID generates a fresh reviewer identifier.
func NewReviewerID() ReviewerID { return ReviewerID(uuid.New()) }

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("invalid %s format", kind))
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be the nil UUID")
	}
	return parsed, nil
}

// ParseReviewerID parses and validates a reviewer ID string.
// Rejects empty strings, malformed UUIDs, and the nil UUID.
func ParseReviewerID(s string) (ReviewerID, error) {
	parsed, err := parseUUID(s, "reviewer id")
	if err != nil {
		return ReviewerID{}, err
	}
	return ReviewerID(parsed), nil
}

// ParseAnalysisID parses and validates an analysis ID string.
func ParseAnalysisID(s string) (AnalysisID, error) {
	parsed, err := parseUUID(s, "analysis id")
	if err != nil {
		return AnalysisID{}, err
	}
	return AnalysisID(parsed), nil
}

// ParseReviewID parses and validates a review ID string.
func ParseReviewID(s string) (ReviewID, error) {
	parsed, err := parseUUID(s, "review id")
	if err != nil {
		return ReviewID{}, err
	}
	return ReviewID(parsed), nil
}

// ParsePropertyID validates a caller-supplied property identifier.
// The value is kept opaque; validation only rejects inputs that cannot be a
// stable storage key: empty or whitespace-only strings, values longer than
// MaxPropertyIDLength, and strings containing control or non-printable runes.
func ParsePropertyID(s string) (PropertyID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "property id is required")
	}
	if len(trimmed) > MaxPropertyIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("property id must be %d characters or less", MaxPropertyIDLength))
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) || !unicode.IsPrint(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "property id contains non-printable characters")
		}
	}
	return PropertyID(trimmed), nil
}
