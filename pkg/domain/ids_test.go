package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "estateproof/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// internal IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseReviewerID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseReviewerID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseReviewerID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseReviewerID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, ReviewerID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	reviewerID := ReviewerID(uuid.New())
	analysisID := AnalysisID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ ReviewerID = analysisID   // compile error
	// var _ AnalysisID = reviewerID   // compile error

	assert.NotEqual(t, uuid.UUID(reviewerID), uuid.UUID(analysisID))
}

// TestParsePropertyID_TrustBoundary validates the rules applied to
// caller-supplied property identifiers at API entry points.
func TestParsePropertyID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty string", "", "", true},
		{"whitespace only", "   ", "", true},
		{"oversized input", strings.Repeat("a", MaxPropertyIDLength+1), "", true},
		{"null byte injection", "prop-001\x00suffix", "", true},
		{"newline injection", "prop-001\nX-Injected: 1", "", true},
		{"plain identifier", "prop-001", "prop-001", false},
		{"uuid-shaped identifier", "550e8400-e29b-41d4-a716-446655440000", "550e8400-e29b-41d4-a716-446655440000", false},
		{"content-hash identifier", "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", false},
		{"surrounding whitespace trimmed", "  prop-002  ", "prop-002", false},
		{"max length accepted", strings.Repeat("a", MaxPropertyIDLength), strings.Repeat("a", MaxPropertyIDLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParsePropertyID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, PropertyID(tt.want), id)
		})
	}
}

func TestNewIDs_NotNil(t *testing.T) {
	assert.False(t, NewAnalysisID().IsNil())
	assert.False(t, NewReviewID().IsNil())
	assert.False(t, NewReviewerID().IsNil())
}

func TestID_StringRoundTrip(t *testing.T) {
	id := NewReviewID()
	parsed, err := ParseReviewID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestID_JSONRoundTrip(t *testing.T) {
	id := NewAnalysisID()

	raw, err := json.Marshal(id)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+id.String()+`"`, string(raw), "ids must render as UUID strings")

	var decoded AnalysisID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, id, decoded)
}

func TestID_ZeroValueMarshalsEmpty(t *testing.T) {
	var id ReviewerID

	raw, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `""`, string(raw))

	var decoded ReviewerID
	require.NoError(t, json.Unmarshal([]byte(`""`), &decoded))
	assert.True(t, decoded.IsNil())
}
