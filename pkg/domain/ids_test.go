package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "keystone/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
//
// Justification: This is a pure function enforcing a domain invariant
// at trust boundaries. Per testing.md, unit tests are allowed for invariants.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePropertyID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParsePropertyID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParsePropertyID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParsePropertyID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, PropertyID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	alertID := AlertID(uuid.New())
	lockID := LockID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ AlertID = lockID   // compile error
	// var _ LockID = alertID   // compile error

	// Verify they're distinct at runtime too
	assert.NotEqual(t, uuid.UUID(alertID), uuid.UUID(lockID))
}

// TestParseID_SecurityInvariants validates security-critical parsing rules.
//
// Justification: These are trust boundary invariants - parsing must reject
// attack vectors at API entry points.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		// Attack vectors
		{"SQL injection attempt", "'; DROP TABLE alerts;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400​-e29b-41d4-a716-446655440000", true},

		// Edge cases
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		// Note: uuid.Parse trims whitespace, so " uuid " is accepted as valid

		// Valid
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePropertyID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types have identical parsing behavior.
//
// Justification: Inconsistent validation across ID types could create security holes.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	// All types should accept valid UUID
	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errProperty := ParsePropertyID(validUUID)
		_, errAlert := ParseAlertID(validUUID)
		_, errLock := ParseLockID(validUUID)

		require.NoError(t, errProperty)
		require.NoError(t, errAlert)
		require.NoError(t, errLock)
	})

	// All types should reject invalid inputs identically
	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errProperty := ParsePropertyID(input)
			_, errAlert := ParseAlertID(input)
			_, errLock := ParseLockID(input)

			require.Error(t, errProperty)
			require.Error(t, errAlert)
			require.Error(t, errLock)
		})
	}
}

// TestIDJSONEncoding verifies IDs render as canonical UUID strings.
//
// Justification: Defined types over uuid.UUID do not inherit its text
// marshaling; without MarshalText payloads would carry raw byte arrays.
func TestIDJSONEncoding(t *testing.T) {
	t.Run("marshals as quoted UUID string", func(t *testing.T) {
		lockID := NewLockID()

		encoded, err := json.Marshal(lockID)
		require.NoError(t, err)
		assert.Equal(t, `"`+lockID.String()+`"`, string(encoded))
	})

	t.Run("round-trips through JSON", func(t *testing.T) {
		alertID := NewAlertID()

		encoded, err := json.Marshal(alertID)
		require.NoError(t, err)

		var decoded AlertID
		require.NoError(t, json.Unmarshal(encoded, &decoded))
		assert.Equal(t, alertID, decoded)
	})

	t.Run("rejects invalid text", func(t *testing.T) {
		var decoded PropertyID
		err := json.Unmarshal([]byte(`"garbage"`), &decoded)
		require.Error(t, err)
		assert.True(t, decoded.IsNil())
	})
}
