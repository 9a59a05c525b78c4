// Package domain holds typed identifiers shared across packages. Typed IDs
// prevent cross-entity assignment at compile time; Parse functions enforce
// validity at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "keystone/pkg/domain-errors"
)

type (
	// PropertyID identifies a portfolio property.
	PropertyID uuid.UUID
	// AlertID identifies a governance alert.
	AlertID uuid.UUID
	// LockID identifies an action lock.
	LockID uuid.UUID
)

// maxIDLength bounds parse input before uuid parsing to reject oversized
// payloads cheaply.
const maxIDLength = 64

func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	if len(raw) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is too long")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, kind+" id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be the nil UUID")
	}
	return parsed, nil
}

func ParsePropertyID(raw string) (PropertyID, error) {
	parsed, err := parseUUID(raw, "property")
	return PropertyID(parsed), err
}

func ParseAlertID(raw string) (AlertID, error) {
	parsed, err := parseUUID(raw, "alert")
	return AlertID(parsed), err
}

func ParseLockID(raw string) (LockID, error) {
	parsed, err := parseUUID(raw, "lock")
	return LockID(parsed), err
}

func NewPropertyID() PropertyID { return PropertyID(uuid.New()) }
func NewAlertID() AlertID       { return AlertID(uuid.New()) }
func NewLockID() LockID         { return LockID(uuid.New()) }

func (id PropertyID) String() string { return uuid.UUID(id).String() }
func (id AlertID) String() string    { return uuid.UUID(id).String() }
func (id LockID) String() string     { return uuid.UUID(id).String() }

func (id PropertyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AlertID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id LockID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// Text marshaling renders IDs as canonical UUID strings in JSON payloads.

func (id PropertyID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id AlertID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id LockID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *PropertyID) UnmarshalText(text []byte) error {
	parsed, err := ParsePropertyID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AlertID) UnmarshalText(text []byte) error {
	parsed, err := ParseAlertID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *LockID) UnmarshalText(text []byte) error {
	parsed, err := ParseLockID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
