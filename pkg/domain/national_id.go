package domain

import (
	dErrors "amparo/pkg/domain-errors"
)

// NationalID is the 11-digit national identity number carried by every
// participant. Invariant: exactly 11 ASCII digits. Globally unique across
// identities; uniqueness is enforced by the stores, format here.
type NationalID string

// ParseNationalID constructs a NationalID from external input.
// Errors: CodeInvalidInput when the value is not exactly 11 digits.
func ParseNationalID(s string) (NationalID, error) {
	if len(s) != 11 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "national id must be exactly 11 digits")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "national id must contain only digits")
		}
	}
	return NationalID(s), nil
}

func (n NationalID) String() string { return string(n) }
