// Package store holds errors shared by the identity and profile stores so
// the service can translate duplicate-key facts into precise domain errors
// regardless of which substrate produced them.
package store

import (
	"fmt"

	"amparo/pkg/platform/sentinel"
)

// Duplicate-key errors name the violated key. Each wraps
// sentinel.ErrAlreadyUsed so callers can also match on the broad category.
var (
	ErrDuplicateNationalID         = fmt.Errorf("national id: %w", sentinel.ErrAlreadyUsed)
	ErrDuplicateLogin              = fmt.Errorf("login: %w", sentinel.ErrAlreadyUsed)
	ErrDuplicateEmail              = fmt.Errorf("email: %w", sentinel.ErrAlreadyUsed)
	ErrDuplicateRegistrationNumber = fmt.Errorf("registration number: %w", sentinel.ErrAlreadyUsed)
)
