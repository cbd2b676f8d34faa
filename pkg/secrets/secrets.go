// Package secrets handles credential hashing for participant accounts.
package secrets

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "amparo/pkg/domain-errors"
)

// Hash creates a bcrypt hash of the provided credential.
// Use this to securely store credentials for later verification.
func Hash(credential string) (string, error) {
	if credential == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credential cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "credential is too long")
		}
		return "", fmt.Errorf("could not hash credential: %w", err)
	}
	return string(hashed), nil
}

// Verify checks if a plaintext credential matches a bcrypt hash.
func Verify(credential, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidInput, "invalid credential")
		}
		return fmt.Errorf("could not verify credential: %w", err)
	}
	return nil
}
