// Package uid generates and checks request identifiers.
package uid

import "github.com/google/uuid"

// canonicalLen is the length of the 8-4-4-4-12 hex form.
const canonicalLen = 36

// New generates a random (version 4) UUID in canonical form.
func New() string {
	return uuid.NewString()
}

// IsValid reports whether id is a UUID in canonical 8-4-4-4-12 form.
// The urn:uuid: and braced forms uuid.Parse also accepts are rejected so
// that an echoed X-Request-ID always has the same shape.
func IsValid(id string) bool {
	if len(id) != canonicalLen {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
