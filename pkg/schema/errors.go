package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDiscovery is returned when the schema directories cannot be turned
	// into a catalog
	ErrDiscovery = errors.New("schema discovery failed")

	// ErrDuplicateVersion is returned when both directories provide the same
	// version with different content
	ErrDuplicateVersion = errors.New("duplicate schema version")

	// ErrValidationFailed is wrapped by every *ValidationError
	ErrValidationFailed = errors.New("document does not validate")

	// ErrNoMigrationPath is returned when a document is invalid for its
	// version and no transform leads further
	ErrNoMigrationPath = errors.New("no migration path")

	// ErrNoTransform is returned when upgrading from a version without a
	// transform
	ErrNoTransform = errors.New("no transform for schema version")

	ErrOutOfRange         = errors.New("schema ordinal out of range")
	ErrNotFound           = errors.New("schema version not found")
	ErrUnsupportedVersion = errors.New("schema version no longer supported")
)

// Problem is a single validation failure
type Problem struct {
	// Path of the offending element, e.g. /cib/configuration/nodes/node
	Path    string
	Message string
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// ValidationError lists every problem found while validating a document
type ValidationError struct {
	Schema   string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.String())
	}
	prefix := ErrValidationFailed.Error()
	if e.Schema != "" {
		prefix = fmt.Sprintf("%s against %s", prefix, e.Schema)
	}
	return fmt.Sprintf("%s: %s", prefix, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
