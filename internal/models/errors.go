package models

import "errors"

// Error taxonomy shared by every layer. Packages wrap these with context and
// callers match them with errors.Is.
var (
	// ErrMalformedInput means an upload could not be parsed as JSON or NDJSON.
	ErrMalformedInput = errors.New("malformed input")

	// ErrSchemaViolation means a structurally valid document is missing required
	// fields, or model output referenced indices outside the conversation.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrProvider means an inference call failed or returned non-conformant output.
	ErrProvider = errors.New("provider error")

	// ErrNotFound is returned when no record matches an id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidID is returned when an id is not in the store's native format.
	ErrInvalidID = errors.New("invalid id")

	// ErrInvalidAuditType is returned for audit types outside the supported set.
	ErrInvalidAuditType = errors.New("invalid audit type")
)
