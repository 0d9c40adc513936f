package types

import "errors"

// Domain errors for type validation
var (
	// ErrInvalidConfig is returned when a chunking configuration violates an
	// invariant. Raised at construction only.
	ErrInvalidConfig = errors.New("invalid chunking config")

	// ErrInvalidTokenRange is returned for a malformed chunk token range.
	ErrInvalidTokenRange = errors.New("invalid token range")

	// ErrInvalidChunkLevel is returned for an unknown chunk level tag.
	ErrInvalidChunkLevel = errors.New("invalid chunk level")
)
