package embedding

import "errors"

var (
	// ErrNotInitialized is returned when the encoder is used before Start.
	ErrNotInitialized = errors.New("embedding model not initialized")

	// ErrDimensionMismatch is returned when a backend produces vectors of the wrong size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrBackendResponse is returned when a backend answers with an unusable payload.
	ErrBackendResponse = errors.New("invalid embedding backend response")
)
