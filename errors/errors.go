package errors

import "errors"

// Sentinel errors for the failure kinds the pipeline distinguishes
var (
	// ErrBackendUnavailable indicates that a generation backend could not be reached
	ErrBackendUnavailable = errors.New("generation backend unavailable")

	// ErrQuotaExceeded indicates that the cloud backend rejected the request for quota reasons
	ErrQuotaExceeded = errors.New("cloud backend quota exceeded")

	// ErrRetrievalFailure indicates that chunking or embedding failed for a supplied document
	ErrRetrievalFailure = errors.New("document retrieval failed")

	// ErrEmptyResponse indicates that a backend returned no usable text
	ErrEmptyResponse = errors.New("backend returned empty response")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
