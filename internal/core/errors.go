package core

import "errors"

// Sentinel errors for every failure class the API can surface. Callers
// branch with errors.Is; messages wrapped around these keep the detail.
var (
	// ErrInvalidInput is a client error. No task is created when it fires.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat means the media type is not in the format table.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrProbeFailed means media duration could not be determined, so a
	// target bitrate cannot be computed.
	ErrProbeFailed = errors.New("media probe failed")

	// ErrEncodingTimeout means the encode exceeded its wall-clock ceiling
	// and the subprocess was killed.
	ErrEncodingTimeout = errors.New("encoding timeout")

	// ErrEncodedFileTooLarge means both encode passes produced output above
	// the hard size ceiling.
	ErrEncodedFileTooLarge = errors.New("encoded file too large")

	// ErrConfigurationMissing means a dependent capability (Drive, S3, AI
	// key) is absent. Retrying will not help; the operator must configure it.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrUpstreamCallFailed wraps transient failures from external services.
	ErrUpstreamCallFailed = errors.New("upstream call failed")

	// ErrTaskNotFound covers both ids that never existed and tasks already
	// evicted after their retention window. The two are indistinguishable
	// on purpose.
	ErrTaskNotFound = errors.New("task not found")

	// ErrCacheEntryExpired covers upload-cache ids that are unknown, were
	// deleted, or timed out.
	ErrCacheEntryExpired = errors.New("cache entry expired")
)
