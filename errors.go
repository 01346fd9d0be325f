package ytpipeline

import (
	"ytpipeline/config"
	"ytpipeline/playlist"
	"ytpipeline/retry"
	"ytpipeline/warehouse"
	"ytpipeline/youtube"
)

// Error types exported for library users.
//
// Sentinel errors work with errors.Is():
//
//	if errors.Is(err, ytpipeline.ErrAuthRevoked) {
//		// re-run the OAuth consent flow
//	}
//
// Wrapper types work with errors.As():
//
//	var serr *ytpipeline.StorageError
//	if errors.As(err, &serr) {
//		log.Printf("%s on %s failed: %v", serr.Op, serr.Entity, serr.Err)
//	}

// Type aliases for convenient error handling.
type (
	// ValidationError reports an invalid or missing configuration value.
	ValidationError = config.ValidationError
	// APIError wraps an upstream API failure with call context.
	APIError = youtube.APIError
	// StorageError wraps a warehouse operation failure.
	StorageError = warehouse.StorageError
	// ReconcileError reports a failure scoped to a single playlist.
	ReconcileError = playlist.ReconcileError
	// ExhaustedError reports that retries ran out.
	ExhaustedError = retry.ExhaustedError
)

// Sentinel errors re-exported from sub-packages.
var (
	// ErrRateLimited indicates the upstream API rejected a call for quota.
	ErrRateLimited = youtube.ErrRateLimited
	// ErrAuthRevoked indicates the credential could not be refreshed.
	ErrAuthRevoked = youtube.ErrAuthRevoked
	// ErrInvalidRequest indicates a request was malformed before any call.
	ErrInvalidRequest = youtube.ErrInvalidRequest
	// ErrNotFound indicates a requested warehouse entity does not exist.
	ErrNotFound = warehouse.ErrNotFound
	// ErrInvalidInput indicates a warehouse write with unusable input.
	ErrInvalidInput = warehouse.ErrInvalidInput
)
