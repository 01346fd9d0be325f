package youtube

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// Sentinel errors for upstream API conditions.
var (
	// ErrRateLimited indicates the API rejected the call with 429.
	ErrRateLimited = errors.New("youtube: rate limited")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("youtube: not found")
	// ErrAuthRevoked indicates the credential could not be refreshed.
	ErrAuthRevoked = errors.New("youtube: credential revoked")
	// ErrInvalidRequest indicates the request was malformed before any call.
	ErrInvalidRequest = errors.New("youtube: invalid request")
)

// APIError wraps an upstream API failure with call context.
// Use errors.As() to extract it:
//
//	var apiErr *youtube.APIError
//	if errors.As(err, &apiErr) {
//		fmt.Printf("%s failed with status %d\n", apiErr.Op, apiErr.StatusCode)
//	}
type APIError struct {
	// Op is the API operation that failed ("reports.query", "playlistItems.insert", ...).
	Op string
	// StatusCode is the HTTP status code, 0 when the request never completed.
	StatusCode int
	// Err is the underlying error.
	Err error
}

// Error returns a string representation of the API error.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("youtube: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("youtube: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error { return e.Err }

// Transient reports whether the call is worth retrying: rate limits, server
// errors and network timeouts. Everything else — other 4xx responses,
// malformed requests, revoked credentials — is fatal and will not change
// outcome on retry.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrAuthRevoked) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidRequest) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return transientStatus(gerr.Code)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return transientStatus(apiErr.StatusCode)
	}
	// Token refresh failures surface as *url.Error wrapping
	// *oauth2.RetrieveError, which would otherwise match net.Error below.
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}

	// Unclassifiable transport failures are assumed transient.
	return true
}

func transientStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// wrap classifies a raw call failure into the package taxonomy.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 429:
			return &APIError{Op: op, StatusCode: gerr.Code, Err: fmt.Errorf("%w: %v", ErrRateLimited, err)}
		case 401, 403:
			// 403 can be quota (transient) or forbidden; quota exhaustion
			// surfaces reason "quotaExceeded" and is treated as rate limiting.
			for _, item := range gerr.Errors {
				if item.Reason == "quotaExceeded" || item.Reason == "rateLimitExceeded" ||
					item.Reason == "userRateLimitExceeded" {
					return &APIError{Op: op, StatusCode: gerr.Code, Err: fmt.Errorf("%w: %v", ErrRateLimited, err)}
				}
			}
			return &APIError{Op: op, StatusCode: gerr.Code, Err: fmt.Errorf("%w: %v", ErrAuthRevoked, err)}
		case 404:
			return &APIError{Op: op, StatusCode: gerr.Code, Err: fmt.Errorf("%w: %v", ErrNotFound, err)}
		}
		return &APIError{Op: op, StatusCode: gerr.Code, Err: err}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		return &APIError{Op: op, StatusCode: status, Err: fmt.Errorf("%w: %v", ErrAuthRevoked, err)}
	}
	return &APIError{Op: op, Err: err}
}
