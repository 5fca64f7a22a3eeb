package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common error types for the sync run
var (
	// Configuration errors
	ErrMissingConfig = errors.New("missing required configuration")

	// Authorization errors
	ErrNoAuthorizationCode  = errors.New("no authorization code received")
	ErrAuthorizationTimeout = errors.New("timed out waiting for authorization callback")
	ErrNoRefreshToken       = errors.New("no refresh token stored")
	ErrTokenExchange        = errors.New("token exchange failed")

	// Upstream provider errors
	ErrProviderConnection     = errors.New("provider connection failed")
	ErrProviderAuthentication = errors.New("provider authentication failed")

	// Destination errors
	ErrUploadRejected = errors.New("upload rejected")

	// General errors
	ErrNotFound = errors.New("not found")
)

// ConfigError reports a configuration value that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config %s: %s", e.Field, ErrMissingConfig)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrMissingConfig
}

// AuthorizationError is returned when any stage of the OAuth2 handshake fails.
// Stage is one of "authorize", "exchange" or "refresh".
type AuthorizationError struct {
	Stage string
	Err   error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization %s: %v", e.Stage, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned when the upstream provider throttles the client.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e == nil {
		return "rate limit"
	}
	if e.Message != "" {
		return e.Message
	}
	return "rate limit exceeded"
}

// UploadError carries the destination's non-2xx response.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: status=%d body=%s", ErrUploadRejected, e.StatusCode, e.Body)
}

func (e *UploadError) Unwrap() error {
	return ErrUploadRejected
}

// IsUnauthorized reports whether err is an upload rejected with HTTP 401.
func IsUnauthorized(err error) bool {
	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		return uploadErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
