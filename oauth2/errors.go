package oauth2

import "net/http"

// ErrorCode is an OAuth 2.0 error identifier. The set mirrors RFC 6749 §5.2
// plus the service-specific extensions surfaced by the resource endpoints.
type ErrorCode string

const (
	// Request-shape errors.
	ErrCodeInvalidRequest          ErrorCode = "invalid_request"
	ErrCodeUnsupportedResponseType ErrorCode = "unsupported_response_type"
	ErrCodeUnsupportedGrantType    ErrorCode = "unsupported_grant_type"

	// Client-identity errors. Deliberately uniform for an unknown client_id
	// and a bad secret so callers cannot probe which one failed.
	ErrCodeInvalidClient ErrorCode = "invalid_client"

	// ErrCodeUnauthorizedClient is returned when an authenticated client is
	// not allowed to use the presented grant type.
	ErrCodeUnauthorizedClient ErrorCode = "unauthorized_client"

	// Grant and scope errors.
	ErrCodeInvalidGrant ErrorCode = "invalid_grant"
	ErrCodeInvalidScope ErrorCode = "invalid_scope"

	// Consent errors.
	ErrCodeAccessDenied ErrorCode = "access_denied"

	// Resource-layer authorization errors.
	ErrCodeTokenExpired      ErrorCode = "token_expired"
	ErrCodeTokenInvalid      ErrorCode = "token_invalid"
	ErrCodeInsufficientScope ErrorCode = "insufficient_scope"
	ErrCodeUnapprovedScope   ErrorCode = "unapproved_scope"
	ErrCodePermissionDenied  ErrorCode = "permission_denied"
	ErrCodeUnauthenticated   ErrorCode = "unauthenticated"

	// Transient errors.
	ErrCodeServerError            ErrorCode = "server_error"
	ErrCodeTemporarilyUnavailable ErrorCode = "temporarily_unavailable"
	ErrCodeRateLimitExceeded      ErrorCode = "rate_limit_exceeded"
)

// Error is the JSON error body returned by the token and resource endpoints,
// and the error carried back to redirect URIs by the authorization endpoint.
type Error struct {
	Code        ErrorCode `json:"error"`
	Description string    `json:"error_description,omitempty"`
	Hint        string    `json:"hint,omitempty"`
	RetryAfter  int       `json:"retry_after,omitempty"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Description
}

// NewError builds an Error with the given code and human-readable description.
func NewError(code ErrorCode, description string) *Error {
	return &Error{Code: code, Description: description}
}

// WithHint attaches a hint for the integrating developer.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// HTTPStatus maps the error code to the status the endpoint must respond with.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidClient, ErrCodeTokenExpired, ErrCodeTokenInvalid, ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeInsufficientScope, ErrCodeUnapprovedScope, ErrCodePermissionDenied, ErrCodeAccessDenied:
		return http.StatusForbidden
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeServerError:
		return http.StatusInternalServerError
	case ErrCodeTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// AsError extracts an *Error from err, falling back to a generic server_error
// so internal details never leak onto the wire.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	for e := err; e != nil; {
		if oe, ok := e.(*Error); ok {
			return oe
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return NewError(ErrCodeServerError, "internal server error")
}
